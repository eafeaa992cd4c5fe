package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// zoneAbbrevs labels common zones with a short tag. Anything else falls
// back to the last IANA segment with underscores spaced out.
var zoneAbbrevs = map[string]string{
	"America/Los_Angeles": "PT",
	"America/Denver":      "MT",
	"America/Chicago":     "CT",
	"America/New_York":    "ET",
	"America/Sao_Paulo":   "BRT",
	"Europe/London":       "UK",
	"Europe/Berlin":       "CET",
	"Europe/Paris":        "CET",
	"Europe/Kyiv":         "EET",
	"Europe/Moscow":       "MSK",
	"Asia/Tashkent":       "UZT",
	"Asia/Almaty":         "ALMT",
	"Asia/Dubai":          "GST",
	"Asia/Kolkata":        "IST",
	"Asia/Shanghai":       "CST",
	"Asia/Tokyo":          "JST",
	"Asia/Seoul":          "KST",
	"Australia/Sydney":    "AEST",
	"UTC":                 "UTC",
}

// TimeConversionHandler renders a detected clock time in every target
// zone of the chat.
type TimeConversionHandler struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewTimeConversionHandler creates the handler.
func NewTimeConversionHandler() *TimeConversionHandler {
	return &TimeConversionHandler{
		logger: slog.Default().With("component", "time_handler"),
		now:    time.Now,
	}
}

// Handle implements Handler. With no source zone it requests state
// collection; with no targets it stays silent.
func (h *TimeConversionHandler) Handle(_ context.Context, event models.NormalizedEvent, trigger models.DetectedTrigger, rc models.ResolvedContext) (models.HandlerResult, error) {
	hour, _ := trigger.Data[models.DataHour].(int)
	minute, _ := trigger.Data[models.DataMinute].(int)
	isTomorrow, _ := trigger.Data[models.DataIsTomorrow].(bool)

	if rc.SourceTz == "" {
		return models.HandlerResult{NeedsStateCollection: true, Trigger: &trigger}, nil
	}
	if len(rc.TargetTzs) == 0 {
		return models.HandlerResult{}, nil
	}

	srcLoc, err := time.LoadLocation(rc.SourceTz)
	if err != nil {
		return models.HandlerResult{}, fmt.Errorf("bad source timezone %q: %w", rc.SourceTz, err)
	}

	// Reference instant: today (or tomorrow) at the spoken wall-clock
	// time in the source zone.
	ref := h.now().In(srcLoc)
	if isTomorrow {
		ref = ref.AddDate(0, 0, 1)
	}
	srcDt := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, srcLoc)

	var lines []string
	lines = append(lines, fmt.Sprintf("%02d:%02d %s", hour, minute, zoneLabel(rc.SourceTz, srcDt)))
	for _, tz := range rc.TargetTzs {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			h.logger.Warn("skipping unloadable target zone", "tz", tz, "error", err)
			continue
		}
		dst := srcDt.In(loc)

		line := fmt.Sprintf("• %02d:%02d %s", dst.Hour(), dst.Minute(), zoneLabel(tz, dst))
		if tag := dayTag(srcDt, dst); tag != "" {
			line += " " + tag
		}
		if rc.TeamTzs[tz] {
			line += " · team"
		} else {
			line += " · chat"
		}
		lines = append(lines, line)
	}
	if len(lines) < 2 {
		return models.HandlerResult{}, nil
	}

	return models.HandlerResult{
		Messages: []models.OutboundMessage{{
			Platform:         event.Platform,
			ChatID:           event.ChatID,
			Text:             strings.Join(lines, "\n"),
			ReplyToMessageID: event.MessageID,
			ParseMode:        models.ParseModePlain,
		}},
	}, nil
}

// zoneLabel renders "CET (UTC+1)" style labels.
func zoneLabel(tz string, at time.Time) string {
	abbrev, ok := zoneAbbrevs[tz]
	if !ok {
		seg := tz
		if i := strings.LastIndex(tz, "/"); i >= 0 {
			seg = tz[i+1:]
		}
		abbrev = strings.ReplaceAll(seg, "_", " ")
	}
	return fmt.Sprintf("%s (%s)", abbrev, utcOffset(at))
}

// utcOffset formats the zone offset as UTC+5 or UTC+5:30.
func utcOffset(at time.Time) string {
	_, secs := at.Zone()
	sign := "+"
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	if m == 0 {
		return fmt.Sprintf("UTC%s%d", sign, h)
	}
	return fmt.Sprintf("UTC%s%d:%02d", sign, h, m)
}

// dayTag marks conversions that land on a different calendar date.
func dayTag(src, dst time.Time) string {
	s := src.Format("2006-01-02")
	d := dst.Format("2006-01-02")
	switch {
	case d > s:
		return "(+1 day)"
	case d < s:
		return "(-1 day)"
	default:
		return ""
	}
}

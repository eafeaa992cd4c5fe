// Package timeparse extracts clock-time references from message text with
// a prioritized set of compiled regex patterns. It is the first layer of
// the time detector; the classifier gates it and the LLM backstops it.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// Pattern confidences, by pattern kind.
const (
	confClockAmPm  = 0.95
	confHourH      = 0.90
	confMilitary   = 0.90
	confClock24    = 0.95
	confHourAmPm   = 0.90
	confRangeAmPm  = 0.85
	confAtN        = 0.70
	confDefaultLLM = 0.80
)

var (
	reClockAmPm = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(a\.?m\.?|p\.?m\.?)`)
	reHourH     = regexp.MustCompile(`(?i)\b(\d{1,2})h(\d{2})?\b`)
	reMilitary  = regexp.MustCompile(`\b(\d{4})(Z)?\b`)
	reClock24   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	// The range pattern must claim its span before the single-hour am/pm
	// pattern eats the right edge of "5-7pm".
	reRangeAmPm = regexp.MustCompile(`(?i)\b(\d{1,2})\s*[-–]\s*(\d{1,2})\s*(a\.?m\.?|p\.?m\.?)`)
	reHourAmPm  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(a\.?m\.?|p\.?m\.?)`)
	// \b is ASCII-only in Go regexp, so the Russian preposition anchors
	// on whitespace instead.
	reAtN = regexp.MustCompile(`(?i)(?:\bat|(?:^|\s)в)\s+(\d{1,2})\b`)

	// "завтра" needs the same whitespace anchoring as the preposition
	// above; a trailing punctuation class keeps "завтра." matching.
	reTomorrow = regexp.MustCompile(`(?i)\btomorrow\b|(?:^|\s)завтра(?:[\s.,!?:;]|$)`)
)

// Parser is the regex layer. AtNEnabled controls the low-confidence
// "at N" fallback pattern.
type Parser struct {
	AtNEnabled bool
}

// NewParser creates a Parser.
func NewParser(atNEnabled bool) *Parser {
	return &Parser{AtNEnabled: atNEnabled}
}

// span tracks claimed byte ranges so a text position contributes to at most
// one parsed time.
type span struct{ start, end int }

func overlaps(claimed []span, s span) bool {
	for _, c := range claimed {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}

// ParseTimes extracts all clock-time references from text in pattern
// priority order. The timezone hint found anywhere in the message (zone
// abbreviation or known city) is attached to every result.
func (p *Parser) ParseTimes(text string) []models.ParsedTime {
	var out []models.ParsedTime
	var claimed []span

	isTomorrow := reTomorrow.MatchString(text)
	tzHint := ExtractTimezoneHint(text)

	add := func(s span, hour, minute int, conf float64) {
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return
		}
		out = append(out, models.ParsedTime{
			OriginalText: strings.TrimSpace(text[s.start:s.end]),
			Hour:         hour,
			Minute:       minute,
			TimezoneHint: tzHint,
			IsTomorrow:   isTomorrow,
			Confidence:   conf,
		})
		claimed = append(claimed, s)
	}

	// 1. H[H]:MM am/pm
	for _, m := range reClockAmPm.FindAllStringSubmatchIndex(text, -1) {
		s := span{m[0], m[1]}
		if overlaps(claimed, s) {
			continue
		}
		hour := atoi(text[m[2]:m[3]])
		minute := atoi(text[m[4]:m[5]])
		if hour > 12 {
			continue
		}
		add(s, to24Hour(hour, isPM(text[m[6]:m[7]])), minute, confClockAmPm)
	}

	// 2. HhMM / Hh
	for _, m := range reHourH.FindAllStringSubmatchIndex(text, -1) {
		s := span{m[0], m[1]}
		if overlaps(claimed, s) {
			continue
		}
		hour := atoi(text[m[2]:m[3]])
		minute := 0
		if m[4] >= 0 {
			minute = atoi(text[m[4]:m[5]])
		}
		add(s, hour, minute, confHourH)
	}

	// 3. 4-digit military HHMM[Z]
	for _, m := range reMilitary.FindAllStringSubmatchIndex(text, -1) {
		s := span{m[0], m[1]}
		if overlaps(claimed, s) {
			continue
		}
		digits := text[m[2]:m[3]]
		hour := atoi(digits[:2])
		minute := atoi(digits[2:])
		add(s, hour, minute, confMilitary)
	}

	// 4. HH:MM 24-hour
	for _, m := range reClock24.FindAllStringSubmatchIndex(text, -1) {
		s := span{m[0], m[1]}
		if overlaps(claimed, s) {
			continue
		}
		add(s, atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), confClock24)
	}

	// 5. H-H am/pm range: two entries, both converted with the shared suffix.
	for _, m := range reRangeAmPm.FindAllStringSubmatchIndex(text, -1) {
		s := span{m[0], m[1]}
		if overlaps(claimed, s) {
			continue
		}
		pm := isPM(text[m[6]:m[7]])
		from := atoi(text[m[2]:m[3]])
		to := atoi(text[m[4]:m[5]])
		if from > 12 || to > 12 {
			continue
		}
		add(span{m[0], m[1]}, to24Hour(from, pm), 0, confRangeAmPm)
		// Same span is claimed once; append the second endpoint directly.
		if h := to24Hour(to, pm); h >= 0 && h <= 23 {
			out = append(out, models.ParsedTime{
				OriginalText: strings.TrimSpace(text[m[0]:m[1]]),
				Hour:         h,
				Minute:       0,
				TimezoneHint: tzHint,
				IsTomorrow:   isTomorrow,
				Confidence:   confRangeAmPm,
			})
		}
	}

	// 6. H am/pm
	for _, m := range reHourAmPm.FindAllStringSubmatchIndex(text, -1) {
		s := span{m[0], m[1]}
		if overlaps(claimed, s) {
			continue
		}
		hour := atoi(text[m[2]:m[3]])
		if hour > 12 || hour == 0 {
			continue
		}
		add(s, to24Hour(hour, isPM(text[m[4]:m[5]])), 0, confHourAmPm)
	}

	// 7. "at N", only when nothing else matched.
	if p.AtNEnabled && len(out) == 0 {
		for _, m := range reAtN.FindAllStringSubmatchIndex(text, -1) {
			s := span{m[0], m[1]}
			if overlaps(claimed, s) {
				continue
			}
			add(s, atoi(text[m[2]:m[3]]), 0, confAtN)
		}
	}

	return out
}

// to24Hour converts a 12-hour clock hour to 24-hour:
// 12am → 0, 12pm → 12, Xpm → X+12.
func to24Hour(hour int, pm bool) int {
	if hour == 12 {
		if pm {
			return 12
		}
		return 0
	}
	if pm {
		return hour + 12
	}
	return hour
}

func isPM(suffix string) bool {
	return strings.HasPrefix(strings.ToLower(suffix), "p")
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// LLMConfidence is the confidence assigned to LLM-extracted times.
func LLMConfidence() float64 { return confDefaultLLM }

package detect

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/izgorodin/team-ops-assistant/pkg/classify"
	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/llm"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// rePoCity matches the Russian "по <Городу>" construction that scopes a
// time to a city's zone ("в 15:00 по Ташкенту"). Go's \b is ASCII-only,
// hence the explicit whitespace anchors.
var rePoCity = regexp.MustCompile(`(?i)(?:^|\s)по\s+([\p{Cyrillic}][\p{Cyrillic}-]*)`)

// TimeDetector extracts clock-time triggers with three tiers: the regex
// parser, the n-gram classifier as a gate for longer prose, and the LLM
// as a last resort for phrasing the regexes miss.
type TimeDetector struct {
	parser     timeParser
	classifier *classify.TimeClassifier
	tzContext  *classify.TzContextClassifier
	geocoder   *geo.Geocoder
	llmClient  *llm.Client
	logger     *slog.Logger
}

// timeParser is the slice of the regex parser the detector needs.
type timeParser interface {
	ParseTimes(text string) []models.ParsedTime
}

// NewTimeDetector wires the tiers together. tzContext and llmClient may
// be nil.
func NewTimeDetector(parser timeParser, classifier *classify.TimeClassifier, tzContext *classify.TzContextClassifier, geocoder *geo.Geocoder, llmClient *llm.Client) *TimeDetector {
	return &TimeDetector{
		parser:     parser,
		classifier: classifier,
		tzContext:  tzContext,
		geocoder:   geocoder,
		llmClient:  llmClient,
		logger:     slog.Default().With("component", "time_detector"),
	}
}

// Name implements Detector.
func (d *TimeDetector) Name() string { return "time" }

// Detect implements Detector.
func (d *TimeDetector) Detect(ctx context.Context, event models.NormalizedEvent) ([]models.DetectedTrigger, error) {
	if !classify.ContainsTimeTrigger(event.Text) {
		return nil, nil
	}

	times := d.parser.ParseTimes(event.Text)

	// Regex found nothing; the classifiers decide whether the LLM tier
	// is worth a call. The tz-context model catches phrasing the time
	// model misses, like "what time is it for you" questions.
	if len(times) == 0 {
		if d.llmClient == nil {
			return nil, nil
		}
		if !d.classifier.HasTimeReference(event.Text) && !d.needsTzResolution(event.Text) {
			return nil, nil
		}
		llmCtx, cancel := context.WithTimeout(ctx, d.llmClient.SyncBudget(d.llmClient.ExtractionOp()))
		defer cancel()
		extracted, err := d.llmClient.ExtractTimes(llmCtx, event.Text)
		if err != nil {
			d.logger.Warn("llm time extraction unavailable", "error", err)
			return nil, nil
		}
		times = extracted
	}

	poCityTz := d.resolvePoCity(ctx, event.Text)

	triggers := make([]models.DetectedTrigger, 0, len(times))
	for _, t := range times {
		tzHint := t.TimezoneHint
		if tzHint == "" {
			tzHint = poCityTz
		}
		triggers = append(triggers, models.DetectedTrigger{
			Type:         models.TriggerTime,
			Confidence:   t.Confidence,
			OriginalText: t.OriginalText,
			Data: map[string]any{
				models.DataHour:         t.Hour,
				models.DataMinute:       t.Minute,
				models.DataTimezoneHint: tzHint,
				models.DataIsExplicitTz: tzHint != "",
				models.DataIsTomorrow:   t.IsTomorrow,
			},
		})
	}
	return triggers, nil
}

func (d *TimeDetector) needsTzResolution(text string) bool {
	if d.tzContext == nil {
		return false
	}
	return d.tzContext.Classify(text).Positive
}

// resolvePoCity geocodes the city in a "по <Городу>" construction. The
// dative form is normalized by the geocoder itself.
func (d *TimeDetector) resolvePoCity(ctx context.Context, text string) string {
	if d.geocoder == nil {
		return ""
	}
	m := rePoCity.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	city := strings.TrimSpace(m[1])
	match, ok := d.geocoder.Resolve(ctx, city)
	if !ok {
		return ""
	}
	return match.Timezone
}

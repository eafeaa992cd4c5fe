package detect

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/izgorodin/team-ops-assistant/pkg/classify"
	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

const relocationConfidence = 0.9

// relocationPatterns are first-person relocation statements. The city
// itself is pulled out by the geo finder, not by these patterns, so the
// list stays short.
var relocationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi(?:'m| am)? ?(?:just )?moved? to\b`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) (?:moving|relocating) to\b`),
	regexp.MustCompile(`(?i)\bi(?:'m| am) (?:now|currently) (?:in|based in)\b`),
	regexp.MustCompile(`(?i)\bi (?:now )?live in\b`),
	regexp.MustCompile(`(?i)\brelocated to\b`),
	// Go's \b is ASCII-only, so the Russian patterns anchor on
	// whitespace explicitly.
	regexp.MustCompile(`(?i)(?:^|\s)переехал[аи]?\s+в\s`),
	regexp.MustCompile(`(?i)(?:^|\s)переезжаю\s+в\s`),
	regexp.MustCompile(`(?i)(?:^|\s)перебрал(?:ся|ась|ись)\s+в\s`),
	regexp.MustCompile(`(?i)(?:^|\s)теперь\s+(?:я\s+)?(?:живу\s+)?в\s`),
	regexp.MustCompile(`(?i)(?:^|\s)живу\s+(?:теперь\s+)?в\s`),
	regexp.MustCompile(`(?i)(?:^|\s)я\s+сейчас\s+в\s`),
}

// RelocationDetector spots first-person relocation statements. The
// regex list is the primary signal; the location classifier backstops
// phrasings the list misses.
type RelocationDetector struct {
	finder     *geo.Finder
	classifier *classify.LocationClassifier
	logger     *slog.Logger
}

// NewRelocationDetector creates the detector. classifier may be nil to
// run regex-only.
func NewRelocationDetector(finder *geo.Finder, classifier *classify.LocationClassifier) *RelocationDetector {
	return &RelocationDetector{
		finder:     finder,
		classifier: classifier,
		logger:     slog.Default().With("component", "relocation_detector"),
	}
}

// Name implements Detector.
func (d *RelocationDetector) Name() string { return "relocation" }

// Detect implements Detector.
func (d *RelocationDetector) Detect(_ context.Context, event models.NormalizedEvent) ([]models.DetectedTrigger, error) {
	matched := false
	var matchText string
	for _, re := range relocationPatterns {
		if loc := re.FindString(event.Text); loc != "" {
			matched = true
			matchText = loc
			break
		}
	}

	if !matched && d.classifier != nil {
		res := d.classifier.Classify(event.Text)
		if res.Positive && res.Subtype == classify.SubtypeChangePhrase {
			matched = true
			matchText = event.Text
		}
	}
	if !matched {
		return nil, nil
	}

	data := map[string]any{}
	if d.finder != nil {
		if cities := d.finder.FindInText(event.Text); len(cities) > 0 {
			data[models.DataCity] = cities[0].City
			data[models.DataResolvedTz] = cities[0].Timezone
		}
	}

	return []models.DetectedTrigger{{
		Type:         models.TriggerRelocation,
		Confidence:   relocationConfidence,
		OriginalText: matchText,
		Data:         data,
	}}, nil
}

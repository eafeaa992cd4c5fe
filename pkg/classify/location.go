package classify

import (
	"fmt"
	"sync"
)

// Location-mention subtypes.
const (
	SubtypeExplicitLocation = "explicit_location"
	SubtypeChangePhrase     = "change_phrase"
	SubtypeLocationQuery    = "question"
)

// LocationClassifier decides whether a message talks about the
// speaker's own location: living somewhere, moving somewhere, or asking
// where someone is.
type LocationClassifier struct {
	thresholds Thresholds

	once    sync.Once
	model   *Model
	loadErr error
}

// NewLocationClassifier creates a classifier with the given thresholds.
func NewLocationClassifier(th Thresholds) *LocationClassifier {
	return &LocationClassifier{thresholds: th}
}

func (c *LocationClassifier) load() error {
	c.once.Do(func() {
		raw, err := weightFiles.ReadFile("weights/location.json")
		if err != nil {
			c.loadErr = fmt.Errorf("failed to read location model weights: %w", err)
			return
		}
		c.model, c.loadErr = loadModel(raw)
	})
	return c.loadErr
}

// Classify returns the binary decision and, when positive, the subtype.
// A load failure is reported as a negative result.
func (c *LocationClassifier) Classify(text string) Result {
	if err := c.load(); err != nil {
		return Result{}
	}
	return c.model.Classify(text, c.thresholds)
}

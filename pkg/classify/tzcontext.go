package classify

import (
	"fmt"
	"sync"
)

// Timezone-context subtypes.
const (
	SubtypeExplicitTz    = "explicit_tz"
	SubtypeClarification = "clarification_question"
)

// TzContextClassifier decides whether a message needs timezone
// resolution: either it carries an explicit zone marker, or it asks a
// "what time is it for you" style question.
type TzContextClassifier struct {
	thresholds Thresholds

	once    sync.Once
	model   *Model
	loadErr error
}

// NewTzContextClassifier creates a classifier with the given thresholds.
func NewTzContextClassifier(th Thresholds) *TzContextClassifier {
	return &TzContextClassifier{thresholds: th}
}

func (c *TzContextClassifier) load() error {
	c.once.Do(func() {
		raw, err := weightFiles.ReadFile("weights/tzcontext.json")
		if err != nil {
			c.loadErr = fmt.Errorf("failed to read tzcontext model weights: %w", err)
			return
		}
		c.model, c.loadErr = loadModel(raw)
	})
	return c.loadErr
}

// Classify returns the binary decision and, when positive, the subtype.
// A load failure is reported as a negative result.
func (c *TzContextClassifier) Classify(text string) Result {
	if err := c.load(); err != nil {
		return Result{}
	}
	return c.model.Classify(text, c.thresholds)
}

package classify

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"unicode"
)

//go:embed weights/*.json
var weightFiles embed.FS

// timeTriggerWords are the digit-free tokens that can still denote a
// clock time. The guard requires a digit or one of these before the
// model runs at all.
var timeTriggerWords = map[string]bool{
	"noon":     true,
	"midnight": true,
	"midday":   true,
	"полдень":  true,
	"полночь":  true,
	"midi":     true,
	"minuit":   true,
}

// ContainsTimeTrigger is the cheap pre-filter: true when the text has a
// digit anywhere or one of the known time words.
func ContainsTimeTrigger(text string) bool {
	for _, r := range text {
		if unicode.IsDigit(r) {
			return true
		}
	}
	for _, w := range tokenize(text) {
		if timeTriggerWords[w] {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ':'
	})
}

// TimeClassifier decides whether a message talks about a clock time.
// Long messages are evaluated window-by-window around trigger tokens so
// unrelated prose cannot drown out a single time mention.
type TimeClassifier struct {
	thresholds        Thresholds
	longTextThreshold int
	windowSize        int

	once    sync.Once
	model   *Model
	loadErr error
}

// NewTimeClassifier creates a classifier. longTextThreshold is in words;
// windowSize is the number of words kept on each side of a trigger token.
func NewTimeClassifier(th Thresholds, longTextThreshold, windowSize int) *TimeClassifier {
	return &TimeClassifier{
		thresholds:        th,
		longTextThreshold: longTextThreshold,
		windowSize:        windowSize,
	}
}

func (c *TimeClassifier) load() error {
	c.once.Do(func() {
		raw, err := weightFiles.ReadFile("weights/time.json")
		if err != nil {
			c.loadErr = fmt.Errorf("failed to read time model weights: %w", err)
			return
		}
		c.model, c.loadErr = loadModel(raw)
	})
	return c.loadErr
}

// HasTimeReference runs the guard and then the model. A load failure
// fails open on the guard result so the LLM tier can still see the
// message.
func (c *TimeClassifier) HasTimeReference(text string) bool {
	if !ContainsTimeTrigger(text) {
		return false
	}
	if err := c.load(); err != nil {
		return true
	}

	words := strings.Fields(text)
	if len(words) <= c.longTextThreshold {
		return c.model.Classify(text, c.thresholds).Positive
	}

	for _, w := range c.windows(words) {
		if c.model.Classify(w, c.thresholds).Positive {
			return true
		}
	}
	return false
}

// windows returns one snippet per trigger token, windowSize words to
// each side.
func (c *TimeClassifier) windows(words []string) []string {
	var out []string
	for i, w := range words {
		if !ContainsTimeTrigger(w) {
			continue
		}
		lo := i - c.windowSize
		if lo < 0 {
			lo = 0
		}
		hi := i + c.windowSize + 1
		if hi > len(words) {
			hi = len(words)
		}
		out = append(out, strings.Join(words[lo:hi], " "))
	}
	return out
}

// Package classify provides the lightweight text classifiers used by the
// trigger layer: "does this text contain a time reference", "does it need
// timezone resolution", and "does it mention the speaker's own location".
//
// Each classifier is a two-stage linear model over character n-grams
// (range 2–5, word-boundary mode): a binary head gates, a multinomial
// subtype head refines. Weights are embedded JSON produced by the offline
// training pipeline; inference is sub-millisecond and allocation-light.
package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Thresholds are the binary decision bounds. Below Low the text is
// negative, above High positive, in between the raw model prediction
// (score ≥ 0.5) is used as-is.
type Thresholds struct {
	Low  float64
	High float64
}

// DefaultThresholds matches the classifier config defaults.
var DefaultThresholds = Thresholds{Low: 0.40, High: 0.60}

// Result is a classification outcome.
type Result struct {
	Positive bool
	Subtype  string
	Score    float64
}

type headJSON struct {
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

type modelJSON struct {
	Binary        headJSON   `json:"binary"`
	SubtypeLabels []string   `json:"subtype_labels,omitempty"`
	SubtypeHeads  []headJSON `json:"subtype_heads,omitempty"`
}

// Model is a loaded two-stage linear classifier.
type Model struct {
	binary        headJSON
	subtypeLabels []string
	subtypeHeads  []headJSON
}

// loadModel parses an embedded weight file.
func loadModel(raw []byte) (*Model, error) {
	var mj modelJSON
	if err := json.Unmarshal(raw, &mj); err != nil {
		return nil, fmt.Errorf("failed to parse model weights: %w", err)
	}
	if len(mj.SubtypeLabels) != len(mj.SubtypeHeads) {
		return nil, fmt.Errorf("subtype labels/heads length mismatch: %d vs %d",
			len(mj.SubtypeLabels), len(mj.SubtypeHeads))
	}
	return &Model{
		binary:        mj.Binary,
		subtypeLabels: mj.SubtypeLabels,
		subtypeHeads:  mj.SubtypeHeads,
	}, nil
}

// ngramRange matches the offline vectorizer (char_wb 2–5).
const (
	ngramMin = 2
	ngramMax = 5
)

// features extracts the distinct character n-grams of the lowercased text,
// each word padded with spaces (word-boundary character mode).
func features(text string) map[string]bool {
	feats := make(map[string]bool)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r)
	}) {
		padded := []rune(" " + word + " ")
		for n := ngramMin; n <= ngramMax; n++ {
			for i := 0; i+n <= len(padded); i++ {
				feats[string(padded[i:i+n])] = true
			}
		}
	}
	return feats
}

func (h headJSON) score(feats map[string]bool) float64 {
	sum := h.Bias
	for f := range feats {
		if w, ok := h.Weights[f]; ok {
			sum += w
		}
	}
	return sigmoid(sum)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Score returns the binary head probability for text.
func (m *Model) Score(text string) float64 {
	return m.binary.score(features(text))
}

// Classify applies the thresholds to the binary head and, when positive,
// picks the best-scoring subtype.
func (m *Model) Classify(text string, th Thresholds) Result {
	feats := features(text)
	score := m.binary.score(feats)

	var positive bool
	switch {
	case score < th.Low:
		positive = false
	case score > th.High:
		positive = true
	default:
		positive = score >= 0.5
	}

	res := Result{Positive: positive, Score: score}
	if positive && len(m.subtypeHeads) > 0 {
		best := 0
		bestScore := math.Inf(-1)
		for i, h := range m.subtypeHeads {
			if s := h.score(feats); s > bestScore {
				best, bestScore = i, s
			}
		}
		res.Subtype = m.subtypeLabels[best]
	}
	return res
}

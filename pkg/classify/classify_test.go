package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsTimeTrigger(t *testing.T) {
	assert.True(t, ContainsTimeTrigger("meet at 3pm"))
	assert.True(t, ContainsTimeTrigger("see you at noon"))
	assert.True(t, ContainsTimeTrigger("встречаемся в полдень"))
	assert.False(t, ContainsTimeTrigger("hello world"))
	assert.False(t, ContainsTimeTrigger("no times mentioned anywhere"))
}

func TestTimeClassifier(t *testing.T) {
	c := NewTimeClassifier(DefaultThresholds, 100, 5)

	assert.True(t, c.HasTimeReference("meet at 3pm"))
	assert.True(t, c.HasTimeReference("see you at noon"))
	assert.True(t, c.HasTimeReference("созвон в 14:30"))

	// Digits alone do not make a time.
	assert.False(t, c.HasTimeReference("I got 99 problems"))
	// Guard rejects before the model runs.
	assert.False(t, c.HasTimeReference("hello world"))
}

func TestTimeClassifierLongTextWindows(t *testing.T) {
	c := NewTimeClassifier(DefaultThresholds, 6, 2)

	long := "the quarterly report covers revenue headcount and churn see you at 5pm in the office"
	assert.True(t, c.HasTimeReference(long))

	noise := "the report lists 40 open positions across 12 offices and 7 regions for review"
	assert.False(t, c.HasTimeReference(noise))
}

func TestTzContextClassifier(t *testing.T) {
	c := NewTzContextClassifier(DefaultThresholds)

	res := c.Classify("what time is it for you?")
	assert.True(t, res.Positive)
	assert.Equal(t, SubtypeClarification, res.Subtype)

	res = c.Classify("завтра в 15:00 мск")
	assert.True(t, res.Positive)
	assert.Equal(t, SubtypeExplicitTz, res.Subtype)

	assert.False(t, c.Classify("купил новый стол").Positive)
}

func TestLocationClassifier(t *testing.T) {
	c := NewLocationClassifier(DefaultThresholds)

	res := c.Classify("я переехал в Берлин")
	assert.True(t, res.Positive)
	assert.Equal(t, SubtypeChangePhrase, res.Subtype)

	res = c.Classify("I just moved to Berlin")
	assert.True(t, res.Positive)
	assert.Equal(t, SubtypeChangePhrase, res.Subtype)

	res = c.Classify("я живу в Ташкенте")
	assert.True(t, res.Positive)
	assert.Equal(t, SubtypeExplicitLocation, res.Subtype)

	assert.False(t, c.Classify("nice weather today").Positive)
}

func TestModelThresholdBands(t *testing.T) {
	m := &Model{binary: headJSON{Bias: 0, Weights: map[string]float64{}}}

	// Score is exactly 0.5; within the band the raw prediction applies.
	res := m.Classify("anything", Thresholds{Low: 0.40, High: 0.60})
	assert.True(t, res.Positive)

	res = m.Classify("anything", Thresholds{Low: 0.40, High: 0.90})
	assert.True(t, res.Positive)

	res = m.Classify("anything", Thresholds{Low: 0.51, High: 0.90})
	assert.False(t, res.Positive)
}

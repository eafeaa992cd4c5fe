package timeparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, text string) (hour, minute int) {
	t.Helper()
	p := NewParser(true)
	times := p.ParseTimes(text)
	require.Len(t, times, 1, "text %q", text)
	return times[0].Hour, times[0].Minute
}

func TestParseBoundaryValues(t *testing.T) {
	cases := []struct {
		text         string
		hour, minute int
	}{
		{"see you at 12am", 0, 0},
		{"see you at 12pm", 12, 0},
		{"starts 00:00 sharp", 0, 0},
		{"deadline 23:59", 23, 59},
		{"briefing 1500Z", 15, 0},
		{"rendezvous 14h", 14, 0},
		{"rendezvous 14h30", 14, 30},
		{"lunch 10:00 a.m.", 10, 0},
		{"call at 7:30pm", 19, 30},
		{"meet 2pm", 14, 0},
	}
	for _, tc := range cases {
		hour, minute := parseOne(t, tc.text)
		assert.Equal(t, tc.hour, hour, "text %q", tc.text)
		assert.Equal(t, tc.minute, minute, "text %q", tc.text)
	}
}

func TestParseRangeProducesTwoEntries(t *testing.T) {
	p := NewParser(true)
	times := p.ParseTimes("free 5-7pm today")
	require.Len(t, times, 2)
	assert.Equal(t, 17, times[0].Hour)
	assert.Equal(t, 19, times[1].Hour)
	assert.Equal(t, 0.85, times[0].Confidence)
}

func TestParseAtNOnlyWhenNothingElse(t *testing.T) {
	p := NewParser(true)
	times := p.ParseTimes("let's sync at 10")
	require.Len(t, times, 1)
	assert.Equal(t, 10, times[0].Hour)
	assert.Equal(t, 0.70, times[0].Confidence)

	// A stronger pattern suppresses "at N".
	times = p.ParseTimes("at 10 or 14:30")
	require.Len(t, times, 1)
	assert.Equal(t, 14, times[0].Hour)
	assert.Equal(t, 30, times[0].Minute)
}

func TestParsePositionUniqueness(t *testing.T) {
	p := NewParser(true)
	// "7:30pm" must not additionally surface as a 24h "7:30" match.
	times := p.ParseTimes("dinner 7:30pm")
	require.Len(t, times, 1)
	assert.Equal(t, 19, times[0].Hour)
	assert.Equal(t, 0.95, times[0].Confidence)
}

func TestParseMultipleTimes(t *testing.T) {
	p := NewParser(true)
	times := p.ParseTimes("either 14:30 or 18:00 works")
	require.Len(t, times, 2)
	assert.Equal(t, 14, times[0].Hour)
	assert.Equal(t, 18, times[1].Hour)
}

func TestParseTomorrowFlag(t *testing.T) {
	p := NewParser(true)
	times := p.ParseTimes("call at 10am tomorrow")
	require.Len(t, times, 1)
	assert.True(t, times[0].IsTomorrow)

	times = p.ParseTimes("созвон в 10:00 завтра")
	require.Len(t, times, 1)
	assert.True(t, times[0].IsTomorrow)

	// Leading position and trailing punctuation.
	times = p.ParseTimes("завтра в 10:00")
	require.Len(t, times, 1)
	assert.True(t, times[0].IsTomorrow)

	times = p.ParseTimes("в 10:00, завтра!")
	require.Len(t, times, 1)
	assert.True(t, times[0].IsTomorrow)

	// "завтра" inside a longer word is not the tomorrow marker.
	times = p.ParseTimes("позавтракаем в 10:00")
	require.Len(t, times, 1)
	assert.False(t, times[0].IsTomorrow)
}

func TestParseTimezoneHintAttached(t *testing.T) {
	p := NewParser(true)
	times := p.ParseTimes("call at 10am PST")
	require.Len(t, times, 1)
	assert.Equal(t, "America/Los_Angeles", times[0].TimezoneHint)

	times = p.ParseTimes("встречаемся в 15:00 мск")
	require.Len(t, times, 1)
	assert.Equal(t, "Europe/Moscow", times[0].TimezoneHint)
}

func TestParseRejectsInvalidClock(t *testing.T) {
	p := NewParser(false)
	assert.Empty(t, p.ParseTimes("score was 99:99"))
	assert.Empty(t, p.ParseTimes("nothing here"))
}

func TestExtractTimezoneHint(t *testing.T) {
	assert.Equal(t, "Asia/Tokyo", ExtractTimezoneHint("09:00 JST please"))
	assert.Equal(t, "Europe/London", ExtractTimezoneHint("5pm London time"))
	assert.Equal(t, "", ExtractTimezoneHint("5pm my time"))
	// Abbreviation wins over a city hint appearing earlier.
	assert.Equal(t, "America/New_York", ExtractTimezoneHint("London call at 9 EST"))
}

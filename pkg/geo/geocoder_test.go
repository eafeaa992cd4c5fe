package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExactName(t *testing.T) {
	g := NewGeocoder(nil)

	m, ok := g.Resolve(context.Background(), "Berlin")
	require.True(t, ok)
	assert.Equal(t, "Europe/Berlin", m.Timezone)

	m, ok = g.Resolve(context.Background(), "tokyo")
	require.True(t, ok)
	assert.Equal(t, "Asia/Tokyo", m.Timezone)
}

func TestResolvePopulationTieBreak(t *testing.T) {
	g := NewGeocoder(nil)

	// London, UK wins over London, Ontario.
	m, ok := g.Resolve(context.Background(), "London")
	require.True(t, ok)
	assert.Equal(t, "Europe/London", m.Timezone)
}

func TestResolveAlternateNames(t *testing.T) {
	g := NewGeocoder(nil)

	cases := map[string]string{
		"Москва":   "Europe/Moscow",
		"NYC":      "America/New_York",
		"東京":       "Asia/Tokyo",
		"Бобруйск": "Europe/Minsk",
	}
	for input, wantTz := range cases {
		m, ok := g.Resolve(context.Background(), input)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, wantTz, m.Timezone, "input %q", input)
	}
}

func TestResolveRegionalCities(t *testing.T) {
	g := NewGeocoder(nil)

	// A sample across the dataset's regional coverage.
	cases := map[string]string{
		"Красноярск":  "Asia/Krasnoyarsk",
		"Гомель":      "Europe/Minsk",
		"Дніпро":      "Europe/Kyiv",
		"Шымкент":     "Asia/Almaty",
		"Wroclaw":     "Europe/Warsaw",
		"Порту":       "Europe/Lisbon",
		"Guadalajara": "America/Mexico_City",
		"Chennai":     "Asia/Kolkata",
	}
	for input, wantTz := range cases {
		m, ok := g.Resolve(context.Background(), input)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, wantTz, m.Timezone, "input %q", input)
	}
}

func TestResolveRussianCaseForms(t *testing.T) {
	g := NewGeocoder(nil)

	// Dative forms as they appear after "по ...".
	cases := map[string]string{
		"Бобруйску": "Europe/Minsk",
		"Москве":    "Europe/Moscow",
		"Ташкенту":  "Asia/Tashkent",
		"Берлину":   "Europe/Berlin",
	}
	for input, wantTz := range cases {
		m, ok := g.Resolve(context.Background(), input)
		require.True(t, ok, "input %q", input)
		assert.Equal(t, wantTz, m.Timezone, "input %q", input)
	}
}

func TestResolveNotFound(t *testing.T) {
	g := NewGeocoder(nil)

	for _, input := range []string{"", "x", "qwertyuiop", "Texas"} {
		_, ok := g.Resolve(context.Background(), input)
		assert.False(t, ok, "input %q", input)
	}
}

type fakeNormalizer struct {
	result string
	called bool
}

func (f *fakeNormalizer) NormalizeCity(_ context.Context, _ string) (string, error) {
	f.called = true
	return f.result, nil
}

func TestResolveLLMNormalization(t *testing.T) {
	norm := &fakeNormalizer{result: "Munich"}
	g := NewGeocoder(norm)

	m, ok := g.Resolve(context.Background(), "минхен")
	require.True(t, ok)
	assert.Equal(t, "Europe/Berlin", m.Timezone)
	assert.True(t, norm.called)
}

func TestResolveLLMSkippedForShortASCII(t *testing.T) {
	norm := &fakeNormalizer{result: "Munich"}
	g := NewGeocoder(norm)

	_, ok := g.Resolve(context.Background(), "zzz")
	assert.False(t, ok)
	assert.False(t, norm.called)
}

func TestStripTrailingNoise(t *testing.T) {
	assert.Equal(t, "London", StripTrailingNoise("London last week"))
	assert.Equal(t, "Берлин", StripTrailingNoise("Берлин уже"))
	assert.Equal(t, "New York", StripTrailingNoise("New York"))
}

func TestNormalizeRussianCase(t *testing.T) {
	assert.Equal(t, "Москва", NormalizeRussianCase("Москву"))
	assert.Equal(t, "Бобруйск", NormalizeRussianCase("Бобруйске"))
	assert.Equal(t, "Berlin", NormalizeRussianCase("Berlin"))
}

package geo

import (
	"context"
	"log/slog"
	"strings"
)

// Normalizer turns a non-matching location string into a canonical English
// city name (LLM-assisted). Implementations return "" when no canonical
// name could be produced; errors are treated the same way by the geocoder.
type Normalizer interface {
	NormalizeCity(ctx context.Context, input string) (string, error)
}

// Match is a successful city resolution.
type Match struct {
	City       string
	Timezone   string
	Population int64
}

// Geocoder resolves a whole input string to a city and IANA timezone.
type Geocoder struct {
	byName     map[string][]City
	byAlt      map[string][]City
	normalizer Normalizer
	logger     *slog.Logger
}

// NewGeocoder builds the lookup maps from the embedded dataset.
// normalizer may be nil (LLM-assisted normalization disabled).
func NewGeocoder(normalizer Normalizer) *Geocoder {
	g := &Geocoder{
		byName:     make(map[string][]City),
		byAlt:      make(map[string][]City),
		normalizer: normalizer,
		logger:     slog.Default().With("component", "geocoder"),
	}
	for _, c := range cities() {
		key := strings.ToLower(c.Name)
		g.byName[key] = append(g.byName[key], c)
		for _, alt := range c.AltNames {
			altKey := strings.ToLower(alt)
			g.byAlt[altKey] = append(g.byAlt[altKey], c)
		}
	}
	return g
}

// Resolve runs the lookup chain: exact name, alternate names, Russian case
// normalization, then (if allowed for this input) LLM normalization with one
// re-run. Ties are broken by population.
func (g *Geocoder) Resolve(ctx context.Context, input string) (Match, bool) {
	input = strings.TrimSpace(input)
	if len([]rune(input)) < 2 {
		return Match{}, false
	}

	if m, ok := g.lookup(input); ok {
		return m, true
	}

	if norm := NormalizeRussianCase(input); norm != input {
		if m, ok := g.lookup(norm); ok {
			return m, true
		}
	}

	// LLM normalization is a last resort and is skipped for short ASCII
	// inputs, which the table would have matched already.
	if g.normalizer == nil {
		return Match{}, false
	}
	if isASCII(input) && !strings.Contains(input, " ") {
		return Match{}, false
	}
	canonical, err := g.normalizer.NormalizeCity(ctx, input)
	if err != nil {
		g.logger.Warn("City normalization failed", "input", input, "error", err)
		return Match{}, false
	}
	if canonical == "" {
		return Match{}, false
	}
	return g.lookup(canonical)
}

// lookup checks the name map then the alternate-name map, case-insensitive,
// returning the highest-population candidate.
func (g *Geocoder) lookup(input string) (Match, bool) {
	key := strings.ToLower(strings.TrimSpace(input))
	if key == "" {
		return Match{}, false
	}
	if cs, ok := g.byName[key]; ok {
		return bestOf(cs), true
	}
	if cs, ok := g.byAlt[key]; ok {
		return bestOf(cs), true
	}
	return Match{}, false
}

func bestOf(cs []City) Match {
	best := cs[0]
	for _, c := range cs[1:] {
		if c.Population > best.Population {
			best = c
		}
	}
	return Match{City: best.Name, Timezone: best.Timezone, Population: best.Population}
}

// russianSuffixRules are deterministic dative/prepositional-to-nominative
// rewrites, checked in order; the first matching suffix is applied.
var russianSuffixRules = []struct{ from, to string }{
	{"ску", "ск"},
	{"ву", "ва"},
	{"ве", "ва"},
	{"ине", "ин"},
	{"ни", "нь"},
	{"ну", "н"},
	{"не", "на"},
	{"те", "т"},
	{"ту", "т"},
}

const russianVowels = "аеёиоуыэюя"

// NormalizeRussianCase rewrites inflected Russian city forms ("по Бобруйску",
// "в Москве") back to nominative, token by token. Non-Cyrillic tokens pass
// through unchanged.
func NormalizeRussianCase(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		tokens[i] = normalizeRussianToken(tok)
	}
	return strings.Join(tokens, " ")
}

func normalizeRussianToken(tok string) string {
	runes := []rune(tok)
	if len(runes) < 3 || !isCyrillic(runes[len(runes)-1]) {
		return tok
	}
	lower := strings.ToLower(tok)
	for _, rule := range russianSuffixRules {
		if strings.HasSuffix(lower, rule.from) {
			cut := len(runes) - len([]rune(rule.from))
			return string(runes[:cut]) + rule.to
		}
	}
	// Final -е drops after a consonant ("в Бобруйске" → "Бобруйск").
	last := []rune(lower)[len(runes)-1]
	if last == 'е' || last == 'у' {
		prev := []rune(lower)[len(runes)-2]
		if isCyrillic(prev) && !strings.ContainsRune(russianVowels, prev) {
			return string(runes[:len(runes)-1])
		}
	}
	return tok
}

// trailingNoise lists English/Russian words that generic "moved to X Y"
// captures drag in behind the actual city name.
var trailingNoise = map[string]bool{
	"last": true, "week": true, "month": true, "year": true,
	"yesterday": true, "today": true, "tomorrow": true, "now": true,
	"recently": true, "again": true, "already": true,
	"вчера": true, "сегодня": true, "завтра": true, "недавно": true,
	"уже": true, "опять": true, "снова": true,
}

// StripTrailingNoise removes known non-city trailing tokens from a captured
// city string.
func StripTrailingNoise(s string) string {
	tokens := strings.Fields(s)
	for len(tokens) > 0 && trailingNoise[strings.ToLower(tokens[len(tokens)-1])] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

package geo

import (
	"regexp"
	"strings"
)

// Minimum name lengths for the in-text table. Short ASCII names collide
// with ordinary words far too often.
const (
	minNameLenASCII = 3
	minNameLenOther = 2
)

// maxWindowWords bounds the contiguous word windows the finder tries.
const maxWindowWords = 3

var wordPattern = regexp.MustCompile(`[\p{L}][\p{L}\p{N}'’-]*`)

// Finder scans free text for known city names. Unlike Geocoder it never
// consults the LLM; it is used on the hot path by the relocation detector.
type Finder struct {
	names map[string]Match
}

// NewFinder builds the in-text name table from the embedded dataset,
// filtered to the minimum name lengths.
func NewFinder() *Finder {
	f := &Finder{names: make(map[string]Match)}
	add := func(name string, c City) {
		runes := []rune(name)
		minLen := minNameLenASCII
		if !isASCII(name) {
			minLen = minNameLenOther
		}
		if len(runes) < minLen {
			return
		}
		key := strings.ToLower(name)
		// Population tie-break for colliding names.
		if prev, ok := f.names[key]; ok && prev.Population >= c.Population {
			return
		}
		f.names[key] = Match{City: c.Name, Timezone: c.Timezone, Population: c.Population}
	}
	for _, c := range cities() {
		add(c.Name, c)
		for _, alt := range c.AltNames {
			add(alt, c)
		}
	}
	return f
}

// FindInText returns the cities mentioned in text, deduplicated by resolved
// timezone with the first occurrence winning. Longer word windows take
// precedence over their sub-windows; CJK text is additionally scanned by
// character substrings since it has no word boundaries.
func (f *Finder) FindInText(text string) []Match {
	var found []Match
	seenTz := make(map[string]bool)
	emit := func(m Match) {
		if seenTz[m.Timezone] {
			return
		}
		seenTz[m.Timezone] = true
		found = append(found, m)
	}

	words := wordPattern.FindAllString(text, -1)
	used := make([]bool, len(words))

	for size := maxWindowWords; size >= 1; size-- {
		for i := 0; i+size <= len(words); i++ {
			if anyUsed(used, i, size) {
				continue
			}
			window := strings.Join(words[i:i+size], " ")
			m, ok := f.lookupWindow(window)
			if !ok {
				continue
			}
			for j := i; j < i+size; j++ {
				used[j] = true
			}
			emit(m)
		}
	}

	if containsCJK(text) {
		for _, m := range f.findCJK(text) {
			emit(m)
		}
	}
	return found
}

// lookupWindow checks a word window directly and through Russian case
// normalization.
func (f *Finder) lookupWindow(window string) (Match, bool) {
	key := strings.ToLower(window)
	if m, ok := f.names[key]; ok {
		return m, true
	}
	if norm := strings.ToLower(NormalizeRussianCase(window)); norm != key {
		if m, ok := f.names[norm]; ok {
			return m, true
		}
	}
	return Match{}, false
}

// findCJK scans contiguous CJK runs for known 2–4 character names,
// longest first.
func (f *Finder) findCJK(text string) []Match {
	var out []Match
	runs := cjkRuns(text)
	for _, run := range runs {
		for size := 4; size >= 2; size-- {
			for i := 0; i+size <= len(run); i++ {
				if m, ok := f.names[string(run[i:i+size])]; ok {
					out = append(out, m)
				}
			}
		}
	}
	return out
}

// cjkRuns extracts maximal runs of CJK runes from text.
func cjkRuns(text string) [][]rune {
	var runs [][]rune
	var cur []rune
	for _, r := range text {
		if isCJK(r) {
			cur = append(cur, r)
			continue
		}
		if len(cur) > 0 {
			runs = append(runs, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

func anyUsed(used []bool, start, size int) bool {
	for i := start; i < start+size; i++ {
		if used[i] {
			return true
		}
	}
	return false
}

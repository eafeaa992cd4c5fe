// Package geo resolves free-text city mentions to IANA timezones.
// It is backed by an embedded city table (≥50k population rows with
// multi-language alternate names) and offers two entry points: Geocoder for
// whole-input resolution and Finder for in-text scanning.
package geo

import (
	"bufio"
	"bytes"
	_ "embed"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

//go:embed cities.tsv
var citiesTSV []byte

// City is one row of the embedded dataset.
type City struct {
	Name       string
	Timezone   string
	Population int64
	AltNames   []string
}

var (
	cityTable []City
	tableOnce sync.Once
)

// cities parses the embedded dataset once. Malformed rows are skipped with
// a warning so a bad data line never takes the process down.
func cities() []City {
	tableOnce.Do(func() {
		scanner := bufio.NewScanner(bytes.NewReader(citiesTSV))
		scanner.Buffer(make([]byte, 64*1024), 64*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			fields := strings.Split(line, "\t")
			if len(fields) < 3 {
				slog.Warn("Skipping malformed city row", "line", line)
				continue
			}
			pop, err := strconv.ParseInt(fields[2], 10, 64)
			if err != nil {
				slog.Warn("Skipping city row with bad population", "line", line)
				continue
			}
			c := City{
				Name:       fields[0],
				Timezone:   fields[1],
				Population: pop,
			}
			if len(fields) > 3 && fields[3] != "" {
				c.AltNames = strings.Split(fields[3], "|")
			}
			cityTable = append(cityTable, c)
		}
	})
	return cityTable
}

// isCyrillic reports whether r is in the Cyrillic block.
func isCyrillic(r rune) bool {
	return r >= 0x0400 && r <= 0x04FF
}

// isCJK reports whether r is a CJK ideograph, kana or hangul.
func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // hiragana + katakana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // hangul syllables
		return true
	}
	return false
}

// containsCJK reports whether s has at least one CJK rune.
func containsCJK(s string) bool {
	for _, r := range s {
		if isCJK(r) {
			return true
		}
	}
	return false
}

// isASCII reports whether s is pure ASCII.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

package timeparse

import (
	"regexp"
	"strings"
)

// tzAbbreviations is the closed list of recognized zone abbreviations.
// Fixed-offset abbreviations map to a representative IANA zone.
var tzAbbreviations = map[string]string{
	"PST":  "America/Los_Angeles",
	"PDT":  "America/Los_Angeles",
	"PT":   "America/Los_Angeles",
	"MST":  "America/Denver",
	"MDT":  "America/Denver",
	"CST":  "America/Chicago",
	"CDT":  "America/Chicago",
	"EST":  "America/New_York",
	"EDT":  "America/New_York",
	"ET":   "America/New_York",
	"GMT":  "Etc/GMT",
	"BST":  "Europe/London",
	"CET":  "Europe/Berlin",
	"CEST": "Europe/Berlin",
	"JST":  "Asia/Tokyo",
	"AEST": "Australia/Sydney",
	"AEDT": "Australia/Sydney",
	"UTC":  "UTC",
	"MSK":  "Europe/Moscow",
	"МСК":  "Europe/Moscow",
}

// cityHints maps well-known short city mentions to zones. This is a hint
// list for the parser hot path, not the geocoder.
var cityHints = map[string]string{
	"LA":     "America/Los_Angeles",
	"SF":     "America/Los_Angeles",
	"NYC":    "America/New_York",
	"LONDON": "Europe/London",
	"PARIS":  "Europe/Paris",
	"BERLIN": "Europe/Berlin",
	"MOSCOW": "Europe/Moscow",
	"МОСКВА": "Europe/Moscow",
	"TOKYO":  "Asia/Tokyo",
	"SYDNEY": "Australia/Sydney",
}

var hintWordPattern = regexp.MustCompile(`[\p{L}]+`)

// ExtractTimezoneHint scans the text for a zone abbreviation, then for a
// known city hint. The first hit wins and applies to every time parsed
// from the message.
func ExtractTimezoneHint(text string) string {
	words := hintWordPattern.FindAllString(text, -1)
	for _, w := range words {
		if tz, ok := tzAbbreviations[strings.ToUpper(w)]; ok {
			return tz
		}
	}
	for _, w := range words {
		if tz, ok := cityHints[strings.ToUpper(w)]; ok {
			return tz
		}
	}
	return ""
}

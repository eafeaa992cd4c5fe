package models

// ParsedTime is one clock-time reference extracted from message text.
// Hour is 24-hour wall clock; TimezoneHint, when set, is an IANA zone name
// derived from an explicit abbreviation or city mention in the same message.
type ParsedTime struct {
	OriginalText string  `json:"original_text"`
	Hour         int     `json:"hour"`
	Minute       int     `json:"minute"`
	TimezoneHint string  `json:"timezone_hint,omitempty"`
	IsTomorrow   bool    `json:"is_tomorrow"`
	Confidence   float64 `json:"confidence"`
}

// Valid reports whether the hour/minute pair is a real wall-clock time.
func (p ParsedTime) Valid() bool {
	return p.Hour >= 0 && p.Hour <= 23 && p.Minute >= 0 && p.Minute <= 59
}

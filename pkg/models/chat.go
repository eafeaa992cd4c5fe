package models

import (
	"sort"
	"time"
)

// ChatState is the persisted per-chat view of participants' timezones.
// ActiveTimezones is always the recomputed sorted projection of
// UserTimezones values; RecomputeActive is the only way it changes.
type ChatState struct {
	Platform  Platform `json:"platform"`
	ChatID    string   `json:"chat_id"`
	DefaultTz string   `json:"default_tz,omitempty"`
	// UserTimezones maps user_id → IANA timezone.
	UserTimezones   map[string]string `json:"user_timezones"`
	ActiveTimezones []string          `json:"active_timezones"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// RecomputeActive rebuilds ActiveTimezones as the sorted unique set of
// UserTimezones values.
func (c *ChatState) RecomputeActive() {
	seen := make(map[string]bool, len(c.UserTimezones))
	out := make([]string, 0, len(c.UserTimezones))
	for _, tz := range c.UserTimezones {
		if tz == "" || seen[tz] {
			continue
		}
		seen[tz] = true
		out = append(out, tz)
	}
	sort.Strings(out)
	c.ActiveTimezones = out
}

// DedupEvent marks an inbound event as admitted past the dedup gate.
type DedupEvent struct {
	Platform  Platform  `json:"platform"`
	EventID   string    `json:"event_id"`
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
}

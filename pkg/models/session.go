package models

import "time"

// SessionGoal names the missing state a session is collecting.
type SessionGoal string

// Session goals.
const (
	GoalAwaitingTimezone  SessionGoal = "AWAITING_TIMEZONE"
	GoalReverifyTimezone  SessionGoal = "REVERIFY_TIMEZONE"
	GoalConfirmRelocation SessionGoal = "CONFIRM_RELOCATION"
	GoalClarifyGeoIntent  SessionGoal = "CLARIFY_GEO_INTENT"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

// Session statuses. Only ACTIVE sessions receive turns.
const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
	SessionExpired   SessionStatus = "EXPIRED"
)

// MaxSessionAttempts bounds non-terminal turns before a session fails.
const MaxSessionAttempts = 3

// SessionTurn is one role-tagged exchange recorded in the session context.
type SessionTurn struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// SessionContext is the mutable bag of goal-specific working state.
type SessionContext struct {
	Attempts int           `json:"attempts"`
	History  []SessionTurn `json:"history,omitempty"`
	// Resolved candidate for confirm flows.
	ResolvedCity string `json:"resolved_city,omitempty"`
	ResolvedTz   string `json:"resolved_tz,omitempty"`
	// ExistingTz is the user's current zone for re-verify flows.
	ExistingTz string `json:"existing_tz,omitempty"`
	// TriggerData preserves the originating trigger payload.
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	VerifyURL   string         `json:"verify_url,omitempty"`
}

// Session is a bounded multi-turn interaction collecting missing state from
// one user in one chat. At most one ACTIVE session exists per
// (platform, chat_id, user_id); storage enforces this with a partial unique
// index.
type Session struct {
	ID        string         `json:"session_id"`
	Platform  Platform       `json:"platform"`
	ChatID    string         `json:"chat_id"`
	UserID    string         `json:"user_id"`
	Goal      SessionGoal    `json:"goal"`
	Status    SessionStatus  `json:"status"`
	Context   SessionContext `json:"context"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Expired reports whether the session's TTL has elapsed. Expired sessions
// are treated as absent by lookups.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

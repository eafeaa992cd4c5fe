package models

import "time"

// TzSource records how a user's timezone assignment was obtained.
// The source determines the initial confidence (see identity.InitialConfidence).
type TzSource string

// Timezone assignment sources, strongest first.
const (
	SourceWebVerified         TzSource = "web_verified"
	SourceCityPick            TzSource = "city_pick"
	SourceRelocationConfirmed TzSource = "relocation_confirmed"
	SourceMessageExplicit     TzSource = "message_explicit"
	SourceInferred            TzSource = "inferred"
	SourceChatDefault         TzSource = "chat_default"
	SourceDefault             TzSource = "default"
)

// UserTzState is the persisted timezone identity of one user on one platform.
// Invariant: TzIANA == "" ⟺ Confidence == 0.
type UserTzState struct {
	Platform       Platform   `json:"platform"`
	UserID         string     `json:"user_id"`
	TzIANA         string     `json:"tz_iana,omitempty"`
	Confidence     float64    `json:"confidence"`
	Source         TzSource   `json:"source"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
	// RateLimitNotices counts "you are rate limited" notices sent to this
	// user over its lifetime; capped by rate_limits.max_notifications.
	RateLimitNotices int `json:"rl_notices"`
}

// EffectiveConfidence applies per-day linear decay since the last update,
// floored at zero.
func (u *UserTzState) EffectiveConfidence(now time.Time, decayPerDay float64) float64 {
	if u == nil || u.TzIANA == "" {
		return 0
	}
	days := now.Sub(u.UpdatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	eff := u.Confidence - decayPerDay*days
	if eff < 0 {
		return 0
	}
	return eff
}

// Package identity maintains each user's timezone identity: which zone
// they are in, how that was learned, and how much it is still worth as
// time passes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/config"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/store"
)

// initialConfidence maps a source to the confidence a fresh write gets.
var initialConfidence = map[models.TzSource]float64{
	models.SourceWebVerified:         1.0,
	models.SourceCityPick:            1.0,
	models.SourceRelocationConfirmed: 1.0,
	models.SourceMessageExplicit:     0.9,
	models.SourceInferred:            0.6,
	models.SourceChatDefault:         0.5,
	models.SourceDefault:             0.0,
}

// InitialConfidence returns the default confidence for a source.
func InitialConfidence(source models.TzSource) float64 {
	return initialConfidence[source]
}

// Resolved is the outcome of effective-timezone resolution.
type Resolved struct {
	Tz         string
	Confidence float64
	Source     models.TzSource
}

// Manager resolves and updates user timezone state and keeps the chat
// projection in sync.
type Manager struct {
	users  *store.UserStore
	chats  *store.ChatStore
	cfg    config.ConfidenceConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager.
func NewManager(users *store.UserStore, chats *store.ChatStore, cfg config.ConfidenceConfig) *Manager {
	return &Manager{
		users:  users,
		chats:  chats,
		cfg:    cfg,
		logger: slog.Default().With("component", "identity"),
		now:    time.Now,
	}
}

// Effective resolves the timezone to attribute to the user right now.
// Order: explicit in-message hint, then stored user state above the
// decay-adjusted threshold, then the chat default. Storage read errors
// degrade to "not found".
func (m *Manager) Effective(ctx context.Context, platform models.Platform, userID, chatID, explicitHint string) Resolved {
	if explicitHint != "" {
		return Resolved{Tz: explicitHint, Confidence: 1.0, Source: models.SourceMessageExplicit}
	}

	user, err := m.users.Get(ctx, platform, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("user state read failed, treating as unknown", "error", err)
	}
	if user != nil && user.TzIANA != "" {
		eff := user.EffectiveConfidence(m.now(), m.cfg.DecayPerDay)
		if eff >= m.cfg.VerifyThreshold {
			return Resolved{Tz: user.TzIANA, Confidence: eff, Source: user.Source}
		}
	}

	chat, err := m.chats.Get(ctx, platform, chatID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("chat state read failed, treating as unknown", "error", err)
	}
	if chat != nil && chat.DefaultTz != "" {
		return Resolved{Tz: chat.DefaultTz, Confidence: m.cfg.ChatDefaultConfidence, Source: models.SourceChatDefault}
	}

	return Resolved{}
}

// HasStoredTz reports whether the user has any stored zone at all,
// regardless of confidence. The orchestrator uses it to pick between
// the first-time and re-verify session goals.
func (m *Manager) HasStoredTz(ctx context.Context, platform models.Platform, userID string) (string, bool) {
	user, err := m.users.Get(ctx, platform, userID)
	if err != nil || user == nil || user.TzIANA == "" {
		return "", false
	}
	return user.TzIANA, true
}

// Update writes a new timezone for the user and refreshes the chat
// projection. Confidence comes from the source table unless overridden.
func (m *Manager) Update(ctx context.Context, platform models.Platform, userID, chatID, tz string, source models.TzSource, confOverride *float64) error {
	conf := InitialConfidence(source)
	if confOverride != nil {
		conf = *confOverride
	}

	if err := m.users.SetTimezone(ctx, platform, userID, tz, source, conf); err != nil {
		return fmt.Errorf("failed to save user timezone: %w", err)
	}
	if chatID != "" {
		if err := m.chats.UpdateUserTimezone(ctx, platform, chatID, userID, tz); err != nil {
			return fmt.Errorf("failed to update chat projection: %w", err)
		}
	}
	return nil
}

// InvalidateForRelocation zeroes the user's confidence while keeping
// the stored zone for reference, forcing re-verification on the next
// time reference.
func (m *Manager) InvalidateForRelocation(ctx context.Context, platform models.Platform, userID string) error {
	err := m.users.ResetConfidence(ctx, platform, userID)
	if errors.Is(err, store.ErrNotFound) {
		// Nothing stored yet; the next time reference opens a
		// first-time session anyway.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reset confidence: %w", err)
	}
	return nil
}

// TargetZones computes the conversion target set: configured team zones
// first, then the chat's active zones, duplicates removed, source zone
// excluded. The returned map marks which targets are team-configured.
func (m *Manager) TargetZones(ctx context.Context, platform models.Platform, chatID, sourceTz string, teamTzs []string) ([]string, map[string]bool) {
	var targets []string
	team := make(map[string]bool)
	seen := make(map[string]bool)

	add := func(tz string, fromTeam bool) {
		if tz == "" || tz == sourceTz || seen[tz] {
			return
		}
		seen[tz] = true
		targets = append(targets, tz)
		if fromTeam {
			team[tz] = true
		}
	}

	for _, tz := range teamTzs {
		add(tz, true)
	}

	chat, err := m.chats.Get(ctx, platform, chatID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("chat state read failed, targets limited to team set", "error", err)
	}
	if chat != nil {
		for _, tz := range chat.ActiveTimezones {
			add(tz, false)
		}
	}

	return targets, team
}

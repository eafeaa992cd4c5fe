// Package sessionflow is the conversational session machine: bounded
// multi-turn exchanges that collect missing user state (timezone,
// relocation confirmation, geo intent) under a TTL and attempt limit.
package sessionflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/store"
)

// Session TTLs by goal family.
const (
	TimezoneSessionTTL  = 30 * time.Minute
	GeoIntentSessionTTL = 10 * time.Minute
)

// sessionStore is the slice of the session repository the machine uses.
type sessionStore interface {
	GetActive(ctx context.Context, platform models.Platform, chatID, userID string) (*models.Session, error)
	Create(ctx context.Context, sess *models.Session) error
	Update(ctx context.Context, sess *models.Session) error
}

// tzSaver persists a verified timezone and refreshes the chat projection.
type tzSaver interface {
	Update(ctx context.Context, platform models.Platform, userID, chatID, tz string, source models.TzSource, confOverride *float64) error
}

// Machine owns session lifecycle and turn handling.
type Machine struct {
	sessions   sessionStore
	identity   tzSaver
	geocoder   *geo.Geocoder
	teamCities map[string]string
	verifyURL  func(platform models.Platform, userID, chatID string) string
	logger     *slog.Logger
	now        func() time.Time
}

// NewMachine wires the machine. teamCities maps configured city names
// to zones; verifyURL builds the web-verification link for failure
// messages and may be nil.
func NewMachine(sessions sessionStore, identity tzSaver, geocoder *geo.Geocoder, teamCities map[string]string, verifyURL func(models.Platform, string, string) string) *Machine {
	return &Machine{
		sessions:   sessions,
		identity:   identity,
		geocoder:   geocoder,
		teamCities: teamCities,
		verifyURL:  verifyURL,
		logger:     slog.Default().With("component", "sessionflow"),
		now:        time.Now,
	}
}

// ttlFor returns the TTL for a goal.
func ttlFor(goal models.SessionGoal) time.Duration {
	if goal == models.GoalClarifyGeoIntent {
		return GeoIntentSessionTTL
	}
	return TimezoneSessionTTL
}

// Open creates an ACTIVE session and returns it with the initial
// prompt. When a concurrent webhook already created one, the winner's
// session is reused and no duplicate prompt is emitted.
func (m *Machine) Open(ctx context.Context, event models.NormalizedEvent, goal models.SessionGoal, sctx models.SessionContext) (*models.Session, []models.OutboundMessage, error) {
	if m.verifyURL != nil && sctx.VerifyURL == "" {
		sctx.VerifyURL = m.verifyURL(event.Platform, event.UserID, event.ChatID)
	}

	now := m.now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		Platform:  event.Platform,
		ChatID:    event.ChatID,
		UserID:    event.UserID,
		Goal:      goal,
		Status:    models.SessionActive,
		Context:   sctx,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttlFor(goal)),
	}

	if err := m.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, store.ErrActiveSessionExists) {
			existing, gerr := m.sessions.GetActive(ctx, event.Platform, event.ChatID, event.UserID)
			if gerr != nil {
				return nil, nil, fmt.Errorf("session create raced and lookup failed: %w", gerr)
			}
			return existing, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	prompt := m.initialPrompt(sess)
	return sess, []models.OutboundMessage{m.reply(event, prompt)}, nil
}

// Active returns the user's ACTIVE unexpired session, or nil.
func (m *Machine) Active(ctx context.Context, platform models.Platform, chatID, userID string) *Session {
	sess, err := m.sessions.GetActive(ctx, platform, chatID, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("session lookup failed, treating as absent", "error", err)
		}
		return nil
	}
	if sess == nil || sess.Expired(m.now()) {
		return nil
	}
	return &Session{machine: m, Session: sess}
}

// Session pairs a stored session with the machine that can advance it.
type Session struct {
	*models.Session
	machine *Machine
}

// HandleTurn feeds one user message to the session's goal handler and
// persists the updated session.
func (s *Session) HandleTurn(ctx context.Context, event models.NormalizedEvent) ([]models.OutboundMessage, error) {
	m := s.machine
	s.Context.History = append(s.Context.History,
		models.SessionTurn{Role: "user", Text: event.Text})

	var msgs []models.OutboundMessage
	var err error
	switch s.Goal {
	case models.GoalConfirmRelocation:
		msgs, err = m.handleConfirmRelocation(ctx, s.Session, event)
	case models.GoalAwaitingTimezone, models.GoalReverifyTimezone:
		msgs, err = m.handleTimezoneCollection(ctx, s.Session, event)
	case models.GoalClarifyGeoIntent:
		msgs, err = m.handleGeoIntent(ctx, s.Session, event)
	default:
		return nil, fmt.Errorf("unknown session goal %q", s.Goal)
	}
	if err != nil {
		return nil, err
	}

	for _, msg := range msgs {
		s.Context.History = append(s.Context.History,
			models.SessionTurn{Role: "assistant", Text: msg.Text})
	}
	s.UpdatedAt = m.now()
	if err := m.sessions.Update(ctx, s.Session); err != nil {
		return nil, fmt.Errorf("failed to persist session turn: %w", err)
	}
	return msgs, nil
}

// failIfExhausted marks the session FAILED once attempts reach the
// limit and returns the final message, or nil when attempts remain.
func (m *Machine) failIfExhausted(sess *models.Session, event models.NormalizedEvent) []models.OutboundMessage {
	if sess.Context.Attempts < models.MaxSessionAttempts {
		return nil
	}
	sess.Status = models.SessionFailed
	text := "I couldn't work out your timezone."
	if sess.Context.VerifyURL != "" {
		text += " You can set it here: " + sess.Context.VerifyURL
	}
	return []models.OutboundMessage{m.reply(event, text)}
}

// saveTimezone persists the zone, closes the session, and produces the
// confirmation message.
func (m *Machine) saveTimezone(ctx context.Context, sess *models.Session, event models.NormalizedEvent, tz string, source models.TzSource) ([]models.OutboundMessage, error) {
	if err := m.identity.Update(ctx, sess.Platform, sess.UserID, sess.ChatID, tz, source, nil); err != nil {
		return nil, fmt.Errorf("failed to save timezone from session: %w", err)
	}
	sess.Status = models.SessionCompleted
	m.logger.Info("session completed",
		"goal", sess.Goal, "tz", tz, "user_id", sess.UserID)
	return []models.OutboundMessage{m.reply(event, "Saved: "+tz)}, nil
}

func (m *Machine) reply(event models.NormalizedEvent, text string) models.OutboundMessage {
	return models.OutboundMessage{
		Platform:         event.Platform,
		ChatID:           event.ChatID,
		Text:             text,
		ReplyToMessageID: event.MessageID,
		ParseMode:        models.ParseModePlain,
	}
}

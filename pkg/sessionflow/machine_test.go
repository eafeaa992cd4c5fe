package sessionflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/store"
)

type memSessions struct {
	active map[string]*models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{active: make(map[string]*models.Session)}
}

func sessKey(p models.Platform, chatID, userID string) string {
	return string(p) + "|" + chatID + "|" + userID
}

func (m *memSessions) GetActive(_ context.Context, p models.Platform, chatID, userID string) (*models.Session, error) {
	if s, ok := m.active[sessKey(p, chatID, userID)]; ok {
		return s, nil
	}
	return nil, store.ErrNotFound
}

func (m *memSessions) Create(_ context.Context, s *models.Session) error {
	key := sessKey(s.Platform, s.ChatID, s.UserID)
	if _, ok := m.active[key]; ok {
		return store.ErrActiveSessionExists
	}
	m.active[key] = s
	return nil
}

func (m *memSessions) Update(_ context.Context, s *models.Session) error {
	key := sessKey(s.Platform, s.ChatID, s.UserID)
	if s.Status != models.SessionActive {
		delete(m.active, key)
		return nil
	}
	m.active[key] = s
	return nil
}

type savedTz struct {
	tz     string
	source models.TzSource
}

type fakeSaver struct {
	saves []savedTz
}

func (f *fakeSaver) Update(_ context.Context, _ models.Platform, _, _, tz string, source models.TzSource, _ *float64) error {
	f.saves = append(f.saves, savedTz{tz: tz, source: source})
	return nil
}

func testMachine() (*Machine, *memSessions, *fakeSaver) {
	sessions := newMemSessions()
	saver := &fakeSaver{}
	m := NewMachine(sessions, saver, geo.NewGeocoder(nil),
		map[string]string{"hq": "Europe/Berlin"},
		func(models.Platform, string, string) string { return "https://example.com/verify?token=t" })
	return m, sessions, saver
}

func sessEvent(text string) models.NormalizedEvent {
	return models.NormalizedEvent{
		Platform:  models.PlatformTelegram,
		EventID:   "e1",
		MessageID: "m1",
		ChatID:    "c1",
		UserID:    "u1",
		Text:      text,
	}
}

func TestOpenSessionAndTTL(t *testing.T) {
	m, sessions, _ := testMachine()

	sess, msgs, err := m.Open(context.Background(), sessEvent("3pm"), models.GoalAwaitingTimezone, models.SessionContext{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Which city")
	assert.Equal(t, models.SessionActive, sess.Status)
	assert.Equal(t, 30*time.Minute, sess.ExpiresAt.Sub(sess.CreatedAt))
	assert.NotEmpty(t, sess.Context.VerifyURL)
	assert.Len(t, sessions.active, 1)

	// Geo-intent sessions get the shorter TTL.
	sess2, _, err := m.Open(context.Background(), models.NormalizedEvent{
		Platform: models.PlatformSlack, ChatID: "c2", UserID: "u2", Text: "x",
	}, models.GoalClarifyGeoIntent, models.SessionContext{ResolvedCity: "Berlin", ResolvedTz: "Europe/Berlin"})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, sess2.ExpiresAt.Sub(sess2.CreatedAt))
}

func TestOpenSessionRaceReusesWinner(t *testing.T) {
	m, _, _ := testMachine()

	first, _, err := m.Open(context.Background(), sessEvent("3pm"), models.GoalAwaitingTimezone, models.SessionContext{})
	require.NoError(t, err)

	second, msgs, err := m.Open(context.Background(), sessEvent("3pm"), models.GoalAwaitingTimezone, models.SessionContext{})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	// The loser emits no duplicate prompt.
	assert.Empty(t, msgs)
}

func TestAwaitingTimezoneResolvesCity(t *testing.T) {
	m, sessions, saver := testMachine()

	_, _, err := m.Open(context.Background(), sessEvent("3pm"), models.GoalAwaitingTimezone, models.SessionContext{})
	require.NoError(t, err)

	sess := m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	require.NotNil(t, sess)

	msgs, err := sess.HandleTurn(context.Background(), sessEvent("Ташкент"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Saved: Asia/Tashkent", msgs[0].Text)
	require.Len(t, saver.saves, 1)
	assert.Equal(t, models.SourceCityPick, saver.saves[0].source)
	// Completed sessions leave the active set.
	assert.Empty(t, sessions.active)
}

func TestAwaitingTimezoneTeamCityAndAbbreviation(t *testing.T) {
	m, _, saver := testMachine()

	_, _, err := m.Open(context.Background(), sessEvent("3pm"), models.GoalAwaitingTimezone, models.SessionContext{})
	require.NoError(t, err)
	sess := m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	require.NotNil(t, sess)

	msgs, err := sess.HandleTurn(context.Background(), sessEvent("HQ"))
	require.NoError(t, err)
	assert.Equal(t, "Saved: Europe/Berlin", msgs[0].Text)
	require.Len(t, saver.saves, 1)
	assert.Equal(t, "Europe/Berlin", saver.saves[0].tz)
}

func TestAwaitingTimezoneExhaustsAttempts(t *testing.T) {
	m, sessions, saver := testMachine()

	_, _, err := m.Open(context.Background(), sessEvent("3pm"), models.GoalAwaitingTimezone, models.SessionContext{})
	require.NoError(t, err)

	var last []models.OutboundMessage
	for i := 0; i < 3; i++ {
		sess := m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
		require.NotNil(t, sess, "turn %d", i)
		last, err = sess.HandleTurn(context.Background(), sessEvent("qwertyuiop"))
		require.NoError(t, err)
	}

	require.Len(t, last, 1)
	assert.Contains(t, last[0].Text, "https://example.com/verify")
	assert.Empty(t, saver.saves)
	assert.Empty(t, sessions.active)
}

func TestReverifyConfirmKeepsExisting(t *testing.T) {
	m, _, saver := testMachine()

	_, msgs, err := m.Open(context.Background(), sessEvent("3pm"), models.GoalReverifyTimezone,
		models.SessionContext{ExistingTz: "Europe/Moscow"})
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Text, "Europe/Moscow")

	sess := m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	require.NotNil(t, sess)
	out, err := sess.HandleTurn(context.Background(), sessEvent("yes"))
	require.NoError(t, err)
	assert.Equal(t, "Saved: Europe/Moscow", out[0].Text)
	require.Len(t, saver.saves, 1)
	assert.Equal(t, models.SourceCityPick, saver.saves[0].source)
}

func TestConfirmRelocationFlow(t *testing.T) {
	m, _, saver := testMachine()

	_, msgs, err := m.Open(context.Background(), sessEvent("moved"), models.GoalConfirmRelocation,
		models.SessionContext{ResolvedCity: "Berlin", ResolvedTz: "Europe/Berlin"})
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Text, "Berlin")

	sess := m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	require.NotNil(t, sess)
	out, err := sess.HandleTurn(context.Background(), sessEvent("да"))
	require.NoError(t, err)
	assert.Equal(t, "Saved: Europe/Berlin", out[0].Text)
	require.Len(t, saver.saves, 1)
	assert.Equal(t, models.SourceRelocationConfirmed, saver.saves[0].source)
}

func TestConfirmRelocationRejectThenNewCity(t *testing.T) {
	m, _, saver := testMachine()

	_, _, err := m.Open(context.Background(), sessEvent("moved"), models.GoalConfirmRelocation,
		models.SessionContext{ResolvedCity: "Berlin", ResolvedTz: "Europe/Berlin"})
	require.NoError(t, err)

	sess := m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	out, err := sess.HandleTurn(context.Background(), sessEvent("no"))
	require.NoError(t, err)
	assert.Equal(t, askCityAgain, out[0].Text)

	sess = m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	out, err = sess.HandleTurn(context.Background(), sessEvent("Tashkent"))
	require.NoError(t, err)
	assert.Contains(t, out[0].Text, "Asia/Tashkent")

	sess = m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	out, err = sess.HandleTurn(context.Background(), sessEvent("yes"))
	require.NoError(t, err)
	assert.Equal(t, "Saved: Asia/Tashkent", out[0].Text)
	require.Len(t, saver.saves, 1)
}

func TestGeoIntentTimeAnswer(t *testing.T) {
	m, sessions, saver := testMachine()
	m.now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }

	_, _, err := m.Open(context.Background(), sessEvent("Berlin"), models.GoalClarifyGeoIntent,
		models.SessionContext{ResolvedCity: "Berlin", ResolvedTz: "Europe/Berlin"})
	require.NoError(t, err)

	sess := m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	out, err := sess.HandleTurn(context.Background(), sessEvent("time"))
	require.NoError(t, err)
	// 12:00 UTC is 13:00 in winter Berlin.
	assert.Equal(t, "It's 13:00 in Berlin (Europe/Berlin) right now.", out[0].Text)
	assert.Empty(t, saver.saves)
	assert.Empty(t, sessions.active)
}

func TestGeoIntentMovedHandsOverToConfirm(t *testing.T) {
	m, _, saver := testMachine()

	_, _, err := m.Open(context.Background(), sessEvent("Berlin"), models.GoalClarifyGeoIntent,
		models.SessionContext{ResolvedCity: "Berlin", ResolvedTz: "Europe/Berlin"})
	require.NoError(t, err)

	sess := m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	out, err := sess.HandleTurn(context.Background(), sessEvent("I moved"))
	require.NoError(t, err)
	assert.Contains(t, out[0].Text, "(yes/no)")

	sess = m.Active(context.Background(), models.PlatformTelegram, "c1", "u1")
	require.NotNil(t, sess)
	assert.Equal(t, models.GoalConfirmRelocation, sess.Goal)
	// The hand-over turn did not finish anything, so it costs an attempt.
	assert.Equal(t, 1, sess.Context.Attempts)

	out, err = sess.HandleTurn(context.Background(), sessEvent("yes"))
	require.NoError(t, err)
	assert.Equal(t, "Saved: Europe/Berlin", out[0].Text)
	require.Len(t, saver.saves, 1)
	assert.Equal(t, models.SourceRelocationConfirmed, saver.saves[0].source)
}

func TestExpiredSessionTreatedAsAbsent(t *testing.T) {
	m, _, _ := testMachine()

	_, _, err := m.Open(context.Background(), sessEvent("3pm"), models.GoalAwaitingTimezone, models.SessionContext{})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	assert.Nil(t, m.Active(context.Background(), models.PlatformTelegram, "c1", "u1"))
}

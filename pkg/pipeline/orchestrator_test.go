package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izgorodin/team-ops-assistant/pkg/classify"
	"github.com/izgorodin/team-ops-assistant/pkg/config"
	"github.com/izgorodin/team-ops-assistant/pkg/detect"
	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/guard"
	"github.com/izgorodin/team-ops-assistant/pkg/handlers"
	"github.com/izgorodin/team-ops-assistant/pkg/identity"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/sessionflow"
	"github.com/izgorodin/team-ops-assistant/pkg/store"
	"github.com/izgorodin/team-ops-assistant/pkg/timeparse"
)

// fakeState is an in-memory stand-in for the identity manager and the
// user/chat stores behind it.
type fakeState struct {
	tzByUser   map[string]string
	confByUser map[string]float64
	targets    []string
}

func newFakeState() *fakeState {
	return &fakeState{
		tzByUser:   make(map[string]string),
		confByUser: make(map[string]float64),
	}
}

func (f *fakeState) Effective(_ context.Context, _ models.Platform, userID, _, hint string) identity.Resolved {
	if hint != "" {
		return identity.Resolved{Tz: hint, Confidence: 1.0, Source: models.SourceMessageExplicit}
	}
	if tz := f.tzByUser[userID]; tz != "" && f.confByUser[userID] >= 0.7 {
		return identity.Resolved{Tz: tz, Confidence: f.confByUser[userID], Source: models.SourceCityPick}
	}
	return identity.Resolved{}
}

func (f *fakeState) TargetZones(_ context.Context, _ models.Platform, _, sourceTz string, _ []string) ([]string, map[string]bool) {
	var out []string
	team := make(map[string]bool)
	for _, tz := range f.targets {
		if tz == sourceTz {
			continue
		}
		out = append(out, tz)
		team[tz] = true
	}
	return out, team
}

func (f *fakeState) HasStoredTz(_ context.Context, _ models.Platform, userID string) (string, bool) {
	tz := f.tzByUser[userID]
	return tz, tz != ""
}

func (f *fakeState) Update(_ context.Context, _ models.Platform, userID, _, tz string, _ models.TzSource, _ *float64) error {
	f.tzByUser[userID] = tz
	f.confByUser[userID] = 1.0
	return nil
}

func (f *fakeState) InvalidateForRelocation(_ context.Context, _ models.Platform, userID string) error {
	f.confByUser[userID] = 0
	return nil
}

type memDedup struct {
	marked map[string]bool
}

func (d *memDedup) IsDuplicate(_ context.Context, p models.Platform, eventID string) bool {
	return d.marked[string(p)+"|"+eventID]
}

func (d *memDedup) MarkProcessed(_ context.Context, p models.Platform, eventID, _ string) error {
	d.marked[string(p)+"|"+eventID] = true
	return nil
}

type memSessions struct {
	active map[string]*models.Session
}

func (m *memSessions) key(p models.Platform, chatID, userID string) string {
	return string(p) + "|" + chatID + "|" + userID
}

func (m *memSessions) GetActive(_ context.Context, p models.Platform, chatID, userID string) (*models.Session, error) {
	if s, ok := m.active[m.key(p, chatID, userID)]; ok {
		return s, nil
	}
	return nil, store.ErrNotFound
}

func (m *memSessions) Create(_ context.Context, s *models.Session) error {
	key := m.key(s.Platform, s.ChatID, s.UserID)
	if _, ok := m.active[key]; ok {
		return store.ErrActiveSessionExists
	}
	m.active[key] = s
	return nil
}

func (m *memSessions) Update(_ context.Context, s *models.Session) error {
	key := m.key(s.Platform, s.ChatID, s.UserID)
	if s.Status != models.SessionActive {
		delete(m.active, key)
		return nil
	}
	m.active[key] = s
	return nil
}

type alwaysNotify struct{}

func (alwaysNotify) ShouldNotify(context.Context, models.Platform, string) bool { return true }

type harness struct {
	orch     *Orchestrator
	state    *fakeState
	dedup    *memDedup
	sessions *memSessions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	state := newFakeState()
	// DST-free zones keep the expected wall clocks stable year-round.
	state.targets = []string{"Asia/Tashkent", "Europe/Moscow"}
	dedup := &memDedup{marked: make(map[string]bool)}
	sessions := &memSessions{active: make(map[string]*models.Session)}

	geocoder := geo.NewGeocoder(nil)
	machine := sessionflow.NewMachine(sessions, state, geocoder, nil,
		func(models.Platform, string, string) string { return "https://bot.example.com/verify?token=x" })

	detectors := []detect.Detector{
		detect.NewTimeDetector(timeparse.NewParser(true),
			classify.NewTimeClassifier(classify.DefaultThresholds, 100, 5), nil, geocoder, nil),
		detect.NewRelocationDetector(geo.NewFinder(), nil),
		detect.NewMentionDetector([]string{"opsbot"}),
	}
	handlerMap := map[models.TriggerType]handlers.Handler{
		models.TriggerTime:       handlers.NewTimeConversionHandler(),
		models.TriggerRelocation: handlers.NewRelocationHandler(state),
		models.TriggerMention:    handlers.NewMentionHandler(""),
	}
	p := New(detectors, handlerMap, state, nil, nil, nil)

	throttle := guard.NewThrottle(2*time.Second, 10)
	limiter := guard.NewRateLimiter(config.RateLimitsConfig{
		PerUser: config.WindowLimit{Requests: 100, Window: time.Minute},
		PerChat: config.WindowLimit{Requests: 100, Window: time.Minute},
	})

	return &harness{
		orch:     NewOrchestrator(machine, dedup, throttle, limiter, nil, p, state),
		state:    state,
		dedup:    dedup,
		sessions: sessions,
	}
}

func evt(id, text string) models.NormalizedEvent {
	return models.NormalizedEvent{
		Platform:  models.PlatformTelegram,
		EventID:   id,
		MessageID: "m-" + id,
		ChatID:    "c1",
		UserID:    "u1",
		Text:      text,
		Timestamp: time.Now(),
	}
}

func TestRouteConvertsTimeForKnownUser(t *testing.T) {
	h := newHarness(t)
	h.state.tzByUser["u1"] = "Europe/Moscow"
	h.state.confByUser["u1"] = 1.0

	msgs, err := h.orch.Route(context.Background(), evt("e1", "созвон в 16:00"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	// 16:00 MSK is 18:00 in Tashkent, both zones DST-free.
	assert.Contains(t, msgs[0].Text, "18:00")
	assert.True(t, h.dedup.marked["telegram|e1"])
}

func TestRouteDuplicateDropped(t *testing.T) {
	h := newHarness(t)
	h.state.tzByUser["u1"] = "Europe/Moscow"
	h.state.confByUser["u1"] = 1.0

	msgs, err := h.orch.Route(context.Background(), evt("e1", "созвон в 16:00"))
	require.NoError(t, err)
	require.NotEmpty(t, msgs)

	// Same event redelivered: throttle aside, dedup alone must drop it.
	msgs, err = h.orch.Route(context.Background(), evt("e1", "созвон в 16:00"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRouteThrottleSuppressesSecondResponse(t *testing.T) {
	h := newHarness(t)
	h.state.tzByUser["u1"] = "Europe/Moscow"
	h.state.confByUser["u1"] = 1.0

	msgs, err := h.orch.Route(context.Background(), evt("e1", "созвон в 16:00"))
	require.NoError(t, err)
	require.NotEmpty(t, msgs)

	msgs, err = h.orch.Route(context.Background(), evt("e2", "или в 17:00"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
	// The throttled event was not marked: a later retry may serve it.
	assert.False(t, h.dedup.marked["telegram|e2"])
}

func TestRouteUnknownUserOpensSessionThenConverts(t *testing.T) {
	h := newHarness(t)

	// Time reference from an unknown user opens AWAITING_TIMEZONE.
	msgs, err := h.orch.Route(context.Background(), evt("e1", "meet at 3pm"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Which city")
	assert.True(t, h.dedup.marked["telegram|e1"], "session creation must mark the event")

	// Retry of the same webhook goes to the session, not a second prompt.
	// The session answer resolves and closes it.
	msgs, err = h.orch.Route(context.Background(), evt("e2", "Ташкент"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Saved: Asia/Tashkent", msgs[0].Text)
	assert.Equal(t, "Asia/Tashkent", h.state.tzByUser["u1"])

	// Next time reference now converts using the saved zone:
	// 15:00 in Tashkent is 13:00 in Moscow.
	msgs, err = h.orch.Route(context.Background(), evt("e3", "meet at 15:00"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "13:00 MSK")
}

func TestRouteSessionTurnRetryNotReplayed(t *testing.T) {
	h := newHarness(t)

	msgs, err := h.orch.Route(context.Background(), evt("e1", "meet at 3pm"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// A turn that fails to resolve burns one attempt and replies once.
	msgs, err = h.orch.Route(context.Background(), evt("e2", "qwertyuiop"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	sess := h.sessions.active["telegram|c1|u1"]
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.Context.Attempts)

	// The platform redelivers the same webhook: no second reply and no
	// second attempt burned.
	msgs, err = h.orch.Route(context.Background(), evt("e2", "qwertyuiop"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 1, h.sessions.active["telegram|c1|u1"].Context.Attempts)
}

func TestRouteRelocationOpensConfirmSession(t *testing.T) {
	h := newHarness(t)
	h.state.tzByUser["u1"] = "Europe/Moscow"
	h.state.confByUser["u1"] = 1.0

	msgs, err := h.orch.Route(context.Background(), evt("e1", "I just moved to Berlin"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "You're now in Berlin (Europe/Berlin)?")
	// Confidence was reset by the relocation handler.
	assert.Equal(t, 0.0, h.state.confByUser["u1"])

	msgs, err = h.orch.Route(context.Background(), evt("e2", "да"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Saved: Europe/Berlin", msgs[0].Text)
	assert.Equal(t, "Europe/Berlin", h.state.tzByUser["u1"])
}

func TestRouteRateLimitNotice(t *testing.T) {
	h := newHarness(t)
	h.state.tzByUser["u1"] = "Europe/Moscow"
	h.state.confByUser["u1"] = 1.0

	limiter := guard.NewRateLimiter(config.RateLimitsConfig{
		PerUser: config.WindowLimit{Requests: 1, Window: time.Minute},
		PerChat: config.WindowLimit{Requests: 100, Window: time.Minute},
	})
	h.orch.limiter = limiter
	h.orch.notices = alwaysNotify{}
	h.orch.throttle = guard.NewThrottle(0, 10)

	msgs, err := h.orch.Route(context.Background(), evt("e1", "созвон в 16:00"))
	require.NoError(t, err)
	require.NotEmpty(t, msgs)

	msgs, err = h.orch.Route(context.Background(), evt("e2", "или 17:00"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0].Text, "Slow down"))

	// Further breaches inside the same window stay silent.
	msgs, err = h.orch.Route(context.Background(), evt("e3", "а может 18:00"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRouteSilentWhenNothingDetected(t *testing.T) {
	h := newHarness(t)

	msgs, err := h.orch.Route(context.Background(), evt("e1", "nothing interesting here"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.False(t, h.dedup.marked["telegram|e1"])
}

func TestPipelineMentionHelp(t *testing.T) {
	h := newHarness(t)

	msgs, err := h.orch.Route(context.Background(), evt("e1", "@opsbot help"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "convert times")
}

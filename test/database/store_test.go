package database

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izgorodin/team-ops-assistant/pkg/config"
	"github.com/izgorodin/team-ops-assistant/pkg/identity"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/store"
)

func TestUserStoreRoundTrip(t *testing.T) {
	client := NewTestClient(t)
	users := store.NewUserStore(client.DB())
	ctx := context.Background()

	_, err := users.Get(ctx, models.PlatformTelegram, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, users.SetTimezone(ctx, models.PlatformTelegram, "u1", "Europe/Moscow", models.SourceCityPick, 1.0))

	u, err := users.Get(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", u.TzIANA)
	assert.Equal(t, 1.0, u.Confidence)
	assert.Equal(t, models.SourceCityPick, u.Source)
	assert.Nil(t, u.LastVerifiedAt)
	assert.False(t, u.UpdatedAt.Before(u.CreatedAt))

	// Web verification stamps last_verified_at.
	require.NoError(t, users.SetTimezone(ctx, models.PlatformTelegram, "u1", "Europe/Berlin", models.SourceWebVerified, 1.0))
	u, err = users.Get(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", u.TzIANA)
	assert.NotNil(t, u.LastVerifiedAt)
}

func TestUserStoreResetConfidence(t *testing.T) {
	client := NewTestClient(t)
	users := store.NewUserStore(client.DB())
	ctx := context.Background()

	assert.ErrorIs(t, users.ResetConfidence(ctx, models.PlatformSlack, "nobody"), store.ErrNotFound)

	require.NoError(t, users.SetTimezone(ctx, models.PlatformSlack, "u2", "Asia/Tashkent", models.SourceCityPick, 1.0))
	require.NoError(t, users.ResetConfidence(ctx, models.PlatformSlack, "u2"))

	u, err := users.Get(ctx, models.PlatformSlack, "u2")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tashkent", u.TzIANA, "zone kept for reference")
	assert.Zero(t, u.Confidence)
}

func TestUserStoreRateLimitNotices(t *testing.T) {
	client := NewTestClient(t)
	users := store.NewUserStore(client.DB())
	ctx := context.Background()

	// First increment creates the row.
	n, err := users.IncrementRateLimitNotices(ctx, models.PlatformTelegram, "u3")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = users.IncrementRateLimitNotices(ctx, models.PlatformTelegram, "u3")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	u, err := users.Get(ctx, models.PlatformTelegram, "u3")
	require.NoError(t, err)
	assert.Equal(t, 2, u.RateLimitNotices)
	assert.Empty(t, u.TzIANA)
}

func TestChatProjection(t *testing.T) {
	client := NewTestClient(t)
	chats := store.NewChatStore(client.DB())
	ctx := context.Background()

	steps := []struct {
		userID string
		tz     string
	}{
		{"u1", "Europe/Moscow"},
		{"u2", "Europe/Berlin"},
		{"u3", "Europe/Moscow"},
		{"u1", "Asia/Tashkent"},
		{"u2", "Asia/Tashkent"},
	}

	expected := map[string]string{}
	for _, step := range steps {
		require.NoError(t, chats.UpdateUserTimezone(ctx, models.PlatformTelegram, "c1", step.userID, step.tz))
		expected[step.userID] = step.tz

		chat, err := chats.Get(ctx, models.PlatformTelegram, "c1")
		require.NoError(t, err)
		assert.Equal(t, expected, chat.UserTimezones)

		// active_timezones is always the sorted unique projection.
		uniq := map[string]bool{}
		for _, tz := range expected {
			uniq[tz] = true
		}
		var want []string
		for tz := range uniq {
			want = append(want, tz)
		}
		sort.Strings(want)
		assert.Equal(t, want, chat.ActiveTimezones)
	}
}

func TestChatDefaultTz(t *testing.T) {
	client := NewTestClient(t)
	chats := store.NewChatStore(client.DB())
	ctx := context.Background()

	require.NoError(t, chats.SetDefaultTz(ctx, models.PlatformSlack, "C9", "Europe/London"))
	require.NoError(t, chats.UpdateUserTimezone(ctx, models.PlatformSlack, "C9", "u1", "Europe/Moscow"))

	chat, err := chats.Get(ctx, models.PlatformSlack, "C9")
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", chat.DefaultTz)
	assert.Equal(t, []string{"Europe/Moscow"}, chat.ActiveTimezones)
}

func TestDedupStoreTTL(t *testing.T) {
	client := NewTestClient(t)
	dedup := store.NewDedupStore(client.DB(), time.Second)
	ctx := context.Background()

	seen, err := dedup.Seen(ctx, models.PlatformTelegram, "e1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, dedup.MarkProcessed(ctx, models.PlatformTelegram, "e1", "c1"))
	// Repeated marks are a no-op.
	require.NoError(t, dedup.MarkProcessed(ctx, models.PlatformTelegram, "e1", "c1"))

	seen, err = dedup.Seen(ctx, models.PlatformTelegram, "e1")
	require.NoError(t, err)
	assert.True(t, seen)

	time.Sleep(1100 * time.Millisecond)

	seen, err = dedup.Seen(ctx, models.PlatformTelegram, "e1")
	require.NoError(t, err)
	assert.False(t, seen, "expired entry is invisible to reads")

	deleted, err := dedup.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func newSession(goal models.SessionGoal, ttl time.Duration) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:        uuid.NewString(),
		Platform:  models.PlatformTelegram,
		ChatID:    "c1",
		UserID:    "u1",
		Goal:      goal,
		Status:    models.SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestSessionOneActivePerUser(t *testing.T) {
	client := NewTestClient(t)
	sessions := store.NewSessionStore(client.DB())
	ctx := context.Background()

	first := newSession(models.GoalAwaitingTimezone, 30*time.Minute)
	require.NoError(t, sessions.Create(ctx, first))

	second := newSession(models.GoalAwaitingTimezone, 30*time.Minute)
	assert.ErrorIs(t, sessions.Create(ctx, second), store.ErrActiveSessionExists)

	active, err := sessions.GetActive(ctx, models.PlatformTelegram, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	// Closing the winner frees the slot.
	first.Status = models.SessionCompleted
	require.NoError(t, sessions.Update(ctx, first))
	require.NoError(t, sessions.Create(ctx, second))
}

func TestSessionContextRoundTrip(t *testing.T) {
	client := NewTestClient(t)
	sessions := store.NewSessionStore(client.DB())
	ctx := context.Background()

	sess := newSession(models.GoalConfirmRelocation, 30*time.Minute)
	sess.Context = models.SessionContext{
		Attempts:     2,
		History:      []models.SessionTurn{{Role: "user", Text: "я переехал в Берлин"}},
		ResolvedCity: "Berlin",
		ResolvedTz:   "Europe/Berlin",
		VerifyURL:    "https://bot.example.com/verify?token=abc",
	}
	require.NoError(t, sessions.Create(ctx, sess))

	loaded, err := sessions.GetActive(ctx, models.PlatformTelegram, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, sess.Context, loaded.Context)
	assert.Equal(t, models.GoalConfirmRelocation, loaded.Goal)
}

func TestSessionExpiry(t *testing.T) {
	client := NewTestClient(t)
	sessions := store.NewSessionStore(client.DB())
	ctx := context.Background()

	sess := newSession(models.GoalAwaitingTimezone, -time.Minute)
	require.NoError(t, sessions.Create(ctx, sess))

	// Expired-but-ACTIVE rows are invisible to lookups.
	_, err := sessions.GetActive(ctx, models.PlatformTelegram, "c1", "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	expired, err := sessions.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	// Idempotent.
	expired, err = sessions.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestSessionUpdateMissing(t *testing.T) {
	client := NewTestClient(t)
	sessions := store.NewSessionStore(client.DB())

	sess := newSession(models.GoalAwaitingTimezone, time.Minute)
	assert.ErrorIs(t, sessions.Update(context.Background(), sess), store.ErrNotFound)
}

func TestIdentityManagerOverStores(t *testing.T) {
	client := NewTestClient(t)
	users := store.NewUserStore(client.DB())
	chats := store.NewChatStore(client.DB())
	ctx := context.Background()

	cfg := config.ConfidenceConfig{
		DecayPerDay:           0.05,
		VerifyThreshold:       0.7,
		ChatDefaultConfidence: 0.5,
	}
	mgr := identity.NewManager(users, chats, cfg)

	// Unknown user, no chat default: nothing to resolve.
	resolved := mgr.Effective(ctx, models.PlatformTelegram, "u1", "c1", "")
	assert.Empty(t, resolved.Tz)

	// Saved zone resolves and projects into the chat.
	require.NoError(t, mgr.Update(ctx, models.PlatformTelegram, "u1", "c1", "Europe/Moscow", models.SourceCityPick, nil))
	resolved = mgr.Effective(ctx, models.PlatformTelegram, "u1", "c1", "")
	assert.Equal(t, "Europe/Moscow", resolved.Tz)
	assert.Equal(t, models.SourceCityPick, resolved.Source)

	chat, err := chats.Get(ctx, models.PlatformTelegram, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Europe/Moscow"}, chat.ActiveTimezones)

	// Decay below the threshold falls through to the chat default.
	_, err = client.DB().ExecContext(ctx,
		`UPDATE users SET updated_at = now() - interval '10 days' WHERE user_id = 'u1'`)
	require.NoError(t, err)
	require.NoError(t, chats.SetDefaultTz(ctx, models.PlatformTelegram, "c1", "Europe/London"))

	resolved = mgr.Effective(ctx, models.PlatformTelegram, "u1", "c1", "")
	assert.Equal(t, "Europe/London", resolved.Tz)
	assert.Equal(t, models.SourceChatDefault, resolved.Source)

	// The zone is still stored, so the orchestrator re-verifies rather
	// than asking from scratch.
	tz, ok := mgr.HasStoredTz(ctx, models.PlatformTelegram, "u1")
	assert.True(t, ok)
	assert.Equal(t, "Europe/Moscow", tz)

	// Relocation zeroes confidence entirely.
	require.NoError(t, mgr.InvalidateForRelocation(ctx, models.PlatformTelegram, "u1"))
	u, err := users.Get(ctx, models.PlatformTelegram, "u1")
	require.NoError(t, err)
	assert.Zero(t, u.Confidence)
}

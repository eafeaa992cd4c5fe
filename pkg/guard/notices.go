package guard

import (
	"context"
	"log/slog"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/store"
)

// Notices enforces the lifetime ceiling on rate-limit notices per user.
// The counter lives on the user row so the ceiling survives restarts.
type Notices struct {
	users  *store.UserStore
	max    int
	logger *slog.Logger
}

// NewNotices creates the gate. max <= 0 disables notices entirely.
func NewNotices(users *store.UserStore, max int) *Notices {
	return &Notices{
		users:  users,
		max:    max,
		logger: slog.Default().With("component", "rl_notices"),
	}
}

// ShouldNotify consumes one notice slot and reports whether the user
// may still be told they are rate-limited. Storage failures suppress
// the notice rather than risking an unbounded stream of them.
func (n *Notices) ShouldNotify(ctx context.Context, platform models.Platform, userID string) bool {
	if n == nil || n.max <= 0 {
		return false
	}
	count, err := n.users.IncrementRateLimitNotices(ctx, platform, userID)
	if err != nil {
		n.logger.Warn("notice counter update failed, suppressing notice", "error", err)
		return false
	}
	return count <= n.max
}

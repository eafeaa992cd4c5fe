package guard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/store"
)

// Dedup is the persistent event dedup gate. Reads fail soft (an
// unreachable store admits the event and logs); MarkProcessed fails
// loud because idempotency depends on it.
type Dedup struct {
	store  *store.DedupStore
	logger *slog.Logger
}

// NewDedup wraps the dedup store.
func NewDedup(s *store.DedupStore) *Dedup {
	return &Dedup{
		store:  s,
		logger: slog.Default().With("component", "dedup"),
	}
}

// IsDuplicate reports whether the event was already admitted within the
// dedup TTL.
func (d *Dedup) IsDuplicate(ctx context.Context, platform models.Platform, eventID string) bool {
	seen, err := d.store.Seen(ctx, platform, eventID)
	if err != nil {
		d.logger.Warn("dedup read failed, admitting event", "error", err, "event_id", eventID)
		return false
	}
	return seen
}

// MarkProcessed records that a user-visible action was decided for the
// event. Must be called only at that point, never earlier.
func (d *Dedup) MarkProcessed(ctx context.Context, platform models.Platform, eventID, chatID string) error {
	if err := d.store.MarkProcessed(ctx, platform, eventID, chatID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// DedupStore persists the (platform, event_id) dedup window.
type DedupStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewDedupStore creates a DedupStore with the given entry TTL.
func NewDedupStore(db *sql.DB, ttl time.Duration) *DedupStore {
	return &DedupStore{db: db, ttl: ttl}
}

// Seen reports whether the event was already admitted past the dedup gate
// within the TTL window.
func (s *DedupStore) Seen(ctx context.Context, platform models.Platform, eventID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM dedupe_events
			WHERE platform = $1 AND event_id = $2 AND created_at > now() - make_interval(secs => $3)
		)`,
		string(platform), eventID, s.ttl.Seconds()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check dedup: %w", err)
	}
	return exists, nil
}

// MarkProcessed records the event as processed. Idempotent: a concurrent or
// repeated mark of the same event is a no-op.
func (s *DedupStore) MarkProcessed(ctx context.Context, platform models.Platform, eventID, chatID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dedupe_events (platform, event_id, chat_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (platform, event_id) DO NOTHING`,
		string(platform), eventID, chatID)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// DeleteExpired removes dedup rows older than the TTL. Called by the
// cleanup service.
func (s *DedupStore) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM dedupe_events WHERE created_at <= now() - make_interval(secs => $1)`,
		s.ttl.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired dedup rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

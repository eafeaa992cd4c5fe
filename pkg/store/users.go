package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// UserStore persists per-user timezone identity state.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a UserStore.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Get loads the timezone state for (platform, userID).
// Returns ErrNotFound when no row exists.
func (s *UserStore) Get(ctx context.Context, platform models.Platform, userID string) (*models.UserTzState, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT tz_iana, confidence, source, created_at, updated_at, last_verified_at, rl_notices
		FROM users WHERE platform = $1 AND user_id = $2`,
		string(platform), userID)

	u := models.UserTzState{Platform: platform, UserID: userID}
	var lastVerified sql.NullTime
	err := row.Scan(&u.TzIANA, &u.Confidence, &u.Source, &u.CreatedAt, &u.UpdatedAt, &lastVerified, &u.RateLimitNotices)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	u.LastVerifiedAt = nullTime(lastVerified)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// SetTimezone writes a new timezone assignment for the user, creating the
// row if needed. updated_at is always stamped; last_verified_at only for
// web-verified assignments.
func (s *UserStore) SetTimezone(ctx context.Context, platform models.Platform, userID, tz string, source models.TzSource, confidence float64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	verified := source == models.SourceWebVerified
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (platform, user_id, tz_iana, confidence, source, created_at, updated_at, last_verified_at)
		VALUES ($1, $2, $3, $4, $5, now(), now(), CASE WHEN $6 THEN now() END)
		ON CONFLICT (platform, user_id) DO UPDATE SET
			tz_iana = EXCLUDED.tz_iana,
			confidence = EXCLUDED.confidence,
			source = EXCLUDED.source,
			updated_at = now(),
			last_verified_at = CASE WHEN $6 THEN now() ELSE users.last_verified_at END`,
		string(platform), userID, tz, confidence, string(source), verified)
	if err != nil {
		return fmt.Errorf("failed to save user timezone: %w", err)
	}
	return nil
}

// ResetConfidence zeroes the user's confidence while keeping tz_iana for
// historical reference. Used on confirmed relocation.
func (s *UserStore) ResetConfidence(ctx context.Context, platform models.Platform, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET confidence = 0, updated_at = now()
		WHERE platform = $1 AND user_id = $2`,
		string(platform), userID)
	if err != nil {
		return fmt.Errorf("failed to reset user confidence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementRateLimitNotices bumps the lifetime rate-limit notice counter and
// returns the new value. The row is created on first use.
func (s *UserStore) IncrementRateLimitNotices(ctx context.Context, platform models.Platform, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (platform, user_id, rl_notices, created_at, updated_at)
		VALUES ($1, $2, 1, now(), now())
		ON CONFLICT (platform, user_id) DO UPDATE SET rl_notices = users.rl_notices + 1
		RETURNING rl_notices`,
		string(platform), userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate-limit notices: %w", err)
	}
	return count, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// SessionStore persists multi-turn state-collection sessions.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// GetActive returns the ACTIVE, unexpired session for (platform, chatID,
// userID), or ErrNotFound. An expired-but-still-ACTIVE row is treated as
// absent; the cleanup service marks it EXPIRED later.
func (s *SessionStore) GetActive(ctx context.Context, platform models.Platform, chatID, userID string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, goal, status, context, created_at, updated_at, expires_at
		FROM sessions
		WHERE platform = $1 AND chat_id = $2 AND user_id = $3
		  AND status = 'ACTIVE' AND expires_at > now()`,
		string(platform), chatID, userID)
	return s.scanSession(row, platform, chatID, userID)
}

// Create inserts a new ACTIVE session. Returns ErrActiveSessionExists if
// another ACTIVE session already holds the partial unique index slot; the
// caller should re-read and reuse the winner.
func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("failed to encode session context: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, platform, chat_id, user_id, goal, status, context, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now(), $8)`,
		sess.ID, string(sess.Platform), sess.ChatID, sess.UserID,
		string(sess.Goal), string(sess.Status), contextJSON, sess.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrActiveSessionExists
	}
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Update persists the session's goal, status, context and expiry.
func (s *SessionStore) Update(ctx context.Context, sess *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	contextJSON, err := json.Marshal(sess.Context)
	if err != nil {
		return fmt.Errorf("failed to encode session context: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET goal = $2, status = $3, context = $4, updated_at = now(), expires_at = $5
		WHERE session_id = $1`,
		sess.ID, string(sess.Goal), string(sess.Status), contextJSON, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireOverdue marks ACTIVE sessions whose TTL elapsed as EXPIRED.
// Idempotent; called by the cleanup service.
func (s *SessionStore) ExpireOverdue(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = 'EXPIRED', updated_at = now()
		WHERE status = 'ACTIVE' AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SessionStore) scanSession(row *sql.Row, platform models.Platform, chatID, userID string) (*models.Session, error) {
	sess := models.Session{Platform: platform, ChatID: chatID, UserID: userID}
	var contextJSON []byte
	err := row.Scan(&sess.ID, &sess.Goal, &sess.Status, &contextJSON,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err := json.Unmarshal(contextJSON, &sess.Context); err != nil {
		return nil, fmt.Errorf("failed to decode session context: %w", err)
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	sess.UpdatedAt = sess.UpdatedAt.UTC()
	sess.ExpiresAt = sess.ExpiresAt.UTC()
	return &sess, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// ChatStore persists per-chat timezone state.
type ChatStore struct {
	db *sql.DB
}

// NewChatStore creates a ChatStore.
func NewChatStore(db *sql.DB) *ChatStore {
	return &ChatStore{db: db}
}

// Get loads the chat state for (platform, chatID).
// Returns ErrNotFound when no row exists.
func (s *ChatStore) Get(ctx context.Context, platform models.Platform, chatID string) (*models.ChatState, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT default_tz, user_timezones, active_timezones, created_at, updated_at
		FROM chats WHERE platform = $1 AND chat_id = $2`,
		string(platform), chatID)

	c := models.ChatState{Platform: platform, ChatID: chatID}
	var userTzs, activeTzs []byte
	err := row.Scan(&c.DefaultTz, &userTzs, &activeTzs, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if err := json.Unmarshal(userTzs, &c.UserTimezones); err != nil {
		return nil, fmt.Errorf("failed to decode user_timezones: %w", err)
	}
	if err := json.Unmarshal(activeTzs, &c.ActiveTimezones); err != nil {
		return nil, fmt.Errorf("failed to decode active_timezones: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// UpdateUserTimezone sets user_timezones[userID] = tz and recomputes the
// active_timezones projection in a single statement, so concurrent updates
// to different users of the same chat cannot observe a stale projection.
func (s *ChatStore) UpdateUserTimezone(ctx context.Context, platform models.Platform, chatID, userID, tz string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (platform, chat_id, user_timezones, active_timezones, created_at, updated_at)
		VALUES ($1, $2, jsonb_build_object($3::text, $4::text), jsonb_build_array($4::text), now(), now())
		ON CONFLICT (platform, chat_id) DO UPDATE SET
			user_timezones = chats.user_timezones || jsonb_build_object($3::text, $4::text),
			active_timezones = (
				SELECT COALESCE(jsonb_agg(DISTINCT v.value ORDER BY v.value), '[]'::jsonb)
				FROM jsonb_each_text(chats.user_timezones || jsonb_build_object($3::text, $4::text)) AS v
				WHERE v.value <> ''
			),
			updated_at = now()`,
		string(platform), chatID, userID, tz)
	if err != nil {
		return fmt.Errorf("failed to update chat timezone projection: %w", err)
	}
	return nil
}

// SetDefaultTz sets the chat-wide fallback timezone.
func (s *ChatStore) SetDefaultTz(ctx context.Context, platform models.Platform, chatID, tz string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (platform, chat_id, default_tz, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (platform, chat_id) DO UPDATE SET
			default_tz = EXCLUDED.default_tz,
			updated_at = now()`,
		string(platform), chatID, tz)
	if err != nil {
		return fmt.Errorf("failed to set chat default timezone: %w", err)
	}
	return nil
}

// Package store contains the SQL repositories for the four persisted
// collections: users, chats, dedupe events, and sessions.
package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested row does not exist (or is
// expired, for TTL-bearing collections).
var ErrNotFound = errors.New("store: not found")

// ErrActiveSessionExists is returned when creating a session would violate
// the one-ACTIVE-session-per-user-per-chat constraint. The caller should
// re-read and reuse the winner's session.
var ErrActiveSessionExists = errors.New("store: active session already exists")

// queryTimeout bounds every store operation.
const queryTimeout = 5 * time.Second

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// nullTime converts a nullable column to *time.Time.
func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

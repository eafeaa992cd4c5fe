// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// expiredDeleter removes dedup entries past their TTL (store.DedupStore).
type expiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// overdueExpirer marks overdue ACTIVE sessions EXPIRED (store.SessionStore).
type overdueExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// Service periodically enforces retention policies:
//   - Deletes dedup entries whose TTL has elapsed
//   - Marks overdue ACTIVE sessions EXPIRED
//
// Reads already apply expiry predicates, so the loop is purely about
// keeping the tables small. All operations are idempotent and safe to
// run from multiple pods.
type Service struct {
	dedup    expiredDeleter
	sessions overdueExpirer
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(dedup expiredDeleter, sessions overdueExpirer, interval time.Duration) *Service {
	return &Service{
		dedup:    dedup,
		sessions: sessions,
		interval: interval,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started", "interval", s.interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.deleteExpiredDedup(ctx)
	s.expireOverdueSessions(ctx)
}

func (s *Service) deleteExpiredDedup(ctx context.Context) {
	count, err := s.dedup.DeleteExpired(ctx)
	if err != nil {
		slog.Error("Retention: dedup cleanup failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: deleted expired dedup entries", "count", count)
	}
}

func (s *Service) expireOverdueSessions(ctx context.Context) {
	count, err := s.sessions.ExpireOverdue(ctx)
	if err != nil {
		slog.Error("Retention: session expiry failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: expired overdue sessions", "count", count)
	}
}

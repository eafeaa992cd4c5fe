package llm

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when an operation's circuit breaker is open
// and calls are being shed.
var ErrBreakerOpen = errors.New("llm circuit breaker open")

// breaker is a per-operation circuit breaker. It opens after a number of
// consecutive failures and lets a single probe through once the reset
// timeout elapses.
type breaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time

	consecutiveFailures int
	openedAt            time.Time
	open                bool
}

func newBreaker(failureThreshold int, resetTimeout time.Duration) *breaker {
	return &breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
}

// allow reports whether a call may proceed right now.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.resetTimeout {
		// Half-open: permit one probe, push the window forward so
		// concurrent callers do not all probe at once.
		b.openedAt = b.now()
		return true
	}
	return false
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.open = false
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold {
		b.open = true
		b.openedAt = b.now()
	}
}

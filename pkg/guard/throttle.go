// Package guard implements the admission gates in front of the
// pipeline: persistent event dedup, per-chat response throttling,
// sliding-window rate limits, and the rate-limit notice ceiling.
package guard

import (
	"sync"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// Throttle suppresses back-to-back responses into the same chat. It is
// purely in-memory; a restart only loses at most one throttle window.
type Throttle struct {
	mu       sync.Mutex
	last     map[string]time.Time
	interval time.Duration
	// cleanup removes entries older than interval*multiplier, triggered
	// lazily when the map size crosses a multiple of multiplier.
	multiplier int
	now        func() time.Time
}

// NewThrottle creates a throttle with the given response interval.
func NewThrottle(interval time.Duration, cleanupMultiplier int) *Throttle {
	if cleanupMultiplier <= 0 {
		cleanupMultiplier = 10
	}
	return &Throttle{
		last:       make(map[string]time.Time),
		interval:   interval,
		multiplier: cleanupMultiplier,
		now:        time.Now,
	}
}

func throttleKey(platform models.Platform, chatID string) string {
	return string(platform) + "|" + chatID
}

// IsThrottled reports whether the chat got a response within the
// throttle interval.
func (t *Throttle) IsThrottled(platform models.Platform, chatID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[throttleKey(platform, chatID)]
	if !ok {
		return false
	}
	return t.now().Sub(last) < t.interval
}

// RecordResponse stamps the chat's last response time.
func (t *Throttle) RecordResponse(platform models.Platform, chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[throttleKey(platform, chatID)] = t.now()
	if len(t.last)%t.multiplier == 0 {
		t.cleanupLocked()
	}
}

func (t *Throttle) cleanupLocked() {
	cutoff := t.now().Add(-t.interval * time.Duration(t.multiplier))
	for k, v := range t.last {
		if v.Before(cutoff) {
			delete(t.last, k)
		}
	}
}

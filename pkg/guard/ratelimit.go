package guard

import (
	"sync"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/config"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// LimitReason names which window rejected the request.
type LimitReason string

const (
	ReasonNone LimitReason = ""
	ReasonUser LimitReason = "user"
	ReasonChat LimitReason = "chat"
)

// Decision is the rate limiter's verdict for one event. FirstBreach is
// set on the first rejection since the user was last admitted; further
// breaches inside the same window report false so only one notice is
// ever emitted per window.
type Decision struct {
	Allowed     bool
	Reason      LimitReason
	RetryAfter  time.Duration
	FirstBreach bool
}

// RateLimiter enforces two sliding windows, per user and per chat. The
// user window is checked first; the first breached window names the
// reason. Windows live in memory; the limiter needs the timestamp of
// the oldest request in a window to compute retry_after, which is why
// x/time/rate (token buckets, no window contents) does not fit here.
type RateLimiter struct {
	mu      sync.Mutex
	perUser  config.WindowLimit
	perChat  config.WindowLimit
	users    map[string][]time.Time
	chats    map[string][]time.Time
	breached map[string]bool
	now      func() time.Time
}

// NewRateLimiter creates a limiter from the configured windows.
func NewRateLimiter(cfg config.RateLimitsConfig) *RateLimiter {
	return &RateLimiter{
		perUser:  cfg.PerUser,
		perChat:  cfg.PerChat,
		users:    make(map[string][]time.Time),
		chats:    make(map[string][]time.Time),
		breached: make(map[string]bool),
		now:      time.Now,
	}
}

// Check admits or rejects one request and records it when admitted.
func (r *RateLimiter) Check(platform models.Platform, userID, chatID string) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	userKey := string(platform) + "|" + userID
	chatKey := string(platform) + "|" + chatID

	r.users[userKey] = prune(r.users[userKey], now, r.perUser.Window)
	r.chats[chatKey] = prune(r.chats[chatKey], now, r.perChat.Window)

	if len(r.users[userKey]) >= r.perUser.Requests {
		return Decision{
			Reason:      ReasonUser,
			RetryAfter:  retryAfter(r.users[userKey], now, r.perUser.Window),
			FirstBreach: r.markBreached(userKey),
		}
	}
	if len(r.chats[chatKey]) >= r.perChat.Requests {
		return Decision{
			Reason:      ReasonChat,
			RetryAfter:  retryAfter(r.chats[chatKey], now, r.perChat.Window),
			FirstBreach: r.markBreached(userKey),
		}
	}

	delete(r.breached, userKey)
	r.users[userKey] = append(r.users[userKey], now)
	r.chats[chatKey] = append(r.chats[chatKey], now)
	return Decision{Allowed: true}
}

// markBreached records the breach and reports whether it was the first
// since the key was last admitted.
func (r *RateLimiter) markBreached(key string) bool {
	first := !r.breached[key]
	r.breached[key] = true
	return first
}

func prune(window []time.Time, now time.Time, span time.Duration) []time.Time {
	cutoff := now.Add(-span)
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	return window[i:]
}

func retryAfter(window []time.Time, now time.Time, span time.Duration) time.Duration {
	if len(window) == 0 {
		return 0
	}
	d := span - now.Sub(window[0])
	if d < 0 {
		return 0
	}
	return d
}

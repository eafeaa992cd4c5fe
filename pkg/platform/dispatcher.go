package platform

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// Dispatcher fans outbound messages to the registered adapters with
// per-platform send pacing. Delivery failures are logged and counted
// but never surfaced to the pipeline; a reply that cannot be delivered
// is simply lost.
type Dispatcher struct {
	adapters    map[models.Platform]Adapter
	limiters    map[models.Platform]*rate.Limiter
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewDispatcher registers adapters and builds one limiter per platform.
// ratePerSec <= 0 disables pacing.
func NewDispatcher(adapters []Adapter, ratePerSec float64, burst int, sendTimeout time.Duration) *Dispatcher {
	if burst < 1 {
		burst = 1
	}
	d := &Dispatcher{
		adapters:    make(map[models.Platform]Adapter, len(adapters)),
		limiters:    make(map[models.Platform]*rate.Limiter, len(adapters)),
		sendTimeout: sendTimeout,
		logger:      slog.Default().With("component", "platform.dispatcher"),
	}
	for _, a := range adapters {
		d.adapters[a.Platform()] = a
		limit := rate.Inf
		if ratePerSec > 0 {
			limit = rate.Limit(ratePerSec)
		}
		d.limiters[a.Platform()] = rate.NewLimiter(limit, burst)
	}
	return d
}

// Adapter returns the registered adapter for a platform, or nil.
func (d *Dispatcher) Adapter(platform models.Platform) Adapter {
	return d.adapters[platform]
}

// Dispatch delivers the messages in order, pacing per platform. Returns
// the number of messages actually delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, messages []models.OutboundMessage) int {
	delivered := 0
	for _, msg := range messages {
		adapter, ok := d.adapters[msg.Platform]
		if !ok {
			d.logger.Warn("No adapter registered for platform, dropping message",
				"platform", msg.Platform, "chat_id", msg.ChatID)
			continue
		}

		if err := d.limiters[msg.Platform].Wait(ctx); err != nil {
			d.logger.Warn("Send pacing interrupted, dropping remaining messages",
				"platform", msg.Platform, "error", err)
			return delivered
		}

		if err := d.send(ctx, adapter, msg); err != nil {
			d.logger.Error("Failed to deliver message",
				"platform", msg.Platform, "chat_id", msg.ChatID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (d *Dispatcher) send(ctx context.Context, adapter Adapter, msg models.OutboundMessage) error {
	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}
	return adapter.Send(ctx, msg)
}

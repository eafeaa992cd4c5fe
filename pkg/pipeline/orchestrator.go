package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/izgorodin/team-ops-assistant/pkg/guard"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/sessionflow"
)

// storedTzReader answers whether the user has any stored zone, used to
// choose between first-time and re-verify session goals.
type storedTzReader interface {
	HasStoredTz(ctx context.Context, platform models.Platform, userID string) (string, bool)
}

// dedupGate is the persistent dedup interface (guard.Dedup).
type dedupGate interface {
	IsDuplicate(ctx context.Context, platform models.Platform, eventID string) bool
	MarkProcessed(ctx context.Context, platform models.Platform, eventID, chatID string) error
}

// noticeGate is the rate-limit notice ceiling (guard.Notices).
type noticeGate interface {
	ShouldNotify(ctx context.Context, platform models.Platform, userID string) bool
}

// Orchestrator is the top-level event router: session first, then the
// admission gates, then the pipeline. It owns the mark-processed point
// that makes user-visible effects at-most-once under webhook retries.
type Orchestrator struct {
	sessions *sessionflow.Machine
	dedup    dedupGate
	throttle *guard.Throttle
	limiter  *guard.RateLimiter
	notices  noticeGate
	pipeline *Pipeline
	identity storedTzReader
	logger   *slog.Logger
}

// NewOrchestrator wires the router.
func NewOrchestrator(sessions *sessionflow.Machine, dedup dedupGate, throttle *guard.Throttle, limiter *guard.RateLimiter, notices noticeGate, p *Pipeline, identity storedTzReader) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		dedup:    dedup,
		throttle: throttle,
		limiter:  limiter,
		notices:  notices,
		pipeline: p,
		identity: identity,
		logger:   slog.Default().With("component", "orchestrator"),
	}
}

// Route processes one inbound event end to end and returns the
// messages to send, if any.
func (o *Orchestrator) Route(ctx context.Context, event models.NormalizedEvent) ([]models.OutboundMessage, error) {
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	// An ACTIVE session owns every message from its user in its chat.
	// Turns are deduped like any other event: a webhook retry must not
	// re-run the turn, burn an attempt, or repeat the reply.
	if sess := o.sessions.Active(ctx, event.Platform, event.ChatID, event.UserID); sess != nil {
		if o.dedup.IsDuplicate(ctx, event.Platform, event.EventID) {
			o.logger.Debug("duplicate session turn dropped", "event_id", event.EventID)
			return nil, nil
		}
		msgs, err := sess.HandleTurn(ctx, event)
		if err != nil {
			return nil, err
		}
		if err := o.dedup.MarkProcessed(ctx, event.Platform, event.EventID, event.ChatID); err != nil {
			o.logger.Error("mark-processed failed, dropping session reply", "error", err)
			return nil, nil
		}
		return msgs, nil
	}

	if o.dedup.IsDuplicate(ctx, event.Platform, event.EventID) {
		o.logger.Debug("duplicate event dropped", "event_id", event.EventID)
		return nil, nil
	}
	if o.throttle.IsThrottled(event.Platform, event.ChatID) {
		return nil, nil
	}
	if decision := o.limiter.Check(event.Platform, event.UserID, event.ChatID); !decision.Allowed {
		return o.rateLimited(ctx, event, decision), nil
	}

	result := o.pipeline.Process(ctx, event)
	for _, e := range result.Errors {
		o.logger.Warn("pipeline component error", "error", e)
	}

	if result.NeedsStateCollection && result.StateTrigger != nil {
		return o.openSession(ctx, event, result.StateTrigger)
	}

	if len(result.Messages) == 0 {
		// Nothing user-visible was decided; the event stays unmarked so
		// a webhook retry gets a fresh run.
		return nil, nil
	}

	if err := o.dedup.MarkProcessed(ctx, event.Platform, event.EventID, event.ChatID); err != nil {
		// Dropping the response is safer than risking a double-send.
		o.logger.Error("mark-processed failed, dropping response", "error", err)
		return nil, nil
	}
	o.throttle.RecordResponse(event.Platform, event.ChatID)
	return result.Messages, nil
}

// openSession turns a state-collection request into a session with the
// right goal, marking the event processed so retries do not re-open it.
func (o *Orchestrator) openSession(ctx context.Context, event models.NormalizedEvent, trigger *models.DetectedTrigger) ([]models.OutboundMessage, error) {
	goal, sctx := o.sessionPlan(ctx, event, trigger)

	_, msgs, err := o.sessions.Open(ctx, event, goal, sctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	if err := o.dedup.MarkProcessed(ctx, event.Platform, event.EventID, event.ChatID); err != nil {
		o.logger.Error("mark-processed failed after session open", "error", err)
		return nil, nil
	}
	return msgs, nil
}

// sessionPlan picks the goal and seeds the session context from the
// originating trigger.
func (o *Orchestrator) sessionPlan(ctx context.Context, event models.NormalizedEvent, trigger *models.DetectedTrigger) (models.SessionGoal, models.SessionContext) {
	sctx := models.SessionContext{TriggerData: trigger.Data}

	city, _ := trigger.Data[models.DataCity].(string)
	tz, _ := trigger.Data[models.DataResolvedTz].(string)

	switch {
	case trigger.Type == models.TriggerGeoIntent:
		sctx.ResolvedCity = city
		sctx.ResolvedTz = tz
		return models.GoalClarifyGeoIntent, sctx

	case trigger.Type == models.TriggerRelocation && city != "" && tz != "":
		sctx.ResolvedCity = city
		sctx.ResolvedTz = tz
		return models.GoalConfirmRelocation, sctx

	default:
		if existing, ok := o.identity.HasStoredTz(ctx, event.Platform, event.UserID); ok {
			sctx.ExistingTz = existing
			return models.GoalReverifyTimezone, sctx
		}
		return models.GoalAwaitingTimezone, sctx
	}
}

// rateLimited optionally tells the user once per notice slot.
func (o *Orchestrator) rateLimited(ctx context.Context, event models.NormalizedEvent, decision guard.Decision) []models.OutboundMessage {
	o.logger.Info("rate limited",
		"reason", decision.Reason, "retry_after", decision.RetryAfter,
		"user_id", event.UserID, "chat_id", event.ChatID)

	// Only the first breach in a window may speak; repeats stay silent.
	if !decision.FirstBreach {
		return nil
	}
	if o.notices == nil || !o.notices.ShouldNotify(ctx, event.Platform, event.UserID) {
		return nil
	}
	return []models.OutboundMessage{{
		Platform:         event.Platform,
		ChatID:           event.ChatID,
		Text:             fmt.Sprintf("Slow down a little: try again in %d seconds.", int(decision.RetryAfter.Seconds())),
		ReplyToMessageID: event.MessageID,
		ParseMode:        models.ParseModePlain,
	}}
}

package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// confidenceInvalidator is the slice of the identity manager the
// relocation handler needs.
type confidenceInvalidator interface {
	InvalidateForRelocation(ctx context.Context, platform models.Platform, userID string) error
}

// RelocationHandler reacts to a relocation statement by zeroing the
// user's timezone confidence. It emits no messages itself; the
// orchestrator turns the returned state-collection request into a
// confirmation or re-verification session.
type RelocationHandler struct {
	identity confidenceInvalidator
	logger   *slog.Logger
}

// NewRelocationHandler creates the handler.
func NewRelocationHandler(identity confidenceInvalidator) *RelocationHandler {
	return &RelocationHandler{
		identity: identity,
		logger:   slog.Default().With("component", "relocation_handler"),
	}
}

// Handle implements Handler.
func (h *RelocationHandler) Handle(ctx context.Context, event models.NormalizedEvent, trigger models.DetectedTrigger, _ models.ResolvedContext) (models.HandlerResult, error) {
	if err := h.identity.InvalidateForRelocation(ctx, event.Platform, event.UserID); err != nil {
		return models.HandlerResult{}, fmt.Errorf("relocation invalidation failed: %w", err)
	}
	h.logger.Info("relocation detected, confidence reset",
		"platform", event.Platform, "user_id", event.UserID)
	return models.HandlerResult{NeedsStateCollection: true, Trigger: &trigger}, nil
}

// Package handlers contains the actions taken for detected triggers:
// rendering time conversions, invalidating identity on relocation, and
// answering direct mentions.
package handlers

import (
	"context"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// Handler acts on one trigger within the event's resolved context.
type Handler interface {
	Handle(ctx context.Context, event models.NormalizedEvent, trigger models.DetectedTrigger, rc models.ResolvedContext) (models.HandlerResult, error)
}

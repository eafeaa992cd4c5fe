// Package platform adapts the messaging networks to the pipeline:
// inbound wire payloads become NormalizedEvents, outbound messages are
// sent through each network's API behind a pacing dispatcher.
package platform

import (
	"context"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// Adapter is one messaging network. Normalize returns nil for any
// payload that is not a processable user text message; that is the
// contract, not an error.
type Adapter interface {
	Platform() models.Platform
	Normalize(raw []byte) *models.NormalizedEvent
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// Package detect turns normalized inbound events into triggers. Each
// detector is independent; the pipeline fans the event out to all of
// them and merges the results.
package detect

import (
	"context"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// Detector inspects one event and returns zero or more triggers.
// Detectors must be safe for concurrent use.
type Detector interface {
	Name() string
	Detect(ctx context.Context, event models.NormalizedEvent) ([]models.DetectedTrigger, error)
}

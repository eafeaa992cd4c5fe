package sessionflow

import (
	"context"
	"strings"

	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/timeparse"
)

// handleTimezoneCollection advances AWAITING_TIMEZONE and
// REVERIFY_TIMEZONE sessions. Resolution order: configured team city,
// zone abbreviation, then the geocoder (which carries Russian case
// normalization and the LLM normalizer when wired).
func (m *Machine) handleTimezoneCollection(ctx context.Context, sess *models.Session, event models.NormalizedEvent) ([]models.OutboundMessage, error) {
	if sess.Goal == models.GoalReverifyTimezone &&
		sess.Context.ExistingTz != "" && isConfirmation(event.Text) {
		return m.saveTimezone(ctx, sess, event, sess.Context.ExistingTz, models.SourceCityPick)
	}

	if tz := m.resolveUserTimezone(ctx, sess, event.Text); tz != "" {
		return m.saveTimezone(ctx, sess, event, tz, models.SourceCityPick)
	}

	sess.Context.Attempts++
	if msgs := m.failIfExhausted(sess, event); msgs != nil {
		return msgs, nil
	}
	return []models.OutboundMessage{m.reply(event, cityNotFound)}, nil
}

// resolveUserTimezone maps a free-form answer to an IANA zone, or ""
// when nothing resolves.
func (m *Machine) resolveUserTimezone(ctx context.Context, sess *models.Session, text string) string {
	cleaned := geo.StripTrailingNoise(text)

	if tz, ok := m.teamCities[strings.ToLower(strings.TrimSpace(cleaned))]; ok {
		return tz
	}
	if tz := timeparse.ExtractTimezoneHint(text); tz != "" {
		return tz
	}
	if match, ok := m.geocoder.Resolve(ctx, cleaned); ok {
		return match.Timezone
	}

	// The originating trigger may already have resolved a city even
	// though this turn's text does not.
	if sess.Context.TriggerData != nil {
		if tz, ok := sess.Context.TriggerData[models.DataResolvedTz].(string); ok && tz != "" {
			return tz
		}
	}
	return ""
}

package sessionflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// handleGeoIntent advances a CLARIFY_GEO_INTENT session: the finder saw
// a city but neither a time pattern nor a relocation pattern fired, and
// the LLM could not disambiguate. The user tells us which it was.
func (m *Machine) handleGeoIntent(ctx context.Context, sess *models.Session, event models.NormalizedEvent) ([]models.OutboundMessage, error) {
	answer := strings.ToLower(event.Text)

	switch {
	case strings.Contains(answer, "time") || strings.Contains(answer, "врем") ||
		strings.Contains(answer, "сколько"):
		// One-off reply with the city's current time; nothing persisted.
		sess.Status = models.SessionCompleted
		text, err := m.currentTimeIn(sess.Context.ResolvedCity, sess.Context.ResolvedTz)
		if err != nil {
			return nil, err
		}
		return []models.OutboundMessage{m.reply(event, text)}, nil

	case strings.Contains(answer, "moved") || strings.Contains(answer, "перее") ||
		strings.Contains(answer, "живу") || strings.Contains(answer, "relocat"):
		// Hand over to the relocation confirmation rules. The turn is
		// non-terminal, so it still counts against the attempt limit.
		sess.Context.Attempts++
		sess.Goal = models.GoalConfirmRelocation
		return []models.OutboundMessage{
			m.reply(event, confirmPrompt(sess.Context.ResolvedCity, sess.Context.ResolvedTz)),
		}, nil

	default:
		sess.Context.Attempts++
		if msgs := m.failIfExhausted(sess, event); msgs != nil {
			return msgs, nil
		}
		return []models.OutboundMessage{m.reply(event, geoIntentRepeat)}, nil
	}
}

func (m *Machine) currentTimeIn(city, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("bad session zone %q: %w", tz, err)
	}
	now := m.now().In(loc)
	return fmt.Sprintf("It's %02d:%02d in %s (%s) right now.",
		now.Hour(), now.Minute(), city, tz), nil
}

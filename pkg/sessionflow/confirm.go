package sessionflow

import (
	"context"
	"strings"

	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// Closed word sets for the pure-rules confirmation flow. No LLM here.
var confirmWords = map[string]bool{
	"да": true, "yes": true, "ок": true, "ok": true, "верно": true,
	"правильно": true, "+": true, "угу": true, "ага": true, "yep": true,
}

var rejectWords = map[string]bool{
	"нет": true, "no": true, "неверно": true, "не": true, "nope": true,
}

func normalizeAnswer(text string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(text), ".,!?"))
}

func isConfirmation(text string) bool {
	norm := normalizeAnswer(text)
	return confirmWords[norm] || strings.HasPrefix(norm, "да")
}

func isRejection(text string) bool {
	return rejectWords[normalizeAnswer(text)]
}

// handleConfirmRelocation advances a CONFIRM_RELOCATION session with
// pure rules: confirmation saves the pre-resolved zone, rejection asks
// for a city, anything else is geocoded as a new candidate.
func (m *Machine) handleConfirmRelocation(ctx context.Context, sess *models.Session, event models.NormalizedEvent) ([]models.OutboundMessage, error) {
	switch {
	case isConfirmation(event.Text) && sess.Context.ResolvedTz != "":
		return m.saveTimezone(ctx, sess, event, sess.Context.ResolvedTz, models.SourceRelocationConfirmed)

	case isRejection(event.Text):
		sess.Context.ResolvedCity = ""
		sess.Context.ResolvedTz = ""
		sess.Context.Attempts++
		if msgs := m.failIfExhausted(sess, event); msgs != nil {
			return msgs, nil
		}
		return []models.OutboundMessage{m.reply(event, askCityAgain)}, nil

	default:
		sess.Context.Attempts++
		if match, ok := m.geocoder.Resolve(ctx, geo.StripTrailingNoise(event.Text)); ok {
			sess.Context.ResolvedCity = match.City
			sess.Context.ResolvedTz = match.Timezone
			if msgs := m.failIfExhausted(sess, event); msgs != nil {
				return msgs, nil
			}
			return []models.OutboundMessage{m.reply(event, confirmPrompt(match.City, match.Timezone))}, nil
		}
		if msgs := m.failIfExhausted(sess, event); msgs != nil {
			return msgs, nil
		}
		return []models.OutboundMessage{m.reply(event, cityNotFound)}, nil
	}
}

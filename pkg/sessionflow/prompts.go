package sessionflow

import (
	"fmt"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

const cityExamples = "e.g. Berlin, Москва, Tashkent"

func (m *Machine) initialPrompt(sess *models.Session) string {
	switch sess.Goal {
	case models.GoalReverifyTimezone:
		return fmt.Sprintf("Quick check: are you still in %s? Type 'yes' or your new city.",
			sess.Context.ExistingTz)
	case models.GoalConfirmRelocation:
		return fmt.Sprintf("You're now in %s (%s)? (yes/no)",
			sess.Context.ResolvedCity, sess.Context.ResolvedTz)
	case models.GoalClarifyGeoIntent:
		return fmt.Sprintf("Did you mean a time in %s, or did you move there? (time/moved)",
			sess.Context.ResolvedCity)
	default: // AWAITING_TIMEZONE
		return fmt.Sprintf("Which city are you in? (%s)", cityExamples)
	}
}

func confirmPrompt(city, tz string) string {
	return fmt.Sprintf("You're now in %s (%s)? (yes/no)", city, tz)
}

const (
	askCityAgain    = "What city, then?"
	cityNotFound    = "I don't know that city. Which city are you in? (" + cityExamples + ")"
	geoIntentRepeat = "Sorry, I didn't get that. Type 'time' if you meant a time there, or 'moved' if you relocated."
)

package detect

import (
	"context"
	"strings"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

const mentionConfidence = 0.95

// standaloneWords address the bot without naming it.
var standaloneWords = map[string]bool{
	"bot": true, "бот": true, "help": true, "помощь": true,
}

// MentionDetector fires when the bot itself is addressed. Platform
// adapters normalize mentions to the plain "@name" form before the
// event reaches the pipeline.
type MentionDetector struct {
	botNames map[string]bool
}

// NewMentionDetector accepts the bot's usernames across platforms,
// without the "@" prefix.
func NewMentionDetector(botNames []string) *MentionDetector {
	names := make(map[string]bool, len(botNames))
	for _, n := range botNames {
		names[strings.ToLower(strings.TrimPrefix(n, "@"))] = true
	}
	return &MentionDetector{botNames: names}
}

// Name implements Detector.
func (d *MentionDetector) Name() string { return "mention" }

// Detect implements Detector.
func (d *MentionDetector) Detect(_ context.Context, event models.NormalizedEvent) ([]models.DetectedTrigger, error) {
	for _, tok := range strings.Fields(event.Text) {
		if strings.HasPrefix(tok, "@") {
			name := strings.ToLower(strings.Trim(tok[1:], ".,!?:;"))
			if d.botNames[name] {
				return d.trigger(tok), nil
			}
			continue
		}
		word := strings.ToLower(strings.Trim(tok, ".,!?:;"))
		if standaloneWords[word] {
			return d.trigger(tok), nil
		}
	}
	return nil, nil
}

func (d *MentionDetector) trigger(tok string) []models.DetectedTrigger {
	return []models.DetectedTrigger{{
		Type:         models.TriggerMention,
		Confidence:   mentionConfidence,
		OriginalText: tok,
	}}
}

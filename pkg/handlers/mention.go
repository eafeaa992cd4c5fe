package handlers

import (
	"context"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

const defaultHelpText = "I convert times for this chat. Mention a time " +
	"(like \"15:00\" or \"3pm\") and I'll show it in everyone's timezone. " +
	"Tell me your city so I know yours."

// MentionHandler answers a direct mention of the bot with a short help
// blurb.
type MentionHandler struct {
	helpText string
}

// NewMentionHandler creates the handler; empty helpText uses the
// built-in blurb.
func NewMentionHandler(helpText string) *MentionHandler {
	if helpText == "" {
		helpText = defaultHelpText
	}
	return &MentionHandler{helpText: helpText}
}

// Handle implements Handler.
func (h *MentionHandler) Handle(_ context.Context, event models.NormalizedEvent, _ models.DetectedTrigger, _ models.ResolvedContext) (models.HandlerResult, error) {
	return models.HandlerResult{
		Messages: []models.OutboundMessage{{
			Platform:         event.Platform,
			ChatID:           event.ChatID,
			Text:             h.helpText,
			ReplyToMessageID: event.MessageID,
			ParseMode:        models.ParseModePlain,
		}},
	}, nil
}

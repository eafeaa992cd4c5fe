package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// telegramSender is the slice of the bot API client the adapter uses.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAdapter speaks the Telegram Bot API.
type TelegramAdapter struct {
	bot telegramSender
}

// NewTelegramAdapter wraps an authorized bot client.
func NewTelegramAdapter(bot *tgbotapi.BotAPI) *TelegramAdapter {
	return &TelegramAdapter{bot: bot}
}

// Platform implements Adapter.
func (a *TelegramAdapter) Platform() models.Platform { return models.PlatformTelegram }

// Normalize implements Adapter. Accepts message updates with text from
// human senders; everything else is rejected to nil.
func (a *TelegramAdapter) Normalize(raw []byte) *models.NormalizedEvent {
	var update tgbotapi.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return nil
	}
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.From == nil || msg.From.IsBot {
		return nil
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	messageID := strconv.Itoa(msg.MessageID)

	event := &models.NormalizedEvent{
		Platform:    models.PlatformTelegram,
		EventID:     chatID + "_" + messageID,
		MessageID:   messageID,
		ChatID:      chatID,
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		Username:    msg.From.UserName,
		DisplayName: msg.From.FirstName,
		Text:        msg.Text,
		Timestamp:   time.Unix(int64(msg.Date), 0).UTC(),
		RawPayload:  json.RawMessage(raw),
	}
	if msg.ReplyToMessage != nil {
		event.ReplyToMessageID = strconv.Itoa(msg.ReplyToMessage.MessageID)
	}
	return event
}

// Send implements Adapter.
func (a *TelegramAdapter) Send(_ context.Context, msg models.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad telegram chat id %q: %w", msg.ChatID, err)
	}

	out := tgbotapi.NewMessage(chatID, msg.Text)
	switch msg.ParseMode {
	case models.ParseModeMarkdown:
		out.ParseMode = tgbotapi.ModeMarkdownV2
	case models.ParseModeHTML:
		out.ParseMode = tgbotapi.ModeHTML
	}
	if msg.ReplyToMessageID != "" {
		if replyID, err := strconv.Atoi(msg.ReplyToMessageID); err == nil {
			out.ReplyToMessageID = replyID
		}
	}

	if _, err := a.bot.Send(out); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}

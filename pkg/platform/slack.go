package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// slackSender is the slice of the Slack client the adapter uses.
type slackSender interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackAdapter speaks the Slack Events and Web APIs.
type SlackAdapter struct {
	client slackSender
	botID  string
}

// NewSlackAdapter wraps a Slack Web API client. botID filters out the
// bot's own messages on ingest.
func NewSlackAdapter(client *slack.Client, botID string) *SlackAdapter {
	return &SlackAdapter{client: client, botID: botID}
}

// Platform implements Adapter.
func (a *SlackAdapter) Platform() models.Platform { return models.PlatformSlack }

// slackEnvelope is the Events API callback wrapper. Decoded by hand;
// the adapter only needs plain user messages.
type slackEnvelope struct {
	Type  string `json:"type"`
	Event struct {
		Type     string `json:"type"`
		Subtype  string `json:"subtype"`
		User     string `json:"user"`
		BotID    string `json:"bot_id"`
		Text     string `json:"text"`
		Channel  string `json:"channel"`
		Ts       string `json:"ts"`
		ThreadTs string `json:"thread_ts"`
		EventTs  string `json:"event_ts"`
	} `json:"event"`
}

// Normalize implements Adapter. Subtyped messages (edits, joins, bot
// posts) are rejected to nil.
func (a *SlackAdapter) Normalize(raw []byte) *models.NormalizedEvent {
	var env slackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	ev := env.Event
	if env.Type != "event_callback" || ev.Type != "message" || ev.Subtype != "" {
		return nil
	}
	if ev.Text == "" || ev.User == "" || ev.BotID != "" || ev.User == a.botID {
		return nil
	}

	event := &models.NormalizedEvent{
		Platform:   models.PlatformSlack,
		EventID:    ev.Channel + "_" + ev.Ts,
		MessageID:  ev.Ts,
		ChatID:     ev.Channel,
		UserID:     ev.User,
		Text:       ev.Text,
		Timestamp:  slackTsToTime(ev.Ts),
		RawPayload: json.RawMessage(raw),
	}
	if ev.ThreadTs != "" && ev.ThreadTs != ev.Ts {
		event.ReplyToMessageID = ev.ThreadTs
	}
	return event
}

// Send implements Adapter. ReplyToMessageID maps to thread_ts; Slack
// renders mrkdwn by default, so plain messages disable it explicitly.
func (a *SlackAdapter) Send(ctx context.Context, msg models.OutboundMessage) error {
	options := []slack.MsgOption{
		slack.MsgOptionText(msg.Text, false),
	}
	if msg.ParseMode != models.ParseModeMarkdown {
		options = append(options, slack.MsgOptionDisableMarkdown())
	}
	if msg.ReplyToMessageID != "" {
		options = append(options, slack.MsgOptionTS(msg.ReplyToMessageID))
	}

	if _, _, err := a.client.PostMessageContext(ctx, msg.ChatID, options...); err != nil {
		return fmt.Errorf("slack send failed: %w", err)
	}
	return nil
}

// slackTsToTime converts a "1726000000.000200" style ts to UTC time.
func slackTsToTime(ts string) time.Time {
	if i := strings.IndexByte(ts, '.'); i > 0 {
		ts = ts[:i]
	}
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

// Package models contains the value records and state documents shared
// across the pipeline: normalized inbound events, outbound messages,
// parsed times, trigger payloads, and the persisted user/chat/session state.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Platform identifies a messaging network.
type Platform string

// Supported platforms.
const (
	PlatformTelegram Platform = "telegram"
	PlatformSlack    Platform = "slack"
	PlatformDiscord  Platform = "discord"
	PlatformWhatsApp Platform = "whatsapp"
)

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformTelegram, PlatformSlack, PlatformDiscord, PlatformWhatsApp:
		return true
	}
	return false
}

// ParseMode selects outbound text formatting.
type ParseMode string

// Parse modes for outbound messages.
const (
	ParseModePlain    ParseMode = "plain"
	ParseModeMarkdown ParseMode = "markdown"
	ParseModeHTML     ParseMode = "html"
)

// NormalizedEvent is the platform-independent form of an inbound message.
// Adapters produce it deterministically from wire payloads; it is treated
// as immutable once constructed.
//
// (Platform, EventID) is unique within the dedup window and is the dedup key.
// MessageID is the platform's reply anchor.
type NormalizedEvent struct {
	Platform         Platform        `json:"platform"`
	EventID          string          `json:"event_id"`
	MessageID        string          `json:"message_id"`
	ChatID           string          `json:"chat_id"`
	UserID           string          `json:"user_id"`
	Username         string          `json:"username,omitempty"`
	DisplayName      string          `json:"display_name,omitempty"`
	Text             string          `json:"text"`
	Timestamp        time.Time       `json:"timestamp"`
	ReplyToMessageID string          `json:"reply_to_message_id,omitempty"`
	RawPayload       json.RawMessage `json:"raw_payload,omitempty"`
}

// Validate checks the fields the pipeline depends on.
func (e *NormalizedEvent) Validate() error {
	if !e.Platform.Valid() {
		return fmt.Errorf("invalid platform %q", e.Platform)
	}
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.ChatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	if e.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// OutboundMessage is a platform-independent reply to be delivered by an
// adapter. Immutable.
type OutboundMessage struct {
	Platform         Platform  `json:"platform"`
	ChatID           string    `json:"chat_id"`
	Text             string    `json:"text"`
	ReplyToMessageID string    `json:"reply_to_message_id,omitempty"`
	ParseMode        ParseMode `json:"parse_mode"`
}

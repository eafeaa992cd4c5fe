package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// defaultGraphAPIBase is the Meta Graph API endpoint prefix.
const defaultGraphAPIBase = "https://graph.facebook.com/v19.0"

// WhatsAppAdapter speaks the WhatsApp Cloud API (Meta Graph).
type WhatsAppAdapter struct {
	httpClient    *http.Client
	apiBase       string
	accessToken   string
	phoneNumberID string
}

// NewWhatsAppAdapter builds an adapter for one business phone number.
func NewWhatsAppAdapter(client *http.Client, accessToken, phoneNumberID string) *WhatsAppAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &WhatsAppAdapter{
		httpClient:    client,
		apiBase:       defaultGraphAPIBase,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
	}
}

// Platform implements Adapter.
func (a *WhatsAppAdapter) Platform() models.Platform { return models.PlatformWhatsApp }

// whatsappEnvelope is the Cloud API webhook wrapper. Statuses and
// non-text message types are ignored.
type whatsappEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
					Context struct {
						ID string `json:"id"`
					} `json:"context"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Normalize implements Adapter. The wamid is globally unique and serves
// as the event id directly. Only the first message of a batch is taken;
// the Cloud API delivers one per webhook in practice.
func (a *WhatsAppAdapter) Normalize(raw []byte) *models.NormalizedEvent {
	var env whatsappEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	if env.Object != "whatsapp_business_account" || len(env.Entry) == 0 {
		return nil
	}
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) == 0 {
				continue
			}
			msg := change.Value.Messages[0]
			if msg.Type != "text" || msg.Text.Body == "" || msg.From == "" {
				continue
			}

			event := &models.NormalizedEvent{
				Platform:   models.PlatformWhatsApp,
				EventID:    msg.ID,
				MessageID:  msg.ID,
				ChatID:     msg.From,
				UserID:     msg.From,
				Text:       msg.Text.Body,
				Timestamp:  whatsappTsToTime(msg.Timestamp),
				RawPayload: json.RawMessage(raw),
			}
			if len(change.Value.Contacts) > 0 {
				event.DisplayName = change.Value.Contacts[0].Profile.Name
			}
			if msg.Context.ID != "" {
				event.ReplyToMessageID = msg.Context.ID
			}
			return event
		}
	}
	return nil
}

// Send implements Adapter. ReplyToMessageID maps to context.message_id.
func (a *WhatsAppAdapter) Send(ctx context.Context, msg models.OutboundMessage) error {
	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                msg.ChatID,
		"type":              "text",
		"text":              map[string]string{"body": msg.Text},
	}
	if msg.ReplyToMessageID != "" {
		body["context"] = map[string]string{"message_id": msg.ReplyToMessageID}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal whatsapp message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", a.apiBase, a.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp send failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp send failed: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

func whatsappTsToTime(ts string) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}

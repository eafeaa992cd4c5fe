package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// defaultDiscordAPIBase is the Discord REST endpoint prefix.
const defaultDiscordAPIBase = "https://discord.com/api/v10"

// DiscordAdapter can deliver messages through the Discord REST API.
// Inbound message intake requires a gateway (websocket) connection, which
// this service does not run, so Normalize always rejects.
type DiscordAdapter struct {
	httpClient *http.Client
	apiBase    string
	botToken   string
}

// NewDiscordAdapter builds a send-only adapter for a bot token.
func NewDiscordAdapter(client *http.Client, botToken string) *DiscordAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &DiscordAdapter{httpClient: client, apiBase: defaultDiscordAPIBase, botToken: botToken}
}

// Platform implements Adapter.
func (a *DiscordAdapter) Platform() models.Platform { return models.PlatformDiscord }

// Normalize implements Adapter. Discord pushes messages over the gateway
// rather than webhooks, so there is no inbound payload to normalize.
func (a *DiscordAdapter) Normalize(_ []byte) *models.NormalizedEvent {
	return nil
}

// Send implements Adapter. ReplyToMessageID maps to message_reference.
func (a *DiscordAdapter) Send(ctx context.Context, msg models.OutboundMessage) error {
	body := map[string]any{"content": msg.Text}
	if msg.ReplyToMessageID != "" {
		body["message_reference"] = map[string]string{"message_id": msg.ReplyToMessageID}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal discord message: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", a.apiBase, msg.ChatID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build discord request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+a.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord send failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord send failed: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/izgorodin/team-ops-assistant/pkg/models"
)

// maxWebhookBody bounds inbound payload size.
const maxWebhookBody = 1 << 20

// readBody drains the request body up to maxWebhookBody.
func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return nil, false
	}
	return body, true
}

// telegramWebhook handles Telegram updates. Auth is the secret token
// header Telegram echoes back when configured on setWebhook.
func (s *Server) telegramWebhook(c *gin.Context) {
	secret := s.cfg.Platforms.Telegram.WebhookSecret
	if secret != "" && !secureCompare(c.GetHeader("X-Telegram-Bot-Api-Secret-Token"), secret) {
		c.Status(http.StatusUnauthorized)
		return
	}

	body, ok := readBody(c)
	if !ok {
		return
	}
	s.handleInbound(c, models.PlatformTelegram, body)
}

// slackWebhook handles Slack Events API callbacks, including the
// one-time url_verification handshake.
func (s *Server) slackWebhook(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	if secret := s.cfg.Platforms.Slack.SigningSecret; secret != "" {
		ts := c.GetHeader("X-Slack-Request-Timestamp")
		sig := c.GetHeader("X-Slack-Signature")
		if !slackSignatureValid(secret, ts, body, sig) {
			c.Status(http.StatusUnauthorized)
			return
		}
	}

	var handshake struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &handshake); err == nil && handshake.Type == "url_verification" {
		c.JSON(http.StatusOK, gin.H{"challenge": handshake.Challenge})
		return
	}

	s.handleInbound(c, models.PlatformSlack, body)
}

// whatsappChallenge answers the Cloud API subscription handshake.
func (s *Server) whatsappChallenge(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	if mode != "subscribe" || !secureCompare(token, s.cfg.Platforms.WhatsApp.VerifyToken) {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.String(http.StatusOK, c.Query("hub.challenge"))
}

// whatsappWebhook handles Cloud API message notifications.
func (s *Server) whatsappWebhook(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	if secret := s.cfg.Platforms.WhatsApp.AppSecret; secret != "" {
		if !whatsappSignatureValid(secret, body, c.GetHeader("X-Hub-Signature-256")) {
			c.Status(http.StatusUnauthorized)
			return
		}
	}

	s.handleInbound(c, models.PlatformWhatsApp, body)
}

// discordWebhook is a stub; Discord intake needs a gateway connection.
func (s *Server) discordWebhook(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"error": "discord intake not implemented"})
}

// handleInbound normalizes and processes the payload, always answering
// 200 so the platform does not retry on our internal failures.
func (s *Server) handleInbound(c *gin.Context, p models.Platform, body []byte) {
	adapter := s.dispatcher.Adapter(p)
	if adapter == nil {
		s.logger.Warn("webhook for unregistered platform", "platform", p)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	event := adapter.Normalize(body)
	if event == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	s.process(c.Request.Context(), event)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

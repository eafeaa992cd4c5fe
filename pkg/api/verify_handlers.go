package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/izgorodin/team-ops-assistant/pkg/config"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/verify"
)

// verifyPage renders the timezone selection page for a valid token.
func (s *Server) verifyPage(c *gin.Context) {
	token := c.Query("token")
	if _, err := s.signer.Parse(token); err != nil {
		c.String(http.StatusBadRequest, "This verification link is invalid or has expired.")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := verify.PageTemplate.Execute(c.Writer, verify.PageData{
		Token: token,
		Zones: verify.CommonZones,
	}); err != nil {
		s.logger.Error("failed to render verify page", "error", err)
	}
}

type verifyRequest struct {
	Token  string `json:"token"`
	TzIANA string `json:"tz_iana"`
}

// verifySave persists the zone picked on the verify page. The token
// carries who and where; the body carries only the chosen zone.
func (s *Server) verifySave(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	claims, err := s.signer.Parse(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	if !config.ValidIANA(req.TzIANA) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone"})
		return
	}

	err = s.identity.Update(c.Request.Context(), claims.Platform, claims.UserID, claims.ChatID, req.TzIANA, models.SourceWebVerified, nil)
	if err != nil {
		s.logger.Error("failed to save verified timezone", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save timezone"})
		return
	}

	s.logger.Info("Timezone verified via web",
		"platform", claims.Platform, "user_id", claims.UserID, "tz", req.TzIANA)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timezone": req.TzIANA})
}

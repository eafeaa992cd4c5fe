// Package api serves the HTTP surface: one webhook endpoint per
// platform, the web verification page and its save endpoint, and the
// health probes.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/izgorodin/team-ops-assistant/pkg/config"
	"github.com/izgorodin/team-ops-assistant/pkg/database"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/platform"
	"github.com/izgorodin/team-ops-assistant/pkg/verify"
	"github.com/izgorodin/team-ops-assistant/pkg/version"
)

// eventRouter is the orchestrator entry point the server drives.
type eventRouter interface {
	Route(ctx context.Context, event models.NormalizedEvent) ([]models.OutboundMessage, error)
}

// outboundDispatcher fans replies to the platform adapters.
type outboundDispatcher interface {
	Dispatch(ctx context.Context, messages []models.OutboundMessage) int
	Adapter(p models.Platform) platform.Adapter
}

// tzWriter persists a verified timezone (identity.Manager).
type tzWriter interface {
	Update(ctx context.Context, p models.Platform, userID, chatID, tz string, source models.TzSource, confOverride *float64) error
}

// Server is the gin HTTP server.
type Server struct {
	cfg        *config.Config
	db         *database.Client
	router     eventRouter
	dispatcher outboundDispatcher
	signer     *verify.Signer
	identity   tzWriter
	logger     *slog.Logger

	engine *gin.Engine
	http   *http.Server
}

// NewServer wires routes onto a fresh gin engine.
func NewServer(cfg *config.Config, db *database.Client, router eventRouter, dispatcher outboundDispatcher, signer *verify.Signer, identity tzWriter) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:        cfg,
		db:         db,
		router:     router,
		dispatcher: dispatcher,
		signer:     signer,
		identity:   identity,
		logger:     slog.Default().With("component", "api"),
		engine:     engine,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.POST("/hooks/telegram", s.telegramWebhook)
	s.engine.POST("/hooks/slack", s.slackWebhook)
	s.engine.GET("/hooks/whatsapp", s.whatsappChallenge)
	s.engine.POST("/hooks/whatsapp", s.whatsappWebhook)
	s.engine.POST("/hooks/discord", s.discordWebhook)

	s.engine.GET("/verify", s.verifyPage)
	s.engine.POST("/api/verify", s.verifySave)

	s.engine.GET("/health", s.health)
	s.engine.GET("/ready", s.ready)
	s.engine.GET("/live", s.live)
}

// Engine exposes the gin engine for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Start begins serving and blocks until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.App.Host, s.cfg.App.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.HTTP.RequestTimeout,
		WriteTimeout: s.cfg.HTTP.RequestTimeout,
	}
	s.logger.Info("HTTP server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// process runs one normalized event through the orchestrator and fans
// out any replies. Called from the webhook handlers after auth; any
// failure is logged and swallowed so the platform gets its 200.
func (s *Server) process(ctx context.Context, event *models.NormalizedEvent) {
	if event == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.HTTP.RequestTimeout)
	defer cancel()

	messages, err := s.router.Route(ctx, *event)
	if err != nil {
		s.logger.Error("event routing failed",
			"platform", event.Platform, "event_id", event.EventID, "error", err)
		return
	}
	if len(messages) > 0 {
		s.dispatcher.Dispatch(ctx, messages)
	}
}

// health reports aggregate health; the database is the only hard
// dependency checked.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.db.DB())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"version":  version.GitCommit,
		"database": dbHealth,
	})
}

// ready mirrors health; migrations run at startup, so a reachable
// database implies an applied schema.
func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := database.Health(ctx, s.db.DB()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Team ops assistant server: receives platform webhooks, detects time
// and relocation triggers, and replies with timezone conversions.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	slackapi "github.com/slack-go/slack"

	"github.com/izgorodin/team-ops-assistant/pkg/api"
	"github.com/izgorodin/team-ops-assistant/pkg/classify"
	"github.com/izgorodin/team-ops-assistant/pkg/cleanup"
	"github.com/izgorodin/team-ops-assistant/pkg/config"
	"github.com/izgorodin/team-ops-assistant/pkg/database"
	"github.com/izgorodin/team-ops-assistant/pkg/detect"
	"github.com/izgorodin/team-ops-assistant/pkg/geo"
	"github.com/izgorodin/team-ops-assistant/pkg/guard"
	"github.com/izgorodin/team-ops-assistant/pkg/handlers"
	"github.com/izgorodin/team-ops-assistant/pkg/identity"
	"github.com/izgorodin/team-ops-assistant/pkg/llm"
	"github.com/izgorodin/team-ops-assistant/pkg/models"
	"github.com/izgorodin/team-ops-assistant/pkg/pipeline"
	"github.com/izgorodin/team-ops-assistant/pkg/platform"
	"github.com/izgorodin/team-ops-assistant/pkg/sessionflow"
	"github.com/izgorodin/team-ops-assistant/pkg/store"
	"github.com/izgorodin/team-ops-assistant/pkg/timeparse"
	"github.com/izgorodin/team-ops-assistant/pkg/verify"
	"github.com/izgorodin/team-ops-assistant/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupLogging replaces the default slog handler per configuration.
func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	ctx := context.Background()

	// 1. Configuration and logging
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging)

	// 2. Database (migrations run inside NewClient)
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbConfig.MaxOpenConns = cfg.Database.MaxOpenConns
	dbConfig.MaxIdleConns = cfg.Database.MaxIdleConns
	dbConfig.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	dbConfig.ConnMaxIdleTime = cfg.Database.ConnMaxIdleTime

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Stores and identity
	users := store.NewUserStore(dbClient.DB())
	chats := store.NewChatStore(dbClient.DB())
	dedupStore := store.NewDedupStore(dbClient.DB(), cfg.Dedupe.TTL)
	sessionStore := store.NewSessionStore(dbClient.DB())
	identityManager := identity.NewManager(users, chats, cfg.Confidence)

	// 4. LLM client (nil when disabled), geocoder, classifiers
	llmClient := llm.NewClient(cfg.LLM)
	var normalizer geo.Normalizer
	if llmClient != nil {
		normalizer = llmClient
	}
	geocoder := geo.NewGeocoder(normalizer)
	finder := geo.NewFinder()

	thresholds := classify.Thresholds{Low: cfg.Classifier.ThresholdLow, High: cfg.Classifier.ThresholdHigh}
	timeClassifier := classify.NewTimeClassifier(thresholds, cfg.Classifier.LongTextThreshold, cfg.Classifier.WindowSize)
	tzContextClassifier := classify.NewTzContextClassifier(thresholds)
	locationClassifier := classify.NewLocationClassifier(thresholds)

	// 5. Detectors and handlers
	var detectors []detect.Detector
	if cfg.Triggers.EnableTime {
		parser := timeparse.NewParser(cfg.TimeParsing.AtNEnabled)
		detectors = append(detectors, detect.NewTimeDetector(parser, timeClassifier, tzContextClassifier, geocoder, llmClient))
	}
	if cfg.Triggers.EnableRelocation {
		detectors = append(detectors, detect.NewRelocationDetector(finder, locationClassifier))
	}
	if cfg.Triggers.EnableMention {
		detectors = append(detectors, detect.NewMentionDetector([]string{cfg.UI.BotName}))
	}

	handlerMap := map[models.TriggerType]handlers.Handler{
		models.TriggerTime:       handlers.NewTimeConversionHandler(),
		models.TriggerRelocation: handlers.NewRelocationHandler(identityManager),
		models.TriggerMention:    handlers.NewMentionHandler(cfg.UI.HelpText),
	}

	p := pipeline.New(detectors, handlerMap, identityManager, cfg.Timezone.TeamTimezones, finder, llmClient)

	// 6. Session machine with web-verification links
	signer := verify.NewSigner(cfg.Platforms.VerifyTokenSecret)
	verifyURLFn := func(pf models.Platform, userID, chatID string) string {
		token, err := signer.Generate(pf, userID, chatID)
		if err != nil {
			return ""
		}
		return verify.URL(cfg.App.BaseURL, token)
	}
	machine := sessionflow.NewMachine(sessionStore, identityManager, geocoder, cfg.Timezone.TeamCities, verifyURLFn)

	// 7. Admission gates and orchestrator
	throttle := guard.NewThrottle(time.Duration(cfg.Dedupe.ThrottleSeconds)*time.Second, cfg.Dedupe.CleanupMultiplier)
	limiter := guard.NewRateLimiter(cfg.RateLimits)
	dedup := guard.NewDedup(dedupStore)
	notices := guard.NewNotices(users, cfg.RateLimits.MaxNotifications)

	orchestrator := pipeline.NewOrchestrator(machine, dedup, throttle, limiter, notices, p, identityManager)

	// 8. Platform adapters and dispatcher
	httpClient := &http.Client{Timeout: cfg.HTTP.OutboundTimeout}
	var adapters []platform.Adapter

	if token := cfg.Platforms.Telegram.BotToken; token != "" {
		bot, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
			os.Exit(1)
		}
		adapters = append(adapters, platform.NewTelegramAdapter(bot))
		slog.Info("Telegram adapter registered", "bot", bot.Self.UserName)
	}
	if token := cfg.Platforms.Slack.BotToken; token != "" {
		client := slackapi.New(token, slackapi.OptionHTTPClient(httpClient))
		adapters = append(adapters, platform.NewSlackAdapter(client, cfg.Platforms.Slack.BotUserID))
		slog.Info("Slack adapter registered")
	}
	if wa := cfg.Platforms.WhatsApp; wa.AccessToken != "" && wa.PhoneNumberID != "" {
		adapters = append(adapters, platform.NewWhatsAppAdapter(httpClient, wa.AccessToken, wa.PhoneNumberID))
		slog.Info("WhatsApp adapter registered")
	}
	if token := cfg.Platforms.Discord.BotToken; token != "" {
		adapters = append(adapters, platform.NewDiscordAdapter(httpClient, token))
		slog.Info("Discord adapter registered")
	}
	if len(adapters) == 0 {
		slog.Warn("No platform adapters configured; webhooks will be ignored")
	}

	dispatcher := platform.NewDispatcher(adapters, cfg.HTTP.SendRatePerSec, cfg.HTTP.SendBurst, cfg.HTTP.OutboundTimeout)

	// 9. Background retention loop
	retention := cleanup.NewService(dedupStore, sessionStore, cfg.Dedupe.CleanupInterval)
	retention.Start(ctx)
	defer retention.Stop()

	// 10. HTTP server
	server := api.NewServer(cfg, dbClient, orchestrator, dispatcher, signer, identityManager)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	slog.Info("Assistant started",
		"version", version.Full(),
		"platforms", len(adapters),
		"detectors", len(detectors),
		"llm_enabled", llmClient.Enabled())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	slog.Info("Shutdown complete")
}

// Package config loads the assistant configuration: assistant.yaml merged
// over built-in defaults, with ${ENV} expansion and a validation pass.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config is the root configuration object.
type Config struct {
	App         AppConfig        `yaml:"app"`
	Database    DatabaseConfig   `yaml:"database"`
	Timezone    TimezoneConfig   `yaml:"timezone"`
	Confidence  ConfidenceConfig `yaml:"confidence"`
	TimeParsing TimeParsing      `yaml:"time_parsing"`
	Dedupe      DedupeConfig     `yaml:"dedupe"`
	RateLimits  RateLimitsConfig `yaml:"rate_limits"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	LLM         LLMConfig        `yaml:"llm"`
	Platforms   PlatformsConfig  `yaml:"platforms"`
	HTTP        HTTPConfig       `yaml:"http"`
	UI          UIConfig         `yaml:"ui"`
	Triggers    TriggersConfig   `yaml:"triggers"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

// DatabaseConfig holds pool tuning; connection credentials come from env
// (DB_HOST et al.) like the rest of the secrets.
type DatabaseConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// TimezoneConfig describes the team's zone setup.
type TimezoneConfig struct {
	Default string `yaml:"default"`
	// TeamTimezones are always included in the conversion target set.
	TeamTimezones []string `yaml:"team_timezones"`
	// TeamCities are shortcut names resolvable by the timezone session tools.
	TeamCities map[string]string `yaml:"team_cities"`
}

// ConfidenceConfig tunes the timezone identity model.
type ConfidenceConfig struct {
	DecayPerDay           float64 `yaml:"decay_per_day"`
	VerifyThreshold       float64 `yaml:"verify_threshold"`
	ChatDefaultConfidence float64 `yaml:"chat_default_confidence"`
}

// TimeParsing tunes the regex layer.
type TimeParsing struct {
	// AtNEnabled controls the low-confidence "at N" pattern.
	AtNEnabled bool `yaml:"at_n_enabled"`
}

// DedupeConfig controls the persistent event dedup gate.
type DedupeConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	ThrottleSeconds int           `yaml:"throttle_seconds"`
	// CleanupMultiplier scales the throttle entry retention and the lazy
	// cleanup trigger threshold.
	CleanupMultiplier int `yaml:"cleanup_multiplier"`
	// CleanupInterval is the cadence of the background retention loop.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// WindowLimit is one sliding-window limit.
type WindowLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// RateLimitsConfig holds the per-user and per-chat sliding windows.
type RateLimitsConfig struct {
	PerUser          WindowLimit `yaml:"per_user"`
	PerChat          WindowLimit `yaml:"per_chat"`
	MaxNotifications int         `yaml:"max_notifications"`
}

// ClassifierConfig tunes the ML classifier layer.
type ClassifierConfig struct {
	ThresholdLow      float64 `yaml:"threshold_low"`
	ThresholdHigh     float64 `yaml:"threshold_high"`
	LongTextThreshold int     `yaml:"long_text_threshold"`
	WindowSize        int     `yaml:"window_size"`
}

// LLMOpConfig bounds one logical LLM operation.
type LLMOpConfig struct {
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LLMConfig holds the LLM client settings. APIKey defaults from the
// OPENAI_API_KEY env variable.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	Extraction    LLMOpConfig `yaml:"extraction"`
	Intent        LLMOpConfig `yaml:"intent"`
	Normalization LLMOpConfig `yaml:"normalization"`

	BreakerFailureThreshold int           `yaml:"breaker_failure_threshold"`
	BreakerResetTimeout     time.Duration `yaml:"breaker_reset_timeout"`
	// SyncSafetyMargin is added to the op timeout for the outer worker
	// deadline when an LLM call is made from a synchronous path.
	SyncSafetyMargin time.Duration `yaml:"sync_safety_margin"`
}

// PlatformsConfig holds per-platform credentials. Defaults pull from
// env; YAML values (with ${ENV} references) override. An empty secret
// disables the corresponding webhook verification.
type PlatformsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Discord  DiscordConfig  `yaml:"discord"`
	// VerifyTokenSecret signs the web verification tokens.
	VerifyTokenSecret string `yaml:"verify_token_secret"`
}

// TelegramConfig holds the bot token and webhook secret.
type TelegramConfig struct {
	BotToken      string `yaml:"bot_token"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// SlackConfig holds the Web API token and Events API signing secret.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token"`
	SigningSecret string `yaml:"signing_secret"`
	BotUserID     string `yaml:"bot_user_id"`
}

// WhatsAppConfig holds the Cloud API credentials.
type WhatsAppConfig struct {
	AccessToken   string `yaml:"access_token"`
	PhoneNumberID string `yaml:"phone_number_id"`
	AppSecret     string `yaml:"app_secret"`
	VerifyToken   string `yaml:"verify_token"`
}

// DiscordConfig holds the bot token for REST sends.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
}

// HTTPConfig bounds the server and outbound clients.
type HTTPConfig struct {
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	OutboundTimeout time.Duration `yaml:"outbound_timeout"`
	// SendRatePerSec paces outbound platform API calls per platform.
	SendRatePerSec float64 `yaml:"send_rate_per_sec"`
	SendBurst      int     `yaml:"send_burst"`
}

// UIConfig holds user-facing text knobs.
type UIConfig struct {
	BotName     string `yaml:"bot_name"`
	HelpText    string `yaml:"help_text"`
	CityExample string `yaml:"city_example"`
}

// TriggersConfig enables or disables individual detectors.
type TriggersConfig struct {
	EnableTime       bool `yaml:"enable_time"`
	EnableRelocation bool `yaml:"enable_relocation"`
	EnableMention    bool `yaml:"enable_mention"`
}

// LoggingConfig controls slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Initialize loads, merges, expands and validates configuration from
// configDir. This is the primary entry point for configuration loading.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"team_timezones", len(cfg.Timezone.TeamTimezones),
		"llm_enabled", cfg.LLM.Enabled)
	return cfg, nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port out of range: %d", c.App.Port)
	}
	if c.Confidence.VerifyThreshold < 0 || c.Confidence.VerifyThreshold > 1 {
		return fmt.Errorf("confidence.verify_threshold must be in [0,1]")
	}
	if c.Confidence.DecayPerDay < 0 {
		return fmt.Errorf("confidence.decay_per_day must be >= 0")
	}
	if c.Classifier.ThresholdLow > c.Classifier.ThresholdHigh {
		return fmt.Errorf("classifier.threshold_low exceeds threshold_high")
	}
	if c.RateLimits.PerUser.Requests <= 0 || c.RateLimits.PerChat.Requests <= 0 {
		return fmt.Errorf("rate_limits windows require positive request counts")
	}
	if c.Dedupe.TTL <= 0 {
		return fmt.Errorf("dedupe.ttl must be positive")
	}
	for _, tz := range c.Timezone.TeamTimezones {
		if !ValidIANA(tz) {
			return fmt.Errorf("timezone.team_timezones contains unknown zone %q", tz)
		}
	}
	if c.Timezone.Default != "" && !ValidIANA(c.Timezone.Default) {
		return fmt.Errorf("timezone.default is not a valid IANA zone: %q", c.Timezone.Default)
	}
	return nil
}

package config

import (
	"os"
	"time"
	_ "time/tzdata" // embed tzdata so IANA lookups work in scratch containers
)

// ValidIANA reports whether name loads as an IANA zone. "Local" is rejected;
// internally the assistant only deals in explicit zone names.
func ValidIANA(name string) bool {
	if name == "" || name == "Local" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// defaults returns the built-in configuration. User YAML is merged on top.
func defaults() *Config {
	return &Config{
		App: AppConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			BaseURL: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		Timezone: TimezoneConfig{
			TeamTimezones: nil,
			TeamCities:    map[string]string{},
		},
		Confidence: ConfidenceConfig{
			DecayPerDay:           0.05,
			VerifyThreshold:       0.7,
			ChatDefaultConfidence: 0.5,
		},
		TimeParsing: TimeParsing{
			AtNEnabled: true,
		},
		Dedupe: DedupeConfig{
			TTL:               7 * 24 * time.Hour,
			ThrottleSeconds:   2,
			CleanupMultiplier: 10,
			CleanupInterval:   time.Hour,
		},
		RateLimits: RateLimitsConfig{
			PerUser:          WindowLimit{Requests: 20, Window: time.Minute},
			PerChat:          WindowLimit{Requests: 60, Window: time.Minute},
			MaxNotifications: 3,
		},
		Classifier: ClassifierConfig{
			ThresholdLow:      0.40,
			ThresholdHigh:     0.60,
			LongTextThreshold: 100,
			WindowSize:        5,
		},
		LLM: LLMConfig{
			Enabled: true,
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Extraction: LLMOpConfig{
				Model:     "gpt-4o-mini",
				MaxTokens: 300,
				Timeout:   8 * time.Second,
			},
			Intent: LLMOpConfig{
				Model:     "gpt-4o-mini",
				MaxTokens: 20,
				Timeout:   5 * time.Second,
			},
			Normalization: LLMOpConfig{
				Model:     "gpt-4o-mini",
				MaxTokens: 20,
				Timeout:   5 * time.Second,
			},
			BreakerFailureThreshold: 3,
			BreakerResetTimeout:     60 * time.Second,
			SyncSafetyMargin:        2 * time.Second,
		},
		Platforms: PlatformsConfig{
			Telegram: TelegramConfig{
				BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
				WebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
			},
			Slack: SlackConfig{
				BotToken:      os.Getenv("SLACK_BOT_TOKEN"),
				SigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
				BotUserID:     os.Getenv("SLACK_BOT_USER_ID"),
			},
			WhatsApp: WhatsAppConfig{
				AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
				PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
				AppSecret:     os.Getenv("WHATSAPP_APP_SECRET"),
				VerifyToken:   os.Getenv("WHATSAPP_VERIFY_TOKEN"),
			},
			Discord: DiscordConfig{
				BotToken: os.Getenv("DISCORD_BOT_TOKEN"),
			},
			VerifyTokenSecret: os.Getenv("VERIFY_TOKEN_SECRET"),
		},
		HTTP: HTTPConfig{
			RequestTimeout:  25 * time.Second, // under Telegram's 30s webhook deadline
			OutboundTimeout: 10 * time.Second,
			SendRatePerSec:  20,
			SendBurst:       5,
		},
		UI: UIConfig{
			BotName:     "team-ops-assistant",
			CityExample: "Moscow, Berlin, New York",
		},
		Triggers: TriggersConfig{
			EnableTime:       true,
			EnableRelocation: true,
			EnableMention:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

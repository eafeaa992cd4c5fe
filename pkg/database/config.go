package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Pool defaults; overridable per deployment through the database config
// section.
const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

// LoadConfigFromEnv assembles the connection config from DB_* variables.
// Only DB_PORT is validated here; a bad host or password surfaces as a
// connect error instead.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:            "localhost",
		Port:            5432,
		User:            "assistant",
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        "assistant",
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		ConnMaxIdleTime: defaultConnMaxIdleTime,
	}

	setEnv(&cfg.Host, "DB_HOST")
	setEnv(&cfg.User, "DB_USER")
	setEnv(&cfg.Database, "DB_NAME")
	setEnv(&cfg.SSLMode, "DB_SSLMODE")

	if raw := os.Getenv("DB_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_PORT %q: %w", raw, err)
		}
		cfg.Port = port
	}
	setEnvInt(&cfg.MaxOpenConns, "DB_MAX_OPEN_CONNS")
	setEnvInt(&cfg.MaxIdleConns, "DB_MAX_IDLE_CONNS")

	return cfg, nil
}

func setEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setEnvInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

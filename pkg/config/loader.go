package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the user configuration file looked up in configDir.
const ConfigFileName = "assistant.yaml"

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvRefs replaces ${VAR} references with the environment value.
// Unset variables expand to the empty string.
func expandEnvRefs(raw []byte) []byte {
	return envRefPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envRefPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// load reads the user YAML (if any) and merges it over built-in defaults.
// A missing file is not an error: the defaults are a runnable configuration.
func load(configDir string) (*Config, error) {
	cfg := defaults()

	path := filepath.Join(configDir, ConfigFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No configuration file found, using defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var user Config
	if err := yaml.Unmarshal(expandEnvRefs(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// User-set values win; zero values fall back to the defaults.
	if err := mergo.Merge(cfg, &user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}
	return cfg, nil
}

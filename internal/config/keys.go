package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey indicates neither the environment nor a config file supplied
// an Anthropic API key.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// GetAPIKey resolves the API key for worker invocations. The
// ANTHROPIC_API_KEY environment variable wins over the config file.
func GetAPIKey(cfg *Config) (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}
	if key := configuredKey(cfg); key != "" {
		return key, nil
	}
	return "", ErrNoAPIKey
}

// configuredKey returns the usable key from the config, expanding ${VAR}
// references. A reference left unexpanded means the variable is unset.
func configuredKey(cfg *Config) string {
	if cfg == nil || cfg.Anthropic.APIKey == "" {
		return ""
	}
	key := os.ExpandEnv(cfg.Anthropic.APIKey)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// ValidateAPIKey checks the key's shape without calling the API.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrNoAPIKey
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("api key must start with sk-ant-")
	}
	if len(key) < 20 {
		return errors.New("api key is too short")
	}
	return nil
}

// MaskAPIKey renders a key for display in `devteam config get`, keeping the
// prefix and the last four characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource says which layer supplied the API key.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource reports where the key came from, for status output.
func GetAPIKeySource(cfg *Config) KeySource {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return KeySourceEnv
	}
	if configuredKey(cfg) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}

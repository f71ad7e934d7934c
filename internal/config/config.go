// Package config handles configuration loading and management for devteam.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for devteam.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Execution ExecutionConfig `mapstructure:"execution"`
	KB        KBConfig        `mapstructure:"kb"`
	Review    ReviewConfig    `mapstructure:"review"`
	// Workers maps worker names to their role descriptions. Entries here
	// extend the built-in team.
	Workers map[string]string `mapstructure:"workers"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// UseAWSBedrock routes API calls through AWS Bedrock instead of the
	// Anthropic API.
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// ExecutionConfig holds plan execution settings.
type ExecutionConfig struct {
	// MaxWorkers is the maximum number of concurrently running tasks.
	MaxWorkers int `mapstructure:"max_workers"`
	// MaxRetries is the retry budget per task for fixable failures.
	MaxRetries int `mapstructure:"max_retries"`
	// TaskTimeout bounds a single worker invocation.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// KBConfig holds knowledge base settings.
type KBConfig struct {
	// Path is the knowledge base database path, relative to the project root.
	Path string `mapstructure:"path"`
}

// ReviewConfig holds checkpoint review settings.
type ReviewConfig struct {
	// RulesPath points to a YAML file overriding the built-in reviewer
	// selection rules.
	RulesPath string `mapstructure:"rules_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.devteam.yaml in current directory or parent)
// 3. User config (~/.config/devteam/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("")

	// Map specific environment variables
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Watch reloads the config file at path whenever it changes on disk and
// invokes onChange with the fresh config. Malformed edits are ignored and
// the previous config stays in effect.
func Watch(path string, onChange func(*Config)) error {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			return
		}
		cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("execution.max_workers", cfg.Execution.MaxWorkers)
	v.Set("execution.max_retries", cfg.Execution.MaxRetries)
	v.Set("execution.task_timeout", cfg.Execution.TaskTimeout.String())
	v.Set("kb.path", cfg.KB.Path)
	v.Set("review.rules_path", cfg.Review.RulesPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	// Execution defaults
	v.SetDefault("execution.max_workers", 3)
	v.SetDefault("execution.max_retries", 3)
	v.SetDefault("execution.task_timeout", "10m")

	// Knowledge base defaults
	v.SetDefault("kb.path", filepath.Join(".devteam", "kb.db"))

	// Review defaults
	v.SetDefault("review.rules_path", "")
}

// getUserConfigDir returns the XDG config directory for devteam.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "devteam")
	}

	// Fall back to ~/.config/devteam
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "devteam")
	}
	return filepath.Join(home, ".config", "devteam")
}

// findProjectConfig searches for .devteam.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".devteam.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			APIKey: "",
			Model:  "claude-sonnet-4-20250514",
		},
		Execution: ExecutionConfig{
			MaxWorkers:  3,
			MaxRetries:  3,
			TaskTimeout: 10 * time.Minute,
		},
		KB: KBConfig{
			Path: filepath.Join(".devteam", "kb.db"),
		},
	}
}

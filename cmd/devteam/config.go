package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/RhettArk/multi-agent-dev-team/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify devteam configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/devteam/config.yaml
Project-specific overrides can be placed in .devteam.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	key, _ := config.GetAPIKey(cfg)
	fmt.Printf("anthropic.api_key: %s (%s)\n", config.MaskAPIKey(key), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	if cfg.Anthropic.UseAWSBedrock {
		fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
		fmt.Printf("anthropic.aws_profile: %s\n", cfg.Anthropic.AWSProfile)
	}
	fmt.Printf("execution.max_workers: %d\n", cfg.Execution.MaxWorkers)
	fmt.Printf("execution.max_retries: %d\n", cfg.Execution.MaxRetries)
	fmt.Printf("execution.task_timeout: %s\n", cfg.Execution.TaskTimeout)
	fmt.Printf("kb.path: %s\n", cfg.KB.Path)
	fmt.Printf("review.rules_path: %s\n", cfg.Review.RulesPath)
	for name := range cfg.Workers {
		fmt.Printf("workers.%s: (configured)\n", name)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		k, _ := config.GetAPIKey(cfg)
		return config.MaskAPIKey(k), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "execution.max_workers":
		return strconv.Itoa(cfg.Execution.MaxWorkers), nil
	case "execution.max_retries":
		return strconv.Itoa(cfg.Execution.MaxRetries), nil
	case "execution.task_timeout":
		return cfg.Execution.TaskTimeout.String(), nil
	case "kb.path":
		return cfg.KB.Path, nil
	case "review.rules_path":
		return cfg.Review.RulesPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_aws_bedrock: %w", err)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "execution.max_workers":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for max_workers: %s", value)
		}
		cfg.Execution.MaxWorkers = n
	case "execution.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value for max_retries: %s", value)
		}
		cfg.Execution.MaxRetries = n
	case "execution.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for task_timeout: %w", err)
		}
		cfg.Execution.TaskTimeout = d
	case "kb.path":
		cfg.KB.Path = value
	case "review.rules_path":
		cfg.Review.RulesPath = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// Package config loads ideabot's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/alekspetrov/ideabot/internal/adapters/telegram"
	"github.com/alekspetrov/ideabot/internal/ai"
	"github.com/alekspetrov/ideabot/internal/conversation"
	"github.com/alekspetrov/ideabot/internal/gateway"
	"github.com/alekspetrov/ideabot/internal/insights"
	"github.com/alekspetrov/ideabot/internal/logging"
	"github.com/alekspetrov/ideabot/internal/store"
)

// Config represents the main configuration
type Config struct {
	Version      string               `yaml:"version"`
	Telegram     *telegram.Config     `yaml:"telegram"`
	Providers    []ai.ProviderConfig  `yaml:"providers"`
	Store        *store.Config        `yaml:"store"`
	Conversation *conversation.Config `yaml:"conversation"`
	Insights     *insights.Config     `yaml:"insights"`
	Gateway      *gateway.Config      `yaml:"gateway"`
	Logging      *logging.Config      `yaml:"logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version:      "1.0",
		Telegram:     telegram.DefaultConfig(),
		Providers:    ai.DefaultProviders(),
		Store:        store.DefaultConfig(),
		Conversation: conversation.DefaultConfig(),
		Insights:     insights.DefaultConfig(),
		Gateway:      gateway.DefaultConfig(),
		Logging:      logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err == nil {
		// Expand environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.resolvePlaceholders()

	if config.Store != nil {
		config.Store.Path = expandPath(config.Store.Path)
	}
	if config.Logging != nil && config.Logging.Output != "stdout" && config.Logging.Output != "stderr" {
		config.Logging.Output = expandPath(config.Logging.Output)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file carries secrets once a user fills it in
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".ideabot", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

var placeholder = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// resolveEnv replaces a value that is exactly ${NAME} with the variable.
// Defaults that never passed through the file expansion still carry these.
func resolveEnv(value string) string {
	m := placeholder.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	return os.Getenv(m[1])
}

func (c *Config) resolvePlaceholders() {
	if c.Telegram != nil {
		c.Telegram.BotToken = resolveEnv(c.Telegram.BotToken)
		c.Telegram.WebhookSecret = resolveEnv(c.Telegram.WebhookSecret)
	}
	for i := range c.Providers {
		c.Providers[i].APIKey = resolveEnv(c.Providers[i].APIKey)
	}
	if c.Store != nil {
		c.Store.DSN = resolveEnv(c.Store.DSN)
	}
	if c.Gateway != nil {
		c.Gateway.APIToken = resolveEnv(c.Gateway.APIToken)
	}
}

// GatewayRequired reports whether the HTTP gateway must run.
func (c *Config) GatewayRequired() bool {
	if c.Telegram != nil && c.Telegram.Mode == telegram.ModeWebhook {
		return true
	}
	return c.Gateway != nil && c.Gateway.Enabled
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram == nil {
		return fmt.Errorf("telegram configuration is required")
	}
	if err := c.Telegram.Validate(); err != nil {
		return err
	}

	if err := validateProviders(c.Providers); err != nil {
		return err
	}

	if c.Store == nil {
		return fmt.Errorf("store configuration is required")
	}
	switch c.Store.Driver {
	case "sqlite", "":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}

	if c.Conversation != nil && (c.Conversation.TTL < 0 || c.Conversation.CleanupInterval < 0) {
		return fmt.Errorf("conversation durations must not be negative")
	}

	if c.Insights != nil && c.Insights.Enabled {
		if _, err := cron.ParseStandard(c.Insights.Schedule); err != nil {
			return fmt.Errorf("invalid insights.schedule %q: %w", c.Insights.Schedule, err)
		}
		if _, err := time.LoadLocation(c.Insights.Timezone); err != nil {
			return fmt.Errorf("invalid insights.timezone %q: %w", c.Insights.Timezone, err)
		}
		if c.Insights.WindowDays < 0 {
			return fmt.Errorf("insights.window_days must not be negative")
		}
	}

	if c.GatewayRequired() {
		if c.Gateway == nil {
			return fmt.Errorf("gateway configuration is required in webhook mode")
		}
		if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
			return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
		}
	}

	return nil
}

func validateProviders(providers []ai.ProviderConfig) error {
	if len(providers) == 0 {
		return fmt.Errorf("at least one AI provider is required")
	}
	seen := make(map[string]bool, len(providers))
	keyed := 0
	for i, p := range providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case "openai", "", "anthropic":
		default:
			return fmt.Errorf("provider %q: type must be openai or anthropic, got %q", p.Name, p.Type)
		}
		if p.RequestsPerSecond < 0 {
			return fmt.Errorf("provider %q: requests_per_second must not be negative", p.Name)
		}
		if p.APIKey != "" {
			keyed++
		}
	}
	if keyed == 0 {
		return fmt.Errorf("no AI provider has an api_key (set GROQ_API_KEY or OPENAI_API_KEY)")
	}
	return nil
}

// ActiveProviders returns the providers that have an API key, in order.
// A default entry whose environment variable is unset is skipped.
func (c *Config) ActiveProviders() []ai.ProviderConfig {
	active := make([]ai.ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.APIKey != "" {
			active = append(active, p)
		}
	}
	return active
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alekspetrov/ideabot/internal/adapters/telegram"
	"github.com/alekspetrov/ideabot/internal/ai"
	"github.com/alekspetrov/ideabot/internal/testutil"
)

// withSecrets sets the environment the default placeholders point at.
func withSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", testutil.FakeTelegramBotToken)
	t.Setenv("GROQ_API_KEY", testutil.FakeGroqKey)
	t.Setenv("OPENAI_API_KEY", testutil.FakeOpenAIKey)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	t.Run("Version", func(t *testing.T) {
		if config.Version != "1.0" {
			t.Errorf("Version = %q, want %q", config.Version, "1.0")
		}
	})

	t.Run("Telegram", func(t *testing.T) {
		if config.Telegram == nil {
			t.Fatal("Telegram config is nil")
		}
		if config.Telegram.Mode != telegram.ModePolling {
			t.Errorf("Telegram.Mode = %q, want %q", config.Telegram.Mode, telegram.ModePolling)
		}
		if config.Telegram.BotToken != "${TELEGRAM_BOT_TOKEN}" {
			t.Errorf("Telegram.BotToken = %q, want placeholder", config.Telegram.BotToken)
		}
	})

	t.Run("Providers", func(t *testing.T) {
		if len(config.Providers) != 2 {
			t.Fatalf("len(Providers) = %d, want 2", len(config.Providers))
		}
		if config.Providers[0].Name != "groq" || config.Providers[1].Name != "openai" {
			t.Errorf("Provider order = %q, %q, want groq, openai", config.Providers[0].Name, config.Providers[1].Name)
		}
	})

	t.Run("Store", func(t *testing.T) {
		if config.Store == nil || config.Store.Driver != "sqlite" {
			t.Fatalf("Store = %+v, want sqlite", config.Store)
		}
	})

	t.Run("Insights", func(t *testing.T) {
		if config.Insights == nil || !config.Insights.Enabled {
			t.Fatal("Insights should be enabled by default")
		}
		if config.Insights.Schedule != "0 9 * * 1" {
			t.Errorf("Insights.Schedule = %q", config.Insights.Schedule)
		}
	})

	t.Run("Gateway", func(t *testing.T) {
		if config.Gateway == nil {
			t.Fatal("Gateway config is nil")
		}
		if config.Gateway.Host != "127.0.0.1" {
			t.Errorf("Gateway.Host = %q, want %q", config.Gateway.Host, "127.0.0.1")
		}
	})

	t.Run("Conversation", func(t *testing.T) {
		if config.Conversation == nil || config.Conversation.TTL != 24*time.Hour {
			t.Errorf("Conversation = %+v, want 24h TTL", config.Conversation)
		}
	})

	t.Run("Logging", func(t *testing.T) {
		if config.Logging == nil || config.Logging.Level != "info" {
			t.Errorf("Logging = %+v, want info level", config.Logging)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		withSecrets(t)

		config, err := Load("/nonexistent/path/config.yaml")
		if err != nil {
			t.Fatalf("Load should return defaults for missing file, got error: %v", err)
		}
		if config.Version != "1.0" {
			t.Errorf("Version = %q, want default %q", config.Version, "1.0")
		}
		// Default placeholders resolve even without a file
		if config.Telegram.BotToken != testutil.FakeTelegramBotToken {
			t.Errorf("Telegram.BotToken = %q, want env value", config.Telegram.BotToken)
		}
		if config.Providers[0].APIKey != testutil.FakeGroqKey {
			t.Errorf("groq APIKey = %q, want env value", config.Providers[0].APIKey)
		}
		if strings.HasPrefix(config.Store.Path, "~") {
			t.Errorf("Store.Path = %q, want ~ expanded", config.Store.Path)
		}
	})

	t.Run("ValidConfigFile", func(t *testing.T) {
		t.Setenv("IDEABOT_TEST_SECRET", "from-env")

		configPath := filepath.Join(t.TempDir(), "config.yaml")
		configContent := `
version: "2.0"
telegram:
  bot_token: "${IDEABOT_TEST_SECRET}"
  mode: webhook
  webhook_url: "https://ideas.example.com/webhooks/telegram"
  allowed_ids: [1, 2]
  max_voice_duration: 90s
providers:
  - name: claude
    type: anthropic
    api_key: "literal-key"
    chat_model: "claude-haiku"
    requests_per_second: 2
store:
  driver: postgres
  dsn: "postgres://localhost/ideas"
insights:
  enabled: true
  schedule: "30 8 * * 5"
  timezone: "Europe/Berlin"
gateway:
  port: 8080
`
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write test config: %v", err)
		}

		config, err := Load(configPath)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		if config.Version != "2.0" {
			t.Errorf("Version = %q, want %q", config.Version, "2.0")
		}
		if config.Telegram.BotToken != "from-env" {
			t.Errorf("Telegram.BotToken = %q, want %q", config.Telegram.BotToken, "from-env")
		}
		if config.Telegram.Mode != telegram.ModeWebhook {
			t.Errorf("Telegram.Mode = %q, want webhook", config.Telegram.Mode)
		}
		if config.Telegram.MaxVoiceDuration != 90*time.Second {
			t.Errorf("MaxVoiceDuration = %v, want 90s", config.Telegram.MaxVoiceDuration)
		}
		if len(config.Telegram.AllowedIDs) != 2 {
			t.Errorf("AllowedIDs = %v, want 2 entries", config.Telegram.AllowedIDs)
		}
		// Fields absent from the file keep their defaults
		if config.Telegram.RateLimit == nil || config.Telegram.RateLimit.MessagesPerMinute != 30 {
			t.Errorf("RateLimit = %+v, want defaults", config.Telegram.RateLimit)
		}
		if len(config.Providers) != 1 || config.Providers[0].Type != "anthropic" {
			t.Errorf("Providers = %+v, want the single anthropic entry", config.Providers)
		}
		if config.Store.Driver != "postgres" || config.Store.DSN != "postgres://localhost/ideas" {
			t.Errorf("Store = %+v", config.Store)
		}
		if config.Insights.Timezone != "Europe/Berlin" || config.Insights.WindowDays != 7 {
			t.Errorf("Insights = %+v", config.Insights)
		}
		if config.Gateway.Port != 8080 || config.Gateway.Host != "127.0.0.1" {
			t.Errorf("Gateway = %+v", config.Gateway)
		}
		if !config.GatewayRequired() {
			t.Error("Webhook mode should require the gateway")
		}
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(configPath, []byte("telegram: [unclosed"), 0644); err != nil {
			t.Fatalf("Failed to write test config: %v", err)
		}

		if _, err := Load(configPath); err == nil {
			t.Error("Expected parse error for invalid YAML")
		}
	})
}

func TestSave(t *testing.T) {
	withSecrets(t)

	configPath := filepath.Join(t.TempDir(), "subdir", "config.yaml")

	config := DefaultConfig()
	config.Version = "test-version"
	config.Gateway.Port = 9999
	config.Telegram.MaxVoiceDuration = 45 * time.Second

	if err := Save(config, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Config file mode = %v, want 0600", info.Mode().Perm())
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	// Placeholders are written, not secrets
	if !strings.Contains(string(data), "${TELEGRAM_BOT_TOKEN}") {
		t.Error("Saved config should keep the token placeholder")
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Version != "test-version" {
		t.Errorf("Version = %q, want %q", loaded.Version, "test-version")
	}
	if loaded.Gateway.Port != 9999 {
		t.Errorf("Gateway.Port = %d, want %d", loaded.Gateway.Port, 9999)
	}
	if loaded.Telegram.MaxVoiceDuration != 45*time.Second {
		t.Errorf("MaxVoiceDuration = %v, want 45s", loaded.Telegram.MaxVoiceDuration)
	}
	if loaded.Telegram.BotToken != testutil.FakeTelegramBotToken {
		t.Errorf("BotToken = %q, want env value", loaded.Telegram.BotToken)
	}
}

func TestValidate(t *testing.T) {
	withSecrets(t)

	valid := func() *Config {
		c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		return c
	}

	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{name: "ValidDefaults", mutate: func(c *Config) {}},
		{
			name:        "NilTelegram",
			mutate:      func(c *Config) { c.Telegram = nil },
			errContains: "telegram configuration is required",
		},
		{
			name:        "MissingBotToken",
			mutate:      func(c *Config) { c.Telegram.BotToken = "" },
			errContains: "bot_token",
		},
		{
			name:        "WebhookWithoutURL",
			mutate:      func(c *Config) { c.Telegram.Mode = telegram.ModeWebhook },
			errContains: "webhook_url",
		},
		{
			name:        "NoProviders",
			mutate:      func(c *Config) { c.Providers = nil },
			errContains: "at least one AI provider",
		},
		{
			name: "NoProviderKeys",
			mutate: func(c *Config) {
				for i := range c.Providers {
					c.Providers[i].APIKey = ""
				}
			},
			errContains: "api_key",
		},
		{
			name: "DuplicateProvider",
			mutate: func(c *Config) {
				c.Providers = append(c.Providers, c.Providers[0])
			},
			errContains: "duplicate provider",
		},
		{
			name: "UnknownProviderType",
			mutate: func(c *Config) {
				c.Providers = []ai.ProviderConfig{{Name: "x", Type: "gemini", APIKey: "k"}}
			},
			errContains: "type must be",
		},
		{
			name:        "UnknownStoreDriver",
			mutate:      func(c *Config) { c.Store.Driver = "mysql" },
			errContains: "store.driver",
		},
		{
			name:        "PostgresWithoutDSN",
			mutate:      func(c *Config) { c.Store.Driver = "postgres" },
			errContains: "store.dsn",
		},
		{
			name:        "BadSchedule",
			mutate:      func(c *Config) { c.Insights.Schedule = "every monday" },
			errContains: "insights.schedule",
		},
		{
			name:        "BadTimezone",
			mutate:      func(c *Config) { c.Insights.Timezone = "Mars/Olympus" },
			errContains: "insights.timezone",
		},
		{
			name: "DisabledInsightsSkipChecks",
			mutate: func(c *Config) {
				c.Insights.Enabled = false
				c.Insights.Schedule = "nonsense"
			},
		},
		{
			name:        "InvalidGatewayPort",
			mutate:      func(c *Config) { c.Gateway.Port = 70000 },
			errContains: "invalid gateway port",
		},
		{
			name: "DisabledGatewayIgnoresPort",
			mutate: func(c *Config) {
				c.Gateway.Enabled = false
				c.Gateway.Port = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)

			err := c.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestActiveProviders(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", testutil.FakeOpenAIKey)

	config, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	active := config.ActiveProviders()
	if len(active) != 1 || active[0].Name != "openai" {
		t.Errorf("ActiveProviders() = %+v, want only openai", active)
	}
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("IDEABOT_TEST_VALUE", "resolved")

	tests := []struct {
		input    string
		expected string
	}{
		{"${IDEABOT_TEST_VALUE}", "resolved"},
		{"${IDEABOT_TEST_UNSET_VALUE}", ""},
		{"plain", "plain"},
		{"prefix-${IDEABOT_TEST_VALUE}", "prefix-${IDEABOT_TEST_VALUE}"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := resolveEnv(tt.input); got != tt.expected {
			t.Errorf("resolveEnv(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home directory: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"TildeOnly", "~", homeDir},
		{"TildeWithPath", "~/path/to/file", filepath.Join(homeDir, "path/to/file")},
		{"AbsolutePath", "/absolute/path", "/absolute/path"},
		{"RelativePath", "relative/path", "relative/path"},
		{"EmptyPath", "", ""},
		{"TildeInMiddle", "/path/~/with/tilde", "/path/~/with/tilde"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := expandPath(tt.input); result != tt.expected {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDefaultConfigPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home directory: %v", err)
	}

	expected := filepath.Join(homeDir, ".ideabot", "config.yaml")
	if result := DefaultConfigPath(); result != expected {
		t.Errorf("DefaultConfigPath() = %q, want %q", result, expected)
	}
}

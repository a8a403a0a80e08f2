package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/alekspetrov/ideabot/internal/insights"
)

// Delivery modes
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds Telegram adapter configuration
type Config struct {
	BotToken         string           `yaml:"bot_token"`
	Mode             string           `yaml:"mode"`           // polling or webhook
	WebhookURL       string           `yaml:"webhook_url"`    // public URL of /webhooks/telegram
	WebhookSecret    string           `yaml:"webhook_secret"` // echoed in X-Telegram-Bot-Api-Secret-Token
	AllowedIDs       []int64          `yaml:"allowed_ids"`    // empty allows everyone
	MaxVoiceDuration time.Duration    `yaml:"max_voice_duration"`
	RateLimit        *RateLimitConfig `yaml:"rate_limit"`
}

// DefaultConfig returns default Telegram configuration
func DefaultConfig() *Config {
	return &Config{
		BotToken:         "${TELEGRAM_BOT_TOKEN}",
		Mode:             ModePolling,
		MaxVoiceDuration: DefaultMaxVoiceDuration,
		RateLimit:        DefaultRateLimitConfig(),
	}
}

// Validate checks the mode-specific fields.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	switch c.Mode {
	case ModePolling, "":
	case ModeWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("telegram.webhook_url is required in webhook mode")
		}
	default:
		return fmt.Errorf("telegram.mode must be %q or %q, got %q", ModePolling, ModeWebhook, c.Mode)
	}
	if c.MaxVoiceDuration < 0 {
		return fmt.Errorf("telegram.max_voice_duration must not be negative")
	}
	return nil
}

// Notifier pushes unsolicited messages, such as the weekly digest.
type Notifier struct {
	bot Bot
}

// NewNotifier creates a new Telegram notifier
func NewNotifier(bot Bot) *Notifier {
	return &Notifier{bot: bot}
}

// SendDigest delivers an insights report to a user's private chat.
func (n *Notifier) SendDigest(ctx context.Context, telegramID int64, r *insights.Report) error {
	for _, chunk := range chunkContent(FormatDigest(r), maxMessageLen) {
		if _, err := n.bot.SendMessage(ctx, telegramID, chunk, nil); err != nil {
			return fmt.Errorf("failed to send digest: %w", err)
		}
	}
	return nil
}

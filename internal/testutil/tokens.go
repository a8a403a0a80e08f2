// Package testutil provides testing utilities for ideabot.
package testutil

// Safe test tokens that won't trigger secret scanning.
// Keep them obviously fake.
const (
	// FakeTelegramBotToken is a safe test token for the Telegram Bot API.
	FakeTelegramBotToken = "test-telegram-bot-token"

	// FakeTelegramWebhookSecret is a safe secret for the webhook header check.
	FakeTelegramWebhookSecret = "test-telegram-webhook-secret"

	// FakeOpenAIKey is a safe test API key for OpenAI.
	FakeOpenAIKey = "test-openai-api-key"

	// FakeGroqKey is a safe test API key for Groq's OpenAI-compatible endpoint.
	FakeGroqKey = "test-groq-api-key"

	// FakeAnthropicKey is a safe test API key for Anthropic.
	FakeAnthropicKey = "test-anthropic-api-key"

	// FakeBearerToken is a safe test bearer token for the gateway API.
	FakeBearerToken = "test-bearer-token"
)

package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alekspetrov/ideabot/internal/idea"
)

// ProviderConfig configures one entry of the chain.
type ProviderConfig struct {
	Name               string        `yaml:"name"`
	Type               string        `yaml:"type"` // openai, anthropic
	BaseURL            string        `yaml:"base_url"`
	APIKey             string        `yaml:"api_key"`
	ChatModel          string        `yaml:"chat_model"`
	TranscriptionModel string        `yaml:"transcription_model"`
	RequestsPerSecond  float64       `yaml:"requests_per_second"` // 0 disables limiting
	Timeout            time.Duration `yaml:"timeout"`
}

const defaultProviderTimeout = 30 * time.Second

// DefaultProviders is Groq first for speed, OpenAI as the reliable fallback.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:               "groq",
			Type:               "openai",
			BaseURL:            GroqBaseURL,
			APIKey:             "${GROQ_API_KEY}",
			ChatModel:          "llama-3.3-70b-versatile",
			TranscriptionModel: "whisper-large-v3-turbo",
		},
		{
			Name:               "openai",
			Type:               "openai",
			APIKey:             "${OPENAI_API_KEY}",
			ChatModel:          defaultOpenAIChatModel,
			TranscriptionModel: defaultOpenAITranscribeModel,
		},
	}
}

// NewProvider builds the provider described by cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	httpClient := &http.Client{Timeout: timeout}

	var (
		p   Provider
		err error
	)
	switch cfg.Type {
	case "openai", "":
		p, err = NewOpenAIProvider(cfg, httpClient)
	case "anthropic":
		p, err = NewAnthropicProvider(cfg, httpClient)
	default:
		return nil, fmt.Errorf("provider %q: unknown type %q", cfg.Name, cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RequestsPerSecond > 0 {
		p = RateLimited(p, rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1))
	}
	return p, nil
}

// NewProviders builds every configured provider, preserving order.
func NewProviders(cfgs []ProviderConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for _, cfg := range cfgs {
		p, err := NewProvider(cfg)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}

type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// RateLimited wraps p so every call first waits on limiter.
func RateLimited(p Provider, limiter *rate.Limiter) Provider {
	return &rateLimited{Provider: p, limiter: limiter}
}

func (r *rateLimited) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return r.Provider.Transcribe(ctx, audio)
}

func (r *rateLimited) Categorize(ctx context.Context, text string, existing []string) (*idea.Categorization, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.Provider.Categorize(ctx, text, existing)
}

func (r *rateLimited) GenerateInsights(ctx context.Context, ideas []*idea.Idea) (*idea.Insights, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.Provider.GenerateInsights(ctx, ideas)
}

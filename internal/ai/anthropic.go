package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alekspetrov/ideabot/internal/idea"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
)

// AnthropicProvider classifies and summarizes with the Messages API.
// It cannot transcribe.
type AnthropicProvider struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewAnthropicProvider creates a provider from cfg.
func NewAnthropicProvider(cfg ProviderConfig, httpClient *http.Client) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q: api key is required", cfg.Name)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	p := &AnthropicProvider{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.ChatModel,
		httpClient: httpClient,
	}
	if p.baseURL == "" {
		p.baseURL = anthropicBaseURL
	}
	if p.model == "" {
		p.model = defaultAnthropicModel
	}
	return p, nil
}

// Name returns the configured provider name.
func (p *AnthropicProvider) Name() string {
	return p.name
}

// Transcribe is not available on this backend.
func (p *AnthropicProvider) Transcribe(ctx context.Context, audio Audio) (string, error) {
	return "", ErrUnsupported
}

// Categorize asks the model for a JSON categorization.
func (p *AnthropicProvider) Categorize(ctx context.Context, text string, existing []string) (*idea.Categorization, error) {
	raw, err := p.message(ctx, categorizeSystemPrompt, categorizeUserPrompt(text, existing), 200)
	if err != nil {
		return nil, err
	}
	return parseCategorization(raw)
}

// GenerateInsights asks the model for themes across ideas.
func (p *AnthropicProvider) GenerateInsights(ctx context.Context, ideas []*idea.Idea) (*idea.Insights, error) {
	raw, err := p.message(ctx, insightsSystemPrompt, insightsUserPrompt(ideas), 600)
	if err != nil {
		return nil, err
	}
	return parseInsights(raw)
}

func (p *AnthropicProvider) message(ctx context.Context, system, user string, maxTokens int) (string, error) {
	requestBody := map[string]interface{}{
		"model":      p.model,
		"max_tokens": maxTokens,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, block := range apiResp.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", malformed("empty response from API")
}

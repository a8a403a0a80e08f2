package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/alekspetrov/ideabot/internal/idea"
)

// Groq serves the OpenAI API shape, so one provider covers both.
const (
	GroqBaseURL = "https://api.groq.com/openai/v1"

	defaultOpenAIChatModel       = "gpt-4o-mini"
	defaultOpenAITranscribeModel = openai.Whisper1
)

// OpenAIProvider talks to any OpenAI-compatible backend.
type OpenAIProvider struct {
	name               string
	client             *openai.Client
	chatModel          string
	transcriptionModel string
}

// NewOpenAIProvider creates a provider from cfg. BaseURL selects the backend.
func NewOpenAIProvider(cfg ProviderConfig, httpClient *http.Client) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %q: api key is required", cfg.Name)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	p := &OpenAIProvider{
		name:               cfg.Name,
		client:             openai.NewClientWithConfig(clientConfig),
		chatModel:          cfg.ChatModel,
		transcriptionModel: cfg.TranscriptionModel,
	}
	if p.chatModel == "" {
		p.chatModel = defaultOpenAIChatModel
	}
	if p.transcriptionModel == "" {
		p.transcriptionModel = defaultOpenAITranscribeModel
	}
	return p, nil
}

// Name returns the configured provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Transcribe sends the audio to the transcriptions endpoint.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audio Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", errors.New("empty audio")
	}

	filename := audio.Filename
	if filepath.Ext(filename) == "" {
		filename += ".ogg"
	}

	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.transcriptionModel,
		Reader:   bytes.NewReader(audio.Data),
		FilePath: filename,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	return resp.Text, nil
}

// Categorize asks the chat model for a JSON categorization.
func (p *OpenAIProvider) Categorize(ctx context.Context, text string, existing []string) (*idea.Categorization, error) {
	raw, err := p.completeJSON(ctx, categorizeSystemPrompt, categorizeUserPrompt(text, existing), 200)
	if err != nil {
		return nil, err
	}
	return parseCategorization(raw)
}

// GenerateInsights asks the chat model for themes across ideas.
func (p *OpenAIProvider) GenerateInsights(ctx context.Context, ideas []*idea.Idea) (*idea.Insights, error) {
	raw, err := p.completeJSON(ctx, insightsSystemPrompt, insightsUserPrompt(ideas), 600)
	if err != nil {
		return nil, err
	}
	return parseInsights(raw)
}

func (p *OpenAIProvider) completeJSON(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", malformed("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

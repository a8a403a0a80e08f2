// Package ai runs transcription, categorization and insight generation
// against an ordered chain of model providers.
package ai

import (
	"context"

	"github.com/alekspetrov/ideabot/internal/idea"
)

// Operation names used in errors, logs and metrics.
const (
	OpTranscribe       = "transcribe"
	OpCategorize       = "categorize"
	OpGenerateInsights = "generate_insights"
)

// Audio is a downloaded voice note.
type Audio struct {
	Data     []byte
	Filename string // used by backends to infer the container format
}

// Provider is one model backend. Implementations report every failure,
// malformed responses included, as an error so the chain can move on.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audio Audio) (string, error)
	Categorize(ctx context.Context, text string, existing []string) (*idea.Categorization, error)
	GenerateInsights(ctx context.Context, ideas []*idea.Idea) (*idea.Insights, error)
}

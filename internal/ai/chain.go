package ai

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/logging"
)

// Chain tries providers in their configured order. The first success wins;
// each provider is tried at most once per call and never concurrently.
type Chain struct {
	providers []Provider
	metrics   *Metrics
	log       *slog.Logger
}

// NewChain builds a chain over providers, primary first. metrics may be nil.
func NewChain(providers []Provider, metrics *Metrics) *Chain {
	return &Chain{
		providers: providers,
		metrics:   metrics,
		log:       logging.WithComponent("ai"),
	}
}

// Providers returns the provider names in order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// runChain is the single fallback loop shared by every operation.
func runChain[T any](ctx context.Context, c *Chain, op string, call func(context.Context, Provider) (T, error)) (T, error) {
	var zero T

	if len(c.providers) == 0 {
		c.observeExhausted(op)
		return zero, &ExhaustedError{Op: op, Errs: []error{ErrNoProviders}}
	}

	errs := make([]error, 0, len(c.providers))
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		result, err := call(ctx, p)
		c.observe(p.Name(), op, start, err)

		if err == nil {
			return result, nil
		}

		perr := &ProviderError{Provider: p.Name(), Op: op, Err: err}
		errs = append(errs, perr)
		c.log.Warn("provider failed, trying next",
			slog.String("provider", p.Name()),
			slog.String("op", op),
			slog.Any("error", err))
	}

	c.observeExhausted(op)
	return zero, &ExhaustedError{Op: op, Errs: errs}
}

func (c *Chain) observe(provider, op string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	c.metrics.CallsTotal.WithLabelValues(provider, op, result).Inc()
	c.metrics.CallDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

func (c *Chain) observeExhausted(op string) {
	if c.metrics != nil {
		c.metrics.Exhausted.WithLabelValues(op).Inc()
	}
}

// Transcribe converts audio to text. A blank transcript from a successful
// provider is reported as ErrEmptyTranscription without trying the rest.
func (c *Chain) Transcribe(ctx context.Context, audio Audio) (string, error) {
	text, err := runChain(ctx, c, OpTranscribe, func(ctx context.Context, p Provider) (string, error) {
		return p.Transcribe(ctx, audio)
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscription
	}
	return text, nil
}

// Categorize classifies text, passing the user's existing categories so the
// provider can reuse them. The returned category is accepted as-is.
func (c *Chain) Categorize(ctx context.Context, text string, existing []string) (*idea.Categorization, error) {
	return runChain(ctx, c, OpCategorize, func(ctx context.Context, p Provider) (*idea.Categorization, error) {
		cat, err := p.Categorize(ctx, text, existing)
		if err != nil {
			return nil, err
		}
		return normalizeCategorization(cat)
	})
}

// GenerateInsights summarizes ideas.
func (c *Chain) GenerateInsights(ctx context.Context, ideas []*idea.Idea) (*idea.Insights, error) {
	return runChain(ctx, c, OpGenerateInsights, func(ctx context.Context, p Provider) (*idea.Insights, error) {
		ins, err := p.GenerateInsights(ctx, ideas)
		if err != nil {
			return nil, err
		}
		return normalizeInsights(ins)
	})
}

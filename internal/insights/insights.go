// Package insights turns a profile's recent ideas into a themes summary and
// delivers it on a weekly schedule.
package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alekspetrov/ideabot/internal/idea"
)

// MinIdeas is the smallest window worth summarizing.
const MinIdeas = 3

// ErrNotEnoughIdeas matches *NotEnoughIdeasError via errors.Is.
var ErrNotEnoughIdeas = errors.New("not enough ideas for insights")

// NotEnoughIdeasError reports how many ideas the window held.
type NotEnoughIdeasError struct {
	Have int
}

func (e *NotEnoughIdeasError) Error() string {
	return fmt.Sprintf("%s: have %d, need %d", ErrNotEnoughIdeas, e.Have, MinIdeas)
}

func (e *NotEnoughIdeasError) Is(target error) bool {
	return target == ErrNotEnoughIdeas
}

// Config holds digest configuration
type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Schedule   string `yaml:"schedule"` // Cron syntax: "0 9 * * 1"
	Timezone   string `yaml:"timezone"`
	WindowDays int    `yaml:"window_days"`
}

// DefaultConfig sends the digest Monday 09:00 UTC over the past week.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		Schedule:   "0 9 * * 1",
		Timezone:   "UTC",
		WindowDays: 7,
	}
}

// Window returns the trailing period the digest covers.
func (c *Config) Window() time.Duration {
	days := c.WindowDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// Report is one generated summary.
type Report struct {
	ProfileID string
	Insights  *idea.Insights
	IdeaCount int
	Since     time.Time
}

// IdeaSource loads the ideas a report covers.
type IdeaSource interface {
	IdeasSince(ctx context.Context, profileID string, since time.Time) ([]*idea.Idea, error)
}

// Analyzer produces insights for a batch of ideas.
type Analyzer interface {
	GenerateInsights(ctx context.Context, ideas []*idea.Idea) (*idea.Insights, error)
}

// Generator builds reports on demand.
type Generator struct {
	ideas    IdeaSource
	analyzer Analyzer
	window   time.Duration
	now      func() time.Time
}

// NewGenerator creates a generator over the trailing window.
func NewGenerator(ideas IdeaSource, analyzer Analyzer, window time.Duration) *Generator {
	if window <= 0 {
		window = DefaultConfig().Window()
	}
	return &Generator{
		ideas:    ideas,
		analyzer: analyzer,
		window:   window,
		now:      time.Now,
	}
}

// Generate summarizes the profile's ideas from the trailing window.
func (g *Generator) Generate(ctx context.Context, profileID string) (*Report, error) {
	since := g.now().Add(-g.window)

	ideas, err := g.ideas.IdeasSince(ctx, profileID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load ideas: %w", err)
	}
	if len(ideas) < MinIdeas {
		return nil, &NotEnoughIdeasError{Have: len(ideas)}
	}

	ins, err := g.analyzer.GenerateInsights(ctx, ideas)
	if err != nil {
		return nil, fmt.Errorf("failed to generate insights: %w", err)
	}

	return &Report{
		ProfileID: profileID,
		Insights:  ins,
		IdeaCount: len(ideas),
		Since:     since,
	}, nil
}

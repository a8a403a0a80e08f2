package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/logging"
)

// Notifier delivers a digest to one chat user.
type Notifier interface {
	SendDigest(ctx context.Context, telegramID int64, r *Report) error
}

// ProfileSource lists the profiles that opted into the digest.
type ProfileSource interface {
	ListDigestProfiles(ctx context.Context) ([]*idea.Profile, error)
}

// RunResult tallies one digest run.
type RunResult struct {
	Delivered int
	Skipped   int // fewer than MinIdeas in the window
	Failed    int
}

// Scheduler runs the digest on a cron schedule
type Scheduler struct {
	generator *Generator
	profiles  ProfileSource
	notifier  Notifier
	config    *Config
	cron      *cron.Cron
	mu        sync.Mutex
	running   bool
	entryID   cron.EntryID
	logger    *slog.Logger
}

// NewScheduler creates a digest scheduler. An invalid timezone falls back
// to UTC.
func NewScheduler(generator *Generator, profiles ProfileSource, notifier Notifier, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	logger := logging.WithComponent("insights")

	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, using UTC", slog.String("timezone", config.Timezone), slog.Any("error", err))
		loc = time.UTC
	}

	return &Scheduler{
		generator: generator,
		profiles:  profiles,
		notifier:  notifier,
		config:    config,
		cron:      cron.New(cron.WithLocation(loc)),
		logger:    logger,
	}
}

// Start registers the cron job. It is a no-op when disabled or running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("digest scheduler disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", s.config.Schedule, err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.running = true

	s.logger.Info("digest scheduler started",
		slog.String("schedule", s.config.Schedule),
		slog.String("timezone", s.config.Timezone),
		slog.Time("next_run", s.cron.Entry(s.entryID).Next),
	)
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("digest scheduler stopped")
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// IsRunning returns whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow delivers the digest immediately.
func (s *Scheduler) RunNow(ctx context.Context) (RunResult, error) {
	return s.deliverAll(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	res, err := s.deliverAll(ctx)
	if err != nil {
		s.logger.Error("digest run failed", slog.Any("error", err))
		return
	}
	s.logger.Info("digest run complete",
		slog.Int("delivered", res.Delivered),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
	)
}

// deliverAll continues past per-profile failures.
func (s *Scheduler) deliverAll(ctx context.Context) (RunResult, error) {
	var res RunResult

	profiles, err := s.profiles.ListDigestProfiles(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list digest profiles: %w", err)
	}

	for _, p := range profiles {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		report, err := s.generator.Generate(ctx, p.ID)
		if errors.Is(err, ErrNotEnoughIdeas) {
			res.Skipped++
			continue
		}
		if err != nil {
			res.Failed++
			s.logger.Warn("digest generation failed",
				slog.Int64("user_id", p.TelegramID), slog.Any("error", err))
			continue
		}

		if err := s.notifier.SendDigest(ctx, p.TelegramID, report); err != nil {
			res.Failed++
			s.logger.Warn("digest delivery failed",
				slog.Int64("user_id", p.TelegramID), slog.Any("error", err))
			continue
		}
		res.Delivered++
	}
	return res, nil
}

// Package store persists profiles and ideas.
//
// Two backends implement Store: SQLiteStore (embedded, the default) and
// PostgresStore (gorm). Every idea read is scoped to the owning profile and
// skips archived rows.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/alekspetrov/ideabot/internal/idea"
)

// ErrNotFound is returned when a row does not exist, belongs to another
// profile, or is archived.
var ErrNotFound = errors.New("not found")

// PersistenceError wraps a backend failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ProfileInput identifies a chat user when looking up their profile.
type ProfileInput struct {
	TelegramID int64
	Username   string
	FirstName  string
}

// NewIdea is the payload for CreateIdea.
type NewIdea struct {
	ProfileID  string
	Input      idea.InputKind
	Transcript string
	Category   string
	Confidence float64
	Tags       []string
}

// Update is a partial idea update. Nil fields are left unchanged.
type Update struct {
	EditedTranscript *string
	EditedCategory   *string
	Starred          *bool
	Archived         *bool
	Tags             []string
}

// Empty reports whether the update would change nothing.
func (u Update) Empty() bool {
	return u.EditedTranscript == nil && u.EditedCategory == nil &&
		u.Starred == nil && u.Archived == nil && u.Tags == nil
}

// Store is the persistence boundary used by the bot, the insights digest and
// the gateway API.
type Store interface {
	GetOrCreateProfile(ctx context.Context, in ProfileInput) (*idea.Profile, error)
	GetProfile(ctx context.Context, telegramID int64) (*idea.Profile, error)
	UpdateProfileSettings(ctx context.Context, profileID string, s idea.Settings) error
	MarkOnboarded(ctx context.Context, profileID string) error
	ListDigestProfiles(ctx context.Context) ([]*idea.Profile, error)

	CreateIdea(ctx context.Context, in NewIdea) (*idea.Idea, error)
	GetIdea(ctx context.Context, profileID, id string) (*idea.Idea, error)
	RecentIdeas(ctx context.Context, profileID string, offset, limit int) ([]*idea.Idea, error)
	CountIdeas(ctx context.Context, profileID string) (int, error)
	SearchIdeas(ctx context.Context, profileID, query string, limit int) ([]*idea.Idea, error)
	IdeasByCategory(ctx context.Context, profileID, category string, limit int) ([]*idea.Idea, error)
	StarredIdeas(ctx context.Context, profileID string, limit int) ([]*idea.Idea, error)
	UpdateIdea(ctx context.Context, profileID, id string, u Update) (*idea.Idea, error)
	Stats(ctx context.Context, profileID string, since time.Time) (*idea.Stats, error)
	IdeasSince(ctx context.Context, profileID string, since time.Time) ([]*idea.Idea, error)
	Categories(ctx context.Context, profileID string) ([]string, error)

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string `yaml:"driver"` // sqlite, postgres
	Path   string `yaml:"path"`   // sqlite data directory
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// DefaultConfig returns the embedded SQLite setup.
func DefaultConfig() *Config {
	return &Config{
		Driver: "sqlite",
		Path:   "~/.ideabot/data",
	}
}

// Open returns the backend named by cfg.Driver.
func Open(cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path)
	case "postgres":
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

const topCategoryLimit = 5

func newIdeaID() string {
	return ulid.Make().String()
}

func validateNewIdea(in NewIdea) error {
	if in.ProfileID == "" {
		return errors.New("profile id is required")
	}
	if !in.Input.Valid() {
		return fmt.Errorf("invalid input kind %q", in.Input)
	}
	if in.Transcript == "" {
		return errors.New("transcript is required")
	}
	return nil
}

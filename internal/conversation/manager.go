package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"

	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/logging"
	"github.com/alekspetrov/ideabot/internal/store"
)

// ErrUnknownUser is returned when a user's state has not been loaded with
// Touch, or was evicted since.
var ErrUnknownUser = errors.New("conversation state not loaded")

// ProfileSource supplies the durable profile a fresh state is hydrated from.
type ProfileSource interface {
	GetOrCreateProfile(ctx context.Context, in store.ProfileInput) (*idea.Profile, error)
}

// Config controls state lifetime.
type Config struct {
	TTL             time.Duration `yaml:"ttl"`              // idle time before eviction
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // janitor period
}

// DefaultConfig keeps idle users for a day.
func DefaultConfig() *Config {
	return &Config{
		TTL:             24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

type entry struct {
	mu    sync.Mutex
	state State
}

// Manager owns every user's State. Each state has its own lock, held only
// for in-memory transitions and never across I/O.
type Manager struct {
	profiles ProfileSource
	cache    *cache.Cache
	log      *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager backed by a TTL cache with sliding expiry.
func NewManager(profiles ProfileSource, cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = DefaultConfig().CleanupInterval
	}

	m := &Manager{
		profiles: profiles,
		cache:    cache.New(ttl, cleanup),
		log:      logging.WithComponent("conversation"),
		now:      time.Now,
	}
	m.cache.OnEvicted(func(key string, v interface{}) {
		if e, ok := v.(*entry); ok {
			e.mu.Lock()
			pending := PendingName(e.state.Pending)
			e.mu.Unlock()
			m.log.Debug("conversation state evicted", slog.String("user", key), slog.String("pending", pending))
		}
	})
	return m
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Touch returns the user's state, hydrating it from the durable profile on
// first contact or after eviction. Every touch extends the idle TTL.
func (m *Manager) Touch(ctx context.Context, in store.ProfileInput) (State, error) {
	k := key(in.TelegramID)

	if v, ok := m.cache.Get(k); ok {
		e := v.(*entry)
		m.cache.Set(k, e, cache.DefaultExpiration)
		return m.snapshot(e), nil
	}

	profile, err := m.profiles.GetOrCreateProfile(ctx, in)
	if err != nil {
		return State{}, fmt.Errorf("failed to load profile: %w", err)
	}

	e := &entry{state: State{
		UserID:        in.TelegramID,
		ProfileID:     profile.ID,
		Paused:        profile.Paused,
		ConfirmMode:   profile.ConfirmMode,
		DigestEnabled: profile.DigestEnabled,
		Pending:       Idle{},
	}}

	// Another update for the same user may have hydrated concurrently.
	if err := m.cache.Add(k, e, cache.DefaultExpiration); err != nil {
		if v, ok := m.cache.Get(k); ok {
			e = v.(*entry)
		}
	}
	return m.snapshot(e), nil
}

// Snapshot returns a copy of the user's state if loaded.
func (m *Manager) Snapshot(userID int64) (State, bool) {
	v, ok := m.cache.Get(key(userID))
	if !ok {
		return State{}, false
	}
	return m.snapshot(v.(*entry)), true
}

// Len returns the number of cached states.
func (m *Manager) Len() int {
	return m.cache.ItemCount()
}

func (m *Manager) snapshot(e *entry) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// update runs fn under the user's lock and returns the resulting state.
func (m *Manager) update(userID int64, fn func(s *State)) (State, error) {
	v, ok := m.cache.Get(key(userID))
	if !ok {
		return State{}, ErrUnknownUser
	}
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
	return e.state.clone(), nil
}

// Route applies the text routing rules in priority order: pending edit,
// pending search, '?' query, paused, capture. Pending edit and search are
// consumed by the route.
func (m *Manager) Route(userID int64, text string, input idea.InputKind) (Route, error) {
	var r Route

	_, err := m.update(userID, func(s *State) {
		switch p := s.Pending.(type) {
		case AwaitingEdit:
			if p.Target == NewDraftTarget {
				d := Draft{
					Token:     newToken(),
					Text:      text,
					Input:     input,
					CreatedAt: m.now(),
				}
				if p.Draft != nil {
					d.Input = p.Draft.Input
					d.CreatedAt = p.Draft.CreatedAt
				}
				s.Pending = AwaitingDraftDecision{Draft: d}
				r = Route{Kind: RouteEditDraft, Text: text, Draft: &d, PromptRef: p.PromptRef}
				return
			}
			s.Pending = Idle{}
			r = Route{Kind: RouteEditIdea, Text: text, IdeaID: p.Target, PromptRef: p.PromptRef}
			return

		case AwaitingSearch:
			s.Pending = Idle{}
			r = Route{Kind: RouteSearch, Text: text, PromptRef: p.PromptRef}
			return
		}

		switch {
		case strings.HasPrefix(strings.TrimSpace(text), QueryPrefix):
			r = Route{Kind: RouteQuery, Text: text}
		case s.Paused:
			r = Route{Kind: RouteDropped, Text: text}
		default:
			r = Route{Kind: RouteCapture, Text: text, ConfirmMode: s.ConfirmMode}
		}
	})
	return r, err
}

// SetDraft stores text as the pending draft with a fresh token, replacing
// whatever operation was pending.
func (m *Manager) SetDraft(userID int64, text string, input idea.InputKind) (Draft, error) {
	d := Draft{
		Token:     newToken(),
		Text:      text,
		Input:     input,
		CreatedAt: m.now(),
	}
	_, err := m.update(userID, func(s *State) {
		s.Pending = AwaitingDraftDecision{Draft: d}
	})
	return d, err
}

// SetDraftPrompt records the message showing the draft's buttons.
func (m *Manager) SetDraftPrompt(userID int64, token string, promptRef int64) error {
	_, err := m.update(userID, func(s *State) {
		if p, ok := s.Pending.(AwaitingDraftDecision); ok && p.Draft.Token == token {
			p.Draft.PromptRef = promptRef
			s.Pending = p
		}
	})
	return err
}

// TakeDraft atomically removes and returns the pending draft. An empty token
// matches any draft. A second call for the same token finds nothing, which
// makes repeated Save presses harmless.
func (m *Manager) TakeDraft(userID int64, token string) (Draft, bool) {
	var (
		d     Draft
		found bool
	)
	_, _ = m.update(userID, func(s *State) {
		p, ok := s.Pending.(AwaitingDraftDecision)
		if !ok || (token != "" && p.Draft.Token != token) {
			return
		}
		d, found = p.Draft, true
		s.Pending = Idle{}
	})
	return d, found
}

// RestoreDraft puts back a draft taken by TakeDraft whose save failed. It
// reports false when another operation started in the meantime.
func (m *Manager) RestoreDraft(userID int64, d Draft) bool {
	restored := false
	_, _ = m.update(userID, func(s *State) {
		if !s.Idle() {
			return
		}
		s.Pending = AwaitingDraftDecision{Draft: d}
		restored = true
	})
	return restored
}

// BeginDraftEdit moves the pending draft into AwaitingEdit{Target: "new"}.
func (m *Manager) BeginDraftEdit(userID int64, token string, promptRef int64) (Draft, bool) {
	var (
		d     Draft
		found bool
	)
	_, _ = m.update(userID, func(s *State) {
		p, ok := s.Pending.(AwaitingDraftDecision)
		if !ok || (token != "" && p.Draft.Token != token) {
			return
		}
		d, found = p.Draft, true
		draft := p.Draft
		s.Pending = AwaitingEdit{Target: NewDraftTarget, PromptRef: promptRef, Draft: &draft}
	})
	return d, found
}

// BeginEdit waits for replacement text for a saved idea.
func (m *Manager) BeginEdit(userID int64, ideaID string, promptRef int64) error {
	_, err := m.update(userID, func(s *State) {
		s.Pending = AwaitingEdit{Target: ideaID, PromptRef: promptRef}
	})
	return err
}

// BeginSearch waits for a search query.
func (m *Manager) BeginSearch(userID int64, promptRef int64) error {
	_, err := m.update(userID, func(s *State) {
		s.Pending = AwaitingSearch{PromptRef: promptRef}
	})
	return err
}

// Clear drops the pending operation and returns what was pending.
func (m *Manager) Clear(userID int64) (Pending, error) {
	var prev Pending = Idle{}
	_, err := m.update(userID, func(s *State) {
		if s.Pending != nil {
			prev = s.Pending
		}
		s.Pending = Idle{}
	})
	return prev, err
}

// TogglePaused flips the pause flag.
func (m *Manager) TogglePaused(userID int64) (State, error) {
	return m.update(userID, func(s *State) { s.Paused = !s.Paused })
}

// SetPaused sets the pause flag.
func (m *Manager) SetPaused(userID int64, paused bool) (State, error) {
	return m.update(userID, func(s *State) { s.Paused = paused })
}

// ToggleConfirm flips confirm mode.
func (m *Manager) ToggleConfirm(userID int64) (State, error) {
	return m.update(userID, func(s *State) { s.ConfirmMode = !s.ConfirmMode })
}

// SetConfirm sets confirm mode.
func (m *Manager) SetConfirm(userID int64, on bool) (State, error) {
	return m.update(userID, func(s *State) { s.ConfirmMode = on })
}

// ToggleDigest flips the weekly digest subscription.
func (m *Manager) ToggleDigest(userID int64) (State, error) {
	return m.update(userID, func(s *State) { s.DigestEnabled = !s.DigestEnabled })
}

// SetBrowseOffset moves the browse cursor. Negative offsets clamp to zero.
func (m *Manager) SetBrowseOffset(userID int64, offset int) (State, error) {
	return m.update(userID, func(s *State) { s.BrowseOffset = max(offset, 0) })
}

func newToken() string {
	return ulid.Make().String()
}

// Package conversation tracks per-user chat state: orthogonal toggles plus a
// single pending-operation slot that decides how the next text is read.
package conversation

import (
	"time"

	"github.com/alekspetrov/ideabot/internal/idea"
)

// NewDraftTarget is the edit target meaning "the unsaved draft".
const NewDraftTarget = "new"

// Draft is a capture waiting for Save, Edit or Discard. Token changes every
// time the draft is (re)presented so stale buttons can be detected.
type Draft struct {
	Token     string
	Text      string
	Input     idea.InputKind
	PromptRef int64
	CreatedAt time.Time
}

// Pending is the single pending operation. Exactly one variant is active.
type Pending interface {
	pendingName() string
}

// Idle means no operation is pending.
type Idle struct{}

// AwaitingEdit waits for replacement text. Target is an idea ID, or
// NewDraftTarget with Draft set.
type AwaitingEdit struct {
	Target    string
	PromptRef int64
	Draft     *Draft
}

// AwaitingSearch waits for a search query.
type AwaitingSearch struct {
	PromptRef int64
}

// AwaitingDraftDecision holds an unsaved capture.
type AwaitingDraftDecision struct {
	Draft Draft
}

func (Idle) pendingName() string                  { return "idle" }
func (AwaitingEdit) pendingName() string          { return "awaiting_edit" }
func (AwaitingSearch) pendingName() string        { return "awaiting_search" }
func (AwaitingDraftDecision) pendingName() string { return "awaiting_draft_decision" }

// PendingName returns a stable label for p, for logs and the API.
func PendingName(p Pending) string {
	if p == nil {
		return Idle{}.pendingName()
	}
	return p.pendingName()
}

// PromptRef returns the chat message that prompted p, or 0.
func PromptRef(p Pending) int64 {
	switch v := p.(type) {
	case AwaitingEdit:
		return v.PromptRef
	case AwaitingSearch:
		return v.PromptRef
	case AwaitingDraftDecision:
		return v.Draft.PromptRef
	default:
		return 0
	}
}

// State is one user's conversation state. Values returned by Manager are
// copies; mutate through Manager methods.
type State struct {
	UserID        int64
	ProfileID     string
	Paused        bool
	ConfirmMode   bool
	DigestEnabled bool
	Pending       Pending
	BrowseOffset  int
}

// Settings returns the toggles in their durable form.
func (s State) Settings() idea.Settings {
	return idea.Settings{
		Paused:        s.Paused,
		ConfirmMode:   s.ConfirmMode,
		DigestEnabled: s.DigestEnabled,
	}
}

// Idle reports whether nothing is pending.
func (s State) Idle() bool {
	_, idle := s.Pending.(Idle)
	return idle || s.Pending == nil
}

// AwaitsInput reports whether the next message answers a pending edit or
// search. A pending draft decision waits for a button, not a message.
func (s State) AwaitsInput() bool {
	switch s.Pending.(type) {
	case AwaitingEdit, AwaitingSearch:
		return true
	}
	return false
}

func (s State) clone() State {
	if e, ok := s.Pending.(AwaitingEdit); ok && e.Draft != nil {
		d := *e.Draft
		e.Draft = &d
		s.Pending = e
	}
	return s
}

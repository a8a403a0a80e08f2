// Package idea defines the captured-idea domain shared by the store, the AI
// provider chain and the chat front ends.
package idea

import "time"

// InputKind records how an idea reached the bot.
type InputKind string

const (
	InputText  InputKind = "text"
	InputVoice InputKind = "voice"
)

// Valid reports whether k is a known input kind.
func (k InputKind) Valid() bool {
	return k == InputText || k == InputVoice
}

// Idea is a persisted capture.
type Idea struct {
	ID               string    `json:"id"`
	ProfileID        string    `json:"profile_id"`
	Input            InputKind `json:"input"`
	Transcript       string    `json:"transcript"`
	EditedTranscript *string   `json:"edited_transcript,omitempty"`
	Category         string    `json:"category"`
	EditedCategory   *string   `json:"edited_category,omitempty"`
	Confidence       float64   `json:"confidence"`
	Tags             []string  `json:"tags"`
	Starred          bool      `json:"starred"`
	Archived         bool      `json:"archived"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DisplayText returns the user's edit when present, otherwise the transcript.
func (i *Idea) DisplayText() string {
	if i.EditedTranscript != nil && *i.EditedTranscript != "" {
		return *i.EditedTranscript
	}
	return i.Transcript
}

// DisplayCategory returns the user's chosen category when present.
func (i *Idea) DisplayCategory() string {
	if i.EditedCategory != nil && *i.EditedCategory != "" {
		return *i.EditedCategory
	}
	return i.Category
}

// Profile is the durable per-user record. The toggles seed in-memory
// conversation state after a restart or cache eviction.
type Profile struct {
	ID            string    `json:"id"`
	TelegramID    int64     `json:"telegram_id"`
	Username      string    `json:"username,omitempty"`
	FirstName     string    `json:"first_name,omitempty"`
	Paused        bool      `json:"paused"`
	ConfirmMode   bool      `json:"confirm_mode"`
	DigestEnabled bool      `json:"digest_enabled"`
	Onboarded     bool      `json:"onboarded"`
	CreatedAt     time.Time `json:"created_at"`
}

// Settings is the subset of Profile the user can toggle from chat.
type Settings struct {
	Paused        bool
	ConfirmMode   bool
	DigestEnabled bool
}

// Settings returns the profile's toggles.
func (p *Profile) Settings() Settings {
	return Settings{
		Paused:        p.Paused,
		ConfirmMode:   p.ConfirmMode,
		DigestEnabled: p.DigestEnabled,
	}
}

// Categorization is the classifier's verdict for a piece of text.
type Categorization struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags"`
}

// Insights summarizes a window of ideas.
type Insights struct {
	Themes      []string `json:"themes"`
	Connections []string `json:"connections"`
	Observation string   `json:"observation"`
}

// CategoryCount is one row of the top-categories breakdown.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Stats aggregates a profile's ideas.
type Stats struct {
	Total         int             `json:"total"`
	ThisPeriod    int             `json:"this_period"`
	Starred       int             `json:"starred"`
	Voice         int             `json:"voice"`
	TopCategories []CategoryCount `json:"top_categories"`
}

package idea

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestDisplayResolution(t *testing.T) {
	tests := []struct {
		name         string
		idea         Idea
		wantText     string
		wantCategory string
	}{
		{
			name:         "original only",
			idea:         Idea{Transcript: "raw", Category: "Business"},
			wantText:     "raw",
			wantCategory: "Business",
		},
		{
			name: "edited wins",
			idea: Idea{
				Transcript:       "raw",
				EditedTranscript: strPtr("polished"),
				Category:         "Business",
				EditedCategory:   strPtr("Product"),
			},
			wantText:     "polished",
			wantCategory: "Product",
		},
		{
			name:         "empty edit falls back",
			idea:         Idea{Transcript: "raw", EditedTranscript: strPtr(""), Category: "Learning", EditedCategory: strPtr("")},
			wantText:     "raw",
			wantCategory: "Learning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantText, tt.idea.DisplayText())
			assert.Equal(t, tt.wantCategory, tt.idea.DisplayCategory())
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"lowercases", []string{"Pricing", "BILLING"}, []string{"pricing", "billing"}},
		{"strips punctuation", []string{"#usage-based", "b2b!"}, []string{"usagebased", "b2b"}},
		{"dedupes after cleanup", []string{"SaaS", "saas", "s-a-a-s"}, []string{"saas"}},
		{"drops empties", []string{"", "   ", "--", "ok"}, []string{"ok"}},
		{"caps at five", []string{"a", "b", "c", "d", "e", "f", "g"}, []string{"a", "b", "c", "d", "e"}},
		{"nil", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.in))
		})
	}
}

func TestMergeCategories(t *testing.T) {
	t.Run("seeds only", func(t *testing.T) {
		assert.Equal(t, SeedCategories, MergeCategories(nil))
	})

	t.Run("learned first, case-insensitive dedupe", func(t *testing.T) {
		got := MergeCategories([]string{"Health", "business", "Health"})
		assert.Equal(t, []string{"Health", "business", "Product", "Personal", "Creative", "Technical", "Learning"}, got)
	})

	t.Run("skips blank names", func(t *testing.T) {
		got := MergeCategories([]string{"  ", "Ops"})
		require.NotEmpty(t, got)
		assert.Equal(t, "Ops", got[0])
		assert.Len(t, got, len(SeedCategories)+1)
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{9 * time.Second, "0:09"},
		{150 * time.Second, "2:30"},
		{61*time.Minute + 5*time.Second, "61:05"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestErrVoiceTooLong(t *testing.T) {
	err := ErrVoiceTooLong(150*time.Second, 2*time.Minute)

	assert.Contains(t, err.Error(), "2:30")
	assert.Contains(t, err.Error(), "2 minutes")
	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsValidation(fmt.Errorf("plain")))
}

func TestProfileSettings(t *testing.T) {
	p := Profile{Paused: true, DigestEnabled: true}
	assert.Equal(t, Settings{Paused: true, DigestEnabled: true}, p.Settings())
}

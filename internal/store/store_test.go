package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alekspetrov/ideabot/internal/idea"
)

func newSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, newSQLite)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("IDEABOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("IDEABOT_TEST_POSTGRES_DSN not set")
	}

	runStoreSuite(t, func(t *testing.T) Store {
		s, err := NewPostgresStore(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

// telegramIDs keeps suites isolated when they share a postgres database.
var telegramIDs = time.Now().UnixNano() % 1_000_000_000

func nextTelegramID() int64 {
	telegramIDs++
	return telegramIDs
}

func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	profile := func(t *testing.T, s Store) *idea.Profile {
		p, err := s.GetOrCreateProfile(ctx, ProfileInput{TelegramID: nextTelegramID(), Username: "ada", FirstName: "Ada"})
		require.NoError(t, err)
		return p
	}

	create := func(t *testing.T, s Store, profileID, text, category string, tags ...string) *idea.Idea {
		i, err := s.CreateIdea(ctx, NewIdea{
			ProfileID:  profileID,
			Input:      idea.InputText,
			Transcript: text,
			Category:   category,
			Confidence: 0.8,
			Tags:       tags,
		})
		require.NoError(t, err)
		return i
	}

	t.Run("profile get or create is idempotent", func(t *testing.T) {
		s := open(t)
		id := nextTelegramID()

		first, err := s.GetOrCreateProfile(ctx, ProfileInput{TelegramID: id, Username: "old"})
		require.NoError(t, err)
		assert.True(t, first.DigestEnabled)
		assert.False(t, first.ConfirmMode)
		assert.False(t, first.Onboarded)

		second, err := s.GetOrCreateProfile(ctx, ProfileInput{TelegramID: id, Username: "new"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "new", second.Username)
	})

	t.Run("profile settings round trip", func(t *testing.T) {
		s := open(t)
		p := profile(t, s)

		require.NoError(t, s.UpdateProfileSettings(ctx, p.ID, idea.Settings{Paused: true, ConfirmMode: true}))
		require.NoError(t, s.MarkOnboarded(ctx, p.ID))

		got, err := s.GetProfile(ctx, p.TelegramID)
		require.NoError(t, err)
		assert.Equal(t, idea.Settings{Paused: true, ConfirmMode: true}, got.Settings())
		assert.True(t, got.Onboarded)

		digest, err := s.ListDigestProfiles(ctx)
		require.NoError(t, err)
		for _, d := range digest {
			assert.NotEqual(t, p.ID, d.ID)
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		s := open(t)
		_, err := s.GetProfile(ctx, -1)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.MarkOnboarded(ctx, "00000000-0000-0000-0000-000000000000"), ErrNotFound)
	})

	t.Run("create normalizes tags", func(t *testing.T) {
		s := open(t)
		p := profile(t, s)

		i := create(t, s, p.ID, "ship usage-based pricing", "Business", "Pricing", "billing", "PRICING")
		assert.Len(t, i.ID, 26)
		assert.Equal(t, []string{"pricing", "billing"}, i.Tags)

		got, err := s.GetIdea(ctx, p.ID, i.ID)
		require.NoError(t, err)
		assert.Equal(t, "Business", got.Category)
		assert.Equal(t, []string{"pricing", "billing"}, got.Tags)
		assert.InDelta(t, 0.8, got.Confidence, 0.0001)
		assert.Nil(t, got.EditedTranscript)
	})

	t.Run("create rejects bad input", func(t *testing.T) {
		s := open(t)
		_, err := s.CreateIdea(ctx, NewIdea{ProfileID: "x", Input: "fax", Transcript: "t"})
		var pe *PersistenceError
		assert.True(t, errors.As(err, &pe))
	})

	t.Run("reads are scoped to the owner", func(t *testing.T) {
		s := open(t)
		owner := profile(t, s)
		other := profile(t, s)

		i := create(t, s, owner.ID, "private", "Personal", "secret")

		_, err := s.GetIdea(ctx, other.ID, i.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.UpdateIdea(ctx, other.ID, i.ID, Update{Starred: boolPtr(true)})
		assert.ErrorIs(t, err, ErrNotFound)

		n, err := s.CountIdeas(ctx, other.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("pagination newest first", func(t *testing.T) {
		s := open(t)
		p := profile(t, s)

		for n := 0; n < 7; n++ {
			create(t, s, p.ID, fmt.Sprintf("idea %d", n), "Product", "t")
		}

		total, err := s.CountIdeas(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, total)

		page, err := s.RecentIdeas(ctx, p.ID, 0, 5)
		require.NoError(t, err)
		require.Len(t, page, 5)
		assert.Equal(t, "idea 6", page[0].Transcript)
		assert.Equal(t, "idea 2", page[4].Transcript)

		page, err = s.RecentIdeas(ctx, p.ID, 5, 5)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "idea 1", page[0].Transcript)
		assert.Equal(t, "idea 0", page[1].Transcript)
	})

	t.Run("update edits and archive hides", func(t *testing.T) {
		s := open(t)
		p := profile(t, s)
		i := create(t, s, p.ID, "raw text", "Business", "a")

		updated, err := s.UpdateIdea(ctx, p.ID, i.ID, Update{
			EditedTranscript: strPtr("better text"),
			EditedCategory:   strPtr("Product"),
			Starred:          boolPtr(true),
		})
		require.NoError(t, err)
		assert.Equal(t, "better text", updated.DisplayText())
		assert.Equal(t, "Product", updated.DisplayCategory())
		assert.Equal(t, "raw text", updated.Transcript)
		assert.True(t, updated.Starred)

		starred, err := s.StarredIdeas(ctx, p.ID, 10)
		require.NoError(t, err)
		require.Len(t, starred, 1)

		archived, err := s.UpdateIdea(ctx, p.ID, i.ID, Update{Archived: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, archived.Archived)

		_, err = s.GetIdea(ctx, p.ID, i.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		recent, err := s.RecentIdeas(ctx, p.ID, 0, 5)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("search matches edited text category and tags", func(t *testing.T) {
		s := open(t)
		p := profile(t, s)

		a := create(t, s, p.ID, "integrate Stripe checkout", "Business", "payments")
		create(t, s, p.ID, "morning routine", "Personal", "health")
		c := create(t, s, p.ID, "old words", "Technical", "infra")
		_, err := s.UpdateIdea(ctx, p.ID, c.ID, Update{EditedTranscript: strPtr("stripe webhooks retry")})
		require.NoError(t, err)

		got, err := s.SearchIdeas(ctx, p.ID, "stripe", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, c.ID, got[0].ID)
		assert.Equal(t, a.ID, got[1].ID)

		got, err = s.SearchIdeas(ctx, p.ID, "health", 10)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = s.SearchIdeas(ctx, p.ID, "kubernetes", 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = s.SearchIdeas(ctx, p.ID, "100%", 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("category listing and stats", func(t *testing.T) {
		s := open(t)
		p := profile(t, s)

		create(t, s, p.ID, "one", "Business", "a")
		create(t, s, p.ID, "two", "Business", "a")
		three := create(t, s, p.ID, "three", "Product", "a")
		_, err := s.UpdateIdea(ctx, p.ID, three.ID, Update{EditedCategory: strPtr("Business"), Starred: boolPtr(true)})
		require.NoError(t, err)
		create(t, s, p.ID, "four", "Learning", "a")

		cats, err := s.Categories(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Business", "Learning"}, cats)

		byCat, err := s.IdeasByCategory(ctx, p.ID, "business", 10)
		require.NoError(t, err)
		assert.Len(t, byCat, 3)

		st, err := s.Stats(ctx, p.ID, time.Now().Add(-7*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 4, st.Total)
		assert.Equal(t, 4, st.ThisPeriod)
		assert.Equal(t, 1, st.Starred)
		assert.Equal(t, 0, st.Voice)
		require.Len(t, st.TopCategories, 2)
		assert.Equal(t, idea.CategoryCount{Category: "Business", Count: 3}, st.TopCategories[0])

		future, err := s.Stats(ctx, p.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Zero(t, future.ThisPeriod)
	})

	t.Run("ideas since window", func(t *testing.T) {
		s := open(t)
		p := profile(t, s)
		create(t, s, p.ID, "first", "Business", "a")
		create(t, s, p.ID, "second", "Business", "a")

		got, err := s.IdeasSince(ctx, p.ID, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "first", got[0].Transcript)

		got, err = s.IdeasSince(ctx, p.ID, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(&Config{Driver: "mongo"})
	assert.Error(t, err)
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := wrap("create_idea", cause)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "create_idea", pe.Op)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")

	assert.Same(t, ErrNotFound, wrap("get_idea", ErrNotFound))
	assert.Nil(t, wrap("noop", nil))
}

func TestLikePatternEscapes(t *testing.T) {
	assert.Equal(t, `%100\%%`, likePattern(" 100% "))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/logging"
	"github.com/alekspetrov/ideabot/internal/store"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	defaultStatsDays = 7
	maxStatsDays     = 365
)

// IdeasResponse is the /api/v1/ideas payload.
type IdeasResponse struct {
	Ideas  []*idea.Idea `json:"ideas"`
	Total  int          `json:"total"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
}

// StatsResponse is the /api/v1/stats payload.
type StatsResponse struct {
	*idea.Stats
	WindowDays int `json:"window_days"`
}

// CategoriesResponse is the /api/v1/categories payload.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// handleIdeas lists a user's ideas. Filters are mutually exclusive and
// checked in order: q, category, starred. Without a filter the result is a
// page of recent ideas and Total counts every live idea.
func (s *Server) handleIdeas(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.resolveProfile(w, r)
	if !ok {
		return
	}

	offset, err := optionalInt(r, "offset", 0, 0, -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := optionalInt(r, "limit", defaultPageLimit, 1, maxPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	q := r.URL.Query()
	var (
		ideas []*idea.Idea
		total int
	)
	switch {
	case strings.TrimSpace(q.Get("q")) != "":
		ideas, err = s.store.SearchIdeas(ctx, profile.ID, strings.TrimSpace(q.Get("q")), limit)
		total = len(ideas)
	case strings.TrimSpace(q.Get("category")) != "":
		ideas, err = s.store.IdeasByCategory(ctx, profile.ID, strings.TrimSpace(q.Get("category")), limit)
		total = len(ideas)
	case q.Get("starred") == "true":
		ideas, err = s.store.StarredIdeas(ctx, profile.ID, limit)
		total = len(ideas)
	default:
		ideas, err = s.store.RecentIdeas(ctx, profile.ID, offset, limit)
		if err == nil {
			total, err = s.store.CountIdeas(ctx, profile.ID)
		}
	}
	if err != nil {
		s.internalError(w, "list ideas", err)
		return
	}
	if ideas == nil {
		ideas = []*idea.Idea{}
	}

	writeJSON(w, http.StatusOK, IdeasResponse{
		Ideas:  ideas,
		Total:  total,
		Offset: offset,
		Limit:  limit,
	})
}

// handleStats returns totals for a user over the last `days` days.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.resolveProfile(w, r)
	if !ok {
		return
	}

	days, err := optionalInt(r, "days", defaultStatsDays, 1, maxStatsDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := s.store.Stats(r.Context(), profile.ID, since)
	if err != nil {
		s.internalError(w, "stats", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{Stats: stats, WindowDays: days})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.resolveProfile(w, r)
	if !ok {
		return
	}

	learned, err := s.store.Categories(r.Context(), profile.ID)
	if err != nil {
		s.internalError(w, "categories", err)
		return
	}

	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: idea.MergeCategories(learned)})
}

// resolveProfile handles the shared preamble of every API call: method,
// store presence and the telegram_id lookup. It writes the error response
// itself and reports whether the caller should continue.
func (s *Server) resolveProfile(w http.ResponseWriter, r *http.Request) (*idea.Profile, bool) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return nil, false
	}

	telegramID, err := optionalInt64(r, "telegram_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if telegramID == 0 {
		writeError(w, http.StatusBadRequest, "telegram_id is required")
		return nil, false
	}

	profile, err := s.store.GetProfile(r.Context(), telegramID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return nil, false
	}
	if err != nil {
		s.internalError(w, "get profile", err)
		return nil, false
	}
	return profile, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	logging.WithComponent("gateway").Error("API request failed",
		slog.String("op", op),
		slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// optionalInt parses a query parameter, falling back to def when absent.
// Values above hi are clamped; a negative hi means unbounded.
func optionalInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < lo {
		return 0, fmt.Errorf("%s must be at least %d", name, lo)
	}
	if hi >= 0 && n > hi {
		n = hi
	}
	return n, nil
}

func optionalInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

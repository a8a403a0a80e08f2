package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/logging"
	"github.com/alekspetrov/ideabot/internal/store"
)

const (
	// wsPingInterval is the interval between ping frames sent to the client.
	wsPingInterval = 30 * time.Second
	// wsPongTimeout is how long to wait for a pong response before closing.
	wsPongTimeout = 10 * time.Second
	// wsWriteTimeout is the deadline for writing a message to the client.
	wsWriteTimeout = 5 * time.Second
	// wsHistoryCount is the number of recent ideas sent on connect.
	wsHistoryCount = 10
)

const (
	feedHistory = "history"
	feedIdea    = "idea"
)

// feedMessage is the envelope for every frame on the live feed.
type feedMessage struct {
	Type  string       `json:"type"`
	Ideas []*idea.Idea `json:"ideas,omitempty"`
	Event *IdeaEvent   `json:"event,omitempty"`
}

// handleLiveFeed upgrades to WebSocket and streams captured ideas. With a
// telegram_id query parameter the feed is scoped to that user and opens with
// their most recent ideas; without one it carries everyone's captures.
func (s *Server) handleLiveFeed(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "live feed not configured")
		return
	}

	telegramID, err := optionalInt64(r, "telegram_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.WithComponent("gateway").Error("live feed upgrade error", slog.Any("error", err))
		return
	}
	defer func() { _ = conn.Close() }()

	log := logging.WithComponent("gateway")
	log.Info("live feed connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int64("telegram_id", telegramID))

	// Subscribe before reading history so nothing captured in between is lost.
	sub := s.hub.Subscribe(telegramID)
	defer s.hub.Unsubscribe(sub)

	history, err := s.feedHistory(r.Context(), telegramID)
	if err != nil {
		log.Warn("live feed history failed", slog.Any("error", err))
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(feedMessage{Type: feedHistory, Ideas: history}); err != nil {
		log.Warn("live feed initial send failed", slog.Any("error", err))
		return
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))

	// Read pump: clients send nothing, this only notices disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					log.Warn("live feed read error", slog.Any("error", err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(feedMessage{Type: feedIdea, Event: &event}); err != nil {
				log.Debug("live feed write error", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// feedHistory returns the user's latest ideas oldest first.
func (s *Server) feedHistory(ctx context.Context, telegramID int64) ([]*idea.Idea, error) {
	if s.store == nil || telegramID == 0 {
		return []*idea.Idea{}, nil
	}

	profile, err := s.store.GetProfile(ctx, telegramID)
	if errors.Is(err, store.ErrNotFound) {
		return []*idea.Idea{}, nil
	}
	if err != nil {
		return []*idea.Idea{}, err
	}

	recent, err := s.store.RecentIdeas(ctx, profile.ID, 0, wsHistoryCount)
	if err != nil {
		return []*idea.Idea{}, err
	}

	// RecentIdeas is newest first
	result := make([]*idea.Idea, len(recent))
	for i, it := range recent {
		result[len(recent)-1-i] = it
	}
	return result, nil
}

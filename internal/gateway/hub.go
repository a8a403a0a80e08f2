package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alekspetrov/ideabot/internal/idea"
	"github.com/alekspetrov/ideabot/internal/logging"
)

// subscriberBuffer is how many events a slow client may lag before drops.
const subscriberBuffer = 32

// IdeaEvent is one captured idea as pushed to live feed clients.
type IdeaEvent struct {
	TelegramID int64      `json:"telegram_id"`
	Idea       *idea.Idea `json:"idea"`
	At         time.Time  `json:"at"`
}

// Subscription is a live feed client's event stream.
type Subscription struct {
	ID         string
	TelegramID int64 // 0 receives every user's ideas
	Events     chan IdeaEvent
	CreatedAt  time.Time
}

// Hub fans captured ideas out to live feed subscribers. The Telegram handler
// publishes through IdeaCaptured.
type Hub struct {
	subs map[string]*Subscription
	mu   sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]*Subscription),
	}
}

// Subscribe registers a client. telegramID filters events to one user; zero
// receives all.
func (h *Hub) Subscribe(telegramID int64) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		ID:         uuid.New().String(),
		TelegramID: telegramID,
		Events:     make(chan IdeaEvent, subscriberBuffer),
		CreatedAt:  time.Now(),
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.ID]; ok {
		close(sub.Events)
		delete(h.subs, sub.ID)
	}
}

// Count returns the number of active subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// IdeaCaptured publishes a newly saved idea. It never blocks; a subscriber
// whose buffer is full misses the event.
func (h *Hub) IdeaCaptured(telegramID int64, i *idea.Idea) {
	event := IdeaEvent{TelegramID: telegramID, Idea: i, At: time.Now()}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.TelegramID != 0 && sub.TelegramID != telegramID {
			continue
		}
		select {
		case sub.Events <- event:
		default:
			logging.WithComponent("gateway").Debug("live feed subscriber lagging, event dropped",
				slog.String("subscription", sub.ID))
		}
	}
}

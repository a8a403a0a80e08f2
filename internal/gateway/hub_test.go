package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alekspetrov/ideabot/internal/idea"
)

func TestHubFiltersByUser(t *testing.T) {
	hub := NewHub()
	all := hub.Subscribe(0)
	mine := hub.Subscribe(1)
	require.Equal(t, 2, hub.Count())

	hub.IdeaCaptured(1, &idea.Idea{ID: "a"})
	hub.IdeaCaptured(2, &idea.Idea{ID: "b"})

	require.Len(t, all.Events, 2)
	require.Len(t, mine.Events, 1)

	ev := <-mine.Events
	assert.Equal(t, int64(1), ev.TelegramID)
	assert.Equal(t, "a", ev.Idea.ID)
	assert.False(t, ev.At.IsZero())
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(0)

	for i := 0; i < subscriberBuffer+5; i++ {
		hub.IdeaCaptured(1, &idea.Idea{ID: "x"})
	}

	assert.Len(t, sub.Events, subscriberBuffer)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(0)

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub) // second call is a no-op

	assert.Equal(t, 0, hub.Count())
	_, ok := <-sub.Events
	assert.False(t, ok, "channel should be closed")

	// Publishing after unsubscribe must not panic on the closed channel
	hub.IdeaCaptured(1, &idea.Idea{ID: "late"})
}

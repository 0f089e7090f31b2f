package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a, unsubA := hub.Subscribe()
	b, unsubB := hub.Subscribe()
	defer unsubA()

	assert.Equal(t, 2, hub.Len())

	LocalBus{Hub: hub}.Publish(context.Background(), Event{Type: TypeJournalCreated, JournalID: "j1"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case evt := <-ch:
			assert.Equal(t, TypeJournalCreated, evt.Type)
			assert.Equal(t, "j1", evt.JournalID)
			assert.False(t, evt.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	unsubB()
	unsubB()
	assert.Equal(t, 1, hub.Len())
	_, open := <-b
	require.False(t, open)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	ch, unsub := hub.Subscribe()
	defer unsub()

	for i := 0; i < 100; i++ {
		hub.Broadcast(Event{Type: TypeResponsesSaved})
	}
	assert.Len(t, ch, cap(ch))
}

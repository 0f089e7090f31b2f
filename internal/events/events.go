// Package events broadcasts journal lifecycle events to connected admin dashboards.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	TypeJournalCreated   = "journal.created"
	TypeResponsesSaved   = "journal.responses_saved"
	TypeReportGenerated  = "journal.report_generated"
	TypeClientActivated  = "client.activated"
	TypeClientInvited    = "client.invited"
	TypeKnowledgeChanged = "knowledge.changed"
)

// Event is the payload sent over Redis and WebSocket.
type Event struct {
	Type      string    `json:"type"`
	JournalID string    `json:"journalId,omitempty"`
	ClientID  string    `json:"clientId,omitempty"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher never fails the caller; delivery problems are logged by the implementation.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Hub fans events out to local subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe returns a buffered channel of events and a function that detaches it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Broadcast delivers evt to every subscriber. Slow subscribers miss events.
func (h *Hub) Broadcast(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// LocalBus publishes straight into a Hub. Used when Redis is not configured.
type LocalBus struct {
	Hub *Hub
}

func (b LocalBus) Publish(_ context.Context, evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	b.Hub.Broadcast(evt)
}

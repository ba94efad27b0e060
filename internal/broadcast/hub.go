// Package broadcast fans record changes out to viewers of an event.
//
// Hub is an explicit registry of subscriptions keyed by event id: viewers
// Join an event before they receive anything and Leave when they go away.
// Delivery is best-effort; a viewer that falls behind loses messages and
// recovers with its own periodic re-fetch.
package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Shivanand-hulikatti/ekiden-tracker/internal/model"
)

// Message types.
const (
	TypeRecordsCreated = "records-created"
	TypeRecordDeleted  = "record-deleted"
	TypeRecordsReset   = "records-reset"
)

// Message is one change notification for an event.
type Message struct {
	Type     string         `json:"type"`
	EventID  string         `json:"event_id"`
	Records  []model.Record `json:"records,omitempty"`
	RecordID string         `json:"record_id,omitempty"`
}

// Publisher accepts messages for fan-out.
type Publisher interface {
	Publish(ctx context.Context, msg Message)
}

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 16

// Subscription is one viewer's membership of an event channel.
type Subscription struct {
	eventID string
	ch      chan Message
}

// EventID returns the event the subscription listens to.
func (s *Subscription) EventID() string { return s.eventID }

// C delivers messages until the subscription leaves.
func (s *Subscription) C() <-chan Message { return s.ch }

// Hub is the in-process subscription registry.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: DefaultBuffer,
		logger: logger.With("component", "broadcast"),
	}
}

// Join subscribes to an event's messages.
func (h *Hub) Join(eventID string) *Subscription {
	sub := &Subscription{eventID: eventID, ch: make(chan Message, h.buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[eventID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[eventID] = set
	}
	set[sub] = struct{}{}
	h.logger.Debug("viewer joined", "event_id", eventID, "viewers", len(set))
	return sub
}

// Leave unsubscribes and closes the subscription's channel. Leaving twice
// is a no-op.
func (h *Hub) Leave(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.eventID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, sub.eventID)
	}
	h.logger.Debug("viewer left", "event_id", sub.eventID, "viewers", len(set))
}

// Subscribers reports how many viewers an event currently has.
func (h *Hub) Subscribers(eventID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[eventID])
}

// Publish delivers msg to every subscriber of msg.EventID without blocking.
func (h *Hub) Publish(ctx context.Context, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[msg.EventID] {
		select {
		case sub.ch <- msg:
		default:
			h.logger.DebugContext(ctx, "viewer queue full, dropping message",
				"event_id", msg.EventID, "type", msg.Type)
		}
	}
}

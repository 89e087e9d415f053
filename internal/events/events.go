// Package events carries order status changes to in-process subscribers,
// primarily the websocket stream.
package events

import (
	"sync"
	"time"

	"github.com/TheHadiAhmadi/hesabpay/internal/models"
)

// OrderEvent is emitted whenever an order settles.
type OrderEvent struct {
	OrderID       string             `json:"order_id"`
	Status        models.OrderStatus `json:"status"`
	TransactionID string             `json:"transaction_id,omitempty"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

const subscriberBuffer = 16

// Subscription is one subscriber's feed. Close releases it; C is closed
// afterwards.
type Subscription struct {
	C   <-chan OrderEvent
	hub *Hub
	ch  chan OrderEvent
}

func (s *Subscription) Close() {
	s.hub.unsubscribe(s.ch)
}

// Hub fans order events out to subscribers. Delivery is best effort: a
// subscriber that stops draining its channel loses events rather than
// stalling the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan OrderEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan OrderEvent]struct{})}
}

func (h *Hub) Subscribe() *Subscription {
	ch := make(chan OrderEvent, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return &Subscription{C: ch, hub: h, ch: ch}
}

func (h *Hub) unsubscribe(ch chan OrderEvent) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Publish(ev OrderEvent) {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

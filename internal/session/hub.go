package session

import (
	"sync"

	"gridsync-ws/internal/metrics"
)

// Hub is the broadcast channel for one table session: a multi-producer,
// multi-subscriber fan-out that delivers the canonical event stream to
// every subscriber in the order publishers completed their critical
// sections.
//
// Publish is serialized by mu, which is what establishes a total order
// across concurrent writers on different cells: whichever goroutine's
// Publish call takes the lock first is ordered first for every
// subscriber.
type Hub struct {
	mu        sync.Mutex
	subs      map[uint64]chan []byte
	nextSubID uint64
	capacity  int
	metrics   *metrics.Registry
}

// NewHub creates a Hub with the given bounded per-subscriber buffer
// capacity (default 100).
func NewHub(capacity int, metricsRegistry *metrics.Registry) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		subs:     make(map[uint64]chan []byte),
		capacity: capacity,
		metrics:  metricsRegistry,
	}
}

// Subscribe registers a new subscriber and returns its id (for
// Unsubscribe) and receive channel.
func (h *Hub) Subscribe() (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSubID
	h.nextSubID++
	ch := make(chan []byte, h.capacity)
	h.subs[id] = ch
	if h.metrics != nil {
		h.metrics.Sessions.Subscribers.Inc()
	}
	return id, ch
}

// Unsubscribe removes and closes a subscriber's channel. Safe to call
// more than once for the same id.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(ch)
	if h.metrics != nil {
		h.metrics.Sessions.Subscribers.Dec()
	}
}

// Publish delivers payload to every current subscriber exactly once.
// Publish never blocks: if a subscriber's buffer is full, the oldest
// buffered event is dropped to make room for the new one. A subscriber
// whose buffer is still full even after that eviction (the reader is
// stalled, not just momentarily behind) simply misses this event; its
// connection handler notices on the next failed socket write and tears
// the connection down.
func (h *Hub) Publish(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- payload:
			continue
		default:
		}

		select {
		case <-ch:
			if h.metrics != nil {
				h.metrics.Messages.Dropped.Inc()
			}
		default:
		}

		select {
		case ch <- payload:
		default:
			if h.metrics != nil {
				h.metrics.Messages.Dropped.Inc()
			}
		}
	}
	if h.metrics != nil {
		h.metrics.Messages.Published.Inc()
	}
}

// Package signals fans process-wide notifications out to subscribers.
//
// The runtime publishes on TopicGlobal and TopicRoute when the shared
// stores change, and components exchange custom events through emit and
// receive on named topics.
package signals

import (
	"slices"
	"sync"
)

const (
	// TopicGlobal is published after every write to the global store.
	TopicGlobal = "global"
	// TopicRoute is published after every write to the route store.
	TopicRoute = "route"
)

// Handler receives the data passed to Publish.
type Handler func(data any)

type subscription struct {
	id uint64
	fn Handler
}

// Hub is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type Hub struct {
	mu     sync.RWMutex
	next   uint64
	topics map[string][]subscription
}

// NewHub returns a Hub with no subscribers.
func NewHub() *Hub {
	return &Hub{topics: make(map[string][]subscription)}
}

// Subscribe registers fn for topic and returns a function that removes it.
// Calling the returned function more than once is harmless.
func (h *Hub) Subscribe(topic string, fn Handler) (unsubscribe func()) {
	h.mu.Lock()
	h.next++
	id := h.next
	h.topics[topic] = append(h.topics[topic], subscription{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.topics[topic]
		if i := slices.IndexFunc(subs, func(s subscription) bool { return s.id == id }); i >= 0 {
			h.topics[topic] = slices.Delete(slices.Clone(subs), i, i+1)
		}
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish calls every handler subscribed to topic. Handlers added or
// removed during Publish take effect on the next call.
func (h *Hub) Publish(topic string, data any) {
	h.mu.RLock()
	subs := h.topics[topic]
	h.mu.RUnlock()

	for _, s := range subs {
		s.fn(data)
	}
}

// Subscribers returns the number of handlers on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

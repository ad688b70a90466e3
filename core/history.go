package core

import "sync"

const DefaultHistoryCapacity = 200

// History is a bounded newest-first buffer of validated messages. Once
// full, the oldest entry is dropped from the tail.
type History struct {
	mu       sync.RWMutex
	items    []InboundMessage
	capacity int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		items:    make([]InboundMessage, 0, capacity),
		capacity: capacity,
	}
}

func (h *History) Push(msg InboundMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) < h.capacity {
		h.items = append(h.items, InboundMessage{})
	}
	copy(h.items[1:], h.items[:len(h.items)-1])
	h.items[0] = msg
}

// Snapshot returns a copy, newest first.
func (h *History) Snapshot() []InboundMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]InboundMessage, len(h.items))
	copy(out, h.items)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History) Capacity() int {
	return h.capacity
}

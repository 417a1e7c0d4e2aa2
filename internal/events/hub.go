// Package events fans attendance and liveness events out to subscribers.
package events

import (
	"sync"
	"time"
)

// Event types.
const (
	TypeAttendanceMarked = "attendance.marked"
	TypeLivenessAdvanced = "liveness.advanced"
	TypeRecognizerReload = "recognizer.reloaded"
)

// Event is a notification published by the kiosk.
type Event struct {
	Type      string    `json:"type"`
	SubjectID string    `json:"subject_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	At        time.Time `json:"at"`
}

// Hub is an in-process publish/subscribe bus. Slow subscribers drop events
// rather than block publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

// NewHub creates a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to every subscriber. At is filled in if zero.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

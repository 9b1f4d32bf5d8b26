package app

import (
	"sync"
	"time"

	"medquiz-service/internal/domain"
)

// Hub fans out vote tallies of one question to its WebSocket subscribers.
type Hub struct {
	questionID  int
	now         func() time.Time
	mu          sync.RWMutex
	tally       *domain.VoteTally
	subscribers map[chan domain.VoteTally]struct{}
}

// NewHub is exported for infrastructure layers that keep hubs in their own registries.
func NewHub(questionID int) *Hub {
	return newHubWithClock(questionID, time.Now)
}

// NewHubWithClock is test-only for deterministic timestamps.
func NewHubWithClock(questionID int, now func() time.Time) *Hub {
	return newHubWithClock(questionID, now)
}

func newHubWithClock(questionID int, now func() time.Time) *Hub {
	return &Hub{
		questionID:  questionID,
		now:         now,
		subscribers: make(map[chan domain.VoteTally]struct{}),
	}
}

// IsIdle reports whether nobody is listening on the hub.
func (h *Hub) IsIdle() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers) == 0
}

// seed sets the initial tally unless one has already been published.
func (h *Hub) seed(t domain.VoteTally) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tally == nil {
		t.UpdatedAt = h.now()
		h.tally = &t
	}
}

func (h *Hub) publish(t domain.VoteTally) domain.VoteTally {
	h.mu.Lock()
	defer h.mu.Unlock()
	t.QuestionID = h.questionID
	t.UpdatedAt = h.now()
	h.tally = &t
	h.broadcastLocked()
	return t
}

func (h *Hub) subscribe() (<-chan domain.VoteTally, func()) {
	ch := make(chan domain.VoteTally, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	if h.tally != nil {
		ch <- *h.tally
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) broadcastLocked() {
	tally := *h.tally
	for ch := range h.subscribers {
		select {
		case ch <- tally:
		default:
			// Drop the stale update so a slow client never blocks voting.
			select {
			case <-ch:
			default:
			}
			ch <- tally
		}
	}
}

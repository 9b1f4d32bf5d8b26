package quiz

import (
	"sync"
	"time"
)

// Store is the process-wide holder of State. All mutations go through Dispatch, which applies
// Reduce under the lock and publishes the new snapshot to subscribers.
type Store struct {
	mu          sync.RWMutex
	state       State
	lastToken   uint64
	now         func() time.Time
	subscribers map[chan State]struct{}
}

func NewStore(initial State) *Store {
	return NewStoreWithClock(initial, time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(initial State, now func() time.Time) *Store {
	if initial.Latest == nil {
		initial.Latest = map[Slice]uint64{}
	}
	return &Store{
		state:       initial,
		now:         now,
		subscribers: make(map[chan State]struct{}),
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Now exposes the store clock so producers of actions stamp them consistently.
func (s *Store) Now() time.Time {
	return s.now()
}

// Dispatch applies a and returns the resulting state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, a)
	s.broadcastLocked()
	return s.state
}

// Begin issues a new fetch token for slice and records it as the latest, so results of
// earlier fetches for the same slice are discarded when they complete.
func (s *Store) Begin(slice Slice) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastToken++
	token := s.lastToken
	s.state = Reduce(s.state, FetchStarted(slice, token, s.now()))
	s.broadcastLocked()
	return token
}

// Subscribe returns a channel receiving a snapshot after every dispatch, starting with the
// current one. The caller must invoke cancel to release the subscription.
func (s *Store) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.state
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) broadcastLocked() {
	for ch := range s.subscribers {
		select {
		case ch <- s.state:
		default:
			// Slow readers only need the newest snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- s.state
		}
	}
}

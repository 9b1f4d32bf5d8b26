package memory

import (
	"sync"

	"medquiz-service/internal/app"
)

// HubStore is an in-memory implementation of app.HubRepository.
type HubStore struct {
	mu   sync.RWMutex
	hubs map[int]*app.Hub
}

func NewHubStore() *HubStore {
	return &HubStore{
		hubs: make(map[int]*app.Hub),
	}
}

func (s *HubStore) GetOrCreate(questionID int) *app.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hub, ok := s.hubs[questionID]; ok {
		return hub
	}
	hub := app.NewHub(questionID)
	s.hubs[questionID] = hub
	return hub
}

func (s *HubStore) Get(questionID int) (*app.Hub, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hub, ok := s.hubs[questionID]
	return hub, ok
}

func (s *HubStore) DeleteIfIdle(questionID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub, ok := s.hubs[questionID]
	if !ok {
		return
	}
	if hub.IsIdle() {
		delete(s.hubs, questionID)
	}
}

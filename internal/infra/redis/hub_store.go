package redis

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"medquiz-service/internal/app"
)

// HubStore is a Redis-aware implementation of app.HubRepository.
// Hubs and their subscribers live in this process; Redis only carries a liveness marker per
// question so operators can see which questions have live viewers.
type HubStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	hubs   map[int]*app.Hub
}

func NewHubStore(client *redis.Client, ttl time.Duration) *HubStore {
	return &HubStore{
		client: client,
		ttl:    ttl,
		hubs:   make(map[int]*app.Hub),
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(questionID), "1", s.ttl).Err()
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
		_ = s.client.Del(context.Background(), s.key(questionID)).Err()
	}
}

func (s *HubStore) key(questionID int) string {
	return "question:hub:" + strconv.Itoa(questionID)
}

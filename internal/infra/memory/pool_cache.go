package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"medquiz-service/internal/domain"
)

// PoolLoader fetches a whole semester of questions from the backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, semester int) ([]domain.Question, error)
}

// PoolCache caches semester pools with TTL to avoid repeated DB hits.
type PoolCache struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int]cachedPool
	// generation is bumped by Invalidate; a load only fills the cache if it is unchanged.
	generation map[int]uint64
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewPoolCache(loader PoolLoader, ttl time.Duration) *PoolCache {
	return &PoolCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int]cachedPool),

		generation: make(map[int]uint64),
	}
}

func (c *PoolCache) GetPool(ctx context.Context, semester int) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[semester]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(strconv.Itoa(semester), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[semester]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		gen := c.generation[semester]
		c.mu.RUnlock()

		questions, err := c.loader.LoadPool(ctx, semester)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generation[semester] == gen {
			c.cache[semester] = cachedPool{
				questions: questions,
				expiresAt: now.Add(c.ttlWithJitter()),
			}
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached pool so the next read reloads it. A load already in flight
// still answers its callers but no longer fills the cache.
func (c *PoolCache) Invalidate(_ context.Context, semester int) error {
	c.mu.Lock()
	delete(c.cache, semester)
	c.generation[semester]++
	c.mu.Unlock()
	c.sf.Forget(strconv.Itoa(semester))
	return nil
}

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"medquiz-service/internal/domain"
	"medquiz-service/internal/logger"
)

// PoolLoader fetches a whole semester of questions from the backing store.
type PoolLoader interface {
	LoadPool(ctx context.Context, semester int) ([]domain.Question, error)
}

// PoolCache caches semester pools in Redis (hash per semester) and falls back to a loader on miss.
// Questions are stored as: HSET pool:{semester} {questionID} {question JSON}
// An empty semester is marked with: SET pool:{semester}:empty 1
// Invalidate bumps INCR pool:{semester}:gen; a load only writes back if the generation it read
// before loading is still current (WATCH on the generation key).
type PoolCache struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewPoolCache(client *redis.Client, loader PoolLoader, ttl time.Duration) *PoolCache {
	return &PoolCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *PoolCache) GetPool(ctx context.Context, semester int) ([]domain.Question, error) {
	if questions, ok := c.cached(ctx, semester); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(strconv.Itoa(semester), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.cached(ctx, semester); ok {
			return questions, nil
		}
		gen, err := c.generation(ctx, semester)
		if err != nil {
			return nil, err
		}

		questions, err := c.loader.LoadPool(ctx, semester)
		if err != nil {
			return nil, err
		}
		c.store(ctx, semester, gen, questions)
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached pool so the next read reloads it. A load already in flight
// still answers its callers but no longer fills the cache.
func (c *PoolCache) Invalidate(ctx context.Context, semester int) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(semester))
		pipe.Del(ctx, c.poolKey(semester), c.emptyKey(semester))
		return nil
	})
	c.sf.Forget(strconv.Itoa(semester))
	return err
}

func (c *PoolCache) generation(ctx context.Context, semester int) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(semester)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *PoolCache) cached(ctx context.Context, semester int) ([]domain.Question, bool) {
	entries, err := c.client.HGetAll(ctx, c.poolKey(semester)).Result()
	if err != nil {
		return nil, false
	}
	if len(entries) == 0 {
		if n, err := c.client.Exists(ctx, c.emptyKey(semester)).Result(); err == nil && n > 0 {
			return []domain.Question{}, true
		}
		return nil, false
	}
	questions, err := decodePool(entries)
	if err != nil {
		logger.Error("discarding undecodable pool cache", "semester", semester, "error", err)
		return nil, false
	}
	return questions, true
}

func (c *PoolCache) store(ctx context.Context, semester int, gen int64, questions []domain.Question) {
	encoded := make(map[string]any, len(questions))
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			logger.Error("failed to encode question for pool cache", "question_id", q.ID, "error", err)
			return
		}
		encoded[strconv.Itoa(q.ID)] = data
	}

	ttl := c.ttlWithJitter()
	key := c.poolKey(semester)
	genKey := c.genKey(semester)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStalePool
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key, c.emptyKey(semester))
			if len(encoded) == 0 {
				pipe.Set(ctx, c.emptyKey(semester), "1", ttl)
				return nil
			}
			pipe.HSet(ctx, key, encoded)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStalePool), errors.Is(err, redis.TxFailedErr):
		logger.Debug("skipping pool cache write after invalidation", "semester", semester)
	default:
		logger.Error("failed to store pool cache", "semester", semester, "error", err)
	}
}

var errStalePool = errors.New("pool invalidated during load")

func decodePool(entries map[string]string) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(entries))
	for _, raw := range entries {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })
	return questions, nil
}

func (c *PoolCache) poolKey(semester int) string {
	return "pool:" + strconv.Itoa(semester)
}

func (c *PoolCache) emptyKey(semester int) string {
	return "pool:" + strconv.Itoa(semester) + ":empty"
}

func (c *PoolCache) genKey(semester int) string {
	return "pool:" + strconv.Itoa(semester) + ":gen"
}

func (c *PoolCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

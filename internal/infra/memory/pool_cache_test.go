package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"medquiz-service/internal/domain"
)

func TestPoolCacheCaches(t *testing.T) {
	loader := &countingLoader{pools: map[int][]domain.Question{7: samplePool()}}
	cache := NewPoolCache(loader, time.Minute)

	if _, err := cache.GetPool(context.Background(), 7); err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	pool, err := cache.GetPool(context.Background(), 7)
	if err != nil {
		t.Fatalf("get pool 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
	if len(pool) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(pool))
	}
}

func TestPoolCacheInvalidateReloads(t *testing.T) {
	loader := &countingLoader{pools: map[int][]domain.Question{7: samplePool()}}
	cache := NewPoolCache(loader, time.Minute)

	_, _ = cache.GetPool(context.Background(), 7)
	if err := cache.Invalidate(context.Background(), 7); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = cache.GetPool(context.Background(), 7)
	if loader.count() != 2 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.count())
	}
}

func TestPoolCacheExpires(t *testing.T) {
	loader := &countingLoader{pools: map[int][]domain.Question{7: samplePool()}}
	cache := NewPoolCache(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetPool(context.Background(), 7)
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetPool(context.Background(), 7)
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}
}

func TestPoolCacheConcurrentMissesShareLoad(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{pools: map[int][]domain.Question{9: samplePool()}, gate: release}
	cache := NewPoolCache(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetPool(context.Background(), 9); err != nil {
				t.Errorf("get pool: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if loader.count() != 1 {
		t.Fatalf("expected a single load for concurrent misses, got %d", loader.count())
	}
}

type countingLoader struct {
	mu    sync.Mutex
	pools map[int][]domain.Question
	gate  chan struct{}
	calls int
}

func (l *countingLoader) LoadPool(_ context.Context, semester int) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	if l.gate != nil {
		<-l.gate
	}
	return l.pools[semester], nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func samplePool() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "Hvad er normal CRP?", ExamSet: domain.ExamSet{Semester: 7, Year: 2018, Season: "F"}},
		{ID: 2, Text: "Hvilken bakterie?", ExamSet: domain.ExamSet{Semester: 7, Year: 2018, Season: "E"}},
	}
}

// versionedLoader serves a pool tagged with the current version. The first load signals
// started and waits for release.
type versionedLoader struct {
	mu      sync.Mutex
	version int
	calls   int
	started chan struct{}
	release chan struct{}
}

func (l *versionedLoader) LoadPool(_ context.Context, _ int) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	version := l.version
	l.mu.Unlock()
	if first {
		close(l.started)
		<-l.release
	}
	return []domain.Question{{ID: version}}, nil
}

func (l *versionedLoader) setVersion(v int) {
	l.mu.Lock()
	l.version = v
	l.mu.Unlock()
}

func TestPoolCacheInvalidateDuringLoad(t *testing.T) {
	loader := &versionedLoader{version: 1, started: make(chan struct{}), release: make(chan struct{})}
	cache := NewPoolCache(loader, time.Minute)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.GetPool(ctx, 7)
	}()
	<-loader.started
	loader.setVersion(2)
	if err := cache.Invalidate(ctx, 7); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	close(loader.release)
	<-done

	pool, err := cache.GetPool(ctx, 7)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if len(pool) != 1 || pool[0].ID != 2 {
		t.Fatalf("expected the pool loaded after invalidation, got %+v", pool)
	}
}

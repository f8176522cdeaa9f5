package rate

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter guarda contadores en proceso con go-cache.
// Válido para una sola réplica (dev, tests, despliegues chicos).
type MemoryLimiter struct {
	mu  sync.Mutex
	c   *gocache.Cache
	Now func() time.Time
}

type bucket struct {
	start time.Time
	hits  int64
}

// NewMemoryLimiter crea el limiter con limpieza periódica de buckets vencidos.
func NewMemoryLimiter(cleanup time.Duration) *MemoryLimiter {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryLimiter{c: gocache.New(time.Minute, cleanup), Now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, p Policy) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	now := l.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.c.Get(key)
	bk, _ := b.(*bucket)
	if !ok || bk == nil || !now.Before(bk.start.Add(p.Window)) {
		bk = &bucket{start: now}
	}
	bk.hits++
	next := bk.start.Add(p.Window)
	l.c.Set(key, bk, next.Sub(now)+time.Second)
	return result(bk.hits, p, now, next), nil
}

package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	var mu sync.Mutex
	cur := t
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}
}

func TestMemoryLimiter_101stRequestLimited(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	base := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	l.Now = fixedClock(base)
	ctx := context.Background()

	for i := 1; i <= 100; i++ {
		res, err := l.Allow(ctx, "10.0.0.1|api", DefaultPolicy)
		require.NoError(t, err)
		require.Truef(t, res.Allowed, "hit %d", i)
	}
	res, err := l.Allow(ctx, "10.0.0.1|api", DefaultPolicy)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(101), res.CurrentHits)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter)

	// otra clave no se ve afectada
	res, err = l.Allow(ctx, "10.0.0.2|api", DefaultPolicy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// la ventana siguiente arranca de cero
	l.Now = fixedClock(base.Add(time.Minute))
	res, err = l.Allow(ctx, "10.0.0.1|api", DefaultPolicy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.CurrentHits)
}

func TestMemoryLimiter_WindowAnchoredAtFirstHit(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	first := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	l.Now = fixedClock(first)
	ctx := context.Background()

	for i := 1; i <= 100; i++ {
		res, err := l.Allow(ctx, "10.0.0.1|api", DefaultPolicy)
		require.NoError(t, err)
		require.Truef(t, res.Allowed, "hit %d", i)
	}

	// cruza el minuto del reloj pero sigue dentro de los 60s del primer hit
	l.Now = fixedClock(first.Add(40 * time.Second))
	res, err := l.Allow(ctx, "10.0.0.1|api", DefaultPolicy)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, first.Add(time.Minute), res.ResetAt)
	assert.Equal(t, 20*time.Second, res.RetryAfter)

	l.Now = fixedClock(first.Add(time.Minute))
	res, err = l.Allow(ctx, "10.0.0.1|api", DefaultPolicy)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, first.Add(2*time.Minute), res.ResetAt)
}

func TestMemoryLimiter_ConcurrentHitsCountedOnce(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	l.Now = fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	p := Policy{Max: 50, Window: time.Minute}

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Allow(context.Background(), "k", p)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestPolicyValidation(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	_, err := l.Allow(context.Background(), "k", Policy{})
	assert.Error(t, err)
}

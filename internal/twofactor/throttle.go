package twofactor

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// attemptThrottle limita intentos de código por identidad (token bucket).
// Los buckets inactivos expiran solos.
type attemptThrottle struct {
	perMinute int
	buckets   *gocache.Cache
}

func newAttemptThrottle(perMinute int) *attemptThrottle {
	if perMinute <= 0 {
		return nil
	}
	return &attemptThrottle{
		perMinute: perMinute,
		buckets:   gocache.New(10*time.Minute, 5*time.Minute),
	}
}

// allow consume un intento. Un throttle nil no limita.
func (t *attemptThrottle) allow(identityID string) bool {
	if t == nil {
		return true
	}
	var lim *rate.Limiter
	if v, ok := t.buckets.Get(identityID); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(t.perMinute)), t.perMinute)
		if err := t.buckets.Add(identityID, lim, gocache.DefaultExpiration); err != nil {
			// otro goroutine lo creó primero
			if v, ok := t.buckets.Get(identityID); ok {
				lim = v.(*rate.Limiter)
			}
		}
	}
	t.buckets.SetDefault(identityID, lim)
	return lim.Allow()
}

// Package rate implementa límites de ventana fija. La ventana de cada clave
// arranca con su primer hit y se recrea cuando vence.
package rate

import (
	"context"
	"errors"
	"time"
)

// Policy es el cupo por ventana.
type Policy struct {
	Max    int64
	Window time.Duration
}

// DefaultPolicy: 100 requests por minuto.
var DefaultPolicy = Policy{Max: 100, Window: time.Minute}

func (p Policy) validate() error {
	if p.Max <= 0 || p.Window <= 0 {
		return errors.New("rate: policy needs Max > 0 and Window > 0")
	}
	return nil
}

// Result es el estado del bucket después de contar el hit.
type Result struct {
	Allowed     bool
	Remaining   int64
	CurrentHits int64
	// ResetAt es el cierre de la ventana actual.
	ResetAt time.Time
	// RetryAfter solo se completa cuando Allowed es false.
	RetryAfter time.Duration
}

// Limiter cuenta un hit para key bajo la política dada.
// El incremento es atómico: dos hits concurrentes nunca ven el mismo conteo.
type Limiter interface {
	Allow(ctx context.Context, key string, p Policy) (Result, error)
}

func result(hits int64, p Policy, now, next time.Time) Result {
	r := Result{
		Allowed:     hits <= p.Max,
		CurrentHits: hits,
		Remaining:   p.Max - hits,
		ResetAt:     next,
	}
	if r.Remaining < 0 {
		r.Remaining = 0
	}
	if !r.Allowed {
		r.RetryAfter = next.Sub(now)
		if r.RetryAfter < time.Second {
			r.RetryAfter = time.Second
		}
	}
	return r
}

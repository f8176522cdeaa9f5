package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter guarda contadores en Redis (INCR + EXPIRE NX + PTTL en un MULTI).
// El primer hit fija el vencimiento de la clave; los siguientes no lo mueven.
// EXPIRE NX necesita Redis >= 7.0. Sirve para múltiples réplicas del proceso.
type RedisLimiter struct {
	Client rdb.Cmdable
	Prefix string
	Now    func() time.Time
}

// NewRedisLimiter crea el limiter; prefix vacío usa "rl:".
func NewRedisLimiter(client rdb.Cmdable, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, p Policy) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	now := l.Now().UTC()
	k := l.Prefix + strings.ReplaceAll(key, " ", "_")

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, p.Window)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate: redis: %w", err)
	}
	left := ttl.Val()
	if left <= 0 {
		left = p.Window
	}
	return result(incr.Val(), p, now, now.Add(left)), nil
}

package session

import (
	"context"
	"time"

	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// Purger borra sesiones vencidas cada Interval hasta que ctx se cancela.
type Purger struct {
	Registry *Registry
	Interval time.Duration
}

func (p *Purger) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	log := logger.From(ctx).With(logger.Component("session.purger"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := p.Registry.PurgeExpired(ctx)
			if err != nil {
				log.Warn("session purge failed", logger.Err(err))
				continue
			}
			if n > 0 {
				log.Info("expired sessions purged", logger.Count(n))
			}
		}
	}
}

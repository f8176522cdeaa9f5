package invitation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// Sweeper corre SweepExpired y CleanupStale periódicamente hasta que ctx
// se cancela. La expiración perezosa sigue aplicando aunque no corra.
type Sweeper struct {
	Manager  *Manager
	Interval time.Duration
	Timeout  time.Duration // por pasada; default 30s
}

// Run bloquea hasta que ctx termina. Siempre devuelve nil: un error de una
// pasada se loguea y se reintenta en el siguiente tick.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	log := logger.From(ctx).With(logger.Component("invitation.sweeper"))
	log.Info("invitation sweeper started", logger.Duration(interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("invitation sweeper stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx, log)
		}
	}
}

func (s *Sweeper) runOnce(parent context.Context, log *zap.Logger) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	expired, err := s.Manager.SweepExpired(ctx)
	if err != nil {
		log.Warn("sweep failed", logger.Err(err))
		return
	}
	deleted, err := s.Manager.CleanupStale(ctx)
	if err != nil {
		log.Warn("cleanup failed", logger.Err(err))
		return
	}
	if expired > 0 || deleted > 0 {
		log.Info("invitation sweep", logger.Int("expired", expired), logger.Int("deleted", deleted))
	}
}

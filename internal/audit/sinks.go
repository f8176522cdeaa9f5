package audit

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// LogSink escribe eventos como líneas estructuradas de zap.
type LogSink struct {
	L *zap.Logger
}

func (s LogSink) Write(ctx context.Context, e Event) error {
	l := s.L
	if l == nil {
		l = logger.From(ctx)
	}
	fields := []zap.Field{
		logger.Component("audit"),
		logger.String("audit_id", e.ID),
		logger.String("action", e.Action),
		logger.String("actor_id", e.ActorID),
		logger.String("target", e.Target),
		logger.String("origin", e.Origin),
		logger.String("outcome", string(e.Outcome)),
	}
	if len(e.Meta) > 0 {
		fields = append(fields, logger.Any("meta", e.Meta))
	}
	l.Info("audit", fields...)
	return nil
}

// MemorySink guarda eventos en memoria (tests y modo dev).
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (s *MemorySink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

// Events devuelve una copia de los eventos registrados.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByAction filtra por acción.
func (s *MemorySink) ByAction(action string) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// Multi despacha a todos los sinks y junta los errores.
type Multi []Sink

func (m Multi) Write(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

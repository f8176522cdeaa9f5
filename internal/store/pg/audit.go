package pg

import (
	"context"

	"github.com/dropDatabas3/posguard/internal/audit"
)

// AuditSink implementa audit.Sink sobre la tabla audit_events.
type AuditSink struct {
	db DB
}

var _ audit.Sink = (*AuditSink)(nil)

func (s *AuditSink) Write(ctx context.Context, e audit.Event) error {
	meta := e.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_events (id, at, actor_id, action, target, origin, outcome, meta) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.At, e.ActorID, e.Action, e.Target, e.Origin, string(e.Outcome), meta)
	return err
}

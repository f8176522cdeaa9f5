// Package audit registra eventos de seguridad (intentos 2FA, invitaciones,
// terminación de sesiones) en uno o más sinks.
package audit

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// Outcome del evento auditado.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Acciones auditadas.
const (
	ActionTwoFactorEnroll  = "2fa.enroll"
	ActionTwoFactorConfirm = "2fa.confirm"
	ActionTwoFactorVerify  = "2fa.verify"
	ActionTwoFactorDisable = "2fa.disable"
	ActionInvitationCreate = "invitation.create"
	ActionInvitationAccept = "invitation.accept"
	ActionInvitationCancel = "invitation.cancel"
	ActionInvitationSweep  = "invitation.sweep"
	ActionSessionCreate    = "session.create"
	ActionSessionTerminate = "session.terminate"
	ActionSessionRevokeAll = "session.revoke_all"
	ActionLogin            = "auth.login"
)

// Event es un registro inmutable de auditoría.
type Event struct {
	ID      string
	At      time.Time
	ActorID string
	Action  string
	Target  string
	Origin  string
	Outcome Outcome
	Meta    map[string]string
}

// Sink persiste eventos. Write no debe bloquear el flujo principal por mucho tiempo.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID genera un ULID monotónico (ordenable por tiempo).
func NewID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// Recorder completa ID, timestamp y origen, y despacha a un Sink.
// Un error del sink se loguea y no se propaga.
type Recorder struct {
	Sink Sink
	Now  func() time.Time
}

// NewRecorder crea un Recorder; sink nil equivale a descartar.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{Sink: sink, Now: time.Now}
}

// Record escribe un evento.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil || r.Sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = r.Now().UTC()
	}
	if e.ID == "" {
		e.ID = NewID(e.At)
	}
	if e.Origin == "" {
		e.Origin = authctx.OriginFrom(ctx)
	}
	if e.ActorID == "" {
		if p, ok := authctx.PrincipalFrom(ctx); ok {
			e.ActorID = p.IdentityID
		}
	}
	if err := r.Sink.Write(ctx, e); err != nil {
		logger.From(ctx).Warn("audit write failed",
			logger.Component("audit"), logger.String("action", e.Action), logger.Err(err))
	}
}

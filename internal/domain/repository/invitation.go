package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/posguard/internal/rbac"
)

// InvitationStatus es el estado persistido de una invitación.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// Terminal informa si el estado ya no admite transiciones.
func (s InvitationStatus) Terminal() bool { return s != InvitationPending }

// Invitation es una oferta de un solo uso para unirse con rol y scope.
type Invitation struct {
	ID          string
	TokenHash   string
	Email       string
	Role        rbac.Role
	InviterID   string
	Scope       rbac.Scope
	Status      InvitationStatus
	ExpiresAt   time.Time
	CreatedAt   time.Time
	AcceptedAt  *time.Time
	AcceptedBy  *string
	CancelledAt *time.Time
}

// EffectiveStatus trata una invitación pendiente vencida como expirada,
// aunque el barrido todavía no la haya marcado.
func (i *Invitation) EffectiveStatus(now time.Time) InvitationStatus {
	if i.Status == InvitationPending && !now.Before(i.ExpiresAt) {
		return InvitationExpired
	}
	return i.Status
}

// AcceptInvitationInput agrupa lo necesario para aceptar en una sola transacción.
type AcceptInvitationInput struct {
	TokenHash string
	Now       time.Time
	// Solo se usan si no existe identidad con el email invitado.
	NewIdentityID string
	Name          string
	PasswordHash  string
}

// AcceptInvitationResult es el resultado de una aceptación exitosa.
type AcceptInvitationResult struct {
	Invitation Invitation
	Identity   Identity
	Created    bool
}

// InvitationFilter filtra el listado por scope y estado.
type InvitationFilter struct {
	Scope  rbac.Scope
	Status *InvitationStatus
	Limit  int
}

// InvitationRepository define el ciclo de vida persistido de invitaciones.
type InvitationRepository interface {
	// Create inserta una invitación pendiente. Antes marca como expiradas las
	// pendientes vencidas del mismo (email, scope). Retorna ErrConflict si
	// queda otra pendiente vigente.
	Create(ctx context.Context, inv Invitation) error

	// GetByTokenHash retorna ErrNotFound si no existe.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Invitation, error)

	// List retorna invitaciones cuyo scope está contenido en filter.Scope.
	List(ctx context.Context, filter InvitationFilter) ([]Invitation, error)

	// MarkExpired pasa pending -> expired si ya venció. Retorna true si cambió.
	MarkExpired(ctx context.Context, id string, now time.Time) (bool, error)

	// Accept hace pending -> accepted y crea o actualiza la identidad, todo
	// en una transacción. ErrNotFound, ErrExpired o ErrConflict si no aplica.
	Accept(ctx context.Context, in AcceptInvitationInput) (*AcceptInvitationResult, error)

	// Cancel hace pending -> cancelled. ErrConflict si ya era terminal.
	Cancel(ctx context.Context, id string, now time.Time) (*Invitation, error)

	// ExpireAll marca como expiradas todas las pendientes vencidas.
	ExpireAll(ctx context.Context, now time.Time) (int, error)

	// DeleteStale borra expiradas o canceladas creadas antes de olderThan.
	DeleteStale(ctx context.Context, olderThan time.Time) (int, error)
}

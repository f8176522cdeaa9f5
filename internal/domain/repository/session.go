package repository

import (
	"context"
	"time"
)

// Session es una sesión autenticada. Solo se guarda el hash del token.
type Session struct {
	ID           string
	IdentityID   string
	TokenHash    string
	Device       string
	Origin       string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
}

// Active informa si la sesión sigue vigente en now.
func (s *Session) Active(now time.Time) bool { return now.Before(s.ExpiresAt) }

// SessionRepository define operaciones para el registro de sesiones.
type SessionRepository interface {
	// Create inserta la sesión.
	Create(ctx context.Context, s Session) error

	// GetByTokenHash retorna ErrNotFound si no existe.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Session, error)

	// Touch actualiza last_activity. No falla si la sesión ya no existe.
	Touch(ctx context.Context, id string, at time.Time) error

	// ListActive retorna sesiones no vencidas de la identidad, más recientes primero.
	ListActive(ctx context.Context, identityID string, now time.Time) ([]Session, error)

	// Delete borra una sesión. ErrNotFound si no existía.
	Delete(ctx context.Context, id string) error

	// DeleteByIdentity borra todas las sesiones de la identidad.
	DeleteByIdentity(ctx context.Context, identityID string) (int, error)

	// DeleteExpired borra sesiones vencidas.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

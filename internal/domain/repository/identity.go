package repository

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/posguard/internal/rbac"
)

// Identity es un usuario autenticable con un rol y un scope de tenant.
type Identity struct {
	ID           string
	Email        string
	Name         string
	Role         rbac.Role
	Scope        rbac.Scope
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentityRepository define lectura de identidades y alta de bootstrap.
// El alta normal ocurre dentro de InvitationRepository.Accept.
type IdentityRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Identity, error)

	// GetByEmail busca por email normalizado. Retorna ErrNotFound si no existe.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// Create inserta una identidad (bootstrap del primer super_admin).
	// Retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, id Identity) error
}

// NormalizeEmail es la forma canónica usada para unicidad y búsquedas.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

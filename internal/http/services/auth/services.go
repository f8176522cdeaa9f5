// Package auth contiene los services de autenticación: login con contraseña,
// desafío 2FA y logout de la sesión actual.
package auth

import (
	"context"
	"time"

	"github.com/dropDatabas3/posguard/internal/audit"
	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/security/password"
	"github.com/dropDatabas3/posguard/internal/session"
)

// Sessions es la parte del registro de sesiones que usa el login.
type Sessions interface {
	Create(ctx context.Context, identityID, device, origin string) (*session.Issued, error)
	Terminate(ctx context.Context, requester authctx.Principal, identityID, sessionID string) error
}

// TwoFactor es la parte del manager 2FA que usa el login.
type TwoFactor interface {
	Enabled(ctx context.Context, identityID string) (bool, error)
	Verify(ctx context.Context, identityID, code, backupCode string) error
}

// Deps contiene las dependencias para crear los services auth.
type Deps struct {
	Identities repository.IdentityRepository
	Sessions   Sessions
	TwoFactor  TwoFactor
	Audit      *audit.Recorder
	// ChallengeSecret firma el token de desafío 2FA (HS256).
	ChallengeSecret string
	ChallengeTTL    time.Duration
	Issuer          string
	PasswordParams  password.Params
	Now             func() time.Time
}

// Services agrupa los services del dominio auth.
type Services struct {
	Login LoginService
}

// NewServices crea el agregador de services auth.
func NewServices(d Deps) Services {
	return Services{Login: NewLoginService(d)}
}

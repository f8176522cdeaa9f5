// Package controllers adapta HTTP a los managers de dominio. No decide
// permisos: eso lo hacen RequirePermission y los propios managers.
package controllers

import (
	"context"
	"time"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
	authsvc "github.com/dropDatabas3/posguard/internal/http/services/auth"
	"github.com/dropDatabas3/posguard/internal/invitation"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/session"
	"github.com/dropDatabas3/posguard/internal/twofactor"
)

// InvitationService es lo que expone invitation.Manager.
type InvitationService interface {
	Create(ctx context.Context, inviter authctx.Principal, in invitation.CreateInput) (*invitation.Created, error)
	Validate(ctx context.Context, token string) (*invitation.View, error)
	Accept(ctx context.Context, token string, creds invitation.Credentials) (*invitation.Accepted, error)
	Cancel(ctx context.Context, actor authctx.Principal, invitationID string) (*invitation.View, error)
	List(ctx context.Context, actor authctx.Principal, status *repository.InvitationStatus, limit int) ([]invitation.View, error)
}

// TwoFactorService es lo que expone twofactor.Manager.
type TwoFactorService interface {
	Status(ctx context.Context, identityID string) (*twofactor.Status, error)
	BeginEnrollment(ctx context.Context, identityID string) (*twofactor.Enrollment, error)
	ConfirmEnrollment(ctx context.Context, identityID, code string) ([]string, error)
	Verify(ctx context.Context, identityID, code, backupCode string) error
	Disable(ctx context.Context, identityID, code, backupCode string) error
}

// SessionService es lo que expone session.Registry.
type SessionService interface {
	List(ctx context.Context, identityID, presentedToken string) ([]session.View, error)
	Terminate(ctx context.Context, requester authctx.Principal, identityID, sessionID string) error
	TerminateAll(ctx context.Context, identityID string) (int, error)
}

// CSRFIssuer emite tokens CSRF (ver security/csrf).
type CSRFIssuer interface {
	Issue(sessionToken string) (string, error)
}

// HealthCheck informa si una dependencia responde.
type HealthCheck func(ctx context.Context) error

// Deps agrupa lo necesario para construir todos los controllers.
type Deps struct {
	Auth        authsvc.LoginService
	Invitations InvitationService
	TwoFactor   TwoFactorService
	Sessions    SessionService
	CSRF        CSRFIssuer
	Cookies     helpers.CookieConfig
	Resolver    *rbac.Resolver
	Checks      map[string]HealthCheck
	Version     string
	CheckTimeout time.Duration
}

// Controllers agrupa los controllers de la API.
type Controllers struct {
	Auth        *AuthController
	Invitations *InvitationController
	TwoFactor   *TwoFactorController
	Sessions    *SessionController
	Health      *HealthController
	Pages       *PageController
}

// New crea el agregador de controllers.
func New(d Deps) *Controllers {
	if d.Resolver == nil {
		d.Resolver = rbac.Default()
	}
	return &Controllers{
		Auth:        &AuthController{svc: d.Auth, csrf: d.CSRF, cookies: d.Cookies, resolver: d.Resolver},
		Invitations: &InvitationController{svc: d.Invitations},
		TwoFactor:   &TwoFactorController{svc: d.TwoFactor, sessions: d.Sessions, cookies: d.Cookies},
		Sessions:    &SessionController{svc: d.Sessions, cookies: d.Cookies},
		Health:      &HealthController{checks: d.Checks, version: d.Version, timeout: d.CheckTimeout},
		Pages:       &PageController{},
	}
}

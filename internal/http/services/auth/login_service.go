package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/posguard/internal/audit"
	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/security/password"
	"github.com/dropDatabas3/posguard/internal/session"
)

// ErrInvalidCredentials no distingue email inexistente de contraseña errónea.
var ErrInvalidCredentials = fmt.Errorf("auth: invalid credentials: %w", errs.ErrUnauthorized)

// LoginInput son las credenciales y el contexto de red del login.
type LoginInput struct {
	Email    string
	Password string
	Device   string
	Origin   string
}

// ChallengeInput completa un login con 2FA.
type ChallengeInput struct {
	Token      string
	Code       string
	BackupCode string
	Device     string
	Origin     string
}

// LoginResult trae la sesión abierta o, si la identidad tiene 2FA, el desafío.
type LoginResult struct {
	Session            *session.Issued
	ChallengeToken     string
	ChallengeExpiresAt time.Time
}

// LoginService define las operaciones de login.
type LoginService interface {
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	CompleteChallenge(ctx context.Context, in ChallengeInput) (*session.Issued, error)
	Logout(ctx context.Context, p authctx.Principal) error
}

type loginService struct {
	deps      Deps
	challenge *challengeSigner
	dummyOnce sync.Once
	dummy     string
}

// NewLoginService aplica defaults (TTL de desafío 5m).
func NewLoginService(d Deps) LoginService {
	if d.ChallengeTTL <= 0 {
		d.ChallengeTTL = 5 * time.Minute
	}
	if d.Issuer == "" {
		d.Issuer = "posguard"
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.PasswordParams == (password.Params{}) {
		d.PasswordParams = password.Default
	}
	return &loginService{
		deps:      d,
		challenge: newChallengeSigner(d.ChallengeSecret, d.Issuer, d.ChallengeTTL, d.Now),
	}
}

func (s *loginService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("Login"),
	)

	email := repository.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("auth: email and password required: %w", errs.ErrInvalidInput)
	}

	ident, err := s.deps.Identities.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("auth login: %w", err)
		}
		// mismo costo que una verificación real
		password.Verify(in.Password, s.dummyHash())
		s.recordLogin(ctx, "", in.Origin, audit.OutcomeFailure, "unknown_email")
		log.Debug("login failed")
		return nil, ErrInvalidCredentials
	}
	log = log.With(logger.IdentityID(ident.ID))

	if ident.PasswordHash == "" || !password.Verify(in.Password, ident.PasswordHash) {
		s.recordLogin(ctx, ident.ID, in.Origin, audit.OutcomeFailure, "bad_password")
		log.Debug("login failed")
		return nil, ErrInvalidCredentials
	}

	enabled, err := s.deps.TwoFactor.Enabled(ctx, ident.ID)
	if err != nil {
		return nil, fmt.Errorf("auth login: 2fa status: %w", err)
	}
	if enabled {
		tok, exp, err := s.challenge.Issue(ident.ID)
		if err != nil {
			return nil, fmt.Errorf("auth login: challenge: %w", err)
		}
		log.Info("login requires second factor")
		return &LoginResult{ChallengeToken: tok, ChallengeExpiresAt: exp}, nil
	}

	iss, err := s.deps.Sessions.Create(ctx, ident.ID, in.Device, in.Origin)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, ident.ID, in.Origin, audit.OutcomeSuccess, "password")
	log.Info("login succeeded")
	return &LoginResult{Session: iss}, nil
}

func (s *loginService) CompleteChallenge(ctx context.Context, in ChallengeInput) (*session.Issued, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.login"),
		logger.Op("CompleteChallenge"),
	)

	identityID, err := s.challenge.Parse(in.Token)
	if err != nil {
		log.Debug("challenge rejected", logger.Err(err))
		return nil, err
	}
	if strings.TrimSpace(in.Code) == "" && strings.TrimSpace(in.BackupCode) == "" {
		return nil, fmt.Errorf("auth: code or backup_code required: %w", errs.ErrInvalidInput)
	}
	if err := s.deps.TwoFactor.Verify(ctx, identityID, in.Code, in.BackupCode); err != nil {
		s.recordLogin(ctx, identityID, in.Origin, audit.OutcomeFailure, "second_factor")
		return nil, err
	}

	iss, err := s.deps.Sessions.Create(ctx, identityID, in.Device, in.Origin)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, identityID, in.Origin, audit.OutcomeSuccess, "password+2fa")
	log.Info("login succeeded", logger.IdentityID(identityID))
	return iss, nil
}

// Logout cierra la sesión actual. Una sesión que ya no existe no es error.
func (s *loginService) Logout(ctx context.Context, p authctx.Principal) error {
	if p.SessionID == "" {
		return nil
	}
	err := s.deps.Sessions.Terminate(ctx, p, p.IdentityID, p.SessionID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	return err
}

func (s *loginService) dummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummy, _ = password.Hash(s.deps.PasswordParams, "posguard-timing-equalizer")
	})
	return s.dummy
}

func (s *loginService) recordLogin(ctx context.Context, identityID, origin string, outcome audit.Outcome, method string) {
	s.deps.Audit.Record(ctx, audit.Event{
		ActorID: identityID,
		Action:  audit.ActionLogin,
		Target:  identityID,
		Origin:  origin,
		Outcome: outcome,
		Meta:    map[string]string{"method": method},
	})
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/http/dto"
	httperrors "github.com/dropDatabas3/posguard/internal/http/errors"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
	authsvc "github.com/dropDatabas3/posguard/internal/http/services/auth"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/session"
	"github.com/dropDatabas3/posguard/internal/validation"
)

// AuthController maneja login, desafío 2FA, logout, CSRF y /me.
type AuthController struct {
	svc      authsvc.LoginService
	csrf     CSRFIssuer
	cookies  helpers.CookieConfig
	resolver *rbac.Resolver
}

// CSRF maneja GET /api/v1/auth/csrf. Si el request trae cookie de sesión, el
// token queda ligado a ella aunque esté vencida: el Gatekeeper verifica contra
// la cookie cruda antes de resolver la sesión.
func (c *AuthController) CSRF(w http.ResponseWriter, r *http.Request) {
	sessionToken := authctx.SessionTokenFrom(r.Context())
	if sessionToken == "" {
		sessionToken = c.cookies.SessionToken(r)
	}
	tok, err := c.csrf.Issue(sessionToken)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	http.SetCookie(w, c.cookies.CSRFCookie(tok))
	helpers.WriteSensitiveJSON(w, http.StatusOK, dto.CSRFResponse{CSRFToken: tok})
}

// Login maneja POST /api/v1/auth/login.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}

	res, err := c.svc.Login(ctx, authsvc.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Device:   helpers.DeviceLabel(r.UserAgent()),
		Origin:   authctx.OriginFrom(ctx),
	})
	if err != nil {
		c.loginError(w, r, err)
		return
	}
	if res.Session == nil {
		exp := res.ChallengeExpiresAt
		helpers.WriteSensitiveJSON(w, http.StatusOK, dto.LoginResponse{
			Status:         dto.LoginChallengeRequired,
			ChallengeToken: res.ChallengeToken,
			ExpiresAt:      &exp,
		})
		return
	}
	c.startSession(w, r, res.Session)
}

// Challenge maneja POST /api/v1/auth/2fa/challenge.
func (c *AuthController) Challenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dto.ChallengeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}

	iss, err := c.svc.CompleteChallenge(ctx, authsvc.ChallengeInput{
		Token:      req.ChallengeToken,
		Code:       req.Code,
		BackupCode: req.BackupCode,
		Device:     helpers.DeviceLabel(r.UserAgent()),
		Origin:     authctx.OriginFrom(ctx),
	})
	if err != nil {
		c.loginError(w, r, err)
		return
	}
	c.startSession(w, r, iss)
}

// startSession fija la cookie de sesión y rota el CSRF a uno ligado a ella.
func (c *AuthController) startSession(w http.ResponseWriter, r *http.Request, iss *session.Issued) {
	csrfTok, err := c.csrf.Issue(iss.Token)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	http.SetCookie(w, c.cookies.SessionCookie(iss.Token, iss.ExpiresAt))
	http.SetCookie(w, c.cookies.CSRFCookie(csrfTok))
	exp := iss.ExpiresAt
	helpers.WriteSensitiveJSON(w, http.StatusOK, dto.LoginResponse{
		Status:    dto.LoginAuthenticated,
		CSRFToken: csrfTok,
		ExpiresAt: &exp,
	})
}

func (c *AuthController) loginError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, authsvc.ErrInvalidCredentials) {
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
		return
	}
	httperrors.Respond(w, r, err)
}

// Logout maneja POST /api/v1/auth/logout.
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)
	if err := c.svc.Logout(ctx, p); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	http.SetCookie(w, c.cookies.ClearSession())
	logger.From(ctx).Info("logout", logger.Layer("controller"))
	w.WriteHeader(http.StatusNoContent)
}

// Me maneja GET /api/v1/me.
func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := authctx.PrincipalFrom(r.Context())
	helpers.WriteJSON(w, http.StatusOK, dto.MeResponse{
		IdentityID:  p.IdentityID,
		Email:       p.Email,
		Role:        p.Role,
		Scope:       p.Scope,
		SessionID:   p.SessionID,
		Permissions: c.resolver.Resolve(p.Role).Strings(),
	})
}

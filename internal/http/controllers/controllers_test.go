package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/http/dto"
	authsvc "github.com/dropDatabas3/posguard/internal/http/services/auth"
	"github.com/dropDatabas3/posguard/internal/invitation"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/session"
	"github.com/dropDatabas3/posguard/internal/twofactor"
)

var expires = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	result    *authsvc.LoginResult
	err       error
	loggedOut *authctx.Principal
}

func (f *fakeAuth) Login(context.Context, authsvc.LoginInput) (*authsvc.LoginResult, error) {
	return f.result, f.err
}

func (f *fakeAuth) CompleteChallenge(context.Context, authsvc.ChallengeInput) (*session.Issued, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result.Session, nil
}

func (f *fakeAuth) Logout(_ context.Context, p authctx.Principal) error {
	f.loggedOut = &p
	return nil
}

type fakeCSRF struct{}

func (fakeCSRF) Issue(sessionToken string) (string, error) {
	if sessionToken == "" {
		return "anon-csrf", nil
	}
	return "bound-" + sessionToken, nil
}

type fakeInvitations struct {
	lastStatus *repository.InvitationStatus
	lastLimit  int
	delivery   invitation.Delivery
	err        error
}

func (f *fakeInvitations) Create(_ context.Context, _ authctx.Principal, in invitation.CreateInput) (*invitation.Created, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &invitation.Created{
		Invitation: invitation.View{ID: "inv-1", Email: in.Email, Role: in.Role, Scope: in.Scope},
		Token:      "tok",
		AcceptURL:  "https://pos.example.com/invite/tok",
		Delivery:   f.delivery,
	}, nil
}

func (f *fakeInvitations) Validate(_ context.Context, token string) (*invitation.View, error) {
	if token != "good" {
		return nil, fmt.Errorf("validate: %w", errs.ErrNotFound)
	}
	return &invitation.View{ID: "inv-1"}, nil
}

func (f *fakeInvitations) Accept(_ context.Context, token string, _ invitation.Credentials) (*invitation.Accepted, error) {
	if token != "good" {
		return nil, fmt.Errorf("accept: %w", errs.ErrExpired)
	}
	return &invitation.Accepted{
		Identity: repository.Identity{ID: "id-9", Email: "new@example.com", Role: rbac.RoleCashier},
		Created:  true,
	}, nil
}

func (f *fakeInvitations) Cancel(_ context.Context, _ authctx.Principal, id string) (*invitation.View, error) {
	return &invitation.View{ID: id, Status: repository.InvitationCancelled}, nil
}

func (f *fakeInvitations) List(_ context.Context, _ authctx.Principal, status *repository.InvitationStatus, limit int) ([]invitation.View, error) {
	f.lastStatus, f.lastLimit = status, limit
	return []invitation.View{{ID: "inv-1"}}, nil
}

type fakeTwoFactor struct {
	disableErr error
}

func (f *fakeTwoFactor) Status(context.Context, string) (*twofactor.Status, error) {
	return &twofactor.Status{State: repository.TwoFactorEnabled, BackupCodesRemaining: 7}, nil
}

func (f *fakeTwoFactor) BeginEnrollment(context.Context, string) (*twofactor.Enrollment, error) {
	return &twofactor.Enrollment{Secret: "SECRET", ProvisioningURI: "otpauth://totp/x"}, nil
}

func (f *fakeTwoFactor) ConfirmEnrollment(context.Context, string, string) ([]string, error) {
	return []string{"AAAAABBBBB"}, nil
}

func (f *fakeTwoFactor) Verify(_ context.Context, _, code, _ string) error {
	if code != "123456" {
		return fmt.Errorf("verify: %w", errs.ErrInvalidToken)
	}
	return nil
}

func (f *fakeTwoFactor) Disable(context.Context, string, string, string) error { return f.disableErr }

type fakeSessions struct {
	terminated []string
	revoked    string
}

func (f *fakeSessions) List(_ context.Context, _ string, token string) ([]session.View, error) {
	return []session.View{{ID: "s1", Current: token == "sess-token"}}, nil
}

func (f *fakeSessions) Terminate(_ context.Context, p authctx.Principal, identityID, sessionID string) error {
	if identityID != p.IdentityID && p.Role != rbac.RoleAdmin {
		return fmt.Errorf("terminate: %w", errs.ErrForbidden)
	}
	f.terminated = append(f.terminated, identityID+"/"+sessionID)
	return nil
}

func (f *fakeSessions) TerminateAll(_ context.Context, identityID string) (int, error) {
	f.revoked = identityID
	return 3, nil
}

type env struct {
	router http.Handler
	auth   *fakeAuth
	inv    *fakeInvitations
	tf     *fakeTwoFactor
	sess   *fakeSessions
}

var cashier = authctx.Principal{
	IdentityID: "cash-1",
	Email:      "cash@example.com",
	Role:       rbac.RoleCashier,
	Scope:      rbac.Scope{OrganizationID: "org-1", StoreID: "s1"},
	SessionID:  "s1",
}

func newEnv(t *testing.T, checks map[string]HealthCheck) *env {
	t.Helper()
	e := &env{
		auth: &fakeAuth{},
		inv:  &fakeInvitations{},
		tf:   &fakeTwoFactor{},
		sess: &fakeSessions{},
	}
	c := New(Deps{
		Auth:        e.auth,
		Invitations: e.inv,
		TwoFactor:   e.tf,
		Sessions:    e.sess,
		CSRF:        fakeCSRF{},
		Checks:      checks,
		Version:     "test",
	})

	r := chi.NewRouter()
	// simula lo que deja el Gatekeeper en el contexto
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if r.Header.Get("X-Test-Principal") != "" {
				ctx = authctx.WithPrincipal(ctx, cashier)
				ctx = authctx.WithSessionToken(ctx, "sess-token")
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/healthz", c.Health.Healthz)
	r.Get("/readyz", c.Health.Readyz)
	r.Get("/auth/csrf", c.Auth.CSRF)
	r.Post("/auth/login", c.Auth.Login)
	r.Post("/auth/challenge", c.Auth.Challenge)
	r.Post("/auth/logout", c.Auth.Logout)
	r.Get("/me", c.Auth.Me)
	r.Post("/invitations", c.Invitations.Create)
	r.Get("/invitations", c.Invitations.List)
	r.Delete("/invitations/{id}", c.Invitations.Cancel)
	r.Get("/invitations/token/{token}", c.Invitations.Validate)
	r.Post("/invitations/token/{token}/accept", c.Invitations.Accept)
	r.Get("/2fa", c.TwoFactor.Status)
	r.Post("/2fa/enroll", c.TwoFactor.Enroll)
	r.Post("/2fa/verify", c.TwoFactor.Verify)
	r.Post("/2fa/disable", c.TwoFactor.Disable)
	r.Get("/sessions", c.Sessions.List)
	r.Delete("/sessions/{id}", c.Sessions.TerminateOwn)
	r.Delete("/identities/{identityID}/sessions/{id}", c.Sessions.TerminateFor)
	r.Post("/sessions/revoke-all", c.Sessions.RevokeAll)
	e.router = r
	return e
}

func (e *env) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("X-Test-Principal", "1")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestLogin_SetsSessionAndBoundCSRF(t *testing.T) {
	e := newEnv(t, nil)
	e.auth.result = &authsvc.LoginResult{Session: &session.Issued{ID: "s1", Token: "tok-1", ExpiresAt: expires}}

	rec := e.do(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"pw"}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp dto.LoginResponse
	decode(t, rec, &resp)
	assert.Equal(t, dto.LoginAuthenticated, resp.Status)
	assert.Equal(t, "bound-tok-1", resp.CSRFToken)

	sc := cookie(rec, "sid")
	require.NotNil(t, sc)
	assert.Equal(t, "tok-1", sc.Value)
	assert.True(t, sc.HttpOnly)
	cc := cookie(rec, "csrf_token")
	require.NotNil(t, cc)
	assert.Equal(t, "bound-tok-1", cc.Value)
	assert.False(t, cc.HttpOnly)
}

func TestLogin_ChallengeRequired(t *testing.T) {
	e := newEnv(t, nil)
	e.auth.result = &authsvc.LoginResult{ChallengeToken: "jwt", ChallengeExpiresAt: expires}

	rec := e.do(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"pw"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.LoginResponse
	decode(t, rec, &resp)
	assert.Equal(t, dto.LoginChallengeRequired, resp.Status)
	assert.Equal(t, "jwt", resp.ChallengeToken)
	assert.Nil(t, cookie(rec, "sid"))
}

func TestLogin_Errors(t *testing.T) {
	e := newEnv(t, nil)

	e.auth.err = authsvc.ErrInvalidCredentials
	rec := e.do(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"pw"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")

	rec = e.do(http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"pw"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"pw","extra":1}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChallenge(t *testing.T) {
	e := newEnv(t, nil)
	e.auth.result = &authsvc.LoginResult{Session: &session.Issued{ID: "s2", Token: "tok-2", ExpiresAt: expires}}

	rec := e.do(http.MethodPost, "/auth/challenge", `{"challenge_token":"jwt","code":"12345"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "code must be six digits")

	rec = e.do(http.MethodPost, "/auth/challenge", `{"challenge_token":"jwt","code":"123456"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-2", cookie(rec, "sid").Value)
}

func TestCSRF_AnonymousAndBound(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(http.MethodGet, "/auth/csrf", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anon-csrf", cookie(rec, "csrf_token").Value)

	rec = e.do(http.MethodGet, "/auth/csrf", "", true)
	assert.Equal(t, "bound-sess-token", cookie(rec, "csrf_token").Value)

	// cookie de sesión vencida o desconocida: el token se liga igual a ella
	req := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "stale-token"})
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bound-stale-token", cookie(rec, "csrf_token").Value)
}

func TestLogoutAndMe(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(http.MethodPost, "/auth/logout", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, e.auth.loggedOut)
	assert.Equal(t, "s1", e.auth.loggedOut.SessionID)
	assert.Equal(t, -1, cookie(rec, "sid").MaxAge)

	rec = e.do(http.MethodGet, "/me", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var me dto.MeResponse
	decode(t, rec, &me)
	assert.Equal(t, "cash-1", me.IdentityID)
	assert.ElementsMatch(t, rbac.Default().Resolve(rbac.RoleCashier).Strings(), me.Permissions)
}

func TestInvitations(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodPost, "/invitations", `{"email":"new@example.com","role":"cashier","organization_id":"org-1"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created dto.CreateInvitationResponse
	decode(t, rec, &created)
	assert.Equal(t, "https://pos.example.com/invite/tok", created.AcceptURL)
	assert.False(t, created.Notified)
	assert.Empty(t, created.DeliveryError)
	assert.NotContains(t, rec.Body.String(), `"token"`)

	e.inv.delivery = invitation.Delivery{Err: errors.New("smtp: 550")}
	rec = e.do(http.MethodPost, "/invitations", `{"email":"new@example.com","role":"cashier"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	decode(t, rec, &created)
	assert.NotEmpty(t, created.DeliveryError)
	assert.NotContains(t, created.DeliveryError, "550")

	rec = e.do(http.MethodPost, "/invitations", `{"email":"new@example.com","role":"janitor"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.inv.err = fmt.Errorf("create: %w", errs.ErrConflict)
	rec = e.do(http.MethodPost, "/invitations", `{"email":"new@example.com","role":"cashier"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvitations_ListQuery(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodGet, "/invitations?status=pending&limit=20", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, e.inv.lastStatus)
	assert.Equal(t, repository.InvitationPending, *e.inv.lastStatus)
	assert.Equal(t, 20, e.inv.lastLimit)

	rec = e.do(http.MethodGet, "/invitations", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, e.inv.lastStatus)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/invitations?status=bogus", "", true).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/invitations?limit=0", "", true).Code)
}

func TestInvitations_TokenRoutes(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/invitations/token/good", "", false).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/invitations/token/bad", "", false).Code)

	rec := e.do(http.MethodPost, "/invitations/token/good/accept", `{"name":"N","password":"secret-pass-1"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var acc dto.AcceptInvitationResponse
	decode(t, rec, &acc)
	assert.True(t, acc.Created)
	assert.Equal(t, "id-9", acc.IdentityID)

	rec = e.do(http.MethodPost, "/invitations/token/bad/accept", `{}`, false)
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = e.do(http.MethodDelete, "/invitations/inv-7", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"inv-7"`)
}

func TestTwoFactor(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodGet, "/2fa", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"enabled"`)

	rec = e.do(http.MethodPost, "/2fa/enroll", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/2fa/verify", `{"code":"123456"}`, true).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPost, "/2fa/verify", `{"code":"654321"}`, true).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/2fa/verify", `{}`, true).Code)
}

func TestTwoFactor_DisableRevokesSessions(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodPost, "/2fa/disable", `{"backup_code":"AAAAABBBBB"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.DisableResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Disabled)
	assert.Equal(t, 3, resp.SessionsRevoked)
	assert.Equal(t, "cash-1", e.sess.revoked)
	assert.Equal(t, -1, cookie(rec, "sid").MaxAge)

	e = newEnv(t, nil)
	e.tf.disableErr = fmt.Errorf("disable: %w", errs.ErrInvalidToken)
	rec = e.do(http.MethodPost, "/2fa/disable", `{"code":"000000"}`, true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, e.sess.revoked)
}

func TestSessions(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(http.MethodGet, "/sessions", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var list dto.SessionsResponse
	decode(t, rec, &list)
	require.Len(t, list.Items, 1)
	assert.True(t, list.Items[0].Current)

	rec = e.do(http.MethodDelete, "/sessions/other", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, cookie(rec, "sid"), "terminating another device keeps the cookie")

	rec = e.do(http.MethodDelete, "/sessions/s1", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, -1, cookie(rec, "sid").MaxAge)
	assert.Equal(t, []string{"cash-1/other", "cash-1/s1"}, e.sess.terminated)

	rec = e.do(http.MethodDelete, "/identities/cash-2/sessions/x", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodPost, "/sessions/revoke-all", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":3}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	e := newEnv(t, map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	})
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/healthz", "", false).Code)
	rec := e.do(http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"ok"`)

	e = newEnv(t, map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
		"cache": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rec = e.do(http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cache":"unavailable"`)
	assert.NotContains(t, rec.Body.String(), "refused")
}


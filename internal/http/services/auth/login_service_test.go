package auth

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/posguard/internal/audit"
	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/security/password"
	"github.com/dropDatabas3/posguard/internal/security/secretbox"
	"github.com/dropDatabas3/posguard/internal/security/totp"
	"github.com/dropDatabas3/posguard/internal/session"
	"github.com/dropDatabas3/posguard/internal/store/memory"
	"github.com/dropDatabas3/posguard/internal/twofactor"
)

var cheap = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}

const challengeSecret = "0123456789abcdef0123456789abcdef"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc      LoginService
	registry *session.Registry
	tf       *twofactor.Manager
	sink     *audit.MemorySink
	clk      *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	hash, err := password.Hash(cheap, "correcto-2024")
	require.NoError(t, err)
	require.NoError(t, st.Identities().Create(ctx, repository.Identity{
		ID: "id-1", Email: "ana@example.com", Role: rbac.RoleCashier,
		Scope: rbac.Scope{OrganizationID: "org"}, PasswordHash: hash,
	}))

	key, err := secretbox.New(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)
	clk := &clock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	sink := &audit.MemorySink{}
	rec := audit.NewRecorder(sink)

	reg := session.NewRegistry(session.Deps{Repo: st.Sessions(), Identities: st.Identities(), Audit: rec, Now: clk.Now})
	tf := twofactor.NewManager(twofactor.Deps{
		Repo: st.TwoFactor(), Identities: st.Identities(), Sealer: key, Audit: rec, Now: clk.Now,
	})
	svc := NewLoginService(Deps{
		Identities:      st.Identities(),
		Sessions:        reg,
		TwoFactor:       tf,
		Audit:           rec,
		ChallengeSecret: challengeSecret,
		PasswordParams:  cheap,
		Now:             clk.Now,
	})
	return &fixture{svc: svc, registry: reg, tf: tf, sink: sink, clk: clk}
}

func (f *fixture) enable2FA(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	enr, err := f.tf.BeginEnrollment(ctx, "id-1")
	require.NoError(t, err)
	code, err := totp.Code(enr.Secret, totp.Step(f.clk.Now()))
	require.NoError(t, err)
	_, err = f.tf.ConfirmEnrollment(ctx, "id-1", code)
	require.NoError(t, err)
	return enr.Secret
}

func TestLogin_OpensSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginInput{Email: " ANA@example.com ", Password: "correcto-2024", Device: "Chrome on Linux", Origin: "10.0.0.1"})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Empty(t, res.ChallengeToken)

	sess, err := f.registry.Lookup(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, "id-1", sess.IdentityID)
	assert.Equal(t, "Chrome on Linux", sess.Device)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, errUnknown := f.svc.Login(ctx, LoginInput{Email: "nadie@example.com", Password: "correcto-2024"})
	_, errWrong := f.svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "incorrecto"})

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
	assert.ErrorIs(t, errWrong, errs.ErrUnauthorized)

	_, err := f.svc.Login(ctx, LoginInput{Email: "", Password: "x"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)

	fails := 0
	for _, e := range f.sink.ByAction(audit.ActionLogin) {
		if e.Outcome == audit.OutcomeFailure {
			fails++
		}
	}
	assert.Equal(t, 2, fails)
}

func TestLogin_SecondFactorChallenge(t *testing.T) {
	f := newFixture(t)
	secret := f.enable2FA(t)
	ctx := context.Background()
	f.clk.Advance(time.Minute)

	res, err := f.svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correcto-2024"})
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	require.NotEmpty(t, res.ChallengeToken)
	assert.Equal(t, f.clk.Now().Add(5*time.Minute), res.ChallengeExpiresAt)

	_, err = f.svc.CompleteChallenge(ctx, ChallengeInput{Token: res.ChallengeToken, Code: "000000"})
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	code, err := totp.Code(secret, totp.Step(f.clk.Now()))
	require.NoError(t, err)
	iss, err := f.svc.CompleteChallenge(ctx, ChallengeInput{Token: res.ChallengeToken, Code: code, Origin: "10.0.0.2"})
	require.NoError(t, err)
	_, err = f.registry.Lookup(ctx, iss.Token)
	assert.NoError(t, err)
}

func TestCompleteChallenge_RejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	f.enable2FA(t)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correcto-2024"})
	require.NoError(t, err)

	f.clk.Advance(6 * time.Minute)
	_, err = f.svc.CompleteChallenge(ctx, ChallengeInput{Token: res.ChallengeToken, Code: "123456"})
	assert.ErrorIs(t, err, errs.ErrUnauthorized, "expired challenge")

	// firmado con otro secreto
	forged := newChallengeSigner(strings.Repeat("x", 32), "posguard", time.Minute, f.clk.Now)
	tok, _, err := forged.Issue("id-1")
	require.NoError(t, err)
	_, err = f.svc.CompleteChallenge(ctx, ChallengeInput{Token: tok, Code: "123456"})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	// algoritmo distinto
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "id-1", "pur": challengePurpose}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = f.svc.CompleteChallenge(ctx, ChallengeInput{Token: none, Code: "123456"})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.svc.CompleteChallenge(ctx, ChallengeInput{Code: "123456"})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "correcto-2024"})
	require.NoError(t, err)

	p := authctx.Principal{IdentityID: "id-1", Role: rbac.RoleCashier, SessionID: res.Session.ID}
	require.NoError(t, f.svc.Logout(ctx, p))
	_, err = f.registry.Lookup(ctx, res.Session.Token)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.NoError(t, f.svc.Logout(ctx, p), "logout is idempotent")
}

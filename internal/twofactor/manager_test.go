package twofactor

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/posguard/internal/audit"
	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/security/secretbox"
	"github.com/dropDatabas3/posguard/internal/security/totp"
	"github.com/dropDatabas3/posguard/internal/store/memory"
)

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
	m     *Manager
	clk   *clock
	sink  *audit.MemorySink
	store *memory.Store
}

const identityID = "9b7f3c8e-0000-4000-8000-000000000001"

func newFixture(t *testing.T, attempts int) *fixture {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	box, err := secretbox.New(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)

	st := memory.New()
	require.NoError(t, st.Identities().Create(context.Background(), repository.Identity{
		ID: identityID, Email: "cajero@example.com", Role: rbac.RoleCashier,
		Scope: rbac.Scope{OrganizationID: "org-1"},
	}))

	clk := &clock{now: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)}
	sink := &audit.MemorySink{}
	m := NewManager(Deps{
		Repo:       st.TwoFactor(),
		Identities: st.Identities(),
		Sealer:     box,
		Audit:      audit.NewRecorder(sink),
		Now:        clk.Now,
		Config:     Config{Issuer: "POS Admin", AttemptsPerMinute: attempts},
	})
	return &fixture{m: m, clk: clk, sink: sink, store: st}
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.Code(secret, totp.Step(at))
	require.NoError(t, err)
	return code
}

func (f *fixture) enable(t *testing.T) (secret string, backup []string) {
	t.Helper()
	ctx := context.Background()
	enr, err := f.m.BeginEnrollment(ctx, identityID)
	require.NoError(t, err)
	backup, err = f.m.ConfirmEnrollment(ctx, identityID, codeAt(t, enr.Secret, f.clk.Now()))
	require.NoError(t, err)
	return enr.Secret, backup
}

func TestEnrollment_HappyPath(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	enr, err := f.m.BeginEnrollment(ctx, identityID)
	require.NoError(t, err)
	assert.Contains(t, enr.ProvisioningURI, "otpauth://totp/POS%20Admin:cajero@example.com")
	assert.Contains(t, enr.ProvisioningURI, "secret="+enr.Secret)

	st, err := f.m.Status(ctx, identityID)
	require.NoError(t, err)
	assert.Equal(t, repository.TwoFactorPending, st.State)

	codes, err := f.m.ConfirmEnrollment(ctx, identityID, codeAt(t, enr.Secret, f.clk.Now()))
	require.NoError(t, err)
	require.Len(t, codes, 10)
	for _, c := range codes {
		assert.Len(t, c, 10)
		assert.NotContains(t, c, "0")
		assert.NotContains(t, c, "O")
	}

	st, err = f.m.Status(ctx, identityID)
	require.NoError(t, err)
	assert.Equal(t, repository.TwoFactorEnabled, st.State)
	assert.Equal(t, 10, st.BackupCodesRemaining)

	cred, err := f.store.TwoFactor().Get(ctx, identityID)
	require.NoError(t, err)
	assert.NotContains(t, cred.SecretEnc, enr.Secret, "secret must be encrypted at rest")
	for _, h := range cred.BackupCodes {
		assert.NotContains(t, codes, h, "backup codes must be stored hashed")
	}
}

func TestConfirmEnrollment_WrongCodeKeepsPending(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	enr, err := f.m.BeginEnrollment(ctx, identityID)
	require.NoError(t, err)

	wrong := codeAt(t, enr.Secret, f.clk.Now().Add(10*time.Minute))
	_, err = f.m.ConfirmEnrollment(ctx, identityID, wrong)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	st, err := f.m.Status(ctx, identityID)
	require.NoError(t, err)
	assert.Equal(t, repository.TwoFactorPending, st.State)
	assert.Len(t, f.sink.ByAction(audit.ActionTwoFactorConfirm), 1)
}

func TestConfirmEnrollment_WithoutPendingIsConflict(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.m.ConfirmEnrollment(context.Background(), identityID, "123456")
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestBeginEnrollment_OverwritesPending(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	first, err := f.m.BeginEnrollment(ctx, identityID)
	require.NoError(t, err)
	second, err := f.m.BeginEnrollment(ctx, identityID)
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	_, err = f.m.ConfirmEnrollment(ctx, identityID, codeAt(t, first.Secret, f.clk.Now()))
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
	_, err = f.m.ConfirmEnrollment(ctx, identityID, codeAt(t, second.Secret, f.clk.Now()))
	assert.NoError(t, err)
}

func TestBeginEnrollment_WhenEnabledIsConflict(t *testing.T) {
	f := newFixture(t, 0)
	f.enable(t)
	_, err := f.m.BeginEnrollment(context.Background(), identityID)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestVerify_TOTPWindow(t *testing.T) {
	cases := []struct {
		offset time.Duration
		valid  bool
	}{
		{-120 * time.Second, false},
		{-60 * time.Second, true},
		{0, true},
		{60 * time.Second, true},
		{120 * time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.offset.String(), func(t *testing.T) {
			// fixture propia: un paso aceptado invalida los anteriores
			f := newFixture(t, 0)
			secret, _ := f.enable(t)
			f.clk.Advance(10 * time.Minute)
			now := f.clk.Now()

			err := f.m.Verify(context.Background(), identityID, codeAt(t, secret, now.Add(tc.offset)), "")
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errs.ErrInvalidToken)
			}
		})
	}
}

func TestVerify_RejectsReplayedStep(t *testing.T) {
	f := newFixture(t, 0)
	secret, _ := f.enable(t)
	ctx := context.Background()
	f.clk.Advance(time.Minute)

	code := codeAt(t, secret, f.clk.Now())
	require.NoError(t, f.m.Verify(ctx, identityID, code, ""))
	assert.ErrorIs(t, f.m.Verify(ctx, identityID, code, ""), errs.ErrInvalidToken)
}

func TestVerify_BackupCodeSingleUse(t *testing.T) {
	f := newFixture(t, 0)
	_, backup := f.enable(t)
	ctx := context.Background()

	require.NoError(t, f.m.Verify(ctx, identityID, "", backup[3]))
	assert.ErrorIs(t, f.m.Verify(ctx, identityID, "", backup[3]), errs.ErrInvalidToken)

	// tolera minúsculas y guiones
	typed := strings.ToLower(backup[4][:5]) + "-" + backup[4][5:]
	require.NoError(t, f.m.Verify(ctx, identityID, "", typed))

	st, err := f.m.Status(ctx, identityID)
	require.NoError(t, err)
	assert.Equal(t, 8, st.BackupCodesRemaining)
}

func TestVerify_BackupCodeConcurrentConsumption(t *testing.T) {
	f := newFixture(t, 0)
	_, backup := f.enable(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.m.Verify(context.Background(), identityID, "", backup[0]) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestVerify_NeitherMatches(t *testing.T) {
	f := newFixture(t, 0)
	f.enable(t)
	err := f.m.Verify(context.Background(), identityID, "000000", "AAAAAAAAAA")
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
	assert.ErrorIs(t, f.m.Verify(context.Background(), identityID, "", ""), errs.ErrInvalidToken)

	fails := 0
	for _, e := range f.sink.ByAction(audit.ActionTwoFactorVerify) {
		if e.Outcome == audit.OutcomeFailure {
			fails++
		}
	}
	assert.Equal(t, 1, fails)
}

func TestVerify_NotEnabledIsConflict(t *testing.T) {
	f := newFixture(t, 0)
	assert.ErrorIs(t, f.m.Verify(context.Background(), identityID, "123456", ""), errs.ErrConflict)
}

func TestVerify_Throttled(t *testing.T) {
	f := newFixture(t, 3)
	f.enable(t) // la confirmación consume un intento
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, f.m.Verify(ctx, identityID, "000000", ""), errs.ErrInvalidToken)
	}
	assert.ErrorIs(t, f.m.Verify(ctx, identityID, "000000", ""), errs.ErrRateLimited)
}

func TestDisable(t *testing.T) {
	f := newFixture(t, 0)
	secret, backup := f.enable(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.m.Disable(ctx, identityID, "000000", ""), errs.ErrInvalidToken)
	ok, err := f.m.Enabled(ctx, identityID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.m.Disable(ctx, identityID, "", backup[0]))
	st, err := f.m.Status(ctx, identityID)
	require.NoError(t, err)
	assert.Equal(t, repository.TwoFactorDisabled, st.State)
	assert.Zero(t, st.BackupCodesRemaining)

	_, err = f.store.TwoFactor().Get(ctx, identityID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// re-enrolar después de la baja genera un secreto nuevo
	enr, err := f.m.BeginEnrollment(ctx, identityID)
	require.NoError(t, err)
	assert.NotEqual(t, secret, enr.Secret)
}

package csrf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/posguard/internal/domain/errs"
)

var secret = strings.Repeat("k", 32)

func TestNew_WeakSecret(t *testing.T) {
	_, err := New("short")
	assert.ErrorIs(t, err, ErrWeakSecret)
}

func TestVerify_Anonymous(t *testing.T) {
	tk, err := New(secret)
	require.NoError(t, err)
	a, err := tk.Issue("")
	require.NoError(t, err)
	b, err := tk.Issue("")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	assert.NoError(t, tk.Verify(a, a, ""))
	assert.ErrorIs(t, tk.Verify(a, b, ""), errs.ErrInvalidToken)
	assert.ErrorIs(t, tk.Verify("", "", ""), errs.ErrInvalidToken)
	assert.ErrorIs(t, tk.Verify(a, "", ""), errs.ErrInvalidToken)
}

func TestVerify_SessionBound(t *testing.T) {
	tk, err := New(secret)
	require.NoError(t, err)
	tok, err := tk.Issue("session-a")
	require.NoError(t, err)
	again, err := tk.Issue("session-a")
	require.NoError(t, err)
	assert.Equal(t, tok, again, "deterministic per session")

	assert.NoError(t, tk.Verify(tok, tok, "session-a"))
	// cookie y header coinciden pero pertenecen a otra sesión
	assert.ErrorIs(t, tk.Verify(tok, tok, "session-b"), errs.ErrInvalidToken)

	// un token anónimo no sirve una vez que hay sesión
	anon, err := tk.Issue("")
	require.NoError(t, err)
	assert.ErrorIs(t, tk.Verify(anon, anon, "session-a"), errs.ErrInvalidToken)

	other, err := New(strings.Repeat("z", 32))
	require.NoError(t, err)
	forged, err := other.Issue("session-a")
	require.NoError(t, err)
	assert.ErrorIs(t, tk.Verify(forged, forged, "session-a"), errs.ErrInvalidToken)
}

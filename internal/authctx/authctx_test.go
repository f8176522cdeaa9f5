package authctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dropDatabas3/posguard/internal/rbac"
)

func TestPrincipalRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := PrincipalFrom(ctx)
	assert.False(t, ok)

	p := Principal{IdentityID: "u1", Role: rbac.RoleManager, Scope: rbac.Scope{OrganizationID: "o1"}}
	got, ok := PrincipalFrom(WithPrincipal(ctx, p))
	assert.True(t, ok)
	assert.Equal(t, p, got)

	_, ok = PrincipalFrom(WithPrincipal(ctx, Principal{}))
	assert.False(t, ok, "empty principal must not count as authenticated")
}

func TestTokenAndOrigin(t *testing.T) {
	ctx := WithOrigin(WithSessionToken(context.Background(), "tok"), "10.0.0.1")
	assert.Equal(t, "tok", SessionTokenFrom(ctx))
	assert.Equal(t, "10.0.0.1", OriginFrom(ctx))
	assert.Empty(t, SessionTokenFrom(context.Background()))
}

// Package authctx transporta la identidad autenticada del request a través
// de context.Context, sin que los managers dependan de net/http.
package authctx

import (
	"context"

	"github.com/dropDatabas3/posguard/internal/rbac"
)

// Principal es la identidad adjuntada por el Gatekeeper.
type Principal struct {
	IdentityID string
	Email      string
	Role       rbac.Role
	Scope      rbac.Scope
	SessionID  string
}

type (
	principalKey struct{}
	tokenKey     struct{}
	originKey    struct{}
)

// WithPrincipal adjunta p al contexto.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom devuelve el principal, si lo hay.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.IdentityID != ""
}

// WithSessionToken guarda el token de sesión crudo presentado por el cliente.
func WithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// SessionTokenFrom devuelve el token de sesión crudo o "".
func SessionTokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey{}).(string)
	return v
}

// WithOrigin guarda el origen de red del request (IP de cliente).
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom devuelve el origen o "".
func OriginFrom(ctx context.Context) string {
	v, _ := ctx.Value(originKey{}).(string)
	return v
}

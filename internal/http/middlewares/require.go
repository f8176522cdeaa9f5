package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/posguard/internal/authctx"
	httperrors "github.com/dropDatabas3/posguard/internal/http/errors"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/rbac"
)

// RequireIdentity corta con 401 si el Gatekeeper no adjuntó principal.
func RequireIdentity() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := authctx.PrincipalFrom(r.Context()); !ok {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission exige principal y que su rol tenga todos los permisos.
func RequirePermission(res *rbac.Resolver, perms ...rbac.Permission) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := authctx.PrincipalFrom(r.Context())
			if !ok {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !res.HasAll(p.Role, perms...) {
				logger.From(r.Context()).Info("permission denied",
					logger.Role(p.Role.String()), logger.Any("required", permStrings(perms)))
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func permStrings(perms []rbac.Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = p.String()
	}
	return out
}

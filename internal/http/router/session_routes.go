package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/posguard/internal/http/controllers"
	mw "github.com/dropDatabas3/posguard/internal/http/middlewares"
	"github.com/dropDatabas3/posguard/internal/rbac"
)

// registerSessionRoutes: las sesiones propias solo piden identidad; cerrar
// la de otro pide sessions.manage y el Registry además chequea scope y rango.
func registerSessionRoutes(r chi.Router, c *controllers.SessionController, res *rbac.Resolver) {
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireIdentity())
		r.Get("/sessions", c.List)
		r.Delete("/sessions/{id}", c.TerminateOwn)
		r.Post("/sessions/revoke-all", c.RevokeAll)
	})
	r.With(mw.RequirePermission(res, rbac.PermSessionsManage)).
		Delete("/identities/{identityID}/sessions/{id}", c.TerminateFor)
}

package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/posguard/internal/http/controllers"
	mw "github.com/dropDatabas3/posguard/internal/http/middlewares"
	"github.com/dropDatabas3/posguard/internal/rbac"
)

func registerInvitationRoutes(r chi.Router, c *controllers.InvitationController, res *rbac.Resolver) {
	// el invitado todavía no tiene cuenta
	r.Get("/invitations/token/{token}", c.Validate)
	r.Post("/invitations/token/{token}/accept", c.Accept)

	r.With(mw.RequirePermission(res, rbac.PermInvitationsCreate)).Post("/invitations", c.Create)
	r.With(mw.RequirePermission(res, rbac.PermInvitationsRead)).Get("/invitations", c.List)
	r.With(mw.RequirePermission(res, rbac.PermInvitationsDelete)).Delete("/invitations/{id}", c.Cancel)
}

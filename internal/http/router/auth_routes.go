package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/posguard/internal/http/controllers"
	mw "github.com/dropDatabas3/posguard/internal/http/middlewares"
)

// registerAuthRoutes: csrf, login y desafío 2FA son anónimos; el resto
// requiere sesión.
func registerAuthRoutes(r chi.Router, c *controllers.AuthController) {
	r.Get("/auth/csrf", c.CSRF)
	r.Post("/auth/login", c.Login)
	r.Post("/auth/2fa/challenge", c.Challenge)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireIdentity())
		r.Post("/auth/logout", c.Logout)
		r.Get("/me", c.Me)
	})
}

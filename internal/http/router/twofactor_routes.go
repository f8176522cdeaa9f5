package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/posguard/internal/http/controllers"
	mw "github.com/dropDatabas3/posguard/internal/http/middlewares"
)

func registerTwoFactorRoutes(r chi.Router, c *controllers.TwoFactorController) {
	r.Route("/2fa", func(r chi.Router) {
		r.Use(mw.RequireIdentity())
		r.Get("/", c.Status)
		r.Post("/enroll", c.Enroll)
		r.Post("/confirm", c.Confirm)
		r.Post("/verify", c.Verify)
		r.Post("/disable", c.Disable)
	})
}

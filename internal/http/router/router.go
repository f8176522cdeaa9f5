// Package router arma el árbol de rutas sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/posguard/internal/http/controllers"
	mw "github.com/dropDatabas3/posguard/internal/http/middlewares"
	"github.com/dropDatabas3/posguard/internal/metrics"
	"github.com/dropDatabas3/posguard/internal/rbac"
)

// Deps contiene todo lo necesario para construir el handler raíz.
type Deps struct {
	Controllers *controllers.Controllers
	Resolver    *rbac.Resolver
	Gatekeeper  mw.GatekeeperConfig
	// Gatherer expone /metrics; nil lo deshabilita.
	Gatherer prometheus.Gatherer
}

// New devuelve el handler raíz.
// Orden global: Recover → RequestID → Logging → SecurityHeaders → Gatekeeper.
func New(d Deps) http.Handler {
	if d.Resolver == nil {
		d.Resolver = rbac.Default()
	}
	c := d.Controllers

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
		mw.WithGatekeeper(d.Gatekeeper),
	)

	registerHealthRoutes(r, c.Health, d.Gatherer)
	registerPageRoutes(r, c.Pages)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(mw.WithNoStore())
		registerAuthRoutes(api, c.Auth)
		registerInvitationRoutes(api, c.Invitations, d.Resolver)
		registerTwoFactorRoutes(api, c.TwoFactor)
		registerSessionRoutes(api, c.Sessions, d.Resolver)
	})
	return r
}

func registerHealthRoutes(r chi.Router, c *controllers.HealthController, g prometheus.Gatherer) {
	r.Get("/healthz", c.Healthz)
	r.Get("/readyz", c.Readyz)
	if g != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(g))
	}
}

func registerPageRoutes(r chi.Router, c *controllers.PageController) {
	r.Get("/login", c.Login)
	r.Get("/app", c.App)
	r.Get("/app/*", c.App)
}

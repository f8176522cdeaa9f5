// Package metrics define los collectors Prometheus del núcleo de seguridad.
// Viven en un paquete propio para que managers y middlewares los usen sin ciclos.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GatekeeperDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posguard_gatekeeper_decisions_total",
		Help: "Decisiones del gatekeeper por clase de ruta y resultado",
	}, []string{"class", "decision"}) // decision: pass|redirect|rate_limited|csrf_rejected|limiter_error

	InvitationEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posguard_invitation_events_total",
		Help: "Eventos del ciclo de vida de invitaciones",
	}, []string{"event"}) // created|notify_failed|accepted|expired|cancelled|swept|cleaned

	TwoFactorVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posguard_2fa_verifications_total",
		Help: "Verificaciones 2FA por método y resultado",
	}, []string{"method", "result"}) // method: totp|backup; result: ok|invalid|throttled

	SessionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posguard_session_events_total",
		Help: "Eventos del registro de sesiones",
	}, []string{"event"}) // created|terminated|revoked_all|purged

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posguard_http_requests_total",
		Help: "Requests HTTP procesadas",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posguard_http_request_duration_seconds",
		Help:    "Latencia de requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Register registra todos los collectors (o en el default si reg es nil).
// Un collector ya registrado no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		GatekeeperDecisions, InvitationEvents, TwoFactorVerifications,
		SessionEvents, HTTPRequests, HTTPDuration,
	} {
		if err := registerCollector(reg, c); err != nil {
			return err
		}
	}
	return nil
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}

// Handler expone /metrics para el gatherer dado (o el default).
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveHTTP registra un request terminado.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

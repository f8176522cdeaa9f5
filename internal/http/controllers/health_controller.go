package controllers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/posguard/internal/http/dto"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// HealthController maneja /healthz y /readyz.
type HealthController struct {
	checks  map[string]HealthCheck
	version string
	timeout time.Duration
}

// Healthz maneja GET /healthz: el proceso está vivo.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Version: c.version})
}

// Readyz maneja GET /readyz: todas las dependencias responden.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := dto.HealthResponse{Status: "ready", Version: c.version, Components: map[string]string{}}
	status := http.StatusOK
	for _, name := range names {
		if err := c.checks[name](ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed", logger.Component(name), logger.Err(err))
			resp.Components[name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}
	helpers.WriteJSON(w, status, resp)
}

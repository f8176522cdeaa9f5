package controllers

import (
	"net/http"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
)

// PageController sirve los placeholders de las páginas. El render real
// vive en el frontend.
type PageController struct{}

// Login maneja GET /login.
func (c *PageController) Login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte("login\n"))
}

// App maneja GET /app/*. El Gatekeeper ya garantizó la sesión.
func (c *PageController) App(w http.ResponseWriter, r *http.Request) {
	p, _ := authctx.PrincipalFrom(r.Context())
	helpers.WriteJSON(w, http.StatusOK, map[string]string{
		"identity_id": p.IdentityID,
		"path":        r.URL.Path,
	})
}

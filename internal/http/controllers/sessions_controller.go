package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/http/dto"
	httperrors "github.com/dropDatabas3/posguard/internal/http/errors"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
)

// SessionController lista y cierra sesiones.
type SessionController struct {
	svc     SessionService
	cookies helpers.CookieConfig
}

// List maneja GET /api/v1/sessions.
func (c *SessionController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)
	items, err := c.svc.List(ctx, p.IdentityID, authctx.SessionTokenFrom(ctx))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SessionsResponse{Items: items})
}

// TerminateOwn maneja DELETE /api/v1/sessions/{id}.
func (c *SessionController) TerminateOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)
	id := chi.URLParam(r, "id")
	if err := c.svc.Terminate(ctx, p, p.IdentityID, id); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if id == p.SessionID {
		http.SetCookie(w, c.cookies.ClearSession())
	}
	w.WriteHeader(http.StatusNoContent)
}

// TerminateFor maneja DELETE /api/v1/identities/{identityID}/sessions/{id}.
func (c *SessionController) TerminateFor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)
	identityID := chi.URLParam(r, "identityID")
	id := chi.URLParam(r, "id")
	if err := c.svc.Terminate(ctx, p, identityID, id); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if id == p.SessionID {
		http.SetCookie(w, c.cookies.ClearSession())
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeAll maneja POST /api/v1/sessions/revoke-all ("cerrar sesión en todos lados").
func (c *SessionController) RevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)
	n, err := c.svc.TerminateAll(ctx, p.IdentityID)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	http.SetCookie(w, c.cookies.ClearSession())
	helpers.WriteJSON(w, http.StatusOK, dto.RevokeAllResponse{Revoked: n})
}

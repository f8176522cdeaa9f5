package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/http/dto"
	httperrors "github.com/dropDatabas3/posguard/internal/http/errors"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
	"github.com/dropDatabas3/posguard/internal/invitation"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/validation"
)

// InvitationController maneja el ciclo de vida de invitaciones.
type InvitationController struct {
	svc InvitationService
}

// Create maneja POST /api/v1/invitations.
func (c *InvitationController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)

	var req dto.CreateInvitationRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}

	created, err := c.svc.Create(ctx, p, invitation.CreateInput{
		Email: req.Email,
		Role:  rbac.Role(req.Role),
		Scope: rbac.Scope{OrganizationID: req.OrganizationID, StoreID: req.StoreID},
	})
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}

	resp := dto.CreateInvitationResponse{
		Invitation: created.Invitation,
		AcceptURL:  created.AcceptURL,
		Notified:   created.Delivery.Notified,
	}
	if created.Delivery.Err != nil {
		resp.DeliveryError = "notification could not be delivered"
		logger.From(ctx).Warn("invitation created without notification",
			logger.InvitationID(created.Invitation.ID), logger.Err(created.Delivery.Err))
	}
	helpers.WriteSensitiveJSON(w, http.StatusCreated, resp)
}

// List maneja GET /api/v1/invitations?status=&limit=.
func (c *InvitationController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)

	var status *repository.InvitationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := repository.InvitationStatus(s)
		switch st {
		case repository.InvitationPending, repository.InvitationAccepted,
			repository.InvitationExpired, repository.InvitationCancelled:
			status = &st
		default:
			httperrors.WriteError(w, httperrors.ErrInvalidInput.WithDetail("status: unknown value"))
			return
		}
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			httperrors.WriteError(w, httperrors.ErrInvalidInput.WithDetail("limit: must be between 1 and 500"))
			return
		}
		limit = n
	}

	items, err := c.svc.List(ctx, p, status, limit)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ListInvitationsResponse{Items: items})
}

// Cancel maneja DELETE /api/v1/invitations/{id}.
func (c *InvitationController) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)
	view, err := c.svc.Cancel(ctx, p, chi.URLParam(r, "id"))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, view)
}

// Validate maneja GET /api/v1/invitations/token/{token}.
func (c *InvitationController) Validate(w http.ResponseWriter, r *http.Request) {
	view, err := c.svc.Validate(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSensitiveJSON(w, http.StatusOK, view)
}

// Accept maneja POST /api/v1/invitations/token/{token}/accept.
func (c *InvitationController) Accept(w http.ResponseWriter, r *http.Request) {
	var req dto.AcceptInvitationRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}

	res, err := c.svc.Accept(r.Context(), chi.URLParam(r, "token"), invitation.Credentials{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.AcceptInvitationResponse{
		IdentityID: res.Identity.ID,
		Email:      res.Identity.Email,
		Role:       res.Identity.Role,
		Scope:      res.Identity.Scope,
		Created:    res.Created,
	})
}

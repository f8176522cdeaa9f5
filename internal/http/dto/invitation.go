package dto

import (
	"github.com/dropDatabas3/posguard/internal/invitation"
	"github.com/dropDatabas3/posguard/internal/rbac"
)

// CreateInvitationRequest es el body de POST /api/v1/invitations.
type CreateInvitationRequest struct {
	Email          string `json:"email" validate:"required,email,max=254"`
	Role           string `json:"role" validate:"required,role"`
	OrganizationID string `json:"organization_id,omitempty" validate:"omitempty,tenant_id"`
	StoreID        string `json:"store_id,omitempty" validate:"omitempty,tenant_id"`
}

// CreateInvitationResponse incluye el link de aceptación para reenviarlo a
// mano cuando el email no salió.
type CreateInvitationResponse struct {
	Invitation    invitation.View `json:"invitation"`
	AcceptURL     string          `json:"accept_url"`
	Notified      bool            `json:"notified"`
	DeliveryError string          `json:"delivery_error,omitempty"`
}

// ListInvitationsResponse es la respuesta de GET /api/v1/invitations.
type ListInvitationsResponse struct {
	Items []invitation.View `json:"items"`
}

// AcceptInvitationRequest solo se usa si el email todavía no tiene cuenta.
type AcceptInvitationRequest struct {
	Name     string `json:"name,omitempty" validate:"omitempty,max=120"`
	Password string `json:"password,omitempty" validate:"omitempty,max=128"`
}

// AcceptInvitationResponse describe la identidad resultante.
type AcceptInvitationResponse struct {
	IdentityID string     `json:"identity_id"`
	Email      string     `json:"email"`
	Role       rbac.Role  `json:"role"`
	Scope      rbac.Scope `json:"scope"`
	Created    bool       `json:"created"`
}

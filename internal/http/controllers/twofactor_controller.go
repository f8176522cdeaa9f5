package controllers

import (
	"net/http"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/http/dto"
	httperrors "github.com/dropDatabas3/posguard/internal/http/errors"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/validation"
)

// TwoFactorController maneja el enrolamiento y uso de 2FA del usuario actual.
type TwoFactorController struct {
	svc      TwoFactorService
	sessions SessionService
	cookies  helpers.CookieConfig
}

// Status maneja GET /api/v1/2fa.
func (c *TwoFactorController) Status(w http.ResponseWriter, r *http.Request) {
	p, _ := authctx.PrincipalFrom(r.Context())
	st, err := c.svc.Status(r.Context(), p.IdentityID)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, st)
}

// Enroll maneja POST /api/v1/2fa/enroll.
func (c *TwoFactorController) Enroll(w http.ResponseWriter, r *http.Request) {
	p, _ := authctx.PrincipalFrom(r.Context())
	enr, err := c.svc.BeginEnrollment(r.Context(), p.IdentityID)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSensitiveJSON(w, http.StatusOK, dto.EnrollResponse{
		Secret:          enr.Secret,
		ProvisioningURI: enr.ProvisioningURI,
	})
}

// Confirm maneja POST /api/v1/2fa/confirm.
func (c *TwoFactorController) Confirm(w http.ResponseWriter, r *http.Request) {
	p, _ := authctx.PrincipalFrom(r.Context())
	var req dto.ConfirmRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	codes, err := c.svc.ConfirmEnrollment(r.Context(), p.IdentityID, req.Code)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSensitiveJSON(w, http.StatusOK, dto.ConfirmResponse{Enabled: true, BackupCodes: codes})
}

// Verify maneja POST /api/v1/2fa/verify (re-verificación con sesión abierta).
func (c *TwoFactorController) Verify(w http.ResponseWriter, r *http.Request) {
	p, _ := authctx.PrincipalFrom(r.Context())
	req, ok := readSecondFactor(w, r)
	if !ok {
		return
	}
	if err := c.svc.Verify(r.Context(), p.IdentityID, req.Code, req.BackupCode); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.VerifyResponse{Verified: true})
}

// Disable maneja POST /api/v1/2fa/disable. Después de la baja se cierran
// todas las sesiones de la identidad, incluida la actual.
func (c *TwoFactorController) Disable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := authctx.PrincipalFrom(ctx)
	req, ok := readSecondFactor(w, r)
	if !ok {
		return
	}
	if err := c.svc.Disable(ctx, p.IdentityID, req.Code, req.BackupCode); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	n, err := c.sessions.TerminateAll(ctx, p.IdentityID)
	if err != nil {
		logger.From(ctx).Error("revoke sessions after 2fa disable failed", logger.Err(err))
	}
	http.SetCookie(w, c.cookies.ClearSession())
	helpers.WriteJSON(w, http.StatusOK, dto.DisableResponse{Disabled: true, SessionsRevoked: n})
}

func readSecondFactor(w http.ResponseWriter, r *http.Request) (dto.SecondFactorRequest, bool) {
	var req dto.SecondFactorRequest
	if !helpers.ReadJSON(w, r, &req) {
		return req, false
	}
	if err := validation.Struct(req); err != nil {
		httperrors.Respond(w, r, err)
		return req, false
	}
	if req.Code == "" && req.BackupCode == "" {
		httperrors.WriteError(w, httperrors.ErrInvalidInput.WithDetail("code or backup_code is required"))
		return req, false
	}
	return req, true
}

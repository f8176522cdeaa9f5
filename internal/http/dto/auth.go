// Package dto define los cuerpos de request y response de la API.
package dto

import (
	"time"

	"github.com/dropDatabas3/posguard/internal/rbac"
)

// LoginRequest es el body de POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// Estados de LoginResponse.
const (
	LoginAuthenticated     = "authenticated"
	LoginChallengeRequired = "challenge_required"
)

// LoginResponse lleva el token CSRF ligado a la nueva sesión, o el desafío 2FA.
type LoginResponse struct {
	Status         string     `json:"status"`
	CSRFToken      string     `json:"csrf_token,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ChallengeToken string     `json:"challenge_token,omitempty"`
}

// ChallengeRequest es el body de POST /api/v1/auth/2fa/challenge.
type ChallengeRequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code,omitempty" validate:"omitempty,len=6,numeric"`
	BackupCode     string `json:"backup_code,omitempty" validate:"omitempty,max=16"`
}

// CSRFResponse es la respuesta de GET /api/v1/auth/csrf.
type CSRFResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// MeResponse describe el principal actual y sus permisos efectivos.
type MeResponse struct {
	IdentityID  string     `json:"identity_id"`
	Email       string     `json:"email"`
	Role        rbac.Role  `json:"role"`
	Scope       rbac.Scope `json:"scope"`
	SessionID   string     `json:"session_id"`
	Permissions []string   `json:"permissions"`
}

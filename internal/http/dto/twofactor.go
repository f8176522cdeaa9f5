package dto

// EnrollResponse contiene el secreto; solo se muestra una vez.
type EnrollResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// ConfirmRequest es el body de POST /api/v1/2fa/confirm.
type ConfirmRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// ConfirmResponse lleva los backup codes en claro; no se vuelven a mostrar.
type ConfirmResponse struct {
	Enabled     bool     `json:"enabled"`
	BackupCodes []string `json:"backup_codes"`
}

// SecondFactorRequest acepta un código TOTP o un backup code.
type SecondFactorRequest struct {
	Code       string `json:"code,omitempty" validate:"omitempty,len=6,numeric"`
	BackupCode string `json:"backup_code,omitempty" validate:"omitempty,max=16"`
}

// VerifyResponse es la respuesta de POST /api/v1/2fa/verify.
type VerifyResponse struct {
	Verified bool `json:"verified"`
}

// DisableResponse es la respuesta de POST /api/v1/2fa/disable.
type DisableResponse struct {
	Disabled        bool `json:"disabled"`
	SessionsRevoked int  `json:"sessions_revoked"`
}

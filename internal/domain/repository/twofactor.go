package repository

import (
	"context"
	"time"
)

// TwoFactorState es el estado derivado de una credencial 2FA.
type TwoFactorState string

const (
	TwoFactorDisabled TwoFactorState = "disabled"
	TwoFactorPending  TwoFactorState = "pending"
	TwoFactorEnabled  TwoFactorState = "enabled"
)

// TwoFactorCredential es el secreto TOTP (cifrado) y los backup codes (hasheados).
type TwoFactorCredential struct {
	IdentityID   string
	SecretEnc    string
	Enabled      bool
	BackupCodes  []string
	LastUsedStep *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	EnabledAt    *time.Time
}

// State deriva el estado; una credencial nil equivale a disabled.
func (c *TwoFactorCredential) State() TwoFactorState {
	switch {
	case c == nil || c.SecretEnc == "":
		return TwoFactorDisabled
	case c.Enabled:
		return TwoFactorEnabled
	default:
		return TwoFactorPending
	}
}

// TwoFactorRepository define operaciones sobre credenciales TOTP.
type TwoFactorRepository interface {
	// Get retorna ErrNotFound si la identidad nunca inició enrolamiento.
	Get(ctx context.Context, identityID string) (*TwoFactorCredential, error)

	// SavePending guarda o reemplaza el secreto pendiente.
	// Retorna ErrConflict si la credencial ya está habilitada.
	SavePending(ctx context.Context, identityID, secretEnc string, now time.Time) error

	// Enable habilita la credencial si sigue pendiente con el mismo secreto.
	// Guarda los hashes de backup codes y el paso usado. ErrConflict si no.
	Enable(ctx context.Context, identityID, secretEnc string, backupHashes []string, step int64, now time.Time) error

	// ConsumeBackupCode quita hash de la lista en una única escritura.
	// Retorna true si existía; dos llamadas concurrentes no pueden ganar ambas.
	ConsumeBackupCode(ctx context.Context, identityID, hash string, now time.Time) (bool, error)

	// MarkStepUsed registra step si es mayor al último usado. Retorna false si no.
	MarkStepUsed(ctx context.Context, identityID string, step int64, now time.Time) (bool, error)

	// Disable borra secreto y backup codes.
	Disable(ctx context.Context, identityID string) error
}

// Package twofactor maneja el ciclo de vida TOTP de una identidad:
// enrolamiento, confirmación, verificación con backup codes y baja.
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/posguard/internal/audit"
	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/metrics"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/security/totp"
)

// Sealer cifra el secreto TOTP en reposo (ver security/secretbox).
type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

// Config ajusta el comportamiento del manager.
type Config struct {
	Issuer            string
	Skew              int // pasos de 30s aceptados a cada lado
	BackupCodes       int
	AttemptsPerMinute int // 0 desactiva el throttle
}

// Deps agrupa las dependencias del Manager.
type Deps struct {
	Repo       repository.TwoFactorRepository
	Identities repository.IdentityRepository
	Sealer     Sealer
	Audit      *audit.Recorder
	Now        func() time.Time
	Config     Config
}

// Enrollment es lo que el usuario necesita para configurar su app autenticadora.
type Enrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// Status resume el estado 2FA de una identidad.
type Status struct {
	State                repository.TwoFactorState `json:"state"`
	BackupCodesRemaining int                       `json:"backup_codes_remaining"`
	EnabledAt            *time.Time                `json:"enabled_at,omitempty"`
}

// Manager implementa las operaciones 2FA.
type Manager struct {
	repo       repository.TwoFactorRepository
	identities repository.IdentityRepository
	sealer     Sealer
	audit      *audit.Recorder
	now        func() time.Time
	cfg        Config
	throttle   *attemptThrottle
}

// NewManager aplica defaults (issuer "POS Admin", skew 2, 10 backup codes).
func NewManager(d Deps) *Manager {
	cfg := d.Config
	if cfg.Issuer == "" {
		cfg.Issuer = "POS Admin"
	}
	if cfg.Skew <= 0 {
		cfg.Skew = 2
	}
	if cfg.BackupCodes <= 0 {
		cfg.BackupCodes = 10
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		repo:       d.Repo,
		identities: d.Identities,
		sealer:     d.Sealer,
		audit:      d.Audit,
		now:        now,
		cfg:        cfg,
		throttle:   newAttemptThrottle(cfg.AttemptsPerMinute),
	}
}

// BeginEnrollment genera un secreto nuevo y lo deja pendiente, reemplazando
// cualquier secreto pendiente previo. Conflict si 2FA ya está habilitado.
func (m *Manager) BeginEnrollment(ctx context.Context, identityID string) (*Enrollment, error) {
	log := logger.From(ctx).With(logger.Layer("twofactor"), logger.Op("BeginEnrollment"), logger.IdentityID(identityID))

	ident, err := m.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("2fa enroll: %w", err)
	}
	cred, err := m.load(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if cred.State() == repository.TwoFactorEnabled {
		m.record(ctx, audit.ActionTwoFactorEnroll, identityID, audit.OutcomeDenied, "already_enabled")
		return nil, fmt.Errorf("2fa enroll: already enabled: %w", errs.ErrConflict)
	}

	key, err := totp.Generate(m.cfg.Issuer, ident.Email)
	if err != nil {
		return nil, fmt.Errorf("2fa enroll: secret: %w", err)
	}
	sealed, err := m.sealer.Seal(key.Secret)
	if err != nil {
		return nil, fmt.Errorf("2fa enroll: seal: %w", err)
	}
	if err := m.repo.SavePending(ctx, identityID, sealed, m.now()); err != nil {
		return nil, fmt.Errorf("2fa enroll: %w", err)
	}

	m.record(ctx, audit.ActionTwoFactorEnroll, identityID, audit.OutcomeSuccess, "")
	log.Info("2fa enrollment started")
	return &Enrollment{Secret: key.Secret, ProvisioningURI: key.URI}, nil
}

// ConfirmEnrollment valida el primer código contra el secreto pendiente,
// habilita 2FA y devuelve los backup codes en claro (única vez que se ven).
func (m *Manager) ConfirmEnrollment(ctx context.Context, identityID, code string) ([]string, error) {
	log := logger.From(ctx).With(logger.Layer("twofactor"), logger.Op("ConfirmEnrollment"), logger.IdentityID(identityID))

	cred, err := m.load(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if cred.State() != repository.TwoFactorPending {
		m.record(ctx, audit.ActionTwoFactorConfirm, identityID, audit.OutcomeDenied, string(cred.State()))
		return nil, fmt.Errorf("2fa confirm: state %s: %w", cred.State(), errs.ErrConflict)
	}
	if !m.throttle.allow(identityID) {
		metrics.TwoFactorVerifications.WithLabelValues("totp", "throttled").Inc()
		return nil, fmt.Errorf("2fa confirm: %w", errs.ErrRateLimited)
	}

	secret, err := m.openSecret(cred)
	if err != nil {
		return nil, err
	}
	ok, step := totp.Verify(secret, code, m.now(), m.cfg.Skew, nil)
	if !ok {
		metrics.TwoFactorVerifications.WithLabelValues("totp", "invalid").Inc()
		m.record(ctx, audit.ActionTwoFactorConfirm, identityID, audit.OutcomeFailure, "invalid_code")
		log.Info("2fa confirmation rejected")
		return nil, fmt.Errorf("2fa confirm: %w", errs.ErrInvalidToken)
	}

	plain, hashes, err := generateBackupCodes(m.cfg.BackupCodes)
	if err != nil {
		return nil, fmt.Errorf("2fa confirm: backup codes: %w", err)
	}
	if err := m.repo.Enable(ctx, identityID, cred.SecretEnc, hashes, step, m.now()); err != nil {
		// otro enrolamiento o confirmación ganó la carrera
		return nil, fmt.Errorf("2fa confirm: %w", err)
	}

	metrics.TwoFactorVerifications.WithLabelValues("totp", "ok").Inc()
	m.record(ctx, audit.ActionTwoFactorConfirm, identityID, audit.OutcomeSuccess, "")
	log.Info("2fa enabled")
	return plain, nil
}

// Verify acepta un backup code (consumido atómicamente) o, si no coincide,
// un código TOTP dentro de la ventana. Un paso TOTP ya usado no se acepta de nuevo.
func (m *Manager) Verify(ctx context.Context, identityID, code, backupCode string) error {
	log := logger.From(ctx).With(logger.Layer("twofactor"), logger.Op("Verify"), logger.IdentityID(identityID))

	code = strings.TrimSpace(code)
	backupCode = strings.TrimSpace(backupCode)
	if code == "" && backupCode == "" {
		return fmt.Errorf("2fa verify: no code: %w", errs.ErrInvalidToken)
	}

	cred, err := m.load(ctx, identityID)
	if err != nil {
		return err
	}
	if cred.State() != repository.TwoFactorEnabled {
		return fmt.Errorf("2fa verify: not enabled: %w", errs.ErrConflict)
	}
	if !m.throttle.allow(identityID) {
		metrics.TwoFactorVerifications.WithLabelValues("any", "throttled").Inc()
		m.record(ctx, audit.ActionTwoFactorVerify, identityID, audit.OutcomeDenied, "throttled")
		return fmt.Errorf("2fa verify: %w", errs.ErrRateLimited)
	}

	if backupCode != "" {
		used, err := m.repo.ConsumeBackupCode(ctx, identityID, hashBackupCode(backupCode), m.now())
		if err != nil {
			return fmt.Errorf("2fa verify: backup: %w", err)
		}
		if used {
			metrics.TwoFactorVerifications.WithLabelValues("backup", "ok").Inc()
			m.record(ctx, audit.ActionTwoFactorVerify, identityID, audit.OutcomeSuccess, "backup")
			log.Info("backup code consumed", logger.Int("remaining", len(cred.BackupCodes)-1))
			return nil
		}
		metrics.TwoFactorVerifications.WithLabelValues("backup", "invalid").Inc()
	}

	if code != "" {
		secret, err := m.openSecret(cred)
		if err != nil {
			return err
		}
		if ok, step := totp.Verify(secret, code, m.now(), m.cfg.Skew, cred.LastUsedStep); ok {
			fresh, err := m.repo.MarkStepUsed(ctx, identityID, step, m.now())
			if err != nil {
				return fmt.Errorf("2fa verify: %w", err)
			}
			if fresh {
				metrics.TwoFactorVerifications.WithLabelValues("totp", "ok").Inc()
				m.record(ctx, audit.ActionTwoFactorVerify, identityID, audit.OutcomeSuccess, "totp")
				return nil
			}
			// el mismo paso fue aceptado en paralelo
		}
		metrics.TwoFactorVerifications.WithLabelValues("totp", "invalid").Inc()
	}

	m.record(ctx, audit.ActionTwoFactorVerify, identityID, audit.OutcomeFailure, "invalid_code")
	log.Info("2fa verification rejected")
	return fmt.Errorf("2fa verify: %w", errs.ErrInvalidToken)
}

// Disable exige una verificación exitosa y luego borra secreto y backup codes.
func (m *Manager) Disable(ctx context.Context, identityID, code, backupCode string) error {
	if err := m.Verify(ctx, identityID, code, backupCode); err != nil {
		m.record(ctx, audit.ActionTwoFactorDisable, identityID, audit.OutcomeFailure, "verify_failed")
		return err
	}
	if err := m.repo.Disable(ctx, identityID); err != nil {
		return fmt.Errorf("2fa disable: %w", err)
	}
	m.record(ctx, audit.ActionTwoFactorDisable, identityID, audit.OutcomeSuccess, "")
	logger.From(ctx).Info("2fa disabled", logger.Layer("twofactor"), logger.IdentityID(identityID))
	return nil
}

// Status devuelve el estado y la cantidad de backup codes restantes.
func (m *Manager) Status(ctx context.Context, identityID string) (*Status, error) {
	cred, err := m.load(ctx, identityID)
	if err != nil {
		return nil, err
	}
	st := &Status{State: cred.State()}
	if st.State == repository.TwoFactorEnabled {
		st.BackupCodesRemaining = len(cred.BackupCodes)
		st.EnabledAt = cred.EnabledAt
	}
	return st, nil
}

// Enabled es un atajo para el flujo de login.
func (m *Manager) Enabled(ctx context.Context, identityID string) (bool, error) {
	cred, err := m.load(ctx, identityID)
	if err != nil {
		return false, err
	}
	return cred.State() == repository.TwoFactorEnabled, nil
}

// load devuelve la credencial; una inexistente se trata como disabled.
func (m *Manager) load(ctx context.Context, identityID string) (*repository.TwoFactorCredential, error) {
	cred, err := m.repo.Get(ctx, identityID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("2fa: load credential: %w", err)
	}
	return cred, nil
}

func (m *Manager) openSecret(cred *repository.TwoFactorCredential) (string, error) {
	b32, err := m.sealer.Open(cred.SecretEnc)
	if err != nil {
		return "", fmt.Errorf("2fa: open secret: %w", err)
	}
	return b32, nil
}

func (m *Manager) record(ctx context.Context, action, identityID string, outcome audit.Outcome, reason string) {
	e := audit.Event{Action: action, Target: identityID, Outcome: outcome}
	if reason != "" {
		e.Meta = map[string]string{"reason": reason}
	}
	m.audit.Record(ctx, e)
}

// Package invitation implementa el ciclo de vida de invitaciones:
// alta con notificación, validación, aceptación, cancelación y expiración.
package invitation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/posguard/internal/audit"
	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/email"
	"github.com/dropDatabas3/posguard/internal/metrics"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/security/password"
	tokens "github.com/dropDatabas3/posguard/internal/security/token"
	"github.com/dropDatabas3/posguard/internal/validation"
)

const (
	DefaultTTL       = 7 * 24 * time.Hour
	DefaultRetention = 30 * 24 * time.Hour
)

// Config ajusta vencimientos, URL de aceptación y política de contraseñas.
type Config struct {
	TTL            time.Duration
	Retention      time.Duration
	AcceptBaseURL  string
	ProductName    string
	PasswordPolicy password.Policy
	PasswordParams password.Params
}

// Deps agrupa las dependencias del Manager.
type Deps struct {
	Repo       repository.InvitationRepository
	Identities repository.IdentityRepository
	Resolver   *rbac.Resolver
	Mailer     email.Dispatcher
	Templates  *email.Templates
	Audit      *audit.Recorder
	Now        func() time.Time
	NewID      func() string
	Config     Config
}

// CreateInput es lo que pide el invitador.
type CreateInput struct {
	Email string
	Role  rbac.Role
	Scope rbac.Scope
}

// Delivery informa el resultado de la notificación. Err != nil con la
// invitación creada es un éxito parcial.
type Delivery struct {
	Notified  bool
	MessageID string
	Err       error
}

// Created es el resultado de Create. Token es el valor en claro; solo se
// conoce en este momento.
type Created struct {
	Invitation View
	Token      string
	AcceptURL  string
	Delivery   Delivery
}

// View son los campos públicos de una invitación (sin token ni hash).
type View struct {
	ID        string                      `json:"id"`
	Email     string                      `json:"email"`
	Role      rbac.Role                   `json:"role"`
	Scope     rbac.Scope                  `json:"scope"`
	InviterID string                      `json:"inviter_id"`
	Status    repository.InvitationStatus `json:"status"`
	ExpiresAt time.Time                   `json:"expires_at"`
	CreatedAt time.Time                   `json:"created_at"`
}

// Credentials se usan solo si el email invitado no tiene identidad.
type Credentials struct {
	Name     string
	Password string
}

// Accepted es el resultado de Accept.
type Accepted struct {
	Identity   repository.Identity
	Invitation View
	Created    bool
}

// PasswordRejectedError lista los motivos por los que la contraseña no cumple la política.
type PasswordRejectedError struct {
	Reasons []string
}

func (e *PasswordRejectedError) Error() string {
	return "invitation: password rejected: " + strings.Join(e.Reasons, ",")
}

func (e *PasswordRejectedError) Unwrap() error { return errs.ErrInvalidInput }

func (e *PasswordRejectedError) PublicDetail() string {
	return "password: " + strings.Join(e.Reasons, ",")
}

// Manager implementa las operaciones sobre invitaciones.
type Manager struct {
	repo       repository.InvitationRepository
	identities repository.IdentityRepository
	resolver   *rbac.Resolver
	mailer     email.Dispatcher
	tpl        *email.Templates
	audit      *audit.Recorder
	now        func() time.Time
	newID      func() string
	cfg        Config
}

// NewManager aplica defaults: TTL 7 días, retención 30 días, política y
// parámetros argon2id por defecto.
func NewManager(d Deps) *Manager {
	cfg := d.Config
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "POS Admin"
	}
	if cfg.PasswordPolicy == (password.Policy{}) {
		cfg.PasswordPolicy = password.DefaultPolicy
	}
	if cfg.PasswordParams == (password.Params{}) {
		cfg.PasswordParams = password.Default
	}
	m := &Manager{
		repo:       d.Repo,
		identities: d.Identities,
		resolver:   d.Resolver,
		mailer:     d.Mailer,
		tpl:        d.Templates,
		audit:      d.Audit,
		now:        d.Now,
		newID:      d.NewID,
		cfg:        cfg,
	}
	if m.resolver == nil {
		m.resolver = rbac.Default()
	}
	if m.tpl == nil {
		m.tpl = email.MustLoadTemplates()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// Create emite una invitación pendiente y la notifica por email.
// Forbidden si el invitador no puede otorgar el rol o el scope está fuera
// del suyo. Conflict si el email ya tiene usuario o ya hay una pendiente vigente.
func (m *Manager) Create(ctx context.Context, inviter authctx.Principal, in CreateInput) (*Created, error) {
	addr := repository.NormalizeEmail(in.Email)
	log := logger.From(ctx).With(
		logger.Layer("invitation"), logger.Op("Create"),
		logger.IdentityID(inviter.IdentityID), logger.Email(addr), logger.Role(string(in.Role)),
	)

	if !validation.Email(addr) || !in.Role.Valid() {
		return nil, fmt.Errorf("invitation create: %w", errs.ErrInvalidInput)
	}
	if err := in.Scope.ValidFor(in.Role); err != nil {
		return nil, fmt.Errorf("invitation create: %v: %w", err, errs.ErrInvalidInput)
	}
	if !m.resolver.HasPermission(inviter.Role, rbac.PermInvitationsCreate) ||
		!m.resolver.CanAssign(inviter.Role, in.Role) ||
		!inviter.Scope.Contains(in.Scope) {
		m.record(ctx, audit.ActionInvitationCreate, addr, audit.OutcomeDenied, map[string]string{"role": string(in.Role), "scope": in.Scope.String()})
		log.Info("invitation denied")
		return nil, fmt.Errorf("invitation create: %w", errs.ErrForbidden)
	}

	if _, err := m.identities.GetByEmail(ctx, addr); err == nil {
		return nil, fmt.Errorf("invitation create: email already registered: %w", errs.ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("invitation create: %w", err)
	}

	raw, err := tokens.GenerateOpaque(tokens.DefaultBytes)
	if err != nil {
		return nil, fmt.Errorf("invitation create: token: %w", err)
	}
	now := m.now()
	inv := repository.Invitation{
		ID:        m.newID(),
		TokenHash: tokens.Hash(raw),
		Email:     addr,
		Role:      in.Role,
		InviterID: inviter.IdentityID,
		Scope:     in.Scope,
		Status:    repository.InvitationPending,
		ExpiresAt: now.Add(m.cfg.TTL),
		CreatedAt: now,
	}
	if err := m.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("invitation create: %w", err)
	}
	metrics.InvitationEvents.WithLabelValues("created").Inc()
	m.record(ctx, audit.ActionInvitationCreate, inv.ID, audit.OutcomeSuccess, map[string]string{"role": string(in.Role), "scope": in.Scope.String()})

	out := &Created{Invitation: viewOf(&inv, now), Token: raw, AcceptURL: m.acceptURL(raw)}
	out.Delivery = m.notify(ctx, inviter, &inv, out.AcceptURL)
	if out.Delivery.Err != nil {
		metrics.InvitationEvents.WithLabelValues("notify_failed").Inc()
		log.Warn("invitation created but not delivered", logger.InvitationID(inv.ID), logger.Err(out.Delivery.Err))
	} else {
		log.Info("invitation created", logger.InvitationID(inv.ID))
	}
	return out, nil
}

func (m *Manager) notify(ctx context.Context, inviter authctx.Principal, inv *repository.Invitation, link string) Delivery {
	if m.mailer == nil {
		return Delivery{Err: errors.New("invitation: no email dispatcher configured")}
	}
	msg, err := m.tpl.Invitation(email.InvitationVars{
		Email:       inv.Email,
		InviterName: inviter.Email,
		Role:        string(inv.Role),
		Product:     m.cfg.ProductName,
		Link:        link,
		TTL:         humanTTL(m.cfg.TTL),
	})
	if err != nil {
		return Delivery{Err: err}
	}
	rcpt, err := m.mailer.Send(ctx, msg)
	if err != nil {
		return Delivery{Err: err}
	}
	return Delivery{Notified: true, MessageID: rcpt.MessageID}
}

// Validate devuelve la vista pública de la invitación asociada a token.
// NotFound si no existe o está mal formado; Expired si venció (y la marca);
// Conflict si ya fue aceptada o cancelada.
func (m *Manager) Validate(ctx context.Context, token string) (*View, error) {
	inv, err := m.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if err := m.checkUsable(ctx, inv, now); err != nil {
		return nil, err
	}
	v := viewOf(inv, now)
	return &v, nil
}

// Accept consume la invitación. Si el email ya tiene identidad se le asigna
// rol y scope; si no, se crea con creds. La transición pending -> accepted
// es una única escritura condicional: de dos aceptaciones concurrentes una
// gana y la otra recibe Conflict.
func (m *Manager) Accept(ctx context.Context, token string, creds Credentials) (*Accepted, error) {
	log := logger.From(ctx).With(logger.Layer("invitation"), logger.Op("Accept"))

	inv, err := m.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := m.checkUsable(ctx, inv, m.now()); err != nil {
		m.record(ctx, audit.ActionInvitationAccept, inv.ID, audit.OutcomeFailure, map[string]string{"reason": errs.Kind(err).Error()})
		return nil, err
	}

	in := repository.AcceptInvitationInput{TokenHash: inv.TokenHash}
	if _, err := m.identities.GetByEmail(ctx, inv.Email); errors.Is(err, repository.ErrNotFound) {
		if ok, reasons := m.cfg.PasswordPolicy.Validate(creds.Password); !ok {
			return nil, &PasswordRejectedError{Reasons: reasons}
		}
		hash, err := password.Hash(m.cfg.PasswordParams, creds.Password)
		if err != nil {
			return nil, fmt.Errorf("invitation accept: hash: %w", err)
		}
		in.NewIdentityID = m.newID()
		in.Name = strings.TrimSpace(creds.Name)
		in.PasswordHash = hash
	} else if err != nil {
		return nil, fmt.Errorf("invitation accept: %w", err)
	}

	in.Now = m.now()
	res, err := m.repo.Accept(ctx, in)
	switch {
	case errors.Is(err, repository.ErrExpired):
		m.expire(ctx, inv.ID, in.Now)
		return nil, fmt.Errorf("invitation accept: %w", errs.ErrExpired)
	case errors.Is(err, repository.ErrConflict):
		m.record(ctx, audit.ActionInvitationAccept, inv.ID, audit.OutcomeFailure, map[string]string{"reason": "conflict"})
		return nil, fmt.Errorf("invitation accept: already used: %w", errs.ErrConflict)
	case err != nil:
		return nil, fmt.Errorf("invitation accept: %w", err)
	}

	metrics.InvitationEvents.WithLabelValues("accepted").Inc()
	m.audit.Record(ctx, audit.Event{
		ActorID: res.Identity.ID,
		Action:  audit.ActionInvitationAccept,
		Target:  inv.ID,
		Outcome: audit.OutcomeSuccess,
		Meta:    map[string]string{"role": string(res.Identity.Role), "created": fmt.Sprint(res.Created)},
	})
	log.Info("invitation accepted", logger.InvitationID(inv.ID), logger.IdentityID(res.Identity.ID), logger.Bool("created", res.Created))
	return &Accepted{Identity: res.Identity, Invitation: viewOf(&res.Invitation, in.Now), Created: res.Created}, nil
}

// Cancel pasa una invitación pendiente a cancelled. Requiere
// invitations.delete y que el scope de la invitación esté dentro del del actor.
func (m *Manager) Cancel(ctx context.Context, actor authctx.Principal, invitationID string) (*View, error) {
	inv, err := m.repo.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("invitation cancel: %w", err)
	}
	if !m.resolver.HasPermission(actor.Role, rbac.PermInvitationsDelete) || !actor.Scope.Contains(inv.Scope) {
		m.record(ctx, audit.ActionInvitationCancel, invitationID, audit.OutcomeDenied, nil)
		return nil, fmt.Errorf("invitation cancel: %w", errs.ErrForbidden)
	}
	now := m.now()
	out, err := m.repo.Cancel(ctx, invitationID, now)
	if err != nil {
		return nil, fmt.Errorf("invitation cancel: %w", err)
	}
	metrics.InvitationEvents.WithLabelValues("cancelled").Inc()
	m.record(ctx, audit.ActionInvitationCancel, invitationID, audit.OutcomeSuccess, nil)
	logger.From(ctx).Info("invitation cancelled", logger.Layer("invitation"), logger.InvitationID(invitationID))
	v := viewOf(out, now)
	return &v, nil
}

// List devuelve las invitaciones dentro del scope del actor.
func (m *Manager) List(ctx context.Context, actor authctx.Principal, status *repository.InvitationStatus, limit int) ([]View, error) {
	if !m.resolver.HasPermission(actor.Role, rbac.PermInvitationsRead) {
		return nil, fmt.Errorf("invitation list: %w", errs.ErrForbidden)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	items, err := m.repo.List(ctx, repository.InvitationFilter{Scope: actor.Scope, Status: status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("invitation list: %w", err)
	}
	now := m.now()
	out := make([]View, 0, len(items))
	for i := range items {
		out = append(out, viewOf(&items[i], now))
	}
	return out, nil
}

// SweepExpired marca como expiradas las pendientes vencidas. Idempotente.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	n, err := m.repo.ExpireAll(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("invitation sweep: %w", err)
	}
	if n > 0 {
		metrics.InvitationEvents.WithLabelValues("swept").Add(float64(n))
		m.audit.Record(ctx, audit.Event{
			ActorID: "system",
			Action:  audit.ActionInvitationSweep,
			Outcome: audit.OutcomeSuccess,
			Meta:    map[string]string{"count": fmt.Sprint(n)},
		})
	}
	logger.From(ctx).Debug("invitations swept", logger.Layer("invitation"), logger.Count(n))
	return n, nil
}

// CleanupStale borra expiradas y canceladas más viejas que la retención.
func (m *Manager) CleanupStale(ctx context.Context) (int, error) {
	n, err := m.repo.DeleteStale(ctx, m.now().Add(-m.cfg.Retention))
	if err != nil {
		return 0, fmt.Errorf("invitation cleanup: %w", err)
	}
	if n > 0 {
		metrics.InvitationEvents.WithLabelValues("cleaned").Add(float64(n))
	}
	logger.From(ctx).Debug("stale invitations deleted", logger.Layer("invitation"), logger.Count(n))
	return n, nil
}

func (m *Manager) byToken(ctx context.Context, token string) (*repository.Invitation, error) {
	token = strings.TrimSpace(token)
	if tokens.CheckShape(token, tokens.DefaultBytes) != nil {
		return nil, fmt.Errorf("invitation: malformed token: %w", errs.ErrNotFound)
	}
	inv, err := m.repo.GetByTokenHash(ctx, tokens.Hash(token))
	if err != nil {
		return nil, fmt.Errorf("invitation: %w", err)
	}
	return inv, nil
}

// checkUsable aplica la expiración perezosa y rechaza estados terminales.
func (m *Manager) checkUsable(ctx context.Context, inv *repository.Invitation, now time.Time) error {
	switch inv.EffectiveStatus(now) {
	case repository.InvitationPending:
		return nil
	case repository.InvitationExpired:
		if inv.Status == repository.InvitationPending {
			m.expire(ctx, inv.ID, now)
		}
		return fmt.Errorf("invitation: %w", errs.ErrExpired)
	default:
		return fmt.Errorf("invitation: %s: %w", inv.Status, errs.ErrConflict)
	}
}

func (m *Manager) expire(ctx context.Context, id string, now time.Time) {
	flipped, err := m.repo.MarkExpired(ctx, id, now)
	if err != nil {
		logger.From(ctx).Warn("mark expired failed", logger.Layer("invitation"), logger.InvitationID(id), logger.Err(err))
		return
	}
	if flipped {
		metrics.InvitationEvents.WithLabelValues("expired").Inc()
	}
}

func (m *Manager) acceptURL(token string) string {
	base := strings.TrimRight(m.cfg.AcceptBaseURL, "/")
	if base == "" {
		base = "/invite"
	}
	return base + "/" + url.PathEscape(token)
}

func (m *Manager) record(ctx context.Context, action, target string, outcome audit.Outcome, meta map[string]string) {
	m.audit.Record(ctx, audit.Event{Action: action, Target: target, Outcome: outcome, Meta: meta})
}

func viewOf(inv *repository.Invitation, now time.Time) View {
	return View{
		ID:        inv.ID,
		Email:     inv.Email,
		Role:      inv.Role,
		Scope:     inv.Scope,
		InviterID: inv.InviterID,
		Status:    inv.EffectiveStatus(now),
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: inv.CreatedAt,
	}
}

func humanTTL(d time.Duration) string {
	if days := int(d.Hours() / 24); days >= 1 && d%(24*time.Hour) == 0 {
		if days == 1 {
			return "1 día"
		}
		return fmt.Sprintf("%d días", days)
	}
	return d.String()
}

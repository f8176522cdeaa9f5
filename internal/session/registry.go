// Package session es el registro de sesiones autenticadas por identidad y
// dispositivo. El token en claro solo lo tiene el cliente; se persiste su hash.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/dropDatabas3/posguard/internal/audit"
	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/metrics"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/rbac"
	tokens "github.com/dropDatabas3/posguard/internal/security/token"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultTouchInterval = time.Minute
	maxDeviceLen         = 200
)

// Config ajusta la vida de las sesiones.
type Config struct {
	TTL time.Duration
	// TouchInterval evita escribir last_activity en cada request.
	TouchInterval time.Duration
}

// Deps agrupa las dependencias del Registry.
type Deps struct {
	Repo       repository.SessionRepository
	Identities repository.IdentityRepository
	Resolver   *rbac.Resolver
	Audit      *audit.Recorder
	Now        func() time.Time
	NewID      func() string
	Config     Config
}

// Issued es una sesión recién creada. Token solo se devuelve acá.
type Issued struct {
	ID        string
	Token     string
	ExpiresAt time.Time
}

// View es una sesión tal como se lista al usuario.
type View struct {
	ID               string    `json:"id"`
	Device           string    `json:"device"`
	Origin           string    `json:"origin"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivity     time.Time `json:"last_activity"`
	LastActivityText string    `json:"last_activity_text"`
	ExpiresAt        time.Time `json:"expires_at"`
	Current          bool      `json:"current"`
}

// Registry implementa las operaciones de sesión.
type Registry struct {
	repo       repository.SessionRepository
	identities repository.IdentityRepository
	resolver   *rbac.Resolver
	audit      *audit.Recorder
	now        func() time.Time
	newID      func() string
	cfg        Config
}

// NewRegistry aplica defaults (TTL 24h, touch cada 1m).
func NewRegistry(d Deps) *Registry {
	r := &Registry{
		repo:       d.Repo,
		identities: d.Identities,
		resolver:   d.Resolver,
		audit:      d.Audit,
		now:        d.Now,
		newID:      d.NewID,
		cfg:        d.Config,
	}
	if r.cfg.TTL <= 0 {
		r.cfg.TTL = DefaultTTL
	}
	if r.cfg.TouchInterval <= 0 {
		r.cfg.TouchInterval = DefaultTouchInterval
	}
	if r.resolver == nil {
		r.resolver = rbac.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	return r
}

// TTL devuelve la duración configurada (para el Max-Age de la cookie).
func (r *Registry) TTL() time.Duration { return r.cfg.TTL }

// Create abre una sesión para identityID y devuelve el token opaco.
func (r *Registry) Create(ctx context.Context, identityID, device, origin string) (*Issued, error) {
	raw, err := tokens.GenerateOpaque(tokens.DefaultBytes)
	if err != nil {
		return nil, fmt.Errorf("session create: token: %w", err)
	}
	now := r.now()
	s := repository.Session{
		ID:           r.newID(),
		IdentityID:   identityID,
		TokenHash:    tokens.Hash(raw),
		Device:       truncate(strings.TrimSpace(device), maxDeviceLen),
		Origin:       origin,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(r.cfg.TTL),
	}
	if err := r.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("session create: %w", err)
	}

	metrics.SessionEvents.WithLabelValues("created").Inc()
	r.audit.Record(ctx, audit.Event{
		ActorID: identityID,
		Action:  audit.ActionSessionCreate,
		Target:  s.ID,
		Origin:  origin,
		Outcome: audit.OutcomeSuccess,
	})
	logger.From(ctx).Info("session created",
		logger.Layer("session"), logger.IdentityID(identityID), logger.SessionID(s.ID))
	return &Issued{ID: s.ID, Token: raw, ExpiresAt: s.ExpiresAt}, nil
}

// Lookup resuelve el token presentado. Token mal formado, inexistente o
// vencido devuelve NotFound; el Gatekeeper lo traduce a Unauthorized.
func (r *Registry) Lookup(ctx context.Context, token string) (*repository.Session, error) {
	if tokens.CheckShape(token, tokens.DefaultBytes) != nil {
		return nil, fmt.Errorf("session lookup: malformed: %w", errs.ErrNotFound)
	}
	s, err := r.repo.GetByTokenHash(ctx, tokens.Hash(token))
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	now := r.now()
	if !s.Active(now) {
		return nil, fmt.Errorf("session lookup: expired: %w", errs.ErrNotFound)
	}
	if now.Sub(s.LastActivity) >= r.cfg.TouchInterval {
		if err := r.repo.Touch(ctx, s.ID, now); err != nil {
			logger.From(ctx).Warn("session touch failed", logger.Layer("session"), logger.SessionID(s.ID), logger.Err(err))
		} else {
			s.LastActivity = now
		}
	}
	return s, nil
}

// List devuelve las sesiones activas de identityID. Current marca la sesión
// cuyo token coincide con presentedToken.
func (r *Registry) List(ctx context.Context, identityID, presentedToken string) ([]View, error) {
	now := r.now()
	items, err := r.repo.ListActive(ctx, identityID, now)
	if err != nil {
		return nil, fmt.Errorf("session list: %w", err)
	}
	presented := ""
	if presentedToken != "" {
		presented = tokens.Hash(presentedToken)
	}
	out := make([]View, 0, len(items))
	for _, s := range items {
		out = append(out, View{
			ID:               s.ID,
			Device:           s.Device,
			Origin:           s.Origin,
			CreatedAt:        s.CreatedAt,
			LastActivity:     s.LastActivity,
			LastActivityText: relative(s.LastActivity, now),
			ExpiresAt:        s.ExpiresAt,
			Current:          presented != "" && tokens.Equal(s.TokenHash, presented),
		})
	}
	return out, nil
}

// Terminate borra la sesión sessionID de identityID. Se permite sobre las
// propias sesiones, o con sessions.manage sobre identidades dentro del scope
// del solicitante cuyo rol está por debajo del suyo.
func (r *Registry) Terminate(ctx context.Context, requester authctx.Principal, identityID, sessionID string) error {
	log := logger.From(ctx).With(logger.Layer("session"), logger.Op("Terminate"),
		logger.IdentityID(identityID), logger.SessionID(sessionID))

	s, err := r.repo.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("session terminate: %w", err)
	}
	if s.IdentityID != identityID {
		return fmt.Errorf("session terminate: %w", errs.ErrNotFound)
	}
	if requester.IdentityID != identityID {
		if err := r.authorizeOther(ctx, requester, identityID); err != nil {
			r.record(ctx, audit.ActionSessionTerminate, sessionID, audit.OutcomeDenied, identityID)
			log.Info("session termination denied", logger.String("requester_id", requester.IdentityID))
			return err
		}
	}
	if err := r.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session terminate: %w", err)
	}

	metrics.SessionEvents.WithLabelValues("terminated").Inc()
	r.record(ctx, audit.ActionSessionTerminate, sessionID, audit.OutcomeSuccess, identityID)
	log.Info("session terminated")
	return nil
}

func (r *Registry) authorizeOther(ctx context.Context, requester authctx.Principal, identityID string) error {
	if !r.resolver.HasPermission(requester.Role, rbac.PermSessionsManage) {
		return fmt.Errorf("session terminate: %w", errs.ErrForbidden)
	}
	target, err := r.identities.GetByID(ctx, identityID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("session terminate: %w", errs.ErrForbidden)
	}
	if err != nil {
		return fmt.Errorf("session terminate: %w", err)
	}
	if !requester.Scope.Contains(target.Scope) || !r.resolver.Outranks(requester.Role, target.Role) {
		return fmt.Errorf("session terminate: %w", errs.ErrForbidden)
	}
	return nil
}

// TerminateAll cierra todas las sesiones de identityID (logout forzado).
func (r *Registry) TerminateAll(ctx context.Context, identityID string) (int, error) {
	n, err := r.repo.DeleteByIdentity(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("session terminate all: %w", err)
	}
	metrics.SessionEvents.WithLabelValues("revoked_all").Inc()
	r.audit.Record(ctx, audit.Event{
		Action:  audit.ActionSessionRevokeAll,
		Target:  identityID,
		Outcome: audit.OutcomeSuccess,
		Meta:    map[string]string{"count": fmt.Sprint(n)},
	})
	logger.From(ctx).Info("all sessions revoked",
		logger.Layer("session"), logger.IdentityID(identityID), logger.Count(n))
	return n, nil
}

// PurgeExpired borra las sesiones vencidas.
func (r *Registry) PurgeExpired(ctx context.Context) (int, error) {
	n, err := r.repo.DeleteExpired(ctx, r.now())
	if err != nil {
		return 0, fmt.Errorf("session purge: %w", err)
	}
	if n > 0 {
		metrics.SessionEvents.WithLabelValues("purged").Add(float64(n))
	}
	return n, nil
}

func (r *Registry) record(ctx context.Context, action, target string, outcome audit.Outcome, owner string) {
	r.audit.Record(ctx, audit.Event{
		Action:  action,
		Target:  target,
		Outcome: outcome,
		Meta:    map[string]string{"owner_id": owner},
	})
}

// relative devuelve "3 minutes ago", "now", etc. respecto de now.
func relative(t, now time.Time) string {
	if now.Sub(t) < time.Second {
		return "now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

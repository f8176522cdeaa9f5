package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dropDatabas3/posguard/internal/authctx"
	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	httperrors "github.com/dropDatabas3/posguard/internal/http/errors"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
	"github.com/dropDatabas3/posguard/internal/metrics"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/rate"
)

// SessionResolver resuelve un token de sesión crudo (ver session.Registry).
type SessionResolver interface {
	Lookup(ctx context.Context, token string) (*repository.Session, error)
}

// IdentityReader carga rol y scope de la identidad de la sesión.
type IdentityReader interface {
	GetByID(ctx context.Context, id string) (*repository.Identity, error)
}

// CSRFVerifier valida el par cookie/header (ver security/csrf).
type CSRFVerifier interface {
	Verify(cookie, header, sessionToken string) error
}

// RateOverride asigna otra política a un prefijo de la API.
type RateOverride struct {
	Prefix string
	Policy rate.Policy
}

// GatekeeperConfig agrupa dependencias y parámetros del Gatekeeper.
type GatekeeperConfig struct {
	Classifier *Classifier
	// Limiter nil desactiva el rate limit.
	Limiter    rate.Limiter
	Policy     rate.Policy
	Overrides  []RateOverride
	CSRF       CSRFVerifier
	CSRFHeader string
	Cookies    helpers.CookieConfig
	Sessions   SessionResolver
	Identities IdentityReader
	LoginPath  string
	TrustProxy bool
}

// WithGatekeeper es el punto de entrada de todo request:
//
//	public -> pasa sin más.
//	page   -> exige sesión válida; si no, 302 a LoginPath?next=<uri>.
//	api    -> rate limit por origen+clase, CSRF en verbos mutantes y, si hay
//	          sesión válida, adjunta el principal al contexto. En ese orden:
//	          la sesión se busca solo para requests que pasaron los dos filtros.
//
// No evalúa permisos por acción; eso queda para RequirePermission.
func WithGatekeeper(cfg GatekeeperConfig) Middleware {
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier(nil, nil, []string{"/api/"})
	}
	if cfg.Policy.Max <= 0 || cfg.Policy.Window <= 0 {
		cfg.Policy = rate.DefaultPolicy
	}
	if cfg.CSRFHeader == "" {
		cfg.CSRFHeader = "X-CSRF-Token"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	g := &gatekeeper{cfg: cfg}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := helpers.ClientIP(r, cfg.TrustProxy)
			class := cfg.Classifier.Classify(r.URL.Path)

			log := logger.From(r.Context()).With(logger.RouteClass(string(class)), logger.ClientIP(origin))
			ctx := logger.ToContext(r.Context(), log)
			ctx = authctx.WithOrigin(ctx, origin)
			r = r.WithContext(ctx)

			switch class {
			case ClassPublic:
				g.decide(class, "pass")
				next.ServeHTTP(w, r)

			case ClassPage:
				p, token, ok := g.resolve(ctx, r)
				if !ok {
					g.decide(class, "redirect")
					http.Redirect(w, r, cfg.LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
					return
				}
				g.decide(class, "pass")
				next.ServeHTTP(w, r.WithContext(attach(ctx, p, token)))

			default:
				if !g.allow(w, r, origin, class) {
					return
				}
				if unsafeMethod(r.Method) {
					// se liga a la cookie cruda: no hace falta buscar la sesión
					raw := cfg.Cookies.SessionToken(r)
					header := strings.TrimSpace(r.Header.Get(cfg.CSRFHeader))
					if err := g.verifyCSRF(cfg.Cookies.CSRFToken(r), header, raw); err != nil {
						g.decide(class, "csrf_rejected")
						log.Info("csrf rejected", logger.Bool("with_session_cookie", raw != ""))
						httperrors.WriteError(w, httperrors.ErrInvalidCSRF.WithCause(err))
						return
					}
				}
				p, token, ok := g.resolve(ctx, r)
				g.decide(class, "pass")
				if ok {
					r = r.WithContext(attach(ctx, p, token))
				}
				next.ServeHTTP(w, r)
			}
		})
	}
}

type gatekeeper struct {
	cfg GatekeeperConfig
}

func (g *gatekeeper) decide(class RouteClass, decision string) {
	metrics.GatekeeperDecisions.WithLabelValues(string(class), decision).Inc()
}

// allow cuenta el hit. Si el limiter falla el request pasa.
func (g *gatekeeper) allow(w http.ResponseWriter, r *http.Request, origin string, class RouteClass) bool {
	if g.cfg.Limiter == nil {
		return true
	}
	policy, bucket := g.policyFor(r.URL.Path)
	key := origin + "|" + string(class) + bucket
	res, err := g.cfg.Limiter.Allow(r.Context(), key, policy)
	if err != nil {
		g.decide(class, "limiter_error")
		logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
		return true
	}

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(policy.Max, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed {
		g.decide(class, "rate_limited")
		h.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
		logger.From(r.Context()).Info("rate limited", logger.Int64("hits", res.CurrentHits))
		httperrors.WriteError(w, httperrors.ErrRateLimitExceeded)
		return false
	}
	return true
}

// policyFor elige el override de prefijo más largo; bucket separa sus contadores.
func (g *gatekeeper) policyFor(path string) (rate.Policy, string) {
	best := -1
	for i, o := range g.cfg.Overrides {
		if matchPrefix(path, o.Prefix) && (best < 0 || len(o.Prefix) > len(g.cfg.Overrides[best].Prefix)) {
			best = i
		}
	}
	if best < 0 {
		return g.cfg.Policy, ""
	}
	return g.cfg.Overrides[best].Policy, "|" + g.cfg.Overrides[best].Prefix
}

func (g *gatekeeper) verifyCSRF(cookie, header, sessionToken string) error {
	if g.cfg.CSRF == nil {
		return errors.New("csrf verifier not configured")
	}
	return g.cfg.CSRF.Verify(cookie, header, sessionToken)
}

// resolve busca la sesión de la cookie y arma el principal. Cualquier falla
// equivale a "sin sesión".
func (g *gatekeeper) resolve(ctx context.Context, r *http.Request) (authctx.Principal, string, bool) {
	token := g.cfg.Cookies.SessionToken(r)
	if token == "" || g.cfg.Sessions == nil || g.cfg.Identities == nil {
		return authctx.Principal{}, "", false
	}
	sess, err := g.cfg.Sessions.Lookup(ctx, token)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			logger.From(ctx).Warn("session lookup failed", logger.Err(err))
		}
		return authctx.Principal{}, "", false
	}
	ident, err := g.cfg.Identities.GetByID(ctx, sess.IdentityID)
	if err != nil {
		logger.From(ctx).Warn("session identity unavailable", logger.SessionID(sess.ID), logger.Err(err))
		return authctx.Principal{}, "", false
	}
	return authctx.Principal{
		IdentityID: ident.ID,
		Email:      ident.Email,
		Role:       ident.Role,
		Scope:      ident.Scope,
		SessionID:  sess.ID,
	}, token, true
}

func attach(ctx context.Context, p authctx.Principal, token string) context.Context {
	ctx = authctx.WithPrincipal(ctx, p)
	ctx = authctx.WithSessionToken(ctx, token)
	log := logger.From(ctx).With(logger.IdentityID(p.IdentityID), logger.SessionID(p.SessionID))
	return logger.ToContext(ctx, log)
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

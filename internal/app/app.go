// Package app arma el grafo de dependencias a partir de la configuración.
// Lo usan tanto el servidor como posctl.
package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	rdb "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/posguard/internal/audit"
	"github.com/dropDatabas3/posguard/internal/config"
	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/email"
	"github.com/dropDatabas3/posguard/internal/http/controllers"
	"github.com/dropDatabas3/posguard/internal/http/helpers"
	mw "github.com/dropDatabas3/posguard/internal/http/middlewares"
	"github.com/dropDatabas3/posguard/internal/http/router"
	"github.com/dropDatabas3/posguard/internal/http/server"
	authsvc "github.com/dropDatabas3/posguard/internal/http/services/auth"
	"github.com/dropDatabas3/posguard/internal/invitation"
	"github.com/dropDatabas3/posguard/internal/metrics"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
	"github.com/dropDatabas3/posguard/internal/rate"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/security/csrf"
	"github.com/dropDatabas3/posguard/internal/security/password"
	"github.com/dropDatabas3/posguard/internal/security/secretbox"
	tokens "github.com/dropDatabas3/posguard/internal/security/token"
	"github.com/dropDatabas3/posguard/internal/session"
	"github.com/dropDatabas3/posguard/internal/store/memory"
	"github.com/dropDatabas3/posguard/internal/store/pg"
	"github.com/dropDatabas3/posguard/internal/twofactor"
	migrations "github.com/dropDatabas3/posguard/migrations/postgres"
)

// Repositories es la vista común de los stores memory y pg.
type Repositories interface {
	Identities() repository.IdentityRepository
	Invitations() repository.InvitationRepository
	Sessions() repository.SessionRepository
	TwoFactor() repository.TwoFactorRepository
}

// Options ajusta lo que Build levanta.
type Options struct {
	// WithoutHTTP omite router, limiter y métricas (comandos de posctl).
	WithoutHTTP bool
	// Migrate fuerza migraciones aunque storage.postgres.migrate sea false.
	Migrate bool
}

// App es el contenedor ya cableado.
type App struct {
	Config      *config.Config
	Repos       Repositories
	Resolver    *rbac.Resolver
	Audit       *audit.Recorder
	Sessions    *session.Registry
	TwoFactor   *twofactor.Manager
	Invitations *invitation.Manager
	Handler     http.Handler
	Metrics     *prometheus.Registry

	pool   *pgxpool.Pool
	redis  *rdb.Client
	checks map[string]controllers.HealthCheck
}

// Build construye el contenedor. Ante error libera lo que alcanzó a abrir.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Component("app"))
	a := &App{Config: cfg, checks: map[string]controllers.HealthCheck{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Resolver, err = buildResolver(cfg); err != nil {
		return nil, err
	}

	var sink audit.Sink = audit.LogSink{L: logger.Named("audit")}
	switch cfg.Storage.Driver {
	case "postgres":
		a.pool, err = pg.Connect(ctx, cfg.Storage.DSN, pg.PoolConfig{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			ConnMaxLifetime: config.Duration(cfg.Storage.Postgres.ConnMaxLifetime, 0),
		})
		if err != nil {
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
		if cfg.Storage.Postgres.Migrate || opts.Migrate {
			if _, err = a.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		st := pg.New(a.pool)
		a.Repos = st
		sink = audit.Multi{st.AuditSink(), sink}
		a.checks["postgres"] = st.Ping
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		a.Repos = memory.New()
	}
	a.Audit = audit.NewRecorder(sink)

	policy := passwordPolicy(cfg)
	a.Sessions = session.NewRegistry(session.Deps{
		Repo:       a.Repos.Sessions(),
		Identities: a.Repos.Identities(),
		Resolver:   a.Resolver,
		Audit:      a.Audit,
		Config:     session.Config{TTL: config.Duration(cfg.Session.TTL, session.DefaultTTL)},
	})

	masterKey := cfg.Security.SecretBoxMasterKey
	if masterKey == "" {
		log.Warn("security.secretbox_master_key not set; using an ephemeral key, 2FA secrets will not survive a restart")
		if masterKey, err = ephemeralKey(); err != nil {
			return nil, err
		}
	}
	box, err := secretbox.New(masterKey)
	if err != nil {
		return nil, fmt.Errorf("app: secretbox: %w", err)
	}
	a.TwoFactor = twofactor.NewManager(twofactor.Deps{
		Repo:       a.Repos.TwoFactor(),
		Identities: a.Repos.Identities(),
		Sealer:     box,
		Audit:      a.Audit,
		Config: twofactor.Config{
			Issuer:            cfg.TwoFactor.Issuer,
			Skew:              cfg.TwoFactor.Skew,
			AttemptsPerMinute: cfg.TwoFactor.AttemptsPerMinute,
		},
	})

	tpl, err := email.LoadTemplates()
	if err != nil {
		return nil, err
	}
	a.Invitations = invitation.NewManager(invitation.Deps{
		Repo:       a.Repos.Invitations(),
		Identities: a.Repos.Identities(),
		Resolver:   a.Resolver,
		Mailer:     buildMailer(cfg),
		Templates:  tpl,
		Audit:      a.Audit,
		Config: invitation.Config{
			TTL:            config.Duration(cfg.Invitations.TTL, invitation.DefaultTTL),
			Retention:      config.Duration(cfg.Invitations.Retention, invitation.DefaultRetention),
			AcceptBaseURL:  cfg.Invitations.AcceptBaseURL,
			ProductName:    cfg.Email.ProductName,
			PasswordPolicy: policy,
		},
	})

	if opts.WithoutHTTP {
		return a, nil
	}
	if err = a.buildHTTP(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) buildHTTP(ctx context.Context) error {
	cfg := a.Config
	log := logger.From(ctx).With(logger.Component("app"))

	a.Metrics = prometheus.NewRegistry()
	a.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(a.Metrics); err != nil {
		return fmt.Errorf("app: metrics: %w", err)
	}

	var limiter rate.Limiter
	if !cfg.Rate.Disabled {
		switch cfg.Cache.Kind {
		case "redis":
			a.redis = rdb.NewClient(&rdb.Options{
				Addr:     cfg.Cache.Redis.Addr,
				DB:       cfg.Cache.Redis.DB,
				Password: cfg.Cache.Redis.Password,
			})
			if err := a.redis.Ping(ctx).Err(); err != nil {
				// el limiter deja pasar si redis no responde
				log.Warn("redis ping failed", logger.Err(err))
			}
			limiter = rate.NewRedisLimiter(a.redis, cfg.Cache.Redis.Prefix)
			a.checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
		default:
			limiter = rate.NewMemoryLimiter(time.Minute)
		}
	}

	csrfSecret := cfg.CSRF.Secret
	challengeSecret := cfg.Auth.ChallengeSecret
	for name, dst := range map[string]*string{"csrf.secret": &csrfSecret, "auth.challenge_secret": &challengeSecret} {
		if len(*dst) >= 32 {
			continue
		}
		log.Warn("secret not set or too short; using an ephemeral one", logger.String("key", name))
		v, err := tokens.GenerateOpaque(tokens.DefaultBytes)
		if err != nil {
			return err
		}
		*dst = v
	}
	csrfTokens, err := csrf.New(csrfSecret)
	if err != nil {
		return fmt.Errorf("app: csrf: %w", err)
	}

	login := authsvc.NewServices(authsvc.Deps{
		Identities:      a.Repos.Identities(),
		Sessions:        a.Sessions,
		TwoFactor:       a.TwoFactor,
		Audit:           a.Audit,
		ChallengeSecret: challengeSecret,
		ChallengeTTL:    config.Duration(cfg.Auth.ChallengeTTL, 5*time.Minute),
		Issuer:          cfg.App.Name,
	}).Login

	cookies := helpers.CookieConfig{
		SessionName: cfg.Session.CookieName,
		CSRFName:    cfg.CSRF.CookieName,
		Domain:      cfg.Session.Domain,
		SameSite:    cfg.Session.SameSite,
		Secure:      cfg.Session.Secure,
	}

	var overrides []mw.RateOverride
	for _, o := range cfg.Rate.Overrides {
		overrides = append(overrides, mw.RateOverride{
			Prefix: o.Prefix,
			Policy: rate.Policy{Max: int64(o.Limit), Window: config.Duration(o.Window, time.Minute)},
		})
	}

	a.Handler = router.New(router.Deps{
		Controllers: controllers.New(controllers.Deps{
			Auth:        login,
			Invitations: a.Invitations,
			TwoFactor:   a.TwoFactor,
			Sessions:    a.Sessions,
			CSRF:        csrfTokens,
			Cookies:     cookies,
			Resolver:    a.Resolver,
			Checks:      a.checks,
			Version:     cfg.App.Version,
		}),
		Resolver: a.Resolver,
		Gatekeeper: mw.GatekeeperConfig{
			Classifier: mw.NewClassifier(cfg.Routes.Public, cfg.Routes.Pages, cfg.Routes.API),
			Limiter:    limiter,
			Policy:     rate.Policy{Max: int64(cfg.Rate.MaxRequests), Window: config.Duration(cfg.Rate.Window, time.Minute)},
			Overrides:  overrides,
			CSRF:       csrfTokens,
			CSRFHeader: cfg.CSRF.HeaderName,
			Cookies:    cookies,
			Sessions:   a.Sessions,
			Identities: a.Repos.Identities(),
			LoginPath:  cfg.Auth.LoginPath,
			TrustProxy: cfg.Server.TrustProxy,
		},
		Gatherer: a.Metrics,
	})
	return nil
}

// Run sirve HTTP y corre el barrido de invitaciones y la purga de sesiones
// hasta que ctx termine o alguno falle.
func (a *App) Run(ctx context.Context) error {
	if a.Handler == nil {
		return errors.New("app: built without http")
	}
	cfg := a.Config
	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     config.Duration(cfg.Server.ReadTimeout, 0),
		WriteTimeout:    config.Duration(cfg.Server.WriteTimeout, 0),
		ShutdownTimeout: config.Duration(cfg.Server.ShutdownTimeout, 0),
	}, a.Handler)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		sw := &invitation.Sweeper{Manager: a.Invitations, Interval: config.Duration(cfg.Invitations.SweepInterval, 0)}
		return sw.Run(ctx)
	})
	g.Go(func() error {
		p := &session.Purger{Registry: a.Sessions, Interval: config.Duration(cfg.Session.PurgeInterval, 0)}
		return p.Run(ctx)
	})
	return g.Wait()
}

// Migrate aplica las migraciones embebidas. Solo con storage postgres.
func (a *App) Migrate(ctx context.Context) (*pg.MigrationResult, error) {
	if a.pool == nil {
		return nil, errors.New("app: migrate requires storage.driver=postgres")
	}
	res, err := pg.NewMigrator(migrations.FS, migrations.Dir).Run(ctx, a.pool)
	if err != nil {
		return nil, fmt.Errorf("app: migrate: %w", err)
	}
	logger.From(ctx).Info("migrations done",
		logger.Component("app"), logger.Count(len(res.Applied)), logger.Int("skipped", len(res.Skipped)), logger.Duration(res.Duration))
	return res, nil
}

// Close libera pool y cliente redis.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func buildResolver(cfg *config.Config) (*rbac.Resolver, error) {
	p := strings.TrimSpace(cfg.RBAC.MatrixPath)
	if p == "" {
		return rbac.Default(), nil
	}
	m, err := rbac.LoadMatrix(p)
	if err != nil {
		return nil, err
	}
	return rbac.NewResolver(m)
}

func buildMailer(cfg *config.Config) email.Dispatcher {
	if cfg.Email.Driver != "smtp" {
		return email.LogDispatcher{}
	}
	return email.NewSMTPDispatcher(email.SMTPConfig{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		Username:           cfg.SMTP.Username,
		Password:           cfg.SMTP.Password,
		From:               cfg.SMTP.From,
		TLSMode:            cfg.SMTP.TLS,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		Timeout:            config.Duration(cfg.SMTP.Timeout, 10*time.Second),
	})
}

// passwordPolicy parte de la política por defecto; la config solo endurece.
func passwordPolicy(cfg *config.Config) password.Policy {
	p := password.DefaultPolicy
	pp := cfg.Security.PasswordPolicy
	if pp.MinLength > p.MinLength {
		p.MinLength = pp.MinLength
	}
	p.RequireUpper = p.RequireUpper || pp.RequireUpper
	p.RequireLower = p.RequireLower || pp.RequireLower
	p.RequireDigit = p.RequireDigit || pp.RequireDigit
	p.RequireSymbol = p.RequireSymbol || pp.RequireSymbol
	return p
}

func ephemeralKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("app: ephemeral key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

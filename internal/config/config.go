package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env     string `yaml:"env"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		// TrustProxy habilita X-Forwarded-For / X-Real-IP para el origen del cliente.
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
			Migrate         bool   `yaml:"migrate"` // aplicar migraciones al arrancar
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Rate struct {
		Disabled    bool   `yaml:"disabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
		// Overrides por prefijo de ruta (el más largo gana).
		Overrides []RateOverride `yaml:"overrides"`
	} `yaml:"rate"`

	Routes struct {
		Public []string `yaml:"public"`
		Pages  []string `yaml:"pages"`
		API    []string `yaml:"api"`
	} `yaml:"routes"`

	Session struct {
		CookieName    string `yaml:"cookie_name"`
		Domain        string `yaml:"domain"`
		SameSite      string `yaml:"samesite"`
		Secure        bool   `yaml:"secure"`
		TTL           string `yaml:"ttl"`
		PurgeInterval string `yaml:"purge_interval"`
	} `yaml:"session"`

	CSRF struct {
		Secret     string `yaml:"secret"`
		CookieName string `yaml:"cookie_name"`
		HeaderName string `yaml:"header_name"`
	} `yaml:"csrf"`

	Auth struct {
		// Firma del token de desafío 2FA del login (HS256).
		ChallengeSecret string `yaml:"challenge_secret"`
		ChallengeTTL    string `yaml:"challenge_ttl"`
		LoginPath       string `yaml:"login_path"`
	} `yaml:"auth"`

	TwoFactor struct {
		Issuer            string `yaml:"issuer"`
		Skew              int    `yaml:"skew"`
		AttemptsPerMinute int    `yaml:"attempts_per_minute"`
	} `yaml:"twofactor"`

	Invitations struct {
		TTL           string `yaml:"ttl"`
		Retention     string `yaml:"retention"`
		AcceptBaseURL string `yaml:"accept_base_url"`
		SweepInterval string `yaml:"sweep_interval"`
	} `yaml:"invitations"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
		Timeout            string `yaml:"timeout"`
	} `yaml:"smtp"`

	Email struct {
		Driver      string `yaml:"driver"` // smtp | log
		ProductName string `yaml:"product_name"`
	} `yaml:"email"`

	Security struct {
		SecretBoxMasterKey string `yaml:"secretbox_master_key"` // base64(32 bytes), cifra secretos TOTP
		PasswordPolicy     struct {
			MinLength     int  `yaml:"min_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
	} `yaml:"security"`

	RBAC struct {
		MatrixPath string `yaml:"matrix_path"`
	} `yaml:"rbac"`
}

// RateOverride asigna un cupo distinto a un prefijo de ruta.
type RateOverride struct {
	Prefix string `yaml:"prefix"`
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// Load lee el YAML (path vacío = solo defaults + env), aplica defaults,
// overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	// rutas relativas se resuelven respecto al YAML
	if p := strings.TrimSpace(c.RBAC.MatrixPath); p != "" && path != "" && !filepath.IsAbs(p) {
		c.RBAC.MatrixPath = filepath.Clean(filepath.Join(filepath.Dir(path), p))
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	setStr := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if *dst == 0 {
			*dst = v
		}
	}

	setStr(&c.App.Env, "dev")
	setStr(&c.App.Name, "posguard")
	setStr(&c.Log.Level, "info")

	setStr(&c.Server.Addr, ":8080")
	setStr(&c.Server.ReadTimeout, "15s")
	setStr(&c.Server.WriteTimeout, "30s")
	setStr(&c.Server.ShutdownTimeout, "10s")

	setStr(&c.Storage.Driver, "memory")
	setInt(&c.Storage.Postgres.MaxConns, 10)
	setStr(&c.Cache.Kind, "memory")
	setStr(&c.Cache.Redis.Prefix, "posguard:rl:")

	setStr(&c.Rate.Window, "1m")
	setInt(&c.Rate.MaxRequests, 100)

	if len(c.Routes.Public) == 0 {
		c.Routes.Public = []string{"/healthz", "/readyz", "/metrics", "/login", "/static/", "/favicon.ico"}
	}
	if len(c.Routes.Pages) == 0 {
		c.Routes.Pages = []string{"/app"}
	}
	if len(c.Routes.API) == 0 {
		c.Routes.API = []string{"/api/"}
	}

	setStr(&c.Session.CookieName, "sid")
	setStr(&c.Session.SameSite, "Lax")
	setStr(&c.Session.TTL, "24h")
	setStr(&c.Session.PurgeInterval, "1h")

	setStr(&c.CSRF.CookieName, "csrf_token")
	setStr(&c.CSRF.HeaderName, "X-CSRF-Token")

	setStr(&c.Auth.ChallengeTTL, "5m")
	setStr(&c.Auth.LoginPath, "/login")

	setStr(&c.TwoFactor.Issuer, "POS Admin")
	setInt(&c.TwoFactor.Skew, 2)
	setInt(&c.TwoFactor.AttemptsPerMinute, 5)

	setStr(&c.Invitations.TTL, "168h")
	setStr(&c.Invitations.Retention, "720h")
	setStr(&c.Invitations.AcceptBaseURL, "http://localhost:8080/invite")
	setStr(&c.Invitations.SweepInterval, "15m")

	setStr(&c.SMTP.TLS, "auto")
	setInt(&c.SMTP.Port, 587)
	setStr(&c.SMTP.Timeout, "10s")
	setStr(&c.Email.Driver, "log")
	setStr(&c.Email.ProductName, "POS Admin")

	setInt(&c.Security.PasswordPolicy.MinLength, 10)
}

// Validate revisa combinaciones inválidas. En prod exige secretos explícitos.
func (c *Config) Validate() error {
	var errs []error

	for name, v := range map[string]string{
		"server.read_timeout":        c.Server.ReadTimeout,
		"server.write_timeout":       c.Server.WriteTimeout,
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
		"rate.window":                c.Rate.Window,
		"session.ttl":                c.Session.TTL,
		"session.purge_interval":     c.Session.PurgeInterval,
		"auth.challenge_ttl":         c.Auth.ChallengeTTL,
		"invitations.ttl":            c.Invitations.TTL,
		"invitations.retention":      c.Invitations.Retention,
		"invitations.sweep_interval": c.Invitations.SweepInterval,
		"smtp.timeout":               c.SMTP.Timeout,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
		}
	}
	if v := c.Storage.Postgres.ConnMaxLifetime; v != "" {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("storage.postgres.conn_max_lifetime: %w", err))
		}
	}
	for _, o := range c.Rate.Overrides {
		if o.Prefix == "" || o.Limit <= 0 {
			errs = append(errs, fmt.Errorf("rate.overrides: prefix and limit required (%q)", o.Prefix))
		}
		if _, err := time.ParseDuration(o.Window); err != nil {
			errs = append(errs, fmt.Errorf("rate.overrides[%s].window: %w", o.Prefix, err))
		}
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown %q", c.Storage.Driver))
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind: unknown %q", c.Cache.Kind))
	}

	switch c.Email.Driver {
	case "log":
	case "smtp":
		if c.SMTP.Host == "" || c.SMTP.From == "" {
			errs = append(errs, errors.New("smtp.host and smtp.from required for email.driver=smtp"))
		}
	default:
		errs = append(errs, fmt.Errorf("email.driver: unknown %q", c.Email.Driver))
	}

	switch strings.ToLower(c.Session.SameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("session.samesite: unknown %q", c.Session.SameSite))
	}

	if c.Rate.MaxRequests <= 0 {
		errs = append(errs, errors.New("rate.max_requests must be > 0"))
	}
	if c.TwoFactor.Skew < 0 || c.TwoFactor.Skew > 10 {
		errs = append(errs, errors.New("twofactor.skew must be in [0,10]"))
	}

	if c.IsProd() {
		if len(c.CSRF.Secret) < 32 {
			errs = append(errs, errors.New("csrf.secret must have at least 32 chars in prod"))
		}
		if len(c.Auth.ChallengeSecret) < 32 {
			errs = append(errs, errors.New("auth.challenge_secret must have at least 32 chars in prod"))
		}
		if c.Security.SecretBoxMasterKey == "" {
			errs = append(errs, errors.New("security.secretbox_master_key required in prod"))
		}
		if !c.Session.Secure {
			errs = append(errs, errors.New("session.secure must be true in prod"))
		}
		if c.Storage.Driver == "memory" {
			errs = append(errs, errors.New("storage.driver=memory not allowed in prod"))
		}
	}

	return errors.Join(errs...)
}

// IsProd informa si app.env es prod.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Duration parsea una duración ya validada; def si está vacía o es inválida.
func Duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

// applyEnvOverrides: las variables de entorno pisan config.yaml.
func (c *Config) applyEnvOverrides() {
	str := func(key string, dst *string) {
		if v, ok := getEnvStr(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := getEnvInt(key); ok {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := getEnvBool(key); ok {
			*dst = v
		}
	}

	str("APP_ENV", &c.App.Env)
	c.App.Env = strings.ToLower(c.App.Env)
	str("LOG_LEVEL", &c.Log.Level)

	str("SERVER_ADDR", &c.Server.Addr)
	flag("SERVER_TRUST_PROXY", &c.Server.TrustProxy)

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DSN", &c.Storage.DSN)
	num("POSTGRES_MAX_CONNS", &c.Storage.Postgres.MaxConns)
	flag("POSTGRES_MIGRATE", &c.Storage.Postgres.Migrate)

	str("CACHE_KIND", &c.Cache.Kind)
	str("REDIS_ADDR", &c.Cache.Redis.Addr)
	num("REDIS_DB", &c.Cache.Redis.DB)
	str("REDIS_PASSWORD", &c.Cache.Redis.Password)
	str("REDIS_PREFIX", &c.Cache.Redis.Prefix)

	flag("RATE_DISABLED", &c.Rate.Disabled)
	str("RATE_WINDOW", &c.Rate.Window)
	num("RATE_MAX_REQUESTS", &c.Rate.MaxRequests)

	str("SESSION_COOKIE_NAME", &c.Session.CookieName)
	str("SESSION_DOMAIN", &c.Session.Domain)
	flag("SESSION_SECURE", &c.Session.Secure)
	str("SESSION_TTL", &c.Session.TTL)

	str("CSRF_SECRET", &c.CSRF.Secret)
	str("AUTH_CHALLENGE_SECRET", &c.Auth.ChallengeSecret)

	str("TWOFACTOR_ISSUER", &c.TwoFactor.Issuer)

	str("INVITATIONS_TTL", &c.Invitations.TTL)
	str("INVITATIONS_ACCEPT_BASE_URL", &c.Invitations.AcceptBaseURL)

	str("SMTP_HOST", &c.SMTP.Host)
	num("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USERNAME", &c.SMTP.Username)
	str("SMTP_PASSWORD", &c.SMTP.Password)
	str("SMTP_FROM", &c.SMTP.From)
	str("SMTP_TLS", &c.SMTP.TLS)
	str("EMAIL_DRIVER", &c.Email.Driver)

	str("SECRETBOX_MASTER_KEY", &c.Security.SecretBoxMasterKey)
	str("RBAC_MATRIX_PATH", &c.RBAC.MatrixPath)
}

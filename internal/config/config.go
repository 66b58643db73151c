// Package config parses and validates all application configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
// Server exits if any field tagged "required" is missing.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Ownership policy names accepted by OWNERSHIP_POLICY.
const (
	OwnershipPolicyStrict = "strict"
	OwnershipPolicyLegacy = "legacy"
)

// Config holds all application configuration sourced from environment variables.
type Config struct {
	// ── Database ─────────────────────────────────────────────────────────────────
	DatabaseURL          string        `env:"DATABASE_URL,required"`
	DatabaseURLMigrate   string        `env:"DATABASE_URL_MIGRATE"`
	DBMaxConns           int32         `env:"DB_MAX_CONNS"            envDefault:"25"`
	DBMaxConnIdleTime    time.Duration `env:"DB_MAX_CONN_IDLE_TIME"   envDefault:"5m"`
	DBStatementTimeoutMS int           `env:"DB_STATEMENT_TIMEOUT_MS" envDefault:"14000"`
	// DBQueryExecMode: "simple_protocol" (PgBouncer-compatible) or "extended_protocol".
	DBQueryExecMode string `env:"DB_QUERY_EXEC_MODE" envDefault:"simple_protocol"`

	// ── Server ───────────────────────────────────────────────────────────────────
	ListenAddr             string `env:"LISTEN_ADDR"              envDefault:":8080"`
	AppEnv                 string `env:"APP_ENV"                  envDefault:"development"`
	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"30"`
	RegistrationMode       string `env:"REGISTRATION_MODE"        envDefault:"open"`
	// ExternalURL is the frontend base URL used for links in notification emails.
	ExternalURL string `env:"EXTERNAL_URL"`

	// ── Auth — JWT ───────────────────────────────────────────────────────────────
	JWTSecret      string        `env:"JWT_SECRET,required"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`

	// Must be false for http://localhost; must be true in production with TLS.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"false"`

	// ── Auth — Argon2id ──────────────────────────────────────────────────────────
	// Max simultaneous hash operations; each allocates ~19.5 MB.
	Argon2MaxConcurrent int `env:"ARGON2_MAX_CONCURRENT" envDefault:"5"`

	// ── Authorization ────────────────────────────────────────────────────────────
	IdentityCacheSize int           `env:"IDENTITY_CACHE_SIZE" envDefault:"1000"`
	IdentityCacheTTL  time.Duration `env:"IDENTITY_CACHE_TTL"  envDefault:"30s"`
	// OwnershipPolicy selects who may mutate authored content besides its author:
	// "strict" (admin effective role only) or "legacy" (also any caller
	// holding no workspace role).
	OwnershipPolicy string `env:"OWNERSHIP_POLICY" envDefault:"strict"`

	// ── Notifications ────────────────────────────────────────────────────────────
	NotifyEnabled bool   `env:"NOTIFY_ENABLED" envDefault:"true"`
	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom      string `env:"SMTP_FROM" envDefault:"pmtweb@localhost"`
	SMTPUsername  string `env:"SMTP_USERNAME"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	SMTPTLS       bool   `env:"SMTP_TLS"  envDefault:"false"`

	// ── Rate limiting ────────────────────────────────────────────────────────────
	RateLimitEvictTTL time.Duration `env:"RATE_LIMIT_EVICT_TTL" envDefault:"15m"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses and returns Config from environment variables.
// Returns an error if any required field is missing or a value is out of range.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.OwnershipPolicy {
	case OwnershipPolicyStrict, OwnershipPolicyLegacy:
	default:
		return fmt.Errorf("OWNERSHIP_POLICY must be %q or %q, got %q",
			OwnershipPolicyStrict, OwnershipPolicyLegacy, c.OwnershipPolicy)
	}
	if c.IdentityCacheSize <= 0 {
		return fmt.Errorf("IDENTITY_CACHE_SIZE must be positive, got %d", c.IdentityCacheSize)
	}
	if c.IdentityCacheTTL <= 0 {
		return fmt.Errorf("IDENTITY_CACHE_TTL must be positive, got %s", c.IdentityCacheTTL)
	}
	return nil
}

// IsDevelopment reports whether the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// SMTPEnabled reports whether outbound notification email is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

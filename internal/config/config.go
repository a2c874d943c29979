// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTSecret is the shared HMAC signing secret. Required unless a PEM key pair is configured.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is an optional PEM-encoded private key (RSA or ECDSA) or path to file.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTTTL is the absolute token lifetime (e.g. "8h").
	JWTTTL string `mapstructure:"JWT_TTL"`

	// SessionInactivityTimeout is how long a session may sit idle before it expires.
	SessionInactivityTimeout string `mapstructure:"SESSION_INACTIVITY_TIMEOUT"`
	// SessionTimezone is the IANA zone whose calendar day drives the rollover rule ("Local" for the host zone).
	SessionTimezone string `mapstructure:"SESSION_TIMEZONE"`
	// SessionRetention is how long terminal sessions are kept before the purge job deletes them.
	SessionRetention string `mapstructure:"SESSION_RETENTION"`
	// LoginAttemptRetention is how long login attempt rows are kept.
	LoginAttemptRetention string `mapstructure:"LOGIN_ATTEMPT_RETENTION"`
	// ReconcileInterval is the period of the session reconciliation job.
	ReconcileInterval string `mapstructure:"RECONCILE_INTERVAL"`
	// PurgeInterval is the period of the retention purge job.
	PurgeInterval string `mapstructure:"PURGE_INTERVAL"`
	// RunMaintenance runs the reconcile/purge jobs inside the API process when true.
	RunMaintenance bool `mapstructure:"RUN_MAINTENANCE"`

	// FailedLoginWindow is the lookback used when counting recent failures for telemetry.
	FailedLoginWindow string `mapstructure:"FAILED_LOGIN_WINDOW"`
	// FailedLoginWarnThreshold logs a warning once recent failures for a handle reach this count. Never blocks.
	FailedLoginWarnThreshold int `mapstructure:"FAILED_LOGIN_WARN_THRESHOLD"`

	// PasswordMaxAgeDays is the number of days after which a password counts as expired.
	PasswordMaxAgeDays int `mapstructure:"PASSWORD_MAX_AGE_DAYS"`
	// PasswordWarnDays is how many days before expiry the login response carries a warning.
	PasswordWarnDays int `mapstructure:"PASSWORD_WARN_DAYS"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// AuthzPolicyFile is an optional Rego module replacing the built-in authorization policy.
	AuthzPolicyFile string `mapstructure:"AUTHZ_POLICY_FILE"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. Empty disables security events.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventsTopic is the Kafka topic for login and forced-logout events.
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`
	// LokiURL is the Grafana Loki base URL; when set, security events are also pushed there.
	LokiURL string `mapstructure:"LOKI_URL"`

	// TrustedProxies is a comma-separated list of CIDRs or addresses whose forwarding headers are honoured.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "workforce-auth")
	v.SetDefault("JWT_TTL", "8h")
	v.SetDefault("SESSION_INACTIVITY_TIMEOUT", "8h")
	v.SetDefault("SESSION_TIMEZONE", "Local")
	v.SetDefault("SESSION_RETENTION", "720h")       // 30d
	v.SetDefault("LOGIN_ATTEMPT_RETENTION", "2160h") // 90d
	v.SetDefault("RECONCILE_INTERVAL", "1h")
	v.SetDefault("PURGE_INTERVAL", "24h")
	v.SetDefault("RUN_MAINTENANCE", true)
	v.SetDefault("FAILED_LOGIN_WINDOW", "15m")
	v.SetDefault("FAILED_LOGIN_WARN_THRESHOLD", 5)
	v.SetDefault("PASSWORD_MAX_AGE_DAYS", 60)
	v.SetDefault("PASSWORD_WARN_DAYS", 7)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("AUTHZ_POLICY_FILE", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_TOPIC", "workforce-security-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("TRUSTED_PROXIES", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and ranges. Load calls it; tests may call it directly.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	hasKeyPair := c.JWTPrivateKey != "" && c.JWTPublicKey != ""
	if (c.JWTPrivateKey != "") != (c.JWTPublicKey != "") {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set together")
	}
	if !hasKeyPair && len(c.JWTSecret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 bytes when no key pair is configured")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if _, err := c.Location(); err != nil {
		return errors.New("config: SESSION_TIMEZONE is not a valid IANA zone")
	}
	if c.PasswordMaxAgeDays < 0 || c.PasswordWarnDays < 0 {
		return errors.New("config: password age settings must not be negative")
	}
	return nil
}

// UsesKeyPair reports whether tokens are signed with the configured PEM key pair instead of the shared secret.
func (c *Config) UsesKeyPair() bool {
	return c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

// TokenTTL parses JWTTTL. Returns 8h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	return parseDuration(c.JWTTTL, 8*time.Hour)
}

// InactivityTimeout parses SessionInactivityTimeout. Returns 8h if unset or invalid.
func (c *Config) InactivityTimeout() time.Duration {
	return parseDuration(c.SessionInactivityTimeout, 8*time.Hour)
}

// SessionRetentionPeriod parses SessionRetention. Returns 30 days if unset or invalid.
func (c *Config) SessionRetentionPeriod() time.Duration {
	return parseDuration(c.SessionRetention, 30*24*time.Hour)
}

// LoginAttemptRetentionPeriod parses LoginAttemptRetention. Returns 90 days if unset or invalid.
func (c *Config) LoginAttemptRetentionPeriod() time.Duration {
	return parseDuration(c.LoginAttemptRetention, 90*24*time.Hour)
}

// ReconcileEvery parses ReconcileInterval. Returns 1h if unset or invalid.
func (c *Config) ReconcileEvery() time.Duration {
	return parseDuration(c.ReconcileInterval, time.Hour)
}

// PurgeEvery parses PurgeInterval. Returns 24h if unset or invalid.
func (c *Config) PurgeEvery() time.Duration {
	return parseDuration(c.PurgeInterval, 24*time.Hour)
}

// FailedLoginLookback parses FailedLoginWindow. Returns 15m if unset or invalid.
func (c *Config) FailedLoginLookback() time.Duration {
	return parseDuration(c.FailedLoginWindow, 15*time.Minute)
}

// Location resolves SessionTimezone. Empty and "Local" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.SessionTimezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if security events are enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// TrustedProxiesList returns the configured proxy CIDRs or addresses.
func (c *Config) TrustedProxiesList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TrustedProxies)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

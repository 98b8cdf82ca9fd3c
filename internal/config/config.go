// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// identityPathSuffix is appended to the project URL to reach the identity admin API.
const identityPathSuffix = "/auth/v1"

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for the profile store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// SupabaseURL is the project URL of the identity service; VITE_SUPABASE_URL is the fallback name.
	SupabaseURL     string `mapstructure:"SUPABASE_URL"`
	ViteSupabaseURL string `mapstructure:"VITE_SUPABASE_URL"`
	// ServiceRoleKey is the admin key for the identity service; VITE_SUPABASE_SERVICE_ROLE_KEY is the fallback name.
	ServiceRoleKey     string `mapstructure:"SUPABASE_SERVICE_ROLE_KEY"`
	ViteServiceRoleKey string `mapstructure:"VITE_SUPABASE_SERVICE_ROLE_KEY"`

	// IdentityPageSize and IdentityMaxPages bound the search used for conflict repair.
	IdentityPageSize int `mapstructure:"IDENTITY_PAGE_SIZE"`
	IdentityMaxPages int `mapstructure:"IDENTITY_MAX_PAGES"`
	// IdentityMaxAttempts is the number of tries for transient identity service failures; 1 disables retry.
	IdentityMaxAttempts int `mapstructure:"IDENTITY_MAX_ATTEMPTS"`
	// IdentityTimeout is the per-request HTTP timeout (e.g. "15s").
	IdentityTimeout string `mapstructure:"IDENTITY_TIMEOUT"`
	// IdentityPermissionErrors reports not-permitted responses as a distinct permission error.
	IdentityPermissionErrors bool `mapstructure:"IDENTITY_PERMISSION_ERRORS"`

	// NotifyCredentialSetup enables the credential-setup link (and email) after provisioning.
	NotifyCredentialSetup bool `mapstructure:"NOTIFY_CREDENTIAL_SETUP"`
	// CredentialRedirectURL is passed as redirect_to on generated links; optional.
	CredentialRedirectURL string `mapstructure:"CREDENTIAL_REDIRECT_URL"`
	MailtrapAPIURL        string `mapstructure:"MAILTRAP_API_URL"`
	MailtrapAPIKey        string `mapstructure:"MAILTRAP_API_KEY"`
	MailFromEmail         string `mapstructure:"MAIL_FROM_EMAIL"`
	MailFromName          string `mapstructure:"MAIL_FROM_NAME"`

	// InternalTokenHash is the bcrypt hash of the shared secret callers send in x-internal-token.
	InternalTokenHash string `mapstructure:"INTERNAL_TOKEN_HASH"`
	// AccessPolicyFile optionally replaces the built-in Rego access policy.
	AccessPolicyFile string `mapstructure:"ACCESS_POLICY_FILE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses; empty disables Kafka events.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// ProvisioningKafkaTopic is the topic for driver lifecycle events.
	ProvisioningKafkaTopic string `mapstructure:"PROVISIONING_KAFKA_TOPIC"`

	// OTelEndpoint is the OTLP gRPC collector; empty disables export.
	OTelEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// SentryDSN enables error tracking when set.
	SentryDSN string `mapstructure:"SENTRY_DSN"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
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
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("VITE_SUPABASE_URL", "")
	v.SetDefault("SUPABASE_SERVICE_ROLE_KEY", "")
	v.SetDefault("VITE_SUPABASE_SERVICE_ROLE_KEY", "")
	v.SetDefault("IDENTITY_PAGE_SIZE", 1000)
	v.SetDefault("IDENTITY_MAX_PAGES", 10)
	v.SetDefault("IDENTITY_MAX_ATTEMPTS", 1)
	v.SetDefault("IDENTITY_TIMEOUT", "15s")
	v.SetDefault("IDENTITY_PERMISSION_ERRORS", true)
	v.SetDefault("NOTIFY_CREDENTIAL_SETUP", true)
	v.SetDefault("CREDENTIAL_REDIRECT_URL", "")
	v.SetDefault("MAILTRAP_API_URL", "")
	v.SetDefault("MAILTRAP_API_KEY", "")
	v.SetDefault("MAIL_FROM_EMAIL", "")
	v.SetDefault("MAIL_FROM_NAME", "")
	v.SetDefault("INTERNAL_TOKEN_HASH", "")
	v.SetDefault("ACCESS_POLICY_FILE", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("PROVISIONING_KAFKA_TOPIC", "driver-provisioning-events")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "driver-provisioning")
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.IdentityPageSize < 1 || cfg.IdentityPageSize > 1000 {
		return nil, errors.New("config: IDENTITY_PAGE_SIZE must be between 1 and 1000")
	}
	if cfg.IdentityMaxPages < 1 {
		return nil, errors.New("config: IDENTITY_MAX_PAGES must be at least 1")
	}
	if cfg.IdentityMaxAttempts < 1 || cfg.IdentityMaxAttempts > 10 {
		return nil, errors.New("config: IDENTITY_MAX_ATTEMPTS must be between 1 and 10")
	}
	if cfg.MailtrapAPIURL != "" && cfg.MailFromEmail == "" {
		return nil, errors.New("config: MAIL_FROM_EMAIL must be set when MAILTRAP_API_URL is set")
	}

	return &cfg, nil
}

// ValidateServer reports settings the HTTP server cannot start without.
func (c *Config) ValidateServer() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	if c.IdentityBaseURL() == "" {
		return errors.New("config: SUPABASE_URL or VITE_SUPABASE_URL must be set")
	}
	if c.IdentityServiceKey() == "" {
		return errors.New("config: SUPABASE_SERVICE_ROLE_KEY or VITE_SUPABASE_SERVICE_ROLE_KEY must be set")
	}
	return nil
}

// IdentityBaseURL returns the identity admin API root (project URL + /auth/v1), or "" if unset.
func (c *Config) IdentityBaseURL() string {
	u := strings.TrimRight(firstNonEmpty(c.SupabaseURL, c.ViteSupabaseURL), "/")
	if u == "" {
		return ""
	}
	if strings.HasSuffix(u, identityPathSuffix) {
		return u
	}
	return u + identityPathSuffix
}

// IdentityServiceKey returns the service-role key, preferring SUPABASE_SERVICE_ROLE_KEY.
func (c *Config) IdentityServiceKey() string {
	return firstNonEmpty(c.ServiceRoleKey, c.ViteServiceRoleKey)
}

// IdentityRequestTimeout parses IdentityTimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) IdentityRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.IdentityTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka events are enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
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

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

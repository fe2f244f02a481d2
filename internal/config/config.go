// Package config loads the stepauthd settings from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	EmailModePostmark = "postmark"
	EmailModeLog      = "log"

	envProduction = "production"
)

// Config holds the server configuration.
type Config struct {
	// HTTPAddr is the listen address of the JSON API (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for identities. Empty selects the
	// in-memory repository outside production.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr holds challenges and revocations. Empty selects the in-memory
	// stores outside production.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// JWTSecret is the HS256 key; at least 32 bytes.
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTIssuer   string `mapstructure:"JWT_ISSUER"`
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	TokenTTL             time.Duration `mapstructure:"TOKEN_TTL"`
	ChallengeTTL         time.Duration `mapstructure:"CHALLENGE_TTL"`
	ChallengeMaxAttempts int           `mapstructure:"CHALLENGE_MAX_ATTEMPTS"`
	// RevocationFailOpen lets token verification proceed when Redis cannot be read.
	RevocationFailOpen bool `mapstructure:"REVOCATION_FAIL_OPEN"`
	// LoginMaxFailures is the failed-login budget per window. Zero disables
	// throttling. Throttling needs REDIS_ADDR.
	LoginMaxFailures    int           `mapstructure:"LOGIN_MAX_FAILURES"`
	LoginThrottleWindow time.Duration `mapstructure:"LOGIN_THROTTLE_WINDOW"`
	LoginThrottlePerIP  bool          `mapstructure:"LOGIN_THROTTLE_PER_IP"`

	PostmarkBaseURL string `mapstructure:"POSTMARK_BASE_URL"`
	PostmarkToken   string `mapstructure:"POSTMARK_TOKEN"`
	EmailSender     string `mapstructure:"EMAIL_SENDER"`
	// EmailMode is "postmark" or "log". "log" writes codes to the log and is
	// refused when Env is production.
	EmailMode string `mapstructure:"EMAIL_MODE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	AuditLog  bool   `mapstructure:"AUDIT_LOG"`

	Env          string `mapstructure:"APP_ENV"`
	CORSOrigins  string `mapstructure:"CORS_ORIGINS"`
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs allowed
	// to set X-Forwarded-For. Empty trusts none.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Environment variables override .env.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // a missing file is fine
	}

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("TOKEN_TTL", "10m")
	v.SetDefault("CHALLENGE_TTL", "10m")
	v.SetDefault("CHALLENGE_MAX_ATTEMPTS", 5)
	v.SetDefault("REVOCATION_FAIL_OPEN", false)
	v.SetDefault("LOGIN_MAX_FAILURES", 10)
	v.SetDefault("LOGIN_THROTTLE_WINDOW", "15m")
	v.SetDefault("LOGIN_THROTTLE_PER_IP", false)
	v.SetDefault("POSTMARK_BASE_URL", "https://api.postmarkapp.com")
	v.SetDefault("POSTMARK_TOKEN", "")
	v.SetDefault("EMAIL_SENDER", "")
	v.SetDefault("EMAIL_MODE", EmailModePostmark)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("AUDIT_LOG", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("TRUSTED_PROXIES", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}

	switch c.EmailMode {
	case EmailModePostmark:
		if c.PostmarkToken == "" || c.EmailSender == "" {
			return errors.New("config: POSTMARK_TOKEN and EMAIL_SENDER are required when EMAIL_MODE=postmark")
		}
	case EmailModeLog:
		if c.Production() {
			return errors.New("config: EMAIL_MODE=log must not be used when APP_ENV=production")
		}
	default:
		return fmt.Errorf("config: unknown EMAIL_MODE %q", c.EmailMode)
	}

	if c.Production() && (c.DatabaseURL == "" || c.RedisAddr == "") {
		return errors.New("config: DATABASE_URL and REDIS_ADDR are required when APP_ENV=production")
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q", c.LogFormat)
	}

	engineCfg := c.EngineConfig()
	if err := engineCfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, envProduction)
}

// EngineConfig maps the environment onto the engine defaults.
func (c *Config) EngineConfig() stepAuth.Config {
	cfg := stepAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.AccessTTL = c.TokenTTL
	cfg.Challenge.TTL = c.ChallengeTTL
	cfg.Challenge.MaxAttempts = c.ChallengeMaxAttempts
	cfg.Revocation.FailOpenOnRead = c.RevocationFailOpen
	cfg.Throttle.MaxLoginFailures = c.LoginMaxFailures
	cfg.Throttle.Window = c.LoginThrottleWindow
	cfg.Throttle.PerIP = c.LoginThrottlePerIP
	cfg.Audit.Enabled = c.AuditLog
	return cfg
}

// CORSOriginList returns the comma-separated CORS_ORIGINS entries.
func (c *Config) CORSOriginList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.CORSOrigins)
}

// TrustedProxyList returns the comma-separated TRUSTED_PROXIES entries.
func (c *Config) TrustedProxyList() []string {
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

// Logger builds a zap logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger() (*zap.Logger, error) {
	var zapCfg zap.Config
	if c.LogFormat == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapCfg.Level = level

	return zapCfg.Build()
}

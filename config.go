package stepAuth

import (
	"errors"
	"strings"
	"time"
)

// Config is the complete engine configuration. It is copied by
// [Builder.WithConfig] and by [Builder.Build]; later changes to the caller's
// value have no effect on a built engine.
type Config struct {
	JWT        JWTConfig
	Challenge  ChallengeConfig
	Revocation RevocationConfig
	Password   PasswordConfig
	Throttle   ThrottleConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token minting and verification.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte // hs256 secret or ed25519 private key
	PublicKey     []byte // ed25519 only
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
CHALLENGE CONFIG
====================================
*/

// ChallengeConfig configures emailed 2FA challenges.
type ChallengeConfig struct {
	TTL time.Duration
	// MaxAttempts burns a challenge after that many mismatches. Zero disables the cap.
	MaxAttempts  int
	KeyPrefix    string
	EmailSubject string
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig configures the revocation ledger.
type RevocationConfig struct {
	KeyPrefix string
	// MaxTTL caps how long one ledger entry lives. Zero means AccessTTL + Leeway.
	MaxTTL time.Duration
	// FailOpenOnRead lets Verify proceed when the ledger cannot be read.
	FailOpenOnRead bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id parameters.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	// MinPasswordBytes and RequireSymbol are the signup policy. Login never
	// applies them.
	MinPasswordBytes int
	RequireSymbol    bool
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// ThrottleConfig limits failed logins per email, and optionally per client IP,
// in a fixed window. It only takes effect when the engine has a Redis client.
type ThrottleConfig struct {
	// MaxLoginFailures is the number of failed logins allowed per window.
	// Zero disables throttling.
	MaxLoginFailures int
	Window           time.Duration
	PerIP            bool
	KeyPrefix        string
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	defaultAccessTTL      = 10 * time.Minute
	defaultChallengeTTL   = 10 * time.Minute
	defaultMaxAttempts    = 5
	defaultEmailSubject   = "Your sign-in code"
	maxLeeway             = 2 * time.Minute
	minHS256SecretLength  = 32
	defaultChallengeKeyNS = "tfa"
	defaultRevocationNS   = "rvk"
	defaultThrottleNS     = "thr"
)

// DefaultConfig returns a configuration with every field except the signing
// key populated.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     defaultAccessTTL,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
			MaxFutureIAT:  10 * time.Minute,
		},
		Challenge: ChallengeConfig{
			TTL:          defaultChallengeTTL,
			MaxAttempts:  defaultMaxAttempts,
			KeyPrefix:    defaultChallengeKeyNS,
			EmailSubject: defaultEmailSubject,
		},
		Revocation: RevocationConfig{
			KeyPrefix: defaultRevocationNS,
		},
		Password: PasswordConfig{
			Memory:           19456,
			Time:             2,
			Parallelism:      1,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			MinPasswordBytes: 8,
			RequireSymbol:    true,
		},
		Throttle: ThrottleConfig{
			MaxLoginFailures: 10,
			Window:           15 * time.Minute,
			KeyPrefix:        defaultThrottleNS,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// revocationMaxTTL is the effective ledger entry cap.
func (c *Config) revocationMaxTTL() time.Duration {
	if c.Revocation.MaxTTL > 0 {
		return c.Revocation.MaxTTL
	}
	return c.JWT.AccessTTL + c.JWT.Leeway
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < minHS256SecretLength {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > maxLeeway {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return errors.New("JWT MaxFutureIAT must be >= 0")
	}
	if c.JWT.Issuer != "" && strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if len(c.JWT.VerifyKeys) > 0 && c.JWT.KeyID == "" {
		return errors.New("JWT VerifyKeys requires KeyID")
	}

	// Challenge
	if c.Challenge.TTL <= 0 {
		return errors.New("Challenge TTL must be > 0")
	}
	if c.Challenge.MaxAttempts < 0 || c.Challenge.MaxAttempts > 65535 {
		return errors.New("Challenge MaxAttempts must be between 0 and 65535")
	}
	if strings.TrimSpace(c.Challenge.KeyPrefix) == "" {
		return errors.New("Challenge KeyPrefix is required")
	}
	if strings.TrimSpace(c.Challenge.EmailSubject) == "" {
		return errors.New("Challenge EmailSubject is required")
	}

	// Revocation
	if strings.TrimSpace(c.Revocation.KeyPrefix) == "" {
		return errors.New("Revocation KeyPrefix is required")
	}
	if c.Revocation.MaxTTL < 0 {
		return errors.New("Revocation MaxTTL must be >= 0")
	}
	if c.Revocation.KeyPrefix == c.Challenge.KeyPrefix {
		return errors.New("Revocation and Challenge key prefixes must differ")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}
	if c.Password.MinPasswordBytes < 1 {
		return errors.New("Password MinPasswordBytes must be >= 1")
	}
	if c.Password.MaxPasswordBytes > 0 && c.Password.MinPasswordBytes > c.Password.MaxPasswordBytes {
		return errors.New("Password MinPasswordBytes exceeds MaxPasswordBytes")
	}

	// Throttle
	if c.Throttle.MaxLoginFailures < 0 {
		return errors.New("Throttle MaxLoginFailures must be >= 0")
	}
	if c.Throttle.MaxLoginFailures > 0 {
		if c.Throttle.Window <= 0 {
			return errors.New("Throttle Window must be > 0")
		}
		prefix := strings.TrimSpace(c.Throttle.KeyPrefix)
		if prefix == "" {
			return errors.New("Throttle KeyPrefix is required")
		}
		if prefix == c.Challenge.KeyPrefix || prefix == c.Revocation.KeyPrefix {
			return errors.New("Throttle KeyPrefix must differ from the other key prefixes")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

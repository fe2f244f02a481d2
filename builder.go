package stepAuth

import (
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/stepAuth/internal/audit"
	"github.com/MrEthical07/stepAuth/internal/flows"
	"github.com/MrEthical07/stepAuth/internal/rate"
	"github.com/MrEthical07/stepAuth/jwt"
	"github.com/MrEthical07/stepAuth/password"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/MrEthical07/stepAuth"

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	identities IdentityRepository
	hasher     PasswordHasher
	challenges ChallengeStore
	ledger     RevocationLedger
	email      EmailClient

	logger         *zap.Logger
	auditSink      AuditSink
	tracerProvider trace.TracerProvider
	clock          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used for the challenge store and the
// revocation ledger when neither is set explicitly.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithIdentityRepository sets the relational backend for identities.
func (b *Builder) WithIdentityRepository(repo IdentityRepository) *Builder {
	b.identities = repo
	return b
}

// WithPasswordHasher overrides the argon2id hasher built from Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithChallengeStore overrides the Redis challenge store.
func (b *Builder) WithChallengeStore(s ChallengeStore) *Builder {
	b.challenges = s
	return b
}

// WithRevocationLedger overrides the Redis revocation ledger.
func (b *Builder) WithRevocationLedger(l RevocationLedger) *Builder {
	b.ledger = l
	return b
}

// WithEmailClient sets the 2FA code delivery channel.
func (b *Builder) WithEmailClient(c EmailClient) *Builder {
	b.email = c
	return b
}

// WithLogger sets the logger for non-fatal side-effect failures.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in Config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithTracerProvider sets the provider for engine spans. The default is the
// global otel provider.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock replaces time.Now for token timestamps, challenge expiry and
// revocation lifetimes.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Verify latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and collaborators and returns a ready
// engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.identities == nil {
		return nil, errors.New("identity repository required")
	}
	if b.email == nil {
		return nil, errors.New("email client required")
	}

	challenges := b.challenges
	ledger := b.ledger
	if challenges == nil || ledger == nil {
		if b.redis == nil {
			return nil, errors.New("redis client required when challenge store or revocation ledger is not set")
		}
		if challenges == nil {
			challenges = NewRedisChallengeStore(b.redis, cfg.Challenge)
		}
		if ledger == nil {
			ledger = NewRedisRevocationLedger(b.redis, cfg.Revocation)
		}
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	if rl, ok := ledger.(*redisRevocationLedger); ok {
		rl.now = now
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("stepauth")

	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:           cfg.Password.Memory,
			Time:             cfg.Password.Time,
			Parallelism:      cfg.Password.Parallelism,
			SaltLength:       cfg.Password.SaltLength,
			KeyLength:        cfg.Password.KeyLength,
			MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
		})
		if err != nil {
			return nil, err
		}
		hasher = ph
	}

	identities, err := NewIdentityStore(b.identities, hasher)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cloneConfig(cfg).JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config:     cfg,
		identities: identities,
		challenges: challenges,
		ledger:     ledger,
		email:      b.email,
		jwtManager: jm,
		policy: password.Policy{
			MinBytes:      cfg.Password.MinPasswordBytes,
			RequireSymbol: cfg.Password.RequireSymbol,
		},
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
		now:     now,
	}
	if b.redis != nil && cfg.Throttle.MaxLoginFailures > 0 {
		engine.throttle = rate.New(b.redis, rate.Config{
			KeyPrefix:   cfg.Throttle.KeyPrefix,
			MaxFailures: cfg.Throttle.MaxLoginFailures,
			Window:      cfg.Throttle.Window,
			PerIP:       cfg.Throttle.PerIP,
		})
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, func(err error) {
		logger.Error("audit sink panicked", zap.Error(err))
	})
	engine.flows = flows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}

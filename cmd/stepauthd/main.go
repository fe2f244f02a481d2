// stepauthd serves the stepAuth JSON API.
//
// Usage:
//
//	stepauthd [serve]
//	stepauthd migrate up|down
//
// Configuration comes from the environment and an optional .env file; see
// internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/email"
	"github.com/MrEthical07/stepAuth/internal/config"
	"github.com/MrEthical07/stepAuth/internal/httpapi"
	"github.com/MrEthical07/stepAuth/internal/telemetry"
	"github.com/MrEthical07/stepAuth/metrics/export/prometheus"
	"github.com/MrEthical07/stepAuth/store/memory"
	"github.com/MrEthical07/stepAuth/store/postgres"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		err = serve(cfg)
	case "migrate":
		direction := "up"
		if len(args) > 1 {
			direction = args[1]
		}
		err = postgres.Migrate(cfg.DatabaseURL, direction)
	default:
		err = fmt.Errorf("unknown command %q (want serve or migrate)", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "stepauthd:", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	logger, err := cfg.Logger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, shutdownTracing, err := telemetry.Setup(ctx, "stepauthd", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	builder := stepAuth.New().
		WithConfig(cfg.EngineConfig()).
		WithLogger(logger).
		WithTracerProvider(tp)

	if cfg.AuditLog {
		builder = builder.WithAuditSink(stepAuth.NewZapSink(logger.Named("audit")))
	}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		builder = builder.WithIdentityRepository(postgres.NewIdentityRepository(pool))
		logger.Info("identity store: postgres")
	} else {
		builder = builder.WithIdentityRepository(memory.NewIdentityRepository())
		logger.Warn("DATABASE_URL not set, identities are kept in memory")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder = builder.WithRedis(rdb)
		logger.Info("challenge and revocation stores: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		engineCfg := cfg.EngineConfig()
		builder = builder.
			WithChallengeStore(memory.NewChallengeStore(engineCfg.Challenge.MaxAttempts, nil)).
			WithRevocationLedger(memory.NewRevocationLedger(nil))
		logger.Warn("REDIS_ADDR not set, challenges and revocations are kept in memory")
	}

	switch cfg.EmailMode {
	case config.EmailModeLog:
		builder = builder.WithEmailClient(email.NewLogClient(logger))
	default:
		pm, err := email.NewPostmark(email.PostmarkConfig{
			BaseURL: cfg.PostmarkBaseURL,
			Sender:  cfg.EmailSender,
			Token:   cfg.PostmarkToken,
		})
		if err != nil {
			return err
		}
		builder = builder.WithEmailClient(pm)
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("engine ready",
		zap.String("signing_algorithm", report.SigningAlgorithm),
		zap.Duration("access_ttl", report.AccessTTL),
		zap.Duration("challenge_ttl", report.ChallengeTTL),
		zap.Int("challenge_max_attempts", report.ChallengeMaxAttempts),
		zap.Bool("login_throttle", report.LoginThrottleActive),
		zap.Bool("audit", report.AuditEnabled),
	)
	if report.RevocationFailOpen {
		logger.Warn("REVOCATION_FAIL_OPEN is set, revoked tokens are accepted while redis is unreachable")
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.Options{
		Engine:         engine,
		Logger:         logger,
		CORSOrigins:    cfg.CORSOriginList(),
		TrustedProxies: cfg.TrustedProxyList(),
		SecureCookie:   cfg.Production(),
		Metrics:        prometheus.NewPrometheusExporter(engine).Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
	return nil
}

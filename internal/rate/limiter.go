package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned by Check once a counter reaches MaxFailures.
	ErrRateLimited = errors.New("login budget exhausted")
	// ErrRedisUnavailable wraps every Redis failure.
	ErrRedisUnavailable = errors.New("throttle store unavailable")
)

// Config holds limiter tuning parameters.
type Config struct {
	KeyPrefix   string
	MaxFailures int
	Window      time.Duration
	PerIP       bool
}

// Limiter enforces per-email and optional per-IP failed-login budgets using
// Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited when the email or IP has already used up its
// budget. It does not count the attempt.
func (l *Limiter) Check(ctx context.Context, email, ip string) error {
	for _, key := range l.keys(email, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if count >= int64(l.config.MaxFailures) {
			return ErrRateLimited
		}
	}
	return nil
}

// Fail records one failed login for the email and IP.
func (l *Limiter) Fail(ctx context.Context, email, ip string) error {
	for _, key := range l.keys(email, ip) {
		if _, err := l.incrementWithTTL(ctx, key, l.config.Window); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the per-email counter. The per-IP counter only expires with its
// window, so one valid login cannot refill an IP's budget.
func (l *Limiter) Reset(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, emailKey(l.config.KeyPrefix, email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Failures returns the current per-email counter. Missing keys read as zero.
func (l *Limiter) Failures(ctx context.Context, email string) (int, error) {
	count, err := l.redis.Get(ctx, emailKey(l.config.KeyPrefix, email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) keys(email, ip string) []string {
	keys := []string{emailKey(l.config.KeyPrefix, email)}
	if l.config.PerIP && ip != "" {
		keys = append(keys, ipKey(l.config.KeyPrefix, ip))
	}
	return keys
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func emailKey(prefix, email string) string {
	return prefix + ":e:" + email
}

func ipKey(prefix, ip string) string {
	return prefix + ":ip:" + ip
}

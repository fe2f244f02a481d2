package stepAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/stepAuth/internal"
	"github.com/MrEthical07/stepAuth/internal/stores"
	"github.com/redis/go-redis/v9"
)

// NewRedisChallengeStore returns a [ChallengeStore] backed by Redis. Redeem
// runs as one server-side script so compare and delete are atomic.
func NewRedisChallengeStore(client redis.UniversalClient, cfg ChallengeConfig) ChallengeStore {
	return &redisChallengeStore{
		store: stores.NewChallengeStore(client, cfg.KeyPrefix, cfg.MaxAttempts),
	}
}

// NewRedisRevocationLedger returns a [RevocationLedger] backed by Redis. Keys
// carry the SHA-256 fingerprint of the token, never the token itself.
func NewRedisRevocationLedger(client redis.UniversalClient, cfg RevocationConfig) RevocationLedger {
	return &redisRevocationLedger{
		store: stores.NewRevocationStore(client, cfg.KeyPrefix),
		now:   time.Now,
	}
}

type redisChallengeStore struct {
	store *stores.ChallengeStore
}

func (s *redisChallengeStore) Issue(ctx context.Context, c Challenge) error {
	err := s.store.Issue(ctx, c.Email, &stores.ChallengeRecord{
		AttemptID: c.AttemptID,
		Code:      c.Code,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
	})
	return mapChallengeError(err)
}

func (s *redisChallengeStore) Redeem(ctx context.Context, email, attemptID, code string) error {
	return mapChallengeError(s.store.Redeem(ctx, email, attemptID, code))
}

func (s *redisChallengeStore) Peek(ctx context.Context, email string) (Challenge, error) {
	record, err := s.store.Peek(ctx, email)
	if err != nil {
		return Challenge{}, mapChallengeError(err)
	}
	return Challenge{
		Email:     email,
		AttemptID: record.AttemptID,
		Code:      record.Code,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
		Attempts:  int(record.Attempts),
	}, nil
}

func (s *redisChallengeStore) Discard(ctx context.Context, email string) error {
	return mapChallengeError(s.store.Discard(ctx, email))
}

func mapChallengeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, stores.ErrChallengeNotFound):
		return ErrChallengeNotFound
	case errors.Is(err, stores.ErrChallengeMismatch):
		return ErrMismatchIdentification
	case errors.Is(err, stores.ErrChallengeBurned):
		return fmt.Errorf("%w: attempts exhausted", ErrMismatchIdentification)
	default:
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
}

type redisRevocationLedger struct {
	store *stores.RevocationStore
	now   func() time.Time
}

func (l *redisRevocationLedger) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	if err := l.store.Revoke(ctx, internal.Fingerprint(token), expiresAt.Sub(l.now())); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return nil
}

func (l *redisRevocationLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := l.store.IsRevoked(ctx, internal.Fingerprint(token))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return revoked, nil
}

// TokenFingerprint is the hex SHA-256 of a raw token, the key revocation
// ledgers store.
func TokenFingerprint(token string) string {
	return internal.Fingerprint(token)
}

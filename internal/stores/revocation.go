package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRevocationPrefix = "rvk"

var ErrRevocationBackend = errors.New("revocation backend unavailable")

// RevocationStore marks token fingerprints as revoked until their natural
// expiry. Entries vanish through the Redis TTL; nothing is ever swept.
type RevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRevocationStore(redisClient redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}
	return &RevocationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RevocationStore) key(fingerprint string) string {
	return s.prefix + ":" + fingerprint
}

// Revoke records fingerprint for ttl. A non-positive ttl writes nothing.
func (s *RevocationStore) Revoke(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := s.redis.Set(ctx, s.key(fingerprint), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationBackend, err)
	}
	return nil
}

// IsRevoked reports whether fingerprint has a live entry.
func (s *RevocationStore) IsRevoked(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(fingerprint)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationBackend, err)
	}
	return n > 0, nil
}

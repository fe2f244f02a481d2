package memory

import (
	"context"
	"sync"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
)

// RevocationLedger is an in-memory [stepAuth.RevocationLedger] keyed by token
// fingerprint.
type RevocationLedger struct {
	mu   sync.RWMutex
	data map[string]time.Time
	now  func() time.Time
}

// NewRevocationLedger returns an empty ledger. A nil now uses time.Now.
func NewRevocationLedger(now func() time.Time) *RevocationLedger {
	if now == nil {
		now = time.Now
	}
	return &RevocationLedger{
		data: make(map[string]time.Time),
		now:  now,
	}
}

func (l *RevocationLedger) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	if !expiresAt.After(l.now()) {
		return nil
	}
	key := stepAuth.TokenFingerprint(token)

	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.data[key]; !ok || expiresAt.After(cur) {
		l.data[key] = expiresAt
	}
	return nil
}

func (l *RevocationLedger) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := stepAuth.TokenFingerprint(token)

	l.mu.RLock()
	expiresAt, ok := l.data[key]
	l.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !l.now().Before(expiresAt) {
		l.mu.Lock()
		if cur, still := l.data[key]; still && !l.now().Before(cur) {
			delete(l.data, key)
		}
		l.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Len returns the number of entries, expired ones included.
func (l *RevocationLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.data)
}

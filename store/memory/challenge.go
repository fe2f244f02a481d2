package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
)

// ChallengeStore is an in-memory [stepAuth.ChallengeStore].
type ChallengeStore struct {
	mu          sync.RWMutex
	data        map[string]stepAuth.Challenge
	maxAttempts int
	now         func() time.Time
}

// NewChallengeStore returns an empty store. A mismatch that brings a
// challenge to maxAttempts deletes it; zero disables the cap. A nil now uses
// time.Now.
func NewChallengeStore(maxAttempts int, now func() time.Time) *ChallengeStore {
	if now == nil {
		now = time.Now
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &ChallengeStore{
		data:        make(map[string]stepAuth.Challenge),
		maxAttempts: maxAttempts,
		now:         now,
	}
}

func (s *ChallengeStore) Issue(ctx context.Context, c stepAuth.Challenge) error {
	if !c.ExpiresAt.After(c.IssuedAt) {
		return fmt.Errorf("%w: challenge ttl must be positive", stepAuth.ErrUnexpected)
	}
	c.Attempts = 0

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[c.Email] = c
	return nil
}

func (s *ChallengeStore) Redeem(ctx context.Context, email, attemptID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[email]
	if !ok {
		return stepAuth.ErrChallengeNotFound
	}
	if !s.now().Before(c.ExpiresAt) {
		delete(s.data, email)
		return stepAuth.ErrChallengeNotFound
	}

	idMatch := subtle.ConstantTimeCompare([]byte(c.AttemptID), []byte(attemptID))
	codeMatch := subtle.ConstantTimeCompare([]byte(c.Code), []byte(code))
	if idMatch&codeMatch == 1 {
		delete(s.data, email)
		return nil
	}

	c.Attempts++
	if s.maxAttempts > 0 && c.Attempts >= s.maxAttempts {
		delete(s.data, email)
		return fmt.Errorf("%w: attempts exhausted", stepAuth.ErrMismatchIdentification)
	}
	s.data[email] = c
	return stepAuth.ErrMismatchIdentification
}

func (s *ChallengeStore) Peek(ctx context.Context, email string) (stepAuth.Challenge, error) {
	s.mu.RLock()
	c, ok := s.data[email]
	s.mu.RUnlock()
	if !ok {
		return stepAuth.Challenge{}, stepAuth.ErrChallengeNotFound
	}
	if !s.now().Before(c.ExpiresAt) {
		s.mu.Lock()
		if cur, still := s.data[email]; still && cur.AttemptID == c.AttemptID {
			delete(s.data, email)
		}
		s.mu.Unlock()
		return stepAuth.Challenge{}, stepAuth.ErrChallengeNotFound
	}
	return c, nil
}

func (s *ChallengeStore) Discard(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, email)
	return nil
}

package memory

import (
	"context"
	"sync"

	stepAuth "github.com/MrEthical07/stepAuth"
)

// IdentityRepository is an in-memory [stepAuth.IdentityRepository].
type IdentityRepository struct {
	mu   sync.RWMutex
	data map[string]stepAuth.Identity
}

// NewIdentityRepository returns an empty repository.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{data: make(map[string]stepAuth.Identity)}
}

func (r *IdentityRepository) Insert(ctx context.Context, identity stepAuth.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[identity.Email]; exists {
		return stepAuth.ErrAlreadyExists
	}
	r.data[identity.Email] = identity
	return nil
}

func (r *IdentityRepository) SelectByEmail(ctx context.Context, email string) (stepAuth.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, exists := r.data[email]
	if !exists {
		return stepAuth.Identity{}, stepAuth.ErrNotFound
	}
	return identity, nil
}

func (r *IdentityRepository) DeleteByEmail(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[email]; !exists {
		return stepAuth.ErrNotFound
	}
	delete(r.data, email)
	return nil
}

// Len returns the number of stored identities.
func (r *IdentityRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

package stepAuth

import (
	"context"
	"errors"
	"fmt"
)

// dummySecret feeds the fallback digest used when a hasher cannot provide one.
const dummySecret = "stepauth-dummy-secret!"

// IdentityStore owns identities and their password digests on top of an
// [IdentityRepository]. Digests never leave it except inside the [Identity]
// returned to the engine.
type IdentityStore struct {
	repo   IdentityRepository
	hasher PasswordHasher
	dummy  string
}

// NewIdentityStore binds repo and hasher. The hasher is asked once for a
// digest used to equalize the cost of lookups for unknown emails.
func NewIdentityStore(repo IdentityRepository, hasher PasswordHasher) (*IdentityStore, error) {
	if repo == nil {
		return nil, errors.New("identity repository required")
	}
	if hasher == nil {
		return nil, errors.New("password hasher required")
	}

	var dummy string
	if d, ok := hasher.(interface{ DummyDigest() string }); ok {
		dummy = d.DummyDigest()
	}
	if dummy == "" {
		digest, err := hasher.Hash(dummySecret)
		if err != nil {
			return nil, fmt.Errorf("dummy digest: %w", err)
		}
		dummy = digest
	}

	return &IdentityStore{repo: repo, hasher: hasher, dummy: dummy}, nil
}

// Add hashes secret and inserts a new identity.
func (s *IdentityStore) Add(ctx context.Context, email, secret string, requiresTwoFactor bool) error {
	digest, err := s.hasher.Hash(secret)
	if err != nil {
		return fmt.Errorf("%w: hash: %v", ErrUnexpected, err)
	}
	err = s.repo.Insert(ctx, Identity{
		Email:             email,
		PasswordDigest:    digest,
		RequiresTwoFactor: requiresTwoFactor,
	})
	return classifyRepoError(err, ErrAlreadyExists)
}

// Get returns the identity for email or [ErrNotFound].
func (s *IdentityStore) Get(ctx context.Context, email string) (Identity, error) {
	identity, err := s.repo.SelectByEmail(ctx, email)
	if err != nil {
		return Identity{}, classifyRepoError(err, ErrNotFound)
	}
	return identity, nil
}

// Validate checks candidate against the stored digest. Unknown email and
// wrong secret both return [ErrInvalidCredentials] after one hash
// verification each.
func (s *IdentityStore) Validate(ctx context.Context, email, candidate string) (Identity, error) {
	identity, err := s.Get(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_, _ = s.hasher.Verify(candidate, s.dummy)
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}

	ok, err := s.hasher.Verify(candidate, identity.PasswordDigest)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: verify digest: %v", ErrUnexpected, err)
	}
	if !ok {
		return Identity{}, ErrInvalidCredentials
	}
	return identity, nil
}

// Delete removes the identity for email or returns [ErrNotFound].
func (s *IdentityStore) Delete(ctx context.Context, email string) error {
	return classifyRepoError(s.repo.DeleteByEmail(ctx, email), ErrNotFound)
}

// classifyRepoError passes through nil, the expected kind and ErrUnexpected,
// and wraps anything else as ErrUnexpected.
func classifyRepoError(err, expected error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, expected), errors.Is(err, ErrUnexpected):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
}

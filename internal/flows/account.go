package flows

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// AccountMetrics carries metric IDs used by signup and delete flows.
type AccountMetrics struct {
	Created   int
	Duplicate int
	Deleted   int
}

// AccountEvents carries audit event names used by signup and delete flows.
type AccountEvents struct {
	Created   string
	Duplicate string
	Failure   string
	Deleted   string
}

// AccountDeps captures signup and account deletion dependencies.
type AccountDeps struct {
	NormalizeEmail   func(string) (string, error)
	CheckPassword    func(string) error
	AddIdentity      func(ctx context.Context, email, secret string, requiresTwoFactor bool) error
	DeleteIdentity   func(ctx context.Context, email string) error
	DiscardChallenge func(ctx context.Context, email string) error

	Hooks   Hooks
	Metrics AccountMetrics
	Events  AccountEvents
	Errors  Errors
}

func (deps *AccountDeps) ready() bool {
	deps.Hooks.fill()
	return deps.NormalizeEmail != nil &&
		deps.CheckPassword != nil &&
		deps.AddIdentity != nil &&
		deps.DeleteIdentity != nil
}

// RunSignup registers a new identity.
func RunSignup(ctx context.Context, email, secret string, requiresTwoFactor bool, deps AccountDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	h := deps.Hooks

	normalized, err := deps.NormalizeEmail(email)
	if err != nil {
		return fmt.Errorf("%w: email", deps.Errors.InvalidInput)
	}
	if err := deps.CheckPassword(secret); err != nil {
		h.EmitAudit(ctx, deps.Events.Failure, false, normalized, deps.Errors.InvalidInput, reason("password_policy"))
		return fmt.Errorf("%w: password: %v", deps.Errors.InvalidInput, err)
	}

	if err := deps.AddIdentity(ctx, normalized, secret, requiresTwoFactor); err != nil {
		if errors.Is(err, deps.Errors.AlreadyExists) {
			h.MetricInc(deps.Metrics.Duplicate)
			h.EmitAudit(ctx, deps.Events.Duplicate, false, normalized, err, nil)
			return err
		}
		wrapped := unexpected(deps.Errors, err)
		h.EmitAudit(ctx, deps.Events.Failure, false, normalized, wrapped, reason("identity_backend"))
		return wrapped
	}

	h.MetricInc(deps.Metrics.Created)
	h.EmitAudit(ctx, deps.Events.Created, true, normalized, nil, func() map[string]string {
		if requiresTwoFactor {
			return map[string]string{"two_factor": "true"}
		}
		return map[string]string{"two_factor": "false"}
	})
	return nil
}

// RunDeleteAccount removes an identity and, best-effort, its pending challenge.
func RunDeleteAccount(ctx context.Context, email string, deps AccountDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	h := deps.Hooks

	normalized, err := deps.NormalizeEmail(email)
	if err != nil {
		return fmt.Errorf("%w: email", deps.Errors.InvalidInput)
	}

	if err := deps.DeleteIdentity(ctx, normalized); err != nil {
		if errors.Is(err, deps.Errors.NotFound) {
			return err
		}
		return unexpected(deps.Errors, err)
	}

	if deps.DiscardChallenge != nil {
		if err := deps.DiscardChallenge(ctx, normalized); err != nil {
			h.Warn("pending challenge cleanup failed", zap.String("subject", normalized), zap.Error(err))
		}
	}

	h.MetricInc(deps.Metrics.Deleted)
	h.EmitAudit(ctx, deps.Events.Deleted, true, normalized, nil, nil)
	return nil
}

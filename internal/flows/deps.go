package flows

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Login   LoginDeps
	Token   TokenDeps
	Account AccountDeps
}

// Errors carries host-level sentinel errors so flows can classify and return
// them without importing the root package.
type Errors struct {
	EngineNotReady         error
	InvalidInput           error
	InvalidCredentials     error
	ChallengeNotFound      error
	MismatchIdentification error
	InvalidToken           error
	MissingToken           error
	Unauthorized           error
	AlreadyExists          error
	NotFound               error
	RateLimited            error
	Unexpected             error
}

// IdentityRecord is the flow-local view of a validated identity.
type IdentityRecord struct {
	Email             string
	RequiresTwoFactor bool
}

// ChallengeRecord is the flow-local challenge shape handed to the store.
type ChallengeRecord struct {
	Email     string
	AttemptID string
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenRecord is a minted or verified token with its claims.
type TokenRecord struct {
	Token     string
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Hooks carries the observability callbacks shared by all flows. Nil
// callbacks are replaced with no-ops.
type Hooks struct {
	MetricInc     func(int)
	MetricObserve func(int, time.Duration)
	EmitAudit     func(ctx context.Context, event string, success bool, subject string, err error, meta func() map[string]string)
	Warn          func(string, ...zap.Field)
}

func (h *Hooks) fill() {
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.MetricObserve == nil {
		h.MetricObserve = func(int, time.Duration) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, ...zap.Field) {}
	}
}

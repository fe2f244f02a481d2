package flows

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TokenMetrics carries metric IDs used by verify and logout flows.
type TokenMetrics struct {
	VerifySuccess       int
	VerifyFailure       int
	VerifyRevoked       int
	VerifyLatency       int
	Logout              int
	RevocationFailure   int
	RevocationReadError int
}

// TokenEvents carries audit event names used by verify and logout flows.
type TokenEvents struct {
	TokenRejected     string
	Logout            string
	RevocationFailure string
}

// TokenDeps captures verify and logout dependencies.
type TokenDeps struct {
	// FailOpenOnRead lets Verify continue to signature checks when the
	// revocation ledger cannot be read. The default fails closed.
	FailOpenOnRead bool
	// Leeway is added to a token's exp when sizing its revocation entry,
	// because the token keeps verifying until exp+leeway.
	Leeway time.Duration
	// MaxRevocationTTL caps entry lifetime and is used when exp cannot be read.
	MaxRevocationTTL time.Duration

	Now        func() time.Time
	IsRevoked  func(ctx context.Context, token string) (bool, error)
	Revoke     func(ctx context.Context, token string, expiresAt time.Time) error
	Verify     func(token string) (TokenRecord, error)
	PeekExpiry func(token string) (time.Time, bool)
	TokenID    func(token string) string

	Hooks   Hooks
	Metrics TokenMetrics
	Events  TokenEvents
	Errors  Errors
}

func (deps *TokenDeps) ready() bool {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TokenID == nil {
		deps.TokenID = func(string) string { return "" }
	}
	deps.Hooks.fill()
	return deps.IsRevoked != nil &&
		deps.Revoke != nil &&
		deps.Verify != nil &&
		deps.PeekExpiry != nil &&
		deps.MaxRevocationTTL > 0
}

// RunVerify checks the revocation ledger first and the signature second.
func RunVerify(ctx context.Context, token string, deps TokenDeps) (*TokenRecord, error) {
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	if token == "" {
		return nil, deps.Errors.MissingToken
	}
	h := deps.Hooks

	start := deps.Now()
	defer func() {
		h.MetricObserve(deps.Metrics.VerifyLatency, deps.Now().Sub(start))
	}()

	revoked, err := deps.IsRevoked(ctx, token)
	if err != nil {
		h.MetricInc(deps.Metrics.RevocationReadError)
		if !deps.FailOpenOnRead {
			h.MetricInc(deps.Metrics.VerifyFailure)
			return nil, unexpected(deps.Errors, err)
		}
		h.Warn("revocation ledger read failed, continuing", zap.String("token_id", deps.TokenID(token)), zap.Error(err))
	}
	if revoked {
		h.MetricInc(deps.Metrics.VerifyRevoked)
		h.EmitAudit(ctx, deps.Events.TokenRejected, false, "", deps.Errors.Unauthorized, func() map[string]string {
			return map[string]string{"token_id": deps.TokenID(token), "reason": "revoked"}
		})
		return nil, deps.Errors.Unauthorized
	}

	claims, err := deps.Verify(token)
	if err != nil {
		h.MetricInc(deps.Metrics.VerifyFailure)
		return nil, deps.Errors.InvalidToken
	}

	h.MetricInc(deps.Metrics.VerifySuccess)
	claims.Token = token
	return &claims, nil
}

// RunLogout revokes token and then reports whether it was valid.
//
// The revocation write happens before validity is judged and is best-effort:
// a ledger failure is logged, counted and audited but never fails the logout.
func RunLogout(ctx context.Context, token string, deps TokenDeps) error {
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}
	if token == "" {
		return deps.Errors.MissingToken
	}
	h := deps.Hooks

	if err := deps.Revoke(ctx, token, revocationExpiry(token, deps)); err != nil {
		h.MetricInc(deps.Metrics.RevocationFailure)
		h.Warn("token revocation write failed", zap.String("token_id", deps.TokenID(token)), zap.Error(err))
		h.EmitAudit(ctx, deps.Events.RevocationFailure, false, "", unexpected(deps.Errors, err), func() map[string]string {
			return map[string]string{"token_id": deps.TokenID(token)}
		})
	}

	claims, err := deps.Verify(token)
	if err != nil {
		h.EmitAudit(ctx, deps.Events.Logout, false, "", deps.Errors.InvalidToken, func() map[string]string {
			return map[string]string{"token_id": deps.TokenID(token)}
		})
		return deps.Errors.InvalidToken
	}

	h.MetricInc(deps.Metrics.Logout)
	h.EmitAudit(ctx, deps.Events.Logout, true, claims.Subject, nil, func() map[string]string {
		return map[string]string{"token_id": deps.TokenID(token)}
	})
	return nil
}

// revocationExpiry is the instant the ledger entry may lapse: the token's own
// exp plus leeway, capped at now+MaxRevocationTTL. An unreadable exp uses the cap.
func revocationExpiry(token string, deps TokenDeps) time.Time {
	now := deps.Now()
	limit := now.Add(deps.MaxRevocationTTL)

	exp, ok := deps.PeekExpiry(token)
	if !ok {
		return limit
	}
	exp = exp.Add(deps.Leeway)
	if exp.After(limit) {
		return limit
	}
	return exp
}

package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Stage is the state a login attempt reached.
type Stage uint8

const (
	StageChallengePending Stage = iota + 1
	StageAuthenticated
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Stage     Stage
	Token     TokenRecord
	AttemptID string
}

// LoginMetrics carries metric IDs needed by login and redeem flows.
type LoginMetrics struct {
	LoginSuccess        int
	LoginFailure        int
	ChallengeIssued     int
	NotificationFailure int
	RedeemSuccess       int
	RedeemFailure       int
	TokenMinted         int
	Throttled           int
}

// LoginEvents carries audit event names used by login and redeem flows.
type LoginEvents struct {
	LoginSuccess        string
	LoginFailure        string
	MFARequired         string
	MFASuccess          string
	MFAFailure          string
	NotificationFailure string
}

// LoginDeps captures login and 2FA redeem dependencies.
type LoginDeps struct {
	ChallengeTTL time.Duration
	EmailSubject string

	Now            func() time.Time
	NormalizeEmail func(string) (string, error)
	ParseAttemptID func(string) (string, error)
	ValidCode      func(string) bool

	// ValidateCredentials returns Errors.InvalidCredentials for an unknown
	// identity or a wrong secret, and an Errors.Unexpected wrap on backend failure.
	ValidateCredentials func(ctx context.Context, email, secret string) (IdentityRecord, error)

	NewAttemptID    func() (string, error)
	NewCode         func() (string, error)
	IssueChallenge  func(context.Context, ChallengeRecord) error
	RedeemChallenge func(ctx context.Context, email, attemptID, code string) error
	RenderEmail     func(code string, ttl time.Duration) string
	SendEmail       func(ctx context.Context, recipient, subject, body string) error
	Mint            func(subject string) (TokenRecord, error)

	// Throttle is optional. CheckThrottle returns Errors.RateLimited once the
	// failed-login budget for the email is spent.
	CheckThrottle func(ctx context.Context, email string) error
	RecordFailure func(ctx context.Context, email string) error
	ResetThrottle func(ctx context.Context, email string) error

	Hooks   Hooks
	Metrics LoginMetrics
	Events  LoginEvents
	Errors  Errors
}

func (deps *LoginDeps) ready() bool {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Hooks.fill()
	return deps.NormalizeEmail != nil &&
		deps.ParseAttemptID != nil &&
		deps.ValidCode != nil &&
		deps.ValidateCredentials != nil &&
		deps.NewAttemptID != nil &&
		deps.NewCode != nil &&
		deps.IssueChallenge != nil &&
		deps.RedeemChallenge != nil &&
		deps.RenderEmail != nil &&
		deps.SendEmail != nil &&
		deps.Mint != nil &&
		deps.ChallengeTTL > 0
}

// RunLogin checks credentials and either mints a token or issues and emails a
// 2FA challenge. The code itself never appears in the result.
func RunLogin(ctx context.Context, email, secret string, deps LoginDeps) (*LoginResult, error) {
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	h := deps.Hooks

	normalized, err := deps.NormalizeEmail(email)
	if err != nil || secret == "" {
		h.MetricInc(deps.Metrics.LoginFailure)
		h.EmitAudit(ctx, deps.Events.LoginFailure, false, normalized, deps.Errors.InvalidCredentials, reason("malformed_request"))
		return nil, deps.Errors.InvalidCredentials
	}

	if deps.CheckThrottle != nil {
		if err := deps.CheckThrottle(ctx, normalized); err != nil {
			h.MetricInc(deps.Metrics.LoginFailure)
			if errors.Is(err, deps.Errors.RateLimited) {
				h.MetricInc(deps.Metrics.Throttled)
				h.EmitAudit(ctx, deps.Events.LoginFailure, false, normalized, err, reason("throttled"))
				return nil, deps.Errors.RateLimited
			}
			wrapped := unexpected(deps.Errors, err)
			h.EmitAudit(ctx, deps.Events.LoginFailure, false, normalized, wrapped, reason("throttle_backend"))
			return nil, wrapped
		}
	}

	identity, err := deps.ValidateCredentials(ctx, normalized, secret)
	if err != nil {
		h.MetricInc(deps.Metrics.LoginFailure)
		if errors.Is(err, deps.Errors.Unexpected) {
			h.EmitAudit(ctx, deps.Events.LoginFailure, false, normalized, err, reason("identity_backend"))
			return nil, err
		}
		if deps.RecordFailure != nil {
			if ferr := deps.RecordFailure(ctx, normalized); ferr != nil {
				h.Warn("failed login not counted", zap.String("subject", normalized), zap.Error(ferr))
			}
		}
		h.EmitAudit(ctx, deps.Events.LoginFailure, false, normalized, deps.Errors.InvalidCredentials, reason("credentials"))
		return nil, deps.Errors.InvalidCredentials
	}
	if deps.ResetThrottle != nil {
		if rerr := deps.ResetThrottle(ctx, identity.Email); rerr != nil {
			h.Warn("login throttle reset failed", zap.String("subject", identity.Email), zap.Error(rerr))
		}
	}

	if !identity.RequiresTwoFactor {
		token, err := deps.Mint(identity.Email)
		if err != nil {
			h.MetricInc(deps.Metrics.LoginFailure)
			wrapped := unexpected(deps.Errors, err)
			h.EmitAudit(ctx, deps.Events.LoginFailure, false, identity.Email, wrapped, reason("mint"))
			return nil, wrapped
		}
		h.MetricInc(deps.Metrics.TokenMinted)
		h.MetricInc(deps.Metrics.LoginSuccess)
		h.EmitAudit(ctx, deps.Events.LoginSuccess, true, identity.Email, nil, nil)
		return &LoginResult{Stage: StageAuthenticated, Token: token}, nil
	}

	attemptID, err := deps.NewAttemptID()
	if err != nil {
		return nil, unexpected(deps.Errors, err)
	}
	code, err := deps.NewCode()
	if err != nil {
		return nil, unexpected(deps.Errors, err)
	}

	issuedAt := deps.Now()
	challenge := ChallengeRecord{
		Email:     identity.Email,
		AttemptID: attemptID,
		Code:      code,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(deps.ChallengeTTL),
	}
	if err := deps.IssueChallenge(ctx, challenge); err != nil {
		h.MetricInc(deps.Metrics.LoginFailure)
		wrapped := unexpected(deps.Errors, err)
		h.EmitAudit(ctx, deps.Events.LoginFailure, false, identity.Email, wrapped, reason("challenge_backend"))
		return nil, wrapped
	}
	h.MetricInc(deps.Metrics.ChallengeIssued)

	// The stored challenge is left to expire if delivery fails.
	body := deps.RenderEmail(code, deps.ChallengeTTL)
	if err := deps.SendEmail(ctx, identity.Email, deps.EmailSubject, body); err != nil {
		h.MetricInc(deps.Metrics.NotificationFailure)
		h.Warn("2fa code delivery failed", zap.String("subject", identity.Email), zap.Error(err))
		wrapped := unexpected(deps.Errors, err)
		h.EmitAudit(ctx, deps.Events.NotificationFailure, false, identity.Email, wrapped, func() map[string]string {
			return map[string]string{"attempt_id": attemptID}
		})
		return nil, wrapped
	}

	h.EmitAudit(ctx, deps.Events.MFARequired, true, identity.Email, nil, func() map[string]string {
		return map[string]string{"attempt_id": attemptID}
	})
	return &LoginResult{Stage: StageChallengePending, AttemptID: attemptID}, nil
}

// RunRedeem consumes the pending challenge for email and mints a token.
//
// An absent or expired challenge and a challenge-store failure are both
// reported as Errors.InvalidCredentials so callers cannot probe for challenge
// existence.
func RunRedeem(ctx context.Context, email, attemptID, code string, deps LoginDeps) (*LoginResult, error) {
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}
	h := deps.Hooks

	normalized, err := deps.NormalizeEmail(email)
	if err != nil {
		h.MetricInc(deps.Metrics.RedeemFailure)
		return nil, fmt.Errorf("%w: email", deps.Errors.InvalidInput)
	}
	canonicalID, err := deps.ParseAttemptID(attemptID)
	if err != nil {
		h.MetricInc(deps.Metrics.RedeemFailure)
		return nil, fmt.Errorf("%w: attempt id", deps.Errors.InvalidInput)
	}
	if !deps.ValidCode(code) {
		h.MetricInc(deps.Metrics.RedeemFailure)
		return nil, fmt.Errorf("%w: 2fa code", deps.Errors.InvalidInput)
	}

	attemptMeta := func() map[string]string {
		return map[string]string{"attempt_id": canonicalID}
	}

	err = deps.RedeemChallenge(ctx, normalized, canonicalID, code)
	switch {
	case err == nil:
	case errors.Is(err, deps.Errors.MismatchIdentification):
		h.MetricInc(deps.Metrics.RedeemFailure)
		h.EmitAudit(ctx, deps.Events.MFAFailure, false, normalized, err, attemptMeta)
		return nil, err
	case errors.Is(err, deps.Errors.ChallengeNotFound):
		h.MetricInc(deps.Metrics.RedeemFailure)
		rejected := fmt.Errorf("%w: %w", deps.Errors.InvalidCredentials, err)
		h.EmitAudit(ctx, deps.Events.MFAFailure, false, normalized, rejected, attemptMeta)
		return nil, rejected
	default:
		h.MetricInc(deps.Metrics.RedeemFailure)
		h.Warn("2fa challenge redeem failed", zap.String("subject", normalized), zap.Error(err))
		rejected := fmt.Errorf("%w: challenge store: %v", deps.Errors.InvalidCredentials, err)
		h.EmitAudit(ctx, deps.Events.MFAFailure, false, normalized, rejected, attemptMeta)
		return nil, rejected
	}

	token, err := deps.Mint(normalized)
	if err != nil {
		h.MetricInc(deps.Metrics.RedeemFailure)
		wrapped := unexpected(deps.Errors, err)
		h.EmitAudit(ctx, deps.Events.MFAFailure, false, normalized, wrapped, attemptMeta)
		return nil, wrapped
	}

	h.MetricInc(deps.Metrics.TokenMinted)
	h.MetricInc(deps.Metrics.RedeemSuccess)
	h.EmitAudit(ctx, deps.Events.MFASuccess, true, normalized, nil, attemptMeta)
	return &LoginResult{Stage: StageAuthenticated, Token: token}, nil
}

func reason(r string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"reason": r}
	}
}

func unexpected(errs Errors, err error) error {
	if errors.Is(err, errs.Unexpected) {
		return err
	}
	return fmt.Errorf("%w: %v", errs.Unexpected, err)
}

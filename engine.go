package stepAuth

import (
	"context"
	"time"

	internalaudit "github.com/MrEthical07/stepAuth/internal/audit"
	"github.com/MrEthical07/stepAuth/internal/flows"
	"github.com/MrEthical07/stepAuth/internal/rate"
	"github.com/MrEthical07/stepAuth/jwt"
	"github.com/MrEthical07/stepAuth/password"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Engine runs the login state machine over its stores. It is immutable after
// [Builder.Build] and safe for concurrent use.
type Engine struct {
	config     Config
	identities *IdentityStore
	challenges ChallengeStore
	ledger     RevocationLedger
	throttle   *rate.Limiter
	email      EmailClient
	jwtManager *jwt.Manager
	policy     password.Policy
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
	flows      flows.Service
}

// Close drains the audit dispatcher. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AccessTTL is the lifetime of minted tokens.
func (e *Engine) AccessTTL() time.Duration {
	if e == nil {
		return 0
	}
	return e.config.JWT.AccessTTL
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// Login checks email and secret. An identity without 2FA reaches
// [StateAuthenticated] with a token. An identity with 2FA gets a fresh code
// by email and the result is [StateChallengePending] with the attempt id.
//
// Unknown email, wrong secret and malformed input all return
// [ErrInvalidCredentials]. Store, email and signing failures return
// [ErrUnexpected].
func (e *Engine) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login")
	res, err := e.flows.Login(ctx, email, secret)
	e.endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return loginResultFromFlow(res), nil
}

// Redeem consumes the pending challenge for email when attemptID and code
// both match, and mints a token.
//
// A missing or expired challenge returns [ErrInvalidCredentials] wrapping
// [ErrChallengeNotFound]. A wrong attempt id or code returns
// [ErrMismatchIdentification] without saying which.
func (e *Engine) Redeem(ctx context.Context, email, attemptID, code string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Redeem")
	res, err := e.flows.Redeem(ctx, email, attemptID, code)
	e.endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return loginResultFromFlow(res), nil
}

// Verify consults the revocation ledger and then the signature.
func (e *Engine) Verify(ctx context.Context, token string) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Verify")
	rec, err := e.flows.Verify(ctx, token)
	e.endSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &Claims{
		Subject:   rec.Subject,
		ID:        rec.ID,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Logout revokes token before judging it. The revocation is best-effort;
// the result reflects only whether the token was valid.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	err := e.flows.Logout(ctx, token)
	e.endSpan(span, err)
	return err
}

// Signup registers a new identity after checking the email shape and the
// password policy.
func (e *Engine) Signup(ctx context.Context, email, secret string, requiresTwoFactor bool) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Signup")
	err := e.flows.Signup(ctx, email, secret, requiresTwoFactor)
	e.endSpan(span, err)
	return err
}

// DeleteAccount removes an identity and any pending challenge for it.
// Tokens already issued stay valid until they expire or are revoked.
func (e *Engine) DeleteAccount(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "DeleteAccount")
	err := e.flows.DeleteAccount(ctx, email)
	e.endSpan(span, err)
	return err
}

func (e *Engine) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "stepauth."+op, trace.WithSpanKind(trace.SpanKindInternal))
}

func (e *Engine) endSpan(span trace.Span, err error) {
	outcome := OutcomeOf(err)
	span.SetAttributes(attribute.String("stepauth.outcome", outcome.String()))
	if outcome == OutcomeServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome.String())
	}
	span.End()
}

func loginResultFromFlow(res *flows.LoginResult) *LoginResult {
	if res == nil {
		return &LoginResult{State: StateRejected}
	}
	switch res.Stage {
	case flows.StageChallengePending:
		return &LoginResult{
			State:     StateChallengePending,
			AttemptID: res.AttemptID,
		}
	case flows.StageAuthenticated:
		return &LoginResult{
			State:     StateAuthenticated,
			Token:     res.Token.Token,
			ExpiresAt: res.Token.ExpiresAt,
		}
	default:
		return &LoginResult{State: StateRejected}
	}
}

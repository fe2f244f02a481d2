package stepAuth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/stepAuth/internal/audit"
	"go.uber.org/zap"
)

// Identity is a registered login principal keyed by its normalized email.
//
// PasswordDigest is an opaque PHC string produced by the configured
// [PasswordHasher]. It never leaves the engine through any public result.
type Identity struct {
	Email             string
	PasswordDigest    string
	RequiresTwoFactor bool
}

// Challenge is a pending second-factor step for one email.
//
// Only one challenge is active per email. Issuing a new one replaces the
// previous attempt id and code.
type Challenge struct {
	Email     string
	AttemptID string
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Attempts  int
}

// Claims is the verified content of a bearer token.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LoginState is the state reached by a login attempt.
type LoginState uint8

const (
	// StateUnauthenticated is the initial state.
	StateUnauthenticated LoginState = iota
	// StateCredentialsChecked means the password was accepted.
	StateCredentialsChecked
	// StateChallengePending means a 2FA code was issued and emailed.
	StateChallengePending
	// StateAuthenticated means a token was minted.
	StateAuthenticated
	// StateRejected is terminal for the attempt.
	StateRejected
)

// String returns the state name.
func (s LoginState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateCredentialsChecked:
		return "credentials_checked"
	case StateChallengePending:
		return "challenge_pending"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// LoginResult is returned by [Engine.Login] and [Engine.Redeem].
//
// Token and ExpiresAt are set in StateAuthenticated. AttemptID is set in
// StateChallengePending. The 2FA code is never part of a result.
type LoginResult struct {
	State     LoginState
	Token     string
	ExpiresAt time.Time
	AttemptID string
}

// IdentityRepository is the relational primitive behind the identity store.
//
// Implementations return [ErrAlreadyExists] from Insert on a duplicate email,
// [ErrNotFound] from SelectByEmail and DeleteByEmail when no row matches, and
// wrap every other failure with [ErrUnexpected].
type IdentityRepository interface {
	Insert(ctx context.Context, identity Identity) error
	SelectByEmail(ctx context.Context, email string) (Identity, error)
	DeleteByEmail(ctx context.Context, email string) error
}

// ChallengeStore holds at most one active [Challenge] per email with a TTL.
//
// Redeem must compare and delete atomically: of two concurrent redeems with
// the same valid pair exactly one succeeds and the other sees
// [ErrChallengeNotFound]. A mismatch returns [ErrMismatchIdentification]
// without revealing which field differed.
type ChallengeStore interface {
	Issue(ctx context.Context, challenge Challenge) error
	Redeem(ctx context.Context, email, attemptID, code string) error
	Peek(ctx context.Context, email string) (Challenge, error)
	Discard(ctx context.Context, email string) error
}

// RevocationLedger records revoked bearer tokens until their natural expiry.
//
// Revoke writes nothing when expiresAt is not in the future. IsRevoked reports
// absence as false with a nil error.
type RevocationLedger interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// EmailClient delivers the 2FA code to the identity's inbox.
type EmailClient interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// PasswordHasher produces and checks password digests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
//
// Emit is called from a single dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink is an [AuditSink] that logs each event through a zap logger.
type ZapSink = internalaudit.ZapSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink creates a [ZapSink] logging at info level for successes and
// warn level for failures.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(logger)
}

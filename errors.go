package stepAuth

import "errors"

var (
	// ErrAlreadyExists is returned by Signup when an identity with the same email is registered.
	ErrAlreadyExists = errors.New("identity already exists")
	// ErrNotFound is returned when the addressed identity does not exist.
	ErrNotFound = errors.New("identity not found")
	// ErrInvalidCredentials covers an unknown email, a wrong password and an
	// expired or unknown 2FA challenge. Callers cannot tell these apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrChallengeNotFound is returned by a ChallengeStore when no active
	// challenge exists for the email. The engine reports it as ErrInvalidCredentials.
	ErrChallengeNotFound = errors.New("2fa challenge not found")
	// ErrMismatchIdentification is returned when the attempt id or the code does not
	// match the active challenge. The error never says which of the two differed.
	ErrMismatchIdentification = errors.New("2fa attempt id or code mismatch")
	// ErrInvalidToken is returned when a bearer token fails signature, algorithm or expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingToken is returned when an operation requiring a token receives none.
	ErrMissingToken = errors.New("missing token")
	// ErrUnauthorized is returned by Verify for a token present in the revocation ledger.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput is returned when a request field is malformed (email shape,
	// password policy, code or attempt id format).
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited is returned by Login once the failed-login budget for the
	// email or client IP is spent.
	ErrRateLimited = errors.New("too many failed login attempts")
	// ErrUnexpected wraps backend, notification and signing failures.
	ErrUnexpected = errors.New("unexpected error")
	// ErrEngineNotReady is returned by a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Outcome is the coarse, caller-facing class of an engine result. Transports
// map it to their own status codes.
type Outcome uint8

const (
	// OutcomeOK means the operation succeeded.
	OutcomeOK Outcome = iota
	// OutcomeBadRequest means the request itself was malformed or incomplete.
	OutcomeBadRequest
	// OutcomeRejected means authentication failed.
	OutcomeRejected
	// OutcomeNotFound means the addressed identity does not exist.
	OutcomeNotFound
	// OutcomeConflict means the identity already exists.
	OutcomeConflict
	// OutcomeThrottled means the caller must wait before retrying.
	OutcomeThrottled
	// OutcomeServerError means a collaborator failed.
	OutcomeServerError
)

// String returns the lower-case outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeBadRequest:
		return "bad_request"
	case OutcomeRejected:
		return "rejected"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConflict:
		return "conflict"
	case OutcomeThrottled:
		return "throttled"
	default:
		return "server_error"
	}
}

// OutcomeOf classifies err by kind. Unknown errors are server errors.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnexpected), errors.Is(err, ErrEngineNotReady):
		return OutcomeServerError
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingToken):
		return OutcomeBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrMismatchIdentification),
		errors.Is(err, ErrChallengeNotFound),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrUnauthorized):
		return OutcomeRejected
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return OutcomeConflict
	case errors.Is(err, ErrRateLimited):
		return OutcomeThrottled
	default:
		return OutcomeServerError
	}
}

package stepAuth

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventMFARequired         = "mfa_required"
	auditEventMFASuccess          = "mfa_success"
	auditEventMFAFailure          = "mfa_failure"
	auditEventNotificationFailure = "notification_failure"
	auditEventTokenRejected       = "token_rejected"
	auditEventLogout              = "logout"
	auditEventRevocationFailure   = "revocation_failure"
	auditEventAccountCreated      = "account_created"
	auditEventAccountDuplicate    = "account_duplicate"
	auditEventAccountFailure      = "account_failure"
	auditEventAccountDeleted      = "account_deleted"
)

// AuditErrorCode is the stable error label written into [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrChallengeNotFound  AuditErrorCode = "challenge_not_found"
	auditErrMismatch           AuditErrorCode = "mismatch_identification"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrMissingToken       AuditErrorCode = "missing_token"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// Metadata keys lifted into dedicated event fields.
const (
	auditMetaAttemptID = "attempt_id"
	auditMetaTokenID   = "token_id"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subject string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Subject:   subject,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
	}
	if v, ok := metadata[auditMetaAttemptID]; ok {
		event.AttemptID = v
		delete(metadata, auditMetaAttemptID)
	}
	if v, ok := metadata[auditMetaTokenID]; ok {
		event.TokenID = v
		delete(metadata, auditMetaTokenID)
	}
	if len(metadata) > 0 {
		event.Metadata = metadata
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnexpected), errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrChallengeNotFound):
		return auditErrChallengeNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrMismatchIdentification):
		return auditErrMismatch
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrMissingToken):
		return auditErrMissingToken
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrAlreadyExists):
		return auditErrDuplicate
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	default:
		return auditErrInternal
	}
}

package stepAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/stepAuth/internal"
	"github.com/MrEthical07/stepAuth/internal/flows"
	"github.com/MrEthical07/stepAuth/internal/rate"
	"github.com/MrEthical07/stepAuth/jwt"
)

func (e *Engine) flowDeps() flows.Deps {
	hooks := flows.Hooks{
		MetricInc: func(id int) {
			e.metrics.Inc(MetricID(id))
		},
		MetricObserve: func(id int, d time.Duration) {
			e.metrics.Observe(MetricID(id), d)
		},
		EmitAudit: e.emitAudit,
		Warn:      e.logger.Warn,
	}
	errs := flows.Errors{
		EngineNotReady:         ErrEngineNotReady,
		InvalidInput:           ErrInvalidInput,
		InvalidCredentials:     ErrInvalidCredentials,
		ChallengeNotFound:      ErrChallengeNotFound,
		MismatchIdentification: ErrMismatchIdentification,
		InvalidToken:           ErrInvalidToken,
		MissingToken:           ErrMissingToken,
		Unauthorized:           ErrUnauthorized,
		AlreadyExists:          ErrAlreadyExists,
		NotFound:               ErrNotFound,
		RateLimited:            ErrRateLimited,
		Unexpected:             ErrUnexpected,
	}

	deps := flows.Deps{
		Login: flows.LoginDeps{
			ChallengeTTL:   e.config.Challenge.TTL,
			EmailSubject:   e.config.Challenge.EmailSubject,
			Now:            e.now,
			NormalizeEmail: ParseEmail,
			ParseAttemptID: ParseAttemptID,
			ValidCode:      internal.ValidCode,
			ValidateCredentials: func(ctx context.Context, email, secret string) (flows.IdentityRecord, error) {
				identity, err := e.identities.Validate(ctx, email, secret)
				if err != nil {
					return flows.IdentityRecord{}, err
				}
				return flows.IdentityRecord{
					Email:             identity.Email,
					RequiresTwoFactor: identity.RequiresTwoFactor,
				}, nil
			},
			NewAttemptID: internal.NewAttemptID,
			NewCode:      internal.NewCode,
			IssueChallenge: func(ctx context.Context, c flows.ChallengeRecord) error {
				return e.challenges.Issue(ctx, Challenge{
					Email:     c.Email,
					AttemptID: c.AttemptID,
					Code:      c.Code,
					IssuedAt:  c.IssuedAt,
					ExpiresAt: c.ExpiresAt,
				})
			},
			RedeemChallenge: e.challenges.Redeem,
			RenderEmail:     renderChallengeEmail,
			SendEmail:       e.email.Send,
			Mint:            e.mint,
			Hooks:           hooks,
			Metrics: flows.LoginMetrics{
				LoginSuccess:        int(MetricLoginSuccess),
				LoginFailure:        int(MetricLoginFailure),
				ChallengeIssued:     int(MetricChallengeIssued),
				NotificationFailure: int(MetricNotificationFailure),
				RedeemSuccess:       int(MetricRedeemSuccess),
				RedeemFailure:       int(MetricRedeemFailure),
				TokenMinted:         int(MetricTokenMinted),
				Throttled:           int(MetricLoginThrottled),
			},
			Events: flows.LoginEvents{
				LoginSuccess:        auditEventLoginSuccess,
				LoginFailure:        auditEventLoginFailure,
				MFARequired:         auditEventMFARequired,
				MFASuccess:          auditEventMFASuccess,
				MFAFailure:          auditEventMFAFailure,
				NotificationFailure: auditEventNotificationFailure,
			},
			Errors: errs,
		},
		Token: flows.TokenDeps{
			FailOpenOnRead:   e.config.Revocation.FailOpenOnRead,
			Leeway:           e.config.JWT.Leeway,
			MaxRevocationTTL: e.config.revocationMaxTTL(),
			Now:              e.now,
			IsRevoked:        e.ledger.IsRevoked,
			Revoke:           e.ledger.Revoke,
			Verify:           e.verifySignature,
			PeekExpiry:       e.jwtManager.PeekExpiry,
			TokenID:          internal.FingerprintPrefix,
			Hooks:            hooks,
			Metrics: flows.TokenMetrics{
				VerifySuccess:       int(MetricVerifySuccess),
				VerifyFailure:       int(MetricVerifyFailure),
				VerifyRevoked:       int(MetricVerifyRevoked),
				VerifyLatency:       int(MetricVerifyLatency),
				Logout:              int(MetricLogout),
				RevocationFailure:   int(MetricRevocationWriteFailure),
				RevocationReadError: int(MetricRevocationReadFailure),
			},
			Events: flows.TokenEvents{
				TokenRejected:     auditEventTokenRejected,
				Logout:            auditEventLogout,
				RevocationFailure: auditEventRevocationFailure,
			},
			Errors: errs,
		},
		Account: flows.AccountDeps{
			NormalizeEmail:   ParseEmail,
			CheckPassword:    e.policy.Check,
			AddIdentity:      e.identities.Add,
			DeleteIdentity:   e.identities.Delete,
			DiscardChallenge: e.challenges.Discard,
			Hooks:            hooks,
			Metrics: flows.AccountMetrics{
				Created:   int(MetricAccountCreated),
				Duplicate: int(MetricAccountDuplicate),
				Deleted:   int(MetricAccountDeleted),
			},
			Events: flows.AccountEvents{
				Created:   auditEventAccountCreated,
				Duplicate: auditEventAccountDuplicate,
				Failure:   auditEventAccountFailure,
				Deleted:   auditEventAccountDeleted,
			},
			Errors: errs,
		},
	}
	if e.throttle != nil {
		deps.Login.CheckThrottle = func(ctx context.Context, email string) error {
			return throttleErr(e.throttle.Check(ctx, email, clientIPFromContext(ctx)))
		}
		deps.Login.RecordFailure = func(ctx context.Context, email string) error {
			return throttleErr(e.throttle.Fail(ctx, email, clientIPFromContext(ctx)))
		}
		deps.Login.ResetThrottle = func(ctx context.Context, email string) error {
			return throttleErr(e.throttle.Reset(ctx, email))
		}
	}
	return deps
}

func throttleErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
}

func (e *Engine) mint(subject string) (flows.TokenRecord, error) {
	token, claims, err := e.jwtManager.Mint(subject)
	if err != nil {
		return flows.TokenRecord{}, fmt.Errorf("%w: %v", ErrUnexpected, err)
	}
	return tokenRecord(token, claims), nil
}

func (e *Engine) verifySignature(token string) (flows.TokenRecord, error) {
	claims, err := e.jwtManager.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrInvalidToken) {
			return flows.TokenRecord{}, ErrInvalidToken
		}
		return flows.TokenRecord{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return tokenRecord(token, claims), nil
}

func tokenRecord(token string, claims *jwt.Claims) flows.TokenRecord {
	rec := flows.TokenRecord{
		Token:   token,
		Subject: claims.Subject,
		ID:      claims.ID,
	}
	if claims.IssuedAt != nil {
		rec.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		rec.ExpiresAt = claims.ExpiresAt.Time
	}
	return rec
}

// renderChallengeEmail is the plain-text body carrying the 2FA code.
func renderChallengeEmail(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your verification code is %s. It expires in %s.", code, humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	case d >= time.Second:
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	default:
		return d.String()
	}
}

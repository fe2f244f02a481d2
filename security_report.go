package stepAuth

import "time"

// SecurityReport summarizes the security-relevant settings of a built engine.
type SecurityReport struct {
	SigningAlgorithm     string
	AccessTTL            time.Duration
	IssuerBound          bool
	AudienceBound        bool
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	RevocationFailOpen   bool
	RevocationMaxTTL     time.Duration
	Argon2               PasswordConfigReport
	// LoginThrottleActive is true only when a failed-login limiter is running.
	LoginThrottleActive bool
	AuditEnabled        bool
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm:     e.config.JWT.SigningMethod,
		AccessTTL:            e.config.JWT.AccessTTL,
		IssuerBound:          e.config.JWT.Issuer != "",
		AudienceBound:        e.config.JWT.Audience != "",
		ChallengeTTL:         e.config.Challenge.TTL,
		ChallengeMaxAttempts: e.config.Challenge.MaxAttempts,
		RevocationFailOpen:   e.config.Revocation.FailOpenOnRead,
		RevocationMaxTTL:     e.config.revocationMaxTTL(),
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		LoginThrottleActive: e.throttle != nil,
		AuditEnabled:        e.audit != nil,
	}
}

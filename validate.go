package stepAuth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/MrEthical07/stepAuth/internal"
	"github.com/MrEthical07/stepAuth/password"
)

const maxEmailBytes = 254

// ParseEmail returns the canonical form of an email address: trimmed and
// lower-cased, with exactly one '@' between a non-empty local part and a
// non-empty domain.
func ParseEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailBytes {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	if strings.IndexFunc(email, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	return email, nil
}

// ParsePassword applies the default signup policy to a new password.
func ParsePassword(raw string) error {
	return checkPassword(password.DefaultPolicy(), raw)
}

func checkPassword(policy password.Policy, raw string) error {
	if err := policy.Check(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// ParseCode accepts exactly six ASCII digits.
func ParseCode(raw string) (string, error) {
	if !internal.ValidCode(raw) {
		return "", fmt.Errorf("%w: 2fa code", ErrInvalidInput)
	}
	return raw, nil
}

// ParseAttemptID returns the canonical UUID form of a login attempt id.
func ParseAttemptID(raw string) (string, error) {
	id, err := internal.ParseAttemptID(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: attempt id", ErrInvalidInput)
	}
	return id, nil
}

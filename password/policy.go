package password

import "errors"

var (
	// ErrTooShort is returned by Policy.Check for a password under MinBytes.
	ErrTooShort = errors.New("password too short")
	// ErrNoSymbol is returned by Policy.Check when RequireSymbol is set and the
	// password has only ASCII letters and digits.
	ErrNoSymbol = errors.New("password must contain a non-alphanumeric character")
)

// Policy is the signup-time password rule set.
type Policy struct {
	MinBytes      int
	RequireSymbol bool
}

// DefaultPolicy requires eight bytes and one character outside [A-Za-z0-9].
func DefaultPolicy() Policy {
	return Policy{MinBytes: 8, RequireSymbol: true}
}

// Check returns nil when pw satisfies the policy.
func (p Policy) Check(pw string) error {
	if len(pw) < p.MinBytes {
		return ErrTooShort
	}
	if p.RequireSymbol && !hasSymbol(pw) {
		return ErrNoSymbol
	}
	return nil
}

func hasSymbol(pw string) bool {
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return true
		}
	}
	return false
}

package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/google/uuid"
)

const (
	// CodeDigits is the length of an emailed 2FA code.
	CodeDigits = 6
	// FingerprintPrefixLen is how much of a token fingerprint may appear in logs and audit events.
	FingerprintPrefixLen = 12
)

var codeSpace = big.NewInt(1_000_000)

// NewCode returns a uniformly random, zero-padded 6-digit code.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}

	var buf [CodeDigits]byte
	v := n.Int64()
	for i := CodeDigits - 1; i >= 0; i-- {
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[:]), nil
}

// ValidCode reports whether code is exactly six ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// NewAttemptID returns a random v4 UUID string.
func NewAttemptID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ParseAttemptID returns the canonical form of a UUID attempt id.
func ParseAttemptID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errors.New("invalid attempt id")
	}
	return id.String(), nil
}

// Fingerprint is the hex SHA-256 of a raw token. Ledgers key on it so raw
// tokens are never stored.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// FingerprintPrefix is the loggable prefix of Fingerprint(token).
func FingerprintPrefix(token string) string {
	return Fingerprint(token)[:FingerprintPrefixLen]
}

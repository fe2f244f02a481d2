package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB     uint32 = 8 * 1024
	minTimeCost     uint32 = 1
	minParallelism  uint8  = 1
	minSaltLength   uint32 = 16
	minKeyLength    uint32 = 16
	defaultMaxBytes        = 1024
	algorithmID            = "argon2id"
)

var (
	// ErrEmptyPassword is returned by Hash for an empty input.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned when the input exceeds Config.MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrMalformedDigest is returned by Verify and NeedsUpgrade for a digest that is not a valid argon2id PHC string.
	ErrMalformedDigest = errors.New("malformed password digest")
)

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxPasswordBytes bounds the hashing input. Zero means 1024.
	MaxPasswordBytes int
}

// Argon2 hashes and verifies passwords as argon2id PHC strings. It is safe for
// concurrent use.
type Argon2 struct {
	config Config

	dummyOnce   sync.Once
	dummyDigest string
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = defaultMaxBytes
	}

	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh digest with a random salt. The password bytes are used
// exactly as given, without Unicode normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > a.config.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	return a.encode(salt, a.derive(password, salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)), nil
}

// Verify reports whether password matches digest. A malformed digest is an
// error; a wrong password is (false, nil).
func (a *Argon2) Verify(password, digest string) (bool, error) {
	parsed, err := parsePHC(digest)
	if err != nil {
		return false, err
	}
	if len(password) > a.config.MaxPasswordBytes {
		return false, nil
	}

	computed := a.derive(password, parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.hash)))
	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether digest was produced with weaker parameters
// than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(digest string) (bool, error) {
	parsed, err := parsePHC(digest)
	if err != nil {
		return false, err
	}

	switch {
	case a.config.Memory > parsed.memory,
		a.config.Time > parsed.time,
		a.config.Parallelism > parsed.parallelism,
		a.config.KeyLength != uint32(len(parsed.hash)):
		return true, nil
	}
	return false, nil
}

// DummyDigest returns a valid digest of a random secret under the current
// parameters. Verifying against it costs the same as a real verify, which
// lets callers equalize the unknown-identity path.
func (a *Argon2) DummyDigest() string {
	a.dummyOnce.Do(func() {
		secret := make([]byte, 32)
		_, _ = io.ReadFull(rand.Reader, secret)
		digest, err := a.Hash(base64.RawStdEncoding.EncodeToString(secret))
		if err != nil {
			return
		}
		a.dummyDigest = digest
	})
	return a.dummyDigest
}

func (a *Argon2) derive(password string, salt []byte, t, m uint32, p uint8, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, t, m, p, keyLen)
}

func (a *Argon2) encode(salt, hash []byte) string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func parsePHC(digest string) (*parsedPHC, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: expected 6 segments", ErrMalformedDigest)
	}
	if parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedDigest, parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: bad version", ErrMalformedDigest)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedDigest, version)
	}

	out := &parsedPHC{}
	if err := parseParams(parts[3], out); err != nil {
		return nil, err
	}

	// PHC uses unpadded base64; older digests may be padded.
	if out.salt, err = decodeB64(parts[4]); err != nil || len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedDigest)
	}
	if out.hash, err = decodeB64(parts[5]); err != nil || len(out.hash) < int(minKeyLength) {
		return nil, fmt.Errorf("%w: bad hash", ErrMalformedDigest)
	}

	return out, nil
}

func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func parseParams(part string, out *parsedPHC) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return fmt.Errorf("%w: expected m,t,p", ErrMalformedDigest)
	}

	var seen uint8
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedDigest, pair)
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return fmt.Errorf("%w: bad memory", ErrMalformedDigest)
			}
			out.memory = uint32(v)
			seen |= 1
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return fmt.Errorf("%w: bad time", ErrMalformedDigest)
			}
			out.time = uint32(v)
			seen |= 2
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return fmt.Errorf("%w: bad parallelism", ErrMalformedDigest)
			}
			out.parallelism = uint8(v)
			seen |= 4
		default:
			return fmt.Errorf("%w: unsupported parameter %q", ErrMalformedDigest, key)
		}
	}

	if seen != 7 {
		return fmt.Errorf("%w: missing parameters", ErrMalformedDigest)
	}
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	if cfg.MaxPasswordBytes < 0 {
		return errors.New("password max bytes must be >= 0")
	}

	return nil
}

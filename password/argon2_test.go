package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	digest, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(digest, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", digest)
	}

	ok, err := hasher.Verify("P@ssw0rd-Ascii", digest)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification to succeed")
	}
}

func TestHashIsSalted(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())

	a, _ := hasher.Hash("same-password!")
	b, _ := hasher.Hash("same-password!")
	if a == b {
		t.Fatal("expected distinct digests for the same password")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())

	digest, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := hasher.Verify("wrong-password", digest)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyPaddedDigest(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())

	// Digest emitted by an encoder that pads base64.
	digest := "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA==$" +
		"dGVzdHRlc3R0ZXN0dGVzdHRlc3R0ZXN0dGVzdHRlc3Q="
	if _, err := hasher.Verify("anything", digest); err != nil {
		t.Fatalf("padded digest should parse, got %v", err)
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())

	cases := []string{
		"",
		"plain-text",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$dGVzdHRlc3R0ZXN0dGVzdA",
		"$argon2id$v=19$m=10,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$dGVzdHRlc3R0ZXN0dGVzdA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$dGVzdHRlc3R0ZXN0dGVzdA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$dGVzdHRlc3R0ZXN0dGVzdA",
	}
	for _, digest := range cases {
		if _, err := hasher.Verify("whatever", digest); !errors.Is(err, ErrMalformedDigest) {
			t.Fatalf("digest %q: expected ErrMalformedDigest, got %v", digest, err)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, _ := NewArgon2(testConfig())
	digest, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	stronger := testConfig()
	stronger.Time = 2
	strong, _ := NewArgon2(stronger)

	if up, err := strong.NeedsUpgrade(digest); err != nil || !up {
		t.Fatalf("expected upgrade, got %v %v", up, err)
	}
	if up, err := weak.NeedsUpgrade(digest); err != nil || up {
		t.Fatalf("expected no upgrade under same config, got %v %v", up, err)
	}
}

func TestHashRejectsEmptyAndTooLong(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasswordBytes = 16
	hasher, _ := NewArgon2(cfg)

	if _, err := hasher.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if _, err := hasher.Hash(strings.Repeat("x", 17)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	digest, err := hasher.Hash(strings.Repeat("x", 16))
	if err != nil {
		t.Fatalf("Hash at limit: %v", err)
	}
	ok, err := hasher.Verify(strings.Repeat("x", 17), digest)
	if err != nil || ok {
		t.Fatalf("over-limit verify must fail closed, got %v %v", ok, err)
	}
}

func TestDummyDigestVerifiesFalse(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())

	digest := hasher.DummyDigest()
	if digest == "" || digest != hasher.DummyDigest() {
		t.Fatal("expected a stable non-empty dummy digest")
	}
	ok, err := hasher.Verify("guess", digest)
	if err != nil || ok {
		t.Fatalf("dummy digest must never verify, got %v %v", ok, err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SaltLength = 8
	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected error for short salt")
	}
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		pw   string
		want error
	}{
		{"short!", ErrTooShort},
		{"alllettersand123", ErrNoSymbol},
		{"letters-and-dash", nil},
		{"ümlaut12", nil},
		{"exactly8!", nil},
	}
	for _, tc := range cases {
		if err := p.Check(tc.pw); !errors.Is(err, tc.want) {
			t.Fatalf("Check(%q) = %v, want %v", tc.pw, err, tc.want)
		}
	}

	if err := (Policy{MinBytes: 4}).Check("abcd"); err != nil {
		t.Fatalf("symbol not required: %v", err)
	}
}

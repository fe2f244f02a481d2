package stepAuth

import (
	"errors"
	"strings"
	"testing"
)

func TestParseEmail(t *testing.T) {
	good := map[string]string{
		"alice@example.com":       "alice@example.com",
		"  Bob@Example.COM ":      "bob@example.com",
		"first.last+tag@sub.a.io": "first.last+tag@sub.a.io",
	}
	for in, want := range good {
		got, err := ParseEmail(in)
		if err != nil || got != want {
			t.Fatalf("ParseEmail(%q) = %q, %v", in, got, err)
		}
	}

	bad := []string{
		"",
		"   ",
		"no-at-sign",
		"@example.com",
		"alice@",
		"a@b@c",
		"al ice@example.com",
		"alice@exa\tmple.com",
		strings.Repeat("a", 250) + "@x.io",
	}
	for _, in := range bad {
		if _, err := ParseEmail(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseEmail(%q) error = %v", in, err)
		}
	}
}

func TestParsePassword(t *testing.T) {
	if err := ParsePassword("Password123!"); err != nil {
		t.Fatalf("strong password rejected: %v", err)
	}
	for _, in := range []string{"", "Sh0rt!", "NoSymbolsHere1"} {
		if err := ParsePassword(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParsePassword(%q) error = %v", in, err)
		}
	}
}

func TestParseCode(t *testing.T) {
	if code, err := ParseCode("012345"); err != nil || code != "012345" {
		t.Fatalf("ParseCode = %q, %v", code, err)
	}
	for _, in := range []string{"", "12345", "1234567", "12a456", "１２３４５６"} {
		if _, err := ParseCode(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseCode(%q) error = %v", in, err)
		}
	}
}

func TestParseAttemptID(t *testing.T) {
	id, err := ParseAttemptID(" 3F1C6A4E-7D0B-4A8E-9D35-0C6F2B1A9E77 ")
	if err != nil || id != "3f1c6a4e-7d0b-4a8e-9d35-0c6f2b1a9e77" {
		t.Fatalf("ParseAttemptID = %q, %v", id, err)
	}
	if _, err := ParseAttemptID("attempt-1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

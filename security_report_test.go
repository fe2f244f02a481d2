package stepAuth_test

import (
	"testing"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
)

func TestSecurityReportMemoryStores(t *testing.T) {
	h := newHarness(t, nil)
	report := h.engine.SecurityReport()

	if report.SigningAlgorithm != "hs256" {
		t.Fatalf("algorithm = %q", report.SigningAlgorithm)
	}
	if report.AccessTTL != 10*time.Minute || report.ChallengeTTL != 10*time.Minute {
		t.Fatalf("ttls = %v / %v", report.AccessTTL, report.ChallengeTTL)
	}
	if report.RevocationMaxTTL != report.AccessTTL+30*time.Second {
		t.Fatalf("revocation max ttl = %v", report.RevocationMaxTTL)
	}
	if report.LoginThrottleActive {
		t.Fatal("throttle needs redis")
	}
	if report.RevocationFailOpen {
		t.Fatal("revocation reads must fail closed by default")
	}
	if report.Argon2.Memory != 8*1024 || report.Argon2.Time != 1 {
		t.Fatalf("argon2 = %+v", report.Argon2)
	}
}

func TestSecurityReportRedis(t *testing.T) {
	h := newRedisHarness(t)
	report := h.engine.SecurityReport()
	if !report.LoginThrottleActive {
		t.Fatal("expected throttle with redis and default config")
	}
	if !report.AuditEnabled {
		t.Fatal("expected audit enabled")
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *stepAuth.Engine
	if got := e.SecurityReport(); got != (stepAuth.SecurityReport{}) {
		t.Fatalf("got %+v", got)
	}
}

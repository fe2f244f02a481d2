package internaldefs

import (
	stepAuth "github.com/MrEthical07/stepAuth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   stepAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   stepAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: stepAuth.MetricLoginSuccess, Name: "stepauth_login_success_total", Help: "Logins that reached a terminal success (token or pending challenge)."},
	{ID: stepAuth.MetricLoginFailure, Name: "stepauth_login_failure_total", Help: "Rejected or failed login attempts."},
	{ID: stepAuth.MetricChallengeIssued, Name: "stepauth_challenge_issued_total", Help: "2FA challenges written to the challenge store."},
	{ID: stepAuth.MetricNotificationFailure, Name: "stepauth_notification_failure_total", Help: "2FA code emails that could not be delivered."},
	{ID: stepAuth.MetricRedeemSuccess, Name: "stepauth_redeem_success_total", Help: "Successful 2FA redemptions."},
	{ID: stepAuth.MetricRedeemFailure, Name: "stepauth_redeem_failure_total", Help: "Failed 2FA redemptions."},
	{ID: stepAuth.MetricTokenMinted, Name: "stepauth_token_minted_total", Help: "Bearer tokens issued."},
	{ID: stepAuth.MetricVerifySuccess, Name: "stepauth_verify_success_total", Help: "Tokens accepted by Verify."},
	{ID: stepAuth.MetricVerifyFailure, Name: "stepauth_verify_failure_total", Help: "Tokens rejected by Verify for signature, expiry or ledger errors."},
	{ID: stepAuth.MetricVerifyRevoked, Name: "stepauth_verify_revoked_total", Help: "Tokens rejected by Verify because they were revoked."},
	{ID: stepAuth.MetricLogout, Name: "stepauth_logout_total", Help: "Logouts of valid tokens."},
	{ID: stepAuth.MetricRevocationWriteFailure, Name: "stepauth_revocation_write_failure_total", Help: "Revocation ledger writes that failed during logout."},
	{ID: stepAuth.MetricRevocationReadFailure, Name: "stepauth_revocation_read_failure_total", Help: "Revocation ledger reads that failed during verify."},
	{ID: stepAuth.MetricAccountCreated, Name: "stepauth_account_created_total", Help: "Identities registered."},
	{ID: stepAuth.MetricAccountDuplicate, Name: "stepauth_account_duplicate_total", Help: "Signups rejected as duplicate."},
	{ID: stepAuth.MetricLoginThrottled, Name: "stepauth_login_throttled_total", Help: "Logins refused because the failed-login budget was spent."},
	{ID: stepAuth.MetricAccountDeleted, Name: "stepauth_account_deleted_total", Help: "Identities deleted."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: stepAuth.MetricVerifyLatency, Name: "stepauth_verify_latency_seconds", Help: "Verify latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the eight engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds for use inside instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into le-style running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// PostureDef is a gauge derived from the engine's security report.
type PostureDef struct {
	Name  string
	Help  string
	Value func(stepAuth.SecurityReport) int64
}

// PostureDefs lists the security posture gauges in export order.
var PostureDefs = []PostureDef{
	{Name: "stepauth_access_ttl_seconds", Help: "Lifetime of minted bearer tokens.", Value: func(r stepAuth.SecurityReport) int64 { return int64(r.AccessTTL.Seconds()) }},
	{Name: "stepauth_challenge_ttl_seconds", Help: "Lifetime of an issued 2FA challenge.", Value: func(r stepAuth.SecurityReport) int64 { return int64(r.ChallengeTTL.Seconds()) }},
	{Name: "stepauth_challenge_max_attempts", Help: "Mismatched 2FA codes that burn a challenge. 0 disables the cap.", Value: func(r stepAuth.SecurityReport) int64 { return int64(r.ChallengeMaxAttempts) }},
	{Name: "stepauth_revocation_fail_open", Help: "1 when Verify accepts tokens while the revocation ledger is unreachable.", Value: func(r stepAuth.SecurityReport) int64 { return boolGauge(r.RevocationFailOpen) }},
	{Name: "stepauth_login_throttle_enabled", Help: "1 when failed logins are rate limited.", Value: func(r stepAuth.SecurityReport) int64 { return boolGauge(r.LoginThrottleActive) }},
}

func boolGauge(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

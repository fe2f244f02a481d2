package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot stepAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() stepAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := stepAuth.MetricsSnapshot{
		Counters:   make(map[stepAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[stepAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterCollectsCountersAndBuckets(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: stepAuth.MetricsSnapshot{
			Counters: map[stepAuth.MetricID]uint64{
				stepAuth.MetricRedeemSuccess: 3,
			},
			Histograms: map[stepAuth.MetricID][]uint64{
				stepAuth.MetricVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 2,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("stepauth-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	checks := map[string]int64{
		"stepauth_redeem_success_total":                   3,
		"stepauth_login_failure_total":                    0,
		"stepauth_audit_dropped_total":                    2,
		"stepauth_verify_latency_seconds_bucket_le_0_005": 1,
		"stepauth_verify_latency_seconds_bucket_le_inf":   8,
		"stepauth_verify_latency_seconds_count":           8,
	}
	for name, want := range checks {
		got, ok := findSum(rm, name)
		if !ok {
			t.Fatalf("%s not collected", name)
		}
		if got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newMeter()
	if _, err := NewOTelExporterFromSource(provider.Meter("stepauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newMeter()
	src := &fakeSource{
		snapshot: stepAuth.MetricsSnapshot{
			Counters:   map[stepAuth.MetricID]uint64{stepAuth.MetricLoginSuccess: 1},
			Histograms: map[stepAuth.MetricID][]uint64{},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("stepauth-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[stepAuth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

type reportingSource struct {
	fakeSource
	report stepAuth.SecurityReport
}

func (p *reportingSource) SecurityReport() stepAuth.SecurityReport { return p.report }

func TestExporterCollectsPostureGauges(t *testing.T) {
	reader, provider := newMeter()
	src := &reportingSource{
		fakeSource: fakeSource{snapshot: stepAuth.MetricsSnapshot{}},
		report: stepAuth.SecurityReport{
			AccessTTL:            10 * time.Minute,
			ChallengeMaxAttempts: 5,
			RevocationFailOpen:   true,
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("stepauth-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	checks := map[string]int64{
		"stepauth_access_ttl_seconds":     600,
		"stepauth_challenge_max_attempts": 5,
		"stepauth_revocation_fail_open":   1,
		"stepauth_login_throttle_enabled": 0,
	}
	for name, want := range checks {
		got, ok := findSum(rm, name)
		if !ok {
			t.Fatalf("%s not collected", name)
		}
		if got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestExporterSkipsPostureForPlainSources(t *testing.T) {
	reader, provider := newMeter()
	exp, err := NewOTelExporterFromSource(provider.Meter("stepauth-test"), &fakeSource{})
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if _, ok := findSum(rm, "stepauth_revocation_fail_open"); ok {
		t.Fatal("posture gauge collected for a source without a report")
	}
}

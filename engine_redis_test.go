package stepAuth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/email"
	"github.com/MrEthical07/stepAuth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type redisHarness struct {
	engine *stepAuth.Engine
	mr     *miniredis.Miniredis
	mail   *email.Recorder
	sink   *stepAuth.ChannelSink
	spans  *tracetest.SpanRecorder
}

func newRedisHarness(t testing.TB, opts ...func(*stepAuth.Config)) *redisHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &redisHarness{
		mr:    mr,
		mail:  email.NewRecorder(),
		sink:  stepAuth.NewChannelSink(256),
		spans: tracetest.NewSpanRecorder(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	engine, err := stepAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityRepository(memory.NewIdentityRepository()).
		WithEmailClient(h.mail).
		WithAuditSink(h.sink).
		WithTracerProvider(tp).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	h.engine = engine
	return h
}

func (h *redisHarness) nextEvent(t *testing.T) stepAuth.AuditEvent {
	t.Helper()
	select {
	case ev := <-h.sink.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audit event")
		return stepAuth.AuditEvent{}
	}
}

func TestRedisEngineTwoFactorRoundTrip(t *testing.T) {
	h := newRedisHarness(t)
	ctx := stepAuth.WithRequestID(stepAuth.WithClientIP(context.Background(), "203.0.113.7"), "req-1")

	if err := h.engine.Signup(ctx, "bob@example.com", "Password123!", true); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if ev := h.nextEvent(t); ev.EventType != "account_created" || ev.Subject != "bob@example.com" {
		t.Fatalf("unexpected event %+v", ev)
	}

	res, err := h.engine.Login(ctx, "bob@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	ev := h.nextEvent(t)
	if ev.EventType != "mfa_required" || ev.AttemptID != res.AttemptID || ev.IP != "203.0.113.7" || ev.RequestID != "req-1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ttl := h.mr.TTL("tfa:bob@example.com"); ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("challenge key ttl = %v", ttl)
	}

	code, _ := h.mail.LastCode("bob@example.com")
	done, err := h.engine.Redeem(ctx, "bob@example.com", res.AttemptID, code)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if ev := h.nextEvent(t); ev.EventType != "mfa_success" || !ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if h.mr.Exists("tfa:bob@example.com") {
		t.Fatal("redeemed challenge must be deleted")
	}

	if err := h.engine.Logout(ctx, done.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if ev := h.nextEvent(t); ev.EventType != "logout" || ev.TokenID == "" || ev.TokenID == done.Token {
		t.Fatalf("unexpected event %+v", ev)
	}
	key := "rvk:" + stepAuth.TokenFingerprint(done.Token)
	if ttl := h.mr.TTL(key); ttl <= 10*time.Minute || ttl > 10*time.Minute+30*time.Second {
		t.Fatalf("revocation ttl = %v, want exp+leeway", ttl)
	}
	if _, err := h.engine.Verify(ctx, done.Token); !errors.Is(err, stepAuth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if ev := h.nextEvent(t); ev.EventType != "token_rejected" || ev.Error != "unauthorized" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRedisEngineConcurrentRedeemSingleWinner(t *testing.T) {
	h := newRedisHarness(t)
	ctx := context.Background()
	if err := h.engine.Signup(ctx, "bob@example.com", "Password123!", true); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	res, err := h.engine.Login(ctx, "bob@example.com", "Password123!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	code, _ := h.mail.LastCode("bob@example.com")

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := h.engine.Redeem(ctx, "bob@example.com", res.AttemptID, code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, stepAuth.ErrChallengeNotFound):
				losers++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 || losers != workers-1 {
		t.Fatalf("winners=%d losers=%d", winners, losers)
	}
}

func TestRedisEngineBackendFailure(t *testing.T) {
	h := newRedisHarness(t)
	ctx := context.Background()
	if err := h.engine.Signup(ctx, "bob@example.com", "Password123!", true); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	h.mr.SetError("READONLY injected")
	_, err := h.engine.Login(ctx, "bob@example.com", "Password123!")
	if !errors.Is(err, stepAuth.ErrUnexpected) {
		t.Fatalf("expected ErrUnexpected, got %v", err)
	}
	if len(h.mail.Messages()) != 0 {
		t.Fatal("no email may be sent when the challenge was not stored")
	}

	_, err = h.engine.Verify(ctx, "anything")
	if !errors.Is(err, stepAuth.ErrUnexpected) {
		t.Fatalf("ledger read failure must fail closed, got %v", err)
	}
	h.mr.SetError("")
}

func TestEngineSpans(t *testing.T) {
	h := newRedisHarness(t)
	ctx := context.Background()
	_ = h.engine.Signup(ctx, "alice@example.com", "Password123!", false)
	_, _ = h.engine.Login(ctx, "alice@example.com", "nope-nope!")
	h.mr.SetError("LOADING injected")
	_, _ = h.engine.Verify(ctx, "token")
	h.mr.SetError("")

	spans := h.spans.Ended()
	if len(spans) != 3 {
		t.Fatalf("got %d spans", len(spans))
	}
	want := []struct {
		name    string
		outcome string
		status  codes.Code
	}{
		{"stepauth.Signup", "ok", codes.Unset},
		{"stepauth.Login", "rejected", codes.Unset},
		{"stepauth.Verify", "server_error", codes.Error},
	}
	for i, w := range want {
		s := spans[i]
		if s.Name() != w.name {
			t.Fatalf("span %d name = %s, want %s", i, s.Name(), w.name)
		}
		if !hasAttr(s.Attributes(), "stepauth.outcome", w.outcome) {
			t.Fatalf("span %s missing outcome %s: %v", w.name, w.outcome, s.Attributes())
		}
		if s.Status().Code != w.status {
			t.Fatalf("span %s status = %v, want %v", w.name, s.Status().Code, w.status)
		}
	}
}

func hasAttr(attrs []attribute.KeyValue, key, value string) bool {
	for _, kv := range attrs {
		if string(kv.Key) == key && kv.Value.AsString() == value {
			return true
		}
	}
	return false
}

func TestRedisEngineThrottlesFailedLogins(t *testing.T) {
	h := newRedisHarness(t)
	ctx := stepAuth.WithClientIP(context.Background(), "198.51.100.4")
	if err := h.engine.Signup(ctx, "carol@example.com", "Password123!", false); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	for i := 0; i < stepAuth.DefaultConfig().Throttle.MaxLoginFailures; i++ {
		if _, err := h.engine.Login(ctx, "carol@example.com", "wrong-pass!"); !errors.Is(err, stepAuth.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	_, err := h.engine.Login(ctx, "carol@example.com", "Password123!")
	if !errors.Is(err, stepAuth.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if stepAuth.OutcomeOf(err) != stepAuth.OutcomeThrottled {
		t.Fatalf("outcome = %v", stepAuth.OutcomeOf(err))
	}

	// Unknown emails are counted the same way.
	for i := 0; i < stepAuth.DefaultConfig().Throttle.MaxLoginFailures; i++ {
		_, _ = h.engine.Login(ctx, "ghost@example.com", "wrong-pass!")
	}
	if _, err := h.engine.Login(ctx, "ghost@example.com", "wrong-pass!"); !errors.Is(err, stepAuth.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for unknown email, got %v", err)
	}
	if got := h.engine.MetricsSnapshot().Counters[stepAuth.MetricLoginThrottled]; got != 2 {
		t.Fatalf("throttled counter = %d, want 2", got)
	}

	h.mr.FastForward(stepAuth.DefaultConfig().Throttle.Window + time.Second)
	res, err := h.engine.Login(ctx, "carol@example.com", "Password123!")
	if err != nil {
		t.Fatalf("login after window: %v", err)
	}
	if res.State != stepAuth.StateAuthenticated {
		t.Fatalf("state = %v", res.State)
	}
	if h.mr.Exists("thr:e:carol@example.com") {
		t.Fatal("successful login must clear the counter")
	}
}

func TestRedisEngineSuccessDoesNotRefillIPBudget(t *testing.T) {
	h := newRedisHarness(t, func(cfg *stepAuth.Config) {
		cfg.Throttle.MaxLoginFailures = 3
		cfg.Throttle.PerIP = true
	})
	ctx := stepAuth.WithClientIP(context.Background(), "198.51.100.7")
	if err := h.engine.Signup(ctx, "dave@example.com", "Password123!", false); err != nil {
		t.Fatalf("Signup: %v", err)
	}

	for _, victim := range []string{"v1@example.com", "v2@example.com"} {
		if _, err := h.engine.Login(ctx, victim, "guess-123!"); !errors.Is(err, stepAuth.ErrInvalidCredentials) {
			t.Fatalf("%s: %v", victim, err)
		}
	}
	if _, err := h.engine.Login(ctx, "dave@example.com", "Password123!"); err != nil {
		t.Fatalf("own login: %v", err)
	}
	if !h.mr.Exists("thr:ip:198.51.100.7") {
		t.Fatal("successful login must keep the ip counter")
	}

	if _, err := h.engine.Login(ctx, "v3@example.com", "guess-123!"); !errors.Is(err, stepAuth.ErrInvalidCredentials) {
		t.Fatalf("third failure: %v", err)
	}
	if _, err := h.engine.Login(ctx, "v4@example.com", "guess-123!"); !errors.Is(err, stepAuth.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited once the ip budget is spent, got %v", err)
	}

	other := stepAuth.WithClientIP(context.Background(), "198.51.100.8")
	if _, err := h.engine.Login(other, "dave@example.com", "Password123!"); err != nil {
		t.Fatalf("login from another ip: %v", err)
	}
}

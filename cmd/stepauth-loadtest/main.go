package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/MrEthical07/stepAuth/email"
	"github.com/MrEthical07/stepAuth/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const seedPassword = "Load-test-pass1!"

func main() {
	var (
		identities  = flag.Int("identities", 200, "number of identities to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "verify operations")
		logins      = flag.Int("logins", 500, "login operations (argon2 bound)")
		races       = flag.Int("races", 200, "2fa challenges raced by every worker")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		argonMemory = flag.Uint("argon-memory", 8*1024, "argon2 memory in KiB")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 || *logins <= 0 || *races <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, ops, logins and races must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := stepAuth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("stepauth-loadtest-secret-0123456789")
	cfg.Password.Memory = uint32(*argonMemory)
	cfg.Password.Time = 1
	// Every worker races with the right code; only the cap can burn a challenge.
	cfg.Challenge.MaxAttempts = 0

	mail := email.NewRecorder()
	engine, err := stepAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityRepository(memory.NewIdentityRepository()).
		WithEmailClient(mail).
		WithLogger(zap.NewNop()).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	emails := make([]string, *identities)
	fmt.Printf("seeding %d identities...\n", *identities)
	startSeed := time.Now()
	for i := range emails {
		emails[i] = fmt.Sprintf("user-%d@load.test", i)
		if err := engine.Signup(ctx, emails[i], seedPassword, i%2 == 1); err != nil {
			fmt.Fprintf(os.Stderr, "signup failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats, tokens := runLoginPhase(ctx, engine, emails, *logins, *concurrency)
	verifyStats := runVerifyPhase(ctx, engine, tokens, *ops, *concurrency)
	raceStats, violations := runRedeemRacePhase(ctx, engine, mail, emails, *races, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("verify", verifyStats)
	printStats("redeem-race", raceStats)
	if violations > 0 {
		fmt.Fprintf(os.Stderr, "redeem-race: %d challenges did not have exactly one winner\n", violations)
		os.Exit(1)
	}
}

// runLoginPhase logs in identities without 2FA and keeps the tokens for the
// verify phase.
func runLoginPhase(ctx context.Context, engine *stepAuth.Engine, emails []string, ops, concurrency int) (phaseStats, []string) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		tokens    = make([]string, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				// Even indices are the identities without 2FA.
				addr := emails[(i*2)%len(emails)]
				t0 := time.Now()
				res, err := engine.Login(ctx, addr, seedPassword)
				d := time.Since(t0)
				mu.Lock()
				latencies = append(latencies, d)
				if err == nil && res.Token != "" {
					tokens = append(tokens, res.Token)
				}
				mu.Unlock()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures), tokens
}

// runVerifyPhase verifies random tokens, logging out roughly one in twenty
// first so the ledger is exercised on both paths.
func runVerifyPhase(ctx context.Context, engine *stepAuth.Engine, tokens []string, ops, concurrency int) phaseStats {
	if len(tokens) == 0 {
		return phaseStats{}
	}
	revoked := make(map[string]bool, len(tokens)/20+1)
	for i := 0; i < len(tokens); i += 20 {
		_ = engine.Logout(ctx, tokens[i])
		revoked[tokens[i]] = true
	}

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				token := tokens[r.Intn(len(tokens))]
				t0 := time.Now()
				_, err := engine.Verify(ctx, token)
				d := time.Since(t0)
				wantRevoked := revoked[token]
				if (err == nil) == wantRevoked || (err != nil && !errors.Is(err, stepAuth.ErrUnauthorized)) {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

// runRedeemRacePhase issues one challenge at a time and lets every worker
// redeem it with the correct code. Exactly one redeem per challenge may win.
func runRedeemRacePhase(ctx context.Context, engine *stepAuth.Engine, mail *email.Recorder, emails []string, races, concurrency int) (phaseStats, int) {
	var (
		failures   int64
		violations int
		latencies  = make([]time.Duration, 0, races*concurrency)
		mu         sync.Mutex
	)

	start := time.Now()
	for i := 0; i < races; i++ {
		// Odd indices are the identities with 2FA.
		addr := emails[(i*2+1)%len(emails)]
		res, err := engine.Login(ctx, addr, seedPassword)
		if err != nil {
			failures++
			continue
		}
		code, ok := mail.LastCode(addr)
		if !ok {
			failures++
			continue
		}

		var (
			wg      sync.WaitGroup
			winners int64
			gate    = make(chan struct{})
		)
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				_, err := engine.Redeem(ctx, addr, res.AttemptID, code)
				d := time.Since(t0)
				switch {
				case err == nil:
					atomic.AddInt64(&winners, 1)
				case !errors.Is(err, stepAuth.ErrChallengeNotFound):
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		close(gate)
		wg.Wait()
		if winners != 1 {
			violations++
		}
	}
	return computeStats(time.Since(start), latencies, failures), violations
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

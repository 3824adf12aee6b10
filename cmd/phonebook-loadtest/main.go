// Command phonebook-loadtest measures the Redis session store under the two
// hot paths of the engine: the guard's session lookup and refresh rotation.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/phonebook/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// userState tracks the current generation of one user's token pair.
type userState struct {
	userID string
	gen    int
	mu     sync.Mutex
}

func (u *userState) access() string  { return fmt.Sprintf("access-%s-%d", u.userID, u.gen) }
func (u *userState) refresh() string { return fmt.Sprintf("refresh-%s-%d", u.userID, u.gen) }

func main() {
	var (
		users       = flag.Int("users", 100000, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (authenticate + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "pbs-load", "session key prefix")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
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

	store := session.NewRedisStore(client, *prefix)

	states := make([]userState, *users)
	fmt.Printf("seeding %d sessions...\n", *users)
	startSeed := time.Now()
	for i := range states {
		states[i].userID = fmt.Sprintf("u%d", i)
		if err := store.Put(ctx, newSession(&states[i])); err != nil {
			fmt.Fprintf(os.Stderr, "put failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	authStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		u := &states[r.Intn(len(states))]
		u.mu.Lock()
		token := u.access()
		u.mu.Unlock()

		sess, err := store.Get(ctx, u.userID)
		if err != nil {
			return err
		}
		if !sess.HoldsAccess(token) {
			// Phases run one after the other, so no rotation can race this.
			return fmt.Errorf("stale access token for %s", u.userID)
		}
		return nil
	})

	refreshStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) error {
		u := &states[r.Intn(len(states))]
		u.mu.Lock()
		defer u.mu.Unlock()

		presented := session.Digest(u.refresh())
		u.gen++
		if err := store.Rotate(ctx, u.userID, presented, newSession(u)); err != nil {
			u.gen--
			return err
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
}

func newSession(u *userState) *session.Session {
	now := time.Now()
	return session.New(u.userID, u.access(), u.refresh(), now, now.Add(24*time.Hour))
}

// runPhase runs op ops times across concurrency workers and records each
// call's latency.
func runPhase(ops, concurrency int, seedStep int64, op func(*rand.Rand) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedStep))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
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
		return phaseStats{total: total}
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
	return samples[(len(samples)-1)*p/100]
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

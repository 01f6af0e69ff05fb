package main

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/internal/redisx"
	"github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001/users"
)

// LoadtestCommand measures Validate and Refresh throughput against the
// configured Redis with an in-memory user directory.
type LoadtestCommand struct {
	runtime     *runtime
	sessions    int
	concurrency int
	ops         int
}

func NewLoadtestCommand(rt *runtime) *LoadtestCommand {
	return &LoadtestCommand{runtime: rt}
}

func (c *LoadtestCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "loadtest",
		Short:         "Benchmark token validation and refresh",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          c.RunE,
	}
	cmd.Flags().IntVar(&c.sessions, "sessions", 100, "sessions to seed through login")
	cmd.Flags().IntVar(&c.concurrency, "concurrency", 64, "concurrent workers")
	cmd.Flags().IntVar(&c.ops, "ops", 20000, "operations per phase")
	return cmd
}

type sessionState struct {
	mu   sync.Mutex
	pair econtact.TokenPair
}

func (c *LoadtestCommand) RunE(cmd *cobra.Command, _ []string) (err error) {
	if c.sessions <= 0 || c.concurrency <= 0 || c.ops <= 0 {
		return fmt.Errorf("sessions, concurrency and ops must be > 0")
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	rdb, err := redisx.NewClient(c.runtime.cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, rdb.Close()) }()

	// Throttling would reject the seeding logins from one address.
	cfg := c.runtime.cfg.Auth
	cfg.Security.EnableLoginThrottle = false
	cfg.Audit.Enabled = false

	dir := users.NewMemoryDirectory()
	engine, err := econtact.New().WithConfig(cfg).WithRedis(rdb).WithUserProvider(dir).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	const user, pass = "loadtest", "loadtest-password"
	hash, err := engine.HashPassword(pass)
	if err != nil {
		return err
	}
	if _, err := dir.CreateUser(ctx, users.NewUser{Username: user, PasswordHash: hash, Role: econtact.RoleTeacher}); err != nil {
		return err
	}

	states := make([]sessionState, c.sessions)
	fmt.Fprintf(out, "seeding %d sessions...\n", c.sessions)
	startSeed := time.Now()
	for i := range states {
		pair, err := engine.Login(ctx, user, pass)
		if err != nil {
			return fmt.Errorf("seed login: %w", err)
		}
		states[i].pair = pair
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := c.runPhase(func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		token := s.pair.AccessToken
		s.mu.Unlock()
		_, err := engine.Validate(ctx, token)
		return err
	})
	refresh := c.runPhase(func(r *rand.Rand) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Refresh(ctx, s.pair.RefreshToken)
		if err == nil {
			s.pair = pair
		}
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "refresh", refresh)
	return nil
}

func (c *LoadtestCommand) runPhase(op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, c.ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < c.concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > c.ops {
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

// percentile expects samples sorted ascending.
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

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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

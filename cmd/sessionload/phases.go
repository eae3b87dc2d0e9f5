package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

type chainState struct {
	mu       sync.Mutex
	access   string
	refresh  string
	previous string
}

func seed(ctx context.Context, engine *goSession.Engine, n int) ([]chainState, error) {
	states := make([]chainState, n)
	for i := range states {
		pair, err := engine.Login(ctx, fmt.Sprintf("user-%d", i))
		if err != nil {
			return nil, err
		}
		states[i].access = pair.AccessToken
		states[i].refresh = pair.RefreshToken
	}
	return states, nil
}

// runPhase spreads ops across concurrency workers, each picking a random
// chain. op reports whether the outcome was the expected one.
func runPhase(states []chainState, ops, concurrency int, salt int64, op func(*chainState) bool) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*salt))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				t0 := time.Now()
				ok := op(state)
				d := time.Since(t0)
				if !ok {
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

func runValidatePhase(ctx context.Context, engine *goSession.Engine, states []chainState, ops, concurrency int) phaseStats {
	return runPhase(states, ops, concurrency, 7919, func(s *chainState) bool {
		s.mu.Lock()
		token := s.access
		s.mu.Unlock()
		_, err := engine.ValidateAccess(ctx, token)
		return err == nil
	})
}

// The chain lock is held across the rotation so every attempt presents the
// current refresh token.
func runRefreshPhase(ctx context.Context, engine *goSession.Engine, states []chainState, ops, concurrency int) phaseStats {
	return runPhase(states, ops, concurrency, 6151, func(s *chainState) bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return false
		}
		s.previous = s.refresh
		s.refresh = pair.RefreshToken
		s.access = pair.AccessToken
		return true
	})
}

// runReplayPhase presents already rotated refresh tokens. Rejection as
// revoked is the expected outcome; anything else is a failure.
func runReplayPhase(ctx context.Context, engine *goSession.Engine, states []chainState, ops, concurrency int) phaseStats {
	return runPhase(states, ops, concurrency, 4993, func(s *chainState) bool {
		s.mu.Lock()
		token := s.previous
		s.mu.Unlock()
		if token == "" {
			return true
		}
		_, err := engine.Refresh(ctx, token)
		return errors.Is(err, goSession.ErrRevoked)
	})
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

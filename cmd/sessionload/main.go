// Command sessionload drives an in-process engine through validate, rotate
// and replay phases against Redis (or miniredis) and prints latency
// percentiles.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		chains      = flag.Int("chains", 10000, "number of rotation chains to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "rv", "revocation key prefix")
	)
	flag.Parse()

	if *chains <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "chains, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var client redis.UniversalClient
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	engine, err := newEngine(client, *prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	fmt.Printf("seeding %d chains...\n", *chains)
	startSeed := time.Now()
	states, err := seed(ctx, engine, *chains)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)
	replayStats := runReplayPhase(ctx, engine, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printStats("replay", replayStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: refresh_success=%d reuse_detected=%d store_errors=%d\n",
		snap.Counters[goSession.MetricRefreshSuccess],
		snap.Counters[goSession.MetricRefreshReuseDetected],
		snap.Counters[goSession.MetricStoreUnavailable],
	)
}

func newEngine(client redis.UniversalClient, prefix string) (*goSession.Engine, error) {
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("sessionload-signing-key-0123456789")
	cfg.Revocation.RedisPrefix = prefix
	cfg.Metrics.Enabled = true
	return goSession.New().WithConfig(cfg).WithRedis(client).Build()
}

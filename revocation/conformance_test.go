package revocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// runStoreConformance checks the behavior every backend shares. now is the
// clock the store under test was built with.
func runStoreConformance(t *testing.T, s Store, now func() time.Time) {
	t.Helper()
	ctx := context.Background()

	t.Run("revoke then contains", func(t *testing.T) {
		exp := now().Add(time.Hour)
		if err := s.Revoke(ctx, "tok-a", exp); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		ok, err := s.Contains(ctx, "tok-a")
		if err != nil {
			t.Fatalf("contains: %v", err)
		}
		if !ok {
			t.Fatal("expected revoked id to be contained")
		}
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		exp := now().Add(time.Hour)
		for i := 0; i < 3; i++ {
			if err := s.Revoke(ctx, "tok-b", exp); err != nil {
				t.Fatalf("revoke #%d: %v", i, err)
			}
		}
		ok, err := s.Contains(ctx, "tok-b")
		if err != nil || !ok {
			t.Fatalf("expected contained after repeated revoke, ok=%v err=%v", ok, err)
		}
	})

	t.Run("unknown id is not contained", func(t *testing.T) {
		ok, err := s.Contains(ctx, "never-seen")
		if err != nil {
			t.Fatalf("contains: %v", err)
		}
		if ok {
			t.Fatal("expected unknown id to be absent")
		}
	})

	t.Run("consume once", func(t *testing.T) {
		exp := now().Add(time.Hour)
		first, err := s.Consume(ctx, "tok-c", exp)
		if err != nil || !first {
			t.Fatalf("expected first consume to win, ok=%v err=%v", first, err)
		}
		second, err := s.Consume(ctx, "tok-c", exp)
		if err != nil {
			t.Fatalf("second consume: %v", err)
		}
		if second {
			t.Fatal("expected second consume to lose")
		}
		ok, _ := s.Contains(ctx, "tok-c")
		if !ok {
			t.Fatal("expected consumed id to be contained")
		}
	})

	t.Run("consume after revoke loses", func(t *testing.T) {
		exp := now().Add(time.Hour)
		if err := s.Revoke(ctx, "tok-d", exp); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		won, err := s.Consume(ctx, "tok-d", exp)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if won {
			t.Fatal("expected consume of revoked id to lose")
		}
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		const n = 32
		exp := now().Add(time.Hour)

		var wg sync.WaitGroup
		wg.Add(n)
		results := make(chan bool, n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				won, err := s.Consume(ctx, "tok-race", exp)
				if err != nil {
					t.Errorf("consume: %v", err)
					return
				}
				results <- won
			}()
		}
		wg.Wait()
		close(results)

		winners := 0
		for won := range results {
			if won {
				winners++
			}
		}
		if winners != 1 {
			t.Fatalf("expected exactly one winner, got %d", winners)
		}
	})

	t.Run("chain keys share the key space", func(t *testing.T) {
		chain := ChainKey("c-1")
		if err := s.Revoke(ctx, chain, now().Add(time.Hour)); err != nil {
			t.Fatalf("revoke chain: %v", err)
		}
		ok, err := s.Contains(ctx, chain)
		if err != nil || !ok {
			t.Fatalf("expected chain key to be contained, ok=%v err=%v", ok, err)
		}
		ok, _ = s.Contains(ctx, "c-1")
		if ok {
			t.Fatal("expected bare chain id to stay absent")
		}
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		if err := s.Revoke(ctx, "", now().Add(time.Hour)); !errors.Is(err, ErrEmptyTokenID) {
			t.Fatalf("expected ErrEmptyTokenID, got %v", err)
		}
		if _, err := s.Consume(ctx, "", now().Add(time.Hour)); !errors.Is(err, ErrEmptyTokenID) {
			t.Fatalf("expected ErrEmptyTokenID, got %v", err)
		}
	})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryOption configures a [MemoryStore].
type MemoryOption func(*MemoryStore)

// WithMemoryClock injects the time source used for expiry decisions.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// MemoryStore is a process-local [Store]. Expired entries are dropped lazily
// on access and proactively by [MemoryStore.Prune].
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revoke records tokenID until expiresAt. Revoking an id twice keeps the
// later expiry.
func (s *MemoryStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	now := s.now()
	if !expiresAt.After(now) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[tokenID]; !ok || expiresAt.After(cur) {
		s.entries[tokenID] = expiresAt
	}
	return nil
}

// Contains reports whether tokenID is revoked and not yet expired.
func (s *MemoryStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.liveLocked(tokenID, now), nil
}

// Consume claims tokenID under the store mutex. Only the first caller gets true.
func (s *MemoryStore) Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.liveLocked(tokenID, now) {
		return false, nil
	}
	s.entries[tokenID] = retentionUntil(now, expiresAt)
	return true, nil
}

// Prune drops every expired entry and returns how many were removed.
func (s *MemoryStore) Prune() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartJanitor prunes the store every interval until ctx is cancelled.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Prune()
			}
		}
	}()
}

func (s *MemoryStore) liveLocked(tokenID string, now time.Time) bool {
	exp, ok := s.entries[tokenID]
	if !ok {
		return false
	}
	if !exp.After(now) {
		delete(s.entries, tokenID)
		return false
	}
	return true
}

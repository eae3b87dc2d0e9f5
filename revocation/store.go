package revocation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps every transport or driver failure of a backend.
	// It never means "revoked".
	ErrStoreUnavailable = errors.New("revocation store unavailable")
	// ErrEmptyTokenID is returned when an operation is called without a key.
	ErrEmptyTokenID = errors.New("empty token id")
)

// MinRetention is the shortest time a consumed id is remembered, even when
// the token it belongs to is already past its expiry.
const MinRetention = time.Minute

const chainKeyPrefix = "chain:"

// Store records revoked refresh-token ids until they expire.
//
// Implementations must make Revoke followed by Contains linearizable and must
// make Consume an atomic check-and-revoke: for any id, at most one call ever
// observes true.
type Store interface {
	// Revoke marks tokenID revoked until expiresAt. It is idempotent and never
	// shortens an existing entry.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	// Contains reports whether tokenID is currently revoked.
	Contains(ctx context.Context, tokenID string) (bool, error)
	// Consume revokes tokenID and reports whether this call was the one that
	// did it. Already-revoked ids return false.
	Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error)
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChainKey returns the key under which a whole rotation chain is revoked.
// Chain keys share the token-id key space and cannot collide with UUID ids.
func ChainKey(chainID string) string {
	return chainKeyPrefix + chainID
}

func retentionUntil(now, expiresAt time.Time) time.Time {
	floor := now.Add(MinRetention)
	if expiresAt.Before(floor) {
		return floor
	}
	return expiresAt
}

package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	consumeSQL = `
		INSERT INTO revoked_tokens (token_id, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_id) DO UPDATE
			SET revoked_at = EXCLUDED.revoked_at, expires_at = EXCLUDED.expires_at
			WHERE revoked_tokens.expires_at <= EXCLUDED.revoked_at`

	revokeSQL = `
		INSERT INTO revoked_tokens (token_id, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_id) DO UPDATE
			SET expires_at = GREATEST(revoked_tokens.expires_at, EXCLUDED.expires_at)`

	containsSQL = `
		SELECT EXISTS (
			SELECT 1 FROM revoked_tokens WHERE token_id = $1 AND expires_at > $2
		)`

	pruneSQL = `DELETE FROM revoked_tokens WHERE expires_at <= $1`
)

// PostgresOption configures a [PostgresStore].
type PostgresOption func(*PostgresStore)

// WithPostgresClock injects the time source written into revoked_at and used
// for expiry comparisons.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.now = now
		}
	}
}

// PostgresStore keeps revocation entries in the revoked_tokens table. The
// primary key on token_id is what makes Consume single-winner: a second
// insert of the same id conflicts and affects no row unless the earlier
// entry has already expired.
type PostgresStore struct {
	db  DBTX
	now func() time.Time
}

// NewPostgresStore wraps db. Run [Migrate] once before use.
func NewPostgresStore(db DBTX, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revoke upserts the row, keeping the later expires_at.
func (s *PostgresStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	now := s.now().UTC()
	if !expiresAt.After(now) {
		return nil
	}
	if _, err := s.db.Exec(ctx, revokeSQL, tokenID, now, expiresAt.UTC()); err != nil {
		return fmt.Errorf("%w: revoke: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Contains reports whether an unexpired row exists for tokenID.
func (s *PostgresStore) Contains(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	var exists bool
	if err := s.db.QueryRow(ctx, containsSQL, tokenID, s.now().UTC()).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: contains: %v", ErrStoreUnavailable, err)
	}
	return exists, nil
}

// Consume inserts the row, or takes over an expired one, and reports whether
// this call claimed it. The primary key serialises concurrent callers.
func (s *PostgresStore) Consume(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	if tokenID == "" {
		return false, ErrEmptyTokenID
	}
	now := s.now().UTC()
	tag, err := s.db.Exec(ctx, consumeSQL, tokenID, now, retentionUntil(now, expiresAt).UTC())
	if err != nil {
		return false, fmt.Errorf("%w: consume: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Prune deletes expired rows and returns how many were removed.
func (s *PostgresStore) Prune(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, pruneSQL, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks that the database answers queries.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}
	return nil
}

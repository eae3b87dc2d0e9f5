package revocation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface, *fakeClock) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	clock := newFakeClock()
	return NewPostgresStore(mock, WithPostgresClock(clock.Now)), mock, clock
}

func TestPostgresStore_Consume_FirstCallerWins(t *testing.T) {
	store, mock, clock := setupPostgresStore(t)
	defer mock.Close()

	exp := clock.Now().Add(time.Hour)
	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("tok-1", clock.Now(), exp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	won, err := store.Consume(context.Background(), "tok-1", exp)
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Consume_ConflictLoses(t *testing.T) {
	store, mock, clock := setupPostgresStore(t)
	defer mock.Close()

	exp := clock.Now().Add(time.Hour)
	// ON CONFLICT with a live row updates nothing.
	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("tok-1", clock.Now(), exp).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	won, err := store.Consume(context.Background(), "tok-1", exp)
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Consume_ExpiredTokenUsesRetentionFloor(t *testing.T) {
	store, mock, clock := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("tok-1", clock.Now(), clock.Now().Add(MinRetention)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	won, err := store.Consume(context.Background(), "tok-1", clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Consume_DriverErrorIsUnavailable(t *testing.T) {
	store, mock, clock := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("tok-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	won, err := store.Consume(context.Background(), "tok-1", clock.Now().Add(time.Hour))
	assert.False(t, won)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Revoke(t *testing.T) {
	store, mock, clock := setupPostgresStore(t)
	defer mock.Close()

	exp := clock.Now().Add(time.Hour)
	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("tok-1", clock.Now(), exp).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Revoke(context.Background(), "tok-1", exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Revoke_PastExpiryIsNoop(t *testing.T) {
	store, mock, clock := setupPostgresStore(t)
	defer mock.Close()

	require.NoError(t, store.Revoke(context.Background(), "tok-1", clock.Now().Add(-time.Second)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Contains(t *testing.T) {
	store, mock, clock := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tok-1", clock.Now()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tok-2", clock.Now()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := store.Contains(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Contains(context.Background(), "tok-2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Contains_DriverErrorIsUnavailable(t *testing.T) {
	store, mock, _ := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("tok-1", pgxmock.AnyArg()).
		WillReturnError(errors.New("timeout"))

	ok, err := store.Contains(context.Background(), "tok-1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestPostgresStore_Prune(t *testing.T) {
	store, mock, clock := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM revoked_tokens").
		WithArgs(clock.Now()).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := store.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRunsEmbeddedMigrations(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Migrate(context.Background(), nil))
	assert.Equal(t, "migrations", gotDir)

	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestMigratePropagatesGooseError(t *testing.T) {
	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err := Migrate(context.Background(), nil)
	assert.Error(t, err)
}

func TestPostgresStore_Ping(t *testing.T) {
	store, mock, _ := setupPostgresStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT 1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT 1").
		WillReturnError(errors.New("refused"))

	require.NoError(t, store.Ping(context.Background()))
	assert.ErrorIs(t, store.Ping(context.Background()), ErrStoreUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

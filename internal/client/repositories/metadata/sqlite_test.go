package metadata

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key        TEXT PRIMARY KEY,
  value      BLOB NOT NULL,
  expires_at INTEGER NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func newRepo(t *testing.T, now *time.Time) (*SQLiteRepository, *sql.DB) {
	db := setupDB(t)
	r := NewSQLiteRepository(db, 0)
	r.now = func() time.Time { return *now }
	return r, db
}

func TestSetAndGet_InsertThenGet(t *testing.T) {
	now := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	r, _ := newRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyUsername, []byte("Ann K")))

	v, err := r.Get(ctx, KeyUsername)
	require.NoError(t, err)
	require.Equal(t, []byte("Ann K"), v)
}

func TestGet_NotExists_ReturnsNilNil(t *testing.T) {
	now := time.Now()
	r, _ := newRepo(t, &now)

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestGet_ExpiredIsAbsent(t *testing.T) {
	now := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	r, _ := newRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyPassphrase, []byte("secret")))

	now = now.Add(DefaultTTL - time.Second)
	v, err := r.Get(ctx, KeyPassphrase)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), v)

	now = now.Add(time.Second)
	v, err = r.Get(ctx, KeyPassphrase)
	require.NoError(t, err)
	require.Nil(t, v)

	n, err := r.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSet_RefreshesExpiry(t *testing.T) {
	now := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	r, _ := newRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("old")))
	now = now.Add(DefaultTTL / 2)
	require.NoError(t, r.Set(ctx, "k", []byte("new")))
	now = now.Add(DefaultTTL/2 + time.Hour)

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("new"), v)
}

func TestDelete_RemovesKey_AndIsIdempotent(t *testing.T) {
	now := time.Now()
	r, _ := newRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "x", []byte{0x01}))
	require.NoError(t, r.Delete(ctx, "x"))

	v, err := r.Get(ctx, "x")
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, r.Delete(ctx, "x"))
}

func TestClear_RemovesAllKeys(t *testing.T) {
	now := time.Now()
	r, _ := newRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeyPassphrase, []byte{1}))
	require.NoError(t, r.Set(ctx, KeyUsername, []byte{2}))
	require.NoError(t, r.Clear(ctx))

	for _, k := range []string{KeyPassphrase, KeyUsername} {
		v, err := r.Get(ctx, k)
		require.NoError(t, err)
		assert.Nil(t, v, k)
	}
}

func TestErrorsAreWrapped(t *testing.T) {
	now := time.Now()
	r, db := newRepo(t, &now)
	ctx := context.Background()

	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get metadata[k]")

	err = r.Set(ctx, "k", []byte("v"))
	require.ErrorContains(t, err, "failed to set metadata[k]")

	err = r.Delete(ctx, "k")
	require.ErrorContains(t, err, "failed to delete metadata[k]")

	err = r.Clear(ctx)
	require.ErrorContains(t, err, "failed to clear metadata")

	_, err = r.Purge(ctx)
	require.ErrorContains(t, err, "failed to purge metadata")
}

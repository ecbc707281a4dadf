package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/waffle/internal/dbx"
)

// DefaultTTL matches how long a remembered login lasts.
const DefaultTTL = 365 * 24 * time.Hour

type SQLiteRepository struct {
	db  dbx.DBTX
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteRepository returns a repository whose entries live for ttl after
// their last Set. A non-positive ttl means DefaultTTL.
func NewSQLiteRepository(db dbx.DBTX, ttl time.Duration) *SQLiteRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SQLiteRepository{db: db, ttl: ttl, now: time.Now}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ? AND expires_at > ?`,
		key, r.now().Unix()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	expires := r.now().Add(r.ttl).Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expires)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM metadata`)
	if err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (r *SQLiteRepository) Purge(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE expires_at <= ?`, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge metadata: %w", err)
	}
	return res.RowsAffected()
}

// Package pgstore keeps the post files in a single PostgreSQL table. Unlike
// the Gist and S3 backends, every batch is applied in one transaction.
package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/dbx"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const rawScheme = "pg://"

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db  *sql.DB
	log logging.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects with the pgx driver and applies migrations.
func Open(ctx context.Context, dsn string, log logging.Logger) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return New(db, log), nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// New wraps an already migrated database.
func New(db *sql.DB, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop{}
	}
	return &Store{db: db, log: log.With("store", "postgres")}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Read(ctx context.Context) (*store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, content FROM files ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: select files: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	snap := &store.Snapshot{Files: map[string]store.File{}}
	for rows.Next() {
		var name, content string
		if err := rows.Scan(&name, &content); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", common.ErrStoreUnavailable, err)
		}
		snap.Files[name] = store.File{Content: content, RawURL: rawScheme + name, Size: int64(len(content))}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", common.ErrStoreUnavailable, err)
	}
	return snap, nil
}

// Write applies the batch in one transaction, in key order.
func (s *Store) Write(ctx context.Context, m store.Mutations) error {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, k := range keys {
			if m[k] == nil {
				if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE name = $1`, k); err != nil {
					return fmt.Errorf("delete %s: %w", k, err)
				}
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO files (name, content, updated_at)
				VALUES ($1, $2, now())
				ON CONFLICT (name)
				DO UPDATE SET content = EXCLUDED.content, updated_at = now()`, k, *m[k])
			if err != nil {
				return fmt.Errorf("upsert %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	s.log.Debug(ctx, "postgres write", "files", len(m))
	return nil
}

// FetchRaw loads one file by its pg:// location.
func (s *Store) FetchRaw(ctx context.Context, rawURL string) (string, error) {
	name, ok := strings.CutPrefix(rawURL, rawScheme)
	if !ok {
		return "", fmt.Errorf("unsupported raw location %q", rawURL)
	}

	var content string
	err := s.db.QueryRowContext(ctx, `SELECT content FROM files WHERE name = $1`, name).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", name, common.ErrNotFound)
		}
		return "", fmt.Errorf("%w: select %s: %v", common.ErrStoreUnavailable, name, err)
	}
	return content, nil
}

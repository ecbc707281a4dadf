package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/waffle/internal/client/migrations"
	"github.com/dmitrijs2005/waffle/internal/client/repositories/metadata"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Repositories bundles the local stores opened by InitDatabase.
type Repositories struct {
	DB       *sql.DB
	Metadata metadata.Repository
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the SQLite file at dsn, applies
// migrations, drops expired cache rows and wires the repositories. ttl is
// how long cached credentials stay valid.
func InitDatabase(ctx context.Context, dsn string, ttl time.Duration) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	meta := metadata.NewSQLiteRepository(db, ttl)
	if _, err := meta.Purge(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:       db,
		Metadata: meta,
	}, nil
}

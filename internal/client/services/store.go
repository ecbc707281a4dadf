package services

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/waffle/internal/client/config"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/store"
	"github.com/dmitrijs2005/waffle/internal/store/gist"
	"github.com/dmitrijs2005/waffle/internal/store/memory"
	"github.com/dmitrijs2005/waffle/internal/store/pgstore"
	"github.com/dmitrijs2005/waffle/internal/store/s3store"
)

// memoryInlineLimit mirrors the size above which the Gist API truncates.
const memoryInlineLimit = 1 << 20

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore builds the configured backend. For the Gist backend the
// credentials name the gist and carry its token. For S3 the store ID is the
// bucket unless one is configured; for Postgres the token is the DSN unless
// one is configured.
func OpenStore(ctx context.Context, cfg *config.Config, creds *Credentials, log logging.Logger) (store.Store, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendGist:
		c, err := gist.New(gist.Config{
			APIBase:           cfg.GistAPIBase,
			GistID:            creds.StoreID,
			Token:             creds.Token,
			Timeout:           cfg.RequestTimeout,
			RequestsPerSecond: cfg.APIRateLimit,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil

	case config.BackendMemory:
		return memory.New(memoryInlineLimit), nopCloser{}, nil

	case config.BackendS3:
		bucket := cfg.S3.Bucket
		if bucket == "" {
			bucket = creds.StoreID
		}
		s, err := s3store.New(ctx, s3store.Config{
			Bucket:    bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil

	case config.BackendPostgres:
		dsn := cfg.DatabaseDSN
		if dsn == "" {
			dsn = creds.Token
		}
		s, err := pgstore.Open(ctx, dsn, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

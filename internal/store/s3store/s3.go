// Package s3store keeps the post files as objects in an S3-compatible bucket
// (AWS, MinIO). Large objects are listed truncated with a presigned GET URL,
// the same contract the Gist backend follows.
//
// A bucket has no multi-object transaction, so Write is not atomic: it
// uploads fragments, then metadata files, then deletes, and stops at the
// first failure.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/netx"
	"github.com/dmitrijs2005/waffle/internal/store"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultInlineLimit matches the size above which the Gist API stops
	// returning file content inline.
	DefaultInlineLimit = 1 << 20

	defaultPresignTTL = 15 * time.Minute
	maxDeleteBatch    = 1000
	maxParallelGets   = 8
)

// API is the subset of *s3.Client the store uses.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Presigner is the subset of *s3.PresignClient the store uses.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config holds bucket settings. Endpoint enables path-style addressing for
// MinIO and other S3-compatible servers.
type Config struct {
	Bucket      string
	Prefix      string
	Region      string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	InlineLimit int64
	PresignTTL  time.Duration
}

// Store is an S3-backed store.Store.
type Store struct {
	api       API
	presigner Presigner
	http      *http.Client
	cfg       Config
	log       logging.Logger
}

var _ store.Store = (*Store)(nil)

var loadDefaultAWSConfig = config.LoadDefaultConfig

// New builds the AWS client from cfg.
func New(ctx context.Context, cfg Config, log logging.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, s3.NewPresignClient(client), cfg, log), nil
}

// NewWithAPI wires the store to explicit clients.
func NewWithAPI(api API, presigner Presigner, cfg Config, log logging.Logger) *Store {
	if cfg.InlineLimit <= 0 {
		cfg.InlineLimit = DefaultInlineLimit
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = defaultPresignTTL
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Store{
		api:       api,
		presigner: presigner,
		http:      &http.Client{Timeout: 60 * time.Second},
		cfg:       cfg,
		log:       log.With("store", "s3", "bucket", cfg.Bucket),
	}
}

func (s *Store) objectKey(name string) string {
	return s.cfg.Prefix + name
}

// Read lists the bucket prefix and loads small objects inline.
func (s *Store) Read(ctx context.Context) (*store.Snapshot, error) {
	var (
		mu   sync.Mutex
		snap = &store.Snapshot{Files: map[string]store.File{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelGets)

	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(s.cfg.Prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("%w: list objects: %v", common.ErrStoreUnavailable, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			size := aws.ToInt64(obj.Size)
			name := strings.TrimPrefix(key, s.cfg.Prefix)

			g.Go(func() error {
				f, err := s.load(gctx, key, size)
				if err != nil {
					return err
				}
				mu.Lock()
				snap.Files[name] = f
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return snap, nil
}

func (s *Store) load(ctx context.Context, key string, size int64) (store.File, error) {
	if size > s.cfg.InlineLimit {
		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.cfg.PresignTTL))
		if err != nil {
			return store.File{}, fmt.Errorf("presign %s: %w", key, err)
		}
		return store.File{Truncated: true, RawURL: req.URL, Size: size}, nil
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return store.File{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return store.File{}, fmt.Errorf("read %s: %w", key, err)
	}
	return store.File{Content: string(b), Size: size}, nil
}

// Write uploads fragments before metadata files and then removes deleted
// keys in batches. S3 has no multi-object transaction; ordering the uploads
// this way means a reader never sees metadata whose fragments are missing.
func (s *Store) Write(ctx context.Context, m store.Mutations) error {
	var puts, deletes []string
	for k, v := range m {
		if v == nil {
			deletes = append(deletes, k)
		} else {
			puts = append(puts, k)
		}
	}
	sort.Slice(puts, func(i, j int) bool {
		mi, mj := strings.HasSuffix(puts[i], ".json"), strings.HasSuffix(puts[j], ".json")
		if mi != mj {
			return !mi
		}
		return puts[i] < puts[j]
	})
	sort.Strings(deletes)

	for _, k := range puts {
		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(s.objectKey(k)),
			Body:        strings.NewReader(*m[k]),
			ContentType: aws.String("text/plain; charset=utf-8"),
		})
		if err != nil {
			return fmt.Errorf("%w: put %s: %v", common.ErrStoreUnavailable, k, err)
		}
	}

	for start := 0; start < len(deletes); start += maxDeleteBatch {
		batch := deletes[start:min(start+maxDeleteBatch, len(deletes))]
		ids := make([]types.ObjectIdentifier, 0, len(batch))
		for _, k := range batch {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(s.objectKey(k))})
		}
		out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.cfg.Bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("%w: delete objects: %v", common.ErrStoreUnavailable, err)
		}
		if len(out.Errors) > 0 {
			return fmt.Errorf("%w: delete %s: %s", common.ErrStoreUnavailable,
				aws.ToString(out.Errors[0].Key), aws.ToString(out.Errors[0].Message))
		}
	}

	s.log.Debug(ctx, "s3 write", "puts", len(puts), "deletes", len(deletes))
	return nil
}

// FetchRaw downloads a presigned object URL.
func (s *Store) FetchRaw(ctx context.Context, rawURL string) (string, error) {
	text, err := netx.GetText(ctx, s.http, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: fetch raw: %v", common.ErrStoreUnavailable, err)
	}
	return text, nil
}

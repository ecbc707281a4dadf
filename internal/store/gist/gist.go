// Package gist implements the store on top of a GitHub Gist: every post and
// fragment is one file of a single secret gist.
package gist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/netx"
	"github.com/dmitrijs2005/waffle/internal/store"
	"golang.org/x/time/rate"
)

// DefaultAPIBase is the public GitHub REST endpoint.
const DefaultAPIBase = "https://api.github.com"

const acceptHeader = "application/vnd.github+json"

// Config selects the gist and tunes the HTTP client.
type Config struct {
	APIBase           string
	GistID            string
	Token             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client talks to the Gist REST API. It is safe for concurrent use.
type Client struct {
	base    string
	gistID  string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     logging.Logger
}

var _ store.Store = (*Client)(nil)

// New validates cfg and returns a Client.
func New(cfg Config, log logging.Logger) (*Client, error) {
	if cfg.GistID == "" || cfg.Token == "" {
		return nil, errors.New("gist id and token are required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if log == nil {
		log = logging.Nop{}
	}

	return &Client{
		base:    strings.TrimRight(cfg.APIBase, "/"),
		gistID:  cfg.GistID,
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		log:     log.With("store", "gist"),
	}, nil
}

type gistFile struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	RawURL    string `json:"raw_url"`
	Size      int64  `json:"size"`
}

type gistDocument struct {
	Files     map[string]*gistFile `json:"files"`
	Truncated bool                 `json:"truncated"`
}

type fileContent struct {
	Content string `json:"content"`
}

type patchRequest struct {
	Files map[string]*fileContent `json:"files"`
}

func (c *Client) url() string {
	return c.base + "/gists/" + c.gistID
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "token "+c.token)
	h.Set("Accept", acceptHeader)
	return h
}

// Read fetches the gist and returns its files.
func (c *Client) Read(ctx context.Context) (*store.Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := netx.GetText(ctx, c.http, c.url(), c.header())
	if err != nil {
		return nil, fmt.Errorf("%w: fetch gist: %v", common.ErrStoreUnavailable, err)
	}

	var doc gistDocument
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: decode gist: %v", common.ErrStoreUnavailable, err)
	}
	if doc.Truncated {
		c.log.Warn(ctx, "gist listing truncated by the API; some files are not visible")
	}

	snap := &store.Snapshot{Files: make(map[string]store.File, len(doc.Files))}
	for name, f := range doc.Files {
		if f == nil {
			continue
		}
		snap.Files[name] = store.File{
			Content:   f.Content,
			Truncated: f.Truncated,
			RawURL:    f.RawURL,
			Size:      f.Size,
		}
	}
	c.log.Debug(ctx, "gist read", "files", len(snap.Files))
	return snap, nil
}

// Write sends the whole batch as one PATCH. Deleted keys are sent as null.
func (c *Client) Write(ctx context.Context, m store.Mutations) error {
	if len(m) == 0 {
		return nil
	}

	req := patchRequest{Files: make(map[string]*fileContent, len(m))}
	for k, v := range m {
		if v == nil {
			req.Files[k] = nil
			continue
		}
		req.Files[k] = &fileContent{Content: *v}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.url(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header = c.header()
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: update gist: %v", common.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: update gist: %s", common.ErrStoreUnavailable, resp.Status)
	}

	c.log.Debug(ctx, "gist updated", "files", len(m))
	return nil
}

// FetchRaw downloads the full content of a truncated file.
func (c *Client) FetchRaw(ctx context.Context, rawURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	h := http.Header{}
	h.Set("Authorization", "token "+c.token)

	text, err := netx.GetText(ctx, c.http, rawURL, h)
	if err != nil {
		return "", fmt.Errorf("%w: fetch raw: %v", common.ErrStoreUnavailable, err)
	}
	return text, nil
}

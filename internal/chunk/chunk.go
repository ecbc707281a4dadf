// Package chunk splits a base64 attachment into store-sized segments and
// reassembles it from fragment references, fetching truncated or missing
// content from its remote location.
package chunk

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"golang.org/x/sync/errgroup"
)

// SegmentSize is the maximum encoded length of one fragment, in characters.
// It keeps each fragment file under the store's per-file ceiling.
const SegmentSize = 700 * 1024

// DefaultMimeType is used when a voice post does not record one.
const DefaultMimeType = "audio/webm"

const maxParallelFetches = 4

// Ref describes one fragment of an attachment as listed by the store.
type Ref struct {
	Index     int
	Content   string // text delivered with the listing, possibly cut short
	Inline    bool   // Content was delivered at all
	Truncated bool
	RawURL    string
	Size      int64
}

// Remote reports whether the fragment must be fetched from RawURL.
func (r Ref) Remote() bool {
	return !r.Inline || r.Truncated
}

// Fetcher retrieves the full text behind a fragment's raw location.
type Fetcher interface {
	FetchRaw(ctx context.Context, rawURL string) (string, error)
}

// Blob is a reassembled attachment.
type Blob struct {
	MimeType string
	Data     []byte
}

// Split cuts payload into consecutive segments of at most size characters.
// An empty payload yields no segments. A non-positive size means SegmentSize.
func Split(payload string, size int) []string {
	if size <= 0 {
		size = SegmentSize
	}
	segments := make([]string, 0, (len(payload)+size-1)/size)
	for start := 0; start < len(payload); start += size {
		end := min(start+size, len(payload))
		segments = append(segments, payload[start:end])
	}
	return segments
}

// Assembler rebuilds attachments from fragment references.
type Assembler struct {
	fetcher Fetcher
	log     logging.Logger
}

func NewAssembler(fetcher Fetcher, log logging.Logger) *Assembler {
	if log == nil {
		log = logging.Nop{}
	}
	return &Assembler{fetcher: fetcher, log: log}
}

// AssembleText returns the concatenated base64 text of all fragments in index
// order. It fails with common.ErrIncompleteAssembly when the fragment set does
// not cover exactly 0..declared-1, or when any remote fetch fails; the count
// and index checks run before any network access.
func (a *Assembler) AssembleText(ctx context.Context, refs []Ref, declared int) (string, error) {
	ordered, err := order(refs, declared)
	if err != nil {
		return "", err
	}

	if a.fetcher == nil {
		for _, r := range ordered {
			if r.Remote() {
				return "", fmt.Errorf("%w: fragment %d needs a fetch and no fetcher is configured", common.ErrIncompleteAssembly, r.Index)
			}
		}
	}

	parts := make([]string, declared)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)

	for i, r := range ordered {
		if !r.Remote() {
			parts[i] = strings.TrimSpace(r.Content)
			continue
		}
		g.Go(func() error {
			a.log.Debug(gctx, "fetching fragment", "index", i, "size", r.Size)
			text, err := a.fetcher.FetchRaw(gctx, r.RawURL)
			if err != nil {
				return fmt.Errorf("%w: fragment %d: %v", common.ErrIncompleteAssembly, i, err)
			}
			parts[i] = strings.TrimSpace(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(parts, ""), nil
}

// Assemble rebuilds the attachment bytes and tags them with mimeType.
func (a *Assembler) Assemble(ctx context.Context, refs []Ref, declared int, mimeType string) (*Blob, error) {
	text, err := a.AssembleText(ctx, refs, declared)
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", common.ErrIncompleteAssembly, err)
	}

	if mimeType == "" {
		mimeType = DefaultMimeType
	}
	return &Blob{MimeType: mimeType, Data: data}, nil
}

// order places refs by their declared index and checks the set is complete.
func order(refs []Ref, declared int) ([]Ref, error) {
	if declared < 0 || len(refs) != declared {
		return nil, fmt.Errorf("%w: have %d of %d fragments", common.ErrIncompleteAssembly, len(refs), declared)
	}

	ordered := make([]Ref, declared)
	seen := make([]bool, declared)
	for _, r := range refs {
		if r.Index < 0 || r.Index >= declared || seen[r.Index] {
			return nil, fmt.Errorf("%w: unexpected fragment index %d", common.ErrIncompleteAssembly, r.Index)
		}
		if r.Remote() && r.RawURL == "" {
			return nil, fmt.Errorf("%w: fragment %d has no content and no location", common.ErrIncompleteAssembly, r.Index)
		}
		seen[r.Index] = true
		ordered[r.Index] = r
	}
	return ordered, nil
}

package posts

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/waffle/internal/chunk"
	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/store"
	"github.com/dmitrijs2005/waffle/internal/week"
)

// Repository reads and writes posts through a store.Store.
type Repository struct {
	store     store.Store
	assembler *chunk.Assembler
	clock     *week.Clock
	now       func() time.Time
	log       logging.Logger

	malformed  atomic.Int64
	incomplete atomic.Int64
}

type Option func(*Repository)

// WithNow replaces the wall clock used to stamp new posts.
func WithNow(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithClock makes create calls reject a week that does not contain the
// creation instant.
func WithClock(c *week.Clock) Option {
	return func(r *Repository) { r.clock = c }
}

func NewRepository(s store.Store, log logging.Logger, opts ...Option) *Repository {
	if log == nil {
		log = logging.Nop{}
	}
	r := &Repository{
		store:     s,
		assembler: chunk.NewAssembler(s, log),
		now:       time.Now,
		log:       log.With("component", "posts"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// List returns the posts matching filter, newest first. Equal timestamps
// are ordered by key. Malformed records, records whose weekKey disagrees
// with their key and voice posts with missing fragments are skipped.
func (r *Repository) List(ctx context.Context, filter WeekFilter) ([]Post, error) {
	snap, err := r.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, snap, filter), nil
}

// HasPosted reports whether any metadata key starts with
// {week}_{sanitized author}.
func (r *Repository) HasPosted(ctx context.Context, w week.ID, author string) (bool, error) {
	snap, err := r.store.Read(ctx)
	if err != nil {
		return false, err
	}
	return hasPosted(snap, w, author), nil
}

// WeekView is one week of a feed as seen by a given author.
type WeekView struct {
	Week   week.ID
	Posted bool
	Posts  []Post
}

// Overview lists several weeks from a single read of the store. Posted is
// set when one of the week's posts is by author.
func (r *Repository) Overview(ctx context.Context, weeks []week.ID, author string) ([]WeekView, error) {
	snap, err := r.store.Read(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]WeekView, 0, len(weeks))
	for _, w := range weeks {
		list := r.collect(ctx, snap, ForWeek(w))
		views = append(views, WeekView{
			Week:   w,
			Posted: authored(list, author),
			Posts:  list,
		})
	}
	return views, nil
}

// authored reports whether author wrote any of list. Names are compared
// exactly, unlike the key prefix used by HasPosted.
func authored(list []Post, author string) bool {
	for _, p := range list {
		if p.Head().Author == author {
			return true
		}
	}
	return false
}

// CreateText stores a text post in one write.
func (r *Repository) CreateText(ctx context.Context, w week.ID, author, content string) (*TextPost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty post", common.ErrValidation)
	}
	if n := utf8.RuneCountInString(content); n > MaxTextLength {
		return nil, fmt.Errorf("%w: post is %d characters, limit is %d", common.ErrValidation, n, MaxTextLength)
	}

	h, err := r.header(w, author)
	if err != nil {
		return nil, err
	}

	body, err := encodeRecord(record{
		Type:      KindText,
		Author:    h.Author,
		Content:   content,
		Timestamp: h.Timestamp,
		WeekKey:   w.String(),
	})
	if err != nil {
		return nil, err
	}

	m := store.Mutations{}
	m.Put(h.Key, body)
	if err := r.store.Write(ctx, m); err != nil {
		return nil, fmt.Errorf("create text post: %w", err)
	}

	r.log.Info(ctx, "text post created", "key", h.Key)
	return &TextPost{Header: h, Content: content}, nil
}

// CreateVoice splits audioBase64 into fragments and stores the metadata
// file and every fragment in one write.
func (r *Repository) CreateVoice(ctx context.Context, w week.ID, author, audioBase64, mimeType string) (*VoicePost, error) {
	if audioBase64 == "" {
		return nil, fmt.Errorf("%w: empty recording", common.ErrValidation)
	}
	if _, err := base64.StdEncoding.DecodeString(audioBase64); err != nil {
		return nil, fmt.Errorf("%w: recording is not base64: %v", common.ErrValidation, err)
	}

	h, err := r.header(w, author)
	if err != nil {
		return nil, err
	}

	segments := chunk.Split(audioBase64, chunk.SegmentSize)
	body, err := encodeRecord(record{
		Type:      KindVoice,
		Author:    h.Author,
		Chunks:    len(segments),
		MimeType:  mimeType,
		Timestamp: h.Timestamp,
		WeekKey:   w.String(),
	})
	if err != nil {
		return nil, err
	}

	stem := stemOf(h.Key)
	m := store.Mutations{}
	m.Put(h.Key, body)
	refs := make([]chunk.Ref, len(segments))
	for i, seg := range segments {
		m.Put(ChunkKey(stem, i), seg)
		refs[i] = chunk.Ref{Index: i, Content: seg, Inline: true, Size: int64(len(seg))}
	}

	if err := r.store.Write(ctx, m); err != nil {
		return nil, fmt.Errorf("create voice post: %w", err)
	}

	r.log.Info(ctx, "voice post created", "key", h.Key, "chunks", len(segments))
	return &VoicePost{Header: h, ChunkCount: len(segments), MimeType: mimeType, Chunks: refs}, nil
}

// Audio rebuilds the recording of a voice post.
func (r *Repository) Audio(ctx context.Context, v *VoicePost) (*chunk.Blob, error) {
	blob, err := r.assembler.Assemble(ctx, v.Chunks, v.ChunkCount, v.MimeType)
	if err != nil {
		if errors.Is(err, common.ErrIncompleteAssembly) {
			r.incomplete.Add(1)
			r.log.Warn(ctx, "voice post unavailable", "key", v.Key, "err", err)
		}
		return nil, err
	}
	return blob, nil
}

func (r *Repository) Stats() Stats {
	return Stats{Malformed: r.malformed.Load(), Incomplete: r.incomplete.Load()}
}

func (r *Repository) header(w week.ID, author string) (Header, error) {
	author = strings.TrimSpace(author)
	if author == "" {
		return Header{}, fmt.Errorf("%w: author is empty", common.ErrValidation)
	}
	if !w.Valid() {
		return Header{}, fmt.Errorf("%w: invalid week %q", common.ErrValidation, w)
	}

	now := r.now()
	if r.clock != nil && !r.clock.Contains(w, now) {
		return Header{}, fmt.Errorf("%w: %s does not contain %s", common.ErrValidation, w, now.Format(time.RFC3339))
	}

	ts := now.UnixMilli()
	return Header{Key: MetaKey(w, author, ts), Author: author, Timestamp: ts, Week: w}, nil
}

func (r *Repository) collect(ctx context.Context, snap *store.Snapshot, filter WeekFilter) []Post {
	var out []Post
	for _, key := range snap.Keys() {
		if !IsMetaKey(key) {
			continue
		}
		rec, err := decodeRecord(snap.Files[key].Content)
		if err != nil {
			r.malformed.Add(1)
			r.log.Warn(ctx, "skipping malformed post", "key", key, "err", err)
			continue
		}
		w := week.ID(rec.WeekKey)
		if w != keyWeek(key) {
			r.malformed.Add(1)
			r.log.Warn(ctx, "skipping post filed under another week", "key", key, "weekKey", w)
			continue
		}
		if !filter.match(w) {
			continue
		}

		h := Header{Key: key, Author: rec.Author, Timestamp: rec.Timestamp, Week: w}
		switch rec.Type {
		case KindText:
			out = append(out, &TextPost{Header: h, Content: rec.Content})
		case KindVoice:
			refs, ok := fragments(snap, stemOf(key), rec.Chunks)
			if !ok {
				r.incomplete.Add(1)
				r.log.Warn(ctx, "skipping incomplete voice post", "key", key, "chunks", rec.Chunks)
				continue
			}
			out = append(out, &VoicePost{Header: h, ChunkCount: rec.Chunks, MimeType: rec.MimeType, Chunks: refs})
		}
	}

	slices.SortStableFunc(out, func(a, b Post) int {
		ha, hb := a.Head(), b.Head()
		if c := cmp.Compare(hb.Timestamp, ha.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(ha.Key, hb.Key)
	})
	return out
}

// fragments looks up {stem}_chunk{i}.txt for every i in [0, count).
func fragments(snap *store.Snapshot, stem string, count int) ([]chunk.Ref, bool) {
	refs := make([]chunk.Ref, 0, count)
	for i := 0; i < count; i++ {
		f, ok := snap.Files[ChunkKey(stem, i)]
		if !ok {
			return nil, false
		}
		refs = append(refs, chunk.Ref{
			Index:     i,
			Content:   f.Content,
			Inline:    f.Content != "",
			Truncated: f.Truncated,
			RawURL:    f.RawURL,
			Size:      f.Size,
		})
	}
	return refs, true
}

func hasPosted(snap *store.Snapshot, w week.ID, author string) bool {
	prefix := authorPrefix(w, author)
	for key := range snap.Files {
		if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, metaExt) {
			return true
		}
	}
	return false
}

package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/waffle/internal/chunk"
	"github.com/dmitrijs2005/waffle/internal/cleanup"
	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/posts"
	"github.com/dmitrijs2005/waffle/internal/store"
	"github.com/dmitrijs2005/waffle/internal/week"
)

// FeedPost is a post as shown in a feed.
type FeedPost struct {
	Post posts.Post
	Late bool
}

// AuthorGroup holds one author's posts of a week.
type AuthorGroup struct {
	Author string
	Posts  []FeedPost
}

// WeekFeed is one week of the feed. Locked weeks carry author names only.
type WeekFeed struct {
	Week     week.ID
	Label    string
	Current  bool
	Unlocked bool
	Authors  []string
	Groups   []AuthorGroup
}

// Feed is what the user sees after loading.
type Feed struct {
	Current        week.ID
	PostedThisWeek bool
	Weeks          []WeekFeed
}

// FeedService defines the feed operations for the CLI.
type FeedService interface {
	Load(ctx context.Context, username string) (*Feed, error)
	All(ctx context.Context) ([]FeedPost, error)
	PostText(ctx context.Context, username, content string) (*posts.TextPost, error)
	PostVoice(ctx context.Context, username string, audio []byte, mimeType string) (*posts.VoicePost, error)
	Play(ctx context.Context, v *posts.VoicePost) (*chunk.Blob, error)
	Cleanup(ctx context.Context) (int, error)
	StartCleanup(ctx context.Context, schedule string, sink cleanup.ErrorSink) (stop func(), err error)
	CurrentWeek() week.ID
	Stats() posts.Stats
}

// FeedOptions tune a feedService.
type FeedOptions struct {
	PropagationDelay time.Duration
	MaxVoiceBytes    int64
	Now              func() time.Time
}

type feedService struct {
	repo  *posts.Repository
	job   *cleanup.Job
	clock *week.Clock
	opts  FeedOptions
	log   logging.Logger
}

// NewFeedService wires a repository and a cleanup job over s.
func NewFeedService(s store.Store, clock *week.Clock, opts FeedOptions, log logging.Logger) FeedService {
	if log == nil {
		log = logging.Nop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &feedService{
		repo:  posts.NewRepository(s, log, posts.WithNow(opts.Now), posts.WithClock(clock)),
		job:   cleanup.NewJob(s, clock, log, cleanup.WithNow(opts.Now)),
		clock: clock,
		opts:  opts,
		log:   log.With("component", "feed"),
	}
}

func (f *feedService) CurrentWeek() week.ID {
	return f.clock.Current(f.opts.Now())
}

func (f *feedService) Stats() posts.Stats {
	return f.repo.Stats()
}

// Load reads the current and previous week in one store read. A week is
// unlocked once the user has posted in it.
func (f *feedService) Load(ctx context.Context, username string) (*Feed, error) {
	current := f.CurrentWeek()
	views, err := f.repo.Overview(ctx, week.Visible(current), username)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	feed := &Feed{Current: current}
	for _, v := range views {
		wf := WeekFeed{
			Week:     v.Week,
			Label:    f.clock.Label(v.Week),
			Current:  v.Week == current,
			Unlocked: v.Posted,
		}
		groups := f.group(v.Posts)
		for _, g := range groups {
			wf.Authors = append(wf.Authors, g.Author)
		}
		if wf.Unlocked {
			wf.Groups = groups
		}
		if wf.Current {
			feed.PostedThisWeek = v.Posted
		}
		feed.Weeks = append(feed.Weeks, wf)
	}
	return feed, nil
}

// All lists every post in the store, newest first, regardless of week.
func (f *feedService) All(ctx context.Context) ([]FeedPost, error) {
	list, err := f.repo.List(ctx, posts.AllWeeks())
	if err != nil {
		return nil, err
	}
	out := make([]FeedPost, 0, len(list))
	for _, p := range list {
		out = append(out, f.feedPost(p))
	}
	return out, nil
}

func (f *feedService) PostText(ctx context.Context, username, content string) (*posts.TextPost, error) {
	w, err := f.canPost(ctx, username)
	if err != nil {
		return nil, err
	}
	p, err := f.repo.CreateText(ctx, w, username, content)
	if err != nil {
		return nil, err
	}
	f.settle(ctx)
	return p, nil
}

func (f *feedService) PostVoice(ctx context.Context, username string, audio []byte, mimeType string) (*posts.VoicePost, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty recording", common.ErrValidation)
	}
	if f.opts.MaxVoiceBytes > 0 && int64(len(audio)) > f.opts.MaxVoiceBytes {
		return nil, fmt.Errorf("%w: recording is %d bytes, limit is %d", common.ErrValidation, len(audio), f.opts.MaxVoiceBytes)
	}
	w, err := f.canPost(ctx, username)
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = chunk.DefaultMimeType
	}

	p, err := f.repo.CreateVoice(ctx, w, username, base64.StdEncoding.EncodeToString(audio), mimeType)
	if err != nil {
		return nil, err
	}
	f.settle(ctx)
	return p, nil
}

func (f *feedService) Play(ctx context.Context, v *posts.VoicePost) (*chunk.Blob, error) {
	return f.repo.Audio(ctx, v)
}

func (f *feedService) Cleanup(ctx context.Context) (int, error) {
	return f.job.Run(ctx)
}

// StartCleanup runs cleanup in the background now and on schedule until
// stop is called.
func (f *feedService) StartCleanup(ctx context.Context, schedule string, sink cleanup.ErrorSink) (func(), error) {
	r := cleanup.NewRunner(f.job, schedule, sink, f.log)
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	return r.Stop, nil
}

// canPost refuses a second post by the same author in the current week.
func (f *feedService) canPost(ctx context.Context, username string) (week.ID, error) {
	w := f.CurrentWeek()
	views, err := f.repo.Overview(ctx, []week.ID{w}, username)
	if err != nil {
		return "", err
	}
	if views[0].Posted {
		return "", common.ErrAlreadyPosted
	}
	return w, nil
}

// settle waits for the store to make a fresh write visible to reads, or
// until ctx is done.
func (f *feedService) settle(ctx context.Context) {
	if f.opts.PropagationDelay <= 0 {
		return
	}
	t := time.NewTimer(f.opts.PropagationDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (f *feedService) feedPost(p posts.Post) FeedPost {
	h := p.Head()
	return FeedPost{Post: p, Late: !f.clock.IsOnTime(h.Time(), h.Week)}
}

// group buckets posts by author, authors in name order; each author's posts
// keep the repository's newest-first order.
func (f *feedService) group(list []posts.Post) []AuthorGroup {
	idx := map[string]int{}
	var groups []AuthorGroup
	for _, p := range list {
		a := p.Head().Author
		i, ok := idx[a]
		if !ok {
			i = len(groups)
			idx[a] = i
			groups = append(groups, AuthorGroup{Author: a})
		}
		groups[i].Posts = append(groups[i].Posts, f.feedPost(p))
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Author < groups[j].Author })
	return groups
}

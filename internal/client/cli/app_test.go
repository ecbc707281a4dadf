package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/waffle/internal/chunk"
	"github.com/dmitrijs2005/waffle/internal/cleanup"
	"github.com/dmitrijs2005/waffle/internal/client/config"
	"github.com/dmitrijs2005/waffle/internal/client/services"
	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/posts"
	"github.com/dmitrijs2005/waffle/internal/store"
	"github.com/dmitrijs2005/waffle/internal/store/memory"
	"github.com/dmitrijs2005/waffle/internal/week"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

const w07 = week.ID("2026-W07")

// Thursday Feb 12 2026, 12:00 at UTC-05:00.
const thursdayMs = int64(1770915600000)

// ---- fakes ----

type fakeAuth struct {
	resumeErr   error
	passphrase  string
	username    string
	unlockCalls int
	loggedOut   bool
}

func (f *fakeAuth) Unlock(_ context.Context, pass string) (*services.Credentials, error) {
	f.unlockCalls++
	if pass != f.passphrase {
		return nil, common.ErrAuthenticationFailed
	}
	return &services.Credentials{StoreID: "g1", Token: "t1"}, nil
}

func (f *fakeAuth) Resume(context.Context) (*services.Credentials, error) {
	if f.resumeErr != nil {
		return nil, f.resumeErr
	}
	return &services.Credentials{StoreID: "g1", Token: "t1"}, nil
}

func (f *fakeAuth) SetUsername(_ context.Context, first, last string) (string, error) {
	name, err := services.MakeUsername(first, last)
	if err != nil {
		return "", err
	}
	f.username = name
	return name, nil
}

func (f *fakeAuth) Username(context.Context) (string, error) {
	if f.username == "" {
		return "", fmt.Errorf("username: %w", common.ErrNotFound)
	}
	return f.username, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.loggedOut = true
	return nil
}

type fakeFeed struct {
	feed      *services.Feed
	all       []services.FeedPost
	loadErr   error
	postedTxt string
	postErrs  []error
	postCalls int
	voiceMime string
	voiceLen  int
	blob      *chunk.Blob
	removed   int
}

func (f *fakeFeed) Load(context.Context, string) (*services.Feed, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.feed, nil
}

func (f *fakeFeed) All(context.Context) ([]services.FeedPost, error) { return f.all, nil }

func (f *fakeFeed) PostText(_ context.Context, user, content string) (*posts.TextPost, error) {
	f.postCalls++
	if len(f.postErrs) > 0 {
		err := f.postErrs[0]
		f.postErrs = f.postErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.postedTxt = content
	return &posts.TextPost{Header: posts.Header{Author: user, Week: w07}, Content: content}, nil
}

func (f *fakeFeed) PostVoice(_ context.Context, user string, audio []byte, mime string) (*posts.VoicePost, error) {
	f.voiceMime = mime
	f.voiceLen = len(audio)
	return &posts.VoicePost{Header: posts.Header{Author: user, Week: w07}, ChunkCount: 1, MimeType: mime}, nil
}

func (f *fakeFeed) Play(context.Context, *posts.VoicePost) (*chunk.Blob, error) {
	if f.blob == nil {
		return nil, common.ErrIncompleteAssembly
	}
	return f.blob, nil
}

func (f *fakeFeed) Cleanup(context.Context) (int, error) { return f.removed, nil }

func (f *fakeFeed) StartCleanup(context.Context, string, cleanup.ErrorSink) (func(), error) {
	return func() {}, nil
}

func (f *fakeFeed) CurrentWeek() week.ID { return w07 }
func (f *fakeFeed) Stats() posts.Stats   { return posts.Stats{Malformed: 2} }

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

// ---- helpers ----

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StoreBackend = config.BackendMemory
	cfg.PropagationDelay = 0
	cfg.CleanupSchedule = "@every 1h"
	return cfg
}

func newTestApp(input string, auth services.AuthService, feed services.FeedService) (*App, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cfg := testConfig()
	return &App{
		config:      cfg,
		clock:       week.NewClock(cfg.WeekOffset),
		authService: auth,
		feedService: feed,
		userName:    "Ann K",
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         out,
		log:         logging.Nop{},
	}, out
}

func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })
	readPassword = func(int) ([]byte, error) {
		if len(pws) == 0 {
			return nil, io.EOF
		}
		pw := pws[0]
		pws = pws[1:]
		return []byte(pw), nil
	}
}

func text(author string, ts int64, content string) *posts.TextPost {
	return &posts.TextPost{Header: posts.Header{Key: "k", Author: author, Timestamp: ts, Week: w07}, Content: content}
}

// ---- sign in ----

func TestSignIn_ResumesAndConnects(t *testing.T) {
	auth := &fakeAuth{username: "Bo"}
	a, _ := newTestApp("", auth, nil)
	a.userName = ""

	var opened, closed bool
	a.openStore = func(context.Context, *config.Config, *services.Credentials, logging.Logger) (store.Store, io.Closer, error) {
		opened = true
		return memory.New(0), closerFunc(func() error { closed = true; return nil }), nil
	}

	require.NoError(t, a.SignIn(context.Background()))
	assert.True(t, opened)
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "Bo", a.userName)
	assert.Zero(t, auth.unlockCalls)

	a.Close()
	assert.True(t, closed)
	assert.False(t, a.isLoggedIn())
}

func TestSignIn_PromptsUntilUnlockedAndAsksName(t *testing.T) {
	stubPasswords(t, "nope", "waffles")
	auth := &fakeAuth{resumeErr: fmt.Errorf("passphrase: %w", common.ErrNotFound), passphrase: "waffles"}
	a, out := newTestApp("Ann\n\nAnn\nk\n", auth, nil)
	a.openStore = func(context.Context, *config.Config, *services.Credentials, logging.Logger) (store.Store, io.Closer, error) {
		return memory.New(0), closerFunc(func() error { return nil }), nil
	}
	defer a.Close()

	require.NoError(t, a.SignIn(context.Background()))
	assert.Equal(t, 2, auth.unlockCalls)
	assert.Equal(t, "Ann K", a.userName)
	assert.Contains(t, out.String(), "Incorrect password")
	assert.Contains(t, out.String(), "single letter")
}

func TestSignIn_MalformedBootstrapIsFatal(t *testing.T) {
	auth := &fakeAuth{resumeErr: fmt.Errorf("%w: %w", common.ErrAuthenticationFailed, common.ErrMalformedBootstrap)}
	a, _ := newTestApp("", auth, nil)

	err := a.SignIn(context.Background())
	require.ErrorIs(t, err, common.ErrMalformedBootstrap)
	assert.Zero(t, auth.unlockCalls)
}

func TestSignIn_StoreFailure(t *testing.T) {
	a, _ := newTestApp("", &fakeAuth{username: "Bo"}, nil)
	a.openStore = func(context.Context, *config.Config, *services.Credentials, logging.Logger) (store.Store, io.Closer, error) {
		return nil, nil, common.ErrStoreUnavailable
	}

	err := a.SignIn(context.Background())
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.False(t, a.isLoggedIn())
}

// ---- commands ----

func TestFeed_LockedAndUnlockedWeeks(t *testing.T) {
	voice := &posts.VoicePost{
		Header:     posts.Header{Key: "2026-W07_Bo_2.json", Author: "Bo", Timestamp: thursdayMs + 2*24*3600*1000, Week: w07},
		ChunkCount: 2,
		MimeType:   "audio/ogg",
	}
	feed := &fakeFeed{feed: &services.Feed{
		Current:        w07,
		PostedThisWeek: true,
		Weeks: []services.WeekFeed{
			{
				Week: w07, Label: "Wed Feb 11 – Tue Feb 17", Current: true, Unlocked: true,
				Authors: []string{"Ann K", "Bo"},
				Groups: []services.AuthorGroup{
					{Author: "Ann K", Posts: []services.FeedPost{{Post: text("Ann K", thursdayMs, "hello\nthere")}}},
					{Author: "Bo", Posts: []services.FeedPost{{Post: voice, Late: true}}},
				},
			},
			{Week: "2026-W06", Label: "Wed Feb 4 – Tue Feb 10", Authors: []string{"Cy"}},
		},
	}}
	a, out := newTestApp("", &fakeAuth{}, feed)

	require.NoError(t, a.Feed(context.Background()))

	s := out.String()
	assert.Contains(t, s, "2026-W07  Wed Feb 11 – Tue Feb 17 (this week)")
	assert.Contains(t, s, "    Thu 12:00\n      hello\n      there\n")
	assert.Contains(t, s, "    Sat 12:00 LATE\n")
	assert.Contains(t, s, "[1] voice note (audio/ogg, 2 chunks) - play 1")
	assert.Contains(t, s, "  checked in: Cy\n  "+lockedHint)
	assert.NotContains(t, s, "haven't checked in")
	require.Len(t, a.voices, 1)
	assert.Same(t, voice, a.voices[0])
}

func TestFeed_LoadError(t *testing.T) {
	a, out := newTestApp("", &fakeAuth{}, &fakeFeed{loadErr: common.ErrStoreUnavailable})
	err := a.Feed(context.Background())
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Contains(t, out.String(), "unreachable")
}

func TestAll(t *testing.T) {
	feed := &fakeFeed{all: []services.FeedPost{{Post: text("Cy", thursdayMs, "old news")}}}
	a, out := newTestApp("", &fakeAuth{}, feed)

	require.NoError(t, a.All(context.Background()))
	assert.Contains(t, out.String(), "2026-W07 Cy\n  Thu 12:00\n    old news\n")

	feed.all = nil
	out.Reset()
	require.NoError(t, a.All(context.Background()))
	assert.Equal(t, "No posts.\n", out.String())
}

func TestPost_RefusedWhenAlreadyPosted(t *testing.T) {
	feed := &fakeFeed{feed: &services.Feed{Current: w07, PostedThisWeek: true}}
	a, out := newTestApp("should not be read\n\n", &fakeAuth{}, feed)

	err := a.Post(context.Background())
	require.ErrorIs(t, err, common.ErrAlreadyPosted)
	assert.Empty(t, feed.postedTxt)
	assert.NotContains(t, out.String(), "What's on your mind")
}

func TestPost_Success(t *testing.T) {
	feed := &fakeFeed{feed: &services.Feed{Current: w07}}
	a, out := newTestApp("hello\nworld\n\n", &fakeAuth{}, feed)

	require.NoError(t, a.Post(context.Background()))
	assert.Equal(t, "hello\nworld", feed.postedTxt)
	assert.Contains(t, out.String(), "Posted to 2026-W07.")
}

func TestPost_RetriesAfterStoreFailure(t *testing.T) {
	feed := &fakeFeed{
		feed:     &services.Feed{Current: w07},
		postErrs: []error{common.ErrStoreUnavailable},
	}
	a, out := newTestApp("hello\n\ny\n", &fakeAuth{}, feed)

	require.NoError(t, a.Post(context.Background()))
	assert.Equal(t, 2, feed.postCalls)
	assert.Equal(t, "hello", feed.postedTxt)
	assert.Empty(t, a.draft)
	assert.Contains(t, out.String(), "unreachable")
	assert.Contains(t, out.String(), "Posted to 2026-W07.")
}

func TestPost_DeclinedRetryKeepsDraft(t *testing.T) {
	feed := &fakeFeed{
		feed:     &services.Feed{Current: w07},
		postErrs: []error{common.ErrStoreUnavailable},
	}
	a, out := newTestApp("hello\nworld\n\nn\n", &fakeAuth{}, feed)
	ctx := context.Background()

	err := a.Post(ctx)
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Equal(t, "hello\nworld", a.draft)
	assert.Contains(t, out.String(), "Your post is kept.")

	// nothing left to read: the draft is sent without asking again
	require.NoError(t, a.Post(ctx))
	assert.Equal(t, 2, feed.postCalls)
	assert.Equal(t, "hello\nworld", feed.postedTxt)
	assert.Empty(t, a.draft)
	assert.Contains(t, out.String(), "Sending your unsent post:\nhello\nworld\n")
}

func TestPost_ValidationErrorDropsDraft(t *testing.T) {
	feed := &fakeFeed{
		feed:     &services.Feed{Current: w07},
		postErrs: []error{fmt.Errorf("%w: too long", common.ErrValidation)},
	}
	a, _ := newTestApp("hello\n\n", &fakeAuth{}, feed)

	err := a.Post(context.Background())
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, 1, feed.postCalls)
	assert.Empty(t, a.draft)
}

func TestPost_EmptyInputPostsNothing(t *testing.T) {
	feed := &fakeFeed{feed: &services.Feed{Current: w07}}
	a, out := newTestApp("\n", &fakeAuth{}, feed)

	require.NoError(t, a.Post(context.Background()))
	assert.Empty(t, feed.postedTxt)
	assert.Contains(t, out.String(), "Nothing to post.")
}

func TestVoice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.ogg")
	require.NoError(t, os.WriteFile(path, []byte("OggS-data"), 0o600))

	feed := &fakeFeed{feed: &services.Feed{Current: w07, PostedThisWeek: true}}
	a, out := newTestApp("", &fakeAuth{}, feed)

	require.NoError(t, a.Voice(context.Background(), path))
	assert.Equal(t, "audio/ogg", feed.voiceMime)
	assert.Equal(t, 9, feed.voiceLen)
	assert.Contains(t, out.String(), "Voice note posted to 2026-W07 (1 chunks).")

	err := a.Voice(context.Background(), filepath.Join(t.TempDir(), "missing.ogg"))
	require.Error(t, err)
}

func TestPlay(t *testing.T) {
	feed := &fakeFeed{blob: &chunk.Blob{MimeType: "audio/ogg", Data: []byte("OggS")}}
	a, out := newTestApp("", &fakeAuth{}, feed)
	a.voices = []*posts.VoicePost{{Header: posts.Header{Key: "2026-W07_Bo_2.json"}}}

	dest := filepath.Join(t.TempDir(), "bo.ogg")
	require.NoError(t, a.Play(context.Background(), 1, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS"), got)
	assert.Contains(t, out.String(), "Saved 4 bytes to "+dest)

	err = a.Play(context.Background(), 2, "")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPlay_DefaultFileName(t *testing.T) {
	dir := t.TempDir()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })

	feed := &fakeFeed{blob: &chunk.Blob{MimeType: "audio/webm", Data: []byte("x")}}
	a, _ := newTestApp("", &fakeAuth{}, feed)
	a.voices = []*posts.VoicePost{{Header: posts.Header{Key: "2026-W07_Bo_2.json"}}}

	require.NoError(t, a.Play(context.Background(), 1, ""))
	_, err = os.Stat(filepath.Join(dir, "2026-W07_Bo_2.webm"))
	require.NoError(t, err)
}

func TestPlay_Incomplete(t *testing.T) {
	a, out := newTestApp("", &fakeAuth{}, &fakeFeed{})
	a.voices = []*posts.VoicePost{{}}

	err := a.Play(context.Background(), 1, "")
	require.ErrorIs(t, err, common.ErrIncompleteAssembly)
	assert.Contains(t, out.String(), "Audio unavailable")
}

func TestWeekCleanupWhoAmI(t *testing.T) {
	feed := &fakeFeed{removed: 3}
	a, out := newTestApp("", &fakeAuth{}, feed)
	ctx := context.Background()

	require.NoError(t, a.Week(ctx))
	require.NoError(t, a.Cleanup(ctx))
	require.NoError(t, a.WhoAmI(ctx))

	s := out.String()
	assert.Contains(t, s, "2026-W07  Wed Feb 11 – Tue Feb 17\n")
	assert.Contains(t, s, "On time: Wed Feb 11 00:01 to Sat Feb 14 00:00 UTC-05:00")
	assert.Contains(t, s, "Removed 3 expired files.")
	assert.Contains(t, s, "Ann K (memory)")
	assert.Contains(t, s, "Skipped: 2 malformed, 0 incomplete")
}

func TestLogout(t *testing.T) {
	auth := &fakeAuth{}
	a, _ := newTestApp("", auth, &fakeFeed{})
	stopped := false
	a.stopCleanup = func() { stopped = true }

	require.NoError(t, a.Logout(context.Background()))
	assert.True(t, auth.loggedOut)
	assert.True(t, stopped)
	assert.False(t, a.isLoggedIn())
	assert.Empty(t, a.userName)
}

func TestFail_Messages(t *testing.T) {
	a, out := newTestApp("", &fakeAuth{}, &fakeFeed{})

	err := a.fail("Failed to post", fmt.Errorf("wrap: %w", common.ErrAlreadyPosted))
	assert.True(t, errors.Is(err, common.ErrAlreadyPosted))
	assert.Contains(t, out.String(), "already checked in")
}

func TestRun_SignsInAndServes(t *testing.T) {
	a, out := newTestApp("whoami\nexit\n", &fakeAuth{username: "Bo"}, nil)
	a.openStore = func(context.Context, *config.Config, *services.Credentials, logging.Logger) (store.Store, io.Closer, error) {
		return memory.New(0), closerFunc(func() error { return nil }), nil
	}
	captureOutput(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	s := out.String()
	assert.Contains(t, s, "Hi Bo!")
	assert.Contains(t, s, "Bo (memory)")
	assert.False(t, a.isLoggedIn())
}

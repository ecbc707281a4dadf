package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/waffle/internal/client/client"
	"github.com/dmitrijs2005/waffle/internal/client/config"
	"github.com/dmitrijs2005/waffle/internal/client/services"
	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/filex"
	"github.com/dmitrijs2005/waffle/internal/logging"
	"github.com/dmitrijs2005/waffle/internal/posts"
	"github.com/dmitrijs2005/waffle/internal/store"
	"github.com/dmitrijs2005/waffle/internal/week"
	"github.com/google/uuid"
)

type storeOpener func(ctx context.Context, cfg *config.Config, creds *services.Credentials, log logging.Logger) (store.Store, io.Closer, error)

type App struct {
	config      *config.Config
	clock       *week.Clock
	repos       *client.Repositories
	authService services.AuthService
	feedService services.FeedService
	openStore   storeOpener
	closer      io.Closer
	stopCleanup func()
	userName    string
	draft       string
	voices      []*posts.VoicePost
	reader      *bufio.Reader
	out         io.Writer
	log         logging.Logger
}

// NewApp opens the local credential cache and prepares an App that is not
// yet signed in.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop{}
	}
	log = log.With("session", uuid.NewString())

	if err := filex.EnsureParentDir(c.LocalDBPath); err != nil {
		return nil, err
	}

	repos, err := client.InitDatabase(ctx, c.LocalDBPath, c.CredentialTTL)
	if err != nil {
		log.Error(ctx, "error initializing database", "err", err)
		return nil, err
	}

	return &App{
		config:      c,
		clock:       week.NewClock(c.WeekOffset),
		repos:       repos,
		authService: services.NewAuthService(c.EncryptedBootstrap, repos.Metadata, log),
		openStore:   services.OpenStore,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
		log:         log,
	}, nil
}

// Run signs the user in and serves the REPL until exit, EOF or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.SignIn(ctx); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Hi %s! Type 'help' for commands.\n", a.userName)
	_ = a.Feed(ctx)

	runREPL(ctx, a, a.status, a.reader)
	return nil
}

// Close stops background work and releases the store and the local cache.
func (a *App) Close() {
	a.disconnect()
	if a.repos != nil {
		_ = a.repos.Close()
		a.repos = nil
	}
}

func (a *App) status() string {
	if !a.isLoggedIn() {
		return "locked"
	}
	return fmt.Sprintf("%s @ %s", a.userName, a.feedService.CurrentWeek())
}

func (a *App) isLoggedIn() bool {
	return a.feedService != nil
}

// SignIn unlocks the group store, asks for a name if none is remembered
// and connects to the store.
func (a *App) SignIn(ctx context.Context) error {
	creds, err := a.unlock(ctx)
	if err != nil {
		return err
	}
	if err := a.ensureUsername(ctx); err != nil {
		return err
	}
	return a.connect(ctx, creds)
}

func (a *App) unlock(ctx context.Context) (*services.Credentials, error) {
	creds, err := a.authService.Resume(ctx)
	if err == nil {
		return creds, nil
	}
	if errors.Is(err, common.ErrMalformedBootstrap) {
		return nil, err
	}
	if !errors.Is(err, common.ErrNotFound) && !errors.Is(err, common.ErrAuthenticationFailed) {
		return nil, err
	}

	for {
		pass, err := GetPassword("Group passphrase", a.out)
		if err != nil {
			return nil, err
		}
		creds, err := a.authService.Unlock(ctx, string(pass))
		common.WipeByteArray(pass)

		switch {
		case err == nil:
			return creds, nil
		case errors.Is(err, common.ErrMalformedBootstrap):
			return nil, err
		case errors.Is(err, common.ErrAuthenticationFailed), errors.Is(err, common.ErrValidation):
			fmt.Fprintln(a.out, "Incorrect password")
		default:
			return nil, err
		}
	}
}

func (a *App) ensureUsername(ctx context.Context) error {
	name, err := a.authService.Username(ctx)
	if err == nil {
		a.userName = name
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	for {
		first, err := GetSimpleText(a.reader, "Your first name:", a.out)
		if err != nil {
			return err
		}
		initial, err := GetSimpleText(a.reader, "Your last initial:", a.out)
		if err != nil {
			return err
		}

		name, err := a.authService.SetUsername(ctx, first, initial)
		if errors.Is(err, common.ErrValidation) {
			fmt.Fprintln(a.out, err)
			continue
		}
		if err != nil {
			return err
		}
		a.userName = name
		return nil
	}
}

func (a *App) connect(ctx context.Context, creds *services.Credentials) error {
	s, closer, err := a.openStore(ctx, a.config, creds, a.log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	feed := services.NewFeedService(s, a.clock, services.FeedOptions{
		PropagationDelay: a.config.PropagationDelay,
		MaxVoiceBytes:    a.config.MaxVoiceBytes,
	}, a.log)

	stop, err := feed.StartCleanup(ctx, a.config.CleanupSchedule, func(ctx context.Context, err error) {
		a.log.Warn(ctx, "background cleanup failed", "err", err)
	})
	if err != nil {
		_ = closer.Close()
		return fmt.Errorf("start cleanup: %w", err)
	}

	a.feedService = feed
	a.closer = closer
	a.stopCleanup = stop
	return nil
}

func (a *App) disconnect() {
	if a.stopCleanup != nil {
		a.stopCleanup()
		a.stopCleanup = nil
	}
	if a.closer != nil {
		_ = a.closer.Close()
		a.closer = nil
	}
	a.feedService = nil
	a.voices = nil
}

// Feed prints the current and previous week.
func (a *App) Feed(ctx context.Context) error {
	f, err := a.feedService.Load(ctx, a.userName)
	if err != nil {
		return a.fail("Failed to load feed", err)
	}
	a.voices = renderFeed(a.out, f, a.clock.Location())
	if !f.PostedThisWeek {
		fmt.Fprintln(a.out, "\nYou haven't checked in this week. Use 'post' or 'voice <file>'.")
	}
	return nil
}

// All prints every post in the store regardless of week.
func (a *App) All(ctx context.Context) error {
	list, err := a.feedService.All(ctx)
	if err != nil {
		return a.fail("Failed to list posts", err)
	}
	a.voices = renderAll(a.out, list, a.clock.Location())
	return nil
}

// Post asks for a text post and stores it. It refuses before asking if the
// user has already posted this week. When the store is unreachable the text
// is kept as a draft: the user may retry at once, and the next post sends
// the draft instead of asking again.
func (a *App) Post(ctx context.Context) error {
	f, err := a.feedService.Load(ctx, a.userName)
	if err != nil {
		return a.fail("Failed to load feed", err)
	}
	if f.PostedThisWeek {
		a.draft = ""
		fmt.Fprintln(a.out, "You've already checked in this week.")
		return common.ErrAlreadyPosted
	}

	content := a.draft
	if content != "" {
		fmt.Fprintf(a.out, "Sending your unsent post:\n%s\n", content)
	} else {
		content, err = GetMultiline(a.reader, "What's on your mind this week?", a.out)
		if err != nil {
			return err
		}
		if content == "" {
			fmt.Fprintln(a.out, "Nothing to post.")
			return nil
		}
	}

	for {
		p, err := a.feedService.PostText(ctx, a.userName, content)
		if err == nil {
			a.draft = ""
			fmt.Fprintf(a.out, "Posted to %s.\n", p.Week)
			return a.Feed(ctx)
		}

		if !errors.Is(err, common.ErrStoreUnavailable) {
			a.draft = ""
			return a.fail("Failed to post", err)
		}

		a.draft = content
		_ = a.fail("Failed to post", err)
		answer, rerr := GetSimpleText(a.reader, "Retry? [y/N]", a.out)
		if rerr != nil || !strings.EqualFold(answer, "y") {
			fmt.Fprintln(a.out, "Your post is kept. Run 'post' to send it.")
			return err
		}
	}
}

// Voice uploads the audio file at path as this week's voice post.
func (a *App) Voice(ctx context.Context, path string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return a.fail("Failed to read recording", err)
	}

	p, err := a.feedService.PostVoice(ctx, a.userName, audio, filex.AudioMimeType(path))
	if err != nil {
		return a.fail("Failed to post", err)
	}
	fmt.Fprintf(a.out, "Voice note posted to %s (%d chunks).\n", p.Week, p.ChunkCount)
	return a.Feed(ctx)
}

// Play reassembles voice note n of the last listing and writes it to out,
// or to a file named after the post when out is empty.
func (a *App) Play(ctx context.Context, n int, out string) error {
	if n < 1 || n > len(a.voices) {
		fmt.Fprintf(a.out, "No voice note %d. Run 'feed' or 'all' first.\n", n)
		return common.ErrNotFound
	}
	v := a.voices[n-1]

	blob, err := a.feedService.Play(ctx, v)
	if err != nil {
		return a.fail("Audio unavailable", err)
	}

	if out == "" {
		out = strings.TrimSuffix(v.Key, ".json") + filex.AudioExt(blob.MimeType)
	}
	if err := filex.WriteFile(out, blob.Data); err != nil {
		return a.fail("Failed to save recording", err)
	}
	fmt.Fprintf(a.out, "Saved %d bytes to %s\n", len(blob.Data), out)
	return nil
}

// Week prints the current week and its on-time window.
func (a *App) Week(ctx context.Context) error {
	w := a.feedService.CurrentWeek()
	from, to := a.clock.OnTimeWindow(w)
	fmt.Fprintf(a.out, "%s  %s\n", w, a.clock.Label(w))
	fmt.Fprintf(a.out, "On time: %s to %s\n", from.Format("Mon Jan 2 15:04"), to.Format("Mon Jan 2 15:04 MST"))
	return nil
}

// Cleanup removes files of expired weeks now.
func (a *App) Cleanup(ctx context.Context) error {
	n, err := a.feedService.Cleanup(ctx)
	if err != nil {
		return a.fail("Cleanup failed", err)
	}
	fmt.Fprintf(a.out, "Removed %d expired files.\n", n)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	st := a.feedService.Stats()
	fmt.Fprintf(a.out, "%s (%s)\n", a.userName, a.config.StoreBackend)
	if st.Malformed > 0 || st.Incomplete > 0 {
		fmt.Fprintf(a.out, "Skipped: %d malformed, %d incomplete\n", st.Malformed, st.Incomplete)
	}
	return nil
}

// Logout forgets the cached passphrase and name and disconnects.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return a.fail("Logout failed", err)
	}
	a.disconnect()
	a.userName = ""
	a.draft = ""
	return nil
}

func (a *App) fail(msg string, err error) error {
	switch {
	case errors.Is(err, common.ErrAlreadyPosted):
		fmt.Fprintln(a.out, "You've already checked in this week.")
	case errors.Is(err, common.ErrValidation):
		fmt.Fprintf(a.out, "%s: %v\n", msg, err)
	case errors.Is(err, common.ErrStoreUnavailable):
		fmt.Fprintf(a.out, "%s: the group store is unreachable, try again later\n", msg)
	default:
		fmt.Fprintf(a.out, "%s: %v\n", msg, err)
	}
	a.log.Warn(context.Background(), msg, "err", err)
	return err
}

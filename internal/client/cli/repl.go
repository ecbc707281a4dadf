package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Feed(ctx context.Context) error
	All(ctx context.Context) error
	Post(ctx context.Context) error
	Voice(ctx context.Context, path string) error
	Play(ctx context.Context, n int, out string) error
	Week(ctx context.Context) error
	Cleanup(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Logout(ctx context.Context) error
}

const helpText = `Available commands:
  feed             show this week and last week
  all              list every post in the store
  post             write this week's check-in
  voice <file>     post an audio file as this week's check-in
  play <n> [out]   save voice note n of the last listing
  week             show the current week and its on-time window
  cleanup          delete files of expired weeks now
  whoami           show who you are
  logout           forget the passphrase and your name
  exit | quit      leave the program`

// runREPL reads commands from reader and dispatches them to a until EOF,
// "exit"/"quit", a successful logout, or ctx is done.
//
// Errors returned by command handlers are ignored here; handlers report
// them to the user themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("waffle> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !a.isLoggedIn() && cmd != "exit" && cmd != "quit" {
			printlnFn("Not signed in. Restart waffle to unlock.")
			continue
		}

		switch cmd {
		case "help":
			printlnFn(helpText)

		case "f", "feed":
			_ = a.Feed(ctx)

		case "all":
			_ = a.All(ctx)

		case "post":
			_ = a.Post(ctx)

		case "voice":
			if len(args) != 1 {
				printlnFn("Usage: voice <file>")
				continue
			}
			_ = a.Voice(ctx, args[0])

		case "play":
			if len(args) < 1 || len(args) > 2 {
				printlnFn("Usage: play <n> [out]")
				continue
			}
			n, err := strconv.Atoi(args[0])
			if err != nil {
				printlnFn("Usage: play <n> [out]")
				continue
			}
			out := ""
			if len(args) == 2 {
				out = args[1]
			}
			_ = a.Play(ctx, n, out)

		case "week":
			_ = a.Week(ctx)

		case "cleanup":
			_ = a.Cleanup(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "logout":
			if err := a.Logout(ctx); err == nil {
				printlnFn("Logged out. Bye!")
				return
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

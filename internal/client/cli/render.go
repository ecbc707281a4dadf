package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/waffle/internal/client/services"
	"github.com/dmitrijs2005/waffle/internal/posts"
	"github.com/fatih/color"
)

var (
	lateBadge   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	weekHeading = color.New(color.FgCyan, color.Bold).SprintFunc()
	authorName  = color.New(color.Bold).SprintFunc()
	hint        = color.New(color.Faint).SprintFunc()
)

const lockedHint = "Post something to unlock content"

// renderFeed prints the feed and returns the voice posts in the order they
// were numbered, so that "play <n>" can find them.
func renderFeed(w io.Writer, f *services.Feed, loc *time.Location) []*posts.VoicePost {
	var voices []*posts.VoicePost

	for _, wf := range f.Weeks {
		title := wf.Label
		if wf.Current {
			title += " (this week)"
		}
		fmt.Fprintf(w, "\n%s  %s\n", weekHeading(wf.Week), title)

		if len(wf.Authors) == 0 {
			fmt.Fprintln(w, hint("  nobody has checked in yet"))
			continue
		}

		if !wf.Unlocked {
			fmt.Fprintf(w, "  checked in: %s\n", strings.Join(wf.Authors, ", "))
			fmt.Fprintf(w, "  %s\n", hint(lockedHint))
			continue
		}

		for _, g := range wf.Groups {
			fmt.Fprintf(w, "  %s\n", authorName(g.Author))
			for _, fp := range g.Posts {
				voices = renderPost(w, fp, loc, "    ", voices)
			}
		}
	}
	return voices
}

// renderAll prints a flat newest-first listing with week and author on
// every line.
func renderAll(w io.Writer, list []services.FeedPost, loc *time.Location) []*posts.VoicePost {
	if len(list) == 0 {
		fmt.Fprintln(w, "No posts.")
		return nil
	}
	var voices []*posts.VoicePost
	for _, fp := range list {
		h := fp.Post.Head()
		fmt.Fprintf(w, "%s %s\n", weekHeading(h.Week), authorName(h.Author))
		voices = renderPost(w, fp, loc, "  ", voices)
	}
	return voices
}

func renderPost(w io.Writer, fp services.FeedPost, loc *time.Location, indent string, voices []*posts.VoicePost) []*posts.VoicePost {
	h := fp.Post.Head()
	stamp := h.Time().In(loc).Format("Mon 15:04")
	if fp.Late {
		stamp += " " + lateBadge("LATE")
	}

	switch p := fp.Post.(type) {
	case *posts.TextPost:
		fmt.Fprintf(w, "%s%s\n", indent, stamp)
		for _, line := range strings.Split(p.Content, "\n") {
			fmt.Fprintf(w, "%s  %s\n", indent, line)
		}
	case *posts.VoicePost:
		voices = append(voices, p)
		fmt.Fprintf(w, "%s%s\n", indent, stamp)
		fmt.Fprintf(w, "%s  [%d] voice note (%s, %d chunks) - play %d\n", indent, len(voices), p.MimeType, p.ChunkCount, len(voices))
	}
	return voices
}

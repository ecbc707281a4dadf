package posts

import (
	"time"

	"github.com/dmitrijs2005/waffle/internal/chunk"
	"github.com/dmitrijs2005/waffle/internal/week"
)

// Kind tags the post variant as stored in the "type" field.
type Kind string

const (
	KindText  Kind = "text"
	KindVoice Kind = "voice"
)

// MaxTextLength is the limit for a text post, in characters.
const MaxTextLength = 2000

// Header holds the fields shared by every post.
type Header struct {
	Key       string
	Author    string
	Timestamp int64 // Unix milliseconds
	Week      week.ID
}

// Head returns the shared fields.
func (h Header) Head() Header { return h }

// Time returns the creation instant.
func (h Header) Time() time.Time { return time.UnixMilli(h.Timestamp) }

// Post is either a *TextPost or a *VoicePost.
type Post interface {
	Head() Header
	Kind() Kind
}

type TextPost struct {
	Header
	Content string
}

func (*TextPost) Kind() Kind { return KindText }

type VoicePost struct {
	Header
	ChunkCount int
	MimeType   string
	Chunks     []chunk.Ref
}

func (*VoicePost) Kind() Kind { return KindVoice }

// WeekFilter restricts a listing to one week, or to none.
type WeekFilter struct {
	week week.ID
	all  bool
}

// ForWeek keeps posts whose recorded week equals w.
func ForWeek(w week.ID) WeekFilter { return WeekFilter{week: w} }

// AllWeeks keeps every well-formed post.
func AllWeeks() WeekFilter { return WeekFilter{all: true} }

func (f WeekFilter) match(w week.ID) bool {
	return f.all || f.week == w
}

func (f WeekFilter) String() string {
	if f.all {
		return "all"
	}
	return f.week.String()
}

// Stats counts records skipped by listings since the repository was created.
type Stats struct {
	Malformed  int64
	Incomplete int64
}

package posts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/waffle/internal/week"
)

const metaExt = ".json"

var metaKeyPattern = regexp.MustCompile(`^\d{4}-W\d{2}_.+_\d+\.json$`)

// SanitizeAuthor replaces the first space of the author name with '_'.
// Only the first one is replaced; existing keys were written that way.
func SanitizeAuthor(author string) string {
	return strings.Replace(author, " ", "_", 1)
}

// Stem is the key shared by a post's metadata and fragment files.
func Stem(w week.ID, author string, timestamp int64) string {
	return fmt.Sprintf("%s_%s_%d", w, SanitizeAuthor(author), timestamp)
}

func MetaKey(w week.ID, author string, timestamp int64) string {
	return Stem(w, author, timestamp) + metaExt
}

func ChunkKey(stem string, index int) string {
	return fmt.Sprintf("%s_chunk%d.txt", stem, index)
}

// IsMetaKey reports whether key names a post metadata file.
func IsMetaKey(key string) bool {
	return metaKeyPattern.MatchString(key)
}

// keyWeek returns the week prefix of a key accepted by IsMetaKey.
func keyWeek(metaKey string) week.ID {
	return week.ID(metaKey[:len("2006-W01")])
}

func stemOf(metaKey string) string {
	return strings.TrimSuffix(metaKey, metaExt)
}

func authorPrefix(w week.ID, author string) string {
	return fmt.Sprintf("%s_%s", w, SanitizeAuthor(author))
}

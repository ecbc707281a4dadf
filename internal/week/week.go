// Package week implements the Wednesday-anchored weekly calendar used to group
// posts, decide whether a post is late, and bound how long posts are kept.
//
// A week runs from Wednesday 00:00:00 to the following Tuesday 23:59:59 in a
// fixed-offset local zone. Weeks are numbered like ISO weeks after shifting
// the local date back two days, so Wednesday lines up with ISO Monday and
// identifiers stay ordered across year boundaries.
package week

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ID is a week identifier of the form "2026-W07".
type ID string

var idPattern = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// Make builds an identifier from a week-year and week number without
// validating them.
func Make(year, number int) ID {
	return ID(fmt.Sprintf("%04d-W%02d", year, number))
}

// Parse validates s and returns it as an ID. The week number must exist in
// the given year (52 or 53 weeks).
func Parse(s string) (ID, error) {
	y, n, ok := split(s)
	if !ok {
		return "", fmt.Errorf("invalid week id %q", s)
	}
	if n < 1 || n > WeeksInYear(y) {
		return "", fmt.Errorf("week %d out of range for %d", n, y)
	}
	return ID(s), nil
}

func split(s string) (year, number int, ok bool) {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	year, _ = strconv.Atoi(m[1])
	number, _ = strconv.Atoi(m[2])
	return year, number, true
}

// Valid reports whether id is a well-formed, existing week.
func (id ID) Valid() bool {
	_, err := Parse(string(id))
	return err == nil
}

// Year returns the week-year, or 0 for a malformed identifier.
func (id ID) Year() int {
	y, _, _ := split(string(id))
	return y
}

// Number returns the week number, or 0 for a malformed identifier.
func (id ID) Number() int {
	_, n, _ := split(string(id))
	return n
}

func (id ID) String() string { return string(id) }

// Prev returns the week immediately before id.
func (id ID) Prev() ID { return id.shift(-7) }

// Next returns the week immediately after id.
func (id ID) Next() ID { return id.shift(7) }

func (id ID) shift(days int) ID {
	if !id.Valid() {
		return id
	}
	y, w := isoMonday(id.Year(), id.Number(), time.UTC).AddDate(0, 0, days).ISOWeek()
	return Make(y, w)
}

// Compare orders identifiers by (year, number). It returns -1, 0 or +1.
func Compare(a, b ID) int {
	ay, an := a.Year(), a.Number()
	by, bn := b.Year(), b.Number()
	switch {
	case ay != by:
		if ay < by {
			return -1
		}
		return 1
	case an < bn:
		return -1
	case an > bn:
		return 1
	}
	return 0
}

// WeeksInYear returns 52 or 53, the number of weeks in the given week-year.
func WeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 12, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// isoMonday returns midnight of the Monday starting ISO week (year, number).
func isoMonday(year, number int, loc *time.Location) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	wd := int(jan4.Weekday())
	if wd == 0 {
		wd = 7
	}
	return jan4.AddDate(0, 0, 1-wd+(number-1)*7)
}

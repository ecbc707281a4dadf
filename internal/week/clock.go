package week

import (
	"fmt"
	"time"
)

// DefaultOffset is the UTC offset used when none is configured (UTC-05:00,
// no daylight saving).
const DefaultOffset = -5 * time.Hour

// graceStart is how long after Wednesday midnight a post stops being late.
const graceStart = time.Minute

// onTimeDays is the length of the on-time window (Wednesday through Friday).
const onTimeDays = 3

// Clock maps instants onto weeks in a fixed-offset zone. It holds no notion
// of "now"; callers pass the instant in.
type Clock struct {
	loc *time.Location
}

// NewClock returns a Clock evaluating local time at the given UTC offset.
func NewClock(offset time.Duration) *Clock {
	return &Clock{loc: time.FixedZone(zoneName(offset), int(offset/time.Second))}
}

func zoneName(offset time.Duration) string {
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return fmt.Sprintf("UTC%c%02d:%02d", sign, h, m)
}

// Location returns the fixed zone the clock evaluates in.
func (c *Clock) Location() *time.Location { return c.loc }

// Current returns the week containing now.
func (c *Clock) Current(now time.Time) ID {
	local := now.In(c.loc)
	shifted := time.Date(local.Year(), local.Month(), local.Day()-2, 12, 0, 0, 0, time.UTC)
	y, w := shifted.ISOWeek()
	return Make(y, w)
}

// Start returns Wednesday 00:00:00 local of w. It returns the zero time for
// an invalid identifier.
func (c *Clock) Start(w ID) time.Time {
	if !w.Valid() {
		return time.Time{}
	}
	return isoMonday(w.Year(), w.Number(), c.loc).AddDate(0, 0, 2)
}

// End returns the exclusive end of w, the next Wednesday 00:00:00 local.
func (c *Clock) End(w ID) time.Time {
	if !w.Valid() {
		return time.Time{}
	}
	return c.Start(w).AddDate(0, 0, 7)
}

// Contains reports whether ts falls inside w.
func (c *Clock) Contains(w ID, ts time.Time) bool {
	if !w.Valid() {
		return false
	}
	return !ts.Before(c.Start(w)) && ts.Before(c.End(w))
}

// IsOnTime reports whether ts lies between Wednesday 00:01:00 and Friday
// 23:59:59 (inclusive) of w. Anything else, including timestamps outside w,
// is late.
func (c *Clock) IsOnTime(ts time.Time, w ID) bool {
	if !w.Valid() {
		return false
	}
	from, to := c.OnTimeWindow(w)
	return !ts.Before(from) && ts.Before(to)
}

// OnTimeWindow returns the half-open interval [from, to) in which a post to
// w is on time.
func (c *Clock) OnTimeWindow(w ID) (from, to time.Time) {
	if !w.Valid() {
		return time.Time{}, time.Time{}
	}
	start := c.Start(w)
	return start.Add(graceStart), start.AddDate(0, 0, onTimeDays)
}

// Label renders w as "Wed Feb 11 – Tue Feb 17". Malformed identifiers are
// returned unchanged.
func (c *Clock) Label(w ID) string {
	if !w.Valid() {
		return string(w)
	}
	start := c.Start(w)
	end := start.AddDate(0, 0, 6)
	return start.Format("Mon Jan 2") + " – " + end.Format("Mon Jan 2")
}

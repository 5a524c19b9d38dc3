package ledger

import (
	"time"

	"github.com/dukerupert/choreledger/internal/model"
)

// Clock is the family's wall clock. "Today" is the calendar day in the
// configured location, not in UTC.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{now: time.Now, loc: loc}
}

// FixedClock always reports t.
func FixedClock(t time.Time, loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{now: func() time.Time { return t }, loc: loc}
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

func (c Clock) Today() model.Date {
	return model.DateOf(c.Now().In(c.Location()))
}

// Package allocation holds the pure booking rules: slot overlap, status
// transitions and recurrence expansion. Nothing here touches storage.
package allocation

import (
	"time"

	"roombooking/internal/models"
)

// Interval is a half-open [Start, End) span of wall-clock time within one day.
type Interval struct {
	Start models.Clock
	End   models.Clock
}

func NewInterval(start, end models.Clock) Interval {
	return Interval{Start: start, End: end}
}

func IntervalOf(b *models.Booking) Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// Valid requires a non-empty span inside the day.
func (i Interval) Valid() bool {
	return i.Start.Valid() && i.End <= 24*60 && i.End > i.Start
}

// Overlaps treats touching endpoints as free: 10:00-11:00 and 11:00-12:00 do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return o.Start < i.End && o.End > i.Start
}

// Conflicts returns the bookings in candidates that hold roomID on date and
// overlap slot. Non-approved candidates never conflict.
func Conflicts(roomID int64, date time.Time, slot Interval, candidates []*models.Booking) []*models.Booking {
	day := models.DateOf(date)
	var out []*models.Booking
	for _, c := range candidates {
		if c == nil || c.RoomID != roomID || !c.Holds() {
			continue
		}
		if !models.DateOf(c.Date).Equal(day) {
			continue
		}
		if IntervalOf(c).Overlaps(slot) {
			out = append(out, c)
		}
	}
	return out
}

// HasConflict reports whether slot on roomID/date overlaps any approved candidate.
func HasConflict(roomID int64, date time.Time, slot Interval, candidates []*models.Booking) bool {
	return len(Conflicts(roomID, date, slot, candidates)) > 0
}

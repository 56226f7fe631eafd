package allocation

import (
	"fmt"
	"sort"
	"strings"

	"roombooking/internal/domain"
	"roombooking/internal/models"
)

// ValidateBooking checks the fields a booking request must carry.
// Room and user references are resolved by the directory, which reports
// unknown ids, zero included, as not found.
func ValidateBooking(b *models.Booking) error {
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("%w: meeting title is required", domain.ErrValidation)
	}
	if b.Date.IsZero() {
		return fmt.Errorf("%w: booking date is required", domain.ErrValidation)
	}
	if !IntervalOf(b).Valid() {
		return fmt.Errorf("%w: end time %s must be after start time %s", domain.ErrValidation, b.EndTime, b.StartTime)
	}
	if b.AttendeesCount != nil && *b.AttendeesCount < 0 {
		return fmt.Errorf("%w: attendees count cannot be negative", domain.ErrValidation)
	}
	return nil
}

// ValidateRule checks a recurring rule and normalizes its weekday set:
// sorted and de-duplicated for WEEKLY, cleared otherwise.
func ValidateRule(r *models.RecurringRule) error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: meeting title is required", domain.ErrValidation)
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", domain.ErrValidation)
	}
	if !models.DateOf(r.EndDate).After(models.DateOf(r.StartDate)) {
		return fmt.Errorf("%w: end date must be after start date", domain.ErrValidation)
	}
	if !NewInterval(r.StartTime, r.EndTime).Valid() {
		return fmt.Errorf("%w: end time %s must be after start time %s", domain.ErrValidation, r.EndTime, r.StartTime)
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", domain.ErrValidation, r.Frequency)
	}
	if r.AttendeesCount != nil && *r.AttendeesCount < 0 {
		return fmt.Errorf("%w: attendees count cannot be negative", domain.ErrValidation)
	}

	if r.Frequency != models.FrequencyWeekly {
		r.Weekdays = nil
		return nil
	}
	if len(r.Weekdays) == 0 {
		return fmt.Errorf("%w: days of week are required for WEEKLY frequency", domain.ErrValidation)
	}
	seen := make(map[int]bool, len(r.Weekdays))
	days := make([]int, 0, len(r.Weekdays))
	for _, wd := range r.Weekdays {
		if wd < 1 || wd > 7 {
			return fmt.Errorf("%w: day of week %d out of range 1..7", domain.ErrValidation, wd)
		}
		if !seen[wd] {
			seen[wd] = true
			days = append(days, wd)
		}
	}
	sort.Ints(days)
	r.Weekdays = days
	return nil
}

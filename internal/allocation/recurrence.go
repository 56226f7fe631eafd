package allocation

import (
	"time"

	"roombooking/internal/models"
)

// Expand lists the dates on which rule should have a booking, restricted to
// both [from, to] and the rule's own date range. The result is ascending and
// free of duplicates. Expand never fails; a WEEKLY rule without weekdays
// simply yields nothing.
func Expand(rule *models.RecurringRule, from, to time.Time) []time.Time {
	if rule == nil {
		return nil
	}

	start := models.DateOf(from)
	if rs := models.DateOf(rule.StartDate); rs.After(start) {
		start = rs
	}
	end := models.DateOf(to)
	if re := models.DateOf(rule.EndDate); re.Before(end) {
		end = re
	}

	include := matcher(rule)
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if include(d) {
			dates = append(dates, d)
		}
	}
	return dates
}

func matcher(rule *models.RecurringRule) func(time.Time) bool {
	switch rule.Frequency {
	case models.FrequencyDaily:
		return func(time.Time) bool { return true }
	case models.FrequencyWeekly:
		days := make(map[int]bool, len(rule.Weekdays))
		for _, wd := range rule.Weekdays {
			days[wd] = true
		}
		return func(d time.Time) bool { return days[models.ISOWeekday(d)] }
	case models.FrequencyMonthly:
		// Months without the anchor day are skipped, never rolled over.
		anchor := models.DateOf(rule.StartDate).Day()
		return func(d time.Time) bool { return d.Day() == anchor }
	default:
		return func(time.Time) bool { return false }
	}
}

package models

import "time"

type RecurringRule struct {
	ID             int64     `json:"id"`
	RoomID         int64     `json:"room_id"`
	OwnerID        int64     `json:"owner_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	StartTime      Clock     `json:"start_time"`
	EndTime        Clock     `json:"end_time"`
	Frequency      Frequency `json:"frequency"`
	Weekdays       []int     `json:"weekdays,omitempty"` // 1=Monday..7=Sunday, WEEKLY only
	AttendeesCount *int      `json:"attendees_count,omitempty"`
	State          Lifecycle `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (r *RecurringRule) Active() bool {
	return r.State == LifecycleActive
}

// RuleSummary pairs a rule with the number of bookings generated from it.
type RuleSummary struct {
	Rule            *RecurringRule `json:"rule"`
	BookingsCreated int            `json:"bookings_created"`
}

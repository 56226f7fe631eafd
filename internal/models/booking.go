package models

import "time"

type Booking struct {
	ID              int64         `json:"id"`
	RoomID          int64         `json:"room_id"`
	UserID          int64         `json:"user_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Date            time.Time     `json:"date"`
	StartTime       Clock         `json:"start_time"`
	EndTime         Clock         `json:"end_time"`
	AttendeesCount  *int          `json:"attendees_count,omitempty"`
	Status          BookingStatus `json:"status"`
	ApprovedBy      *int64        `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time    `json:"approved_at,omitempty"`
	RecurringRuleID *int64        `json:"recurring_rule_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Version         int64         `json:"version"`
}

// Holds reports whether the booking occupies its room.
func (b *Booking) Holds() bool {
	return b.Status == StatusApproved
}

// Clone returns a copy safe to mutate independently, used for audit snapshots.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.AttendeesCount != nil {
		v := *b.AttendeesCount
		c.AttendeesCount = &v
	}
	if b.ApprovedBy != nil {
		v := *b.ApprovedBy
		c.ApprovedBy = &v
	}
	if b.ApprovedAt != nil {
		v := *b.ApprovedAt
		c.ApprovedAt = &v
	}
	if b.RecurringRuleID != nil {
		v := *b.RecurringRuleID
		c.RecurringRuleID = &v
	}
	return &c
}

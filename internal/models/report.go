package models

import "time"

type RoomUtilization struct {
	RoomID           int64   `json:"room_id"`
	RoomName         string  `json:"room_name"`
	TotalBookings    int     `json:"total_bookings"`
	ApprovedBookings int     `json:"approved_bookings"`
	UtilizationPct   float64 `json:"utilization_percentage"`
}

type AnalyticsSummary struct {
	From              time.Time         `json:"from"`
	To                time.Time         `json:"to"`
	TotalBookings     int               `json:"total_bookings"`
	PendingBookings   int               `json:"pending_bookings"`
	ApprovedBookings  int               `json:"approved_bookings"`
	RejectedBookings  int               `json:"rejected_bookings"`
	CancelledBookings int               `json:"cancelled_bookings"`
	TotalRooms        int               `json:"total_rooms"`
	ActiveUsers       int               `json:"active_users"`
	MostBookedRoom    string            `json:"most_booked_room,omitempty"`
	PeakBookingHour   string            `json:"peak_booking_hour,omitempty"`
	Rooms             []RoomUtilization `json:"rooms"`
}

// BookingFilter narrows report and listing queries. Zero values mean "any".
type BookingFilter struct {
	RoomID int64
	UserID int64
	Status BookingStatus
}

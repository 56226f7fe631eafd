package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"roombooking/internal/models"
)

// Booking lifecycle events delivered to notifiers.
const (
	EventBookingCreated   = "booking_created"
	EventBookingApproved  = "booking_approved"
	EventBookingRejected  = "booking_rejected"
	EventBookingCancelled = "booking_cancelled"

	EventRecurringRunCompleted = "recurring_run_completed"
)

// EventForStatus maps a booking status to the event announcing it.
func EventForStatus(s models.BookingStatus) string {
	switch s {
	case models.StatusApproved:
		return EventBookingApproved
	case models.StatusRejected:
		return EventBookingRejected
	case models.StatusCancelled:
		return EventBookingCancelled
	default:
		return EventBookingCreated
	}
}

// BookingEventPayload is the booking snapshot carried by bus events.
type BookingEventPayload struct {
	BookingID       int64                `json:"booking_id"`
	RoomID          int64                `json:"room_id"`
	UserID          int64                `json:"user_id"`
	Title           string               `json:"title"`
	Date            string               `json:"date"`
	StartTime       string               `json:"start_time"`
	EndTime         string               `json:"end_time"`
	Status          models.BookingStatus `json:"status"`
	ApprovedBy      *int64               `json:"approved_by,omitempty"`
	RecurringRuleID *int64               `json:"recurring_rule_id,omitempty"`
}

func PayloadFor(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:       b.ID,
		RoomID:          b.RoomID,
		UserID:          b.UserID,
		Title:           b.Title,
		Date:            b.Date.Format(models.DateLayout),
		StartTime:       b.StartTime.String(),
		EndTime:         b.EndTime.String(),
		Status:          b.Status,
		ApprovedBy:      b.ApprovedBy,
		RecurringRuleID: b.RecurringRuleID,
	}
}

// RecurringRunPayload summarizes one expansion run.
type RecurringRunPayload struct {
	RunID       string `json:"run_id"`
	From        string `json:"from"`
	To          string `json:"to"`
	Rules       int    `json:"rules"`
	Created     int    `json:"created"`
	Skipped     int    `json:"skipped"`
	Conflicts   int    `json:"conflicts"`
	FailedRules int    `json:"failed_rules"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish calls every subscriber of the event type in order and returns the
// first handler error. All handlers run regardless.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var first error
	for _, handler := range handlers {
		if err := handler(event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}

// Name identifies the bus among notifiers.
func (b *EventBus) Name() string { return "event_bus" }

// Notify publishes the booking as a JSON event of the given type.
func (b *EventBus) Notify(_ context.Context, event string, booking *models.Booking) error {
	return b.PublishJSON(event, PayloadFor(booking))
}

package domain

import (
	"context"
	"time"

	"roombooking/internal/models"
)

// Directory resolves rooms and users. Missing records yield ErrNotFound.
type Directory interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type BookingStore interface {
	// CreateBooking inserts b and fills ID, timestamps and version.
	// Uniqueness violations surface as ErrConflict (ErrDuplicate for rule instances).
	CreateBooking(ctx context.Context, b *models.Booking) error
	// SaveTransition persists b's status fields if the stored version still
	// equals fromVersion. Moving to APPROVED re-checks overlaps atomically.
	SaveTransition(ctx context.Context, b *models.Booking, fromVersion int64) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	FindApproved(ctx context.Context, roomID int64, date time.Time) ([]*models.Booking, error)
	// FindByRecurringRuleAndStart returns nil, nil when no instance exists.
	FindByRecurringRuleAndStart(ctx context.Context, ruleID int64, date time.Time, start models.Clock) (*models.Booking, error)
	FindByStatus(ctx context.Context, status models.BookingStatus) ([]*models.Booking, error)
	FindByUser(ctx context.Context, userID int64) ([]*models.Booking, error)
	FindAll(ctx context.Context) ([]*models.Booking, error)
	FindByDateRange(ctx context.Context, from, to time.Time, filter models.BookingFilter) ([]*models.Booking, error)
	CountByRecurringRule(ctx context.Context, ruleID int64) (int, error)
}

type RuleStore interface {
	CreateRule(ctx context.Context, r *models.RecurringRule) error
	GetRule(ctx context.Context, id int64) (*models.RecurringRule, error)
	UpdateRuleState(ctx context.Context, id int64, state models.Lifecycle) error
	FindActiveForDate(ctx context.Context, date time.Time) ([]*models.RecurringRule, error)
	FindActiveByOwner(ctx context.Context, ownerID int64) ([]*models.RecurringRule, error)
}

type AuditStore interface {
	InsertAudit(ctx context.Context, e *models.AuditEntry) error
	RecentAudit(ctx context.Context, limit int) ([]*models.AuditEntry, error)
	AuditForEntity(ctx context.Context, entityType string, entityID int64) ([]*models.AuditEntry, error)
	AuditForEntityType(ctx context.Context, entityType string, limit int) ([]*models.AuditEntry, error)
	// AuditInRange returns entries created in [from, to).
	AuditInRange(ctx context.Context, from, to time.Time) ([]*models.AuditEntry, error)
}

// AuditSink records state changes. Implementations must not block the caller.
type AuditSink interface {
	Record(ctx context.Context, actorID *int64, entityType string, entityID int64, action string, before, after any)
}

// Notifier delivers one booking lifecycle event.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event string, booking *models.Booking) error
}

// TaskQueue runs work after the caller has returned.
type TaskQueue interface {
	Enqueue(name string, fn func(ctx context.Context) error) bool
}

// Lock guards a job across processes.
type Lock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

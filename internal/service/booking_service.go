package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roombooking/internal/allocation"
	"roombooking/internal/domain"
	"roombooking/internal/events"
	"roombooking/internal/metrics"
	"roombooking/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	bookings  domain.BookingStore
	directory *Directory
	audit     domain.AuditSink
	notify    *notifications
	now       func() time.Time
	logger    zerolog.Logger
}

func NewBookingService(
	bookings domain.BookingStore,
	directory *Directory,
	audit domain.AuditSink,
	queue domain.TaskQueue,
	notifiers []domain.Notifier,
	logger *zerolog.Logger,
) *BookingService {
	l := logger.With().Str("component", "booking_service").Logger()
	return &BookingService{
		bookings:  bookings,
		directory: directory,
		audit:     audit,
		notify:    &notifications{queue: queue, notifiers: notifiers, logger: l},
		now:       time.Now,
		logger:    l,
	}
}

// CreateBooking stores a new PENDING booking. Only APPROVED bookings block the
// slot, so overlapping pending requests are accepted.
func (s *BookingService) CreateBooking(ctx context.Context, req *models.Booking) (*models.Booking, error) {
	if err := allocation.ValidateBooking(req); err != nil {
		return nil, err
	}
	if _, err := s.directory.BookableRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}
	if _, err := s.directory.ActiveUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	b := req.Clone()
	b.Date = models.DateOf(b.Date)
	b.Status = models.StatusPending
	b.ApprovedBy = nil
	b.ApprovedAt = nil
	b.RecurringRuleID = nil

	approved, err := s.bookings.FindApproved(ctx, b.RoomID, b.Date)
	if err != nil {
		return nil, err
	}
	if conflicts := allocation.Conflicts(b.RoomID, b.Date, allocation.IntervalOf(b), approved); len(conflicts) > 0 {
		metrics.IncConflict("create")
		return nil, fmt.Errorf("%w: room %d is already booked %s-%s on %s",
			domain.ErrConflict, b.RoomID, conflicts[0].StartTime, conflicts[0].EndTime, b.Date.Format(models.DateLayout))
	}

	if err := s.bookings.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	metrics.IncBookingCreated("request")
	s.logTransition(b, "Booking created")

	actor := b.UserID
	s.audit.Record(ctx, &actor, models.EntityBooking, b.ID, models.ActionCreate, nil, b.Clone())
	s.notify.emit(events.EventBookingCreated, b)
	return b, nil
}

// ApproveBooking re-checks the slot against current approvals; the store
// repeats that check inside its write transaction.
func (s *BookingService) ApproveBooking(ctx context.Context, bookingID, adminID int64) (*models.Booking, error) {
	return s.transition(ctx, bookingID, adminID, func(b *models.Booking, actor allocation.Actor) (allocation.Transition, error) {
		if !actor.Admin {
			return allocation.Approve(b, actor, nil, s.now())
		}
		approved, err := s.bookings.FindApproved(ctx, b.RoomID, b.Date)
		if err != nil {
			return allocation.Transition{}, err
		}
		return allocation.Approve(b, actor, approved, s.now())
	})
}

func (s *BookingService) RejectBooking(ctx context.Context, bookingID, adminID int64) (*models.Booking, error) {
	return s.transition(ctx, bookingID, adminID, func(b *models.Booking, actor allocation.Actor) (allocation.Transition, error) {
		return allocation.Reject(b, actor, s.now())
	})
}

// Decide applies an admin's approval decision.
func (s *BookingService) Decide(ctx context.Context, bookingID, adminID int64, approve bool) (*models.Booking, error) {
	if approve {
		return s.ApproveBooking(ctx, bookingID, adminID)
	}
	return s.RejectBooking(ctx, bookingID, adminID)
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID, actorID int64) (*models.Booking, error) {
	return s.transition(ctx, bookingID, actorID, func(b *models.Booking, actor allocation.Actor) (allocation.Transition, error) {
		return allocation.Cancel(b, actor, s.now())
	})
}

type transitionFunc func(b *models.Booking, actor allocation.Actor) (allocation.Transition, error)

func (s *BookingService) transition(ctx context.Context, bookingID, actorID int64, apply transitionFunc) (*models.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	user, err := s.directory.ActiveUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	before := b.Clone()
	t, err := apply(b, allocation.ActorOf(user))
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.IncConflict("approve")
		}
		return nil, err
	}

	if err := s.bookings.SaveTransition(ctx, b, before.Version); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.IncConflict("approve")
		}
		return nil, err
	}

	metrics.IncTransition(string(t.To))
	s.logTransition(b, "Booking "+string(t.From)+" -> "+string(t.To))

	actor := actorID
	s.audit.Record(ctx, &actor, models.EntityBooking, b.ID, t.Action, before, b.Clone())
	s.notify.emit(events.EventForStatus(t.To), b)
	return b, nil
}

func (s *BookingService) logTransition(b *models.Booking, msg string) {
	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("room_id", b.RoomID).
		Str("date", b.Date.Format(models.DateLayout)).
		Str("status", string(b.Status)).
		Msg(msg)
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.bookings.GetBooking(ctx, id)
}

func (s *BookingService) BookingsByUser(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.bookings.FindByUser(ctx, userID)
}

func (s *BookingService) BookingsByStatus(ctx context.Context, status models.BookingStatus) ([]*models.Booking, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return s.bookings.FindByStatus(ctx, status)
}

func (s *BookingService) AllBookings(ctx context.Context) ([]*models.Booking, error) {
	return s.bookings.FindAll(ctx)
}

// BookingsInRange lists bookings dated within [from, to].
func (s *BookingService) BookingsInRange(ctx context.Context, from, to time.Time, filter models.BookingFilter) ([]*models.Booking, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end is before start", domain.ErrValidation)
	}
	return s.bookings.FindByDateRange(ctx, models.DateOf(from), models.DateOf(to), filter)
}

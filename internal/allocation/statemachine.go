package allocation

import (
	"fmt"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/models"
)

// Actor is whoever attempts a transition.
type Actor struct {
	UserID int64
	Admin  bool
}

func ActorOf(u *models.User) Actor {
	return Actor{UserID: u.ID, Admin: u.IsAdmin()}
}

// Transition describes a status change that has been applied to a booking.
type Transition struct {
	From   models.BookingStatus
	To     models.BookingStatus
	Action string
}

// Approve moves a PENDING booking to APPROVED. approved must be the current
// approved bookings for the booking's room and date; any overlap fails with
// ErrConflict and leaves b untouched.
func Approve(b *models.Booking, actor Actor, approved []*models.Booking, now time.Time) (Transition, error) {
	if !actor.Admin {
		return Transition{}, fmt.Errorf("%w: only admins can approve bookings", domain.ErrForbidden)
	}
	if b.Status != models.StatusPending {
		return Transition{}, fmt.Errorf("%w: booking %d is %s, only PENDING bookings can be approved", domain.ErrInvalidState, b.ID, b.Status)
	}

	others := make([]*models.Booking, 0, len(approved))
	for _, a := range approved {
		if a != nil && a.ID != b.ID {
			others = append(others, a)
		}
	}
	if conflicts := Conflicts(b.RoomID, b.Date, IntervalOf(b), others); len(conflicts) > 0 {
		return Transition{}, fmt.Errorf("%w: room %d is already booked %s-%s on %s by booking %d",
			domain.ErrConflict, b.RoomID, conflicts[0].StartTime, conflicts[0].EndTime,
			b.Date.Format(models.DateLayout), conflicts[0].ID)
	}

	return decide(b, actor, models.StatusApproved, models.ActionApprove, now), nil
}

// Reject moves a PENDING booking to REJECTED. No conflict check applies.
func Reject(b *models.Booking, actor Actor, now time.Time) (Transition, error) {
	if !actor.Admin {
		return Transition{}, fmt.Errorf("%w: only admins can reject bookings", domain.ErrForbidden)
	}
	if b.Status != models.StatusPending {
		return Transition{}, fmt.Errorf("%w: booking %d is %s, only PENDING bookings can be rejected", domain.ErrInvalidState, b.ID, b.Status)
	}
	return decide(b, actor, models.StatusRejected, models.ActionReject, now), nil
}

// Cancel moves a PENDING or APPROVED booking to CANCELLED. Only the owner or an admin may cancel.
func Cancel(b *models.Booking, actor Actor, now time.Time) (Transition, error) {
	if b.Status != models.StatusPending && b.Status != models.StatusApproved {
		return Transition{}, fmt.Errorf("%w: booking %d is already %s", domain.ErrInvalidState, b.ID, b.Status)
	}
	if b.UserID != actor.UserID && !actor.Admin {
		return Transition{}, fmt.Errorf("%w: only the owner or an admin can cancel booking %d", domain.ErrForbidden, b.ID)
	}

	t := Transition{From: b.Status, To: models.StatusCancelled, Action: models.ActionCancel}
	b.Status = models.StatusCancelled
	b.UpdatedAt = now
	return t, nil
}

func decide(b *models.Booking, actor Actor, to models.BookingStatus, action string, now time.Time) Transition {
	t := Transition{From: b.Status, To: to, Action: action}
	approver := actor.UserID
	at := now
	b.Status = to
	b.ApprovedBy = &approver
	b.ApprovedAt = &at
	b.UpdatedAt = now
	return t
}

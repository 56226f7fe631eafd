package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approve(b *models.Booking, by int64) {
	at := time.Now()
	b.Status = models.StatusApproved
	b.ApprovedBy = &by
	b.ApprovedAt = &at
	b.UpdatedAt = at
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	attendees := 5
	b := newBooking(t, "2024-06-10", "09:00", "10:00")
	b.Description = "quarterly"
	b.AttendeesCount = &attendees
	require.NoError(t, db.CreateBooking(ctx, b))
	assert.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.RoomID, got.RoomID)
	assert.Equal(t, "2024-06-10", got.Date.Format(models.DateLayout))
	assert.Equal(t, "09:00", got.StartTime.String())
	assert.Equal(t, "10:00", got.EndTime.String())
	assert.Equal(t, models.StatusPending, got.Status)
	require.NotNil(t, got.AttendeesCount)
	assert.Equal(t, 5, *got.AttendeesCount)
	assert.Nil(t, got.ApprovedBy)
	assert.Nil(t, got.ApprovedAt)
	assert.Nil(t, got.RecurringRuleID)

	_, err = db.GetBooking(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateBooking_Constraints(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("UnknownRoom", func(t *testing.T) {
		b := newBooking(t, "2024-06-10", "09:00", "10:00")
		b.RoomID = 999
		assert.ErrorIs(t, db.CreateBooking(ctx, b), domain.ErrNotFound)
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		b := newBooking(t, "2024-06-10", "10:00", "09:00")
		assert.ErrorIs(t, db.CreateBooking(ctx, b), domain.ErrValidation)
	})

	t.Run("ApprovedSlotTaken", func(t *testing.T) {
		first := newBooking(t, "2024-06-11", "09:00", "10:00")
		approve(first, testAdmin)
		require.NoError(t, db.CreateBooking(ctx, first))

		second := newBooking(t, "2024-06-11", "09:00", "09:30")
		approve(second, testAdmin)
		err := db.CreateBooking(ctx, second)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.NotErrorIs(t, err, domain.ErrDuplicate)
	})

	t.Run("PendingSameSlotAllowed", func(t *testing.T) {
		require.NoError(t, db.CreateBooking(ctx, newBooking(t, "2024-06-12", "09:00", "10:00")))
		require.NoError(t, db.CreateBooking(ctx, newBooking(t, "2024-06-12", "09:00", "10:00")))
	})
}

func TestSaveTransition(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("ApproveAndBumpVersion", func(t *testing.T) {
		b := newBooking(t, "2024-06-10", "09:00", "10:00")
		require.NoError(t, db.CreateBooking(ctx, b))

		approve(b, testAdmin)
		require.NoError(t, db.SaveTransition(ctx, b, 1))
		assert.Equal(t, int64(2), b.Version)

		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusApproved, got.Status)
		assert.Equal(t, int64(2), got.Version)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, testAdmin, *got.ApprovedBy)
		assert.NotNil(t, got.ApprovedAt)
	})

	t.Run("OverlapRejectedInsideTransaction", func(t *testing.T) {
		b := newBooking(t, "2024-06-10", "09:30", "10:30")
		require.NoError(t, db.CreateBooking(ctx, b))

		approve(b, testAdmin)
		err := db.SaveTransition(ctx, b, 1)
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("AdjacentApproved", func(t *testing.T) {
		b := newBooking(t, "2024-06-10", "10:00", "11:00")
		require.NoError(t, db.CreateBooking(ctx, b))
		approve(b, testAdmin)
		assert.NoError(t, db.SaveTransition(ctx, b, 1))
	})

	t.Run("StaleVersion", func(t *testing.T) {
		b := newBooking(t, "2024-06-13", "09:00", "10:00")
		require.NoError(t, db.CreateBooking(ctx, b))

		b.Status = models.StatusCancelled
		require.NoError(t, db.SaveTransition(ctx, b, 1))

		b.Status = models.StatusApproved
		err := db.SaveTransition(ctx, b, 1)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestConcurrentApprovals(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	const n = 8
	bookings := make([]*models.Booking, n)
	for i := range bookings {
		// Staggered starts so every pair overlaps but no two share a start time.
		b := newBooking(t, "2024-07-01", "09:00", "11:00")
		b.StartTime += models.Clock(i)
		require.NoError(t, db.CreateBooking(ctx, b))
		bookings[i] = b
	}

	var wg sync.WaitGroup
	results := make(chan error, n)
	for _, b := range bookings {
		wg.Add(1)
		go func(b *models.Booking) {
			defer wg.Done()
			approve(b, testAdmin)
			results <- db.SaveTransition(ctx, b, 1)
		}(b)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	approved, err := db.FindApproved(ctx, testRoom, mustDate(t, "2024-07-01"))
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestBookingQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := newBooking(t, "2024-06-10", "09:00", "10:00")
	b := newBooking(t, "2024-06-11", "14:00", "15:00")
	c := newBooking(t, "2024-06-12", "08:00", "09:00")
	c.UserID = testAdmin
	for _, bk := range []*models.Booking{a, b, c} {
		require.NoError(t, db.CreateBooking(ctx, bk))
	}
	approve(b, testAdmin)
	require.NoError(t, db.SaveTransition(ctx, b, 1))

	all, err := db.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	pending, err := db.FindByStatus(ctx, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)

	mine, err := db.FindByUser(ctx, testEmployee)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, b.ID, mine[0].ID, "newest date first")

	approved, err := db.FindApproved(ctx, testRoom, mustDate(t, "2024-06-11"))
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, b.ID, approved[0].ID)

	ranged, err := db.FindByDateRange(ctx, mustDate(t, "2024-06-11"), mustDate(t, "2024-06-12"), models.BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	filtered, err := db.FindByDateRange(ctx, mustDate(t, "2024-06-01"), mustDate(t, "2024-06-30"),
		models.BookingFilter{UserID: testAdmin})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, c.ID, filtered[0].ID)

	none, err := db.FindByDateRange(ctx, mustDate(t, "2024-06-01"), mustDate(t, "2024-06-30"),
		models.BookingFilter{Status: models.StatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, none)
}

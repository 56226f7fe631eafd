package database

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "closed.db"), &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	t.Run("CreateBooking", func(t *testing.T) {
		err := db.CreateBooking(ctx, &models.Booking{RoomID: 1, UserID: 1, Date: day, StartTime: 540, EndTime: 600})
		assert.Error(t, err)
	})

	t.Run("FindApproved", func(t *testing.T) {
		_, err := db.FindApproved(ctx, 1, day)
		assert.Error(t, err)
	})

	t.Run("FindActiveForDate", func(t *testing.T) {
		_, err := db.FindActiveForDate(ctx, day)
		assert.Error(t, err)
	})

	t.Run("InsertAudit", func(t *testing.T) {
		err := db.InsertAudit(ctx, &models.AuditEntry{EntityType: models.EntityBooking, EntityID: 1, Action: models.ActionCreate})
		assert.Error(t, err)
	})

	t.Run("GetBookingIsNotNotFound", func(t *testing.T) {
		_, err := db.GetBooking(ctx, 1)
		require.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrNotFound))
	})
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	logger := zerolog.New(io.Discard)
	return &DB{
		DB:        sqlDB,
		logger:    &logger,
		roomCache: make(map[int64]models.Room),
		userCache: make(map[int64]models.User),
	}, mock
}

func TestGetBooking_DriverErrorKeepsCause(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).
		WithArgs(int64(7)).
		WillReturnError(boom)

	_, err := db.GetBooking(context.Background(), 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBooking_NoRowsIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id = ?`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := db.GetBooking(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindApproved_NormalizesDate(t *testing.T) {
	db, mock := newMockDB(t)
	afternoon := time.Date(2024, 6, 10, 15, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`FROM bookings\s+WHERE room_id = \? AND date = \? AND status = \?`).
		WithArgs(int64(3), "2024-06-10", string(models.StatusApproved)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	bookings, err := db.FindApproved(context.Background(), 3, afternoon)
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapWriteError(t *testing.T) {
	assert.NoError(t, mapWriteError(nil))

	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	assert.ErrorIs(t, mapWriteError(unique), domain.ErrConflict)

	fk := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}
	assert.ErrorIs(t, mapWriteError(fk), domain.ErrNotFound)

	check := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}
	assert.ErrorIs(t, mapWriteError(check), domain.ErrValidation)

	other := errors.New("database is locked")
	assert.Equal(t, other, mapWriteError(other))
}

package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRoom     int64 = 1
	testRoom2    int64 = 2
	testEmployee int64 = 10
	testAdmin    int64 = 20
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	err = db.SyncDirectory(context.Background(),
		[]models.Room{
			{ID: testRoom, Name: "Atlas", Location: "2F", Capacity: 8},
			{ID: testRoom2, Name: "Borealis", Capacity: 4, State: models.LifecycleRetired},
		},
		[]models.User{
			{ID: testEmployee, Username: "emp", Role: models.RoleEmployee},
			{ID: testAdmin, Username: "boss", Role: models.RoleAdmin},
		},
	)
	require.NoError(t, err)
	return db
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustClock(t *testing.T, s string) models.Clock {
	t.Helper()
	c, err := models.ParseClock(s)
	require.NoError(t, err)
	return c
}

func newBooking(t *testing.T, date, start, end string) *models.Booking {
	return &models.Booking{
		RoomID:    testRoom,
		UserID:    testEmployee,
		Title:     "Planning",
		Date:      mustDate(t, date),
		StartTime: mustClock(t, start),
		EndTime:   mustClock(t, end),
		Status:    models.StatusPending,
	}
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestNewDB_Reopen(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

func TestDirectory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	room, err := db.GetRoom(ctx, testRoom)
	require.NoError(t, err)
	assert.Equal(t, "Atlas", room.Name)
	assert.Equal(t, models.LifecycleActive, room.State)

	retired, err := db.GetRoom(ctx, testRoom2)
	require.NoError(t, err)
	assert.False(t, retired.Active())

	user, err := db.GetUser(ctx, testAdmin)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())

	_, err = db.GetRoom(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = db.GetUser(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rooms, err := db.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	t.Run("ResyncUpdatesCache", func(t *testing.T) {
		err := db.SyncDirectory(ctx, []models.Room{{ID: testRoom, Name: "Atlas XL", Capacity: 12}}, nil)
		require.NoError(t, err)

		room, err := db.GetRoom(ctx, testRoom)
		require.NoError(t, err)
		assert.Equal(t, "Atlas XL", room.Name)
		assert.Equal(t, 12, room.Capacity)
	})
}

func TestDB_ClosedErrors(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "closed.db"), &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()
	assert.Error(t, db.CreateBooking(ctx, newBooking(t, "2024-06-10", "09:00", "10:00")))
	_, err = db.FindAll(ctx)
	assert.Error(t, err)
	_, err = db.GetBooking(ctx, 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	_, err = db.FindActiveForDate(ctx, time.Now())
	assert.Error(t, err)
	assert.Error(t, db.InsertAudit(ctx, &models.AuditEntry{EntityType: models.EntityBooking, EntityID: 1, Action: models.ActionCreate}))
}

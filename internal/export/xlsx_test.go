package export

import (
	"testing"
	"time"

	"roombooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func booking(id int64, day int, start int) *models.Booking {
	return &models.Booking{
		ID:        id,
		RoomID:    1,
		UserID:    10,
		Title:     "Sync",
		Date:      time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		StartTime: models.Clock(start * 60),
		EndTime:   models.Clock((start + 1) * 60),
		Status:    models.StatusApproved,
	}
}

func TestSortBookings(t *testing.T) {
	list := []*models.Booking{booking(1, 4, 9), booking(2, 3, 14), booking(3, 3, 9)}
	SortBookings(list)

	assert.Equal(t, int64(3), list[0].ID)
	assert.Equal(t, int64(2), list[1].ID)
	assert.Equal(t, int64(1), list[2].ID)
}

func TestWriteBookingsReport(t *testing.T) {
	dir := t.TempDir()
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	approver := int64(20)
	late := booking(1, 4, 9)
	early := booking(2, 3, 9)
	early.ApprovedBy = &approver
	names := Names{
		Rooms: map[int64]string{1: "Atlas"},
		Users: map[int64]string{10: "alice", 20: "admin"},
	}

	path, err := WriteBookingsReport(dir, from, to, []*models.Booking{late, early}, names)
	require.NoError(t, err)
	assert.Contains(t, path, "bookings_2025-03-01_to_2025-03-31.xlsx")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{bookingsSheet}, f.GetSheetList())

	rows, err := f.GetRows(bookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "ID", rows[1][0])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "Atlas", rows[2][1])
	assert.Equal(t, "2025-03-03", rows[2][4])
	assert.Equal(t, "admin", rows[2][10])
	assert.Equal(t, "1", rows[3][0])
}

func TestNamesFallback(t *testing.T) {
	var n Names
	assert.Equal(t, "#7", n.room(7))
	assert.Equal(t, "#8", n.user(8))
}

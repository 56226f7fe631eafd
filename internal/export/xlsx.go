package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"roombooking/internal/models"

	"github.com/xuri/excelize/v2"
)

const bookingsSheet = "Bookings"

var columns = []string{
	"ID", "Room", "Requester", "Title", "Date", "Start", "End",
	"Attendees", "Status", "Recurring Rule", "Approved By", "Created At",
}

// Names resolves display names for rooms and users. Unknown ids fall back to "#id".
type Names struct {
	Rooms map[int64]string
	Users map[int64]string
}

func (n Names) room(id int64) string {
	if name, ok := n.Rooms[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

func (n Names) user(id int64) string {
	if name, ok := n.Users[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

// SortBookings orders bookings by date, start time, then room.
func SortBookings(bookings []*models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.RoomID < b.RoomID
	})
}

// WriteBookingsReport saves an XLSX listing of bookings into dir and returns the file path.
func WriteBookingsReport(dir string, from, to time.Time, bookings []*models.Booking, names Names) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	rows := make([]*models.Booking, len(bookings))
	copy(rows, bookings)
	SortBookings(rows)

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format(models.DateLayout), to.Format(models.DateLayout)))
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.MergeCell(bookingsSheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(bookingsSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(bookingsSheet, cell, h)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, headerStyle)
	}

	styles, err := statusStyles(f)
	if err != nil {
		return "", err
	}

	for i, b := range rows {
		row := i + 3
		values := []interface{}{
			b.ID,
			names.room(b.RoomID),
			names.user(b.UserID),
			b.Title,
			b.Date.Format(models.DateLayout),
			b.StartTime.String(),
			b.EndTime.String(),
			"",
			string(b.Status),
			"",
			"",
			b.CreatedAt.Format("2006-01-02 15:04"),
		}
		if b.AttendeesCount != nil {
			values[7] = *b.AttendeesCount
		}
		if b.RecurringRuleID != nil {
			values[9] = *b.RecurringRuleID
		}
		if b.ApprovedBy != nil {
			values[10] = names.user(*b.ApprovedBy)
		}

		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(bookingsSheet, cell, &values); err != nil {
			return "", fmt.Errorf("error writing row %d: %w", row, err)
		}
		if style, ok := styles[b.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(9, row)
			_ = f.SetCellStyle(bookingsSheet, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 8)
	_ = f.SetColWidth(bookingsSheet, "B", lastCol, 18)
	_ = f.SetColWidth(bookingsSheet, "D", "D", 30)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		from.Format(models.DateLayout), to.Format(models.DateLayout))
	filePath := filepath.Join(dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return filePath, nil
}

func statusStyles(f *excelize.File) (map[models.BookingStatus]int, error) {
	colors := map[models.BookingStatus]string{
		models.StatusPending:   "#FFEB9C",
		models.StatusApproved:  "#C6EFCE",
		models.StatusRejected:  "#FFC7CE",
		models.StatusCancelled: "#D9D9D9",
	}
	styles := make(map[models.BookingStatus]int, len(colors))
	for status, color := range colors {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		if err != nil {
			return nil, fmt.Errorf("error creating style: %w", err)
		}
		styles[status] = id
	}
	return styles, nil
}

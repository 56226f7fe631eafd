package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/export"
	"roombooking/internal/models"

	"github.com/rs/zerolog"
)

type ReportService struct {
	bookings  domain.BookingStore
	directory *Directory
	exportDir string
	logger    zerolog.Logger
}

func NewReportService(bookings domain.BookingStore, directory *Directory, exportDir string, logger *zerolog.Logger) *ReportService {
	return &ReportService{
		bookings:  bookings,
		directory: directory,
		exportDir: exportDir,
		logger:    logger.With().Str("component", "reports").Logger(),
	}
}

func (s *ReportService) load(ctx context.Context, from, to time.Time, filter models.BookingFilter) ([]*models.Booking, error) {
	from, to = models.DateOf(from), models.DateOf(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end is before start", domain.ErrValidation)
	}
	return s.bookings.FindByDateRange(ctx, from, to, filter)
}

// Summary aggregates bookings dated within [from, to].
func (s *ReportService) Summary(ctx context.Context, from, to time.Time) (*models.AnalyticsSummary, error) {
	bookings, err := s.load(ctx, from, to, models.BookingFilter{})
	if err != nil {
		return nil, err
	}
	rooms, err := s.directory.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	sum := &models.AnalyticsSummary{
		From:          models.DateOf(from),
		To:            models.DateOf(to),
		TotalBookings: len(bookings),
	}

	perRoom := make(map[int64]*models.RoomUtilization)
	for _, r := range rooms {
		if !r.Active() {
			continue
		}
		sum.TotalRooms++
		perRoom[r.ID] = &models.RoomUtilization{RoomID: r.ID, RoomName: r.Name}
	}

	users := make(map[int64]struct{})
	hours := make(map[int]int)
	for _, b := range bookings {
		switch b.Status {
		case models.StatusPending:
			sum.PendingBookings++
		case models.StatusApproved:
			sum.ApprovedBookings++
		case models.StatusRejected:
			sum.RejectedBookings++
		case models.StatusCancelled:
			sum.CancelledBookings++
		}
		users[b.UserID] = struct{}{}
		hours[b.StartTime.Hour()]++

		u, ok := perRoom[b.RoomID]
		if !ok {
			u = &models.RoomUtilization{RoomID: b.RoomID, RoomName: fmt.Sprintf("#%d", b.RoomID)}
			perRoom[b.RoomID] = u
		}
		u.TotalBookings++
		if b.Status == models.StatusApproved {
			u.ApprovedBookings++
		}
	}
	sum.ActiveUsers = len(users)

	sum.Rooms = make([]models.RoomUtilization, 0, len(perRoom))
	for _, u := range perRoom {
		if u.TotalBookings > 0 {
			u.UtilizationPct = float64(u.ApprovedBookings) / float64(u.TotalBookings) * 100
		}
		sum.Rooms = append(sum.Rooms, *u)
	}
	sort.Slice(sum.Rooms, func(i, j int) bool { return sum.Rooms[i].RoomID < sum.Rooms[j].RoomID })

	best := 0
	for _, u := range sum.Rooms {
		if u.TotalBookings > best {
			best = u.TotalBookings
			sum.MostBookedRoom = u.RoomName
		}
	}

	peak, peakCount := -1, 0
	for h, n := range hours {
		if n > peakCount || (n == peakCount && h < peak) {
			peak, peakCount = h, n
		}
	}
	if peak >= 0 {
		sum.PeakBookingHour = fmt.Sprintf("%02d:00", peak)
	}
	return sum, nil
}

// ExportXLSX writes the matching bookings to a spreadsheet and returns its path.
func (s *ReportService) ExportXLSX(ctx context.Context, from, to time.Time, filter models.BookingFilter) (string, error) {
	bookings, err := s.load(ctx, from, to, filter)
	if err != nil {
		return "", err
	}
	roomNames, err := s.directory.RoomNames(ctx)
	if err != nil {
		return "", err
	}

	userNames := make(map[int64]string)
	resolve := func(id int64) {
		if _, ok := userNames[id]; ok {
			return
		}
		if u, err := s.directory.GetUser(ctx, id); err == nil {
			userNames[id] = u.Username
		} else {
			userNames[id] = ""
		}
	}
	for _, b := range bookings {
		resolve(b.UserID)
		if b.ApprovedBy != nil {
			resolve(*b.ApprovedBy)
		}
	}

	path, err := export.WriteBookingsReport(s.exportDir, models.DateOf(from), models.DateOf(to), bookings,
		export.Names{Rooms: roomNames, Users: userNames})
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("file_path", path).Int("bookings", len(bookings)).Msg("Bookings report exported")
	return path, nil
}

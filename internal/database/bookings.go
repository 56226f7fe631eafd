package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/models"
)

const bookingColumns = `id, room_id, user_id, title, description, date, start_time, end_time,
	attendees_count, status, approved_by, approved_at, recurring_rule_id,
	created_at, updated_at, version`

func scanBooking(s rowScanner) (*models.Booking, error) {
	var (
		b                     models.Booking
		dateStr, start, end   string
		attendees, approvedBy sql.NullInt64
		ruleID                sql.NullInt64
		approvedAt            sql.NullTime
	)
	err := s.Scan(
		&b.ID, &b.RoomID, &b.UserID, &b.Title, &b.Description, &dateStr, &start, &end,
		&attendees, &b.Status, &approvedBy, &approvedAt, &ruleID,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	if b.Date, err = models.ParseDate(dateStr); err != nil {
		return nil, fmt.Errorf("failed to parse booking date %s: %w", dateStr, err)
	}
	if b.StartTime, err = models.ParseClock(start); err != nil {
		return nil, fmt.Errorf("failed to parse booking start %s: %w", start, err)
	}
	if b.EndTime, err = models.ParseClock(end); err != nil {
		return nil, fmt.Errorf("failed to parse booking end %s: %w", end, err)
	}
	b.AttendeesCount = intPtr(attendees)
	b.ApprovedBy = int64Ptr(approvedBy)
	b.RecurringRuleID = int64Ptr(ruleID)
	if approvedAt.Valid {
		at := approvedAt.Time
		b.ApprovedAt = &at
	}
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// CreateBooking inserts b with version 1.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	query := `INSERT INTO bookings (
				room_id, user_id, title, description, date, start_time, end_time,
				attendees_count, status, approved_by, approved_at, recurring_rule_id,
				created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	var approvedAt sql.NullTime
	if b.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *b.ApprovedAt, Valid: true}
	}
	result, err := db.ExecContext(ctx, query,
		b.RoomID,
		b.UserID,
		b.Title,
		b.Description,
		b.Date.Format(models.DateLayout),
		b.StartTime.String(),
		b.EndTime.String(),
		nullInt(b.AttendeesCount),
		b.Status,
		nullInt64(b.ApprovedBy),
		approvedAt,
		nullInt64(b.RecurringRuleID),
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", mapWriteError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	b.Version = 1
	return nil
}

// SaveTransition writes b's status, approver and decision time if the stored
// row is still at fromVersion. An APPROVED target re-checks overlapping
// approved bookings inside the same immediate transaction.
func (db *DB) SaveTransition(ctx context.Context, b *models.Booking, fromVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if b.Status == models.StatusApproved {
		var overlapping int64
		checkQuery := `SELECT COALESCE(MIN(id), 0) FROM bookings
		               WHERE room_id = ? AND date = ? AND status = ? AND id <> ?
		                 AND start_time < ? AND end_time > ?`
		err = tx.QueryRowContext(ctx, checkQuery,
			b.RoomID, b.Date.Format(models.DateLayout), models.StatusApproved, b.ID,
			b.EndTime.String(), b.StartTime.String(),
		).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("failed to check overlaps in tx: %w", err)
		}
		if overlapping != 0 {
			return fmt.Errorf("%w: room %d already approved for booking %d on %s",
				domain.ErrConflict, b.RoomID, overlapping, b.Date.Format(models.DateLayout))
		}
	}

	var approvedAt sql.NullTime
	if b.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *b.ApprovedAt, Valid: true}
	}
	updateQuery := `UPDATE bookings
	                SET status = ?, approved_by = ?, approved_at = ?, updated_at = ?, version = version + 1
	                WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, updateQuery,
		b.Status, nullInt64(b.ApprovedBy), approvedAt, b.UpdatedAt, b.ID, fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", mapWriteError(err))
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: booking %d was modified concurrently", domain.ErrConflict, b.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", mapWriteError(err))
	}
	b.Version = fromVersion + 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return b, nil
}

func (db *DB) FindApproved(ctx context.Context, roomID int64, date time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE room_id = ? AND date = ? AND status = ? ORDER BY start_time`
	return db.queryBookings(ctx, query, roomID, models.DateOf(date).Format(models.DateLayout), models.StatusApproved)
}

// FindByRecurringRuleAndStart returns the instance of rule on date at start, in any status, or nil.
func (db *DB) FindByRecurringRuleAndStart(ctx context.Context, ruleID int64, date time.Time, start models.Clock) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE recurring_rule_id = ? AND date = ? AND start_time = ? LIMIT 1`
	bookings, err := db.queryBookings(ctx, query, ruleID, models.DateOf(date).Format(models.DateLayout), start.String())
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return bookings[0], nil
}

func (db *DB) FindByStatus(ctx context.Context, status models.BookingStatus) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = ? ORDER BY date, start_time, id`
	return db.queryBookings(ctx, query, status)
}

func (db *DB) FindByUser(ctx context.Context, userID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY date DESC, start_time DESC`
	return db.queryBookings(ctx, query, userID)
}

func (db *DB) FindAll(ctx context.Context) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY date, start_time, id`)
}

// FindByDateRange returns bookings dated within [from, to] matching filter, ordered by date and start time.
func (db *DB) FindByDateRange(ctx context.Context, from, to time.Time, filter models.BookingFilter) ([]*models.Booking, error) {
	conds := []string{"date >= ?", "date <= ?"}
	args := []any{models.DateOf(from).Format(models.DateLayout), models.DateOf(to).Format(models.DateLayout)}
	if filter.RoomID != 0 {
		conds = append(conds, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY date, start_time, id`
	return db.queryBookings(ctx, query, args...)
}

func (db *DB) CountByRecurringRule(ctx context.Context, ruleID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE recurring_rule_id = ?`, ruleID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings for rule %d: %w", ruleID, err)
	}
	return n, nil
}

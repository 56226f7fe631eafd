package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/models"
)

const ruleColumns = `id, room_id, owner_id, title, description, start_date, end_date,
	start_time, end_time, frequency, weekdays, attendees_count, state, created_at, updated_at`

func encodeWeekdays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	days := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q: %w", p, err)
		}
		days = append(days, d)
	}
	return days, nil
}

func scanRule(s rowScanner) (*models.RecurringRule, error) {
	var (
		r                  models.RecurringRule
		startDate, endDate string
		start, end         string
		weekdays           string
		attendees          sql.NullInt64
	)
	err := s.Scan(
		&r.ID, &r.RoomID, &r.OwnerID, &r.Title, &r.Description, &startDate, &endDate,
		&start, &end, &r.Frequency, &weekdays, &attendees, &r.State, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.StartDate, err = models.ParseDate(startDate); err != nil {
		return nil, err
	}
	if r.EndDate, err = models.ParseDate(endDate); err != nil {
		return nil, err
	}
	if r.StartTime, err = models.ParseClock(start); err != nil {
		return nil, err
	}
	if r.EndTime, err = models.ParseClock(end); err != nil {
		return nil, err
	}
	if r.Weekdays, err = decodeWeekdays(weekdays); err != nil {
		return nil, err
	}
	r.AttendeesCount = intPtr(attendees)
	return &r, nil
}

func (db *DB) queryRules(ctx context.Context, query string, args ...any) ([]*models.RecurringRule, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.RecurringRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (db *DB) CreateRule(ctx context.Context, r *models.RecurringRule) error {
	query := `INSERT INTO recurring_rules (
				room_id, owner_id, title, description, start_date, end_date,
				start_time, end_time, frequency, weekdays, attendees_count, state,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	state := r.State
	if state == "" {
		state = models.LifecycleActive
	}
	result, err := db.ExecContext(ctx, query,
		r.RoomID,
		r.OwnerID,
		r.Title,
		r.Description,
		r.StartDate.Format(models.DateLayout),
		r.EndDate.Format(models.DateLayout),
		r.StartTime.String(),
		r.EndTime.String(),
		r.Frequency,
		encodeWeekdays(r.Weekdays),
		nullInt(r.AttendeesCount),
		state,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create recurring rule: %w", mapWriteError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.State = state
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (db *DB) GetRule(ctx context.Context, id int64) (*models.RecurringRule, error) {
	row := db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if err != nil {
		return nil, notFound(err, "recurring rule", id)
	}
	return r, nil
}

func (db *DB) UpdateRuleState(ctx context.Context, id int64, state models.Lifecycle) error {
	result, err := db.ExecContext(ctx, `UPDATE recurring_rules SET state = ?, updated_at = ? WHERE id = ?`, state, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update recurring rule %d: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: recurring rule %d", domain.ErrNotFound, id)
	}
	return nil
}

// FindActiveForDate returns active rules whose date range contains date.
func (db *DB) FindActiveForDate(ctx context.Context, date time.Time) ([]*models.RecurringRule, error) {
	day := models.DateOf(date).Format(models.DateLayout)
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules
              WHERE state = ? AND start_date <= ? AND end_date >= ? ORDER BY id`
	return db.queryRules(ctx, query, models.LifecycleActive, day, day)
}

func (db *DB) FindActiveByOwner(ctx context.Context, ownerID int64) ([]*models.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE owner_id = ? AND state = ? ORDER BY id`
	return db.queryRules(ctx, query, ownerID, models.LifecycleActive)
}

package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"roombooking/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var errRowNotFound = errors.New("booking row not found")

var header = []interface{}{
	"ID", "Room ID", "User ID", "Title", "Date", "Start", "End",
	"Status", "Recurring Rule", "Approved By", "Updated At",
}

// SheetsMirror keeps one spreadsheet row per booking, keyed by booking ID in column A.
type SheetsMirror struct {
	service       *sheets.Service
	spreadsheetID string
	sheet         string

	rowCache map[int64]int
	cacheMu  sync.RWMutex
}

// NewSheetsMirror authenticates with a service-account credentials file.
func NewSheetsMirror(ctx context.Context, credentialsFile, spreadsheetID, sheet string) (*SheetsMirror, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsMirror(srv, spreadsheetID, sheet), nil
}

func newSheetsMirror(srv *sheets.Service, spreadsheetID, sheet string) *SheetsMirror {
	if sheet == "" {
		sheet = "Bookings"
	}
	return &SheetsMirror{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		rowCache:      make(map[int64]int),
	}
}

func (m *SheetsMirror) Name() string { return "sheets" }

// Notify mirrors the booking's current state regardless of event type.
func (m *SheetsMirror) Notify(ctx context.Context, _ string, b *models.Booking) error {
	return m.UpsertBooking(ctx, b)
}

func (m *SheetsMirror) rng(a1 string) string {
	return m.sheet + "!" + a1
}

// EnsureHeader writes the column titles into row 1.
func (m *SheetsMirror) EnsureHeader(ctx context.Context) error {
	_, err := m.service.Spreadsheets.Values.Update(m.spreadsheetID, m.rng("A1:K1"), &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet header: %w", err)
	}
	return nil
}

// WarmUpCache rebuilds the booking ID to row index cache from column A.
func (m *SheetsMirror) WarmUpCache(ctx context.Context) error {
	resp, err := m.service.Spreadsheets.Values.Get(m.spreadsheetID, m.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read booking ids: %w", err)
	}

	cache := make(map[int64]int)
	for i, row := range resp.Values {
		if id, ok := cellID(row); ok {
			cache[id] = i + 1
		}
	}

	m.cacheMu.Lock()
	m.rowCache = cache
	m.cacheMu.Unlock()
	return nil
}

// UpsertBooking updates the booking's row, appending one if it is not in the sheet yet.
func (m *SheetsMirror) UpsertBooking(ctx context.Context, b *models.Booking) error {
	if b == nil {
		return errors.New("booking is nil")
	}

	rowIdx, err := m.findRow(ctx, b.ID)
	if errors.Is(err, errRowNotFound) {
		return m.appendBooking(ctx, b)
	}
	if err != nil {
		return err
	}

	_, err = m.service.Spreadsheets.Values.Update(m.spreadsheetID, m.rng(fmt.Sprintf("A%d:K%d", rowIdx, rowIdx)), &sheets.ValueRange{
		Values: [][]interface{}{rowValues(b)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update booking row %d: %w", rowIdx, err)
	}
	return nil
}

func (m *SheetsMirror) appendBooking(ctx context.Context, b *models.Booking) error {
	_, err := m.service.Spreadsheets.Values.Append(m.spreadsheetID, m.rng("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{rowValues(b)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append booking %d: %w", b.ID, err)
	}
	// Row position is unknown until the next lookup.
	return nil
}

func (m *SheetsMirror) findRow(ctx context.Context, bookingID int64) (int, error) {
	if bookingID == 0 {
		return 0, errors.New("booking id is required")
	}

	m.cacheMu.RLock()
	row, ok := m.rowCache[bookingID]
	m.cacheMu.RUnlock()
	if ok {
		return row, nil
	}

	if err := m.WarmUpCache(ctx); err != nil {
		return 0, err
	}

	m.cacheMu.RLock()
	row, ok = m.rowCache[bookingID]
	m.cacheMu.RUnlock()
	if !ok {
		return 0, errRowNotFound
	}
	return row, nil
}

func cellID(row []interface{}) (int64, bool) {
	if len(row) == 0 {
		return 0, false
	}
	switch v := row[0].(type) {
	case float64:
		return int64(v), v > 0
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil && id > 0
	}
	return 0, false
}

func rowValues(b *models.Booking) []interface{} {
	var ruleID, approvedBy interface{} = "", ""
	if b.RecurringRuleID != nil {
		ruleID = *b.RecurringRuleID
	}
	if b.ApprovedBy != nil {
		approvedBy = *b.ApprovedBy
	}
	updated := b.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	return []interface{}{
		b.ID,
		b.RoomID,
		b.UserID,
		b.Title,
		b.Date.Format(models.DateLayout),
		b.StartTime.String(),
		b.EndTime.String(),
		string(b.Status),
		ruleID,
		approvedBy,
		updated.Format("2006-01-02 15:04:05"),
	}
}

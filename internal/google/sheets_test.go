package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"roombooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type fakeSheet struct {
	mu       sync.Mutex
	ids      [][]interface{}
	updates  []string
	appended [][]interface{}
	gets     int
}

func (f *fakeSheet) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
			f.gets++
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"values": f.ids})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
			var vr sheets.ValueRange
			require.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
			f.appended = append(f.appended, vr.Values...)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{})
		case r.Method == http.MethodPut:
			f.updates = append(f.updates, r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{})
		default:
			http.Error(w, "unexpected request", http.StatusBadRequest)
		}
	}
}

func newTestMirror(t *testing.T, fake *fakeSheet) *SheetsMirror {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithEndpoint(server.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return newSheetsMirror(srv, "sheet-id", "")
}

func testBooking(id int64) *models.Booking {
	return &models.Booking{
		ID:        id,
		RoomID:    1,
		UserID:    10,
		Title:     "Standup",
		Date:      time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		StartTime: models.Clock(9 * 60),
		EndTime:   models.Clock(10 * 60),
		Status:    models.StatusPending,
	}
}

func TestUpsertBookingAppendsNewRow(t *testing.T) {
	fake := &fakeSheet{ids: [][]interface{}{{"ID"}}}
	m := newTestMirror(t, fake)

	require.NoError(t, m.UpsertBooking(context.Background(), testBooking(5)))

	require.Len(t, fake.appended, 1)
	row := fake.appended[0]
	assert.Equal(t, float64(5), row[0])
	assert.Equal(t, "2025-03-03", row[4])
	assert.Equal(t, "09:00", row[5])
	assert.Equal(t, "PENDING", row[7])
	assert.Empty(t, fake.updates)
}

func TestUpsertBookingUpdatesExistingRow(t *testing.T) {
	fake := &fakeSheet{ids: [][]interface{}{{"ID"}, {"4"}, {"5"}}}
	m := newTestMirror(t, fake)

	require.NoError(t, m.Notify(context.Background(), "booking.approved", testBooking(5)))

	require.Len(t, fake.updates, 1)
	assert.Contains(t, fake.updates[0], "A3:K3")
	assert.Empty(t, fake.appended)

	// Second upsert hits the row cache.
	require.NoError(t, m.UpsertBooking(context.Background(), testBooking(5)))
	assert.Equal(t, 1, fake.gets)
}

func TestUpsertBookingRejectsNil(t *testing.T) {
	m := newTestMirror(t, &fakeSheet{})
	assert.Error(t, m.UpsertBooking(context.Background(), nil))
}

func TestEnsureHeader(t *testing.T) {
	fake := &fakeSheet{}
	m := newTestMirror(t, fake)

	require.NoError(t, m.EnsureHeader(context.Background()))
	require.Len(t, fake.updates, 1)
	assert.Contains(t, fake.updates[0], "Bookings!A1:K1")
}

func TestCellID(t *testing.T) {
	id, ok := cellID([]interface{}{"12"})
	assert.True(t, ok)
	assert.Equal(t, int64(12), id)

	_, ok = cellID([]interface{}{"ID"})
	assert.False(t, ok)

	_, ok = cellID(nil)
	assert.False(t, ok)
}

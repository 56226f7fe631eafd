package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"roombooking/internal/config"
	"roombooking/internal/database"
	"roombooking/internal/domain"
	"roombooking/internal/events"
	"roombooking/internal/models"
	"roombooking/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	roomAtlas   int64 = 1
	roomRetired int64 = 2
	roomCosmos  int64 = 3

	userAlice    int64 = 10
	userBob      int64 = 11
	userAdmin    int64 = 20
	userDisabled int64 = 30
)

// syncQueue runs tasks inline so assertions can follow the call directly.
type syncQueue struct {
	mu     sync.Mutex
	names  []string
	closed bool
}

func (q *syncQueue) Enqueue(name string, fn func(ctx context.Context) error) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.names = append(q.names, name)
	q.mu.Unlock()
	_ = fn(context.Background())
	return true
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	ids    []int64
	err    error
}

func (n *recordingNotifier) Name() string { return "recorder" }

func (n *recordingNotifier) Notify(_ context.Context, event string, b *models.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.ids = append(n.ids, b.ID)
	return n.err
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type testEnv struct {
	db        *database.DB
	queue     *syncQueue
	notifier  *recordingNotifier
	bus       *events.EventBus
	directory *Directory
	audit     *AuditService
	bookings  *BookingService
	rules     *RuleService
	processor *RecurringProcessor
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	err = db.SyncDirectory(context.Background(),
		[]models.Room{
			{ID: roomAtlas, Name: "Atlas", Capacity: 8},
			{ID: roomRetired, Name: "Borealis", Capacity: 4, State: models.LifecycleRetired},
			{ID: roomCosmos, Name: "Cosmos", Capacity: 12},
		},
		[]models.User{
			{ID: userAlice, Username: "alice", Role: models.RoleEmployee},
			{ID: userBob, Username: "bob", Role: models.RoleEmployee},
			{ID: userAdmin, Username: "admin", Role: models.RoleAdmin},
			{ID: userDisabled, Username: "gone", Role: models.RoleEmployee, State: models.LifecycleDisabled},
		},
	)
	require.NoError(t, err)

	env := &testEnv{
		db:       db,
		queue:    &syncQueue{},
		notifier: &recordingNotifier{},
		bus:      events.NewEventBus(),
	}
	env.directory = NewDirectory(db)
	env.audit = NewAuditService(db, env.queue, &logger)
	notifiers := []domain.Notifier{env.notifier}
	env.bookings = NewBookingService(db, env.directory, env.audit, env.queue, notifiers, &logger)
	env.rules = NewRuleService(db, db, env.directory, env.audit, &logger)
	env.processor = NewRecurringProcessor(db, db, env.directory, env.audit, env.queue, notifiers,
		repository.NewMemoryLock(), env.bus,
		config.RecurringConfig{Enabled: true, HorizonDays: 7, LockTTL: time.Minute}, &logger)
	return env
}

// at pins every service clock to the given day at noon.
func (e *testEnv) at(t *testing.T, day string) time.Time {
	t.Helper()
	d := mustDate(t, day).Add(12 * time.Hour)
	now := func() time.Time { return d }
	e.bookings.now = now
	e.rules.now = now
	e.processor.now = now
	e.audit.now = now
	return d
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

func request(t *testing.T, room, user int64, date, start, end string) *models.Booking {
	t.Helper()
	return &models.Booking{
		RoomID:    room,
		UserID:    user,
		Title:     "Planning",
		Date:      mustDate(t, date),
		StartTime: mustClock(t, start),
		EndTime:   mustClock(t, end),
	}
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/models"
	"courtbook/internal/repository"
	"courtbook/internal/timeslot"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, to models.Contact, msg domain.Message) error {
	return m.Called(ctx, to, msg).Error(0)
}

// sent returns the messages of a kind, in call order.
func (m *mockNotifier) sent(kind string) []domain.Message {
	var out []domain.Message
	for _, c := range m.Calls {
		if c.Method != "Notify" {
			continue
		}
		if msg := c.Arguments.Get(2).(domain.Message); msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

type mockCalendar struct {
	mock.Mock
}

func (m *mockCalendar) SyncReservation(ctx context.Context, res *models.Reservation) error {
	return m.Called(ctx, res).Error(0)
}

func (m *mockCalendar) RemoveReservation(ctx context.Context, res *models.Reservation) error {
	return m.Called(ctx, res).Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreatePreference(ctx context.Context, res *models.Reservation, owner *models.Owner) (*models.Preference, error) {
	args := m.Called(ctx, res, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Preference), args.Error(1)
}

type recordedEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordedEvents) handle(e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	return nil
}

func (r *recordedEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	db         *database.DB
	clock      *testClock
	notifier   *mockNotifier
	calendar   *mockCalendar
	gateway    *mockGateway
	events     *recordedEvents
	collab     Collaborators
	claims     *repository.MemoryClaimStore
	settings   *SettingsService
	reconciler *Reconciler
	booking    *BookingService
	waitlist   *WaitlistService
	reminders  *ReminderService
	blocks     *BlockService
}

type fixtureOption func(*BookingOptions)

func withAutoConfirm() fixtureOption {
	return func(o *BookingOptions) { o.AutoConfirm = true }
}

func newFixture(t *testing.T, start time.Time, opts ...fixtureOption) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &testClock{t: start}
	db.SetClock(clock.Now)

	f := &fixture{
		db:       db,
		clock:    clock,
		notifier: new(mockNotifier),
		calendar: new(mockCalendar),
		gateway:  new(mockGateway),
		events:   &recordedEvents{},
		claims:   repository.NewMemoryClaimStore(),
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.calendar.On("SyncReservation", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.calendar.On("RemoveReservation", mock.Anything, mock.Anything).Return(nil).Maybe()

	bus := events.NewEventBus()
	bus.Subscribe(events.AllEvents, f.events.handle)

	collab := Collaborators{
		Owners:   db,
		Notifier: f.notifier,
		Calendar: f.calendar,
		Events:   bus,
		Audit:    db,
		Gateway:  f.gateway,
	}

	f.collab = collab

	bookingOpts := BookingOptions{
		MaxAdvanceDays: 60,
		NotifyWindow:   5 * time.Minute,
		Location:       time.UTC,
		ClientURL:      "https://court.example.com",
	}
	for _, opt := range opts {
		opt(&bookingOpts)
	}

	f.settings = NewSettingsService(db, config.BookingConfig{
		PricePerHour:       5000,
		OperatingStartHour: 8,
		OperatingEndHour:   23,
	}, collab, &logger)
	f.reconciler = NewReconciler(db, collab, bookingOpts.NotifyWindow, bookingOpts.ClientURL, time.UTC, &logger)
	f.booking = NewBookingService(db, f.settings, f.reconciler, collab, bookingOpts, &logger)
	f.booking.SetClock(clock.Now)
	f.waitlist = NewWaitlistService(db, collab, WaitlistOptions{
		NotifyWindow:      5 * time.Minute,
		AdminNotifyWindow: 15 * time.Minute,
		BatchSize:         10,
		ClientURL:         bookingOpts.ClientURL,
	}, &logger)
	f.waitlist.SetClock(clock.Now)
	f.reminders = NewReminderService(db, f.claims, collab, ReminderOptions{
		LeadMin: 25 * time.Minute,
		LeadMax: 35 * time.Minute,
	}, &logger)
	f.reminders.SetClock(clock.Now)
	f.blocks = NewBlockService(db, collab, time.UTC, &logger)
	f.blocks.SetClock(clock.Now)
	return f
}

func (f *fixture) book(t *testing.T, date, start string, duration int, method models.PaymentMethod, owner string) (*BookingResult, error) {
	t.Helper()
	return f.booking.CreateReservation(context.Background(), BookingRequest{
		Date:            mustDate(t, date),
		StartTime:       timeslot.MustParse(start),
		DurationMinutes: duration,
		PaymentMethod:   method,
		OwnerID:         owner,
	})
}

func (f *fixture) mustBook(t *testing.T, date, start string, duration int, owner string) *models.Reservation {
	t.Helper()
	result, err := f.book(t, date, start, duration, models.PaymentManual, owner)
	require.NoError(t, err)
	return result.Reservation
}

func (f *fixture) joinAt(t *testing.T, at time.Time, owner, date, start string) *models.WaitlistEntry {
	t.Helper()
	f.clock.Set(at)
	entry, created, err := f.waitlist.Join(context.Background(), WaitlistRequest{
		OwnerID:         owner,
		Date:            mustDate(t, date),
		StartTime:       timeslot.MustParse(start),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	require.True(t, created)
	return entry
}

func (f *fixture) entry(t *testing.T, id int64) *models.WaitlistEntry {
	t.Helper()
	e, err := f.db.GetWaitlistEntry(context.Background(), id)
	require.NoError(t, err)
	return e
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := timeslot.ParseDate(s)
	require.NoError(t, err)
	return d
}

func at(t *testing.T, date, clock string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", date+" "+clock, time.UTC)
	require.NoError(t, err)
	return ts
}

var (
	admin = models.Actor{ID: "admin", Role: models.RoleAdmin}
	alice = models.Actor{ID: "alice", Role: models.RoleUser}
	bob   = models.Actor{ID: "bob", Role: models.RoleUser}
)

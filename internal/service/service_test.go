package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reservo/internal/database"
	"reservo/internal/events"
	"reservo/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var catalogue = []models.Service{
	{ID: "photography", Name: "Photography", StartingPrice: 120, IsActive: true, SlotBased: true, SortOrder: 1},
	{ID: "videography", Name: "Videography", StartingPrice: 350, IsActive: true, SlotBased: true, SortOrder: 2},
	{ID: "event-coverage", Name: "Event Coverage", StartingPrice: 500, IsActive: true, SlotBased: false, SortOrder: 3},
	{ID: "brand-content", Name: "Brand Content", StartingPrice: 800, IsActive: true, SlotBased: true, SortOrder: 4},
}

var testLogger = zerolog.New(io.Discard)

// 2025-05-20 09:00 UTC: the scenario date 2025-06-01 is in the future.
func fixedClock() time.Time {
	return time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), &testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SyncServices(context.Background(), catalogue))
	return db
}

type queuedTask struct {
	TaskType  string
	BookingID string
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
	err   error
}

func (q *recordingQueue) EnqueueTask(_ context.Context, taskType, bookingID string, _ interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, queuedTask{TaskType: taskType, BookingID: bookingID})
	return nil
}

func (q *recordingQueue) Tasks() []queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queuedTask(nil), q.tasks...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func recordEvents(bus *events.EventBus) *eventRecorder {
	r := &eventRecorder{}
	bus.Subscribe(events.AllEvents, func(e *events.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e.Type)
		return nil
	})
	return r
}

func (r *eventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fixture struct {
	db          *database.DB
	bus         *events.EventBus
	queue       *recordingQueue
	coordinator *ReservationCoordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	bus := events.NewEventBus()
	queue := &recordingQueue{}
	coordinator := NewReservationCoordinator(db, bus, queue, ReservationConfig{
		DefaultSlots:   models.DefaultSlotTimes,
		MaxBookingDays: 365,
		Location:       time.UTC,
	}, &testLogger).WithClock(fixedClock)
	return &fixture{db: db, bus: bus, queue: queue, coordinator: coordinator}
}

func request(serviceID, date, slot, email string) models.ReservationRequest {
	return models.ReservationRequest{
		ServiceID: serviceID,
		Date:      date,
		Time:      slot,
		Client: models.ClientInfo{
			Name:  "Client",
			Email: email,
			Phone: "+254700000000",
		},
	}
}

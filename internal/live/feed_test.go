package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reservo/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_InitialAndUpdates(t *testing.T) {
	bus := events.NewEventBus()
	feed := NewFeed[int]("test", bus, nil, events.EventAvailabilityChanged)

	var version atomic.Int64
	load := func(context.Context) (int, error) { return int(version.Load()), nil }

	got := make(chan int, 10)
	sub, err := feed.Subscribe(context.Background(), nil, load, func(v int) { got <- v })
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Equal(t, 0, <-got)

	version.Store(1)
	require.NoError(t, bus.PublishJSON(events.EventAvailabilityChanged, events.AvailabilityEventPayload{}))

	select {
	case v := <-got:
		assert.Equal(t, 1, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no update delivered")
	}
}

func TestFeed_Match(t *testing.T) {
	bus := events.NewEventBus()
	feed := NewFeed[string]("test", bus, nil, events.EventAvailabilityChanged)

	var loads atomic.Int64
	load := func(context.Context) (string, error) {
		loads.Add(1)
		return "snapshot", nil
	}
	match := func(e *events.Event) bool { return string(e.Payload) == `"june"` }

	got := make(chan string, 10)
	sub, err := feed.Subscribe(context.Background(), match, load, func(v string) { got <- v })
	require.NoError(t, err)
	defer sub.Cancel()
	<-got

	bus.Publish(&events.Event{Type: events.EventAvailabilityChanged, Payload: []byte(`"july"`)})
	bus.Publish(&events.Event{Type: events.EventAvailabilityChanged, Payload: []byte(`"june"`)})

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("matching event not delivered")
	}
	assert.Equal(t, int64(2), loads.Load())
}

func TestFeed_CoalescesSlowSubscriber(t *testing.T) {
	bus := events.NewEventBus()
	feed := NewFeed[int]("test", bus, nil, events.EventBookingCreated)

	var version atomic.Int64
	load := func(context.Context) (int, error) { return int(version.Load()), nil }

	release := make(chan struct{})
	var mu sync.Mutex
	var seen []int
	sub, err := feed.Subscribe(context.Background(), nil, load, func(v int) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
		if v == 0 {
			<-release
		}
	})
	require.NoError(t, err)
	defer sub.Cancel()

	// Publishers never block while the subscriber is stuck in its first callback.
	for i := 1; i <= 50; i++ {
		version.Store(int64(i))
		bus.Publish(&events.Event{Type: events.EventBookingCreated})
	}
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1] == 50
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, len(seen), 3, "updates must be coalesced, got %v", seen)
}

func TestFeed_CancelStopsDelivery(t *testing.T) {
	bus := events.NewEventBus()
	feed := NewFeed[int]("test", bus, nil, events.EventBookingCreated)

	var calls atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := feed.Subscribe(ctx, nil, func(context.Context) (int, error) { return 1, nil }, func(int) { calls.Add(1) })
	require.NoError(t, err)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}

	bus.Publish(&events.Event{Type: events.EventBookingCreated})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
	sub.Cancel()
}

func TestFeed_InitialLoadError(t *testing.T) {
	bus := events.NewEventBus()
	feed := NewFeed[int]("test", bus, nil, events.EventBookingCreated)

	_, err := feed.Subscribe(context.Background(), nil, func(context.Context) (int, error) {
		return 0, errors.New("store down")
	}, func(int) { t.Fatal("must not be called") })
	assert.Error(t, err)

	// No handler is left on the bus.
	bus.Publish(&events.Event{Type: events.EventBookingCreated})
}

func TestSnapshotView(t *testing.T) {
	var view SnapshotView[[]string]

	_, ok := view.Current()
	assert.False(t, ok)

	assert.True(t, view.Apply([]string{"09:00", "10:00"}))
	assert.False(t, view.Apply([]string{"09:00", "10:00"}))
	assert.True(t, view.Apply([]string{"09:00"}))

	current, ok := view.Current()
	assert.True(t, ok)
	assert.Equal(t, []string{"09:00"}, current)
}

func TestFeed_MultipleEventTypes(t *testing.T) {
	bus := events.NewEventBus()
	feed := NewFeed[int]("bookings", bus, nil, events.EventBookingCreated, events.EventBookingStatusChanged)

	var loads atomic.Int64
	got := make(chan int, 10)
	sub, err := feed.Subscribe(context.Background(), nil, func(context.Context) (int, error) {
		return int(loads.Add(1)), nil
	}, func(v int) { got <- v })
	require.NoError(t, err)
	<-got

	bus.Publish(&events.Event{Type: events.EventBookingStatusChanged})
	select {
	case v := <-got:
		assert.Equal(t, 2, v)
	case <-time.After(2 * time.Second):
		t.Fatal("status change not delivered")
	}

	sub.Cancel()
	<-sub.Done()
	bus.Publish(&events.Event{Type: events.EventBookingCreated})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(2), loads.Load())
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: "b-1", ServiceID: "videography"})
	require.NoError(t, err)
	require.Equal(t, 1, callCount)
	assert.Equal(t, EventBookingCreated, received.Type)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, json.Unmarshal(received.Payload, &decoded))
	assert.Equal(t, "b-1", decoded.BookingID)
	assert.Equal(t, "videography", decoded.ServiceID)
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2, countAll int

	bus.Subscribe("event", func(_ *Event) error { count1++; return errors.New("ignored") })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })
	bus.Subscribe(AllEvents, func(_ *Event) error { countAll++; return nil })

	bus.Publish(&Event{Type: "event"})
	bus.Publish(&Event{Type: "other"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
	assert.Equal(t, 2, countAll)
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	var first, second int

	unsubFirst := bus.Subscribe("event", func(_ *Event) error { first++; return nil })
	bus.Subscribe("event", func(_ *Event) error { second++; return nil })

	bus.Publish(&Event{Type: "event"})
	unsubFirst()
	unsubFirst()
	bus.Publish(&Event{Type: "event"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestEventBusConcurrentSubscribe(_ *testing.T) {
	bus := NewEventBus()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(EventAvailabilityChanged, func(_ *Event) error { return nil })
			unsub()
		}()
		go func() {
			defer wg.Done()
			_ = bus.PublishJSON(EventAvailabilityChanged, AvailabilityEventPayload{Dates: []string{"2025-06-01"}})
		}()
	}
	wg.Wait()
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(&Event{Type: "unknown"})
	assert.NoError(t, bus.PublishJSON("unknown", nil))

	var nilBus *EventBus
	assert.NoError(t, nilBus.PublishJSON("unknown", nil))
}

func TestNewJSONEvent(t *testing.T) {
	event, err := NewJSONEvent("type", AvailabilityEventPayload{Dates: []string{"2025-06-01"}})
	require.NoError(t, err)
	assert.Equal(t, "type", event.Type)
	assert.JSONEq(t, `{"dates":["2025-06-01"]}`, string(event.Payload))

	_, err = NewJSONEvent("type", make(chan int))
	assert.Error(t, err)
}

type fakeChannel struct {
	mu        sync.Mutex
	published []amqp.Publishing
	keys      []string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisher(t *testing.T) {
	bus := NewEventBus()
	ch := &fakeChannel{}
	p := newAMQPPublisher(nil, ch, "reservo.bookings", nil)
	detach := p.Attach(bus)

	require.NoError(t, bus.PublishJSON(EventBookingCreated, BookingEventPayload{BookingID: "b-1"}))
	require.NoError(t, bus.PublishJSON(EventAvailabilityChanged, AvailabilityEventPayload{Dates: []string{"2025-06-01"}}))

	require.Len(t, ch.published, 2)
	assert.Equal(t, []string{"reservo.booking_created", "reservo.availability_changed"}, ch.keys)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, EventBookingCreated, ch.published[0].Type)
	assert.Contains(t, string(ch.published[0].Body), `"booking_id":"b-1"`)

	detach()
	require.NoError(t, bus.PublishJSON(EventBookingPaid, BookingEventPayload{BookingID: "b-1"}))
	assert.Len(t, ch.published, 2)

	ch.err = errors.New("channel closed")
	assert.Error(t, p.handle(&Event{Type: EventBookingPaid}))

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

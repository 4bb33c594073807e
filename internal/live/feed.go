package live

import (
	"context"
	"sync"

	"reservo/internal/events"
	"reservo/internal/metrics"

	"github.com/rs/zerolog"
)

// Loader produces a fresh snapshot of the observed collection.
type Loader[T any] func(ctx context.Context) (T, error)

// Subscription is an active feed. It ends when the parent context is done or Cancel is called.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Subscription) Cancel() {
	s.cancel()
}

// Done is closed once the feed goroutine has exited and no more callbacks will run.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Feed turns bus events into snapshot callbacks.
type Feed[T any] struct {
	name       string
	bus        *events.EventBus
	eventTypes []string
	logger     *zerolog.Logger
}

func NewFeed[T any](name string, bus *events.EventBus, logger *zerolog.Logger, eventTypes ...string) *Feed[T] {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Feed[T]{name: name, bus: bus, eventTypes: eventTypes, logger: logger}
}

// Subscribe delivers the current snapshot and then a fresh one after every matching event.
// Events arriving while a snapshot is being loaded or delivered collapse into one reload,
// so a slow onChange sees the latest state instead of a backlog. Delivery is at-least-once.
// match may be nil to react to every event of the feed's types.
func (f *Feed[T]) Subscribe(ctx context.Context, match func(*events.Event) bool, load Loader[T], onChange func(T)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	signal := make(chan struct{}, 1)
	handler := func(e *events.Event) error {
		if match != nil && !match(e) {
			return nil
		}
		select {
		case signal <- struct{}{}:
		default:
		}
		return nil
	}
	unsubs := make([]func(), 0, len(f.eventTypes))
	for _, t := range f.eventTypes {
		unsubs = append(unsubs, f.bus.Subscribe(t, handler))
	}
	unsubscribe := func() {
		for _, u := range unsubs {
			u()
		}
	}

	initial, err := load(ctx)
	if err != nil {
		unsubscribe()
		cancel()
		return nil, err
	}

	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	metrics.AddSubscriber(f.name, 1)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			unsubscribe()
			metrics.AddSubscriber(f.name, -1)
			close(sub.done)
		})
	}

	go func() {
		defer stop()

		onChange(initial)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}

			snapshot, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.logger.Warn().Err(err).Str("feed", f.name).Msg("failed to load snapshot")
				continue
			}
			if ctx.Err() != nil {
				return
			}
			onChange(snapshot)
		}
	}()

	return sub, nil
}

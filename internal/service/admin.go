package service

import (
	"context"
	"errors"
	"time"

	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/live"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// BookingAdmin backs the admin dashboard.
type BookingAdmin struct {
	store    domain.BookingStore
	eventBus domain.EventPublisher
	tasks    domain.TaskQueue
	feed     *live.Feed[[]*models.Booking]
	location *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewBookingAdmin(store domain.BookingStore, bus *events.EventBus, tasks domain.TaskQueue, location *time.Location, logger *zerolog.Logger) *BookingAdmin {
	if location == nil {
		location = time.UTC
	}
	a := &BookingAdmin{
		store:    store,
		tasks:    tasks,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
	if bus != nil {
		a.eventBus = bus
		a.feed = live.NewFeed[[]*models.Booking]("bookings", bus, logger,
			events.EventBookingCreated, events.EventBookingStatusChanged, events.EventBookingPaid)
	}
	return a
}

func (a *BookingAdmin) ListBookings(ctx context.Context, status string) ([]*models.Booking, error) {
	switch status {
	case "", models.StatusPending, models.StatusConfirmed, models.StatusCancelled:
	default:
		return nil, domain.Validation("Unknown booking status %q", status)
	}
	bookings, err := a.store.ListBookings(ctx, status)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	return bookings, nil
}

func (a *BookingAdmin) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := a.store.GetBooking(ctx, id)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return b, nil
}

func (a *BookingAdmin) BookingsInRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	bookings, err := a.store.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return bookings, nil
}

// UpdateStatus confirms or cancels a pending booking. changedBy is the admin email.
func (a *BookingAdmin) UpdateStatus(ctx context.Context, id, status, changedBy string) (*models.Booking, error) {
	if status != models.StatusConfirmed && status != models.StatusCancelled {
		return nil, domain.ErrInvalidStatusTransition
	}

	b, err := a.store.UpdateBookingStatus(ctx, id, status)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	a.logger.Info().
		Str("booking_id", b.ID).
		Str("status", b.Status).
		Str("changed_by", changedBy).
		Msg("booking status updated")

	publishBookingEvent(a.eventBus, a.logger, events.EventBookingStatusChanged, b, changedBy)
	if status == models.StatusCancelled && b.Time != "" {
		publishAvailabilityEvent(a.eventBus, a.logger, b.Date)
	}
	if a.tasks != nil {
		if err := a.tasks.EnqueueTask(ctx, models.TaskSheetsStatus, b.ID, b); err != nil {
			a.logger.Error().Err(err).Str("booking_id", b.ID).Msg("failed to enqueue status sync")
		}
	}
	return b, nil
}

// Analytics summarises all bookings. Revenue is the sum of confirmed bookings' starting prices.
func (a *BookingAdmin) Analytics(ctx context.Context) (*models.Analytics, error) {
	bookings, err := a.store.ListBookings(ctx, "")
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return ComputeAnalytics(bookings, a.now().In(a.location)), nil
}

func ComputeAnalytics(bookings []*models.Booking, now time.Time) *models.Analytics {
	stats := &models.Analytics{Total: len(bookings)}
	for _, b := range bookings {
		switch b.Status {
		case models.StatusPending:
			stats.Pending++
		case models.StatusConfirmed:
			stats.Confirmed++
			stats.EstimatedRevenue += b.Service.StartingPrice
		case models.StatusCancelled:
			stats.Cancelled++
		}
		if b.PaymentStatus == models.PaymentPaid {
			stats.Paid++
		}
		created := b.CreatedAt.In(now.Location())
		if created.Year() == now.Year() && created.Month() == now.Month() {
			stats.ThisMonth++
		}
	}
	return stats
}

// SubscribeBookings delivers the whole collection now and after every booking change.
func (a *BookingAdmin) SubscribeBookings(ctx context.Context, onChange func([]*models.Booking)) (*live.Subscription, error) {
	if a.feed == nil {
		return nil, errors.New("bookings feed is not configured")
	}
	return a.feed.Subscribe(ctx, nil, func(ctx context.Context) ([]*models.Booking, error) {
		return a.ListBookings(ctx, "")
	}, onChange)
}

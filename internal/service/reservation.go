package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/metrics"
	"reservo/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ReservationConfig struct {
	DefaultSlots   []string
	MaxBookingDays int
	Location       *time.Location
}

// ReservationCoordinator is the single entry point for creating bookings.
// All checks and writes happen inside one store transaction; side effects run after commit.
type ReservationCoordinator struct {
	repo     domain.Repository
	eventBus domain.EventPublisher
	tasks    domain.TaskQueue
	cfg      ReservationConfig
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewReservationCoordinator(
	repo domain.Repository,
	eventBus domain.EventPublisher,
	tasks domain.TaskQueue,
	cfg ReservationConfig,
	logger *zerolog.Logger,
) *ReservationCoordinator {
	if cfg.MaxBookingDays <= 0 {
		cfg.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if len(cfg.DefaultSlots) == 0 {
		cfg.DefaultSlots = models.DefaultSlotTimes
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ReservationCoordinator{
		repo:     repo,
		eventBus: eventBus,
		tasks:    tasks,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the clock used to decide what "today" is.
func (c *ReservationCoordinator) WithClock(now func() time.Time) *ReservationCoordinator {
	c.now = now
	return c
}

func (c *ReservationCoordinator) Reserve(ctx context.Context, req models.ReservationRequest) (*models.Booking, error) {
	booking, err := c.reserve(ctx, req)
	if err != nil {
		metrics.IncReservation(outcome(err))
		logEvent := c.logger.Warn()
		if !domain.IsConflict(err) && domain.KindOf(err) != domain.KindValidation && domain.KindOf(err) != domain.KindNotFound {
			logEvent = c.logger.Error()
		}
		logEvent.Err(err).
			Str("service_id", req.ServiceID).
			Str("date", req.Date).
			Str("time", req.Time).
			Msg("reservation rejected")
		return nil, err
	}

	metrics.IncReservation("success")
	c.logger.Info().
		Str("booking_id", booking.ID).
		Str("service_id", booking.Service.ID).
		Str("date", booking.Date).
		Str("time", booking.Time).
		Msg("booking created")

	c.afterCommit(ctx, booking)
	return booking, nil
}

func (c *ReservationCoordinator) reserve(ctx context.Context, req models.ReservationRequest) (*models.Booking, error) {
	req = normalizeRequest(req)
	if err := c.validate(req); err != nil {
		return nil, err
	}

	svc, err := c.repo.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if svc.SlotBased && req.Time == "" {
		return nil, domain.Validation("A time slot is required for %s", svc.Name)
	}

	booking := &models.Booking{
		ID:            uuid.NewString(),
		Service:       models.ServiceSnapshot{ID: svc.ID},
		Date:          req.Date,
		Time:          req.Time,
		ClientName:    req.Client.Name,
		ClientEmail:   req.Client.Email,
		ClientPhone:   req.Client.Phone,
		ClientMessage: req.Client.Message,
	}
	if err := c.repo.Reserve(ctx, booking, c.cfg.DefaultSlots); err != nil {
		return nil, classifyStoreError(err)
	}
	return booking, nil
}

func normalizeRequest(req models.ReservationRequest) models.ReservationRequest {
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.Client.Name = strings.TrimSpace(req.Client.Name)
	req.Client.Email = strings.TrimSpace(req.Client.Email)
	req.Client.Phone = strings.TrimSpace(req.Client.Phone)
	req.Client.Message = strings.TrimSpace(req.Client.Message)
	return req
}

func (c *ReservationCoordinator) validate(req models.ReservationRequest) error {
	if req.ServiceID == "" || req.Date == "" || req.Client.Name == "" || req.Client.Email == "" || req.Client.Phone == "" {
		return domain.ErrMissingFields
	}

	if err := c.ValidateBookingDate(req.Date); err != nil {
		return err
	}

	if req.Time != "" {
		if err := validateSlotTime(req.Time); err != nil {
			return err
		}
	}

	addr, err := mail.ParseAddress(req.Client.Email)
	if err != nil || addr.Address != req.Client.Email {
		return domain.Validation("Invalid email address")
	}
	return nil
}

// ValidateBookingDate checks the YYYY-MM-DD label against today in the business time zone.
func (c *ReservationCoordinator) ValidateBookingDate(date string) error {
	day, err := time.ParseInLocation(models.DateLayout, date, c.cfg.Location)
	if err != nil {
		return domain.Validation("Invalid date format, expected YYYY-MM-DD")
	}

	now := c.now().In(c.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.cfg.Location)
	// Проверяем, что дата не в прошлом
	if day.Before(today) {
		return domain.Validation("Booking date cannot be in the past")
	}
	// Проверяем максимальную дату
	if day.After(today.AddDate(0, 0, c.cfg.MaxBookingDays)) {
		return domain.Validation("Booking date cannot be more than %d days ahead", c.cfg.MaxBookingDays)
	}
	return nil
}

func validateSlotTime(t string) error {
	parsed, err := time.Parse(models.TimeLayout, t)
	if err != nil || parsed.Format(models.TimeLayout) != t {
		return domain.Validation("Invalid time format, expected HH:MM")
	}
	return nil
}

func (c *ReservationCoordinator) afterCommit(ctx context.Context, booking *models.Booking) {
	publishBookingEvent(c.eventBus, c.logger, events.EventBookingCreated, booking, "client")
	if booking.Time != "" {
		publishAvailabilityEvent(c.eventBus, c.logger, booking.Date)
	}

	// The booking is committed; delivery problems are only logged.
	if c.tasks == nil {
		return
	}
	for _, taskType := range []string{models.TaskNotifyBooking, models.TaskSheetsUpsert} {
		if err := c.tasks.EnqueueTask(ctx, taskType, booking.ID, booking); err != nil {
			c.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task_type", taskType).Msg("failed to enqueue task")
		}
	}
}

// classifyStoreError keeps domain errors as they are and hides everything else behind a transient error.
func classifyStoreError(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.Transient("Failed to process booking", err)
}

func outcome(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return "error"
}

func publishBookingEvent(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, b *models.Booking, changedBy string) {
	if bus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:   b.ID,
		ServiceID:   b.Service.ID,
		ServiceName: b.Service.Name,
		Date:        b.Date,
		Time:        b.Time,
		ClientName:  b.ClientName,
		ClientEmail: b.ClientEmail,
		Status:      b.Status,
		ChangedBy:   changedBy,
	}
	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

func publishAvailabilityEvent(bus domain.EventPublisher, logger *zerolog.Logger, dates ...string) {
	if bus == nil || len(dates) == 0 {
		return
	}
	if err := bus.PublishJSON(events.EventAvailabilityChanged, events.AvailabilityEventPayload{Dates: dates}); err != nil {
		logger.Warn().Err(err).Msg("failed to publish availability event")
	}
}

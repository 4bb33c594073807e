package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"reservo/internal/config"
	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/live"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// maxRangeDays bounds range queries and subscriptions.
const maxRangeDays = 366

// AvailabilityService is the calendar API used by clients and admins.
type AvailabilityService struct {
	store        domain.AvailabilityStore
	eventBus     domain.EventPublisher
	feed         *live.Feed[[]*models.AvailabilityDate]
	defaultSlots []string
	logger       *zerolog.Logger
}

func NewAvailabilityService(store domain.AvailabilityStore, bus *events.EventBus, defaultSlots []string, logger *zerolog.Logger) *AvailabilityService {
	if len(defaultSlots) == 0 {
		defaultSlots = models.DefaultSlotTimes
	}
	s := &AvailabilityService{
		store:        store,
		defaultSlots: defaultSlots,
		logger:       logger,
	}
	if bus != nil {
		s.eventBus = bus
		s.feed = live.NewFeed[[]*models.AvailabilityDate]("availability", bus, logger, events.EventAvailabilityChanged)
	}
	return s
}

// GetAvailability returns the stored day or, for a day never configured, the default slots without saving them.
func (s *AvailabilityService) GetAvailability(ctx context.Context, date string) (*models.AvailabilityDate, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	day, err := s.store.GetAvailability(ctx, date)
	if errors.Is(err, domain.ErrAvailabilityNotFound) {
		return models.DefaultAvailability(date, s.defaultSlots), nil
	}
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return day, nil
}

func (s *AvailabilityService) GetAvailabilityRange(ctx context.Context, start, end string) ([]*models.AvailabilityDate, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	days, err := s.store.GetAvailabilityRange(ctx, start, end)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if days == nil {
		days = []*models.AvailabilityDate{}
	}
	return days, nil
}

func (s *AvailabilityService) SetAvailability(ctx context.Context, date string, isAvailable bool, slots []models.TimeSlot) (*models.AvailabilityDate, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	times := make([]string, 0, len(slots))
	for _, slot := range slots {
		times = append(times, slot.Time)
	}
	if err := config.ValidateSlotTimes(times); err != nil {
		return nil, domain.Validation("%s", err.Error())
	}

	day, err := s.store.SetAvailability(ctx, date, isAvailable, slots)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	s.logger.Info().Str("date", date).Bool("is_available", isAvailable).Int("slots", len(day.Slots)).Msg("availability updated")
	publishAvailabilityEvent(s.eventBus, s.logger, date)
	return day, nil
}

func (s *AvailabilityService) SetBatchAvailability(ctx context.Context, dates []string, isAvailable bool) error {
	if len(dates) == 0 {
		return domain.Validation("At least one date is required")
	}
	for _, d := range dates {
		if err := validateDate(d); err != nil {
			return err
		}
	}
	if err := s.store.SetBatchAvailability(ctx, dates, isAvailable, s.defaultSlots); err != nil {
		return classifyStoreError(err)
	}
	s.logger.Info().Strs("dates", dates).Bool("is_available", isAvailable).Msg("batch availability updated")
	publishAvailabilityEvent(s.eventBus, s.logger, dates...)
	return nil
}

// SubscribeAvailability delivers the stored range now and again whenever a date inside it changes.
func (s *AvailabilityService) SubscribeAvailability(ctx context.Context, start, end string, onChange func([]*models.AvailabilityDate)) (*live.Subscription, error) {
	if s.feed == nil {
		return nil, errors.New("availability feed is not configured")
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	match := func(e *events.Event) bool {
		var payload events.AvailabilityEventPayload
		if err := json.Unmarshal(e.Payload, &payload); err != nil || len(payload.Dates) == 0 {
			return true
		}
		for _, d := range payload.Dates {
			if d >= start && d <= end {
				return true
			}
		}
		return false
	}
	load := func(ctx context.Context) ([]*models.AvailabilityDate, error) {
		return s.GetAvailabilityRange(ctx, start, end)
	}
	return s.feed.Subscribe(ctx, match, load, onChange)
}

func validateDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return domain.Validation("Invalid date %q, expected YYYY-MM-DD", date)
	}
	return nil
}

func validateRange(start, end string) error {
	if err := validateDate(start); err != nil {
		return err
	}
	if err := validateDate(end); err != nil {
		return err
	}
	s, _ := time.Parse(models.DateLayout, start)
	e, _ := time.Parse(models.DateLayout, end)
	if e.Before(s) {
		return domain.Validation("End date must not be before start date")
	}
	if e.Sub(s) > maxRangeDays*24*time.Hour {
		return domain.Validation("Date range cannot exceed %d days", maxRangeDays)
	}
	return nil
}

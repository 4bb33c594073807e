package service

import (
	"context"

	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

// PaymentService captures deposits. No payment provider is called; the capture is simulated.
type PaymentService struct {
	store          domain.BookingStore
	eventBus       domain.EventPublisher
	depositPercent float64
	logger         *zerolog.Logger
}

func NewPaymentService(store domain.BookingStore, eventBus domain.EventPublisher, depositPercent float64, logger *zerolog.Logger) *PaymentService {
	return &PaymentService{
		store:          store,
		eventBus:       eventBus,
		depositPercent: depositPercent,
		logger:         logger,
	}
}

func ValidPaymentMethod(method string) bool {
	switch method {
	case models.PaymentMethodCard, models.PaymentMethodPayPal, models.PaymentMethodMpesa:
		return true
	}
	return false
}

// DepositFor returns the deposit owed for a booking.
func (p *PaymentService) DepositFor(b *models.Booking) float64 {
	return b.Service.Deposit(p.depositPercent)
}

func (p *PaymentService) PayDeposit(ctx context.Context, bookingID, method string) (*models.Booking, error) {
	if !ValidPaymentMethod(method) {
		return nil, domain.Validation("Unsupported payment method %q", method)
	}

	b, err := p.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if b.Status == models.StatusCancelled {
		return nil, domain.ErrBookingCanceled
	}
	if b.PaymentStatus == models.PaymentPaid {
		return b, nil
	}

	paid, err := p.store.MarkDepositPaid(ctx, bookingID, p.DepositFor(b), method)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	p.logger.Info().
		Str("booking_id", paid.ID).
		Str("method", method).
		Float64("amount", paid.DepositAmount).
		Msg("deposit paid")
	publishBookingEvent(p.eventBus, p.logger, events.EventBookingPaid, paid, "client")
	return paid, nil
}

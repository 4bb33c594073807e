package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reservo/internal/domain"
	"reservo/internal/models"
)

// ErrPermanent marks a task that must not be retried.
var ErrPermanent = errors.New("permanent task failure")

type BookingNotifier interface {
	NotifyBooking(ctx context.Context, b *models.Booking, progress domain.DeliveryProgress) error
}

// SheetsClient mirrors bookings into a spreadsheet.
type SheetsClient interface {
	UpsertBooking(ctx context.Context, b *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
}

// NotifyHandler sends the booking notifications. Sent messages are recorded in ledger
// against the task, so a retry skips them; a nil ledger resends everything.
func NotifyHandler(n BookingNotifier, ledger domain.DeliveryLedger) Handler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		b, err := decodeBooking(task)
		if err != nil {
			return err
		}
		if ledger == nil {
			return n.NotifyBooking(ctx, b, nil)
		}
		delivered, err := ledger.OutboxDeliveries(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("load deliveries: %w", err)
		}
		return n.NotifyBooking(ctx, b, &taskProgress{ledger: ledger, taskID: task.ID, delivered: delivered})
	}
}

// taskProgress is the delivery record of one outbox task.
type taskProgress struct {
	ledger    domain.DeliveryLedger
	taskID    int64
	delivered map[string]bool
}

func (p *taskProgress) Delivered(key string) bool {
	return p.delivered[key]
}

func (p *taskProgress) MarkDelivered(ctx context.Context, key string) error {
	if err := p.ledger.MarkOutboxDelivered(ctx, p.taskID, key); err != nil {
		return err
	}
	p.delivered[key] = true
	return nil
}

func SheetsUpsertHandler(s SheetsClient) Handler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		b, err := decodeBooking(task)
		if err != nil {
			return err
		}
		return s.UpsertBooking(ctx, b)
	}
}

func SheetsStatusHandler(s SheetsClient) Handler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		b, err := decodeBooking(task)
		if err != nil {
			return err
		}
		if b.Status == "" {
			return fmt.Errorf("%w: status missing for booking %s", ErrPermanent, task.BookingID)
		}
		return s.UpdateBookingStatus(ctx, task.BookingID, b.Status)
	}
}

func decodeBooking(task *models.OutboxTask) (*models.Booking, error) {
	var b models.Booking
	if err := json.Unmarshal([]byte(task.Payload), &b); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrPermanent, err)
	}
	if b.ID == "" {
		b.ID = task.BookingID
	}
	return &b, nil
}

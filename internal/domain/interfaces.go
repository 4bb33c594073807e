package domain

import (
	"context"
	"time"

	"reservo/internal/models"
)

type ServiceCatalog interface {
	GetService(ctx context.Context, id string) (*models.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]*models.Service, error)
}

type AvailabilityStore interface {
	GetAvailability(ctx context.Context, date string) (*models.AvailabilityDate, error)
	GetAvailabilityRange(ctx context.Context, start, end string) ([]*models.AvailabilityDate, error)
	SetAvailability(ctx context.Context, date string, isAvailable bool, slots []models.TimeSlot) (*models.AvailabilityDate, error)
	SetBatchAvailability(ctx context.Context, dates []string, isAvailable bool, defaultSlots []string) error
}

type BookingStore interface {
	Reserve(ctx context.Context, booking *models.Booking, defaultSlots []string) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, status string) ([]*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error)
	MarkDepositPaid(ctx context.Context, id string, amount float64, method string) (*models.Booking, error)
}

// Repository is everything the booking services need from durable storage.
type Repository interface {
	ServiceCatalog
	AvailabilityStore
	BookingStore
}

// DeliveryLedger remembers which messages of an outbox task were already sent.
type DeliveryLedger interface {
	OutboxDeliveries(ctx context.Context, taskID int64) (map[string]bool, error)
	MarkOutboxDelivered(ctx context.Context, taskID int64, key string) error
}

// DeliveryProgress tracks the messages of one notification across retries.
type DeliveryProgress interface {
	Delivered(key string) bool
	MarkDelivered(ctx context.Context, key string) error
}

type OutboxStore interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error)
}

type FlowRepository interface {
	GetFlow(ctx context.Context, sessionID string) (*models.FlowState, error)
	SaveFlow(ctx context.Context, state *models.FlowState) error
	ClearFlow(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TaskQueue schedules work that must happen after a booking change is committed.
type TaskQueue interface {
	EnqueueTask(ctx context.Context, taskType, bookingID string, payload interface{}) error
}

type Reserver interface {
	Reserve(ctx context.Context, req models.ReservationRequest) (*models.Booking, error)
}

type DepositPayer interface {
	PayDeposit(ctx context.Context, bookingID, method string) (*models.Booking, error)
}

package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

const (
	PaymentMethodCard   = "card"
	PaymentMethodPayPal = "paypal"
	PaymentMethodMpesa  = "mpesa"
)

// Booking flow steps, in wizard order.
const (
	StepService      = "service"
	StepDateTime     = "datetime"
	StepDetails      = "details"
	StepConfirmation = "confirmation"
	StepPayment      = "payment"
)

// Outbox task statuses.
const (
	TaskPending   = "pending"
	TaskRetry     = "retry"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DefaultSlotTimes are materialized for a date that has never been configured.
var DefaultSlotTimes = []string{
	"09:00", "10:00", "11:00", "12:00", "13:00",
	"14:00", "15:00", "16:00", "17:00",
}

const (
	// DefaultDepositPercent доля стартовой цены, которая берётся как депозит
	DefaultDepositPercent = 30

	// DefaultMaxBookingDays насколько далеко вперёд можно бронировать
	DefaultMaxBookingDays = 365

	// DefaultFlowTTL время жизни состояния мастера бронирования в секундах
	DefaultFlowTTL = 2 * 60 * 60

	// ReserveRateLimit количество попыток бронирования в окне
	ReserveRateLimit = 10

	// ReserveRateWindow окно ограничения попыток бронирования в секундах
	ReserveRateWindow = 60

	// WorkerQueueSize размер локальной очереди воркера
	WorkerQueueSize = 128
)

// Outbox task types.
const (
	TaskNotifyBooking = "notify_booking"
	TaskSheetsUpsert  = "sheets_upsert"
	TaskSheetsStatus  = "sheets_status"
)

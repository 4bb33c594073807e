package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transports.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindTransient
	KindUnauthorized
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error is a classified error with a message safe to show to clients.
// Two errors match with errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrMissingFields   = &Error{Kind: KindValidation, Code: "missing_fields", Message: "Missing required fields"}
	ErrInvalidInput    = &Error{Kind: KindValidation, Code: "invalid_input", Message: "Invalid input"}
	ErrFlowStep        = &Error{Kind: KindValidation, Code: "flow_step", Message: "Step is not allowed at this point of the booking"}
	ErrBookingCanceled = &Error{Kind: KindValidation, Code: "booking_cancelled", Message: "Booking is cancelled"}
)

var (
	ErrServiceNotFound      = &Error{Kind: KindNotFound, Code: "service_not_found", Message: "Service not found or inactive"}
	ErrSlotNotFound         = &Error{Kind: KindNotFound, Code: "slot_not_found", Message: "Slot not found"}
	ErrBookingNotFound      = &Error{Kind: KindNotFound, Code: "booking_not_found", Message: "Booking not found"}
	ErrAvailabilityNotFound = &Error{Kind: KindNotFound, Code: "availability_not_found", Message: "Date is not configured"}
	ErrFlowNotFound         = &Error{Kind: KindNotFound, Code: "flow_not_found", Message: "Booking session not found or expired"}
)

var (
	ErrDateUnavailable         = &Error{Kind: KindConflict, Code: "date_unavailable", Message: "This date is not available"}
	ErrSlotAlreadyBooked       = &Error{Kind: KindConflict, Code: "slot_already_booked", Message: "Slot already booked"}
	ErrConflictingBooking      = &Error{Kind: KindConflict, Code: "conflicting_booking", Message: "This slot was just booked by someone else"}
	ErrInvalidStatusTransition = &Error{Kind: KindConflict, Code: "invalid_status_transition", Message: "Only pending bookings can be confirmed or cancelled"}
)

var (
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Code: "invalid_credentials", Message: "Invalid email or password"}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: "Authentication required"}
	ErrRateLimited        = &Error{Kind: KindRateLimited, Code: "rate_limited", Message: "Too many requests, please try again later"}
)

// Validation builds a validation error carrying a specific message.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: ErrInvalidInput.Code, Message: fmt.Sprintf(format, args...)}
}

// Transient wraps a store failure; message is what the client sees.
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Code: "store_unavailable", Message: message, Err: err}
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PublicMessage returns the client-facing message of err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}

// IsConflict reports whether err is a lost race or an unavailable date or slot.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

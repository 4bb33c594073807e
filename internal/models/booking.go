package models

import "time"

type Booking struct {
	ID            string          `json:"id"`
	Service       ServiceSnapshot `json:"service"`
	Date          string          `json:"date"`
	Time          string          `json:"time,omitempty"`
	ClientName    string          `json:"client_name"`
	ClientEmail   string          `json:"client_email"`
	ClientPhone   string          `json:"client_phone"`
	ClientMessage string          `json:"client_message,omitempty"`
	Status        string          `json:"status"`         // pending, confirmed, cancelled
	PaymentStatus string          `json:"payment_status"` // unpaid, paid
	DepositAmount float64         `json:"deposit_amount,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"version"`
}

// IsActive reports whether the booking still holds its slot.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

type ClientInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message,omitempty"`
}

// ReservationRequest is the input of a single reserve call.
// Time is empty for services booked by the whole day.
type ReservationRequest struct {
	ServiceID string     `json:"service_id"`
	Date      string     `json:"date"`
	Time      string     `json:"time,omitempty"`
	Client    ClientInfo `json:"client"`
}

// Analytics summarises the booking collection for the dashboard.
type Analytics struct {
	Total            int     `json:"total"`
	Pending          int     `json:"pending"`
	Confirmed        int     `json:"confirmed"`
	Cancelled        int     `json:"cancelled"`
	Paid             int     `json:"paid"`
	ThisMonth        int     `json:"this_month"`
	EstimatedRevenue float64 `json:"estimated_revenue"`
}

package models

import (
	"math"
	"time"
)

// Service is an entry of the studio catalogue.
type Service struct {
	ID            string    `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	Tagline       string    `yaml:"tagline" json:"tagline,omitempty"`
	Description   string    `yaml:"description" json:"description"`
	StartingPrice float64   `yaml:"starting_price" json:"starting_price"`
	Image         string    `yaml:"image" json:"image,omitempty"`
	IsActive      bool      `yaml:"is_active" json:"is_active"`
	SlotBased     bool      `yaml:"slot_based" json:"slot_based"`
	SortOrder     int64     `yaml:"sort_order" json:"sort_order"`
	CreatedAt     time.Time `yaml:"-" json:"created_at"`
	UpdatedAt     time.Time `yaml:"-" json:"updated_at"`
}

// ServiceSnapshot is the copy of a Service stored inside a Booking.
// It is taken once at reservation time and never refreshed.
type ServiceSnapshot struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	StartingPrice float64 `json:"starting_price"`
	Image         string  `json:"image,omitempty"`
}

func (s *Service) Snapshot() ServiceSnapshot {
	return ServiceSnapshot{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		StartingPrice: s.StartingPrice,
		Image:         s.Image,
	}
}

// Deposit returns the rounded deposit for the given percentage of the starting price.
func (s ServiceSnapshot) Deposit(percent float64) float64 {
	if percent <= 0 {
		return 0
	}
	return math.Round(s.StartingPrice * percent / 100)
}

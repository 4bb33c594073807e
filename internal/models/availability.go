package models

import "time"

type TimeSlot struct {
	Time        string `json:"time"`
	IsAvailable bool   `json:"is_available"`
	BookedBy    string `json:"booked_by,omitempty"`
}

// Booked reports whether the slot is held by a booking rather than blocked by an admin.
func (s TimeSlot) Booked() bool {
	return !s.IsAvailable && s.BookedBy != ""
}

// AvailabilityDate is the calendar configuration of a single day.
// Date is an opaque YYYY-MM-DD label without a time zone.
type AvailabilityDate struct {
	Date        string     `json:"date"`
	IsAvailable bool       `json:"is_available"`
	Slots       []TimeSlot `json:"slots"`
	IsDefault   bool       `json:"is_default,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DefaultAvailability builds an unsaved day with every default slot open.
func DefaultAvailability(date string, slotTimes []string) *AvailabilityDate {
	slots := make([]TimeSlot, 0, len(slotTimes))
	for _, t := range slotTimes {
		slots = append(slots, TimeSlot{Time: t, IsAvailable: true})
	}
	return &AvailabilityDate{
		Date:        date,
		IsAvailable: true,
		Slots:       slots,
		IsDefault:   true,
	}
}

func (a *AvailabilityDate) Slot(t string) (TimeSlot, bool) {
	for _, s := range a.Slots {
		if s.Time == t {
			return s, true
		}
	}
	return TimeSlot{}, false
}

// OpenSlots returns the times that can still be reserved.
func (a *AvailabilityDate) OpenSlots() []string {
	if !a.IsAvailable {
		return nil
	}
	var open []string
	for _, s := range a.Slots {
		if s.IsAvailable {
			open = append(open, s.Time)
		}
	}
	return open
}

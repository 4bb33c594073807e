package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlowState_Helpers(t *testing.T) {
	now := time.Now()
	state := &FlowState{
		Data: map[string]interface{}{
			"int64":  int64(120),
			"int":    350,
			"float":  500.5,
			"string": "videography",
			"time":   "2025-06-01T10:00:00Z",
			"time_t": now,
			"bool":   true,
		},
	}

	t.Run("NilData", func(t *testing.T) {
		empty := &FlowState{}
		assert.Equal(t, "", empty.GetString("any"))
		assert.Equal(t, float64(0), empty.GetFloat64("any"))
		assert.True(t, empty.GetTime("any").IsZero())
	})

	t.Run("GetFloat64", func(t *testing.T) {
		assert.Equal(t, float64(120), state.GetFloat64("int64"))
		assert.Equal(t, float64(350), state.GetFloat64("int"))
		assert.Equal(t, 500.5, state.GetFloat64("float"))
		assert.Equal(t, float64(0), state.GetFloat64("string"))
	})

	t.Run("GetString", func(t *testing.T) {
		assert.Equal(t, "videography", state.GetString("string"))
		assert.Equal(t, "", state.GetString("int"))
		assert.Equal(t, "", state.GetString("missing"))
	})

	t.Run("GetBool", func(t *testing.T) {
		assert.True(t, state.GetBool("bool"))
		assert.False(t, state.GetBool("string"))
		assert.False(t, (&FlowState{}).GetBool("bool"))
	})

	t.Run("GetTime", func(t *testing.T) {
		assert.Equal(t, 2025, state.GetTime("time").Year())
		assert.Equal(t, now, state.GetTime("time_t"))
		assert.True(t, state.GetTime("string").IsZero())
	})

	t.Run("SetAndDelete", func(t *testing.T) {
		s := &FlowState{}
		s.Set("client_name", "Amina")
		s.Set("client_email", "amina@example.com")
		assert.Equal(t, "Amina", s.Client().Name)
		s.Delete("client_name")
		assert.Equal(t, "", s.Client().Name)
		assert.Equal(t, "amina@example.com", s.Client().Email)
	})
}

func TestDefaultAvailability(t *testing.T) {
	day := DefaultAvailability("2025-06-01", DefaultSlotTimes)

	assert.True(t, day.IsAvailable)
	assert.True(t, day.IsDefault)
	assert.Len(t, day.Slots, 9)
	assert.Equal(t, "09:00", day.Slots[0].Time)
	assert.Equal(t, "17:00", day.Slots[8].Time)
	for _, s := range day.Slots {
		assert.True(t, s.IsAvailable)
		assert.Empty(t, s.BookedBy)
	}
	assert.Equal(t, DefaultSlotTimes, day.OpenSlots())

	_, ok := day.Slot("10:00")
	assert.True(t, ok)
	_, ok = day.Slot("18:00")
	assert.False(t, ok)
}

func TestAvailabilityDate_OpenSlots(t *testing.T) {
	day := &AvailabilityDate{
		IsAvailable: true,
		Slots: []TimeSlot{
			{Time: "09:00", IsAvailable: false, BookedBy: "a@example.com"},
			{Time: "10:00", IsAvailable: false},
			{Time: "11:00", IsAvailable: true},
		},
	}
	assert.Equal(t, []string{"11:00"}, day.OpenSlots())
	assert.True(t, day.Slots[0].Booked())
	assert.False(t, day.Slots[1].Booked())

	day.IsAvailable = false
	assert.Nil(t, day.OpenSlots())
}

func TestServiceSnapshotDeposit(t *testing.T) {
	svc := &Service{ID: "photography", Name: "Photography", StartingPrice: 120}
	snap := svc.Snapshot()

	assert.Equal(t, "photography", snap.ID)
	assert.Equal(t, float64(36), snap.Deposit(DefaultDepositPercent))
	assert.Equal(t, float64(0), snap.Deposit(0))

	svc.StartingPrice = 999
	assert.Equal(t, float64(120), snap.StartingPrice)
}

func TestBookingIsActive(t *testing.T) {
	assert.True(t, (&Booking{Status: StatusPending}).IsActive())
	assert.True(t, (&Booking{Status: StatusConfirmed}).IsActive())
	assert.False(t, (&Booking{Status: StatusCancelled}).IsActive())
}

package service

import (
	"context"
	"testing"
	"time"

	"reservo/internal/domain"
	"reservo/internal/models"
	"reservo/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlow(f *fixture) *BookingFlow {
	availability := NewAvailabilityService(f.db, f.bus, nil, &testLogger)
	payments := NewPaymentService(f.db, f.bus, models.DefaultDepositPercent, &testLogger)
	return NewBookingFlow(
		repository.NewMemoryFlowRepository(time.Hour),
		f.db,
		availability,
		f.coordinator,
		payments,
		models.DefaultDepositPercent,
		&testLogger,
	)
}

var amina = models.ClientInfo{Name: "Amina", Email: "amina@example.com", Phone: "+254700000001"}

func TestBookingFlow_HappyPath(t *testing.T) {
	f := newFixture(t)
	flow := newFlow(f)
	ctx := context.Background()

	state, err := flow.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StepService, state.Step)
	id := state.SessionID

	state, err = flow.SelectService(ctx, id, "photography")
	require.NoError(t, err)
	assert.Equal(t, models.StepDateTime, state.Step)
	assert.Equal(t, "Photography", state.GetString("service_name"))

	state, err = flow.SelectDateTime(ctx, id, "2025-06-01", "10:00")
	require.NoError(t, err)
	assert.Equal(t, models.StepDetails, state.Step)

	state, err = flow.SubmitDetails(ctx, id, amina)
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirmation, state.Step)
	bookingID := state.GetString("booking_id")
	require.NotEmpty(t, bookingID)
	assert.Equal(t, 36.0, state.GetFloat64("deposit_amount"))
	assert.Equal(t, models.PaymentUnpaid, state.GetString("payment_status"))

	state, err = flow.OpenPayment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepPayment, state.Step)

	state, err = flow.PayDeposit(ctx, id, models.PaymentMethodCard)
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirmation, state.Step)
	assert.Equal(t, models.PaymentPaid, state.GetString("payment_status"))

	_, err = flow.OpenPayment(ctx, id)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	stored, err := f.db.GetBooking(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, "Amina", stored.ClientName)
	assert.Equal(t, models.PaymentPaid, stored.PaymentStatus)

	state, err = flow.Reset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepService, state.Step)
	assert.Empty(t, state.GetString("booking_id"))
}

func TestBookingFlow_StepsOutOfOrder(t *testing.T) {
	f := newFixture(t)
	flow := newFlow(f)
	ctx := context.Background()

	state, err := flow.Start(ctx)
	require.NoError(t, err)
	id := state.SessionID

	_, err = flow.SelectDateTime(ctx, id, "2025-06-01", "10:00")
	assert.ErrorIs(t, err, domain.ErrFlowStep)
	_, err = flow.SubmitDetails(ctx, id, amina)
	assert.ErrorIs(t, err, domain.ErrFlowStep)
	_, err = flow.PayDeposit(ctx, id, models.PaymentMethodCard)
	assert.ErrorIs(t, err, domain.ErrFlowStep)
	_, err = flow.Back(ctx, id)
	assert.ErrorIs(t, err, domain.ErrFlowStep)

	_, err = flow.SelectService(ctx, id, "nonexistent")
	assert.ErrorIs(t, err, domain.ErrServiceNotFound)

	current, err := flow.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepService, current.Step)
}

func TestBookingFlow_DateTimeChecks(t *testing.T) {
	f := newFixture(t)
	flow := newFlow(f)
	ctx := context.Background()

	state, err := flow.Start(ctx)
	require.NoError(t, err)
	id := state.SessionID
	_, err = flow.SelectService(ctx, id, "videography")
	require.NoError(t, err)

	_, err = flow.SelectDateTime(ctx, id, "2025-05-01", "10:00")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = flow.SelectDateTime(ctx, id, "2025-06-01", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = flow.SelectDateTime(ctx, id, "2025-06-01", "20:00")
	assert.ErrorIs(t, err, domain.ErrSlotNotFound)

	_, err = f.coordinator.Reserve(ctx, request("photography", "2025-06-01", "10:00", "other@example.com"))
	require.NoError(t, err)
	_, err = flow.SelectDateTime(ctx, id, "2025-06-01", "10:00")
	assert.ErrorIs(t, err, domain.ErrSlotAlreadyBooked)

	availability := NewAvailabilityService(f.db, f.bus, nil, &testLogger)
	require.NoError(t, availability.SetBatchAvailability(ctx, []string{"2025-06-02"}, false))
	_, err = flow.SelectDateTime(ctx, id, "2025-06-02", "10:00")
	assert.ErrorIs(t, err, domain.ErrDateUnavailable)

	current, err := flow.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepDateTime, current.Step)
}

func TestBookingFlow_LostRaceReturnsToDateTime(t *testing.T) {
	f := newFixture(t)
	flow := newFlow(f)
	ctx := context.Background()

	state, err := flow.Start(ctx)
	require.NoError(t, err)
	id := state.SessionID
	_, err = flow.SelectService(ctx, id, "videography")
	require.NoError(t, err)
	_, err = flow.SelectDateTime(ctx, id, "2025-06-01", "10:00")
	require.NoError(t, err)

	// Another client takes the slot between the two steps.
	_, err = f.coordinator.Reserve(ctx, request("videography", "2025-06-01", "10:00", "fast@example.com"))
	require.NoError(t, err)

	state, err = flow.SubmitDetails(ctx, id, amina)
	require.ErrorIs(t, err, domain.ErrSlotAlreadyBooked)
	assert.Equal(t, models.StepDateTime, state.Step)

	current, err := flow.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepDateTime, current.Step)
	assert.Empty(t, current.GetString("time"))
	assert.Equal(t, "2025-06-01", current.GetString("date"))
	assert.Equal(t, "Slot already booked", current.GetString("error"))
	assert.Equal(t, "Amina", current.Client().Name)

	current, err = flow.SelectDateTime(ctx, id, "2025-06-01", "11:00")
	require.NoError(t, err)
	assert.Empty(t, current.GetString("error"))
	current, err = flow.SubmitDetails(ctx, id, amina)
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirmation, current.Step)
}

func TestBookingFlow_WholeDayService(t *testing.T) {
	f := newFixture(t)
	flow := newFlow(f)
	ctx := context.Background()

	state, err := flow.Start(ctx)
	require.NoError(t, err)
	id := state.SessionID
	_, err = flow.SelectService(ctx, id, "event-coverage")
	require.NoError(t, err)
	_, err = flow.SelectDateTime(ctx, id, "2025-06-07", "")
	require.NoError(t, err)

	state, err = flow.SubmitDetails(ctx, id, amina)
	require.NoError(t, err)
	assert.Equal(t, 150.0, state.GetFloat64("deposit_amount"))
}

func TestBookingFlow_Back(t *testing.T) {
	f := newFixture(t)
	flow := newFlow(f)
	ctx := context.Background()

	state, err := flow.Start(ctx)
	require.NoError(t, err)
	id := state.SessionID
	_, err = flow.SelectService(ctx, id, "photography")
	require.NoError(t, err)
	_, err = flow.SelectDateTime(ctx, id, "2025-06-01", "09:00")
	require.NoError(t, err)

	state, err = flow.Back(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepDateTime, state.Step)
	assert.Empty(t, state.GetString("time"))
	assert.Equal(t, "photography", state.GetString("service_id"))

	state, err = flow.Back(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepService, state.Step)
	assert.Empty(t, state.GetString("service_id"))
}

func TestBookingFlow_UnknownSession(t *testing.T) {
	f := newFixture(t)
	flow := newFlow(f)
	ctx := context.Background()

	_, err := flow.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	_, err = flow.SelectService(ctx, "missing", "photography")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	state, err := flow.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, flow.Clear(ctx, state.SessionID))
	_, err = flow.Get(ctx, state.SessionID)
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

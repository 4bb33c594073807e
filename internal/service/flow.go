package service

import (
	"context"
	"time"

	"reservo/internal/domain"
	"reservo/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Ключи данных мастера бронирования
const (
	flowServiceID     = "service_id"
	flowServiceName   = "service_name"
	flowServicePrice  = "service_price"
	flowSlotBased     = "slot_based"
	flowDate          = "date"
	flowTime          = "time"
	flowClientName    = "client_name"
	flowClientEmail   = "client_email"
	flowClientPhone   = "client_phone"
	flowClientMessage = "client_message"
	flowBookingID     = "booking_id"
	flowDeposit       = "deposit_amount"
	flowPaymentStatus = "payment_status"
	flowPaymentMethod = "payment_method"
	flowError         = "error"
)

type dateValidator interface {
	ValidateBookingDate(date string) error
}

// BookingFlow keeps the server side of the booking wizard:
// service -> datetime -> details -> confirmation (-> payment -> confirmation).
type BookingFlow struct {
	flows          domain.FlowRepository
	catalog        domain.ServiceCatalog
	availability   *AvailabilityService
	reserver       domain.Reserver
	payer          domain.DepositPayer
	depositPercent float64
	now            func() time.Time
	logger         *zerolog.Logger
}

func NewBookingFlow(
	flows domain.FlowRepository,
	catalog domain.ServiceCatalog,
	availability *AvailabilityService,
	reserver domain.Reserver,
	payer domain.DepositPayer,
	depositPercent float64,
	logger *zerolog.Logger,
) *BookingFlow {
	return &BookingFlow{
		flows:          flows,
		catalog:        catalog,
		availability:   availability,
		reserver:       reserver,
		payer:          payer,
		depositPercent: depositPercent,
		now:            time.Now,
		logger:         logger,
	}
}

func (f *BookingFlow) Start(ctx context.Context) (*models.FlowState, error) {
	state := &models.FlowState{
		SessionID: uuid.NewString(),
		Step:      models.StepService,
		Data:      map[string]interface{}{},
	}
	if err := f.save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (f *BookingFlow) Get(ctx context.Context, sessionID string) (*models.FlowState, error) {
	state, err := f.flows.GetFlow(ctx, sessionID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	if state == nil {
		return nil, domain.ErrFlowNotFound
	}
	return state, nil
}

func (f *BookingFlow) Clear(ctx context.Context, sessionID string) error {
	if err := f.flows.ClearFlow(ctx, sessionID); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

func (f *BookingFlow) SelectService(ctx context.Context, sessionID, serviceID string) (*models.FlowState, error) {
	state, err := f.load(ctx, sessionID, models.StepService)
	if err != nil {
		return nil, err
	}

	svc, err := f.catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	state.Set(flowServiceID, svc.ID)
	state.Set(flowServiceName, svc.Name)
	state.Set(flowServicePrice, svc.StartingPrice)
	state.Set(flowSlotBased, svc.SlotBased)
	state.Step = models.StepDateTime
	return state, f.save(ctx, state)
}

// SelectDateTime checks the choice against the current calendar. The reservation itself re-checks atomically.
func (f *BookingFlow) SelectDateTime(ctx context.Context, sessionID, date, slot string) (*models.FlowState, error) {
	state, err := f.load(ctx, sessionID, models.StepDateTime)
	if err != nil {
		return nil, err
	}

	if v, ok := f.reserver.(dateValidator); ok {
		if err := v.ValidateBookingDate(date); err != nil {
			return nil, err
		}
	}

	slotBased := state.GetBool(flowSlotBased)
	if slotBased && slot == "" {
		return nil, domain.Validation("Please select a time")
	}
	if slot != "" {
		if err := validateSlotTime(slot); err != nil {
			return nil, err
		}
	}

	day, err := f.availability.GetAvailability(ctx, date)
	if err != nil {
		return nil, err
	}
	if !day.IsAvailable {
		return nil, domain.ErrDateUnavailable
	}
	if slot != "" {
		ts, ok := day.Slot(slot)
		if !ok {
			return nil, domain.ErrSlotNotFound
		}
		if !ts.IsAvailable {
			return nil, domain.ErrSlotAlreadyBooked
		}
	}

	state.Set(flowDate, date)
	state.Set(flowTime, slot)
	state.Delete(flowError)
	state.Step = models.StepDetails
	return state, f.save(ctx, state)
}

// SubmitDetails stores the contact details and places the reservation.
// Losing the slot to another client sends the wizard back to the datetime step.
func (f *BookingFlow) SubmitDetails(ctx context.Context, sessionID string, client models.ClientInfo) (*models.FlowState, error) {
	state, err := f.load(ctx, sessionID, models.StepDetails)
	if err != nil {
		return nil, err
	}

	state.Set(flowClientName, client.Name)
	state.Set(flowClientEmail, client.Email)
	state.Set(flowClientPhone, client.Phone)
	state.Set(flowClientMessage, client.Message)

	booking, err := f.reserver.Reserve(ctx, models.ReservationRequest{
		ServiceID: state.GetString(flowServiceID),
		Date:      state.GetString(flowDate),
		Time:      state.GetString(flowTime),
		Client:    state.Client(),
	})
	if err != nil {
		if domain.IsConflict(err) {
			state.Delete(flowTime)
			state.Set(flowError, domain.PublicMessage(err))
			state.Step = models.StepDateTime
			if saveErr := f.save(ctx, state); saveErr != nil {
				f.logger.Error().Err(saveErr).Str("session_id", sessionID).Msg("failed to save flow after conflict")
			}
		}
		return state, err
	}

	state.Set(flowBookingID, booking.ID)
	state.Set(flowDeposit, booking.Service.Deposit(f.depositPercent))
	state.Set(flowPaymentStatus, booking.PaymentStatus)
	state.Delete(flowError)
	state.Step = models.StepConfirmation
	return state, f.save(ctx, state)
}

// OpenPayment moves a confirmed wizard to the deposit step.
func (f *BookingFlow) OpenPayment(ctx context.Context, sessionID string) (*models.FlowState, error) {
	state, err := f.load(ctx, sessionID, models.StepConfirmation)
	if err != nil {
		return nil, err
	}
	if state.GetString(flowPaymentStatus) == models.PaymentPaid {
		return nil, domain.Validation("Deposit is already paid")
	}
	state.Step = models.StepPayment
	return state, f.save(ctx, state)
}

func (f *BookingFlow) PayDeposit(ctx context.Context, sessionID, method string) (*models.FlowState, error) {
	state, err := f.load(ctx, sessionID, models.StepConfirmation, models.StepPayment)
	if err != nil {
		return nil, err
	}

	booking, err := f.payer.PayDeposit(ctx, state.GetString(flowBookingID), method)
	if err != nil {
		return nil, err
	}

	state.Set(flowDeposit, booking.DepositAmount)
	state.Set(flowPaymentStatus, booking.PaymentStatus)
	state.Set(flowPaymentMethod, booking.PaymentMethod)
	state.Step = models.StepConfirmation
	return state, f.save(ctx, state)
}

func (f *BookingFlow) Back(ctx context.Context, sessionID string) (*models.FlowState, error) {
	state, err := f.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch state.Step {
	case models.StepDateTime:
		state.Delete(flowServiceID, flowServiceName, flowServicePrice, flowSlotBased, flowDate, flowTime, flowError)
		state.Step = models.StepService
	case models.StepDetails:
		state.Delete(flowTime)
		state.Step = models.StepDateTime
	case models.StepPayment:
		state.Step = models.StepConfirmation
	default:
		return nil, domain.ErrFlowStep
	}
	return state, f.save(ctx, state)
}

// Reset starts another booking in the same session.
func (f *BookingFlow) Reset(ctx context.Context, sessionID string) (*models.FlowState, error) {
	state, err := f.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.Data = map[string]interface{}{}
	state.Step = models.StepService
	return state, f.save(ctx, state)
}

func (f *BookingFlow) load(ctx context.Context, sessionID string, allowed ...string) (*models.FlowState, error) {
	state, err := f.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, step := range allowed {
		if state.Step == step {
			return state, nil
		}
	}
	return nil, domain.ErrFlowStep
}

func (f *BookingFlow) save(ctx context.Context, state *models.FlowState) error {
	state.UpdatedAt = f.now()
	if err := f.flows.SaveFlow(ctx, state); err != nil {
		f.logger.Error().Err(err).Str("session_id", state.SessionID).Msg("failed to save flow")
		return classifyStoreError(err)
	}
	return nil
}

package api

import (
	"net/http"

	"reservo/internal/domain"
	"reservo/internal/models"
)

type flowStepRequest struct {
	ServiceID string `json:"serviceId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	Method    string `json:"method"`
}

func (s *HTTPServer) handleFlowStart(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.Flow.Start(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (s *HTTPServer) handleFlowGet(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.Flow.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleFlowDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Flow.Clear(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleFlowStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var body flowStepRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	var (
		state *models.FlowState
		err   error
	)
	switch r.PathValue("step") {
	case models.StepService:
		state, err = s.svc.Flow.SelectService(ctx, id, body.ServiceID)
	case models.StepDateTime:
		state, err = s.svc.Flow.SelectDateTime(ctx, id, body.Date, body.Time)
	case models.StepDetails:
		state, err = s.svc.Flow.SubmitDetails(ctx, id, models.ClientInfo{
			Name:    body.Name,
			Email:   body.Email,
			Phone:   body.Phone,
			Message: body.Message,
		})
	case models.StepPayment:
		if body.Method == "" {
			state, err = s.svc.Flow.OpenPayment(ctx, id)
		} else {
			state, err = s.svc.Flow.PayDeposit(ctx, id, body.Method)
		}
	case "back":
		state, err = s.svc.Flow.Back(ctx, id)
	case "reset":
		state, err = s.svc.Flow.Reset(ctx, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown booking step"})
		return
	}

	if err != nil {
		// a lost race returns the rewound wizard alongside the error
		if state != nil && domain.IsConflict(err) {
			writeJSON(w, httpStatus(err), map[string]any{"error": domain.PublicMessage(err), "flow": state})
			return
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

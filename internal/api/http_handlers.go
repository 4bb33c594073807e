package api

import (
	"net/http"
	"strings"

	"reservo/internal/domain"
	"reservo/internal/models"
)

// reserveRequest is the body of POST /api/v1/reserve. slotTime is null for whole-day services.
type reserveRequest struct {
	ServiceID string  `json:"serviceId"`
	Date      string  `json:"date"`
	SlotTime  *string `json:"slotTime"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Message   string  `json:"message,omitempty"`
}

func (req reserveRequest) toModel() models.ReservationRequest {
	slot := ""
	if req.SlotTime != nil {
		slot = *req.SlotTime
	}
	return models.ReservationRequest{
		ServiceID: req.ServiceID,
		Date:      req.Date,
		Time:      slot,
		Client: models.ClientInfo{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Message: req.Message,
		},
	}
}

func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request) {
	var body reserveRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if !s.allowReservation(r) {
		s.writeError(w, r, domain.ErrRateLimited)
		return
	}

	booking, err := s.svc.Reservations.Reserve(r.Context(), body.toModel())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"bookingId": booking.ID,
		"message":   "Booking created successfully",
	})
}

// allowReservation applies the shared per-client attempt limit. Store failures let the attempt through.
func (s *HTTPServer) allowReservation(r *http.Request) bool {
	if s.svc.Limits == nil || s.svc.ReserveLimit <= 0 {
		return true
	}
	allowed, err := s.svc.Limits.CheckRateLimit(r.Context(), "reserve:"+s.clientIP(r), s.svc.ReserveLimit, s.svc.ReserveWindow)
	if err != nil {
		s.log.Warn().Err(err).Msg("reservation rate limit check failed")
		return true
	}
	return allowed
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.svc.Catalog.ListServices(r.Context(), true)
	if err != nil {
		s.writeError(w, r, domain.Transient("Failed to load services", err))
		return
	}
	if services == nil {
		services = []*models.Service{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	day, err := s.svc.Availability.GetAvailability(r.Context(), strings.TrimSpace(r.PathValue("date")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *HTTPServer) handleAvailabilityRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	days, err := s.svc.Availability.GetAvailabilityRange(r.Context(), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": days})
}

func (s *HTTPServer) handleAvailabilityStream(w http.ResponseWriter, r *http.Request) {
	start, end, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.serveSSE(w, r, "availability", func(sink *sseSink) error {
		sub, err := s.svc.Availability.SubscribeAvailability(sink.ctx, start, end, func(days []*models.AvailabilityDate) {
			sink.send(map[string]any{"dates": days})
		})
		if err != nil {
			return err
		}
		sink.wait(sub)
		return nil
	})
}

func dateRange(r *http.Request) (string, string, error) {
	q := r.URL.Query()
	start := strings.TrimSpace(q.Get("start"))
	end := strings.TrimSpace(q.Get("end"))
	if start == "" || end == "" {
		return "", "", domain.Validation("start and end are required")
	}
	return start, end, nil
}

package api

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"reservo/internal/auth"
	"reservo/internal/domain"
	"reservo/internal/export"
	"reservo/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if s.svc.Auth == nil {
		s.writeError(w, r, domain.ErrUnauthorized)
		return
	}
	var body loginRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	acc, token, err := s.svc.Auth.Login(r.Context(), w, r, body.Email, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"admin": acc,
	})
}

// handleAdminLogout clears the session and sends the browser to the sign-in page.
func (s *HTTPServer) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	loginPath := "/admin-login"
	if s.svc.Auth != nil {
		s.svc.Auth.Logout(w)
		loginPath = s.svc.Auth.LoginPath()
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (s *HTTPServer) handleAdminBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		bookings []*models.Booking
		err      error
	)
	if start, end := q.Get("start"), q.Get("end"); start != "" || end != "" {
		bookings, err = s.svc.Admin.BookingsInRange(r.Context(), start, end)
	} else {
		bookings, err = s.svc.Admin.ListBookings(r.Context(), strings.TrimSpace(q.Get("status")))
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleAdminBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Admin.GetBooking(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleAdminBookingStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	admin, _ := auth.AdminFromContext(r.Context())
	b, err := s.svc.Admin.UpdateStatus(r.Context(), r.PathValue("id"), body.Status, admin)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *HTTPServer) handleAdminSetAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsAvailable bool              `json:"is_available"`
		Slots       []models.TimeSlot `json:"slots"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	day, err := s.svc.Availability.SetAvailability(r.Context(), r.PathValue("date"), body.IsAvailable, body.Slots)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *HTTPServer) handleAdminBatchAvailability(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Dates       []string `json:"dates"`
		IsAvailable bool     `json:"is_available"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.Availability.SetBatchAvailability(r.Context(), body.Dates, body.IsAvailable); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "updated": len(body.Dates)})
}

func (s *HTTPServer) handleAdminAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Admin.Analytics(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	startStr, endStr, err := dateRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	bookings, err := s.svc.Admin.BookingsInRange(r.Context(), startStr, endStr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// range was validated by BookingsInRange
	start, _ := time.Parse(models.DateLayout, startStr)
	end, _ := time.Parse(models.DateLayout, endStr)

	var buf bytes.Buffer
	if err := export.WriteBookingsXLSX(&buf, start, end, s.svc.SlotTimes, bookings); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(start, end)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleAdminBookingStream(w http.ResponseWriter, r *http.Request) {
	s.serveSSE(w, r, "bookings", func(sink *sseSink) error {
		sub, err := s.svc.Admin.SubscribeBookings(sink.ctx, func(bookings []*models.Booking) {
			sink.send(map[string]any{"bookings": bookings})
		})
		if err != nil {
			return err
		}
		sink.wait(sub)
		return nil
	})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"reservo/internal/auth"
	"reservo/internal/config"
	"reservo/internal/domain"
	"reservo/internal/metrics"
	"reservo/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Services are the application components the transports expose.
type Services struct {
	Reservations domain.Reserver
	Catalog      domain.ServiceCatalog
	Availability *service.AvailabilityService
	Admin        *service.BookingAdmin
	Flow         *service.BookingFlow
	Auth         *auth.Authenticator

	// Limits counts reservation attempts per client; nil disables the check.
	Limits        domain.FlowRepository
	ReserveLimit  int
	ReserveWindow time.Duration

	// SlotTimes lay out the schedule sheet of the XLSX export.
	SlotTimes []string
}

// HTTPServer exposes the JSON API used by the booking site and the admin dashboard.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	server  *http.Server
	limiter *rateLimiter
	proxies []netip.Prefix
	log     zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		limiter: newRateLimiter(cfg.RateLimit),
		log:     zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}
	proxies, err := config.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		srv.log.Warn().Err(err).Msg("ignoring trusted proxies, X-Forwarded-For will not be honoured")
	}
	srv.proxies = proxies

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(srv.corsMiddleware(srv.rateLimitMiddleware(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /healthz", s.handleHealth)

	s.handle(mux, "POST /api/v1/reserve", s.handleReserve)
	s.handle(mux, "GET /api/v1/services", s.handleServices)
	s.handle(mux, "GET /api/v1/availability", s.handleAvailabilityRange)
	s.handle(mux, "GET /api/v1/availability/{date}", s.handleAvailability)
	s.handle(mux, "GET /api/v1/stream/availability", s.handleAvailabilityStream)

	s.handle(mux, "POST /api/v1/flow", s.handleFlowStart)
	s.handle(mux, "GET /api/v1/flow/{id}", s.handleFlowGet)
	s.handle(mux, "DELETE /api/v1/flow/{id}", s.handleFlowDelete)
	s.handle(mux, "POST /api/v1/flow/{id}/{step}", s.handleFlowStep)

	s.handle(mux, "POST /api/v1/admin/login", s.handleAdminLogin)
	s.handle(mux, "POST /api/v1/admin/logout", s.handleAdminLogout)

	s.handleAdmin(mux, "GET /api/v1/admin/bookings", s.handleAdminBookings)
	s.handleAdmin(mux, "GET /api/v1/admin/bookings/{id}", s.handleAdminBooking)
	s.handleAdmin(mux, "POST /api/v1/admin/bookings/{id}/status", s.handleAdminBookingStatus)
	s.handleAdmin(mux, "PUT /api/v1/admin/availability/{date}", s.handleAdminSetAvailability)
	s.handleAdmin(mux, "POST /api/v1/admin/availability/batch", s.handleAdminBatchAvailability)
	s.handleAdmin(mux, "GET /api/v1/admin/analytics", s.handleAdminAnalytics)
	s.handleAdmin(mux, "GET /api/v1/admin/export", s.handleAdminExport)
	s.handleAdmin(mux, "GET /api/v1/admin/stream/bookings", s.handleAdminBookingStream)
}

func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		h(w, r)
	}))
}

func (s *HTTPServer) handleAdmin(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if s.svc.Auth == nil {
		s.handle(mux, pattern, func(w http.ResponseWriter, r *http.Request) {
			s.writeError(w, r, domain.ErrUnauthorized)
		})
		return
	}
	guarded := s.svc.Auth.RequireAdmin(h)
	s.handle(mux, pattern, guarded.ServeHTTP)
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type, x-request-id"

// corsMiddleware answers preflight requests and stamps CORS headers on every response.
func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			if origin != "*" {
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) allowedOrigin(origin string) string {
	for _, o := range s.cfg.HTTP.CORSOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" && !s.limiter.Allow(s.clientIP(r)) {
			s.writeError(w, r, domain.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// clientIP is the address rate limits are keyed by. X-Forwarded-For is honoured only
// when the connection comes from a trusted proxy; the rightmost untrusted hop wins.
func (s *HTTPServer) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return clientKeyUnknown
	}
	if !s.trustedProxy(host) {
		return host
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !s.trustedProxy(hop) {
			return hop
		}
	}
	return host
}

func (s *HTTPServer) trustedProxy(ip string) bool {
	if len(s.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError answers with the client-facing message of err; unclassified errors are logged.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, code, map[string]string{"error": domain.PublicMessage(err)})
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return domain.Validation("Invalid JSON body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Validation("Invalid JSON body")
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach Flush and write deadlines of the real writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"reservo/internal/auth"
	"reservo/internal/config"
	"reservo/internal/database"
	"reservo/internal/events"
	"reservo/internal/models"
	"reservo/internal/repository"
	"reservo/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testLogger = zerolog.New(io.Discard)

var catalogue = []models.Service{
	{ID: "photography", Name: "Photography", StartingPrice: 120, IsActive: true, SlotBased: true, SortOrder: 1},
	{ID: "videography", Name: "Videography", StartingPrice: 350, IsActive: true, SlotBased: true, SortOrder: 2},
	{ID: "event-coverage", Name: "Event Coverage", StartingPrice: 500, IsActive: true, SlotBased: false, SortOrder: 3},
	{ID: "archived", Name: "Archived", StartingPrice: 10, IsActive: false, SlotBased: true, SortOrder: 9},
}

const (
	adminEmail    = "admin@studio.test"
	adminPassword = "s3cret"
)

// 2025-05-20 09:00 UTC keeps 2025-06-01 bookable.
func fixedClock() time.Time {
	return time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
}

type testStack struct {
	db  *database.DB
	bus *events.EventBus
	svc Services
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SyncServices(ctx, catalogue))

	bus := events.NewEventBus()
	coordinator := service.NewReservationCoordinator(db, bus, nil, service.ReservationConfig{
		DefaultSlots:   models.DefaultSlotTimes,
		MaxBookingDays: 365,
		Location:       time.UTC,
	}, &testLogger).WithClock(fixedClock)
	availability := service.NewAvailabilityService(db, bus, models.DefaultSlotTimes, &testLogger)
	admin := service.NewBookingAdmin(db, bus, nil, time.UTC, &testLogger)
	payments := service.NewPaymentService(db, bus, 30, &testLogger)
	flows := repository.NewMemoryFlowRepository(time.Hour)
	flow := service.NewBookingFlow(flows, db, availability, coordinator, payments, 30, &testLogger)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(config.AdminConfig{
		SessionHashKey:  "0123456789abcdef0123456789abcdef",
		SessionBlockKey: "abcdef0123456789",
		JWTSecret:       "test-secret",
		TokenTTL:        time.Hour,
		LoginPath:       "/admin-login",
	}, auth.NewConfigIdentityProvider([]models.AdminAccount{
		{Email: adminEmail, Name: "Studio Admin", PasswordHash: string(hash)},
	}), &testLogger)
	require.NoError(t, err)

	return &testStack{
		db:  db,
		bus: bus,
		svc: Services{
			Reservations: coordinator,
			Catalog:      db,
			Availability: availability,
			Admin:        admin,
			Flow:         flow,
			Auth:         authenticator,
			SlotTimes:    models.DefaultSlotTimes,
		},
	}
}

func testAPIConfig() config.APIConfig {
	return config.APIConfig{
		HTTP: config.APIHTTPConfig{Enabled: true, CORSOrigins: []string{"*"}},
	}
}

func newTestHTTP(t *testing.T, stack *testStack, cfg config.APIConfig) *httptest.Server {
	t.Helper()
	srv := NewHTTPServer(cfg, stack.svc, &testLogger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func reserveBody(serviceID, date string, slot *string, email string) map[string]any {
	return map[string]any{
		"serviceId": serviceID,
		"date":      date,
		"slotTime":  slot,
		"name":      "Client",
		"email":     email,
		"phone":     "+254700000000",
	}
}

func strPtr(s string) *string { return &s }

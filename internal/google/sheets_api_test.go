package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"reservo/internal/models"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(ctx context.Context, t *testing.T) (*http.ServeMux, *SheetsService) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	srv, err := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("sheets service: %v", err)
	}
	return mux, newSheetsService(srv, "bookings_tid")
}

func testBooking(id string) *models.Booking {
	return &models.Booking{
		ID:          id,
		Service:     models.ServiceSnapshot{ID: "photography", Name: "Photography", StartingPrice: 120},
		Date:        "2025-06-01",
		Time:        "10:00",
		ClientName:  "Amina",
		ClientEmail: "amina@example.com",
		ClientPhone: "+254700000001",
		Status:      models.StatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

func TestSheetsService_TestConnection(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	if err := s.TestConnection(ctx); err != nil {
		t.Errorf("TestConnection failed: %v", err)
	}
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"b-123"}, {}, {"b-456"}},
		})
	})
	if err := s.WarmUpCache(ctx); err != nil {
		t.Errorf("WarmUpCache failed: %v", err)
	}
	if row, ok := s.getCachedRow("b-123"); !ok || row != 2 {
		t.Errorf("Expected row 2 for b-123, got %d", row)
	}
	if row, ok := s.getCachedRow("b-456"); !ok || row != 4 {
		t.Errorf("Expected row 4 for b-456, got %d", row)
	}
	if _, ok := s.getCachedRow("ID"); ok {
		t.Error("Header must not be cached")
	}
}

func TestSheetsService_UpsertBooking_Append(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	var appended sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&appended)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Bookings!A10:N10"},
		})
	})

	if err := s.UpsertBooking(ctx, testBooking("b-789")); err != nil {
		t.Fatalf("UpsertBooking failed: %v", err)
	}
	if row, _ := s.getCachedRow("b-789"); row != 10 {
		t.Errorf("Expected cached row 10, got %d", row)
	}
	if len(appended.Values) != 1 || appended.Values[0][0] != "b-789" || appended.Values[0][1] != "Photography" {
		t.Errorf("Unexpected appended row: %v", appended.Values)
	}
}

func TestSheetsService_UpsertBooking_Update(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	s.setCachedRow("b-123", 2)
	called := false
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A2:N2", func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	if err := s.UpsertBooking(ctx, testBooking("b-123")); err != nil {
		t.Errorf("UpsertBooking failed: %v", err)
	}
	if !called {
		t.Error("Expected row update")
	}
}

func TestSheetsService_UpdateBookingStatus(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	s.setCachedRow("b-123", 2)

	var mu sync.Mutex
	var req sheets.BatchUpdateValuesRequest
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values:batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateValuesResponse{})
	})
	if err := s.UpdateBookingStatus(ctx, "b-123", models.StatusConfirmed); err != nil {
		t.Fatalf("UpdateBookingStatus failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(req.Data) != 2 {
		t.Fatalf("Expected 2 ranges, got %d", len(req.Data))
	}
	if req.Data[0].Range != "Bookings!E2" || req.Data[0].Values[0][0] != models.StatusConfirmed {
		t.Errorf("Unexpected status range: %+v", req.Data[0])
	}
	if req.Data[1].Range != "Bookings!N2" {
		t.Errorf("Unexpected updated_at range: %s", req.Data[1].Range)
	}
}

func TestSheetsService_UpdateBookingStatus_NoRow(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"other"}}})
	})
	if err := s.UpdateBookingStatus(ctx, "b-missing", models.StatusConfirmed); err != ErrRowNotFound {
		t.Errorf("Expected ErrRowNotFound, got %v", err)
	}
}

func TestSheetsService_FindBookingRow_FullScan(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:A", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{
			Values: [][]interface{}{{"ID"}, {"b-999"}},
		})
	})
	row, err := s.FindBookingRow(ctx, "b-999")
	if err != nil {
		t.Errorf("FindBookingRow failed: %v", err)
	}
	if row != 2 {
		t.Errorf("Expected row 2, got %d", row)
	}
	if _, err := s.FindBookingRow(ctx, ""); err == nil {
		t.Error("Expected error for empty id")
	}
}

func TestSheetsService_ReplaceBookingsSheet(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A:Z:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	var written sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&written)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})

	bookings := []*models.Booking{testBooking("b-1"), testBooking("b-2")}
	if err := s.ReplaceBookingsSheet(ctx, bookings); err != nil {
		t.Fatalf("ReplaceBookingsSheet failed: %v", err)
	}
	if len(written.Values) != 3 || written.Values[0][0] != "ID" {
		t.Errorf("Expected header plus 2 rows, got %v", written.Values)
	}
	if row, _ := s.getCachedRow("b-2"); row != 3 {
		t.Errorf("Expected cached row 3, got %d", row)
	}
}

func TestSheetsService_UpdateScheduleSheet(t *testing.T) {
	ctx := context.Background()
	mux, s := setupMockServer(ctx, t)
	mux.HandleFunc("/v4/spreadsheets/bookings_tid", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{
			Sheets: []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: "Schedule", SheetId: 999}}},
		})
	})
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Schedule!A:Z:clear", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ClearValuesResponse{})
	})
	var grid sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/bookings_tid/values/Schedule!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&grid)
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})
	})
	var formats sheets.BatchUpdateSpreadsheetRequest
	mux.HandleFunc("/v4/spreadsheets/bookings_tid:batchUpdate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&formats)
		_ = json.NewEncoder(w).Encode(sheets.BatchUpdateSpreadsheetResponse{})
	})

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	confirmed := testBooking("b-1")
	confirmed.Status = models.StatusConfirmed

	err := s.UpdateScheduleSheet(ctx, start, end, []string{"09:00", "10:00"}, nil, []*models.Booking{confirmed})
	if err != nil {
		t.Fatalf("UpdateScheduleSheet failed: %v", err)
	}
	// period, blank, header, 2 slots, full day
	if len(grid.Values) != 6 {
		t.Fatalf("Expected 6 rows, got %d", len(grid.Values))
	}
	if grid.Values[4][0] != "10:00" || grid.Values[4][1] == "" {
		t.Errorf("Expected booking in 10:00 row, got %v", grid.Values[4])
	}
	// 3 rows x 2 dates
	if len(formats.Requests) != 6 {
		t.Errorf("Expected 6 format requests, got %d", len(formats.Requests))
	}

	if err := s.UpdateScheduleSheet(ctx, end, start, nil, nil, nil); err == nil {
		t.Error("Expected error for inverted range")
	}
}

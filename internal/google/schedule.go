package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reservo/internal/models"

	"google.golang.org/api/sheets/v4"
)

// maxScheduleDays ограничивает ширину листа расписания
const maxScheduleDays = 62

var (
	colorConfirmed = &sheets.Color{Red: 0.78, Green: 0.94, Blue: 0.81}
	colorPending   = &sheets.Color{Red: 1.0, Green: 0.92, Blue: 0.61}
	colorClosed    = &sheets.Color{Red: 0.85, Green: 0.85, Blue: 0.85}
	colorFree      = &sheets.Color{Red: 1.0, Green: 1.0, Blue: 1.0}
)

// wholeDayRow is the label of the row holding bookings without a time slot.
const wholeDayRow = "Full day"

// UpdateScheduleSheet rewrites the "Schedule" sheet as a slot x date grid.
func (s *SheetsService) UpdateScheduleSheet(ctx context.Context, start, end time.Time, slotTimes []string, days []*models.AvailabilityDate, bookings []*models.Booking) error {
	if end.Before(start) {
		return fmt.Errorf("invalid date range: %s - %s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}

	sheetID, err := s.GetSheetIdByName(ctx, scheduleSheet)
	if err != nil {
		return fmt.Errorf("unable to get sheet ID: %w", err)
	}

	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, scheduleSheet+"!A:Z", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear sheet: %w", err)
	}

	headerRow, dates := prepareDateHeaders(start, end)
	dayByDate := make(map[string]*models.AvailabilityDate, len(days))
	for _, d := range days {
		dayByDate[d.Date] = d
	}
	byCell := make(map[string][]*models.Booking)
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		key := b.Date + "|" + b.Time
		byCell[key] = append(byCell[key], b)
	}

	rows := append(append([]string{}, slotTimes...), wholeDayRow)
	data := [][]interface{}{
		{fmt.Sprintf("Period: %s - %s", start.Format("02.01.2006"), end.Format("02.01.2006"))},
		{},
		headerRow,
	}
	var formatRequests []*sheets.Request

	for rowIndex, label := range rows {
		rowData := []interface{}{label}
		for colIndex, date := range dates {
			slot := label
			if label == wholeDayRow {
				slot = ""
			}
			value, color := formatScheduleCell(dayByDate[date], slot, byCell[date+"|"+slot])
			rowData = append(rowData, value)
			formatRequests = append(formatRequests, cellFormatRequest(sheetID, rowIndex+3, colIndex+1, color))
		}
		data = append(data, rowData)
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, scheduleSheet+"!A1", &sheets.ValueRange{Values: data}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to update schedule sheet: %w", err)
	}

	if len(formatRequests) > 0 {
		_, err = s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: formatRequests,
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("unable to apply formatting: %w", err)
		}
	}
	return nil
}

// prepareDateHeaders returns the header row and the YYYY-MM-DD label of every column.
func prepareDateHeaders(start, end time.Time) ([]interface{}, []string) {
	headers := []interface{}{""}
	var dates []string
	for d := start; !d.After(end) && len(dates) < maxScheduleDays; d = d.AddDate(0, 0, 1) {
		headers = append(headers, d.Format("02.01"))
		dates = append(dates, d.Format(models.DateLayout))
	}
	return headers, dates
}

// formatScheduleCell renders one grid cell. day may be nil for a date never configured.
func formatScheduleCell(day *models.AvailabilityDate, slot string, bookings []*models.Booking) (string, *sheets.Color) {
	if len(bookings) > 0 {
		var sb strings.Builder
		pending := false
		for _, b := range bookings {
			mark := "✅"
			if b.Status == models.StatusPending {
				mark = "⏳"
				pending = true
			}
			fmt.Fprintf(&sb, "%s %s - %s (%s)\n", mark, b.Service.Name, b.ClientName, b.ClientPhone)
		}
		if pending {
			return strings.TrimRight(sb.String(), "\n"), colorPending
		}
		return strings.TrimRight(sb.String(), "\n"), colorConfirmed
	}

	if day != nil && !day.IsAvailable {
		return "Closed", colorClosed
	}
	if slot != "" && day != nil {
		if ts, ok := day.Slot(slot); ok && !ts.IsAvailable {
			return "Blocked", colorClosed
		}
	}
	return "", colorFree
}

func cellFormatRequest(sheetID int64, row, col int, color *sheets.Color) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          sheetID,
				StartRowIndex:    int64(row),
				EndRowIndex:      int64(row + 1),
				StartColumnIndex: int64(col),
				EndColumnIndex:   int64(col + 1),
			},
			Cell: &sheets.CellData{
				UserEnteredFormat: &sheets.CellFormat{
					BackgroundColor:   color,
					VerticalAlignment: "TOP",
					WrapStrategy:      "WRAP",
				},
			},
			Fields: "userEnteredFormat(backgroundColor,verticalAlignment,wrapStrategy)",
		},
	}
}

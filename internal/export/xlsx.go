package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"reservo/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	scheduleSheet = "Schedule"
)

var bookingColumns = []string{
	"Reference", "Service", "Date", "Time", "Status", "Payment", "Client",
	"Email", "Phone", "Message", "Starting Price", "Deposit", "Created At",
}

// WriteBookingsXLSX renders the bookings of [start, end] as a workbook with a flat
// "Bookings" list and a slot x date "Schedule" grid.
func WriteBookingsXLSX(w io.Writer, start, end time.Time, slotTimes []string, bookings []*models.Booking) error {
	if end.Before(start) {
		return fmt.Errorf("invalid date range: %s - %s", start.Format(models.DateLayout), end.Format(models.DateLayout))
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeBookingList(f, bookings); err != nil {
		return err
	}
	if _, err := f.NewSheet(scheduleSheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeSchedule(f, start, end, slotTimes, bookings); err != nil {
		return err
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveBookingsXLSX writes the workbook into dir and returns the file path.
func SaveBookingsXLSX(dir string, start, end time.Time, slotTimes []string, bookings []*models.Booking) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	path := filepath.Join(dir, FileName(start, end))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating file: %w", err)
	}
	defer file.Close()

	if err := WriteBookingsXLSX(file, start, end, slotTimes, bookings); err != nil {
		return "", err
	}
	return path, nil
}

func FileName(start, end time.Time) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", start.Format(models.DateLayout), end.Format(models.DateLayout))
}

func writeBookingList(f *excelize.File, bookings []*models.Booking) error {
	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	for i, title := range bookingColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, title)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(bookingColumns))
	_ = f.SetCellStyle(bookingsSheet, "A1", lastCol+"1", header)

	for i, b := range bookings {
		row := []interface{}{
			b.ID, b.Service.Name, b.Date, timeLabel(b.Time), b.Status, b.PaymentStatus,
			b.ClientName, b.ClientEmail, b.ClientPhone, b.ClientMessage,
			b.Service.StartingPrice, b.DepositAmount, b.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(bookingsSheet, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(bookingsSheet, "B", lastCol, 18)
	return nil
}

func writeSchedule(f *excelize.File, start, end time.Time, slotTimes []string, bookings []*models.Booking) error {
	_ = f.SetCellValue(scheduleSheet, "A1", fmt.Sprintf("Period: %s - %s",
		start.Format("02.01.2006"), end.Format("02.01.2006")))

	dateStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	slotStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	confirmedStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	pendingStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFEB9C"}, Pattern: 1},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	dateCols := make(map[string]int)
	col := 2
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(scheduleSheet, cell, d.Format("02.01"))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, dateStyle)
		dateCols[d.Format(models.DateLayout)] = col
		col++
	}

	rows := make(map[string]int, len(slotTimes)+1)
	labels := append(append([]string{}, slotTimes...), "")
	for i, slot := range labels {
		row := i + 3
		rows[slot] = row
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(scheduleSheet, cell, timeLabel(slot))
		_ = f.SetCellStyle(scheduleSheet, cell, cell, slotStyle)
	}

	type cellKey struct{ row, col int }
	cells := make(map[cellKey][]*models.Booking)
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		c, ok := dateCols[b.Date]
		if !ok {
			continue
		}
		r, ok := rows[b.Time]
		if !ok {
			continue
		}
		cells[cellKey{r, c}] = append(cells[cellKey{r, c}], b)
	}

	for key, list := range cells {
		cell, _ := excelize.CoordinatesToCellName(key.col, key.row)
		text := ""
		style := confirmedStyle
		for i, b := range list {
			if i > 0 {
				text += "\n"
			}
			text += fmt.Sprintf("%s - %s (%s)", b.Service.Name, b.ClientName, b.ClientPhone)
			if b.Status == models.StatusPending {
				style = pendingStyle
			}
		}
		_ = f.SetCellValue(scheduleSheet, cell, text)
		_ = f.SetCellStyle(scheduleSheet, cell, cell, style)
	}

	lastCol, _ := excelize.ColumnNumberToName(col - 1)
	_ = f.SetColWidth(scheduleSheet, "A", "A", 12)
	if col > 2 {
		_ = f.SetColWidth(scheduleSheet, "B", lastCol, 24)
		_ = f.MergeCell(scheduleSheet, "A1", lastCol+"1")
	}
	return nil
}

func timeLabel(slot string) string {
	if slot == "" {
		return "Full day"
	}
	return slot
}

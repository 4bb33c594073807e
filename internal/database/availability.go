package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reservo/internal/domain"
	"reservo/internal/models"
)

// GetAvailability returns the stored configuration of a date.
// A date that was never configured yields domain.ErrAvailabilityNotFound; callers decide on defaults.
func (db *DB) GetAvailability(ctx context.Context, date string) (*models.AvailabilityDate, error) {
	var day models.AvailabilityDate
	err := db.QueryRowContext(ctx,
		`SELECT date, is_available, updated_at FROM availability_dates WHERE date = ?`, date,
	).Scan(&day.Date, &day.IsAvailable, &day.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAvailabilityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability: %w", err)
	}

	slots, err := db.loadSlots(ctx, db.DB, date)
	if err != nil {
		return nil, err
	}
	day.Slots = slots
	return &day, nil
}

// GetAvailabilityRange returns the configured dates within [start, end], ordered by date.
func (db *DB) GetAvailabilityRange(ctx context.Context, start, end string) ([]*models.AvailabilityDate, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT date, is_available, updated_at FROM availability_dates WHERE date >= ? AND date <= ? ORDER BY date ASC`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get availability range: %w", err)
	}

	var days []*models.AvailabilityDate
	for rows.Next() {
		var day models.AvailabilityDate
		if err := rows.Scan(&day.Date, &day.IsAvailable, &day.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan availability: %w", err)
		}
		days = append(days, &day)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	// Slots are loaded after the date cursor is closed; ":memory:" databases have a single connection.
	for _, day := range days {
		slots, err := db.loadSlots(ctx, db.DB, day.Date)
		if err != nil {
			return nil, err
		}
		day.Slots = slots
	}
	return days, nil
}

// SetAvailability replaces the admin-controlled part of a date.
// Slots currently held by a booking survive: their state is owned by the booking, not the admin.
func (db *DB) SetAvailability(ctx context.Context, date string, isAvailable bool, slots []models.TimeSlot) (*models.AvailabilityDate, error) {
	now := time.Now()
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertDate(ctx, tx, date, isAvailable, now); err != nil {
			return err
		}

		existing, err := db.loadSlots(ctx, tx, date)
		if err != nil {
			return err
		}
		booked := make(map[string]models.TimeSlot)
		for _, s := range existing {
			if s.Booked() {
				booked[s.Time] = s
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM time_slots WHERE date = ? AND booked_by = ''`, date); err != nil {
			return fmt.Errorf("failed to clear slots: %w", err)
		}

		for i, s := range slots {
			if _, held := booked[s.Time]; held {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO time_slots (date, time, is_available, booked_by, position) VALUES (?, ?, ?, '', ?)`,
				date, s.Time, s.IsAvailable, i,
			); err != nil {
				if isUniqueViolation(err) {
					return domain.Validation("duplicate slot %s", s.Time)
				}
				return fmt.Errorf("failed to insert slot: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetAvailability(ctx, date)
}

// SetBatchAvailability flips the day flag of many dates at once.
// Dates without slots get the default set so they stay bookable once reopened.
func (db *DB) SetBatchAvailability(ctx context.Context, dates []string, isAvailable bool, defaultSlots []string) error {
	now := time.Now()
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, date := range dates {
			if err := upsertDate(ctx, tx, date, isAvailable, now); err != nil {
				return err
			}
			var count int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM time_slots WHERE date = ?`, date).Scan(&count); err != nil {
				return fmt.Errorf("failed to count slots: %w", err)
			}
			if count > 0 {
				continue
			}
			if err := insertDefaultSlots(ctx, tx, date, defaultSlots); err != nil {
				return err
			}
		}
		return nil
	})
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (db *DB) loadSlots(ctx context.Context, q queryer, date string) ([]models.TimeSlot, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT time, is_available, booked_by FROM time_slots WHERE date = ? ORDER BY position ASC, time ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load slots: %w", err)
	}
	defer rows.Close()

	slots := make([]models.TimeSlot, 0)
	for rows.Next() {
		var s models.TimeSlot
		if err := rows.Scan(&s.Time, &s.IsAvailable, &s.BookedBy); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func upsertDate(ctx context.Context, tx *sql.Tx, date string, isAvailable bool, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO availability_dates (date, is_available, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(date) DO UPDATE SET is_available = excluded.is_available, updated_at = excluded.updated_at`,
		date, isAvailable, now)
	if err != nil {
		return fmt.Errorf("failed to upsert availability date: %w", err)
	}
	return nil
}

func insertDefaultSlots(ctx context.Context, tx *sql.Tx, date string, slotTimes []string) error {
	for i, t := range slotTimes {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO time_slots (date, time, is_available, booked_by, position) VALUES (?, ?, 1, '', ?)`,
			date, t, i,
		); err != nil {
			return fmt.Errorf("failed to insert default slot: %w", err)
		}
	}
	return nil
}

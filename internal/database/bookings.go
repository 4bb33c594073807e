package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reservo/internal/domain"
	"reservo/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, service_id, service_name, service_description, service_price, service_image,
                 date, slot_time, client_name, client_email, client_phone, client_message,
                 status, payment_status, deposit_amount, payment_method, created_at, updated_at, version`

// Reserve validates the request against the calendar and inserts the booking in one write transaction.
// On success booking carries its id, service snapshot and timestamps.
// defaultSlots are materialized when the date has never been configured.
func (db *DB) Reserve(ctx context.Context, booking *models.Booking, defaultSlots []string) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now()

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		// 1. Услуга должна существовать и быть активной
		svc, err := scanService(tx.QueryRowContext(ctx,
			`SELECT `+serviceColumns+` FROM services WHERE id = ? AND is_active = 1`, booking.Service.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrServiceNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get service in tx: %w", err)
		}

		// 2. День открыт (несконфигурированный день создается со слотами по умолчанию)
		if err := ensureDateOpen(ctx, tx, booking.Date, booking.Time != "", defaultSlots, now); err != nil {
			return err
		}

		// 3. Слот существует и свободен
		if booking.Time != "" {
			var slotAvailable bool
			err := tx.QueryRowContext(ctx,
				`SELECT is_available FROM time_slots WHERE date = ? AND time = ?`, booking.Date, booking.Time,
			).Scan(&slotAvailable)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrSlotNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to get slot in tx: %w", err)
			}
			if !slotAvailable {
				return domain.ErrSlotAlreadyBooked
			}
		}

		// 4. Нет активной брони на ту же услугу, дату и время
		var active int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE service_id = ? AND date = ? AND slot_time = ? AND status IN (?, ?)`,
			svc.ID, booking.Date, booking.Time, models.StatusPending, models.StatusConfirmed,
		).Scan(&active); err != nil {
			return fmt.Errorf("failed to check active bookings in tx: %w", err)
		}
		if active > 0 {
			return domain.ErrConflictingBooking
		}

		// 5. Вставка брони
		booking.Service = svc.Snapshot()
		booking.Status = models.StatusPending
		booking.PaymentStatus = models.PaymentUnpaid
		booking.CreatedAt = now
		booking.UpdatedAt = now
		booking.Version = 1
		if err := insertBooking(ctx, tx, booking); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflictingBooking
			}
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}

		// 6. Compare-and-set слота
		if booking.Time != "" {
			res, err := tx.ExecContext(ctx,
				`UPDATE time_slots SET is_available = 0, booked_by = ? WHERE date = ? AND time = ? AND is_available = 1`,
				booking.ClientEmail, booking.Date, booking.Time)
			if err != nil {
				return fmt.Errorf("failed to book slot in tx: %w", err)
			}
			if rows, _ := res.RowsAffected(); rows != 1 {
				return domain.ErrSlotAlreadyBooked
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE availability_dates SET updated_at = ? WHERE date = ?`, now, booking.Date); err != nil {
				return fmt.Errorf("failed to touch availability date in tx: %w", err)
			}
		}
		return nil
	})
	if err != nil && isBusy(err) {
		return domain.Transient("Booking store is busy, please retry", err)
	}
	return err
}

func ensureDateOpen(ctx context.Context, tx *sql.Tx, date string, materialize bool, defaultSlots []string, now time.Time) error {
	var isAvailable bool
	err := tx.QueryRowContext(ctx, `SELECT is_available FROM availability_dates WHERE date = ?`, date).Scan(&isAvailable)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !materialize {
			return nil
		}
		if err := upsertDate(ctx, tx, date, true, now); err != nil {
			return err
		}
		return insertDefaultSlots(ctx, tx, date, defaultSlots)
	case err != nil:
		return fmt.Errorf("failed to get availability in tx: %w", err)
	case !isAvailable:
		return domain.ErrDateUnavailable
	}
	return nil
}

func insertBooking(ctx context.Context, tx *sql.Tx, b *models.Booking) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Service.ID, b.Service.Name, b.Service.Description, b.Service.StartingPrice, b.Service.Image,
		b.Date, b.Time, b.ClientName, b.ClientEmail, b.ClientPhone, b.ClientMessage,
		b.Status, b.PaymentStatus, b.DepositAmount, b.PaymentMethod, b.CreatedAt, b.UpdatedAt, b.Version,
	)
	return err
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns bookings newest first, optionally filtered by status.
func (db *DB) ListBookings(ctx context.Context, status string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, args...)
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE date >= ? AND date <= ? ORDER BY date ASC, slot_time ASC`
	return db.queryBookings(ctx, query, start, end)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// UpdateBookingStatus moves a pending booking to confirmed or cancelled.
// Cancelling frees the slot if it is still held by the booking's client.
func (db *DB) UpdateBookingStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	if status != models.StatusConfirmed && status != models.StatusCancelled {
		return nil, domain.ErrInvalidStatusTransition
	}

	var updated *models.Booking
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		current, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get booking in tx: %w", err)
		}

		now := time.Now()
		res, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND status = ? AND version = ?`,
			status, now, id, models.StatusPending, current.Version)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return domain.ErrInvalidStatusTransition
		}

		if status == models.StatusCancelled && current.Time != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE time_slots SET is_available = 1, booked_by = '' WHERE date = ? AND time = ? AND booked_by = ?`,
				current.Date, current.Time, current.ClientEmail); err != nil {
				return fmt.Errorf("failed to release slot: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE availability_dates SET updated_at = ? WHERE date = ?`, now, current.Date); err != nil {
				return fmt.Errorf("failed to touch availability date: %w", err)
			}
		}

		current.Status = status
		current.Version++
		current.UpdatedAt = now
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkDepositPaid records a captured deposit. Paying twice is a no-op.
func (db *DB) MarkDepositPaid(ctx context.Context, id string, amount float64, method string) (*models.Booking, error) {
	var updated *models.Booking
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		current, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get booking in tx: %w", err)
		}
		if current.Status == models.StatusCancelled {
			return domain.ErrBookingCanceled
		}
		if current.PaymentStatus == models.PaymentPaid {
			updated = current
			return nil
		}

		now := time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET payment_status = ?, deposit_amount = ?, payment_method = ?, version = version + 1, updated_at = ?
             WHERE id = ?`,
			models.PaymentPaid, amount, method, now, id); err != nil {
			return fmt.Errorf("failed to mark deposit paid: %w", err)
		}

		current.PaymentStatus = models.PaymentPaid
		current.DepositAmount = amount
		current.PaymentMethod = method
		current.Version++
		current.UpdatedAt = now
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.Service.ID, &b.Service.Name, &b.Service.Description, &b.Service.StartingPrice, &b.Service.Image,
		&b.Date, &b.Time, &b.ClientName, &b.ClientEmail, &b.ClientPhone, &b.ClientMessage,
		&b.Status, &b.PaymentStatus, &b.DepositAmount, &b.PaymentMethod, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

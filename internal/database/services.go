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

const serviceColumns = `id, name, tagline, description, starting_price, image, is_active, slot_based, sort_order, created_at, updated_at`

// SyncServices upserts the configured catalogue. Services missing from the list are deactivated, not deleted,
// because existing bookings keep their own snapshot anyway.
func (db *DB) SyncServices(ctx context.Context, services []models.Service) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		if _, err := tx.ExecContext(ctx, `UPDATE services SET is_active = 0, updated_at = ?`, now); err != nil {
			return fmt.Errorf("failed to deactivate services: %w", err)
		}

		query := `INSERT INTO services (` + serviceColumns + `)
                  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                  ON CONFLICT(id) DO UPDATE SET
                      name = excluded.name,
                      tagline = excluded.tagline,
                      description = excluded.description,
                      starting_price = excluded.starting_price,
                      image = excluded.image,
                      is_active = excluded.is_active,
                      slot_based = excluded.slot_based,
                      sort_order = excluded.sort_order,
                      updated_at = excluded.updated_at`
		for i := range services {
			svc := &services[i]
			if _, err := tx.ExecContext(ctx, query,
				svc.ID, svc.Name, svc.Tagline, svc.Description, svc.StartingPrice, svc.Image,
				svc.IsActive, svc.SlotBased, svc.SortOrder, now, now,
			); err != nil {
				return fmt.Errorf("failed to upsert service %s: %w", svc.ID, err)
			}
		}
		return nil
	})
}

// GetService returns an active service. Inactive and unknown ids are reported the same way.
func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	row := db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ? AND is_active = 1`, id)
	svc, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return svc, nil
}

func (db *DB) ListServices(ctx context.Context, activeOnly bool) ([]*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY sort_order ASC, name ASC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanService(row rowScanner) (*models.Service, error) {
	var svc models.Service
	err := row.Scan(
		&svc.ID, &svc.Name, &svc.Tagline, &svc.Description, &svc.StartingPrice, &svc.Image,
		&svc.IsActive, &svc.SlotBased, &svc.SortOrder, &svc.CreatedAt, &svc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

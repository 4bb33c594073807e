package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"reservo/internal/auth"
	"reservo/internal/database"
	"reservo/internal/export"
	"reservo/internal/google"
	"reservo/internal/models"
	"reservo/internal/service"
	"reservo/internal/worker"

	"github.com/spf13/cobra"
)

func newHashPasswordCmd() *cobra.Command {
	var password string

	c := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash for an admin account in config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	c.Flags().StringVar(&password, "password", "", "plain-text password")
	_ = c.MarkFlagRequired("password")
	return c
}

func newExportCmd() *cobra.Command {
	var start, end, dir string

	c := &cobra.Command{
		Use:   "export",
		Short: "Write bookings of a date range to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			admin := service.NewBookingAdmin(e.db, nil, nil, e.cfg.App.Location(), e.logger)
			bookings, err := admin.BookingsInRange(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			from, _ := time.Parse(models.DateLayout, start)
			to, _ := time.Parse(models.DateLayout, end)

			if dir == "" {
				dir = e.cfg.Exports.Path
			}
			path, err := export.SaveBookingsXLSX(dir, from, to, e.cfg.Booking.DefaultSlots, bookings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d bookings to %s\n", len(bookings), path)
			return nil
		},
	}
	c.Flags().StringVar(&start, "start", "", "first date, YYYY-MM-DD")
	c.Flags().StringVar(&end, "end", "", "last date, YYYY-MM-DD")
	c.Flags().StringVar(&dir, "dir", "", "output directory (default exports.path)")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func newAvailabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Edit the booking calendar",
	}
	cmd.AddCommand(newAvailabilitySetCmd())
	return cmd
}

func newAvailabilitySetCmd() *cobra.Command {
	var (
		dates  []string
		closed bool
		slots  string
	)

	c := &cobra.Command{
		Use:   "set",
		Short: "Open or close dates; --slots replaces the slot list of a single date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if slots != "" && len(dates) != 1 {
				return errors.New("--slots needs exactly one --date")
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			availability := service.NewAvailabilityService(e.db, nil, e.cfg.Booking.DefaultSlots, e.logger)
			if slots == "" {
				if err := availability.SetBatchAvailability(cmd.Context(), dates, !closed); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %d dates\n", len(dates))
				return nil
			}

			var timeSlots []models.TimeSlot
			for _, t := range strings.Split(slots, ",") {
				timeSlots = append(timeSlots, models.TimeSlot{Time: strings.TrimSpace(t), IsAvailable: true})
			}
			day, err := availability.SetAvailability(cmd.Context(), dates[0], !closed, timeSlots)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: available=%t, %d slots\n", day.Date, day.IsAvailable, len(day.Slots))
			return nil
		},
	}
	c.Flags().StringSliceVar(&dates, "date", nil, "date to update, YYYY-MM-DD (repeatable)")
	c.Flags().BoolVar(&closed, "closed", false, "close the dates instead of opening them")
	c.Flags().StringVar(&slots, "slots", "", "comma-separated HH:MM slots")
	_ = c.MarkFlagRequired("date")
	return c
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a database backup now and prune old ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			cfg := e.cfg.Backup
			if cfg.StoragePath == "" {
				cfg.StoragePath = "backups"
			}
			backups := database.NewBackupService(e.cfg.Database.Path, cfg, e.logger)
			path, err := backups.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			removed := backups.CleanupOldBackups()
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s, %d old backups removed\n", path, removed)
			return nil
		},
	}
}

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the notification outbox",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "requeue",
		Short: "Give every failed task one more attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			outbox := worker.NewOutboxWorker(e.db, nil, worker.RetryPolicy{}, e.logger)
			n, err := outbox.RequeueFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d tasks\n", n)
			return nil
		},
	})
	return cmd
}

func newSheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Maintain the Google Sheets mirror",
	}
	cmd.AddCommand(newSheetsResyncCmd())
	cmd.AddCommand(newSheetsScheduleCmd())
	return cmd
}

func openSheets(cmd *cobra.Command, e *env) (*google.SheetsService, error) {
	if e.cfg.Google.GoogleCredentialsFile == "" || e.cfg.Google.BookingSpreadSheetID == "" {
		return nil, errors.New("google.credentials_file and google.bookings_spreadsheet_id must be set")
	}
	return google.NewSheetsService(cmd.Context(), e.cfg.Google.GoogleCredentialsFile, e.cfg.Google.BookingSpreadSheetID)
}

func newSheetsResyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Rewrite the Bookings sheet from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			sheets, err := openSheets(cmd, e)
			if err != nil {
				return err
			}
			bookings, err := e.db.ListBookings(cmd.Context(), "")
			if err != nil {
				return err
			}
			if err := sheets.ReplaceBookingsSheet(cmd.Context(), bookings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mirrored %d bookings\n", len(bookings))
			return nil
		},
	}
}

func newSheetsScheduleCmd() *cobra.Command {
	var start, end string

	c := &cobra.Command{
		Use:   "schedule",
		Short: "Redraw the Schedule sheet for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			admin := service.NewBookingAdmin(e.db, nil, nil, e.cfg.App.Location(), e.logger)
			bookings, err := admin.BookingsInRange(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			availability := service.NewAvailabilityService(e.db, nil, e.cfg.Booking.DefaultSlots, e.logger)
			days, err := availability.GetAvailabilityRange(cmd.Context(), start, end)
			if err != nil {
				return err
			}

			sheets, err := openSheets(cmd, e)
			if err != nil {
				return err
			}
			from, _ := time.Parse(models.DateLayout, start)
			to, _ := time.Parse(models.DateLayout, end)
			if err := sheets.UpdateScheduleSheet(cmd.Context(), from, to, e.cfg.Booking.DefaultSlots, days, bookings); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schedule sheet updated")
			return nil
		},
	}
	c.Flags().StringVar(&start, "start", "", "first date, YYYY-MM-DD")
	c.Flags().StringVar(&end, "end", "", "last date, YYYY-MM-DD")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

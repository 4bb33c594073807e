package main

import (
	"context"
	"fmt"
	"io"

	"reservo/internal/config"
	"reservo/internal/database"
	"reservo/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reservo-admin",
		Short:         "Operator tooling for the studio booking backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config.yaml")

	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newAvailabilityCmd())
	root.AddCommand(newBackupCmd())
	root.AddCommand(newOutboxCmd())
	root.AddCommand(newSheetsCmd())

	return root
}

// env is what most commands need: config, a logger and the database.
type env struct {
	cfg    *config.Config
	logger *zerolog.Logger
	db     *database.DB
	closer io.Closer
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logging.Component(logger, "admin-cli")

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}
	if len(cfg.Services) > 0 {
		if err := db.SyncServices(ctx, cfg.Services); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &env{cfg: cfg, logger: logger, db: db, closer: closer}, nil
}

func (e *env) Close() {
	e.db.Close()
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

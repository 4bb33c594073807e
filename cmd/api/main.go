package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reservo/internal/api"
	"reservo/internal/auth"
	"reservo/internal/config"
	"reservo/internal/database"
	"reservo/internal/domain"
	"reservo/internal/events"
	"reservo/internal/google"
	"reservo/internal/logging"
	"reservo/internal/metrics"
	"reservo/internal/models"
	"reservo/internal/notify"
	"reservo/internal/repository"
	"reservo/internal/service"
	"reservo/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	services, err := loadServices(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, services, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewEventBus()
	if detach := initAMQP(cfg, bus, logger); detach != nil {
		defer detach()
	}

	outbox, err := initOutbox(ctx, cfg, db, redisClient, logger)
	if err != nil {
		return err
	}
	go outbox.Start(ctx)

	svc, err := buildServices(cfg, db, bus, outbox, redisClient, logger)
	if err != nil {
		return err
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logging.Component(logger, "backup"))
		go func() {
			if err := backupService.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("backup service stopped")
			}
		}()
	}

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, cfg, svc, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

// loadServices reads the catalogue file. Without the file the inline config catalogue is used.
func loadServices(cfg *config.Config, logger *zerolog.Logger) ([]models.Service, error) {
	servicesPath := os.Getenv("SERVICES_PATH")
	if servicesPath == "" {
		servicesPath = "configs/services.yaml"
	}
	data, err := os.ReadFile(servicesPath)
	if errors.Is(err, fs.ErrNotExist) && len(cfg.Services) > 0 {
		return cfg.Services, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("read services")
		return nil, err
	}

	var servicesConfig struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &servicesConfig); err != nil {
		logger.Error().Err(err).Str("services_path", servicesPath).Msg("parse services")
		return nil, err
	}
	if err := config.ValidateServices(servicesConfig.Services); err != nil {
		return nil, fmt.Errorf("services catalogue: %w", err)
	}
	return servicesConfig.Services, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, services []models.Service, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	if err := db.SyncServices(ctx, services); err != nil {
		db.Close()
		return nil, fmt.Errorf("sync services: %w", err)
	}
	logger.Info().Int("services", len(services)).Msg("service catalogue synced")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initAMQP mirrors bus events to RabbitMQ when configured. The returned func detaches and closes the publisher.
func initAMQP(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) func() {
	if cfg.AMQP.URL == "" {
		return nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logging.Component(logger, "amqp"))
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq unavailable, booking events stay local")
		return nil
	}
	detach := publisher.Attach(bus)
	logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("booking events forwarded to rabbitmq")
	return func() {
		detach()
		_ = publisher.Close()
	}
}

func initOutbox(ctx context.Context, cfg *config.Config, db *database.DB, redisClient *redis.Client, logger *zerolog.Logger) (*worker.OutboxWorker, error) {
	outbox := worker.NewOutboxWorker(db, redisClient, worker.RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
		Jitter:        0.2,
	}, logging.Component(logger, "outbox"))

	composer, err := notify.NewComposer(cfg.Notifications.BusinessName, cfg.Notifications.From, cfg.Notifications.OperatorEmail)
	if err != nil {
		return nil, fmt.Errorf("notification templates: %w", err)
	}
	notifyLogger := logging.Component(logger, "notify")

	var channels []notify.Channel
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegramSender(cfg.Notifications.Telegram, composer)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, channel disabled")
		} else {
			channels = append(channels, tg)
		}
	}
	if cfg.Notifications.Twilio.AccountSID != "" && cfg.Notifications.Twilio.AuthToken != "" {
		channels = append(channels, notify.NewTwilioSender(cfg.Notifications.Twilio, composer))
	}
	dispatcher := notify.NewDispatcher(composer, notify.NewLogSender(notifyLogger), notifyLogger, channels...)
	outbox.Handle(models.TaskNotifyBooking, worker.NotifyHandler(dispatcher, db))

	if sheets := initGoogleSheets(ctx, cfg, logger); sheets != nil {
		outbox.Handle(models.TaskSheetsUpsert, worker.SheetsUpsertHandler(sheets))
		outbox.Handle(models.TaskSheetsStatus, worker.SheetsStatusHandler(sheets))
	}
	return outbox, nil
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("sheets row cache warm-up failed")
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func buildServices(
	cfg *config.Config,
	db *database.DB,
	bus *events.EventBus,
	tasks domain.TaskQueue,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (api.Services, error) {
	loc := cfg.App.Location()
	serviceLogger := logging.Component(logger, "service")

	coordinator := service.NewReservationCoordinator(db, bus, tasks, service.ReservationConfig{
		DefaultSlots:   cfg.Booking.DefaultSlots,
		MaxBookingDays: cfg.Booking.MaxBookingDays,
		Location:       loc,
	}, serviceLogger)
	availability := service.NewAvailabilityService(db, bus, cfg.Booking.DefaultSlots, serviceLogger)
	admin := service.NewBookingAdmin(db, bus, tasks, loc, serviceLogger)
	payments := service.NewPaymentService(db, bus, cfg.Booking.DepositPercent, serviceLogger)

	flows := initFlowRepository(cfg, redisClient, logger)
	flow := service.NewBookingFlow(flows, db, availability, coordinator, payments, cfg.Booking.DepositPercent, serviceLogger)

	authenticator, err := auth.NewAuthenticator(cfg.Admin, auth.NewConfigIdentityProvider(cfg.Admin.Accounts), logging.Component(logger, "auth"))
	if err != nil {
		return api.Services{}, fmt.Errorf("init admin auth: %w", err)
	}
	if len(cfg.Admin.Accounts) == 0 {
		logger.Warn().Msg("no admin accounts configured, dashboard sign-in is impossible")
	}

	return api.Services{
		Reservations:  coordinator,
		Catalog:       db,
		Availability:  availability,
		Admin:         admin,
		Flow:          flow,
		Auth:          authenticator,
		Limits:        flows,
		ReserveLimit:  cfg.Booking.ReserveRateLimit,
		ReserveWindow: cfg.Booking.ReserveRateWindow,
		SlotTimes:     cfg.Booking.DefaultSlots,
	}, nil
}

// initFlowRepository keeps wizard state in Redis and falls back to memory when Redis is absent or fails.
func initFlowRepository(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.FlowRepository {
	fallback := repository.NewMemoryFlowRepository(cfg.Booking.FlowTTL)
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisFlowRepository(redisClient, cfg.Booking.FlowTTL)
	return repository.NewFailoverFlowRepository(primary, fallback, logging.Component(logger, "flow-store"))
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(ctx context.Context, cfg *config.Config, svc api.Services, logger *zerolog.Logger) error {
	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		var err error
		grpcServer, err = api.NewGRPCServer(cfg.API, svc, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	httpServer := api.NewHTTPServer(cfg.API, svc, logger)
	if cfg.API.HTTP.Enabled {
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	logger.Info().
		Bool("grpc", cfg.API.GRPC.Enabled).
		Int("grpc_port", cfg.API.GRPC.Port).
		Bool("http", cfg.API.HTTP.Enabled).
		Int("http_port", cfg.API.HTTP.Port).
		Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

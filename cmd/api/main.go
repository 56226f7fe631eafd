package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roombooking/internal/api"
	"roombooking/internal/config"
	"roombooking/internal/database"
	"roombooking/internal/domain"
	"roombooking/internal/events"
	"roombooking/internal/google"
	"roombooking/internal/logging"
	"roombooking/internal/metrics"
	"roombooking/internal/notify"
	"roombooking/internal/repository"
	"roombooking/internal/service"
	"roombooking/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	dispatcher := worker.NewDispatcher(cfg.Dispatcher, &logger)
	if redisClient != nil {
		dispatcher.WithDeadLetter(redisClient, "")
	}
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	directory := service.NewDirectory(db)
	bus := initEventBus(&logger)
	notifiers := []domain.Notifier{bus}
	if tg := initTelegram(cfg, directory, &logger); tg != nil {
		notifiers = append(notifiers, tg)
	}
	if sheets := initGoogleSheets(ctx, cfg, &logger); sheets != nil {
		notifiers = append(notifiers, sheets)
	}

	audit := service.NewAuditService(db, dispatcher, &logger)
	svc := api.Services{
		Bookings: service.NewBookingService(db, directory, audit, dispatcher, notifiers, &logger),
		Rules:    service.NewRuleService(db, db, directory, audit, &logger),
		Recurring: service.NewRecurringProcessor(
			db, db, directory, audit, dispatcher, notifiers,
			initLock(redisClient, &logger), bus, cfg.Recurring, &logger,
		),
		Reports: service.NewReportService(db, directory, cfg.Exports.Path, &logger),
		Audit:   audit,
	}

	go svc.Recurring.Start(ctx)
	go database.NewBackupService(db, cfg.Database.Path, cfg.Backup, &logger).Start(ctx)

	startMetrics(ctx, cfg, &logger)

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, running scheduler only")
		<-ctx.Done()
		return nil
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}
	httpServer := api.NewHTTPServer(cfg.API, svc, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := db.SyncDirectory(ctx, cfg.Rooms, cfg.Users); err != nil {
		db.Close()
		return nil, fmt.Errorf("sync directory: %w", err)
	}
	logger.Info().Int("rooms", len(cfg.Rooms)).Int("users", len(cfg.Users)).Msg("directory synced")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initLock prefers the shared Redis lease and falls back to an in-process
// lock while Redis is unreachable.
func initLock(client *redis.Client, logger *zerolog.Logger) domain.Lock {
	if client == nil {
		return repository.NewMemoryLock()
	}
	return repository.NewFailoverLock(repository.NewRedisLock(client), repository.NewMemoryLock(), logger)
}

func initEventBus(logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	l := logger.With().Str("component", "events").Logger()
	logEvent := func(e *events.Event) error {
		l.Debug().Str("type", e.Type).RawJSON("payload", e.Payload).Msg("event published")
		return nil
	}
	for _, t := range []string{
		events.EventBookingCreated,
		events.EventBookingApproved,
		events.EventBookingRejected,
		events.EventBookingCancelled,
		events.EventRecurringRunCompleted,
	} {
		bus.Subscribe(t, logEvent)
	}
	return bus
}

func initTelegram(cfg *config.Config, directory domain.Directory, logger *zerolog.Logger) *notify.TelegramNotifier {
	if cfg.Telegram.BotToken == "" {
		return nil
	}

	bot, err := notify.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram notifications")
		return nil
	}

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram connected")
	return notify.NewTelegramNotifier(bot, directory, cfg.Telegram.AdminChatID, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsMirror {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	mirror, err := google.NewSheetsMirror(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID, cfg.Google.SheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := mirror.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets header check failed, continuing without sheets")
		return nil
	}
	if err := mirror.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	logger.Info().Str("sheet", cfg.Google.SheetName).Msg("google sheets connected")
	return mirror
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

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
		grpcServer.SetServing(true)
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.SetServing(false)
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

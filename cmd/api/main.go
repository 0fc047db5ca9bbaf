package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adityar2309/Vehicle-Parking-App/internal/api"
	"github.com/adityar2309/Vehicle-Parking-App/internal/config"
	"github.com/adityar2309/Vehicle-Parking-App/internal/database"
	"github.com/adityar2309/Vehicle-Parking-App/internal/domain"
	"github.com/adityar2309/Vehicle-Parking-App/internal/events"
	"github.com/adityar2309/Vehicle-Parking-App/internal/google"
	"github.com/adityar2309/Vehicle-Parking-App/internal/logging"
	"github.com/adityar2309/Vehicle-Parking-App/internal/metrics"
	"github.com/adityar2309/Vehicle-Parking-App/internal/models"
	"github.com/adityar2309/Vehicle-Parking-App/internal/notify"
	"github.com/adityar2309/Vehicle-Parking-App/internal/repository"
	"github.com/adityar2309/Vehicle-Parking-App/internal/scheduler"
	"github.com/adityar2309/Vehicle-Parking-App/internal/service"
	"github.com/adityar2309/Vehicle-Parking-App/internal/worker"

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
	cfg, lots, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, lots, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, viewCache := initViewCache(ctx, cfg, &logger)
	defer func() { _ = repository.Close(redisClient) }()

	notifier := initNotifier(cfg, &logger)
	eventBus := events.NewEventBus()

	retention := time.Duration(cfg.Exports.RetentionHours) * time.Hour
	exportWorker := worker.NewExportWorker(
		db, eventBus, notifier,
		cfg.Exports.Path, retention, cfg.Exports.QueueSize,
		worker.DefaultRetryPolicy(),
		nil,
	)
	go exportWorker.Start(ctx)

	reservationService := service.NewReservationService(db, viewCache, eventBus, &logger)
	exportService := service.NewExportService(db, exportWorker, eventBus, cfg.Exports.Format, &logger)
	userService := service.NewUserService(db, &logger)

	sheetsService := initGoogleSheets(ctx, cfg, &logger)

	sweepInterval, err := time.ParseDuration(cfg.Scheduler.SweepInterval)
	if err != nil {
		logger.Warn().Err(err).Str("value", cfg.Scheduler.SweepInterval).Msg("invalid sweep interval, using 1h")
		sweepInterval = time.Hour
	}
	var sheetsReporter scheduler.SheetsReporter
	if sheetsService != nil {
		sheetsReporter = sheetsService
	}
	chores := scheduler.New(
		db, exportService, userService, notifier, sheetsReporter,
		sweepInterval, cfg.Scheduler.ReminderTime, cfg.Scheduler.SheetsReportTime,
		&logger,
	)
	go chores.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, reservationService, exportService, userService)
	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, []models.Lot, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	lots, err := loadLots(cfg, &logger)
	if err != nil {
		return nil, nil, zerolog.Logger{}, closer, err
	}

	return cfg, lots, logger, closer, nil
}

// loadLots reads the lot registry from LOTS_PATH, falling back to the
// lots section of the main config.
func loadLots(cfg *config.Config, logger *zerolog.Logger) ([]models.Lot, error) {
	lotsPath := os.Getenv("LOTS_PATH")
	if lotsPath == "" {
		lotsPath = "configs/lots.yaml"
	}

	lotsData, err := os.ReadFile(lotsPath)
	if err != nil {
		if len(cfg.Lots) > 0 {
			return cfg.Lots, nil
		}
		logger.Error().Err(err).Msgf("Ошибка чтения %s", lotsPath)
		return nil, err
	}

	var lotsConfig struct {
		Lots []models.Lot `yaml:"lots"`
	}
	if err := yaml.Unmarshal(lotsData, &lotsConfig); err != nil {
		logger.Error().Err(err).Msg("Ошибка парсинга lots.yaml")
		return nil, err
	}

	if err := config.ValidateLots(lotsConfig.Lots); err != nil {
		logger.Error().Err(err).Msg("Lots validation failed")
		return nil, err
	}

	return lotsConfig.Lots, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

func initDatabase(cfg *config.Config, lots []models.Lot, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return nil, err
	}

	if err := db.SetLots(context.Background(), lots); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации парковок")
		db.Close()
		return nil, err
	}

	// Processing-задачи от прошлого запуска уже никто не доделает
	orphaned, err := db.FailOrphanedJobs(context.Background())
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка обработки осиротевших задач экспорта")
	} else if orphaned > 0 {
		logger.Warn().Int64("count", orphaned).Msg("Orphaned export jobs marked as failed")
	}

	return db, nil
}

func initViewCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.ViewCache) {
	fallback := repository.NewMemoryViewCache()

	if cfg.Redis.Address == "" {
		logger.Info().Msg("Redis not configured, using in-memory view cache")
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}

	primary := repository.NewRedisViewCache(redisClient)
	return redisClient, repository.NewFailoverViewCache(primary, fallback, logger)
}

func initNotifier(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if !cfg.Notify.Enabled || cfg.Notify.BotToken == "" {
		return notify.NopNotifier{}
	}

	notifier, err := notify.NewTelegramNotifier(cfg.Notify.BotToken, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram notifier init failed, notifications disabled")
		return notify.NopNotifier{}
	}
	return notifier
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if !cfg.Google.Enabled || cfg.Google.GoogleCredentialsFile == "" || cfg.Google.ReportSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.ReportSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("Google Sheets connection test failed")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
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

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

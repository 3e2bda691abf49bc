package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/littlesprouts/admissions-api/internal/config"
	"github.com/littlesprouts/admissions-api/internal/database"
	"github.com/littlesprouts/admissions-api/internal/handler"
	"github.com/littlesprouts/admissions-api/internal/middleware"
	"github.com/littlesprouts/admissions-api/internal/models"
	"github.com/littlesprouts/admissions-api/internal/repository"
	"github.com/littlesprouts/admissions-api/internal/router"
	"github.com/littlesprouts/admissions-api/internal/service"
	"github.com/littlesprouts/admissions-api/pkg/storage"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "admissions-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := db.AutoMigrate(&models.Application{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName))
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, events limited to redis")
		}
	}

	storageClient, err := storage.New(storage.Config{
		CloudName:       cfg.CloudinaryCloudName,
		APIKey:          cfg.CloudinaryAPIKey,
		APISecret:       cfg.CloudinaryAPISecret,
		ImagesFolder:    cfg.ImagesFolder,
		DocumentsFolder: cfg.DocumentsFolder,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file storage")
	}

	validate := validator.New()
	appRepo := repository.NewApplicationRepository(db)

	notifier := service.NewEventNotifier(redisClient, natsConn, cfg.EventChannel, logger)
	submissions := service.NewSubmissionService(appRepo, storageClient, validate, notifier, cfg.UploadMaxMB, logger)
	wizard := service.NewWizardService(redisClient, submissions, cfg.WizardSessionTTL, logger)
	receipts := service.NewReceiptService(nil, logger)
	admin := service.NewAdminApplicationService(appRepo, submissions, validate, notifier, redisClient, cfg.StatsCacheTTL, logger)

	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
		// Room for all five document slots at the per-file cap plus form overhead.
		BodyLimit:    (cfg.UploadMaxMB*6 + 4) * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, router.Config{
		Health:           handler.NewHealthHandler(db, redisClient),
		Public:           handler.NewApplicationHandler(submissions, receipts, logger),
		Wizard:           handler.NewWizardHandler(wizard, receipts, logger),
		Admin:            handler.NewAdminApplicationHandler(admin, submissions, receipts, logger),
		JWTSecret:        cfg.JWTSecret,
		SubmitRateLimit:  cfg.PublicSubmitRateLimit,
		SubmitRateWindow: cfg.PublicSubmitRateWindow,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()
	logger.Info().Str("address", cfg.HTTPAddress()).Msg("admissions api listening")

	waitForShutdown(app, natsConn, logger)
}

func waitForShutdown(app *fiber.App, natsConn *nats.Conn, logger zerolog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if natsConn != nil {
		natsConn.Close()
	}
}

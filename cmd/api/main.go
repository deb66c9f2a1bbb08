package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/certdesk-go-api/internal/certificate"
	"github.com/noah-isme/certdesk-go-api/internal/config"
	"github.com/noah-isme/certdesk-go-api/internal/database"
	"github.com/noah-isme/certdesk-go-api/internal/handler"
	"github.com/noah-isme/certdesk-go-api/internal/middleware"
	"github.com/noah-isme/certdesk-go-api/internal/repository"
	"github.com/noah-isme/certdesk-go-api/internal/router"
	"github.com/noah-isme/certdesk-go-api/internal/service"
	cloud "github.com/noah-isme/certdesk-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := context.Background()

	db, err := database.Connect(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	publisher := service.NewNoopPublisher()
	if cfg.NATSURL != "" {
		var conn *nats.Conn
		conn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer conn.Drain()
		publisher = service.NewNATSPublisher(conn, cfg.NATSSubject)
	}

	storage := service.NewLocalStorage(cfg.PDFDir)
	if cfg.CloudinaryEnabled() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = service.NewCloudinaryStorage(uploader)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	workbookRepo, err := repository.NewWorkbookRepository(cfg.WorkbookPath)
	if err != nil {
		log.Fatalf("failed to open workbook: %v", err)
	}
	certificateRepo := repository.NewCertificateRepository(db)

	recordService, err := service.NewRecordService(ctx, workbookRepo, validate, service.RecordServiceOptions{
		Autosave:       cfg.Autosave,
		MaxImportBytes: cfg.UploadMaxBytes,
	}, logger)
	if err != nil {
		log.Fatalf("failed to load student records: %v", err)
	}

	renderer := certificate.NewRenderer(certificate.Config{
		Institution:    cfg.Institution,
		Signatory:      cfg.Signatory,
		SignatoryTitle: cfg.SignatoryTitle,
	})

	certificateService := service.NewCertificateService(service.CertificateServiceDeps{
		Records:   recordService,
		Renderer:  renderer,
		Storage:   storage,
		Repo:      certificateRepo,
		Cache:     redisClient,
		CacheTTL:  cfg.CacheTTL,
		Publisher: publisher,
		Validator: validate,
	}, logger)

	recordHandler := handler.NewRecordHandler(recordService, cfg.UploadMaxBytes, logger)
	certificateHandler := handler.NewCertificateHandler(certificateService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes) + 1024*1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: true})
	router.Register(app, cfg, router.Dependencies{
		RecordHandler:      recordHandler,
		CertificateHandler: certificateHandler,
		Auth:               middleware.AuthOptions{Secret: cfg.JWTSecret},
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, recordService, cfg.Autosave, logger)
}

// waitForShutdown stops the server on SIGINT/SIGTERM and flushes the workbook
// when autosave is on.
func waitForShutdown(app *fiber.App, records service.RecordService, autosave bool, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	flushOnShutdown(ctx, records, autosave, logger)
	logger.Info().Msg("server stopped")
}

// flushOnShutdown writes the table one last time. With autosave off, unsaved
// edits are dropped like a reload would drop them.
func flushOnShutdown(ctx context.Context, records service.RecordService, autosave bool, logger zerolog.Logger) bool {
	if !autosave {
		logger.Info().Msg("autosave disabled, unsaved workbook changes discarded")
		return false
	}
	if _, err := records.Save(ctx); err != nil {
		logger.Error().Err(err).Msg("final workbook save failed")
		return false
	}
	return true
}

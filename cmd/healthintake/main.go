package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/terraincognita07/healthintake/internal/api"
	"github.com/terraincognita07/healthintake/internal/config"
	"github.com/terraincognita07/healthintake/internal/db"
	"github.com/terraincognita07/healthintake/internal/events"
	"github.com/terraincognita07/healthintake/internal/models"
	"github.com/terraincognita07/healthintake/internal/mongostore"
	"github.com/terraincognita07/healthintake/internal/services"
	"github.com/terraincognita07/healthintake/internal/storage"
	"github.com/terraincognita07/healthintake/internal/templates"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	records, closeStore, err := openRecordStore(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	files, err := storage.NewDiskFileStore(cfg.UploadDir)
	if err != nil {
		return err
	}

	catalog, err := models.DefaultFieldCatalog()
	if err != nil {
		return err
	}

	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("close event publisher")
		}
	}()

	service := services.NewIntakeService(records, files, logger).WithEvents(publisher)
	if cfg.StrictValidation {
		service.WithStrictValidation(catalog)
	}

	handler, err := api.NewHandler(service, catalog, templates.Files, cfg.AppName, logger)
	if err != nil {
		return fmt.Errorf("handler init failed: %w", err)
	}

	accessLog := logger.WriterLevel(logrus.InfoLevel)
	defer accessLog.Close()

	app := api.NewApp(handler, api.AppConfig{
		AppName:       cfg.AppName,
		BodyLimit:     cfg.BodyLimit(),
		AllowedOrigin: cfg.AllowedOrigin,
		UploadDir:     files.Dir(),
		AccessLog:     accessLog,
	})

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.WithError(err).Error("server shutdown failed")
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":       cfg.Port,
		"store":      cfg.StoreDriver,
		"upload_dir": files.Dir(),
		"strict":     cfg.StrictValidation,
	}).Infof("%s listening on http://0.0.0.0:%s", cfg.AppName, cfg.Port)
	return app.Listen(cfg.ListenAddress())
}

// openRecordStore connects the configured document store and returns a
// function that releases it.
func openRecordStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (services.RecordRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo := mongostore.NewRecordRepository(client, cfg.MongoDatabase)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repo, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.WithError(err).Warn("disconnect mongo")
			}
		}, nil

	default:
		dsn := cfg.DBPath
		if cfg.StoreDriver == config.StorePostgres {
			dsn = cfg.DatabaseURL
		}
		database, err := db.Open(cfg.StoreDriver, dsn, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("database init failed: %w", err)
		}
		return db.NewRepositories(database).HealthRecords, func() {
			if err := db.Close(database); err != nil {
				logger.WithError(err).Warn("close database")
			}
		}, nil
	}
}

func openPublisher(cfg *config.Config, logger *logrus.Logger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, fmt.Errorf("event publisher init failed: %w", err)
	}
	return publisher, nil
}

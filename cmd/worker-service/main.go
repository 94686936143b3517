package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/thanhldev/extraction-be/internal/config"
	"github.com/thanhldev/extraction-be/internal/worker"
	"github.com/thanhldev/extraction-be/internal/worker/content"
	"github.com/thanhldev/extraction-be/internal/worker/materializer"
	"github.com/thanhldev/extraction-be/internal/worker/provider"
	"github.com/thanhldev/extraction-be/internal/worker/storage"
	"github.com/thanhldev/extraction-be/internal/worker/supervisor"
	"github.com/thanhldev/extraction-be/shared/logger"
	"github.com/thanhldev/extraction-be/shared/objectstore"
	"github.com/thanhldev/extraction-be/shared/postgresql"
	"github.com/thanhldev/extraction-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := objectstore.NewGCSStore(ctx, &objectstore.GCSConfig{
		Bucket:        cfg.ObjectStorage.Bucket,
		KeyPrefix:     cfg.ObjectStorage.KeyPrefix,
		PublicBaseURL: cfg.ObjectStorage.PublicBaseURL,
		EmulatorHost:  cfg.ObjectStorage.EmulatorHost,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	appLogger.Info("Object storage initialized",
		slog.String("bucket", cfg.ObjectStorage.Bucket),
	)

	workerInstance := buildWorker(cfg, appLogger.Logger, dbClient, rabbitClient, store)

	stopped := make(chan error, 1)
	go func() {
		stopped <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-stopped:
		if err != nil {
			appLogger.Error("Worker error",
				slog.Any("error", err),
			)
			return err
		}
		appLogger.Warn("Worker stopped unexpectedly")
		return nil
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Extraction.ShutdownTimeout)
	defer shutdownCancel()

	// Start drains active jobs via the supervisor before returning.
	select {
	case <-stopped:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// buildWorker wires the job pipeline: storage, provider client, materializer,
// insertion engine, supervisor and runner.
func buildWorker(cfg *config.Config, log *slog.Logger, dbClient *postgresql.Client, rabbitClient *rabbitmq.Client, store objectstore.Store) *worker.Worker {
	jobStore := storage.NewStorage(dbClient.GetDB(), log)

	providerClient := provider.NewClient(&provider.Config{
		BaseURL:        cfg.Provider.BaseURL,
		APIKey:         cfg.Provider.APIKey,
		RequestTimeout: cfg.Provider.RequestTimeout,
	}, log)

	resultMaterializer := materializer.New(store, cfg.Extraction.MaxArchiveBytes, log)
	engine := content.NewEngine(jobStore, jobStore, log)
	sup := supervisor.New(cfg.Extraction.HandleRetention, log)

	runner := worker.NewRunner(
		jobStore,
		jobStore,
		jobStore,
		providerClient,
		resultMaterializer,
		engine,
		sup,
		&worker.RunnerConfig{
			PollInterval: cfg.Extraction.PollInterval,
			MaxWait:      cfg.Extraction.MaxWait,
		},
		log,
	)

	return worker.NewWorker(&worker.Config{
		Logger:         log,
		RabbitClient:   rabbitClient,
		Runner:         runner,
		Supervisor:     sup,
		Maintenance:    jobStore,
		PrefetchCount:  cfg.RabbitMQ.Consumer.PrefetchCount,
		ReaperInterval: cfg.Extraction.ReaperInterval,
		SweepInterval:  cfg.Extraction.SweepInterval,
		RowRetention:   cfg.Extraction.RowRetention,
	})
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

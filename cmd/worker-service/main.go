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

	apistorage "github.com/cuongbtq/pickup-be/internal/api/storage"
	"github.com/cuongbtq/pickup-be/internal/config"
	"github.com/cuongbtq/pickup-be/internal/worker"
	"github.com/cuongbtq/pickup-be/internal/worker/storage"
	"github.com/cuongbtq/pickup-be/shared/logger"
	"github.com/cuongbtq/pickup-be/shared/postgresql"
	"github.com/cuongbtq/pickup-be/shared/rabbitmq"
	"github.com/joho/godotenv"
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

	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := dbClient.Migrate(ctx, apistorage.Schema(apistorage.Tables{
			Jobs:          cfg.Tables.Jobs,
			Organisations: cfg.Tables.Organisations,
			Users:         cfg.Tables.Users,
			JobEvents:     cfg.Tables.JobEvents,
		}))
		cancel()
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	workerLogger := appLogger.Component("worker")
	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        workerLogger,
		Broker:        rabbitClient,
		Store:         storage.NewStorage(dbClient.GetDB(), cfg.Tables.JobEvents, workerLogger),
		QueueName:     cfg.RabbitMQ.Queue.Name,
		ConsumerTag:   cfg.RabbitMQ.Consumer.Tag,
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-done:
		if err != nil {
			appLogger.Error("Worker error", slog.Any("error", err))
			return err
		}
		appLogger.Warn("Worker exited: delivery channel closed")
		return nil
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		appLogger.Info("Worker stopped gracefully")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
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
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client. The worker only consumes, so
// publish settings are left at their defaults.
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		VHost:    cfg.VHost,
		Exchange: rabbitmq.Exchange{
			Name:       cfg.Exchange.Name,
			Type:       cfg.Exchange.Type,
			Durable:    cfg.Exchange.Durable,
			AutoDelete: cfg.Exchange.AutoDelete,
		},
		Queue: rabbitmq.Queue{
			Name:       cfg.Queue.Name,
			Durable:    cfg.Queue.Durable,
			AutoDelete: cfg.Queue.AutoDelete,
			Exclusive:  cfg.Queue.Exclusive,
		},
		RoutingKey:        cfg.RoutingKey,
		Heartbeat:         cfg.Connection.Heartbeat,
		ConnectionTimeout: cfg.Connection.ConnectionTimeout,
		Connect: rabbitmq.RetryPolicy{
			Attempts:   cfg.Connection.RetryAttempts,
			Interval:   cfg.Connection.RetryInterval,
			Multiplier: 1,
		},
	}, logger)
}

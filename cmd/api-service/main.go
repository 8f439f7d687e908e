package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/auth"
	"github.com/cuongbtq/pickup-be/internal/api/handler"
	"github.com/cuongbtq/pickup-be/internal/api/router"
	"github.com/cuongbtq/pickup-be/internal/api/service"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
	"github.com/cuongbtq/pickup-be/internal/config"
	"github.com/cuongbtq/pickup-be/internal/events"
	"github.com/cuongbtq/pickup-be/shared/logger"
	"github.com/cuongbtq/pickup-be/shared/postgresql"
	"github.com/cuongbtq/pickup-be/shared/rabbitmq"
	"github.com/gin-gonic/gin"
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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPI(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	tables := storage.Tables{
		Jobs:          cfg.Tables.Jobs,
		Organisations: cfg.Tables.Organisations,
		Users:         cfg.Tables.Users,
		JobEvents:     cfg.Tables.JobEvents,
	}

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := dbClient.Migrate(ctx, storage.Schema(tables))
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

	store := storage.NewStorage(dbClient.GetDB(), tables)
	jwt := auth.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)
	publisher := events.NewPublisher(rabbitClient, appLogger.Component("events"))

	serviceLogger := appLogger.Component("service")
	authService := service.NewAuthService(store, jwt, hasher, serviceLogger)

	if admin := cfg.Auth.BootstrapAdmin; admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := authService.Bootstrap(ctx, admin.Name, admin.Email, admin.Password)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	deps := &handler.Dependencies{
		Logger:        appLogger.Component("http"),
		Health:        readiness{db: dbClient, broker: rabbitClient},
		Jobs:          service.NewJobService(store, store, publisher, serviceLogger),
		Organisations: service.NewOrganisationService(store, serviceLogger),
		Users:         service.NewUserService(store, hasher, serviceLogger),
		Auth:          authService,
	}

	r := initRouter(cfg, deps, auth.RequireAuth(jwt, store, appLogger.Component("auth")))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		appLogger.Info("Shutting down server...", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	dbClient.LogStats()
	appLogger.Info("Server shutdown complete")
	return nil
}

// readiness reports the API healthy only while both backends are reachable
type readiness struct {
	db     *postgresql.Client
	broker *rabbitmq.Client
}

func (r readiness) HealthCheck(ctx context.Context) error {
	if err := r.db.HealthCheck(ctx); err != nil {
		return err
	}
	if !r.broker.IsConnected() {
		return errors.New("rabbitmq connection lost")
	}
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

// initRabbitMQ initializes the RabbitMQ client
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
		// retry_attempts excludes the first try
		Publish: rabbitmq.RetryPolicy{
			Attempts:   cfg.Publish.RetryAttempts + 1,
			Interval:   cfg.Publish.RetryInterval,
			Multiplier: cfg.Publish.BackoffMultiplier,
		},
	}, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies, authn gin.HandlerFunc) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps, authn, router.Options{
		ServiceName:    cfg.App.Name,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/handler"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/router"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/api/session"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/audit"
	"github.com/cuongbtq/legacyjobs-dashboard/internal/config"
	"github.com/cuongbtq/legacyjobs-dashboard/shared/logger"
	"github.com/cuongbtq/legacyjobs-dashboard/shared/rabbitmq"
	"github.com/cuongbtq/legacyjobs-dashboard/shared/sqldb"
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

	// Parse command-line flags
	defaultConfigPath := os.Getenv("DASHBOARD_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/dashboard-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting dashboard service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	provider := initProvider(&cfg.Database, appLogger.Logger)
	sessions := session.NewStore(cfg.Dashboard.SessionTTL)

	// The audit trail is optional; a broker outage must not keep operators out
	var rabbitClient *rabbitmq.Client
	var publisher audit.Publisher
	if cfg.Audit.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.Audit, appLogger.Logger)
		if err != nil {
			appLogger.Warn("Audit trail disabled", slog.Any("error", err))
		} else {
			publisher = rabbitClient
			appLogger.Info("RabbitMQ connection established")
		}
	}
	recorder := audit.NewRecorder(publisher, cfg.App.Name, appLogger.Logger)

	h := handler.New(&handler.Dependencies{
		Logger:    appLogger.Logger,
		Connector: provider,
		Sessions:  sessions,
		Audit:     recorder,
		Settings:  handlerSettings(cfg),
	})

	// Initialize router
	r := initRouter(cfg.App.Environment, appLogger.Logger, h)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
		slog.Any("drivers", provider.Drivers()),
	)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweepSessions(sweepCtx, h, cfg.Dashboard.SweepInterval)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Dashboard service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		stopSweep()
		if err := provider.Close(); err != nil {
			appLogger.Error("Failed to close database sessions", slog.Any("error", err))
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
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

// initProvider creates the per-credentials connection provider
func initProvider(cfg *config.DatabaseConfig, logger *slog.Logger) *sqldb.Provider {
	return sqldb.NewProvider(&sqldb.Config{
		Drivers:        cfg.Drivers,
		DefaultPort:    cfg.Port,
		ConnectTimeout: cfg.ConnectTimeout,
	}, logger)
}

// initRabbitMQ initializes the RabbitMQ client used by the audit trail
func initRabbitMQ(cfg *config.AuditConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
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
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

func handlerSettings(cfg *config.Config) handler.Settings {
	return handler.Settings{
		Title:           cfg.App.Name,
		PageSizes:       cfg.Dashboard.PageSizes,
		DefaultPageSize: cfg.Dashboard.DefaultPageSize,
		Platforms:       cfg.Dashboard.Platforms,
		DefaultPlatform: cfg.Dashboard.DefaultPlatform,
		WindowDays:      cfg.Dashboard.WindowDays,
		SecureCookies:   cfg.Server.SecureCookies,
		Login: handler.LoginDefaults{
			Server:    cfg.Database.DefaultServer,
			Database:  cfg.Database.DefaultDatabase,
			Encrypt:   cfg.Database.DefaultEncrypt,
			TrustCert: cfg.Database.DefaultTrustCert,
		},
	}
}

// sweepSessions expires idle sessions until ctx is done
func sweepSessions(ctx context.Context, h *handler.Handler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.SweepSessions()
		}
	}
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, logger *slog.Logger, h *handler.Handler) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(logger, h)
}

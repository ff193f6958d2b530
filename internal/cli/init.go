// Package cli holds the entrate-cli commands and the start-up helpers
// shared by cmd/entrate, cmd/entrate-scheduler and cmd/entrate-sync.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"entrate/internal/amqp"
	"entrate/internal/config"
	"entrate/internal/log"
	"entrate/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Format:    os.Getenv("LOG_FORMAT"),
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the repository at dbPath or exits the process.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	logger = logger.WithComponent(log.ComponentStorage)
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	logger.Info("SQLite repository ready", log.FieldOperation, log.OpStartup, "path", dbPath)
	return repo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}

// ConnectAMQP dials the broker and declares both queues. It returns nil
// when messaging is disabled or the broker is unreachable; callers then run
// on their periodic loops alone.
func ConnectAMQP(logger *log.Logger, cfg *config.Config) *amqp.Client {
	logger = logger.WithComponent(log.ComponentAMQP)
	if !cfg.AMQPEnabled() {
		logger.Info("AMQP disabled - relying on periodic runs")
		return nil
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without messaging", log.FieldError, err)
		return nil
	}
	for queue, key := range map[string]string{
		cfg.AMQPSourceQueue: amqp.RoutingSourceChanged,
		cfg.AMQPRecordQueue: amqp.RoutingRecordSync,
	} {
		if err := client.DeclareQueue(queue, key); err != nil {
			logger.Warn("Failed to declare AMQP queue, continuing without messaging",
				log.FieldError, err, "queue", queue)
			client.Close()
			return nil
		}
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
	return client
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"entrate/internal/cli"
	apphttp "entrate/internal/http"
	"entrate/internal/log"
	"entrate/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Keep the interface nil when messaging is off.
	var events services.EventPublisher
	if client := cli.ConnectAMQP(logger, cfg); client != nil {
		defer client.Close()
		events = client
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Income:  services.NewIncomeService(repo, events),
		Summary: services.NewSummaryService(repo, loc, cfg.FeedHorizonDays),
		Generator: services.NewRecordGenerator(repo, events, loc, services.GeneratorConfig{
			HorizonDays:    cfg.GenerationHorizonDays,
			StaleAfterDays: cfg.StaleAfterDays,
		}),
		DB:       repo,
		Location: loc,
		Logger:   logger,
	}, apphttp.Options{})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting entrate API", "port", cfg.Port, "timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

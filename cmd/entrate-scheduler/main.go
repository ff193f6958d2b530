package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"entrate/internal/amqp"
	"entrate/internal/cli"
	"entrate/internal/log"
	"entrate/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentGenerator)
	cfg := cli.LoadAndValidateConfig(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Invalid timezone", log.FieldError, err)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client := cli.ConnectAMQP(logger, cfg)
	var events services.EventPublisher
	if client != nil {
		defer client.Close()
		events = client
	}

	generator := services.NewRecordGenerator(repo, events, loc, services.GeneratorConfig{
		HorizonDays:    cfg.GenerationHorizonDays,
		StaleAfterDays: cfg.StaleAfterDays,
	})

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	logger.Info("Starting entrate-scheduler",
		"interval", cfg.GenerationInterval,
		"horizon_days", cfg.GenerationHorizonDays,
		"timezone", loc.String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		run := func() {
			if _, err := generator.Run(ctx, time.Now()); err != nil && ctx.Err() == nil {
				logger.Error("Materialization run failed", log.FieldError, err)
			}
		}

		run()
		ticker := time.NewTicker(cfg.GenerationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				run()
			}
		}
	})

	if client != nil {
		g.Go(func() error {
			err := client.ConsumeSourceChanged(ctx, cfg.AMQPSourceQueue, func(ctx context.Context, msg *amqp.SourceChangedMessage) error {
				created, err := generator.GenerateForSourceID(ctx, msg.SourceID, time.Now())
				if err != nil {
					return err
				}
				logger.Info("Source change processed",
					log.FieldSourceID, msg.SourceID,
					log.FieldCount, created)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Scheduler stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Scheduler shutdown complete")
}

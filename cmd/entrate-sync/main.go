package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"entrate/internal/backend"
	"entrate/internal/cli"
	"entrate/internal/log"
	"entrate/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	exportCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	exporter, err := backend.NewExporter(ctx, exportCfg, logger.WithComponent(log.ComponentSheets).Logger)
	if err != nil {
		logger.Error("Failed to initialize record exporter", log.FieldError, err, "backend", exportCfg.Type)
		os.Exit(1)
	}

	client := cli.ConnectAMQP(logger, cfg)
	if client != nil {
		defer client.Close()
	}

	syncWorker := worker.NewSyncWorker(repo, exporter, cfg.SyncBatchSize)

	logger.Info("Performing startup sync check...", "backend", exportCfg.Type)
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := syncWorker.ProcessPending(ctx); err != nil && ctx.Err() == nil {
					logger.Error("Periodic sync failed", log.FieldError, err)
				}
			}
		}
	})

	if client != nil {
		g.Go(func() error {
			err := client.ConsumeRecordSync(ctx, cfg.AMQPRecordQueue, syncWorker.HandleSyncMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Sync worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Sync worker shutdown complete")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/gsolbridge/gsolbridge/service/temporal"
)

func runWorkerCommand() *cli.Command {
	return &cli.Command{
		Name:  "run-worker",
		Usage: "Start the Temporal worker that executes the bridge's periodic tasks and withdrawal workflows",
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			logger := setupLogger(os.Getenv("LOG_LEVEL"))
			d, err := buildDeps(ctx, logger, true)
			if err != nil {
				return fmt.Errorf("run-worker: %w", err)
			}
			defer d.Close()

			worker, err := temporal.NewWorker(temporal.WorkerConfig{
				TemporalHost:      d.cfg.TemporalHost,
				TemporalNamespace: d.cfg.TemporalNamespace,
				TaskQueue:         d.cfg.TemporalTaskQueue,
				Engine:            d.engine,
				Discoverer:        d.discoverer,
				RangeResolver:     d.rangeResolver,
				Classifier:        d.classifier,
				Minter:            d.minter,
				Withdraw:          d.withdraw,
				Metrics:           d.metrics,
				Logger:            logger,
			})
			if err != nil {
				return fmt.Errorf("run-worker: create temporal worker: %w", err)
			}

			workerErrors := make(chan error, 1)
			go func() { workerErrors <- worker.Start() }()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-workerErrors:
				return fmt.Errorf("temporal worker stopped: %w", err)
			case sig := <-shutdown:
				logger.Info("shutdown signal received", "signal", sig.String())
				worker.Stop()
				return nil
			}
		},
	}
}

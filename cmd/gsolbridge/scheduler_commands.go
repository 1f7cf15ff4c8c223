package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gsolbridge/gsolbridge/service/config"
	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/gsolbridge/gsolbridge/service/temporal"
)

func runSchedulerCommand() *cli.Command {
	return &cli.Command{
		Name:  "run-scheduler",
		Usage: "Create or update the Temporal schedules that trigger the bridge's four periodic tasks",
		Action: func(c *cli.Context) error {
			ctx := c.Context
			logger := setupLogger("")

			cfg := config.MustLoad()
			client, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
			if err != nil {
				return fmt.Errorf("run-scheduler: %w", err)
			}
			defer client.Close()

			intervals := map[eventlog.TaskKind]time.Duration{
				eventlog.TaskGetLatestSignature:  cfg.GetLatestSignatureInterval,
				eventlog.TaskScrapSignatureRange: cfg.ScrapSignatureRangeInterval,
				eventlog.TaskScrapSignatures:     cfg.ScrapSignaturesInterval,
				eventlog.TaskMintGSol:            cfg.MintGSolInterval,
			}

			for task, interval := range intervals {
				if err := client.EnsureTaskSchedule(ctx, task, interval); err != nil {
					return fmt.Errorf("run-scheduler: ensure schedule for %s: %w", task, err)
				}
				logger.Info("ensured task schedule", "task", task, "interval", interval)
			}

			return nil
		},
	}
}

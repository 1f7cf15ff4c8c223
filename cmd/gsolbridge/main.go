package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "gsolbridge",
		Usage: "Solana-to-ledger deposit/withdrawal bridge CLI",
		Description: `A command-line tool for running and operating the gsolbridge service.

Use this CLI to run the Temporal worker and scheduler, submit withdrawals,
and inspect the bridge's event-sourced state.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			runWorkerCommand(),
			runSchedulerCommand(),
			withdrawCommand(),
			getCouponCommand(),
			inspectStateCommand(),
			listRangesCommand(),
			replayCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

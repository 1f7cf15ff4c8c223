package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/gsolbridge/gsolbridge/service/bridgestate"
)

func inspectStateCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-state",
		Usage: "Print a summary of the bridge's current state, reconstructed by replaying the event log",
		Action: func(c *cli.Context) error {
			logger := setupLogger("")
			d, err := buildDeps(c.Context, logger, false)
			if err != nil {
				return fmt.Errorf("inspect-state: %w", err)
			}
			defer d.Close()

			d.engine.Read(func(s *bridgestate.State) {
				fmt.Printf("watermark:             %s\n", s.GetSolanaLastKnownSignature())
				fmt.Printf("pending_ranges:        %d\n", len(s.SignatureRanges))
				fmt.Printf("pending_signatures:    %d\n", len(s.PendingSignatures))
				fmt.Printf("invalid_events:        %d\n", len(s.InvalidEvents))
				fmt.Printf("accepted_deposits:     %d\n", len(s.AcceptedEvents))
				fmt.Printf("minted_deposits:       %d\n", len(s.MintedEvents))
				fmt.Printf("withdrawals_burned:    %d\n", len(s.WithdrawalBurnedEvents))
				fmt.Printf("withdrawals_redeemed:  %d\n", len(s.WithdrawalRedeemedEvents))
				fmt.Printf("withdrawing_principals:%d\n", len(s.WithdrawingPrincipals))
				fmt.Printf("deposit_id_counter:    %d\n", s.DepositIDCounter)
				fmt.Printf("burn_id_counter:       %d\n", s.BurnIDCounter)
				for task, active := range s.ActiveTasks {
					if active {
						fmt.Printf("active_task:           %s\n", task)
					}
				}
			})
			return nil
		},
	}
}

func listRangesCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-ranges",
		Usage: "List pending signature ranges awaiting resolution",
		Action: func(c *cli.Context) error {
			logger := setupLogger("")
			d, err := buildDeps(c.Context, logger, false)
			if err != nil {
				return fmt.Errorf("list-ranges: %w", err)
			}
			defer d.Close()

			d.engine.Read(func(s *bridgestate.State) {
				if len(s.SignatureRanges) == 0 {
					fmt.Println("no pending ranges")
					return
				}
				for key, rg := range s.SignatureRanges {
					fmt.Printf("%s  before=%s until=%s retry=%d\n", key, rg.Before, rg.Until, rg.Retry)
				}
			})
			return nil
		},
	}
}

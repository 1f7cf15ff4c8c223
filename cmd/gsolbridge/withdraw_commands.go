package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gsolbridge/gsolbridge/service/config"
	"github.com/gsolbridge/gsolbridge/service/temporal"
)

func withdrawCommand() *cli.Command {
	return &cli.Command{
		Name:  "withdraw",
		Usage: "Submit a withdrawal request, burning the principal's balance and printing the resulting coupon",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "principal", Required: true, Usage: "Destination-ledger principal whose balance is burned"},
			&cli.StringFlag{Name: "recipient", Required: true, Usage: "Solana address the coupon redeems to"},
			&cli.Uint64Flag{Name: "amount", Required: true, Usage: "Amount to withdraw"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.MustLoad()
			logger := setupLogger("")

			client, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
			if err != nil {
				return fmt.Errorf("withdraw: %w", err)
			}
			defer client.Close()

			result, err := client.ExecuteWithdraw(c.Context, temporal.WithdrawInput{
				Principal:        c.String("principal"),
				RecipientSolAddr: c.String("recipient"),
				Amount:           c.Uint64("amount"),
			})
			if err != nil {
				return fmt.Errorf("withdraw: %w", err)
			}

			return printJSON(result.Coupon)
		},
	}
}

func getCouponCommand() *cli.Command {
	return &cli.Command{
		Name:  "get-coupon",
		Usage: "Look up (or re-sign after a crash) the coupon for a previously-requested withdrawal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "principal", Required: true},
			&cli.Uint64Flag{Name: "burn-id", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg := config.MustLoad()
			logger := setupLogger("")

			client, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
			if err != nil {
				return fmt.Errorf("get-coupon: %w", err)
			}
			defer client.Close()

			result, err := client.ExecuteGetCoupon(c.Context, temporal.GetCouponInput{
				Principal: c.String("principal"),
				BurnID:    c.Uint64("burn-id"),
			})
			if err != nil {
				return fmt.Errorf("get-coupon: %w", err)
			}

			return printJSON(result.Coupon)
		},
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

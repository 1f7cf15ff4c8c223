package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
)

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "Print every event in the bridge's append-only log, in order, for diagnostics",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Usage: "If set, only print events of this kind"},
			&cli.StringFlag{Name: "jq", Usage: "If set, pipe each event's payload through this jq filter before printing"},
		},
		Action: func(c *cli.Context) error {
			logger := setupLogger("")
			d, err := buildDeps(c.Context, logger, false)
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			defer d.Close()

			var code *gojq.Code
			if expr := c.String("jq"); expr != "" {
				query, err := gojq.Parse(expr)
				if err != nil {
					return fmt.Errorf("replay: parse jq filter %q: %w", expr, err)
				}
				code, err = gojq.Compile(query)
				if err != nil {
					return fmt.Errorf("replay: compile jq filter %q: %w", expr, err)
				}
			}

			filter := eventlog.Kind(c.String("kind"))
			count := 0
			err = d.log.Replay(c.Context, func(ev eventlog.Event) error {
				if filter != "" && ev.Kind != filter {
					return nil
				}
				count++

				if code == nil {
					fmt.Printf("%d\t%s\t%s\t%s\n", ev.Seq, ev.RecordedAt.Format("2006-01-02T15:04:05Z07:00"), ev.Kind, string(ev.Payload))
					return nil
				}

				var payload any
				if err := json.Unmarshal(ev.Payload, &payload); err != nil {
					return fmt.Errorf("seq %d: decode payload: %w", ev.Seq, err)
				}
				iter := code.Run(payload)
				for {
					v, ok := iter.Next()
					if !ok {
						break
					}
					if jqErr, ok := v.(error); ok {
						return fmt.Errorf("seq %d: jq filter: %w", ev.Seq, jqErr)
					}
					out, err := json.Marshal(v)
					if err != nil {
						return fmt.Errorf("seq %d: marshal jq result: %w", ev.Seq, err)
					}
					fmt.Printf("%d\t%s\t%s\n", ev.Seq, ev.Kind, string(out))
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			logger.Info("replay complete", slog.Int("events_printed", count))
			return nil
		},
	}
}

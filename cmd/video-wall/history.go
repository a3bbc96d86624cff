package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/history"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show recent refresh cycles, or the results for one feed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "feed",
				Usage: "show results for `FEED` only",
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: 20,
				Usage: "show at most `N` rows",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			h, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer h.Close()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			if feed := c.String("feed"); feed != "" {
				results, err := h.FeedResults(video_wall.FeedID(feed), c.Int("limit"))
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "CYCLE\tSTATUS\tDETAIL")
				for _, r := range results {
					decoded, err := r.Decode()
					if err != nil {
						return err
					}
					if decoded.Success {
						fmt.Fprintf(tw, "%d\tok\t%s\n", r.RefreshCycleID, describeValue(decoded.Value))
					} else {
						fmt.Fprintf(tw, "%d\tFAILED\t%s\n", r.RefreshCycleID, decoded.Error)
					}
				}
			} else {
				cycles, err := h.Recent(c.Int("limit"))
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "CYCLE\tCLASS\tFINISHED\tDURATION\tSUCCESSFUL")
				for _, cycle := range cycles {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%v\t%d/%d\n", cycle.ID, cycle.Class,
						cycle.FinishedAt.Local().Format(time.DateTime),
						cycle.FinishedAt.Sub(cycle.StartedAt).Round(time.Millisecond),
						cycle.Successful, cycle.Total)
				}
			}
			return tw.Flush()
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "print the effective configuration as YAML",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

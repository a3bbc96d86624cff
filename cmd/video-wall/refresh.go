package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/async"
	"github.com/alanbriolat/video-wall/internal/refresh"
)

func refreshCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "run one refresh of every source class and print the results",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print the resulting catalog snapshot as JSON",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			w, err := build(ctx, cfg, wallOptions{})
			if err != nil {
				return err
			}
			defer w.Close()

			cycles := w.refreshOnce(ctx)
			if c.Bool("json") {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(w.session.Snapshot())
			}
			return printCycles(cycles)
		},
	}
}

// refreshOnce runs every class concurrently, once.
func (w *wall) refreshOnce(ctx context.Context) []refresh.Cycle {
	bar := progressbar.Default(int64(len(w.classes)), "refreshing")
	var pending []<-chan refresh.Cycle
	for _, class := range w.classes {
		pending = append(pending, async.Run(func() refresh.Cycle {
			defer func() { _ = bar.Add(1) }()
			return w.scheduler.RunOnce(ctx, class)
		}))
	}
	cycles := async.All(pending...)
	_ = bar.Finish()
	return cycles
}

func printCycles(cycles []refresh.Cycle) error {
	var results []video_wall.RefreshResult
	for _, c := range cycles {
		results = append(results, c.Results...)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].FeedID < results[j].FeedID })

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FEED\tSTATUS\tVALUE")
	for _, r := range results {
		if r.Success {
			fmt.Fprintf(tw, "%s\tok\t%s\n", r.FeedID, describeValue(r.Value))
		} else {
			fmt.Fprintf(tw, "%s\tFAILED\t%s\n", r.FeedID, r.Error)
		}
	}
	return tw.Flush()
}

func describeValue(v video_wall.Value) string {
	if v.URL != "" {
		return v.URL
	}
	return fmt.Sprintf("low=%s high=%s", v.Qualities.Low, v.Qualities.High)
}

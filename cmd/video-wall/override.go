package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.etcd.io/bbolt"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/boltdb"
	"github.com/alanbriolat/video-wall/internal/catalog"
	"github.com/alanbriolat/video-wall/internal/session"
)

func overrideCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "override",
		Usage:     "persist a manual URL (or token, for feeds with a URL template) for a feed",
		ArgsUsage: "FEED [URL|TOKEN]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "forget the persisted override for FEED",
			},
		},
		Action: func(c *cli.Context) error {
			id := video_wall.FeedID(c.Args().First())
			value := c.Args().Get(1)
			if id == "" || (value == "") != c.Bool("clear") {
				return cli.ShowSubcommandHelp(c)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			templates, err := cfg.Templates()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Paths.DataDir, 0755); err != nil {
				return err
			}
			db, err := boltdb.New(cfg.OverridesPath())
			if errors.Is(err, bbolt.ErrTimeout) {
				return fmt.Errorf("%s is locked, stop \"video-wall run\" first", cfg.OverridesPath())
			} else if err != nil {
				return err
			}
			defer db.Close()
			cat, err := catalog.New(cfg.Descriptors())
			if err != nil {
				return err
			}
			defer cat.Close()
			ses, err := session.New(session.Config{Catalog: cat, Database: db, Templates: templates}, ctx)
			if err != nil {
				return err
			}
			defer ses.Close()

			if c.Bool("clear") {
				return ses.ClearOverride(id)
			}
			d, err := ses.Override(id, value)
			if err != nil {
				return err
			}
			fmt.Println(d.PlaybackURL())
			return nil
		},
	}
}

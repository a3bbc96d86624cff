package main

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/player"
	"github.com/alanbriolat/video-wall/internal/pubsub"
	"github.com/alanbriolat/video-wall/internal/session"
)

func runCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "refresh feeds on their schedules and serve the local relay until interrupted",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "player",
				Usage: "overlay a native player for `FEED=WxH+X+Y`, restarted whenever the feed's URL changes",
			},
		},
		Action: func(c *cli.Context) error {
			placements, err := parsePlacements(c.StringSlice("player"))
			if err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			w, err := build(ctx, cfg, wallOptions{players: len(placements) > 0})
			if err != nil {
				return err
			}
			defer w.Close()
			return w.run(ctx, placements)
		},
	}
}

func parsePlacements(values []string) (map[video_wall.FeedID]player.Geometry, error) {
	placements := make(map[video_wall.FeedID]player.Geometry)
	for _, v := range values {
		id, geometry, ok := strings.Cut(v, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("--player %q: expected FEED=WxH+X+Y", v)
		}
		g, err := player.ParseGeometry(geometry)
		if err != nil {
			return nil, fmt.Errorf("--player %q: %w", v, err)
		}
		placements[video_wall.FeedID(id)] = g
	}
	return placements, nil
}

func (w *wall) run(ctx context.Context, placements map[video_wall.FeedID]player.Geometry) error {
	events, err := w.session.Subscribe()
	if err != nil {
		return err
	}
	for id := range placements {
		if _, ok := w.catalog.Get(id); !ok {
			events.Close()
			return fmt.Errorf("--player: unknown feed %q", id)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.relay.Run(ctx)
	})
	g.Go(func() error {
		w.handleEvents(ctx, events, placements)
		return nil
	})
	if err := w.scheduler.Start(ctx); err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		w.scheduler.Stop()
		return nil
	})
	return g.Wait()
}

func (w *wall) handleEvents(ctx context.Context, events pubsub.ReceiverCloser[session.Event], placements map[video_wall.FeedID]player.Geometry) {
	defer events.Close()
	current := make(map[video_wall.FeedID]string)
	play := func(id video_wall.FeedID, url string) {
		g, ok := placements[id]
		if !ok || url == "" || current[id] == url {
			return
		}
		if err := w.session.StartPlayer(id, url, g); err != nil {
			w.log.With("feed_id", id).Warnf("failed to start player: %v", err)
			return
		}
		current[id] = url
	}
	for id := range placements {
		if d, ok := w.catalog.Get(id); ok {
			play(id, d.PlaybackURL())
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.window.Moved():
			// Geometry is translated at spawn time, so move players by restarting them
			playing := maps.Clone(current)
			clear(current)
			for id, url := range playing {
				play(id, url)
			}
		case event, ok := <-events.Receive():
			if !ok {
				return
			}
			switch e := event.(type) {
			case session.RefreshCompleted:
				for _, r := range e.Results {
					if r.Success {
						if d, ok := w.catalog.Get(r.FeedID); ok {
							play(r.FeedID, d.PlaybackURL())
						}
					}
				}
			case session.AssetReady:
				w.log.With("feed_id", e.FeedID()).Infof("asset ready: %s (%s)", e.Path, e.Weather.Description)
				// Same path, new content: force a restart
				delete(current, e.FeedID())
				play(e.FeedID(), e.Path)
			case session.OverrideApplied:
				play(e.FeedID(), e.Descriptor.PlaybackURL())
			case session.PlayerExited:
				if e.Err != nil {
					delete(current, e.FeedID())
				}
			}
		}
	}
}

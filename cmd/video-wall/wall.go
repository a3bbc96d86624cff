package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/download"
	"github.com/alanbriolat/video-wall/internal/boltdb"
	"github.com/alanbriolat/video-wall/internal/catalog"
	"github.com/alanbriolat/video-wall/internal/config"
	"github.com/alanbriolat/video-wall/internal/cookie"
	"github.com/alanbriolat/video-wall/internal/history"
	"github.com/alanbriolat/video-wall/internal/invoker"
	"github.com/alanbriolat/video-wall/internal/player"
	"github.com/alanbriolat/video-wall/internal/refresh"
	"github.com/alanbriolat/video-wall/internal/relay"
	"github.com/alanbriolat/video-wall/internal/scrape"
	"github.com/alanbriolat/video-wall/internal/session"
	"github.com/alanbriolat/video-wall/internal/weather"
	"github.com/alanbriolat/video-wall/provider/feratel"
	"github.com/alanbriolat/video-wall/provider/page"
	"github.com/alanbriolat/video-wall/provider/raw"
	"github.com/alanbriolat/video-wall/provider/ytdlp"
)

// HistoryRetention is how long refresh history is kept.
const HistoryRetention = 30 * 24 * time.Hour

type wallOptions struct {
	players bool
}

// wall is every component of a running video wall, wired together from the configuration.
type wall struct {
	config    config.Config
	invoker   *invoker.Invoker
	catalog   *catalog.Catalog
	pipeline  *download.Pipeline
	vendor    *feratel.Source
	relay     *relay.Server
	players   *player.Supervisor
	window    *player.WindowTracker
	history   *history.History
	overrides boltdb.Database
	session   *session.Session
	scheduler *refresh.Scheduler
	classes   []refresh.Class
	intervals map[string]time.Duration
	log       *zap.SugaredLogger
}

// build refuses to construct any feed state unless the required external tools are present.
func build(ctx context.Context, cfg config.Config, options wallOptions) (_ *wall, err error) {
	log := zap.S().Named("wall")
	paths := cfg.ToolPaths()
	if err := invoker.Check(paths, cfg.RequiredTools()...); err != nil {
		return nil, fmt.Errorf("required tools missing: %w", err)
	}
	if options.players {
		if err := invoker.Check(paths, cfg.Tools.Player); err != nil {
			log.Warnf("native players unavailable: %v", err)
			options.players = false
		}
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.DataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	w := &wall{
		config:    cfg,
		invoker:   invoker.New(paths),
		window:    player.NewWindowTracker(cfg.Window.X, cfg.Window.Y),
		intervals: make(map[string]time.Duration),
		log:       log,
	}
	defer func() {
		if err != nil {
			w.Close()
		}
	}()

	if w.catalog, err = catalog.New(cfg.Descriptors()); err != nil {
		return nil, err
	}

	scraper := scrape.New(scrape.WithCDNHost(cdnHost(cfg.Vendor)))
	registry := &video_wall.ProviderRegistry{}
	resolverConfig := ytdlp.NewConfig()
	resolverConfig.Tool = cfg.Tools.Resolver
	resolverConfig.Timeout = cfg.Tools.ResolverTimeout.Std()
	registry.MustAdd(resolverConfig.Provider(w.invoker))
	registry.MustAdd(raw.NewConfig().Provider())
	registry.MustAdd(page.Provider(scraper))
	for id, name := range cfg.Resolvers() {
		if !registry.Has(name) {
			return nil, fmt.Errorf("feed %q: %w: %q", id, video_wall.ErrUnknownProvider, name)
		}
	}

	if err := w.buildVendor(scraper); err != nil {
		return nil, err
	}

	if w.overrides, err = boltdb.New(cfg.OverridesPath()); err != nil {
		return nil, fmt.Errorf("open override store: %w", err)
	}
	if w.history, err = history.Open(cfg.HistoryPath()); err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if removed, err := w.history.Prune(time.Now().Add(-HistoryRetention)); err != nil {
		log.Warnf("failed to prune history: %v", err)
	} else if removed > 0 {
		log.Debugf("pruned %d old refresh cycles", removed)
	}

	if options.players {
		w.players = player.New(player.Config{
			Tool:    cfg.Tools.Player,
			Paths:   paths,
			Locator: w.window,
		})
	}

	templates, err := cfg.Templates()
	if err != nil {
		return nil, err
	}
	sessionConfig := session.Config{
		Catalog:   w.catalog,
		Database:  w.overrides,
		Templates: templates,
	}
	if w.players != nil {
		sessionConfig.Players = w.players
	}
	if w.session, err = session.New(sessionConfig, ctx); err != nil {
		return nil, err
	}

	w.scheduler = refresh.NewScheduler(w.session.RefreshListener(), w.history.Listener())
	w.addClass(refresh.NewDynamicClass(w.catalog, registry, cfg.Resolvers()), cfg.Refresh.DynamicInterval.Std())
	if w.vendor != nil {
		feed, _ := cfg.VendorFeed()
		opts := []refresh.VendorOption{refresh.WithOutcomeHandler(w.session.OutcomeHandler())}
		if w.relay.Mode() == relay.ModeRelay {
			opts = append(opts, refresh.WithPlaybackURL(w.relay.URL(w.relay.PlaybackPath())))
		}
		sources := map[video_wall.FeedID]refresh.VendorSource{feed.ID: w.vendor}
		w.addClass(refresh.NewVendorClass(w.catalog, sources, opts...), cfg.Refresh.VendorInterval.Std())
	}
	for _, class := range w.classes {
		if err := w.scheduler.Add(class, w.intervals[class.Name()]); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *wall) buildVendor(scraper *scrape.Scraper) error {
	cfg := w.config
	relayOpts := []relay.Option{relay.WithSnapshot(w.catalog), relay.WithWindow(w.window)}
	_, hasFeed := cfg.VendorFeed()
	switch {
	case !hasFeed:
	case !cfg.Vendor.Enabled():
		w.log.Warn("cookie-gated feed configured without vendor.cookie_endpoint and vendor.embed_url, not refreshing it")
	default:
		var acquirer feratel.Acquirer
		if cfg.Vendor.Mode == relay.ModeDownload {
			w.pipeline = download.New(w.invoker,
				download.WithDir(cfg.Paths.CacheDir),
				download.WithTool(cfg.Tools.Transcoder),
				download.WithTimeouts(cfg.Vendor.DownloadTimeout.Std(), cfg.Vendor.TranscodeTimeout.Std()),
				download.WithMinSize(cfg.Vendor.MinSize),
				download.WithMaxDuration(cfg.Vendor.MaxDuration.Std()),
				download.WithReferer(cfg.Vendor.Referer),
			)
			if err := w.pipeline.Purge(); err != nil {
				return fmt.Errorf("purge staging area: %w", err)
			}
			acquirer = w.pipeline
			relayOpts = append(relayOpts, relay.WithAsset(w.pipeline))
		}
		var weatherSource feratel.WeatherSource
		if cfg.Weather.Enabled {
			weatherSource = weather.New(weather.Config{
				Endpoint:  cfg.Weather.Endpoint,
				Latitude:  cfg.Weather.Latitude,
				Longitude: cfg.Weather.Longitude,
			})
		}
		fetcher := cookie.New(cookie.Config{
			Endpoint:       cfg.Vendor.CookieEndpoint,
			SessionField:   cfg.Vendor.SessionField,
			SecondaryField: cfg.Vendor.SecondaryField,
		})
		w.vendor = feratel.New(feratel.Config{EmbedURL: cfg.Vendor.EmbedURL, Referer: cfg.Vendor.Referer},
			fetcher, scraper, acquirer, weatherSource)
		relayOpts = append(relayOpts, relay.WithUpstream(w.vendor))
	}

	var err error
	w.relay, err = relay.New(relay.Config{Addr: cfg.Relay.Addr, Mode: cfg.Vendor.Mode, Referer: cfg.Vendor.Referer}, relayOpts...)
	return err
}

func cdnHost(v config.Vendor) string {
	if v.CDNHost != "" {
		return v.CDNHost
	}
	return scrape.DefaultCDNHost
}

func (w *wall) addClass(class refresh.Class, interval time.Duration) {
	w.classes = append(w.classes, class)
	w.intervals[class.Name()] = interval
}

// Close releases everything build created, in reverse dependency order.
func (w *wall) Close() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	if w.session != nil {
		w.session.Close()
	}
	if w.players != nil {
		w.players.Close()
	}
	var result *multierror.Error
	if w.history != nil {
		result = multierror.Append(result, w.history.Close())
	}
	if w.overrides != nil {
		result = multierror.Append(result, w.overrides.Close())
	}
	if w.catalog != nil {
		w.catalog.Close()
	}
	if err := result.ErrorOrNil(); err != nil {
		w.log.Warnf("errors during shutdown: %v", err)
	}
}

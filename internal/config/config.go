// Package config loads the application configuration: built-in defaults, then an optional YAML file, then VIDEOWALL_*
// environment variables (which may come from a .env file).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/download"
	"github.com/alanbriolat/video-wall/internal/invoker"
	"github.com/alanbriolat/video-wall/internal/player"
	"github.com/alanbriolat/video-wall/internal/refresh"
	"github.com/alanbriolat/video-wall/internal/relay"
	"github.com/alanbriolat/video-wall/provider/ytdlp"
	"github.com/alanbriolat/video-wall/util"
)

const AppName = "video-wall"

var ErrInvalid = errors.New("invalid configuration")

type Feed struct {
	ID   video_wall.FeedID     `yaml:"id"`
	Kind video_wall.SourceKind `yaml:"kind"`
	// URL is the origin page for dynamic and cookie-gated feeds, and the manifest for static feeds.
	URL string `yaml:"url,omitempty"`
	// Resolver forces a provider by name instead of matching by URL.
	Resolver string `yaml:"resolver,omitempty"`
	// Template renders an operator token into the feed URL.
	Template string `yaml:"template,omitempty"`
}

type Refresh struct {
	DynamicInterval Duration `yaml:"dynamic_interval"`
	VendorInterval  Duration `yaml:"vendor_interval"`
}

type Tools struct {
	// BundleDir holds bundled executables, preferred over $PATH.
	BundleDir       string            `yaml:"bundle_dir,omitempty"`
	Resolver        string            `yaml:"resolver"`
	Transcoder      string            `yaml:"transcoder"`
	Player          string            `yaml:"player"`
	Paths           map[string]string `yaml:"paths,omitempty"`
	ResolverTimeout Duration          `yaml:"resolver_timeout"`
}

type Vendor struct {
	Mode             relay.Mode `yaml:"mode"`
	CookieEndpoint   string     `yaml:"cookie_endpoint,omitempty"`
	EmbedURL         string     `yaml:"embed_url,omitempty"`
	Referer          string     `yaml:"referer,omitempty"`
	SessionField     string     `yaml:"session_field,omitempty"`
	SecondaryField   string     `yaml:"secondary_field,omitempty"`
	CDNHost          string     `yaml:"cdn_host,omitempty"`
	DownloadTimeout  Duration   `yaml:"download_timeout"`
	TranscodeTimeout Duration   `yaml:"transcode_timeout"`
	MaxDuration      Duration   `yaml:"max_duration,omitempty"`
	MinSize          int64      `yaml:"min_size"`
}

// Enabled reports whether enough is configured to run the vendor cycle.
func (v Vendor) Enabled() bool {
	return v.CookieEndpoint != "" && v.EmbedURL != ""
}

type Relay struct {
	Addr string `yaml:"addr"`
}

type Weather struct {
	Enabled   bool    `yaml:"enabled"`
	Endpoint  string  `yaml:"endpoint,omitempty"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type Window struct {
	// Initial screen position of the host window content area, for placing native players. The host page reports
	// later moves with PUT /window on the relay.
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type Paths struct {
	CacheDir string `yaml:"cache_dir"`
	DataDir  string `yaml:"data_dir"`
}

type Config struct {
	Feeds   []Feed  `yaml:"feeds"`
	Refresh Refresh `yaml:"refresh"`
	Tools   Tools   `yaml:"tools"`
	Vendor  Vendor  `yaml:"vendor"`
	Relay   Relay   `yaml:"relay"`
	Weather Weather `yaml:"weather"`
	Window  Window  `yaml:"window"`
	Paths   Paths   `yaml:"paths"`
}

func DefaultFeeds() []Feed {
	return []Feed{
		{ID: "video-1", Kind: video_wall.CookieGatedDownload},
		{ID: "video-2", Kind: video_wall.DynamicResolved, URL: "https://www.youtube.com/watch?v=lWaDZ0E5xsw"},
		{
			ID:       "video-3",
			Kind:     video_wall.StaticManifest,
			Template: "https://livecdn-de-earthtv-com.global.ssl.fastly.net/edge0/cdnedge/HpL-X8UABqM/playlist.m3u8?token={{.Token}}&domain=www.earthtv.com",
		},
		{ID: "video-4", Kind: video_wall.DynamicResolved, URL: "https://www.youtube.com/live/0jUGiYZKAMg"},
		{ID: "video-6", Kind: video_wall.StaticManifest, Template: "https://hd-auth.skylinewebcams.com/live.m3u8?a={{.Token}}&vid=6"},
		{ID: "video-9", Kind: video_wall.DynamicResolved, URL: "https://www.youtube.com/watch?v=CXYr04BWvmc"},
		{ID: "video-10", Kind: video_wall.DynamicResolved, URL: "https://www.youtube.com/watch?v=0aF8elLpiMo"},
		{ID: "video-11", Kind: video_wall.DynamicResolved, URL: "https://www.youtube.com/watch?v=BSWhGNXxT9A"},
		{ID: "video-12", Kind: video_wall.DynamicResolved, URL: "https://www.youtube.com/watch?v=046kfvReqT4"},
	}
}

func Default() Config {
	return Config{
		Feeds: DefaultFeeds(),
		Refresh: Refresh{
			DynamicInterval: Duration(refresh.DefaultDynamicInterval),
			VendorInterval:  Duration(refresh.DefaultVendorInterval),
		},
		Tools: Tools{
			Resolver:        ytdlp.DefaultTool,
			Transcoder:      download.DefaultTool,
			Player:          player.DefaultTool,
			ResolverTimeout: Duration(ytdlp.DefaultTimeout),
		},
		Vendor: Vendor{
			Mode:             relay.ModeDownload,
			DownloadTimeout:  Duration(download.DefaultDownloadTimeout),
			TranscodeTimeout: Duration(download.DefaultTranscodeTimeout),
			MinSize:          download.DefaultMinSize,
		},
		Relay: Relay{Addr: relay.DefaultAddr},
		Weather: Weather{
			Enabled:   true,
			Latitude:  50.0865,
			Longitude: 14.4114,
		},
		Paths: Paths{
			CacheDir: userDir(os.UserCacheDir),
			DataDir:  userDir(os.UserConfigDir),
		},
	}
}

func userDir(f func() (string, error)) string {
	if dir, err := f(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(".", "."+AppName)
}

type Loader struct {
	// Path of the YAML config file; empty means defaults only.
	Path string
	// EnvFile is read if it exists; its values never override the real environment.
	EnvFile string
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load reads the config file at path (if not empty) and ".env" from the working directory.
func Load(path string) (Config, error) {
	return Loader{Path: path, EnvFile: ".env"}.Load()
}

func (l Loader) Load() (Config, error) {
	cfg := Default()
	if l.Path != "" {
		data, err := os.ReadFile(l.Path)
		if err != nil {
			return cfg, err
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", l.Path, err)
		}
	}

	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if l.EnvFile != "" {
		dotenv, err := readEnvFile(l.EnvFile)
		if err != nil {
			return cfg, err
		}
		lookup = layered(lookup, dotenv)
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func readEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

func layered(primary func(string) (string, bool), fallback map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok {
			return v, true
		}
		v, ok := fallback[key]
		return v, ok
	}
}

// Validate checks the whole configuration, reporting every problem at once.
func (c Config) Validate() error {
	var result *multierror.Error
	invalid := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	seen := make(map[video_wall.FeedID]bool)
	vendorFeeds := 0
	for i, f := range c.Feeds {
		if f.ID == "" {
			invalid("feeds[%d]: missing id", i)
			continue
		}
		if seen[f.ID] {
			invalid("feed %q: duplicate id", f.ID)
		}
		seen[f.ID] = true
		switch f.Kind {
		case video_wall.DynamicResolved:
			if !util.IsHTTPURL(f.URL) {
				invalid("feed %q: dynamic feeds need an http(s) url", f.ID)
			}
		case video_wall.StaticManifest:
			if f.URL != "" && !util.IsHTTPURL(f.URL) {
				invalid("feed %q: url must be http(s)", f.ID)
			}
		case video_wall.CookieGatedDownload:
			vendorFeeds++
		default:
			invalid("feed %q: invalid kind %q", f.ID, f.Kind)
		}
		if f.Template != "" {
			if _, err := video_wall.ParseURLTemplate(string(f.ID), f.Template); err != nil {
				invalid("feed %q: template: %v", f.ID, err)
			}
		}
	}
	if vendorFeeds > 1 {
		invalid("at most one cookie-gated feed is supported, got %d", vendorFeeds)
	}

	if c.Refresh.DynamicInterval.Std() < refresh.MinInterval {
		invalid("refresh.dynamic_interval must be at least %v", refresh.MinInterval)
	}
	if c.Refresh.VendorInterval.Std() < refresh.MinInterval {
		invalid("refresh.vendor_interval must be at least %v", refresh.MinInterval)
	}
	if c.Tools.ResolverTimeout <= 0 {
		invalid("tools.resolver_timeout must be positive")
	}
	if c.Tools.Resolver == "" || c.Tools.Transcoder == "" || c.Tools.Player == "" {
		invalid("tools.resolver, tools.transcoder and tools.player must be set")
	}

	if !c.Vendor.Mode.Valid() {
		invalid("vendor.mode: %v %q", relay.ErrInvalidMode, c.Vendor.Mode)
	}
	for name, u := range map[string]string{"cookie_endpoint": c.Vendor.CookieEndpoint, "embed_url": c.Vendor.EmbedURL} {
		if u != "" && !util.IsHTTPURL(u) {
			invalid("vendor.%s must be an http(s) URL", name)
		}
	}
	if c.Vendor.DownloadTimeout <= 0 || c.Vendor.TranscodeTimeout <= 0 {
		invalid("vendor.download_timeout and vendor.transcode_timeout must be positive")
	}
	if c.Vendor.MinSize < 0 {
		invalid("vendor.min_size must not be negative")
	}

	if err := relay.CheckAddr(c.Relay.Addr); err != nil {
		invalid("relay.addr: %v", err)
	}

	if c.Weather.Latitude < -90 || c.Weather.Latitude > 90 {
		invalid("weather.latitude out of range")
	}
	if c.Weather.Longitude < -180 || c.Weather.Longitude > 180 {
		invalid("weather.longitude out of range")
	}

	if c.Paths.CacheDir == "" || c.Paths.DataDir == "" {
		invalid("paths.cache_dir and paths.data_dir must be set")
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// Descriptors are the initial catalog entries. Static feeds without a URL start empty, waiting for an override.
func (c Config) Descriptors() []video_wall.Descriptor {
	feeds := make([]video_wall.Descriptor, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		d := video_wall.Descriptor{ID: f.ID, Kind: f.Kind}
		switch f.Kind {
		case video_wall.StaticManifest:
			d.ManifestURL = f.URL
		default:
			d.OriginURL = f.URL
		}
		feeds = append(feeds, d)
	}
	return feeds
}

// Templates parses the token URL template of every feed that has one.
func (c Config) Templates() (map[video_wall.FeedID]*video_wall.URLTemplate, error) {
	templates := make(map[video_wall.FeedID]*video_wall.URLTemplate)
	for _, f := range c.Feeds {
		if f.Template == "" {
			continue
		}
		t, err := video_wall.ParseURLTemplate(string(f.ID), f.Template)
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", f.ID, err)
		}
		templates[f.ID] = t
	}
	return templates, nil
}

// Resolvers maps feed ids to their forced provider names.
func (c Config) Resolvers() map[video_wall.FeedID]string {
	resolvers := make(map[video_wall.FeedID]string)
	for _, f := range c.Feeds {
		if f.Resolver != "" {
			resolvers[f.ID] = f.Resolver
		}
	}
	return resolvers
}

// VendorFeed returns the cookie-gated feed, if there is one.
func (c Config) VendorFeed() (Feed, bool) {
	for _, f := range c.Feeds {
		if f.Kind == video_wall.CookieGatedDownload {
			return f, true
		}
	}
	return Feed{}, false
}

func (c Config) ToolPaths() invoker.ToolPaths {
	return invoker.ToolPaths{BundleDir: c.Tools.BundleDir, Overrides: c.Tools.Paths}
}

// RequiredTools are the external tools "run" refuses to start without.
func (c Config) RequiredTools() []string {
	tools := []string{c.Tools.Resolver}
	if _, ok := c.VendorFeed(); ok && c.Vendor.Enabled() && c.Vendor.Mode == relay.ModeDownload {
		tools = append(tools, c.Tools.Transcoder)
	}
	return tools
}

func (c Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

func (c Config) OverridesPath() string {
	return filepath.Join(c.Paths.DataDir, "overrides.db")
}

func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Package feratel drives the cookie-gated vendor feed: session cookie, then embed page scrape, then acquisition.
package feratel

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall/async"
	"github.com/alanbriolat/video-wall/download"
	"github.com/alanbriolat/video-wall/internal/cookie"
	"github.com/alanbriolat/video-wall/internal/scrape"
	"github.com/alanbriolat/video-wall/internal/sync_"
	"github.com/alanbriolat/video-wall/internal/weather"
)

type CookieFetcher interface {
	Fetch(ctx context.Context) (cookie.Credential, error)
}

type Scraper interface {
	Scrape(ctx context.Context, pageURL string, opts ...scrape.RequestOption) (string, error)
}

type Acquirer interface {
	AcquireAsset(ctx context.Context, streamURL string, credential cookie.Credential) (download.Asset, error)
}

type WeatherSource interface {
	Current(ctx context.Context) weather.Payload
}

type Config struct {
	// EmbedURL is the vendor page embedding the stream.
	EmbedURL string
	Referer  string
}

// Upstream is the most recently obtained stream URL together with the credential that unlocks it.
type Upstream struct {
	StreamURL  string
	Credential cookie.Credential
	UpdatedAt  time.Time
}

func (u Upstream) Ready() bool {
	return u.StreamURL != "" && !u.Credential.Empty()
}

// Outcome of one successful Cycle. Asset is only set when the source was built with an Acquirer.
type Outcome struct {
	StreamURL string
	Asset     download.Asset
	Weather   weather.Payload
}

type Source struct {
	config   Config
	cookies  CookieFetcher
	scraper  Scraper
	acquirer Acquirer
	weather  WeatherSource
	upstream *sync_.RWMutexed[Upstream]
	log      *zap.SugaredLogger
}

// New creates a vendor source. A nil acquirer means relay mode: Cycle only refreshes the upstream. A nil weather source
// always yields weather.Unavailable.
func New(config Config, cookies CookieFetcher, scraper Scraper, acquirer Acquirer, weatherSource WeatherSource) *Source {
	return &Source{
		config:   config,
		cookies:  cookies,
		scraper:  scraper,
		acquirer: acquirer,
		weather:  weatherSource,
		upstream: sync_.NewRWMutexed(Upstream{}),
		log:      zap.S().Named("feratel"),
	}
}

// Upstream returns a copy of the current upstream state, and whether it is usable yet.
func (s *Source) Upstream() (Upstream, bool) {
	u := s.upstream.Get()
	u.Credential = u.Credential.Clone()
	return u, u.Ready()
}

// Cycle performs one full refresh. Weather is fetched concurrently with the download and never fails the cycle.
func (s *Source) Cycle(ctx context.Context) (Outcome, error) {
	credential, err := s.cookies.Fetch(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch session cookie: %w", err)
	}

	streamURL, err := s.scraper.Scrape(ctx, s.config.EmbedURL,
		scrape.WithCookie(credential.Header()),
		scrape.WithReferer(s.config.Referer),
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("scrape embed page: %w", err)
	}
	// Credential and stream URL are only replaced together, so a failed cycle keeps the last working pair.
	s.upstream.Set(Upstream{StreamURL: streamURL, Credential: credential, UpdatedAt: time.Now()})
	s.log.Debugf("stream URL: %s", streamURL)

	weatherResult := async.Run(func() weather.Payload {
		if s.weather == nil {
			return weather.Unavailable
		}
		return s.weather.Current(ctx)
	})

	outcome := Outcome{StreamURL: streamURL}
	if s.acquirer != nil {
		asset, err := s.acquirer.AcquireAsset(ctx, streamURL, credential)
		if err != nil {
			return Outcome{}, err
		}
		outcome.Asset = asset
	}
	outcome.Weather = <-weatherResult
	return outcome, nil
}

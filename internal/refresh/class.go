package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/async"
	"github.com/alanbriolat/video-wall/provider/feratel"
)

// Catalog is the subset of *catalog.Catalog a refresh class writes to.
type Catalog interface {
	Get(id video_wall.FeedID) (video_wall.Descriptor, bool)
	IDs(kind video_wall.SourceKind) []video_wall.FeedID
	ApplyResolved(id video_wall.FeedID, value video_wall.Value, at time.Time) (video_wall.Descriptor, error)
	ApplyFailure(id video_wall.FeedID, err error, at time.Time) (video_wall.Descriptor, error)
}

// A Class refreshes every feed of one source kind. Refresh returns only after every per-feed task has finished.
type Class interface {
	Name() string
	Kind() video_wall.SourceKind
	Refresh(ctx context.Context) []video_wall.RefreshResult
}

// fanOut runs f for every id concurrently, converting a panic into a failed result recorded in the catalog.
func fanOut(ctx context.Context, cat Catalog, ids []video_wall.FeedID, f func(context.Context, video_wall.FeedID) video_wall.RefreshResult) []video_wall.RefreshResult {
	results := make([]video_wall.RefreshResult, len(ids))
	var wg sync.WaitGroup
	wg.Add(len(ids))
	for i, id := range ids {
		go func(i int, id video_wall.FeedID) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					video_wall.Logger(ctx).Sugar().With("feed_id", id).Errorf("refresh panicked: %v", r)
					results[i] = fail(cat, id, fmt.Errorf("panic: %v", r))
				}
			}()
			results[i] = f(ctx, id)
		}(i, id)
	}
	wg.Wait()
	return results
}

func succeed(cat Catalog, id video_wall.FeedID, value video_wall.Value) video_wall.RefreshResult {
	d, err := cat.ApplyResolved(id, value, time.Now())
	if err != nil {
		return fail(cat, id, err)
	}
	return video_wall.RefreshResult{FeedID: id, Success: true, Value: d.Value()}
}

func fail(cat Catalog, id video_wall.FeedID, cause error) video_wall.RefreshResult {
	result := video_wall.RefreshResult{FeedID: id, Success: false, Error: cause.Error()}
	if d, err := cat.ApplyFailure(id, cause, time.Now()); err == nil {
		result.Value = d.Value()
	} else if d, ok := cat.Get(id); ok {
		result.Value = d.Value()
	}
	return result
}

// Matcher picks a resolver for an origin URL; *video_wall.ProviderRegistry is the real implementation.
type Matcher interface {
	Match(originURL string) (*video_wall.Match, error)
	MatchWith(name string, originURL string) (*video_wall.Match, error)
}

// DynamicClass re-resolves both qualities of every DynamicResolved feed. An entry is only updated if both succeed.
type DynamicClass struct {
	catalog   Catalog
	matcher   Matcher
	resolvers map[video_wall.FeedID]string
}

// NewDynamicClass creates the class. resolvers optionally pins a feed to a named provider instead of matching by URL.
func NewDynamicClass(cat Catalog, matcher Matcher, resolvers map[video_wall.FeedID]string) *DynamicClass {
	return &DynamicClass{
		catalog:   cat,
		matcher:   matcher,
		resolvers: resolvers,
	}
}

func (c *DynamicClass) Name() string {
	return "dynamic"
}

func (c *DynamicClass) Kind() video_wall.SourceKind {
	return video_wall.DynamicResolved
}

func (c *DynamicClass) Refresh(ctx context.Context) []video_wall.RefreshResult {
	return fanOut(ctx, c.catalog, c.catalog.IDs(video_wall.DynamicResolved), c.refreshFeed)
}

func (c *DynamicClass) refreshFeed(ctx context.Context, id video_wall.FeedID) video_wall.RefreshResult {
	log := video_wall.Logger(ctx).Sugar().With("feed_id", id)
	d, ok := c.catalog.Get(id)
	if !ok {
		return video_wall.RefreshResult{FeedID: id, Error: "feed disappeared from catalog"}
	}
	log.Debugf("refreshing %s", d.OriginURL)

	var match *video_wall.Match
	var err error
	if name := c.resolvers[id]; name != "" {
		match, err = c.matcher.MatchWith(name, d.OriginURL)
	} else {
		match, err = c.matcher.Match(d.OriginURL)
	}
	if err != nil {
		log.Warnf("failed to refresh: %v", err)
		return fail(c.catalog, id, err)
	}

	low := async.RunResult(func() (string, error) {
		return match.Resolver.Resolve(ctx, d.OriginURL, video_wall.QualityLow)
	})
	high := async.RunResult(func() (string, error) {
		return match.Resolver.Resolve(ctx, d.OriginURL, video_wall.QualityHigh)
	})
	lowResult, highResult := <-low, <-high

	var result error
	if lowResult.IsErr() {
		result = multierror.Append(result, multierror.Prefix(lowResult.Error, "[low]"))
	}
	if highResult.IsErr() {
		result = multierror.Append(result, multierror.Prefix(highResult.Error, "[high]"))
	}
	if result != nil {
		log.Warnf("failed to refresh: %v", result)
		return fail(c.catalog, id, result)
	}
	log.Infof("refreshed successfully via %s", match.ProviderName)
	return succeed(c.catalog, id, video_wall.Value{
		Qualities: video_wall.Qualities{Low: lowResult.Value, High: highResult.Value},
	})
}

// VendorSource is satisfied by *feratel.Source.
type VendorSource interface {
	Cycle(ctx context.Context) (feratel.Outcome, error)
}

// VendorClass runs the vendor cycle for each CookieGatedDownload feed that has a source.
type VendorClass struct {
	catalog     Catalog
	sources     map[video_wall.FeedID]VendorSource
	playbackURL string
	onOutcome   func(video_wall.FeedID, feratel.Outcome)
}

type VendorOption func(*VendorClass)

// WithPlaybackURL makes a successful cycle record this URL (the local relay) instead of the published asset path.
func WithPlaybackURL(url string) VendorOption {
	return func(c *VendorClass) {
		c.playbackURL = url
	}
}

// WithOutcomeHandler is called after every successful cycle, once the catalog has been updated.
func WithOutcomeHandler(f func(video_wall.FeedID, feratel.Outcome)) VendorOption {
	return func(c *VendorClass) {
		c.onOutcome = f
	}
}

func NewVendorClass(cat Catalog, sources map[video_wall.FeedID]VendorSource, opts ...VendorOption) *VendorClass {
	c := &VendorClass{
		catalog: cat,
		sources: sources,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *VendorClass) Name() string {
	return "vendor"
}

func (c *VendorClass) Kind() video_wall.SourceKind {
	return video_wall.CookieGatedDownload
}

func (c *VendorClass) Refresh(ctx context.Context) []video_wall.RefreshResult {
	var ids []video_wall.FeedID
	for _, id := range c.catalog.IDs(video_wall.CookieGatedDownload) {
		if _, ok := c.sources[id]; ok {
			ids = append(ids, id)
		}
	}
	return fanOut(ctx, c.catalog, ids, c.refreshFeed)
}

func (c *VendorClass) refreshFeed(ctx context.Context, id video_wall.FeedID) video_wall.RefreshResult {
	log := video_wall.Logger(ctx).Sugar().With("feed_id", id)
	outcome, err := c.sources[id].Cycle(ctx)
	if err != nil {
		log.Warnf("vendor cycle failed: %v", err)
		return fail(c.catalog, id, err)
	}
	value := outcome.Asset.Path
	if c.playbackURL != "" {
		value = c.playbackURL
	}
	result := succeed(c.catalog, id, video_wall.Value{URL: value})
	if result.Success && c.onOutcome != nil {
		c.onOutcome(id, outcome)
	}
	return result
}

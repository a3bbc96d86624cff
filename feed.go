package video_wall

import (
	"fmt"
	"time"
)

// FeedID is the stable key of one grid cell, e.g. "video-2".
type FeedID string

type SourceKind string

const (
	// DynamicResolved feeds have playback URLs that expire and are periodically re-resolved from a page URL.
	DynamicResolved SourceKind = "dynamic"
	// StaticManifest feeds have a fixed manifest URL, only changed by operator override.
	StaticManifest SourceKind = "static"
	// CookieGatedDownload feeds are downloaded from a cookie-authenticated portal and played from a local file.
	CookieGatedDownload SourceKind = "cookie-gated"
)

func (k SourceKind) Valid() bool {
	switch k {
	case DynamicResolved, StaticManifest, CookieGatedDownload:
		return true
	default:
		return false
	}
}

// Qualities holds the two playback URLs resolved for a DynamicResolved feed. Empty means "not yet known".
type Qualities struct {
	Low  string `json:"low,omitempty"`
	High string `json:"high,omitempty"`
}

func (q Qualities) Complete() bool {
	return q.Low != "" && q.High != ""
}

// Descriptor is the catalog's current knowledge about one feed.
type Descriptor struct {
	ID        FeedID     `json:"id"`
	Kind      SourceKind `json:"kind"`
	OriginURL string     `json:"origin_url,omitempty"`

	Qualities   Qualities `json:"qualities"`
	ManifestURL string    `json:"manifest_url,omitempty"`
	AssetPath   string    `json:"asset_path,omitempty"`

	// Zero until the first successful refresh.
	LastRefresh time.Time `json:"last_refresh,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	// Overridden is set while an operator-supplied URL is in effect.
	Overridden bool `json:"overridden,omitempty"`
}

// Value returns the resolved value(s) relevant to the feed's kind.
func (d Descriptor) Value() Value {
	switch d.Kind {
	case DynamicResolved:
		return Value{Qualities: d.Qualities}
	case StaticManifest:
		return Value{URL: d.ManifestURL}
	case CookieGatedDownload:
		return Value{URL: d.AssetPath}
	default:
		return Value{}
	}
}

// PlaybackURL is the URL a grid cell should play: the low quality rendition for resolved feeds.
func (d Descriptor) PlaybackURL() string {
	v := d.Value()
	if v.URL != "" {
		return v.URL
	}
	return v.Qualities.Low
}

func (d Descriptor) String() string {
	return fmt.Sprintf("Descriptor{ID:%q, Kind:%q, URL:%q}", d.ID, d.Kind, d.PlaybackURL())
}

// Value is the kind-specific resolved value carried by a RefreshResult.
type Value struct {
	Qualities Qualities `json:"qualities,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// RefreshResult is the outcome of refreshing one feed in one cycle. On failure Value holds the previous value.
type RefreshResult struct {
	FeedID  FeedID `json:"feed_id"`
	Success bool   `json:"success"`
	Value   Value  `json:"value"`
	Error   string `json:"error,omitempty"`
}

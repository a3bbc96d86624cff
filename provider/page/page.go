// Package page resolves pages that embed their stream URL (e.g. EarthCam) by scraping them.
package page

import (
	"context"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/scrape"
	"github.com/alanbriolat/video-wall/util"
)

type Scraper interface {
	Scrape(ctx context.Context, pageURL string, opts ...scrape.RequestOption) (string, error)
}

// Provider matches any http(s) URL, so it is registered with the lowest priority.
func Provider(scraper Scraper) video_wall.Provider {
	return video_wall.Provider{
		Name: "page",
		Match: func(s string) (video_wall.Resolver, error) {
			if _, err := util.ParseHTTPURL(s); err != nil {
				return nil, err
			}
			return resolver{scraper: scraper}, nil
		},
		Priority: video_wall.PriorityLowest,
	}
}

type resolver struct {
	scraper Scraper
}

// Resolve ignores quality: pages only embed a single rendition.
func (r resolver) Resolve(ctx context.Context, originURL string, _ video_wall.Quality) (string, error) {
	return r.scraper.Scrape(ctx, originURL)
}

// Package raw handles origin URLs that are already playable manifests or media files.
package raw

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/generic"
	"github.com/alanbriolat/video-wall/util"
)

type Config struct {
	Extensions generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Extensions: generic.NewSet(
			".m3u8",
			".mpd",
			".mp4",
			".webm",
		),
	}
}

func (c Config) Match(s string) (video_wall.Resolver, error) {
	parsedURL, err := util.ParseHTTPURL(s)
	if err != nil {
		return nil, err
	}
	extension := strings.ToLower(path.Ext(parsedURL.Path))
	if extension == "" {
		return nil, fmt.Errorf("no file extension found")
	}
	if !c.Extensions.Contains(extension) {
		return nil, fmt.Errorf("unknown file extension %v (expected one of %v)", extension, c.Extensions.Sorted())
	}
	return resolver{}, nil
}

func (c Config) Provider() video_wall.Provider {
	return video_wall.Provider{
		Name:  "raw",
		Match: c.Match,
	}
}

type resolver struct{}

// Resolve returns the origin URL unchanged, for either quality.
func (resolver) Resolve(_ context.Context, originURL string, _ video_wall.Quality) (string, error) {
	return originURL, nil
}

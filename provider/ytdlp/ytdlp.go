// Package ytdlp resolves YouTube watch/live pages to short-lived manifest URLs with the yt-dlp tool.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/generic"
	"github.com/alanbriolat/video-wall/internal/invoker"
	"github.com/alanbriolat/video-wall/util"
)

const (
	DefaultTool    = "yt-dlp"
	DefaultTimeout = 30 * time.Second
	// Capped resolution, falling back to whatever is smallest.
	DefaultLowFormat = "best[height<=480][ext=mp4]/best[height<=480]/worst"
	// Prefer H.264 for hardware decoding, then anything mp4, then anything.
	DefaultHighFormat = "best[vcodec^=avc1]/best[ext=mp4]/best"
)

type Runner interface {
	Run(ctx context.Context, inv invoker.Invocation) ([]byte, error)
}

type Config struct {
	Tool       string
	Timeout    time.Duration
	LowFormat  string
	HighFormat string
	Hosts      generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Tool:       DefaultTool,
		Timeout:    DefaultTimeout,
		LowFormat:  DefaultLowFormat,
		HighFormat: DefaultHighFormat,
		Hosts: generic.NewSet(
			"youtube.com",
			"m.youtube.com",
			"youtu.be",
		),
	}
}

func (c Config) Provider(runner Runner) video_wall.Provider {
	return video_wall.Provider{
		Name: "ytdlp",
		Match: func(s string) (video_wall.Resolver, error) {
			return c.Match(runner, s)
		},
	}
}

func (c Config) Match(runner Runner, s string) (video_wall.Resolver, error) {
	parsedURL, err := util.ParseHTTPURL(s)
	if err != nil {
		return nil, err
	}
	if !c.Hosts.Contains(util.Host(s)) {
		return nil, fmt.Errorf("unrecognised hostname")
	}
	videoID, err := extractVideoID(parsedURL)
	if err != nil {
		return nil, err
	}
	return &resolver{config: c, runner: runner, videoID: videoID}, nil
}

type resolver struct {
	config  Config
	runner  Runner
	videoID string
}

func (r *resolver) String() string {
	return fmt.Sprintf("ytdlp[%s]", r.videoID)
}

func (r *resolver) format(q video_wall.Quality) string {
	if q == video_wall.QualityHigh {
		return r.config.HighFormat
	}
	return r.config.LowFormat
}

// Resolve runs yt-dlp -g and returns the first URL it prints; with a combined format that's the manifest.
func (r *resolver) Resolve(ctx context.Context, originURL string, q video_wall.Quality) (string, error) {
	out, err := r.runner.Run(ctx, invoker.Invocation{
		Tool:    r.config.Tool,
		Args:    []string{"--no-warnings", "--no-playlist", "-f", r.format(q), "-g", originURL},
		Timeout: r.config.Timeout,
	})
	if err != nil {
		return "", err
	}
	line := firstLine(out)
	if !util.IsHTTPURL(line) {
		return "", fmt.Errorf("%w: %q", util.ErrInvalidURL, line)
	}
	return line, nil
}

func firstLine(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}

// Extract video ID from YouTube URL.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/(watch|details)?v={VIDEO_ID}
//	http(s?)://(www|m).youtube.com/(v|live|embed|shorts)/{VIDEO_ID}
//	http(s?)://youtu.be/{VIDEO_ID}
func extractVideoID(u *url.URL) (string, error) {
	var id string
	switch util.Host(u.String()) {
	case "youtube.com", "m.youtube.com":
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		switch {
		case u.Path == "/watch" || u.Path == "/details":
			if !u.Query().Has("v") {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
			id = u.Query().Get("v")
		case len(parts) >= 2 && generic.NewSet("v", "live", "embed", "shorts").Contains(parts[0]):
			id = parts[1]
		}
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	default:
		return "", fmt.Errorf("unrecognised hostname")
	}
	if id == "" {
		return "", fmt.Errorf("could not extract video ID")
	}
	return id, nil
}

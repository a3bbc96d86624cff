// Package download acquires the cookie-gated vendor stream into a local, audio-free, looping asset.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall/internal/cookie"
	"github.com/alanbriolat/video-wall/internal/invoker"
	"github.com/alanbriolat/video-wall/internal/metrics"
	"github.com/alanbriolat/video-wall/util"
)

const (
	DefaultName             = "feratel"
	DefaultTool             = "ffmpeg"
	DefaultDownloadTimeout  = 5 * time.Minute
	DefaultTranscodeTimeout = 2 * time.Minute
	DefaultMinSize          = 1 << 20
)

var (
	ErrDownloadFailed  = errors.New("download failed")
	ErrTranscodeFailed = errors.New("audio strip failed")
	ErrTooSmall        = errors.New("downloaded file too small")
	ErrNoAsset         = errors.New("no published asset")
)

// A Runner runs one external tool invocation; *invoker.Invoker is the real implementation.
type Runner interface {
	Run(ctx context.Context, inv invoker.Invocation) ([]byte, error)
}

// Asset describes the currently published file.
type Asset struct {
	Path        string    `json:"path"`
	PublishedAt time.Time `json:"published_at"`
	Size        int64     `json:"size"`
	SourceURL   string    `json:"source_url,omitempty"`
}

type config struct {
	dir              string
	name             string
	tool             string
	downloadTimeout  time.Duration
	transcodeTimeout time.Duration
	minSize          int64
	maxDuration      time.Duration
	referer          string
	userAgent        string
}

type Option func(*config)

// WithDir sets the cache directory holding the temp and published files. Created on demand.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithName sets the file name stem, e.g. "feratel" gives "feratel-current.mp4".
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

func WithTool(tool string) Option {
	return func(c *config) {
		c.tool = tool
	}
}

func WithTimeouts(download, transcode time.Duration) Option {
	return func(c *config) {
		if download > 0 {
			c.downloadTimeout = download
		}
		if transcode > 0 {
			c.transcodeTimeout = transcode
		}
	}
}

func WithMinSize(n int64) Option {
	return func(c *config) {
		c.minSize = n
	}
}

// WithMaxDuration caps how much of a live stream is captured. Zero captures until the stream ends.
func WithMaxDuration(d time.Duration) Option {
	return func(c *config) {
		c.maxDuration = d
	}
}

func WithReferer(referer string) Option {
	return func(c *config) {
		c.referer = referer
	}
}

func WithUserAgent(ua string) Option {
	return func(c *config) {
		c.userAgent = ua
	}
}

// Pipeline downloads, strips and publishes the vendor asset. Acquire calls are serialized, so the published path has
// a single writer.
type Pipeline struct {
	config config
	runner Runner
	mu     sync.Mutex
	log    *zap.SugaredLogger
}

func New(runner Runner, opts ...Option) *Pipeline {
	c := config{
		dir:              filepath.Join(os.TempDir(), "video-wall"),
		name:             DefaultName,
		tool:             DefaultTool,
		downloadTimeout:  DefaultDownloadTimeout,
		transcodeTimeout: DefaultTranscodeTimeout,
		minSize:          DefaultMinSize,
		userAgent:        util.BrowserUserAgent,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &Pipeline{
		config: c,
		runner: runner,
		log:    zap.S().Named("download"),
	}
}

func (p *Pipeline) Dir() string {
	return p.config.dir
}

func (p *Pipeline) TempPath() string {
	return filepath.Join(p.config.dir, p.config.name+"-temp.mp4")
}

func (p *Pipeline) NoAudioPath() string {
	return filepath.Join(p.config.dir, p.config.name+"-temp-no-audio.mp4")
}

func (p *Pipeline) CurrentPath() string {
	return filepath.Join(p.config.dir, p.config.name+"-current.mp4")
}

func (p *Pipeline) SidecarPath() string {
	return filepath.Join(p.config.dir, p.config.name+"-current.json")
}

// Acquire runs the whole pipeline and returns the published path.
func (p *Pipeline) Acquire(ctx context.Context, streamURL string, credential cookie.Credential) (string, error) {
	asset, err := p.AcquireAsset(ctx, streamURL, credential)
	if err != nil {
		return "", err
	}
	return asset.Path, nil
}

// AcquireAsset is Acquire, returning the full description of the newly published asset. Every temp file created is
// removed before a failure is returned, and the previously published asset is untouched on failure.
func (p *Pipeline) AcquireAsset(ctx context.Context, streamURL string, credential cookie.Credential) (asset Asset, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(p.config.dir, 0755); err != nil {
		return Asset{}, err
	}
	defer func() {
		if cleanupErr := p.removeTemps(); cleanupErr != nil {
			p.log.Warnf("cleanup failed: %v", cleanupErr)
		}
	}()

	log := p.log.With("url", streamURL)
	log.Info("downloading")
	_, err = p.runner.Run(ctx, invoker.Invocation{
		Tool:             p.config.tool,
		Args:             p.downloadArgs(streamURL, credential),
		Timeout:          p.config.downloadTimeout,
		AllowEmptyOutput: true,
	})
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if err := p.checkSize(p.TempPath()); err != nil {
		return Asset{}, err
	}

	log.Info("stripping audio")
	_, err = p.runner.Run(ctx, invoker.Invocation{
		Tool:             p.config.tool,
		Args:             p.stripArgs(),
		Timeout:          p.config.transcodeTimeout,
		AllowEmptyOutput: true,
	})
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %w", ErrTranscodeFailed, err)
	}
	if err := p.checkSize(p.NoAudioPath()); err != nil {
		return Asset{}, err
	}
	if err := os.Remove(p.TempPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Asset{}, err
	}

	info, err := os.Stat(p.NoAudioPath())
	if err != nil {
		return Asset{}, err
	}
	if err := os.Rename(p.NoAudioPath(), p.CurrentPath()); err != nil {
		return Asset{}, fmt.Errorf("publish: %w", err)
	}
	asset = Asset{
		Path:        p.CurrentPath(),
		PublishedAt: time.Now(),
		Size:        info.Size(),
		SourceURL:   streamURL,
	}
	if err := p.writeSidecar(asset); err != nil {
		// The asset itself is published; only restart recovery is affected.
		log.Warnf("failed to write sidecar: %v", err)
	}
	metrics.AssetPublished.Inc()
	metrics.AssetBytes.Set(float64(asset.Size))
	log.Infof("published %s (%d bytes)", asset.Path, asset.Size)
	return asset, nil
}

// Purge removes temp files left behind by a previous process.
func (p *Pipeline) Purge() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result error
	if err := p.removeTemps(); err != nil {
		result = multierror.Append(result, err)
	}
	// renameio stages the sidecar as a dot-file alongside it.
	pending, _ := filepath.Glob(filepath.Join(p.config.dir, "."+filepath.Base(p.SidecarPath())+"*"))
	for _, path := range pending {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// Current returns the published asset, if any, from the sidecar written at publish time.
func (p *Pipeline) Current() (Asset, error) {
	info, err := os.Stat(p.CurrentPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Asset{}, ErrNoAsset
		}
		return Asset{}, err
	}
	asset := Asset{Path: p.CurrentPath(), PublishedAt: info.ModTime(), Size: info.Size()}
	if data, err := os.ReadFile(p.SidecarPath()); err == nil {
		var sidecar Asset
		if err := json.Unmarshal(data, &sidecar); err == nil && sidecar.Size == info.Size() {
			asset.PublishedAt = sidecar.PublishedAt
			asset.SourceURL = sidecar.SourceURL
		}
	}
	return asset, nil
}

func (p *Pipeline) downloadArgs(streamURL string, credential cookie.Credential) []string {
	var headers strings.Builder
	if !credential.Empty() {
		headers.WriteString("Cookie: " + credential.Header() + "\r\n")
	}
	if p.config.referer != "" {
		headers.WriteString("Referer: " + p.config.referer + "\r\n")
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	if headers.Len() > 0 {
		args = append(args, "-headers", headers.String())
	}
	if p.config.userAgent != "" {
		args = append(args, "-user_agent", p.config.userAgent)
	}
	args = append(args, "-i", streamURL)
	if p.config.maxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.0f", p.config.maxDuration.Seconds()))
	}
	return append(args, "-c", "copy", "-bsf:a", "aac_adtstoasc", "-f", "mp4", p.TempPath())
}

func (p *Pipeline) stripArgs() []string {
	return []string{"-hide_banner", "-loglevel", "error", "-y", "-i", p.TempPath(), "-an", "-c:v", "copy", "-f", "mp4", p.NoAudioPath()}
}

func (p *Pipeline) checkSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s was not written", ErrTooSmall, filepath.Base(path))
		}
		return err
	}
	if info.Size() <= p.config.minSize {
		return fmt.Errorf("%w: %d bytes", ErrTooSmall, info.Size())
	}
	return nil
}

func (p *Pipeline) removeTemps() error {
	var result error
	for _, path := range []string{p.TempPath(), p.NoAudioPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func (p *Pipeline) writeSidecar(asset Asset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return err
	}
	return renameio.WriteFile(p.SidecarPath(), data, 0644)
}

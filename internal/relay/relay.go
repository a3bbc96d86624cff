// Package relay is the loopback HTTP server the vendor feed is played through: either a cookie-injecting proxy to the
// authenticated upstream, or a range-capable file server for the locally published asset.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/download"
	"github.com/alanbriolat/video-wall/internal/metrics"
	"github.com/alanbriolat/video-wall/provider/feratel"
	"github.com/alanbriolat/video-wall/util"
)

const DefaultAddr = "127.0.0.1:8765"

type Mode string

const (
	// ModeDownload serves the published asset on /asset.
	ModeDownload Mode = "download"
	// ModeRelay proxies the upstream stream on /stream.
	ModeRelay Mode = "relay"
)

func (m Mode) Valid() bool {
	return m == ModeDownload || m == ModeRelay
}

var (
	ErrNotLoopback = errors.New("relay must listen on a loopback address")
	ErrInvalidMode = errors.New("invalid relay mode")
)

// forwardedHeaders are copied from the upstream response to the client.
var forwardedHeaders = []string{"Content-Length", "Content-Range", "Content-Type", "Accept-Ranges"}

type UpstreamSource interface {
	Upstream() (feratel.Upstream, bool)
}

type AssetSource interface {
	Current() (download.Asset, error)
}

type SnapshotSource interface {
	Snapshot() map[video_wall.FeedID]video_wall.Descriptor
}

// WindowReporter receives the host window's content origin.
type WindowReporter interface {
	MoveTo(x, y int) bool
}

type Config struct {
	Addr    string
	Mode    Mode
	Referer string
	Client  *http.Client
}

type Server struct {
	config   Config
	upstream UpstreamSource
	asset    AssetSource
	snapshot SnapshotSource
	window   WindowReporter
	router   chi.Router
	log      *zap.SugaredLogger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

type Option func(*Server)

func WithUpstream(u UpstreamSource) Option {
	return func(s *Server) {
		s.upstream = u
	}
}

func WithAsset(a AssetSource) Option {
	return func(s *Server) {
		s.asset = a
	}
}

func WithSnapshot(src SnapshotSource) Option {
	return func(s *Server) {
		s.snapshot = src
	}
}

// WithWindow enables PUT /window, through which the host page reports where its content area is on screen.
func WithWindow(wr WindowReporter) Option {
	return func(s *Server) {
		s.window = wr
	}
}

func New(config Config, opts ...Option) (*Server, error) {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.Mode == "" {
		config.Mode = ModeDownload
	}
	if !config.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, config.Mode)
	}
	if err := CheckAddr(config.Addr); err != nil {
		return nil, err
	}
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	s := &Server{
		config: config,
		log:    zap.S().Named("relay"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s, nil
}

// CheckAddr rejects listen addresses that are not loopback.
func CheckAddr(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotLoopback, addr)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.countRequests)
	switch s.config.Mode {
	case ModeRelay:
		r.Get("/stream", s.handleStream)
	case ModeDownload:
		r.Get("/asset", s.handleAsset)
	}
	r.Get("/snapshot", s.handleSnapshot)
	if s.window != nil {
		r.Put("/window", s.handleWindow)
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Mode() Mode {
	return s.config.Mode
}

// PlaybackPath is the route a player should be pointed at for the active mode.
func (s *Server) PlaybackPath() string {
	if s.config.Mode == ModeRelay {
		return "/stream"
	}
	return "/asset"
}

// Start listens on the configured address and serves in the background until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("relay already started")
	}
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go func(server *http.Server) {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("relay server failed: %v", err)
		}
	}(s.server)
	s.log.Infof("listening on http://%s (%s mode)", listener.Addr(), s.config.Mode)
	return nil
}

// URL returns the absolute URL of path on the running server.
func (s *Server) URL(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := s.config.Addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	return "http://" + addr + path
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Run starts the server and blocks until ctx is done, then shuts it down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.upstream == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	upstream, ok := s.upstream.Upstream()
	if !ok {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream.StreamURL, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		rangeHeader = "bytes=0-"
	}
	req.Header.Set("Range", rangeHeader)
	req.Header.Set("Cookie", upstream.Credential.Header())
	req.Header.Set("User-Agent", util.BrowserUserAgent)
	if s.config.Referer != "" {
		req.Header.Set("Referer", s.config.Referer)
	}

	resp, err := s.config.Client.Do(req)
	if err != nil {
		s.log.Warnf("upstream request failed: %v", err)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	for _, name := range forwardedHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && r.Context().Err() == nil {
		s.log.Debugf("relay copy ended: %v", err)
	}
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if s.asset == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	asset, err := s.asset.Current()
	if err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	// Opened per request: a publish renames over the path, and an open handle keeps reading the old file.
	f, err := os.Open(asset.Path)
	if err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, filepath.Base(asset.Path), asset.PublishedAt, f)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		http.Error(w, "no catalog", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot.Snapshot()); err != nil {
		s.log.Warnf("failed to encode snapshot: %v", err)
	}
}

type windowOrigin struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	var origin windowOrigin
	dec := json.NewDecoder(io.LimitReader(r.Body, 1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&origin); err != nil || origin.X == nil || origin.Y == nil {
		http.Error(w, `expected {"x": int, "y": int}`, http.StatusBadRequest)
		return
	}
	if s.window.MoveTo(*origin.X, *origin.Y) {
		s.log.Debugf("host window moved to %d,%d", *origin.X, *origin.Y)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			} else {
				route = "unmatched"
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RelayRequests.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
	})
}

// Package scrape fetches vendor web pages and extracts an embedded stream URL from them.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall/util"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodySize    = 8 << 20
)

var (
	ErrNoMatch = errors.New("could not find any stream URL in page")
	ErrHTTP    = errors.New("HTTP request failed")
	ErrTimeout = errors.New("page fetch timed out")
)

type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%v: %s returned %d %s", ErrHTTP, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

// A RequestOption customises the page request, e.g. to present a session cookie.
type RequestOption func(req *http.Request)

func WithCookie(header string) RequestOption {
	return func(req *http.Request) {
		if header != "" {
			req.Header.Set("Cookie", header)
		}
	}
}

func WithReferer(referer string) RequestOption {
	return func(req *http.Request) {
		if referer != "" {
			req.Header.Set("Referer", referer)
		}
	}
}

func WithUserAgent(ua string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("User-Agent", ua)
	}
}

type Scraper struct {
	client     *http.Client
	cdnHost    string
	timeout    time.Duration
	strategies []Strategy
	log        *zap.SugaredLogger
}

type Option func(*Scraper)

func WithClient(client *http.Client) Option {
	return func(s *Scraper) {
		s.client = client
	}
}

func WithCDNHost(host string) Option {
	return func(s *Scraper) {
		s.cdnHost = host
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.timeout = d
	}
}

func WithStrategies(strategies ...Strategy) Option {
	return func(s *Scraper) {
		s.strategies = strategies
	}
}

func New(opts ...Option) *Scraper {
	s := &Scraper{
		client:     http.DefaultClient,
		cdnHost:    DefaultCDNHost,
		timeout:    DefaultTimeout,
		strategies: DefaultStrategies,
		log:        zap.S().Named("scrape"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches pageURL and returns the first stream URL found by the configured strategies. The whole exchange,
// including reading the body, is bounded by the scraper's timeout.
func (s *Scraper) Scrape(ctx context.Context, pageURL string, opts ...RequestOption) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.fetch(ctx, pageURL, opts)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s after %v", ErrTimeout, pageURL, s.timeout)
		}
		return "", err
	}
	url, strategy, ok := Extract(s.strategies, body, s.cdnHost)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, pageURL)
	}
	s.log.Debugf("using %s URL from %s", strategy, pageURL)
	return url, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string, opts []RequestOption) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", util.BrowserUserAgent)
	for _, opt := range opts {
		opt(req)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHTTP, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{URL: pageURL, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrHTTP, err)
	}
	return string(data), nil
}

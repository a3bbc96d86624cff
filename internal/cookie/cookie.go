// Package cookie obtains the session cookies a vendor portal requires before it will serve its stream.
package cookie

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall/util"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultSessionField   = "PHPSESSID"
	DefaultSecondaryField = "SERVERID"
)

var (
	ErrMissingCookie = errors.New("required cookie missing from response")
	ErrHTTP          = errors.New("HTTP request failed")
	ErrTimeout       = errors.New("cookie fetch timed out")
)

// Credential is a set of named cookie values, replaced wholesale on every successful fetch.
type Credential map[string]string

// Header renders the credential as a Cookie request header value, fields in name order.
func (c Credential) Header() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, (&http.Cookie{Name: name, Value: c[name]}).String())
	}
	return strings.Join(parts, "; ")
}

func (c Credential) Empty() bool {
	return len(c) == 0
}

// Clone returns a copy that can be handed to another goroutine.
func (c Credential) Clone() Credential {
	if c == nil {
		return nil
	}
	clone := make(Credential, len(c))
	for k, v := range c {
		clone[k] = v
	}
	return clone
}

type Config struct {
	Endpoint       string
	SessionField   string
	SecondaryField string
	Timeout        time.Duration
	Client         *http.Client
}

type Fetcher struct {
	config Config
	client *http.Client
	log    *zap.SugaredLogger
}

func New(config Config) *Fetcher {
	if config.SessionField == "" {
		config.SessionField = DefaultSessionField
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	base := config.Client
	if base == nil {
		base = http.DefaultClient
	}
	// Session cookies are set on the first response, which is frequently a redirect to a landing page.
	client := *base
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Fetcher{
		config: config,
		client: &client,
		log:    zap.S().Named("cookie"),
	}
}

// Fetch performs a single GET against the vendor endpoint and extracts the session cookies from it.
func (f *Fetcher) Fetch(ctx context.Context) (Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", util.BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v", ErrTimeout, f.config.Timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrHTTP, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrHTTP, f.config.Endpoint, resp.StatusCode)
	}

	cookies := make(map[string]string)
	for _, c := range resp.Cookies() {
		cookies[c.Name] = c.Value
	}
	credential := Credential{}
	if v, ok := cookies[f.config.SessionField]; ok && v != "" {
		credential[f.config.SessionField] = v
	} else {
		return nil, fmt.Errorf("%w: %s", ErrMissingCookie, f.config.SessionField)
	}
	if f.config.SecondaryField != "" {
		if v, ok := cookies[f.config.SecondaryField]; ok && v != "" {
			credential[f.config.SecondaryField] = v
		} else {
			f.log.Debugf("optional cookie %s not set", f.config.SecondaryField)
		}
	}
	return credential, nil
}

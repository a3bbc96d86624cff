package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraper_Scrape(t *testing.T) {
	assert := assert_.New(t)
	requests := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Header.Clone()
		_, _ = w.Write([]byte(`{"android_livepath":"\/fecnetwork\/4054.flv\/playlist.m3u8"}`))
	}))
	defer server.Close()

	s := New(WithClient(server.Client()))
	url, err := s.Scrape(context.Background(), server.URL, WithCookie("PHPSESSID=abc"), WithReferer("https://www.feratel.com/"))
	assert.Nil(err)
	assert.Equal("https://videos-3.earthcam.com/fecnetwork/4054.flv/playlist.m3u8", url)
	header := <-requests
	assert.Equal("PHPSESSID=abc", header.Get("Cookie"))
	assert.Equal("https://www.feratel.com/", header.Get("Referer"))
	assert.Contains(header.Get("User-Agent"), "Mozilla")
}

func TestScraper_HTTPError(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := New().Scrape(context.Background(), server.URL)
	assert.ErrorIs(err, ErrHTTP)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(http.StatusForbidden, httpErr.StatusCode)
}

func TestScraper_NoMatch(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer server.Close()

	_, err := New().Scrape(context.Background(), server.URL)
	assert.ErrorIs(err, ErrNoMatch)
}

func TestScraper_Timeout(t *testing.T) {
	assert := assert_.New(t)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := New(WithTimeout(100*time.Millisecond)).Scrape(context.Background(), server.URL)
	assert.ErrorIs(err, ErrTimeout)
	assert.Less(time.Since(start), 2*time.Second)
}

func TestScraper_ConnectionRefused(t *testing.T) {
	assert := assert_.New(t)
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := New().Scrape(context.Background(), url)
	assert.ErrorIs(err, ErrHTTP)
}

package util

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL = errors.New("not an absolute http(s) URL")
)

var httpSchemes = map[string]bool{"http": true, "https": true}

// IsHTTPURL reports whether s parses as an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	parsed, err := url.Parse(s)
	if err != nil {
		return false
	}
	return httpSchemes[parsed.Scheme] && parsed.Host != ""
}

// ParseHTTPURL parses s, returning ErrInvalidURL for anything that IsHTTPURL would reject.
func ParseHTTPURL(s string) (*url.URL, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !httpSchemes[parsed.Scheme] || parsed.Host == "" {
		return nil, ErrInvalidURL
	}
	return parsed, nil
}

// ResolveAgainstHost turns a path found in a page into a full URL:
//
//	"https://a/b.m3u8" -> unchanged
//	"/b.m3u8"          -> host + "/b.m3u8"
//	"b.m3u8"           -> host + "/b.m3u8"
func ResolveAgainstHost(host string, path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	host = strings.TrimSuffix(host, "/")
	if strings.HasPrefix(path, "/") {
		return host + path
	}
	return host + "/" + path
}

// Host returns the lowercased hostname of s without any "www." prefix, or "" if s doesn't parse.
func Host(s string) string {
	parsed, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// BrowserUserAgent is sent to vendor pages that refuse obvious non-browser clients.
const BrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

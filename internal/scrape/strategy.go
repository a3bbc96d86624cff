package scrape

import (
	"regexp"
	"strings"

	"github.com/alanbriolat/video-wall/util"
)

const DefaultCDNHost = "https://videos-3.earthcam.com"

// A Strategy extracts a stream URL from a page body, relative paths being resolved against cdnHost.
type Strategy struct {
	Name    string
	Extract func(body string, cdnHost string) (string, bool)
}

var (
	androidLivePathRe      = fieldRe("android_livepath")
	html5StreamingDomainRe = fieldRe("html5_streamingdomain")
	html5StreamPathRe      = fieldRe("html5_streampath")
	streamRe               = fieldRe("stream")
	escapedM3U8Re          = regexp.MustCompile(`https?:\\/\\/[^"]+\.m3u8[^"\s]*`)
)

func fieldRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + regexp.QuoteMeta(name) + `"\s*:\s*"([^"]+)"`)
}

func unescape(s string) string {
	return strings.ReplaceAll(s, `\/`, "/")
}

func field(re *regexp.Regexp, body string) (string, bool) {
	if m := re.FindStringSubmatch(body); m != nil {
		return unescape(m[1]), true
	}
	return "", false
}

// DefaultStrategies in priority order; the first one that matches wins.
var DefaultStrategies = []Strategy{
	{
		Name: "android_livepath",
		Extract: func(body string, cdnHost string) (string, bool) {
			path, ok := field(androidLivePathRe, body)
			if !ok {
				return "", false
			}
			return util.ResolveAgainstHost(cdnHost, path), true
		},
	},
	{
		Name: "html5_streamingdomain+html5_streampath",
		Extract: func(body string, _ string) (string, bool) {
			domain, ok := field(html5StreamingDomainRe, body)
			if !ok {
				return "", false
			}
			path, ok := field(html5StreamPathRe, body)
			if !ok {
				return "", false
			}
			return domain + path, true
		},
	},
	{
		Name: "stream",
		Extract: func(body string, _ string) (string, bool) {
			return field(streamRe, body)
		},
	},
	{
		Name: "html5_streampath",
		Extract: func(body string, cdnHost string) (string, bool) {
			path, ok := field(html5StreamPathRe, body)
			if !ok {
				return "", false
			}
			return util.ResolveAgainstHost(cdnHost, path), true
		},
	},
	{
		Name: "escaped_m3u8",
		Extract: func(body string, _ string) (string, bool) {
			if m := escapedM3U8Re.FindString(body); m != "" {
				return unescape(m), true
			}
			return "", false
		},
	},
}

// Extract runs strategies in order against body, returning the URL and the name of the strategy that found it.
func Extract(strategies []Strategy, body string, cdnHost string) (url string, strategy string, ok bool) {
	for _, s := range strategies {
		if url, ok := s.Extract(body, cdnHost); ok && url != "" {
			return url, s.Name, true
		}
	}
	return "", "", false
}

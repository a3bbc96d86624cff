package util

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestIsHTTPURL(t *testing.T) {
	assert := assert_.New(t)
	assert.True(IsHTTPURL("https://videos-3.earthcam.com/fecnetwork/4054.flv/playlist.m3u8"))
	assert.True(IsHTTPURL("http://127.0.0.1:8765/stream"))
	assert.False(IsHTTPURL("ftp://example.com/x"))
	assert.False(IsHTTPURL("/just/a/path"))
	assert.False(IsHTTPURL("https://"))
	assert.False(IsHTTPURL("%zz"))
}

func TestParseHTTPURL(t *testing.T) {
	assert := assert_.New(t)
	u, err := ParseHTTPURL("https://www.youtube.com/watch?v=lWaDZ0E5xsw")
	assert.Nil(err)
	assert.Equal("www.youtube.com", u.Host)
	_, err = ParseHTTPURL("file:///etc/passwd")
	assert.ErrorIs(err, ErrInvalidURL)
}

func TestResolveAgainstHost(t *testing.T) {
	assert := assert_.New(t)
	host := "https://videos-3.earthcam.com"
	assert.Equal("https://videos-3.earthcam.com/foo/bar.m3u8", ResolveAgainstHost(host, "/foo/bar.m3u8"))
	assert.Equal("https://videos-3.earthcam.com/foo/bar.m3u8", ResolveAgainstHost(host, "foo/bar.m3u8"))
	assert.Equal("https://videos-3.earthcam.com/foo/bar.m3u8", ResolveAgainstHost(host+"/", "/foo/bar.m3u8"))
	assert.Equal("https://other.example/x.m3u8", ResolveAgainstHost(host, "https://other.example/x.m3u8"))
}

func TestHost(t *testing.T) {
	assert := assert_.New(t)
	assert.Equal("youtube.com", Host("https://www.youtube.com/live/0jUGiYZKAMg"))
	assert.Equal("youtu.be", Host("https://YOUTU.BE/abc"))
	assert.Equal("", Host("%zz"))
}

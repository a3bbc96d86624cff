package scrape

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func extract(body string) (string, string, bool) {
	return Extract(DefaultStrategies, body, DefaultCDNHost)
}

func TestExtract_AndroidLivePathBeatsStream(t *testing.T) {
	assert := assert_.New(t)
	body := `{"stream":"https:\/\/other.example\/token.m3u8","android_livepath":"https:\/\/videos-3.earthcam.com\/fecnetwork\/4054.flv\/playlist.m3u8"}`
	url, strategy, ok := extract(body)
	assert.True(ok)
	assert.Equal("android_livepath", strategy)
	assert.Equal("https://videos-3.earthcam.com/fecnetwork/4054.flv/playlist.m3u8", url)
}

func TestExtract_RootedPath(t *testing.T) {
	assert := assert_.New(t)
	url, _, ok := extract(`"android_livepath": "/foo/bar.m3u8"`)
	assert.True(ok)
	assert.Equal("https://videos-3.earthcam.com/foo/bar.m3u8", url)
}

func TestExtract_RelativePath(t *testing.T) {
	assert := assert_.New(t)
	url, _, ok := extract(`"android_livepath":"foo\/bar.m3u8"`)
	assert.True(ok)
	assert.Equal("https://videos-3.earthcam.com/foo/bar.m3u8", url)
}

func TestExtract_DomainAndPath(t *testing.T) {
	assert := assert_.New(t)
	body := `var cam = {"html5_streamingdomain":"https:\/\/videos-3.earthcam.com","html5_streampath":"\/fecnetwork\/hdtimes10.flv\/playlist.m3u8","stream":"https:\/\/ignored.example\/x.m3u8"};`
	url, strategy, ok := extract(body)
	assert.True(ok)
	assert.Equal("html5_streamingdomain+html5_streampath", strategy)
	assert.Equal("https://videos-3.earthcam.com/fecnetwork/hdtimes10.flv/playlist.m3u8", url)
}

func TestExtract_Stream(t *testing.T) {
	assert := assert_.New(t)
	url, strategy, ok := extract(`{"stream":"https:\/\/cdn.example\/live.m3u8?t=abc","html5_streampath":"\/ignored.m3u8"}`)
	assert.True(ok)
	assert.Equal("stream", strategy)
	assert.Equal("https://cdn.example/live.m3u8?t=abc", url)
}

func TestExtract_StreamPathAlone(t *testing.T) {
	assert := assert_.New(t)
	url, strategy, ok := extract(`{"html5_streampath":"\/fecnetwork\/4054.flv\/playlist.m3u8"}`)
	assert.True(ok)
	assert.Equal("html5_streampath", strategy)
	assert.Equal("https://videos-3.earthcam.com/fecnetwork/4054.flv/playlist.m3u8", url)

	url, _, ok = extract(`{"html5_streampath":"https:\/\/full.example\/a.m3u8"}`)
	assert.True(ok)
	assert.Equal("https://full.example/a.m3u8", url)
}

func TestExtract_EscapedM3U8(t *testing.T) {
	assert := assert_.New(t)
	body := `<script>player.load("https:\/\/wms.feratel.com\/hls\/12\/master.m3u8?dcsdesign=WTP")</script>`
	url, strategy, ok := extract(body)
	assert.True(ok)
	assert.Equal("escaped_m3u8", strategy)
	assert.Equal("https://wms.feratel.com/hls/12/master.m3u8?dcsdesign=WTP", url)
}

func TestExtract_NoMatch(t *testing.T) {
	assert := assert_.New(t)
	_, _, ok := extract(`<html><body>no stream here https://plain.example/a.m3u8</body></html>`)
	assert.False(ok)
	_, _, ok = extract(``)
	assert.False(ok)
}

func TestExtract_CustomHost(t *testing.T) {
	assert := assert_.New(t)
	url, _, ok := Extract(DefaultStrategies, `"android_livepath":"/x.m3u8"`, "https://cdn.test/")
	assert.True(ok)
	assert.Equal("https://cdn.test/x.m3u8", url)
}

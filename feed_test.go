package video_wall

import (
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestDescriptor_PlaybackURL(t *testing.T) {
	assert := assert_.New(t)

	d := Descriptor{ID: "video-2", Kind: DynamicResolved, Qualities: Qualities{Low: "low.m3u8", High: "high.m3u8"}}
	assert.Equal("low.m3u8", d.PlaybackURL())
	assert.Equal(Value{Qualities: d.Qualities}, d.Value())

	s := Descriptor{ID: "video-3", Kind: StaticManifest, ManifestURL: "https://cdn/playlist.m3u8"}
	assert.Equal("https://cdn/playlist.m3u8", s.PlaybackURL())

	c := Descriptor{ID: "video-1", Kind: CookieGatedDownload, AssetPath: "/cache/feratel-current.mp4"}
	assert.Equal("/cache/feratel-current.mp4", c.PlaybackURL())

	var empty Descriptor
	assert.Equal("", empty.PlaybackURL())
}

func TestSourceKind_Valid(t *testing.T) {
	assert := assert_.New(t)
	assert.True(DynamicResolved.Valid())
	assert.True(StaticManifest.Valid())
	assert.True(CookieGatedDownload.Valid())
	assert.False(SourceKind("hls").Valid())
}

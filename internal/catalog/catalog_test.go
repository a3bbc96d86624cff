package catalog

import (
	"errors"
	"sync"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/util"
)

func testFeeds() []video_wall.Descriptor {
	return []video_wall.Descriptor{
		{ID: "video-2", Kind: video_wall.DynamicResolved, OriginURL: "https://www.youtube.com/watch?v=lWaDZ0E5xsw"},
		{ID: "video-3", Kind: video_wall.StaticManifest, ManifestURL: "https://cdn.example/playlist.m3u8?token=a"},
		{ID: "video-4", Kind: video_wall.DynamicResolved, OriginURL: "https://www.youtube.com/live/0jUGiYZKAMg"},
		{ID: "video-1", Kind: video_wall.CookieGatedDownload, OriginURL: "https://webtv.feratel.com/webtv/?cam=5132"},
	}
}

func newCatalog(t *testing.T) *Catalog {
	c, err := New(testFeeds())
	require.Nil(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	assert := assert_.New(t)
	_, err := New([]video_wall.Descriptor{{ID: "a", Kind: "bogus"}})
	assert.NotNil(err)
	_, err = New([]video_wall.Descriptor{{ID: "a", Kind: video_wall.StaticManifest}, {ID: "a", Kind: video_wall.StaticManifest}})
	assert.ErrorIs(err, ErrDuplicate)
}

func TestCatalog_ApplyResolved(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert_.New(t)
	c := newCatalog(t)
	defer c.Close()

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	q := video_wall.Qualities{Low: "https://a.example/low.m3u8", High: "https://a.example/high.m3u8"}
	d, err := c.ApplyResolved("video-2", video_wall.Value{Qualities: q}, at)
	assert.Nil(err)
	assert.Equal(q, d.Qualities)
	assert.Equal(at, d.LastRefresh)

	got, ok := c.Get("video-2")
	assert.True(ok)
	assert.Equal(d, got)

	d, err = c.ApplyResolved("video-1", video_wall.Value{URL: "/cache/feratel-current.mp4"}, at)
	assert.Nil(err)
	assert.Equal("/cache/feratel-current.mp4", d.AssetPath)
}

func TestCatalog_ApplyResolved_PartialRejected(t *testing.T) {
	assert := assert_.New(t)
	c := newCatalog(t)
	defer c.Close()

	q := video_wall.Qualities{Low: "https://a.example/low.m3u8", High: "https://a.example/high.m3u8"}
	_, err := c.ApplyResolved("video-2", video_wall.Value{Qualities: q}, time.Now())
	require.Nil(t, err)
	before, _ := c.Get("video-2")

	_, err = c.ApplyResolved("video-2", video_wall.Value{Qualities: video_wall.Qualities{Low: "https://new.example/low.m3u8"}}, time.Now())
	assert.ErrorIs(err, ErrIncomplete)
	after, _ := c.Get("video-2")
	assert.Equal(before, after)
}

func TestCatalog_ApplyFailure_KeepsValue(t *testing.T) {
	assert := assert_.New(t)
	c := newCatalog(t)
	defer c.Close()

	at := time.Now()
	q := video_wall.Qualities{Low: "https://a.example/low.m3u8", High: "https://a.example/high.m3u8"}
	_, err := c.ApplyResolved("video-4", video_wall.Value{Qualities: q}, at)
	require.Nil(t, err)

	d, err := c.ApplyFailure("video-4", errors.New("yt-dlp exited with code 1: live event ended"), at.Add(time.Hour))
	assert.Nil(err)
	assert.Equal(q, d.Qualities)
	assert.Equal(at, d.LastRefresh)
	assert.Equal("yt-dlp exited with code 1: live event ended", d.LastError)

	// A later success clears the error.
	d, err = c.ApplyResolved("video-4", video_wall.Value{Qualities: q}, at.Add(2*time.Hour))
	assert.Nil(err)
	assert.Equal("", d.LastError)
}

func TestCatalog_Override(t *testing.T) {
	assert := assert_.New(t)
	c := newCatalog(t)
	defer c.Close()

	d, err := c.Override("video-3", "https://cdn.example/playlist.m3u8?token=b")
	assert.Nil(err)
	assert.Equal("https://cdn.example/playlist.m3u8?token=b", d.ManifestURL)
	assert.True(d.Overridden)
	assert.Equal("https://cdn.example/playlist.m3u8?token=b", d.PlaybackURL())

	d, err = c.Override("video-2", "https://other.example/x.m3u8")
	assert.Nil(err)
	assert.Equal(video_wall.Qualities{Low: "https://other.example/x.m3u8", High: "https://other.example/x.m3u8"}, d.Qualities)

	_, err = c.Override("video-1", "https://other.example/x.mp4")
	assert.ErrorIs(err, ErrWrongKind)
	_, err = c.Override("video-3", "not a url")
	assert.ErrorIs(err, util.ErrInvalidURL)
	_, err = c.Override("video-99", "https://other.example/x.m3u8")
	assert.ErrorIs(err, ErrUnknownFeed)
}

func TestCatalog_StaticNeverRefreshed(t *testing.T) {
	assert := assert_.New(t)
	c := newCatalog(t)
	defer c.Close()
	_, err := c.ApplyResolved("video-3", video_wall.Value{URL: "https://x.example/a.m3u8"}, time.Now())
	assert.ErrorIs(err, ErrWrongKind)
}

func TestCatalog_SnapshotIsolated(t *testing.T) {
	assert := assert_.New(t)
	c := newCatalog(t)
	defer c.Close()

	s := c.Snapshot()
	assert.Len(s, 4)
	delete(s, "video-2")
	assert.Len(c.Snapshot(), 4)

	assert.Equal([]video_wall.FeedID{"video-2", "video-4"}, c.IDs(video_wall.DynamicResolved))
	assert.Equal([]video_wall.FeedID{"video-1"}, c.IDs(video_wall.CookieGatedDownload))
}

func TestCatalog_ConcurrentWriters(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert_.New(t)
	c := newCatalog(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			q := video_wall.Qualities{Low: "https://a.example/low.m3u8", High: "https://a.example/high.m3u8"}
			_, _ = c.ApplyResolved("video-2", video_wall.Value{Qualities: q}, time.Now())
		}()
		go func() {
			defer wg.Done()
			d := c.Snapshot()["video-2"]
			// Either never resolved, or fully resolved.
			assert.True(d.Qualities == video_wall.Qualities{} || d.Qualities.Complete())
		}()
	}
	wg.Wait()
	c.Close()
}

func TestCatalog_Closed(t *testing.T) {
	assert := assert_.New(t)
	c := newCatalog(t)
	c.Close()
	_, err := c.Override("video-3", "https://x.example/a.m3u8")
	assert.ErrorIs(err, ErrClosed)
	// Reads keep working from the last snapshot.
	assert.Len(c.Snapshot(), 4)
}

package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/video-wall/internal/cookie"
	"github.com/alanbriolat/video-wall/internal/invoker"
)

// fakeRunner imitates ffmpeg by writing a file of a fixed size to the last argument.
type fakeRunner struct {
	mu           sync.Mutex
	downloadSize int
	stripSize    int
	downloadErr  error
	stripErr     error
	invocations  []invoker.Invocation
}

func (r *fakeRunner) Run(_ context.Context, inv invoker.Invocation) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, inv)
	target := inv.Args[len(inv.Args)-1]
	size, err := r.downloadSize, r.downloadErr
	if contains(inv.Args, "-an") {
		size, err = r.stripSize, r.stripErr
	}
	if size > 0 {
		if writeErr := os.WriteFile(target, make([]byte, size), 0644); writeErr != nil {
			return nil, writeErr
		}
	}
	return nil, err
}

func contains(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}

func listDir(t *testing.T, dir string) []string {
	entries, err := os.ReadDir(dir)
	require.Nil(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func countTemps(names []string) int {
	n := 0
	for _, name := range names {
		if strings.Contains(name, "-temp") {
			n++
		}
	}
	return n
}

var credential = cookie.Credential{"PHPSESSID": "abc"}

func TestPipeline_TooSmall(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	runner := &fakeRunner{downloadSize: 100, stripSize: 2 << 20}
	p := New(runner, WithDir(dir))

	_, err := p.Acquire(context.Background(), "https://example.com/live.m3u8", credential)
	assert.ErrorIs(err, ErrTooSmall)
	assert.Equal(0, countTemps(listDir(t, dir)))
	assert.Len(runner.invocations, 1)
	_, err = p.Current()
	assert.ErrorIs(err, ErrNoAsset)
}

func TestPipeline_TwoRunsLeaveOneAsset(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	runner := &fakeRunner{downloadSize: 2 << 20, stripSize: (2 << 20) - 10}
	p := New(runner, WithDir(dir), WithReferer("https://www.feratel.com/"))

	for i := 0; i < 2; i++ {
		path, err := p.Acquire(context.Background(), fmt.Sprintf("https://example.com/%d.m3u8", i), credential)
		require.Nil(t, err)
		assert.Equal(filepath.Join(dir, "feratel-current.mp4"), path)
	}
	assert.ElementsMatch([]string{"feratel-current.mp4", "feratel-current.json"}, listDir(t, dir))

	asset, err := p.Current()
	assert.Nil(err)
	assert.Equal(int64((2<<20)-10), asset.Size)
	assert.Equal("https://example.com/1.m3u8", asset.SourceURL)
	assert.False(asset.PublishedAt.IsZero())
}

func TestPipeline_DownloadArgs(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	runner := &fakeRunner{downloadSize: 2 << 20, stripSize: 2 << 20}
	p := New(runner, WithDir(dir), WithReferer("https://www.feratel.com/"))

	_, err := p.Acquire(context.Background(), "https://example.com/live.m3u8", credential)
	require.Nil(t, err)
	require.Len(t, runner.invocations, 2)

	download := runner.invocations[0]
	assert.Equal("ffmpeg", download.Tool)
	assert.True(download.AllowEmptyOutput)
	assert.Equal(DefaultDownloadTimeout, download.Timeout)
	assert.Contains(download.Args, "Cookie: PHPSESSID=abc\r\nReferer: https://www.feratel.com/\r\n")
	assert.Contains(download.Args, "https://example.com/live.m3u8")
	assert.Equal(p.TempPath(), download.Args[len(download.Args)-1])

	strip := runner.invocations[1]
	assert.Equal(DefaultTranscodeTimeout, strip.Timeout)
	assert.Contains(strip.Args, "-an")
	assert.Contains(strip.Args, p.TempPath())
	assert.Equal(p.NoAudioPath(), strip.Args[len(strip.Args)-1])
}

func TestPipeline_DownloadTimeout(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	runner := &fakeRunner{downloadSize: 5000, downloadErr: fmt.Errorf("%w: ffmpeg after 5m0s", invoker.ErrTimeout)}
	p := New(runner, WithDir(dir))

	_, err := p.Acquire(context.Background(), "https://example.com/live.m3u8", credential)
	assert.ErrorIs(err, ErrDownloadFailed)
	assert.ErrorIs(err, invoker.ErrTimeout)
	assert.Equal(0, countTemps(listDir(t, dir)))
}

func TestPipeline_TranscodeFailureKeepsPrevious(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	runner := &fakeRunner{downloadSize: 2 << 20, stripSize: 3 << 20}
	p := New(runner, WithDir(dir))
	_, err := p.Acquire(context.Background(), "https://example.com/a.m3u8", credential)
	require.Nil(t, err)

	runner.stripSize = 1000
	runner.stripErr = &invoker.ExitError{Tool: "ffmpeg", ExitCode: 1, Stderr: []byte("Invalid data found")}
	_, err = p.Acquire(context.Background(), "https://example.com/b.m3u8", credential)
	assert.ErrorIs(err, ErrTranscodeFailed)
	assert.ErrorIs(err, invoker.ErrNonZeroExit)
	assert.Equal(0, countTemps(listDir(t, dir)))

	asset, err := p.Current()
	assert.Nil(err)
	assert.Equal(int64(3<<20), asset.Size)
	assert.Equal("https://example.com/a.m3u8", asset.SourceURL)
}

func TestPipeline_StripTooSmall(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	p := New(&fakeRunner{downloadSize: 2 << 20, stripSize: 10}, WithDir(dir))
	_, err := p.Acquire(context.Background(), "https://example.com/a.m3u8", credential)
	assert.ErrorIs(err, ErrTooSmall)
	assert.Empty(listDir(t, dir))
}

func TestPipeline_Purge(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	p := New(&fakeRunner{}, WithDir(dir))
	for _, name := range []string{"feratel-temp.mp4", "feratel-temp-no-audio.mp4", ".feratel-current.json123", "feratel-current.mp4", "other.txt"} {
		require.Nil(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	assert.Nil(p.Purge())
	assert.ElementsMatch([]string{"feratel-current.mp4", "other.txt"}, listDir(t, dir))

	// Missing directory is not an error.
	assert.Nil(New(&fakeRunner{}, WithDir(filepath.Join(dir, "missing"))).Purge())
}

func TestPipeline_CurrentWithoutSidecar(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	p := New(&fakeRunner{}, WithDir(dir), WithName("vendor"))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "vendor-current.mp4"), make([]byte, 42), 0644))
	asset, err := p.Current()
	assert.Nil(err)
	assert.Equal(int64(42), asset.Size)
	assert.Equal("", asset.SourceURL)
}

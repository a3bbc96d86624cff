package invoker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shell(script string) Invocation {
	return Invocation{Tool: "sh", Args: []string{"-c", script}, Timeout: 5 * time.Second}
}

func TestInvoker_Run_Stdout(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	out, err := i.Run(context.Background(), shell("echo https://a.example/1.m3u8; echo https://a.example/2.m3u8"))
	assert.Nil(err)
	assert.Equal("https://a.example/1.m3u8\nhttps://a.example/2.m3u8\n", string(out))
}

func TestInvoker_Run_Timeout(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	inv := shell("sleep 10")
	inv.Timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := i.Run(context.Background(), inv)
	assert.ErrorIs(err, ErrTimeout)
	assert.Less(time.Since(start), 2*time.Second)
}

func TestInvoker_Run_TimeoutKillsGroup(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	// The backgrounded child holds stdout open; without a group kill Wait would block on it.
	inv := shell("sleep 10 & wait")
	inv.Timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := i.Run(context.Background(), inv)
	assert.ErrorIs(err, ErrTimeout)
	assert.Less(time.Since(start), 2*time.Second)
}

func TestInvoker_Run_Cancelled(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	_, err := i.Run(ctx, shell("sleep 10"))
	assert.ErrorIs(err, context.Canceled)
	assert.False(errors.Is(err, ErrTimeout))
}

func TestInvoker_Run_NonZeroExit(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	_, err := i.Run(context.Background(), shell("echo 'ERROR: video unavailable' >&2; exit 3"))
	assert.ErrorIs(err, ErrNonZeroExit)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(3, exitErr.ExitCode)
	assert.Equal("ERROR: video unavailable\n", string(exitErr.Stderr))
	assert.Contains(err.Error(), "video unavailable")
}

func TestInvoker_Run_EmptyOutput(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	_, err := i.Run(context.Background(), shell("true"))
	assert.ErrorIs(err, ErrEmptyOutput)
	assert.ErrorIs(err, ErrNonZeroExit)

	inv := shell("true")
	inv.AllowEmptyOutput = true
	out, err := i.Run(context.Background(), inv)
	assert.Nil(err)
	assert.Empty(out)
}

func TestInvoker_Run_SpawnFailure(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	_, err := i.Run(context.Background(), Invocation{Tool: "definitely-not-a-real-tool-xyz"})
	assert.ErrorIs(err, ErrSpawnFailure)
}

func TestInvoker_Run_PathOverride(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	inv := shell("echo hi")
	inv.Tool = "yt-dlp"
	inv.Path = PathResolverFunc(func(string) (string, error) { return "sh", nil })
	out, err := i.Run(context.Background(), inv)
	assert.Nil(err)
	assert.Equal("hi\n", string(out))
}

func TestToolPaths(t *testing.T) {
	assert := assert_.New(t)
	dir := t.TempDir()
	bundled := filepath.Join(dir, "yt-dlp")
	require.Nil(t, os.WriteFile(bundled, []byte("#!/bin/sh\necho bundled\n"), 0755))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "not-a-tool-zz"), []byte("not executable"), 0644))

	paths := ToolPaths{BundleDir: dir}
	path, err := paths.ResolvePath("yt-dlp")
	assert.Nil(err)
	assert.Equal(bundled, path)

	// Falls back to the search path when the bundled file isn't executable.
	_, err = paths.ResolvePath("not-a-tool-zz")
	assert.NotNil(err)

	path, err = paths.ResolvePath("sh")
	assert.Nil(err)
	assert.NotEqual("", path)

	out, err := New(paths).Run(context.Background(), Invocation{Tool: "yt-dlp"})
	assert.Nil(err)
	assert.Equal("bundled\n", string(out))
}

func TestCheck(t *testing.T) {
	assert := assert_.New(t)
	i := New(nil)
	assert.Nil(i.Check("sh"))
	err := i.Check("sh", "missing-tool-a", "missing-tool-b")
	assert.ErrorIs(err, ErrSpawnFailure)
	assert.Contains(err.Error(), "missing-tool-a")
	assert.Contains(err.Error(), "missing-tool-b")
}

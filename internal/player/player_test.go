//go:build unix

package player

import (
	"errors"
	"syscall"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/invoker"
)

func sleepArgs(string, Geometry) []string {
	return []string{"30"}
}

func newTestSupervisor(locator WindowLocator) *Supervisor {
	return New(Config{Tool: "sleep", Args: sleepArgs, Locator: locator})
}

func alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

func TestGeometry(t *testing.T) {
	assert := assert_.New(t)
	g := Geometry{X: 10, Y: 20, Width: 640, Height: 360}
	assert.Equal("640x360+10+20", g.String())
	assert.Equal("640x360+110+70", g.Translate(100, 50).String())
	assert.Equal("640x360-5+0", Geometry{X: -5, Width: 640, Height: 360}.String())
	assert.True(g.Valid())
	assert.False(Geometry{Width: 640}.Valid())
}

func TestMPVArgs(t *testing.T) {
	args := MPVArgs("https://example.com/a.m3u8", Geometry{X: 1, Y: 2, Width: 3, Height: 4})
	assert_.Equal(t, []string{
		"--loop=inf", "--mute=yes", "--no-border", "--ontop", "--no-window-dragging", "--hwdec=auto",
		"--geometry=3x4+1+2", "https://example.com/a.m3u8",
	}, args)
}

func TestSupervisor_StartTwiceReplaces(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	assert := assert_.New(t)
	s := newTestSupervisor(nil)
	defer s.Close()

	require.NoError(t, s.Start("video-1", "https://example.com/a", Geometry{Width: 10, Height: 10}))
	first := s.PID("video-1")
	require.NotZero(t, first)
	assert.True(alive(first))

	require.NoError(t, s.Start("video-1", "https://example.com/b", Geometry{Width: 10, Height: 10}))
	second := s.PID("video-1")
	assert.NotEqual(first, second)
	assert.False(alive(first), "first player must be gone before Start returns")
	assert.True(alive(second))
	assert.Equal([]video_wall.FeedID{"video-1"}, s.Running())
}

func TestSupervisor_StopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	assert := assert_.New(t)
	s := newTestSupervisor(nil)
	defer s.Close()

	s.Stop("video-1")
	require.NoError(t, s.Start("video-1", "u", Geometry{Width: 10, Height: 10}))
	pid := s.PID("video-1")
	s.Stop("video-1")
	s.Stop("video-1")
	assert.False(alive(pid))
	assert.Eventually(func() bool { return len(s.Running()) == 0 }, time.Second, 10*time.Millisecond)
}

func TestSupervisor_Events(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	assert := assert_.New(t)
	s := newTestSupervisor(FixedLocator{X: 100, Y: 200})
	events, err := s.Subscribe()
	require.NoError(t, err)

	require.NoError(t, s.Start("video-1", "https://example.com/a", Geometry{X: 1, Y: 2, Width: 10, Height: 10}))
	started, ok := (<-events.Receive()).(Started)
	require.True(t, ok)
	assert.Equal(video_wall.FeedID("video-1"), started.FeedID())
	assert.Equal(Geometry{X: 101, Y: 202, Width: 10, Height: 10}, started.Geometry)

	s.Close()
	exited, ok := (<-events.Receive()).(Exited)
	require.True(t, ok)
	assert.Equal(started.Instance, exited.Instance)
	assert.NoError(exited.Err)

	_, open := <-events.Receive()
	assert.False(open)
	assert.ErrorIs(s.Start("video-1", "u", Geometry{Width: 10, Height: 10}), ErrClosed)
}

func TestSupervisor_UnexpectedExit(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	s := New(Config{Tool: "sh", Args: func(string, Geometry) []string { return []string{"-c", "exit 3"} }})
	defer s.Close()
	events, err := s.Subscribe()
	require.NoError(t, err)

	require.NoError(t, s.Start("video-2", "u", Geometry{Width: 10, Height: 10}))
	var exited []Exited
	for len(exited) == 0 {
		if e, ok := (<-events.Receive()).(Exited); ok {
			exited = append(exited, e)
		}
	}
	assert_.Error(t, exited[0].Err)
}

func TestSupervisor_Errors(t *testing.T) {
	assert := assert_.New(t)
	s := New(Config{Tool: "definitely-not-a-real-player", Args: sleepArgs})
	defer s.Close()
	assert.ErrorIs(s.Start("video-1", "u", Geometry{Width: 10, Height: 10}), invoker.ErrSpawnFailure)
	assert.ErrorIs(s.Start("video-1", "u", Geometry{}), ErrInvalidGeometry)

	broken := New(Config{Tool: "sleep", Args: sleepArgs, Locator: brokenLocator{}})
	defer broken.Close()
	assert.Error(broken.Start("video-1", "u", Geometry{Width: 10, Height: 10}))
	assert.Empty(broken.Running())
}

type brokenLocator struct{}

func (brokenLocator) ContentOrigin() (int, int, error) {
	return 0, 0, errors.New("no window")
}

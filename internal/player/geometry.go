package player

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"
)

// Geometry is a screen region in pixels.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (g Geometry) Translate(dx, dy int) Geometry {
	g.X += dx
	g.Y += dy
	return g
}

func (g Geometry) Valid() bool {
	return g.Width > 0 && g.Height > 0
}

// String renders the X11-style geometry mpv expects: WxH+X+Y.
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d%+d%+d", g.Width, g.Height, g.X, g.Y)
}

var geometryRe = regexp.MustCompile(`^(\d+)x(\d+)([+-]\d+)([+-]\d+)$`)

// ParseGeometry parses the WxH+X+Y form produced by String.
func ParseGeometry(s string) (Geometry, error) {
	m := geometryRe.FindStringSubmatch(s)
	if m == nil {
		return Geometry{}, fmt.Errorf("%w: %q", ErrInvalidGeometry, s)
	}
	var g Geometry
	var err error
	for i, dst := range []*int{&g.Width, &g.Height, &g.X, &g.Y} {
		if *dst, err = strconv.Atoi(m[i+1]); err != nil {
			return Geometry{}, errors.Join(ErrInvalidGeometry, err)
		}
	}
	if !g.Valid() {
		return Geometry{}, fmt.Errorf("%w: %q", ErrInvalidGeometry, s)
	}
	return g, nil
}

// A WindowLocator reports where the host window's content area currently is on screen. Geometry passed to Start is
// relative to that content area.
type WindowLocator interface {
	ContentOrigin() (x, y int, err error)
}

// FixedLocator is a WindowLocator for a window that never moves.
type FixedLocator struct {
	X, Y int
}

func (l FixedLocator) ContentOrigin() (int, int, error) {
	return l.X, l.Y, nil
}

// WindowTracker is a WindowLocator fed by the host application, which reports its content origin whenever the window
// moves.
type WindowTracker struct {
	mu    sync.RWMutex
	x, y  int
	moved chan struct{}
}

func NewWindowTracker(x, y int) *WindowTracker {
	return &WindowTracker{x: x, y: y, moved: make(chan struct{}, 1)}
}

func (t *WindowTracker) ContentOrigin() (int, int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.x, t.y, nil
}

// MoveTo records a new content origin, returning false if it is unchanged.
func (t *WindowTracker) MoveTo(x, y int) bool {
	t.mu.Lock()
	if t.x == x && t.y == y {
		t.mu.Unlock()
		return false
	}
	t.x, t.y = x, y
	t.mu.Unlock()
	select {
	case t.moved <- struct{}{}:
	default:
	}
	return true
}

// Moved receives once after one or more changes of origin.
func (t *WindowTracker) Moved() <-chan struct{} {
	return t.moved
}

// Package catalog holds the authoritative feed-id -> descriptor map. One owner goroutine applies every change; readers
// only ever see complete, published snapshots.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/lpc"
	"github.com/alanbriolat/video-wall/internal/sync_"
	"github.com/alanbriolat/video-wall/util"
)

var (
	ErrClosed      = errors.New("catalog closed")
	ErrUnknownFeed = errors.New("unknown feed")
	ErrDuplicate   = errors.New("duplicate feed id")
	ErrWrongKind   = errors.New("operation not valid for this kind of feed")
	ErrIncomplete  = errors.New("resolved value incomplete")
)

type Snapshot = map[video_wall.FeedID]video_wall.Descriptor

type commandKind int

const (
	applyResolved commandKind = iota
	applyFailure
	applyOverride
)

type command struct {
	kind   commandKind
	feedID video_wall.FeedID
	value  video_wall.Value
	err    error
	at     time.Time
}

type Catalog struct {
	ctx       context.Context
	ctxCancel context.CancelFunc
	done      chan struct{}
	commands  chan *lpc.Command[command, video_wall.Descriptor]
	published *sync_.RWMutexed[Snapshot]
	log       *zap.SugaredLogger
}

// New starts a catalog holding the given feeds, which must have unique ids and valid kinds.
func New(feeds []video_wall.Descriptor) (*Catalog, error) {
	state := make(Snapshot, len(feeds))
	for _, d := range feeds {
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("feed %q: invalid kind %q", d.ID, d.Kind)
		}
		if _, ok := state[d.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicate, d.ID)
		}
		state[d.ID] = d
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Catalog{
		ctx:       ctx,
		ctxCancel: cancel,
		done:      make(chan struct{}),
		commands:  make(chan *lpc.Command[command, video_wall.Descriptor]),
		published: sync_.NewRWMutexed(maps.Clone(state)),
		log:       zap.S().Named("catalog"),
	}
	go c.run(state)
	return c, nil
}

// Snapshot returns a point-in-time copy of every descriptor. It never waits for a pending update.
func (c *Catalog) Snapshot() Snapshot {
	var s Snapshot
	_ = c.published.RLocked(func(published Snapshot) error {
		s = maps.Clone(published)
		return nil
	})
	return s
}

func (c *Catalog) Get(id video_wall.FeedID) (video_wall.Descriptor, bool) {
	var d video_wall.Descriptor
	var ok bool
	_ = c.published.RLocked(func(published Snapshot) error {
		d, ok = published[id]
		return nil
	})
	return d, ok
}

// IDs returns the ids of all feeds of the given kind, sorted.
func (c *Catalog) IDs(kind video_wall.SourceKind) []video_wall.FeedID {
	var ids []video_wall.FeedID
	_ = c.published.RLocked(func(published Snapshot) error {
		for id, d := range published {
			if d.Kind == kind {
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ApplyResolved replaces the feed's resolved value. For DynamicResolved feeds both qualities must be present.
func (c *Catalog) ApplyResolved(id video_wall.FeedID, value video_wall.Value, at time.Time) (video_wall.Descriptor, error) {
	return c.submit(command{kind: applyResolved, feedID: id, value: value, at: at})
}

// ApplyFailure records a failed refresh, leaving the resolved value untouched.
func (c *Catalog) ApplyFailure(id video_wall.FeedID, err error, at time.Time) (video_wall.Descriptor, error) {
	return c.submit(command{kind: applyFailure, feedID: id, err: err, at: at})
}

// Override installs an operator-supplied URL for a StaticManifest or DynamicResolved feed.
func (c *Catalog) Override(id video_wall.FeedID, url string) (video_wall.Descriptor, error) {
	return c.submit(command{kind: applyOverride, feedID: id, value: video_wall.Value{URL: url}, at: time.Now()})
}

func (c *Catalog) Close() {
	c.ctxCancel()
	<-c.done
}

func (c *Catalog) submit(cmd command) (video_wall.Descriptor, error) {
	d, err := lpc.Submit(c.commands, c.ctx.Done(), cmd)
	if errors.Is(err, lpc.ErrNoResponse) {
		return d, ErrClosed
	}
	return d, err
}

func (c *Catalog) run(state Snapshot) {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case cmd := <-c.commands:
			old, ok := state[cmd.Arg().feedID]
			if !ok {
				_ = cmd.RespondError(fmt.Errorf("%w: %q", ErrUnknownFeed, cmd.Arg().feedID))
				continue
			}
			updated, err := apply(old, cmd.Arg())
			if err != nil {
				_ = cmd.RespondError(err)
				continue
			}
			state[updated.ID] = updated
			c.published.Set(maps.Clone(state))
			c.logChanges(old, updated)
			_ = cmd.Respond(updated)
		}
	}
}

func apply(d video_wall.Descriptor, cmd command) (video_wall.Descriptor, error) {
	switch cmd.kind {
	case applyResolved:
		switch d.Kind {
		case video_wall.DynamicResolved:
			if !cmd.value.Qualities.Complete() {
				return d, ErrIncomplete
			}
			d.Qualities = cmd.value.Qualities
		case video_wall.CookieGatedDownload:
			if cmd.value.URL == "" {
				return d, ErrIncomplete
			}
			d.AssetPath = cmd.value.URL
		default:
			return d, fmt.Errorf("%w: %s is never refreshed", ErrWrongKind, d.Kind)
		}
		d.LastRefresh = cmd.at
		d.LastError = ""
		d.Overridden = false
	case applyFailure:
		if cmd.err != nil {
			d.LastError = cmd.err.Error()
		} else {
			d.LastError = "unknown error"
		}
	case applyOverride:
		if !util.IsHTTPURL(cmd.value.URL) {
			return d, fmt.Errorf("%w: %q", util.ErrInvalidURL, cmd.value.URL)
		}
		switch d.Kind {
		case video_wall.StaticManifest:
			d.ManifestURL = cmd.value.URL
		case video_wall.DynamicResolved:
			d.Qualities = video_wall.Qualities{Low: cmd.value.URL, High: cmd.value.URL}
		default:
			return d, fmt.Errorf("%w: %s can't be overridden", ErrWrongKind, d.Kind)
		}
		d.LastRefresh = cmd.at
		d.LastError = ""
		d.Overridden = true
	}
	return d, nil
}

func (c *Catalog) logChanges(old, updated video_wall.Descriptor) {
	log := c.log.With("feed_id", updated.ID)
	changes, err := diff.Diff(old, updated)
	if err != nil {
		log.Errorf("failed to diff old and new descriptor: %v", err)
		return
	}
	for _, change := range changes {
		log.Debugf("%v: %#v -> %#v", change.Path, change.From, change.To)
	}
}

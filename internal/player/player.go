// Package player supervises companion native player processes overlaid on grid cells that can't play in the host.
package player

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/invoker"
	"github.com/alanbriolat/video-wall/internal/metrics"
	"github.com/alanbriolat/video-wall/internal/pubsub"
)

const DefaultTool = "mpv"

var (
	ErrClosed          = errors.New("supervisor closed")
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// MPVArgs are the arguments for a borderless, muted, looping, always-on-top overlay.
func MPVArgs(url string, g Geometry) []string {
	return []string{
		"--loop=inf",
		"--mute=yes",
		"--no-border",
		"--ontop",
		"--no-window-dragging",
		"--hwdec=auto",
		"--geometry=" + g.String(),
		url,
	}
}

type Event interface {
	FeedID() video_wall.FeedID
}

type feedEvent struct {
	feedID video_wall.FeedID
}

func (e feedEvent) FeedID() video_wall.FeedID {
	return e.feedID
}

type Started struct {
	feedEvent
	Instance uuid.UUID
	PID      int
	URL      string
	Geometry Geometry
}

type Exited struct {
	feedEvent
	Instance uuid.UUID
	// Err is nil for a clean exit, and also when the supervisor stopped the player.
	Err error
}

type Config struct {
	Tool    string
	Paths   invoker.PathResolver
	Locator WindowLocator
	// Args builds the command line; defaults to MPVArgs.
	Args func(url string, g Geometry) []string
}

type instance struct {
	id       uuid.UUID
	cmd      *exec.Cmd
	stopping bool
	done     chan struct{} // process reaped
	finished chan struct{} // Exited event sent
}

type Supervisor struct {
	config  Config
	mu      sync.Mutex
	players map[video_wall.FeedID]*instance
	closed  bool

	eventsMu     sync.RWMutex
	events       pubsub.Publisher[Event]
	eventsClosed bool

	log *zap.SugaredLogger
}

func New(config Config) *Supervisor {
	if config.Tool == "" {
		config.Tool = DefaultTool
	}
	if config.Paths == nil {
		config.Paths = invoker.ToolPaths{}
	}
	if config.Locator == nil {
		config.Locator = FixedLocator{}
	}
	if config.Args == nil {
		config.Args = MPVArgs
	}
	return &Supervisor{
		config:  config,
		players: make(map[video_wall.FeedID]*instance),
		events:  pubsub.NewPublisher[Event](),
		log:     zap.S().Named("player"),
	}
}

func (s *Supervisor) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return s.events.Subscribe()
}

// Start spawns a player for feedID at geometry (relative to the host window content area). A player already running
// for feedID is killed, and has exited, before the new one is spawned.
func (s *Supervisor) Start(feedID video_wall.FeedID, url string, geometry Geometry) error {
	started, err := s.start(feedID, url, geometry)
	if err != nil {
		return err
	}
	s.emit(started)
	return nil
}

func (s *Supervisor) start(feedID video_wall.FeedID, url string, geometry Geometry) (Started, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Started{}, ErrClosed
	}
	if !geometry.Valid() {
		return Started{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, geometry)
	}
	log := s.log.With("feed_id", feedID)

	if old := s.players[feedID]; old != nil {
		log.Debugf("replacing running player %v", old.id)
		s.kill(old)
		<-old.done
	}

	x, y, err := s.config.Locator.ContentOrigin()
	if err != nil {
		return Started{}, fmt.Errorf("locate host window: %w", err)
	}
	geometry = geometry.Translate(x, y)

	path, err := s.config.Paths.ResolvePath(s.config.Tool)
	if err != nil {
		return Started{}, fmt.Errorf("%w: %s: %v", invoker.ErrSpawnFailure, s.config.Tool, err)
	}
	cmd := exec.Command(path, s.config.Args(url, geometry)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	invoker.SetProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return Started{}, fmt.Errorf("%w: %s: %v", invoker.ErrSpawnFailure, s.config.Tool, err)
	}

	inst := &instance{
		id:       uuid.New(),
		cmd:      cmd,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	s.players[feedID] = inst
	metrics.PlayersRunning.Inc()
	log.Infof("started player %v (pid %d) at %v", inst.id, cmd.Process.Pid, geometry)
	go s.wait(feedID, inst)

	return Started{
		feedEvent: feedEvent{feedID},
		Instance:  inst.id,
		PID:       cmd.Process.Pid,
		URL:       url,
		Geometry:  geometry,
	}, nil
}

func (s *Supervisor) wait(feedID video_wall.FeedID, inst *instance) {
	defer close(inst.finished)
	err := inst.cmd.Wait()
	close(inst.done)
	metrics.PlayersRunning.Dec()

	s.mu.Lock()
	if s.players[feedID] == inst {
		delete(s.players, feedID)
	}
	stopping := inst.stopping
	s.mu.Unlock()

	log := s.log.With("feed_id", feedID)
	if stopping {
		err = nil
		log.Debugf("player %v stopped", inst.id)
	} else if err != nil {
		log.Warnf("player %v exited: %v", inst.id, err)
	} else {
		log.Infof("player %v exited", inst.id)
	}
	s.emit(Exited{feedEvent: feedEvent{feedID}, Instance: inst.id, Err: err})
}

// kill must be called with s.mu held.
func (s *Supervisor) kill(inst *instance) {
	inst.stopping = true
	if err := invoker.KillGroup(inst.cmd); err != nil {
		s.log.Warnf("failed to kill player %v: %v", inst.id, err)
	}
}

// Stop kills the player for feedID, if any, and waits for it to exit.
func (s *Supervisor) Stop(feedID video_wall.FeedID) {
	s.mu.Lock()
	inst := s.players[feedID]
	if inst != nil {
		s.kill(inst)
	}
	s.mu.Unlock()
	if inst != nil {
		<-inst.done
	}
}

// Running returns the feed ids with a live player.
func (s *Supervisor) Running() []video_wall.FeedID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]video_wall.FeedID, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	return ids
}

// PID returns the process id of the live player for feedID, or 0.
func (s *Supervisor) PID(feedID video_wall.FeedID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst := s.players[feedID]; inst != nil {
		return inst.cmd.Process.Pid
	}
	return 0
}

// Close terminates every player and waits for them, then closes the event stream.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	instances := make([]*instance, 0, len(s.players))
	for _, inst := range s.players {
		s.kill(inst)
		instances = append(instances, inst)
	}
	s.mu.Unlock()

	timeout := time.After(5 * time.Second)
	for _, inst := range instances {
		select {
		case <-inst.finished:
		case <-timeout:
			s.log.Warnf("player %v did not exit", inst.id)
		}
	}

	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if !s.eventsClosed {
		s.eventsClosed = true
		s.events.Close()
	}
}

func (s *Supervisor) emit(e Event) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	if !s.eventsClosed {
		s.events.Send(e)
	}
}

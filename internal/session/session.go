// Package session is the boundary between the refresh core and its consumers: catalog snapshots, push notifications,
// manual overrides and native players.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/catalog"
	"github.com/alanbriolat/video-wall/internal/player"
	"github.com/alanbriolat/video-wall/internal/pubsub"
	"github.com/alanbriolat/video-wall/internal/refresh"
	"github.com/alanbriolat/video-wall/provider/feratel"
	"github.com/alanbriolat/video-wall/util"
)

var (
	ErrNoPlayers       = errors.New("native players not configured")
	ErrInvalidOverride = errors.New("override must be a http(s) URL or a token for a feed with a URL template")
)

// Catalog is satisfied by *catalog.Catalog.
type Catalog interface {
	Snapshot() catalog.Snapshot
	Get(video_wall.FeedID) (video_wall.Descriptor, bool)
	Override(video_wall.FeedID, string) (video_wall.Descriptor, error)
}

// Players is satisfied by *player.Supervisor.
type Players interface {
	Start(video_wall.FeedID, string, player.Geometry) error
	Stop(video_wall.FeedID)
	Subscribe() (pubsub.ReceiverCloser[player.Event], error)
}

type Config struct {
	Catalog  Catalog
	Players  Players
	Database Database
	// Templates render operator tokens into URLs, per feed.
	Templates map[video_wall.FeedID]*video_wall.URLTemplate
}

type Session struct {
	config    Config
	ctx       context.Context
	ctxCancel context.CancelFunc
	log       *zap.SugaredLogger

	events  pubsub.Publisher[Event]
	running sync.WaitGroup
}

// New creates a session around an existing catalog, re-applying any persisted overrides before returning.
func New(config Config, ctx context.Context) (*Session, error) {
	if config.Catalog == nil {
		return nil, errors.New("session requires a catalog")
	}
	if config.Database == nil {
		config.Database = NilDatabase{}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		config:    config,
		ctx:       ctx,
		ctxCancel: cancel,
		log:       zap.S().Named("session"),
		events:    pubsub.NewPublisher[Event](),
	}
	if err := s.restoreOverrides(); err != nil {
		cancel()
		s.events.Close()
		return nil, err
	}
	if config.Players != nil {
		playerEvents, err := config.Players.Subscribe()
		if err != nil {
			cancel()
			s.events.Close()
			return nil, err
		}
		s.running.Add(1)
		go s.forwardPlayerEvents(playerEvents)
	}
	return s, nil
}

func (s *Session) Subscribe() (pubsub.ReceiverCloser[Event], error) {
	return s.events.Subscribe()
}

// Snapshot returns a point-in-time copy of every feed descriptor.
func (s *Session) Snapshot() map[video_wall.FeedID]video_wall.Descriptor {
	return s.config.Catalog.Snapshot()
}

// OnRefreshCompleted calls f, from a dedicated goroutine, once per completed refresh cycle until cancel is called or the
// session closes.
func (s *Session) OnRefreshCompleted(f func(RefreshCompleted)) (cancel func(), err error) {
	return pubsub.SubscribeType[Event](s.events, f)
}

func (s *Session) OnAssetReady(f func(AssetReady)) (cancel func(), err error) {
	return pubsub.SubscribeType[Event](s.events, f)
}

// OnPlayerEvent calls f with every PlayerStarted and PlayerExited event.
func (s *Session) OnPlayerEvent(f func(Event)) (cancel func(), err error) {
	return pubsub.SubscribeFunc(s.events, isPlayerEvent, f)
}

func isPlayerEvent(e Event) bool {
	switch e.(type) {
	case PlayerStarted, PlayerExited:
		return true
	default:
		return false
	}
}

// RefreshListener adapts the session to refresh.Scheduler, publishing RefreshCompleted for each cycle.
func (s *Session) RefreshListener() refresh.Listener {
	return func(c refresh.Cycle) {
		s.events.Send(RefreshCompleted{
			Cycle:   c.ID,
			Class:   c.Class,
			Kind:    c.Kind,
			Results: c.Results,
			At:      c.FinishedAt,
		})
	}
}

// OutcomeHandler adapts the session to refresh.VendorClass, publishing AssetReady for each successful cycle. The
// published path is the catalog's playback value, which in relay mode is the relay URL.
func (s *Session) OutcomeHandler() func(video_wall.FeedID, feratel.Outcome) {
	return func(id video_wall.FeedID, outcome feratel.Outcome) {
		path := outcome.Asset.Path
		if d, ok := s.config.Catalog.Get(id); ok && d.AssetPath != "" {
			path = d.AssetPath
		}
		publishedAt := outcome.Asset.PublishedAt
		if publishedAt.IsZero() {
			publishedAt = time.Now()
		}
		s.events.Send(AssetReady{
			feedEvent:   feedEvent{id},
			Path:        path,
			PublishedAt: publishedAt,
			Weather:     outcome.Weather,
		})
	}
}

func (s *Session) StartPlayer(feedID video_wall.FeedID, url string, geometry player.Geometry) error {
	if s.config.Players == nil {
		return ErrNoPlayers
	}
	return s.config.Players.Start(feedID, url, geometry)
}

func (s *Session) StopPlayer(feedID video_wall.FeedID) {
	if s.config.Players != nil {
		s.config.Players.Stop(feedID)
	}
}

// Override installs value for feedID and persists it. value is either a full http(s) URL, or a token rendered through
// the feed's URL template.
func (s *Session) Override(feedID video_wall.FeedID, value string) (video_wall.Descriptor, error) {
	d, err := s.applyOverride(feedID, value)
	if err != nil {
		return d, err
	}
	record := &OverrideRecord{FeedID: feedID, Value: strings.TrimSpace(value), AppliedAt: time.Now()}
	if err := s.config.Database.WriteOverride(record); err != nil {
		return d, fmt.Errorf("persist override: %w", err)
	}
	return d, nil
}

// ClearOverride forgets the persisted override for feedID. The catalog keeps the current value until the feed is next
// refreshed or overridden.
func (s *Session) ClearOverride(feedID video_wall.FeedID) error {
	return s.config.Database.DeleteOverride(feedID)
}

// OverrideURL resolves value to the URL an override of feedID would install.
func (s *Session) OverrideURL(feedID video_wall.FeedID, value string) (string, error) {
	value = strings.TrimSpace(value)
	if util.IsHTTPURL(value) {
		return value, nil
	}
	if tpl, ok := s.config.Templates[feedID]; ok && tpl != nil {
		return tpl.Render(feedID, value)
	}
	return "", ErrInvalidOverride
}

func (s *Session) applyOverride(feedID video_wall.FeedID, value string) (video_wall.Descriptor, error) {
	if _, ok := s.config.Catalog.Get(feedID); !ok {
		return video_wall.Descriptor{}, fmt.Errorf("%w: %q", catalog.ErrUnknownFeed, feedID)
	}
	url, err := s.OverrideURL(feedID, value)
	if err != nil {
		return video_wall.Descriptor{}, err
	}
	d, err := s.config.Catalog.Override(feedID, url)
	if err != nil {
		return d, err
	}
	s.log.With("feed_id", feedID).Infof("override applied: %s", url)
	s.events.Send(OverrideApplied{feedEvent: feedEvent{feedID}, Descriptor: d})
	return d, nil
}

func (s *Session) restoreOverrides() error {
	records, err := s.config.Database.ListOverrides()
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	for _, r := range records {
		if _, err := s.applyOverride(r.FeedID, r.Value); err != nil {
			s.log.With("feed_id", r.FeedID).Warnf("discarding persisted override: %v", err)
			if err := s.config.Database.DeleteOverride(r.FeedID); err != nil {
				s.log.Warnf("failed to delete override: %v", err)
			}
		}
	}
	return nil
}

func (s *Session) forwardPlayerEvents(events pubsub.ReceiverCloser[player.Event]) {
	defer s.running.Done()
	defer events.Close()
	for {
		select {
		case <-s.ctx.Done():
			return
		case e, ok := <-events.Receive():
			if !ok {
				return
			}
			switch e := e.(type) {
			case player.Started:
				s.events.Send(PlayerStarted{e})
			case player.Exited:
				s.events.Send(PlayerExited{e})
			}
		}
	}
}

// Close stops forwarding events and closes every subscription. It does not close the catalog or the players.
func (s *Session) Close() {
	s.ctxCancel()
	s.running.Wait()
	s.events.Close()
}

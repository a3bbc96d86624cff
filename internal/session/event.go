package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/player"
	"github.com/alanbriolat/video-wall/internal/weather"
)

type Event interface {
	// The feed this event relates to (empty if not a feed-specific event).
	FeedID() video_wall.FeedID
}

type feedEvent struct {
	feedID video_wall.FeedID
}

func (e feedEvent) FeedID() video_wall.FeedID {
	return e.feedID
}

// RefreshCompleted is sent once per completed tick of one source class.
type RefreshCompleted struct {
	feedEvent
	Cycle   uuid.UUID
	Class   string
	Kind    video_wall.SourceKind
	Results []video_wall.RefreshResult
	At      time.Time
}

// AssetReady is sent after each successful vendor cycle. PublishedAt changes with every new asset, so consumers can
// use it to bust caches.
type AssetReady struct {
	feedEvent
	Path        string
	PublishedAt time.Time
	Weather     weather.Payload
}

type OverrideApplied struct {
	feedEvent
	Descriptor video_wall.Descriptor
}

type PlayerStarted struct {
	player.Started
}

type PlayerExited struct {
	player.Exited
}

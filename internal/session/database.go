package session

import (
	"time"

	"github.com/alanbriolat/video-wall"
)

// OverrideRecord is an accepted operator override, stored as entered so that tokens are re-rendered through the
// current template when re-applied.
type OverrideRecord struct {
	FeedID    video_wall.FeedID `json:"feed_id"`
	Value     string            `json:"value"`
	AppliedAt time.Time         `json:"applied_at"`
}

type Database interface {
	ListOverrides() ([]OverrideRecord, error)
	WriteOverride(*OverrideRecord) error
	DeleteOverride(video_wall.FeedID) error
}

type NilDatabase struct{}

func (d NilDatabase) ListOverrides() ([]OverrideRecord, error) {
	return nil, nil
}

func (d NilDatabase) WriteOverride(_ *OverrideRecord) error {
	return nil
}

func (d NilDatabase) DeleteOverride(_ video_wall.FeedID) error {
	return nil
}

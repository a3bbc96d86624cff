// Package boltdb persists operator overrides in a bbolt file under the application data directory.
package boltdb

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/session"
)

var Buckets = struct {
	Metadata  []byte
	Overrides []byte
}{
	Metadata:  []byte("__metadata__"),
	Overrides: []byte("overrides"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

const currentVersion = 1

// OpenTimeout bounds how long New waits for another process holding the file lock.
var OpenTimeout = time.Second

type Database interface {
	Close() error

	session.Database
}

type database struct {
	*bbolt.DB
}

func New(path string) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Overrides); err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes == nil {
			version = 0
		} else if err = json.Unmarshal(versionBytes, &version); err != nil {
			return err
		}
		if version > currentVersion {
			return fmt.Errorf("database version %d is newer than supported version %d", version, currentVersion)
		}

		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &database{db}, nil
}

func (d database) ListOverrides() (overrides []session.OverrideRecord, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(Buckets.Overrides)
		return bucket.ForEach(func(k, v []byte) error {
			var record session.OverrideRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("override %q: %w", k, err)
			} else {
				overrides = append(overrides, record)
				return nil
			}
		})
	})
	if err != nil {
		return nil, err
	} else {
		return overrides, nil
	}
}

func (d database) WriteOverride(record *session.OverrideRecord) error {
	if data, err := json.Marshal(record); err != nil {
		return err
	} else {
		return d.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket(Buckets.Overrides).Put([]byte(record.FeedID), data)
		})
	}
}

func (d database) DeleteOverride(id video_wall.FeedID) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Overrides).Delete([]byte(id))
	})
}

// Package history records every completed refresh cycle in a sqlite database, for the operator to inspect which feeds
// keep failing.
package history

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"moul.io/zapgorm2"

	"github.com/alanbriolat/video-wall"
	"github.com/alanbriolat/video-wall/internal/refresh"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type RefreshCycle struct {
	ID         uint   `gorm:"primaryKey"`
	CycleID    string `gorm:"uniqueIndex"`
	Class      string
	Kind       video_wall.SourceKind
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Successful int
	Results    []RefreshResult
}

type RefreshResult struct {
	ID             uint `gorm:"primaryKey"`
	RefreshCycleID uint
	FeedID         video_wall.FeedID
	Success        bool
	// JSON-encoded video_wall.Value
	Value string
	Error string
}

func (r RefreshResult) Decode() (video_wall.RefreshResult, error) {
	result := video_wall.RefreshResult{FeedID: r.FeedID, Success: r.Success, Error: r.Error}
	if r.Value != "" {
		if err := json.Unmarshal([]byte(r.Value), &result.Value); err != nil {
			return result, err
		}
	}
	return result, nil
}

type History struct {
	db  *gorm.DB
	sql *sql.DB
	log *zap.SugaredLogger
}

// Open opens (creating if necessary) the database at path and brings its schema up to date.
func Open(path string) (*History, error) {
	log := zap.S().Named("history")
	gormLogger := zapgorm2.New(zap.L().Named("history.gorm"))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	h := &History{db: db, sql: sqlDB, log: log}
	if err := h.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return h, nil
}

func (h *History) migrate() error {
	h.log.Debug("running database migrations")
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(h.sql, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	switch {
	case err == nil:
		h.log.Info("database migration complete")
	case errors.Is(err, migrate.ErrNoChange):
		h.log.Debug("no database migration required")
	default:
		return err
	}
	return nil
}

func (h *History) Close() error {
	return h.sql.Close()
}

// Record stores one completed cycle together with its per-feed results.
func (h *History) Record(c refresh.Cycle) error {
	record := RefreshCycle{
		CycleID:    c.ID.String(),
		Class:      c.Class,
		Kind:       c.Kind,
		StartedAt:  c.StartedAt,
		FinishedAt: c.FinishedAt,
		Total:      len(c.Results),
		Successful: c.Successful(),
		Results:    make([]RefreshResult, 0, len(c.Results)),
	}
	for _, r := range c.Results {
		value, err := json.Marshal(r.Value)
		if err != nil {
			return err
		}
		record.Results = append(record.Results, RefreshResult{
			FeedID:  r.FeedID,
			Success: r.Success,
			Value:   string(value),
			Error:   r.Error,
		})
	}
	return h.db.Create(&record).Error
}

// Listener adapts Record to refresh.Scheduler. Failures are logged, never propagated.
func (h *History) Listener() refresh.Listener {
	return func(c refresh.Cycle) {
		if err := h.Record(c); err != nil {
			h.log.Warnf("failed to record %s cycle %v: %v", c.Class, c.ID, err)
		}
	}
}

// Recent returns up to limit cycles, newest first, with their results.
func (h *History) Recent(limit int) ([]RefreshCycle, error) {
	var cycles []RefreshCycle
	err := h.db.Preload("Results").Order("finished_at DESC").Limit(limit).Find(&cycles).Error
	return cycles, err
}

// FeedResults returns up to limit results for one feed, newest first.
func (h *History) FeedResults(feedID video_wall.FeedID, limit int) ([]RefreshResult, error) {
	var results []RefreshResult
	err := h.db.Where("feed_id = ?", feedID).Order("id DESC").Limit(limit).Find(&results).Error
	return results, err
}

// Prune deletes cycles that finished before cutoff, returning how many were removed.
func (h *History) Prune(cutoff time.Time) (int64, error) {
	var removed int64
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&RefreshCycle{}).Where("finished_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("refresh_cycle_id IN ?", ids).Delete(&RefreshResult{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&RefreshCycle{}, ids)
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

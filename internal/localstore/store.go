// Package localstore keeps device-local snapshots of reports so a visit can
// continue without a connection. Entries are JSON values under string keys,
// stored in SQLite.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/report"
)

var (
	// ErrNotFound is returned when no entry exists under a key
	ErrNotFound = errors.New("local entry not found")
	// ErrStorage wraps serialization and write failures
	ErrStorage = errors.New("local storage failure")
)

// DefaultVersionLimit is how many versions each report keeps
const DefaultVersionLimit = 2

const (
	offlineReportPrefix = "offline-report-"
	actionsPrefix       = "actions-"
	versionsPrefix      = "report-versions-"
)

// OfflineReportKey is the key of a report's offline draft
func OfflineReportKey(reportID string) string { return offlineReportPrefix + reportID }

// ActionsKey is the key of a home's action tracker
func ActionsKey(homeID string) string { return actionsPrefix + homeID }

// VersionsKey is the key of a report's version history
func VersionsKey(reportID string) string { return versionsPrefix + reportID }

// Draft is the offline snapshot of a report written by autosave
type Draft struct {
	ReportID       string            `json:"reportId"`
	OrganizationID string            `json:"organizationId"`
	Data           report.ReportData `json:"data"`
	Summary        string            `json:"summary"`
	ActionPlan     string            `json:"actionPlan"`
	SavedAt        time.Time         `json:"savedAt"`
	Version        int64             `json:"version"`
}

// Store reads and writes local entries
type Store struct {
	db           *gorm.DB
	versionLimit int
}

// New creates a store over an opened local database.
// A versionLimit below 1 falls back to DefaultVersionLimit.
func New(db *database.DB, versionLimit int) *Store {
	if versionLimit < 1 {
		versionLimit = DefaultVersionLimit
	}
	return &Store{db: db.DB, versionLimit: versionLimit}
}

// put upserts one key. The whole value is replaced, so the last write wins.
func (s *Store) put(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, key, err)
	}
	entry := models.LocalEntry{Key: key, Value: raw, UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, out interface{}) error {
	var entry models.LocalEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrStorage, key, err)
	}
	if err := json.Unmarshal(entry.Value, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrStorage, key, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.LocalEntry{}).Error; err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStorage, key, err)
	}
	return nil
}

// SaveDraft writes the offline snapshot of a report
func (s *Store) SaveDraft(ctx context.Context, d Draft) error {
	if d.ReportID == "" {
		return fmt.Errorf("%w: draft without report id", ErrStorage)
	}
	if d.SavedAt.IsZero() {
		d.SavedAt = time.Now().UTC()
	}
	return s.put(ctx, OfflineReportKey(d.ReportID), d)
}

// LoadDraft returns the offline snapshot of a report
func (s *Store) LoadDraft(ctx context.Context, reportID string) (*Draft, error) {
	var d Draft
	if err := s.get(ctx, OfflineReportKey(reportID), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDraft removes a report's offline snapshot. Missing drafts are not an error.
func (s *Store) DeleteDraft(ctx context.Context, reportID string) error {
	return s.delete(ctx, OfflineReportKey(reportID))
}

// ListDrafts returns every offline snapshot, oldest first
func (s *Store) ListDrafts(ctx context.Context) ([]Draft, error) {
	var entries []models.LocalEntry
	err := s.db.WithContext(ctx).
		Where("key LIKE ?", offlineReportPrefix+"%").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list drafts: %v", ErrStorage, err)
	}

	drafts := make([]Draft, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Key, offlineReportPrefix) {
			continue
		}
		var d Draft
		if err := json.Unmarshal(e.Value, &d); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrStorage, e.Key, err)
		}
		drafts = append(drafts, d)
	}
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].SavedAt.Before(drafts[j].SavedAt)
	})
	return drafts, nil
}

// SaveActions replaces a home's action tracker
func (s *Store) SaveActions(ctx context.Context, homeID string, actions []report.Action) error {
	if actions == nil {
		actions = []report.Action{}
	}
	return s.put(ctx, ActionsKey(homeID), actions)
}

// LoadActions returns a home's action tracker, empty when none was saved
func (s *Store) LoadActions(ctx context.Context, homeID string) ([]report.Action, error) {
	var actions []report.Action
	err := s.get(ctx, ActionsKey(homeID), &actions)
	if errors.Is(err, ErrNotFound) {
		return []report.Action{}, nil
	}
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// SaveVersion prepends a snapshot of data to the report's history and
// trims it to the store's limit. Newest first.
func (s *Store) SaveVersion(ctx context.Context, reportID string, data *report.ReportData, status string) (report.Version, error) {
	v, err := report.NewVersion(data, status, time.Now())
	if err != nil {
		return report.Version{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	var versions []report.Version
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &Store{db: tx, versionLimit: s.versionLimit}
		existing, err := txStore.ListVersions(ctx, reportID)
		if err != nil {
			return err
		}
		versions = append([]report.Version{v}, existing...)
		if len(versions) > s.versionLimit {
			versions = versions[:s.versionLimit]
		}
		return txStore.put(ctx, VersionsKey(reportID), versions)
	})
	if err != nil {
		return report.Version{}, err
	}
	return v, nil
}

// ListVersions returns the report's version history, newest first
func (s *Store) ListVersions(ctx context.Context, reportID string) ([]report.Version, error) {
	var versions []report.Version
	err := s.get(ctx, VersionsKey(reportID), &versions)
	if errors.Is(err, ErrNotFound) {
		return []report.Version{}, nil
	}
	if err != nil {
		return nil, err
	}
	return versions, nil
}

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/report"
)

// ErrNoPendingEntry is returned when a report has nothing waiting in the outbox
var ErrNoPendingEntry = errors.New("no pending outbox entry")

// Write is one local save of a report, queued for the remote store
type Write struct {
	OrganizationID string
	ReportID       string
	HomeID         string
	Data           *report.ReportData
	Summary        string
	ActionPlan     string
	WrittenAt      time.Time
	// BaseClock is the clock of the remote row the session started from
	BaseClock VectorClock
}

// Outbox queues report writes in the local database
type Outbox struct {
	db       *gorm.DB
	deviceID string
}

// NewOutbox creates an outbox for this device
func NewOutbox(local *database.DB, deviceID string) *Outbox {
	return &Outbox{db: local.DB, deviceID: deviceID}
}

// Append queues a write. Versions are monotonic per report and the entry's
// clock descends from every earlier entry for the same report.
func (o *Outbox) Append(ctx context.Context, w Write) (*models.OutboxEntry, error) {
	if w.ReportID == "" || w.Data == nil {
		return nil, fmt.Errorf("outbox append: report id and data are required")
	}
	if w.WrittenAt.IsZero() {
		w.WrittenAt = time.Now().UTC()
	}

	var entry models.OutboxEntry
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last models.OutboxEntry
		err := tx.Where("report_id = ?", w.ReportID).Order("version DESC").Take(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		clock := ClockFromJSONB(last.VectorClock)
		clock.Merge(w.BaseClock)
		clock.Increment(o.deviceID)

		entry = models.OutboxEntry{
			ReportID:       w.ReportID,
			OrganizationID: w.OrganizationID,
			HomeID:         w.HomeID,
			Version:        last.Version + 1,
			DeviceID:       o.deviceID,
			VectorClock:    clock.ToJSONB(),
			Payload:        datatypes.NewJSONType(*w.Data),
			Summary:        w.Summary,
			ActionPlan:     w.ActionPlan,
			Status:         models.OutboxPending,
			WrittenAt:      w.WrittenAt.UTC(),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, fmt.Errorf("outbox append %s: %w", w.ReportID, err)
	}
	return &entry, nil
}

// Latest returns the newest pending entry for a report
func (o *Outbox) Latest(ctx context.Context, reportID string) (*models.OutboxEntry, error) {
	var entry models.OutboxEntry
	err := o.db.WithContext(ctx).
		Where("report_id = ? AND status = ?", reportID, models.OutboxPending).
		Order("version DESC").
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoPendingEntry, reportID)
	}
	if err != nil {
		return nil, fmt.Errorf("outbox latest %s: %w", reportID, err)
	}
	return &entry, nil
}

// Pending lists pending entries, oldest first
func (o *Outbox) Pending(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	var entries []models.OutboxEntry
	q := o.db.WithContext(ctx).
		Where("status = ?", models.OutboxPending).
		Order("written_at ASC, version ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("outbox pending: %w", err)
	}
	return entries, nil
}

// PendingReportIDs lists reports with at least one pending entry
func (o *Outbox) PendingReportIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	q := o.db.WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("status = ?", models.OutboxPending).
		Group("report_id").
		Order("MIN(written_at) ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("report_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("outbox pending reports: %w", err)
	}
	return ids, nil
}

// MarkPushed records a successful push of entry. The stored clock becomes
// the merged clock written remotely, and older pending entries for the
// report are superseded.
func (o *Outbox) MarkPushed(ctx context.Context, entry *models.OutboxEntry, merged VectorClock) error {
	return o.finish(ctx, entry, models.OutboxPushed, merged)
}

// MarkSuperseded records that the remote copy won over entry
func (o *Outbox) MarkSuperseded(ctx context.Context, entry *models.OutboxEntry, merged VectorClock) error {
	return o.finish(ctx, entry, models.OutboxSuperseded, merged)
}

func (o *Outbox) finish(ctx context.Context, entry *models.OutboxEntry, status string, merged VectorClock) error {
	now := time.Now().UTC()
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.OutboxEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]interface{}{
				"status":        status,
				"vector_clock":  merged.ToJSONB(),
				"processed_at":  now,
				"error_message": nil,
			}).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.OutboxEntry{}).
			Where("report_id = ? AND status = ? AND version < ?", entry.ReportID, models.OutboxPending, entry.Version).
			Updates(map[string]interface{}{
				"status":       models.OutboxSuperseded,
				"processed_at": now,
			}).Error
	})
	if err != nil {
		return fmt.Errorf("outbox mark %s %s: %w", status, entry.ReportID, err)
	}
	entry.Status = status
	entry.VectorClock = merged.ToJSONB()
	entry.ProcessedAt = &now
	return nil
}

// MarkFailed counts a failed push. After maxAttempts the entry is parked
// as failed and no longer retried automatically.
func (o *Outbox) MarkFailed(ctx context.Context, entry *models.OutboxEntry, cause error, maxAttempts int) error {
	msg := cause.Error()
	entry.Attempts++
	entry.ErrorMessage = &msg
	if maxAttempts > 0 && entry.Attempts >= maxAttempts {
		entry.Status = models.OutboxFailed
	}
	err := o.db.WithContext(ctx).Model(&models.OutboxEntry{}).
		Where("id = ?", entry.ID).
		Updates(map[string]interface{}{
			"attempts":      entry.Attempts,
			"error_message": msg,
			"status":        entry.Status,
		}).Error
	if err != nil {
		return fmt.Errorf("outbox mark failed %s: %w", entry.ReportID, err)
	}
	return nil
}

// Compact supersedes every pending entry that has a newer pending entry
// for the same report. Returns the number of entries superseded.
func (o *Outbox) Compact(ctx context.Context) (int64, error) {
	res := o.db.WithContext(ctx).Exec(`
		UPDATE sync_outbox SET status = ?, processed_at = ?
		WHERE status = ? AND version < (
			SELECT MAX(o2.version) FROM sync_outbox o2
			WHERE o2.report_id = sync_outbox.report_id AND o2.status = ?
		)`,
		models.OutboxSuperseded, time.Now().UTC(), models.OutboxPending, models.OutboxPending)
	if res.Error != nil {
		return 0, fmt.Errorf("outbox compact: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Prune deletes processed entries older than before, keeping the newest
// entry of each report so its clock is not lost
func (o *Outbox) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := o.db.WithContext(ctx).Exec(`
		DELETE FROM sync_outbox
		WHERE status IN (?, ?) AND processed_at < ? AND version < (
			SELECT MAX(o2.version) FROM sync_outbox o2
			WHERE o2.report_id = sync_outbox.report_id
		)`,
		models.OutboxPushed, models.OutboxSuperseded, before.UTC())
	if res.Error != nil {
		return 0, fmt.Errorf("outbox prune: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Clock returns the newest clock known locally for a report
func (o *Outbox) Clock(ctx context.Context, reportID string) (VectorClock, error) {
	var last models.OutboxEntry
	err := o.db.WithContext(ctx).Where("report_id = ?", reportID).Order("version DESC").Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewVectorClock(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("outbox clock %s: %w", reportID, err)
	}
	return ClockFromJSONB(last.VectorClock), nil
}

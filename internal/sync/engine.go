package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xelth-com/reg44go/internal/config"
	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/localstore"
	"github.com/xelth-com/reg44go/internal/models"
)

var (
	// ErrNothingToPush is returned when a report has neither a pending entry nor a draft
	ErrNothingToPush = errors.New("nothing to push")
	// ErrRemoteUnavailable wraps failures to reach the remote store
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)

// PendingDraft is one entry of the list offered to the user on reconnect
type PendingDraft struct {
	ReportID       string    `json:"reportId"`
	OrganizationID string    `json:"organizationId"`
	HomeID         string    `json:"homeId"`
	HomeName       string    `json:"homeName"`
	VisitDate      string    `json:"visitDate"`
	SettingType    string    `json:"settingType"`
	SavedAt        time.Time `json:"savedAt"`
	Version        int64     `json:"version"`
	PendingWrites  int64     `json:"pendingWrites"`
}

// PushResult describes what happened to one report during a push
type PushResult struct {
	ReportID   string             `json:"reportId"`
	Version    int64              `json:"version"`
	Resolution ConflictResolution `json:"resolution"`
	Conflict   bool               `json:"conflict"` // a sync_conflicts row was written
}

// PushListener is told about every push with the remote row as it now stands
type PushListener func(orgID string, row *models.Report, result *PushResult)

// SyncEngine moves queued report writes from the device to the remote store
type SyncEngine struct {
	mu sync.Mutex

	remote   *database.DB
	store    *localstore.Store
	outbox   *Outbox
	resolver *ConflictResolver
	checksum *ChecksumCalculator
	config   *config.SyncConfig
	deviceID string
	listener PushListener

	// Pushes of the same report are serialized
	pushMu sync.Mutex

	isRunning bool
	lastSync  time.Time
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewSyncEngine creates a new sync engine
func NewSyncEngine(remote *database.DB, store *localstore.Store, outbox *Outbox, cfg *config.SyncConfig, deviceID string) *SyncEngine {
	return &SyncEngine{
		remote:   remote,
		store:    store,
		outbox:   outbox,
		resolver: NewConflictResolver(ConflictResolutionStrategy(cfg.ConflictResolution)),
		checksum: NewChecksumCalculator(),
		config:   cfg,
		deviceID: deviceID,
	}
}

// OnPush registers a listener for rows written by pushes
func (se *SyncEngine) OnPush(l PushListener) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.listener = l
}

// Ping reports whether the remote store answers within the configured timeout
func (se *SyncEngine) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(se.config.PingTimeout)*time.Second)
	defer cancel()
	sqlDB, err := se.remote.DB.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	return nil
}

// PendingDrafts lists the organization's local drafts that have not reached the remote store
func (se *SyncEngine) PendingDrafts(ctx context.Context, orgID string) ([]PendingDraft, error) {
	drafts, err := se.store.ListDrafts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]PendingDraft, 0, len(drafts))
	for _, d := range drafts {
		if d.OrganizationID != orgID {
			continue
		}
		var pending int64
		err := se.outbox.db.WithContext(ctx).Model(&models.OutboxEntry{}).
			Where("report_id = ? AND status = ?", d.ReportID, models.OutboxPending).
			Count(&pending).Error
		if err != nil {
			return nil, fmt.Errorf("count pending writes: %w", err)
		}
		out = append(out, PendingDraft{
			ReportID:       d.ReportID,
			OrganizationID: d.OrganizationID,
			HomeID:         d.Data.HomeID,
			HomeName:       d.Data.HomeName,
			VisitDate:      d.Data.VisitDate,
			SettingType:    string(d.Data.SettingType),
			SavedAt:        d.SavedAt,
			Version:        d.Version,
			PendingWrites:  pending,
		})
	}
	return out, nil
}

// Push sends the newest local write of a report to the remote store,
// settles it against the remote row, then drops the local draft.
func (se *SyncEngine) Push(ctx context.Context, orgID, reportID string) (*PushResult, error) {
	se.pushMu.Lock()
	defer se.pushMu.Unlock()

	entry, err := se.entryFor(ctx, orgID, reportID)
	if err != nil {
		return nil, err
	}

	if se.config.PushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(se.config.PushTimeout)*time.Second)
		defer cancel()
	}

	result, row, err := se.reconcile(ctx, entry)
	if err != nil {
		if markErr := se.outbox.MarkFailed(context.WithoutCancel(ctx), entry, err, se.config.MaxAttempts); markErr != nil {
			zap.L().Warn("⚠️ Could not record failed push", zap.String("report", reportID), zap.Error(markErr))
		}
		return nil, err
	}

	if err := se.store.DeleteDraft(ctx, reportID); err != nil {
		zap.L().Warn("⚠️ Pushed but could not drop local draft", zap.String("report", reportID), zap.Error(err))
	}

	se.mu.Lock()
	se.lastSync = time.Now()
	listener := se.listener
	se.mu.Unlock()
	if listener != nil && row != nil {
		listener(orgID, row, result)
	}

	zap.L().Info("✅ Report pushed",
		zap.String("report", reportID),
		zap.Int64("version", result.Version),
		zap.String("winner", string(result.Resolution.Winner)),
		zap.Bool("conflict", result.Conflict),
	)
	return result, nil
}

// entryFor returns the newest pending entry, queueing the local draft
// first when the outbox has nothing for it
func (se *SyncEngine) entryFor(ctx context.Context, orgID, reportID string) (*models.OutboxEntry, error) {
	entry, err := se.outbox.Latest(ctx, reportID)
	if err == nil {
		if entry.OrganizationID != orgID {
			return nil, fmt.Errorf("%w: %s", ErrNothingToPush, reportID)
		}
		return entry, nil
	}
	if !errors.Is(err, ErrNoPendingEntry) {
		return nil, err
	}

	draft, err := se.store.LoadDraft(ctx, reportID)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNothingToPush, reportID)
	}
	if err != nil {
		return nil, err
	}
	if draft.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: %s", ErrNothingToPush, reportID)
	}

	return se.outbox.Append(ctx, Write{
		OrganizationID: draft.OrganizationID,
		ReportID:       draft.ReportID,
		HomeID:         draft.Data.HomeID,
		Data:           &draft.Data,
		Summary:        draft.Summary,
		ActionPlan:     draft.ActionPlan,
		WrittenAt:      draft.SavedAt,
	})
}

// reconcile applies entry to the remote row inside one remote transaction
func (se *SyncEngine) reconcile(ctx context.Context, entry *models.OutboxEntry) (*PushResult, *models.Report, error) {
	local := WriteVersion{
		VectorClock: ClockFromJSONB(entry.VectorClock),
		WrittenAt:   entry.WrittenAt,
		DeviceID:    entry.DeviceID,
	}

	var (
		result PushResult
		row    models.Report
		merged VectorClock
	)
	err := se.remote.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Scopes(database.ForOrganization(entry.OrganizationID)).
			Where("id = ?", entry.ReportID).
			Take(&row).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}

		remote := WriteVersion{
			VectorClock: ClockFromJSONB(row.VectorClock),
			WrittenAt:   row.WrittenAt,
			DeviceID:    row.UpdatedBy,
		}
		res := se.resolver.Resolve(local, remote)
		if isNew {
			res = ConflictResolution{Strategy: ConflictCausal, Winner: SideLocal, Relation: ClockAfter, Reason: "No remote copy"}
		}
		result = PushResult{ReportID: entry.ReportID, Resolution: res}

		merged = local.VectorClock.Copy()
		merged.Merge(remote.VectorClock)

		localData := entry.Payload.Data()
		if !res.Causal() && se.config.RecordConflicts && !se.checksum.Same(localData, row.Data.Data()) {
			if err := se.recordConflict(tx, entry, &row, local, remote, res); err != nil {
				return err
			}
			result.Conflict = true
		}

		if res.Winner == SideRemote {
			if err := tx.Model(&models.Report{}).
				Scopes(database.ForOrganization(entry.OrganizationID)).
				Where("id = ?", row.ID).
				Update("vector_clock", merged.ToJSONB()).Error; err != nil {
				return err
			}
			row.VectorClock = merged.ToJSONB()
			result.Version = row.Version
			return nil
		}

		row.ID = entry.ReportID
		row.OrganizationID = entry.OrganizationID
		row.HomeID = entry.HomeID
		row.Data = datatypes.NewJSONType(localData)
		row.Summary = entry.Summary
		row.ActionPlan = entry.ActionPlan
		row.Version++
		row.VectorClock = merged.ToJSONB()
		row.WrittenAt = entry.WrittenAt
		row.UpdatedBy = entry.DeviceID
		if row.Status == "" {
			row.Status = models.ReportStatusDraft
		}
		result.Version = row.Version

		if isNew {
			return tx.Create(&row).Error
		}
		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: push %s: %v", ErrRemoteUnavailable, entry.ReportID, err)
	}

	markCtx := context.WithoutCancel(ctx)
	if result.Resolution.Winner == SideRemote {
		err = se.outbox.MarkSuperseded(markCtx, entry, merged)
	} else {
		err = se.outbox.MarkPushed(markCtx, entry, merged)
	}
	if err != nil {
		zap.L().Warn("⚠️ Pushed but could not update outbox", zap.String("report", entry.ReportID), zap.Error(err))
	}
	return &result, &row, nil
}

// recordConflict keeps both sides of a write the clocks could not order
func (se *SyncEngine) recordConflict(tx *gorm.DB, entry *models.OutboxEntry, row *models.Report, local, remote WriteVersion, res ConflictResolution) error {
	localData, err := json.Marshal(entry.Payload.Data())
	if err != nil {
		return err
	}
	remoteData, err := json.Marshal(row.Data.Data())
	if err != nil {
		return err
	}

	conflictType := ConflictTypeConcurrent
	if res.Relation == ClockEqual {
		conflictType = ConflictTypeEqualClock
	}

	conflict := models.SyncConflict{
		OrganizationID: entry.OrganizationID,
		EntityType:     row.GetEntityType(),
		EntityID:       row.GetEntityID(),
		ConflictType:   conflictType,
		LocalData:      datatypes.JSON(localData),
		LocalMetadata: models.JSONB{
			"vector_clock": local.VectorClock.String(),
			"written_at":   local.WrittenAt.UTC().Format(time.RFC3339Nano),
			"device_id":    local.DeviceID,
			"version":      entry.Version,
		},
		RemoteData: datatypes.JSON(remoteData),
		RemoteMetadata: models.JSONB{
			"vector_clock": remote.VectorClock.String(),
			"written_at":   remote.WrittenAt.UTC().Format(time.RFC3339Nano),
			"device_id":    remote.DeviceID,
			"version":      row.Version,
		},
		Strategy: string(res.Strategy),
		Winner:   string(res.Winner),
		Reason:   res.Reason,
		Status:   models.ConflictStatusResolved,
	}
	if err := tx.Create(&conflict).Error; err != nil {
		return err
	}
	zap.L().Warn("⚔️ Report write conflict",
		zap.String("report", entry.ReportID),
		zap.String("type", conflictType),
		zap.String("winner", string(res.Winner)),
		zap.String("reason", res.Reason),
	)
	return nil
}

// Conflicts lists recorded conflicts for an organization, newest first
func (se *SyncEngine) Conflicts(ctx context.Context, orgID string, limit int) ([]models.SyncConflict, error) {
	var conflicts []models.SyncConflict
	q := se.remote.WithContext(ctx).
		Scopes(database.ForOrganization(orgID)).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&conflicts).Error; err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return conflicts, nil
}

// Start starts the background loop. It compacts the outbox every interval
// and, when auto push is on, drains it while the remote store answers.
func (se *SyncEngine) Start() error {
	se.mu.Lock()
	defer se.mu.Unlock()

	if se.isRunning {
		return fmt.Errorf("sync engine already running")
	}
	if !se.config.Enabled {
		zap.L().Info("⏸️ Sync engine disabled")
		return nil
	}

	se.isRunning = true
	se.stopChan = make(chan struct{})
	se.doneChan = make(chan struct{})
	zap.L().Info("🔄 Sync engine starting",
		zap.Int("interval_s", se.config.Interval),
		zap.Bool("auto_push", se.config.AutoPush),
	)

	go se.loop(se.stopChan, se.doneChan)
	return nil
}

// Stop stops the background loop and waits for it to exit
func (se *SyncEngine) Stop() {
	se.mu.Lock()
	if !se.isRunning {
		se.mu.Unlock()
		return
	}
	se.isRunning = false
	close(se.stopChan)
	done := se.doneChan
	se.mu.Unlock()

	<-done
	zap.L().Info("✅ Sync engine stopped")
}

func (se *SyncEngine) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Duration(se.config.Interval) * time.Second)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
			se.RunOnce(ctx)
		case <-stop:
			return
		}
	}
}

// RunOnce performs one maintenance pass: compaction, then the auto push drain
func (se *SyncEngine) RunOnce(ctx context.Context) {
	if se.config.CompactOutbox {
		if n, err := se.outbox.Compact(ctx); err != nil {
			zap.L().Warn("⚠️ Outbox compaction failed", zap.Error(err))
		} else if n > 0 {
			zap.L().Debug("🧹 Outbox compacted", zap.Int64("superseded", n))
		}
		if _, err := se.outbox.Prune(ctx, time.Now().Add(-24*time.Hour)); err != nil {
			zap.L().Warn("⚠️ Outbox prune failed", zap.Error(err))
		}
	}

	if !se.config.AutoPush {
		return
	}
	if err := se.Ping(ctx); err != nil {
		zap.L().Debug("📴 Remote store offline, skipping auto push", zap.Error(err))
		return
	}

	ids, err := se.outbox.PendingReportIDs(ctx, se.config.BatchSize)
	if err != nil {
		zap.L().Warn("⚠️ Could not list pending reports", zap.Error(err))
		return
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		entry, err := se.outbox.Latest(ctx, id)
		if err != nil {
			continue
		}
		if _, err := se.Push(ctx, entry.OrganizationID, id); err != nil {
			zap.L().Warn("⚠️ Auto push failed", zap.String("report", id), zap.Error(err))
		}
	}
}

// GetSyncStatus returns the current sync status
func (se *SyncEngine) GetSyncStatus(ctx context.Context) map[string]interface{} {
	se.mu.Lock()
	status := map[string]interface{}{
		"is_running": se.isRunning,
		"auto_push":  se.config.AutoPush,
		"last_sync":  se.lastSync,
		"device_id":  se.deviceID,
	}
	se.mu.Unlock()

	status["is_online"] = se.Ping(ctx) == nil
	var pending int64
	if err := se.outbox.db.WithContext(ctx).Model(&models.OutboxEntry{}).
		Where("status = ?", models.OutboxPending).Count(&pending).Error; err == nil {
		status["pending_writes"] = pending
	}
	return status
}

// LocalClock returns the newest clock this device holds for a report
func (se *SyncEngine) LocalClock(ctx context.Context, reportID string) (VectorClock, error) {
	return se.outbox.Clock(ctx, reportID)
}

// Queue appends a write to the outbox. Sessions call it on every save.
func (se *SyncEngine) Queue(ctx context.Context, w Write) (*models.OutboxEntry, error) {
	return se.outbox.Append(ctx, w)
}

// RemoteClock returns the clock stored on the remote row, empty when the
// row is missing or unreachable
func RemoteClock(row *models.Report) VectorClock {
	if row == nil {
		return NewVectorClock()
	}
	return ClockFromJSONB(row.VectorClock)
}

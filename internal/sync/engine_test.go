package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorm.io/datatypes"

	"github.com/xelth-com/reg44go/internal/config"
	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/localstore"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/report"
)

const (
	testOrg    = "org-1"
	testDevice = "device-a"
)

type testEnv struct {
	remote *database.DB
	local  *database.DB
	store  *localstore.Store
	outbox *Outbox
	engine *SyncEngine
	cfg    *config.SyncConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	remote, err := database.OpenLocal(":memory:")
	require.NoError(t, err)
	local, err := database.OpenLocal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = remote.Close()
		_ = local.Close()
	})
	require.NoError(t, remote.AutoMigrate(models.RemoteModels()...))
	require.NoError(t, local.AutoMigrate(models.LocalModels()...))

	cfg := &config.SyncConfig{
		Enabled:            true,
		Interval:           1,
		PingTimeout:        1,
		PushTimeout:        5,
		MaxAttempts:        3,
		BatchSize:          10,
		ConflictResolution: "last_write_wins",
		RecordConflicts:    true,
		CompactOutbox:      true,
	}
	store := localstore.New(local, 2)
	outbox := NewOutbox(local, testDevice)
	return &testEnv{
		remote: remote,
		local:  local,
		store:  store,
		outbox: outbox,
		engine: NewSyncEngine(remote, store, outbox, cfg, testDevice),
		cfg:    cfg,
	}
}

func sampleReport(t *testing.T, id, homeName string) *report.ReportData {
	t.Helper()
	data := report.New(id, "home-1", "2026-03-01")
	require.NoError(t, data.SetSettingType(report.SettingChildrensHome))
	require.NoError(t, data.SetFormType(report.FormFull))
	data.HomeName = homeName
	return data
}

// saveLocally mimics one autosave tick: draft write plus outbox append
func (e *testEnv) saveLocally(t *testing.T, data *report.ReportData, at time.Time, base VectorClock) *models.OutboxEntry {
	t.Helper()
	ctx := context.Background()
	entry, err := e.outbox.Append(ctx, Write{
		OrganizationID: testOrg,
		ReportID:       data.ReportID,
		HomeID:         data.HomeID,
		Data:           data,
		Summary:        "summary of " + data.HomeName,
		WrittenAt:      at,
		BaseClock:      base,
	})
	require.NoError(t, err)
	require.NoError(t, e.store.SaveDraft(ctx, localstore.Draft{
		ReportID:       data.ReportID,
		OrganizationID: testOrg,
		Data:           *data,
		SavedAt:        at,
		Version:        entry.Version,
	}))
	return entry
}

func (e *testEnv) seedRemote(t *testing.T, data *report.ReportData, clock VectorClock, at time.Time) {
	t.Helper()
	row := models.Report{
		ID:             data.ReportID,
		OrganizationID: testOrg,
		HomeID:         data.HomeID,
		Status:         models.ReportStatusDraft,
		Data:           datatypes.NewJSONType(*data),
		Version:        3,
		VectorClock:    clock.ToJSONB(),
		WrittenAt:      at,
		UpdatedBy:      "device-b",
	}
	require.NoError(t, e.remote.Create(&row).Error)
}

func (e *testEnv) remoteRow(t *testing.T, id string) models.Report {
	t.Helper()
	var row models.Report
	require.NoError(t, e.remote.Scopes(database.ForOrganization(testOrg)).Where("id = ?", id).Take(&row).Error)
	return row
}

func TestOutboxAppendIsMonotonic(t *testing.T) {
	env := newTestEnv(t)
	data := sampleReport(t, "r1", "Oak House")
	now := time.Now()

	first := env.saveLocally(t, data, now, nil)
	second := env.saveLocally(t, data, now.Add(time.Second), VectorClock{"device-b": 2})

	assert.EqualValues(t, 1, first.Version)
	assert.EqualValues(t, 2, second.Version)
	assert.Equal(t, VectorClock{testDevice: 1}, ClockFromJSONB(first.VectorClock))
	assert.Equal(t, VectorClock{testDevice: 2, "device-b": 2}, ClockFromJSONB(second.VectorClock))
	assert.Equal(t, ClockAfter, ClockFromJSONB(second.VectorClock).Compare(ClockFromJSONB(first.VectorClock)))
}

func TestOutboxCompact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	a := sampleReport(t, "r1", "Oak House")
	b := sampleReport(t, "r2", "Elm Lodge")

	env.saveLocally(t, a, now, nil)
	env.saveLocally(t, a, now.Add(time.Second), nil)
	env.saveLocally(t, a, now.Add(2*time.Second), nil)
	env.saveLocally(t, b, now, nil)

	n, err := env.outbox.Compact(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	pending, err := env.outbox.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	latest, err := env.outbox.Latest(ctx, "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, latest.Version)

	ids, err := env.outbox.PendingReportIDs(ctx, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, ids)
}

func TestPushCreatesRemoteRowAndDropsDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	data := sampleReport(t, "r1", "Oak House")
	env.saveLocally(t, data, time.Now(), nil)

	var pushed []string
	env.engine.OnPush(func(orgID string, row *models.Report, _ *PushResult) { pushed = append(pushed, orgID+"/"+row.ID) })

	res, err := env.engine.Push(ctx, testOrg, "r1")
	require.NoError(t, err)
	assert.Equal(t, SideLocal, res.Resolution.Winner)
	assert.False(t, res.Conflict)
	assert.EqualValues(t, 1, res.Version)

	row := env.remoteRow(t, "r1")
	assert.Equal(t, "Oak House", row.Data.Data().HomeName)
	assert.Equal(t, "summary of Oak House", row.Summary)
	assert.Equal(t, models.ReportStatusDraft, row.Status)
	assert.Equal(t, VectorClock{testDevice: 1}, ClockFromJSONB(row.VectorClock))

	_, err = env.store.LoadDraft(ctx, "r1")
	assert.ErrorIs(t, err, localstore.ErrNotFound)
	_, err = env.outbox.Latest(ctx, "r1")
	assert.ErrorIs(t, err, ErrNoPendingEntry)
	assert.Equal(t, []string{testOrg + "/r1"}, pushed)

	// Nothing left to push
	_, err = env.engine.Push(ctx, testOrg, "r1")
	assert.ErrorIs(t, err, ErrNothingToPush)
}

func TestPushSupersedesOlderPendingEntries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	data := sampleReport(t, "r1", "first")
	env.saveLocally(t, data, now, nil)
	data.HomeName = "second"
	env.saveLocally(t, data, now.Add(time.Second), nil)

	_, err := env.engine.Push(ctx, testOrg, "r1")
	require.NoError(t, err)
	assert.Equal(t, "second", env.remoteRow(t, "r1").Data.Data().HomeName)

	pending, err := env.outbox.Pending(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPushRemoteCausallyNewerKeepsRemote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	env.seedRemote(t, sampleReport(t, "r1", "remote copy"), VectorClock{testDevice: 1, "device-b": 1}, now.Add(-time.Hour))
	env.saveLocally(t, sampleReport(t, "r1", "local copy"), now, nil)

	res, err := env.engine.Push(ctx, testOrg, "r1")
	require.NoError(t, err)
	assert.Equal(t, SideRemote, res.Resolution.Winner)
	assert.True(t, res.Resolution.Causal())
	assert.False(t, res.Conflict)

	row := env.remoteRow(t, "r1")
	assert.Equal(t, "remote copy", row.Data.Data().HomeName)
	assert.EqualValues(t, 3, row.Version)

	var conflicts int64
	require.NoError(t, env.remote.Model(&models.SyncConflict{}).Count(&conflicts).Error)
	assert.Zero(t, conflicts)
}

func TestPushConcurrentLastWriteWinsRecordsConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	env.seedRemote(t, sampleReport(t, "r1", "remote copy"), VectorClock{"device-b": 1}, now.Add(-time.Minute))
	env.saveLocally(t, sampleReport(t, "r1", "local copy"), now, nil)

	res, err := env.engine.Push(ctx, testOrg, "r1")
	require.NoError(t, err)
	assert.Equal(t, SideLocal, res.Resolution.Winner)
	assert.Equal(t, ClockConcurrent, res.Resolution.Relation)
	assert.True(t, res.Conflict)

	row := env.remoteRow(t, "r1")
	assert.Equal(t, "local copy", row.Data.Data().HomeName)
	assert.EqualValues(t, 4, row.Version)
	assert.Equal(t, VectorClock{testDevice: 1, "device-b": 1}, ClockFromJSONB(row.VectorClock))

	conflicts, err := env.engine.Conflicts(ctx, testOrg, 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTypeConcurrent, conflicts[0].ConflictType)
	assert.Equal(t, string(SideLocal), conflicts[0].Winner)
	assert.Contains(t, string(conflicts[0].RemoteData), "remote copy")

	other, err := env.engine.Conflicts(ctx, "org-2", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPushConcurrentRemoteNewerWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	env.seedRemote(t, sampleReport(t, "r1", "remote copy"), VectorClock{"device-b": 1}, now.Add(time.Minute))
	env.saveLocally(t, sampleReport(t, "r1", "local copy"), now, nil)

	res, err := env.engine.Push(ctx, testOrg, "r1")
	require.NoError(t, err)
	assert.Equal(t, SideRemote, res.Resolution.Winner)
	assert.True(t, res.Conflict)
	assert.Equal(t, "remote copy", env.remoteRow(t, "r1").Data.Data().HomeName)

	// The local draft is dropped either way; the loser lives on in the conflict row
	_, err = env.store.LoadDraft(ctx, "r1")
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestPushIdenticalConcurrentWriteIsNotAConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	data := sampleReport(t, "r1", "same")

	env.seedRemote(t, data, VectorClock{"device-b": 1}, now.Add(-time.Minute))
	env.saveLocally(t, data, now, nil)

	res, err := env.engine.Push(ctx, testOrg, "r1")
	require.NoError(t, err)
	assert.False(t, res.Conflict)
}

func TestPushRejectsOtherOrganization(t *testing.T) {
	env := newTestEnv(t)
	env.saveLocally(t, sampleReport(t, "r1", "Oak House"), time.Now(), nil)

	_, err := env.engine.Push(context.Background(), "org-2", "r1")
	assert.ErrorIs(t, err, ErrNothingToPush)
}

func TestPushFromDraftWithoutOutboxEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	data := sampleReport(t, "r1", "draft only")
	require.NoError(t, env.store.SaveDraft(ctx, localstore.Draft{ReportID: "r1", OrganizationID: testOrg, Data: *data}))

	_, err := env.engine.Push(ctx, testOrg, "r1")
	require.NoError(t, err)
	assert.Equal(t, "draft only", env.remoteRow(t, "r1").Data.Data().HomeName)
}

func TestPushFailureIsCounted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.saveLocally(t, sampleReport(t, "r1", "Oak House"), time.Now(), nil)
	require.NoError(t, env.remote.Close())

	_, err := env.engine.Push(ctx, testOrg, "r1")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)

	entry, err := env.outbox.Latest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Attempts)
	require.NotNil(t, entry.ErrorMessage)

	_, err = env.engine.Push(ctx, testOrg, "r1")
	require.Error(t, err)
	_, err = env.engine.Push(ctx, testOrg, "r1")
	require.Error(t, err)

	// Parked after MaxAttempts
	_, err = env.outbox.Latest(ctx, "r1")
	assert.ErrorIs(t, err, ErrNoPendingEntry)
	assert.Error(t, env.engine.Ping(ctx))
}

func TestPendingDrafts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	data := sampleReport(t, "r1", "Oak House")
	env.saveLocally(t, data, now, nil)
	env.saveLocally(t, data, now.Add(time.Second), nil)
	require.NoError(t, env.store.SaveDraft(ctx, localstore.Draft{ReportID: "r9", OrganizationID: "org-2"}))

	drafts, err := env.engine.PendingDrafts(ctx, testOrg)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "r1", drafts[0].ReportID)
	assert.Equal(t, "Oak House", drafts[0].HomeName)
	assert.EqualValues(t, 2, drafts[0].PendingWrites)
	assert.EqualValues(t, 2, drafts[0].Version)
}

func TestRunOnceAutoPush(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.saveLocally(t, sampleReport(t, "r1", "Oak House"), time.Now(), nil)

	env.engine.RunOnce(ctx)
	_, err := env.outbox.Latest(ctx, "r1")
	require.NoError(t, err, "auto push is off, entry stays pending")

	env.cfg.AutoPush = true
	env.engine.RunOnce(ctx)
	_, err = env.outbox.Latest(ctx, "r1")
	assert.ErrorIs(t, err, ErrNoPendingEntry)
	assert.Equal(t, "Oak House", env.remoteRow(t, "r1").Data.Data().HomeName)
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	require.NoError(t, env.engine.Start())
	assert.Error(t, env.engine.Start())
	assert.Equal(t, true, env.engine.GetSyncStatus(context.Background())["is_running"])
	env.engine.Stop()
	env.engine.Stop()
	assert.Equal(t, false, env.engine.GetSyncStatus(context.Background())["is_running"])
}

func TestStartDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Enabled = false
	require.NoError(t, env.engine.Start())
	env.engine.Stop()
}

package session

import (
	"context"
	"errors"
	"sync"
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
	rsync "github.com/xelth-com/reg44go/internal/sync"
	"github.com/xelth-com/reg44go/internal/websocket"
)

const testOrg = "org-1"

type recordingHub struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (h *recordingHub) Broadcast(orgID string, ev websocket.Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return 1
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, ev := range h.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	manager *Manager
	remote  *database.DB
	store   *localstore.Store
	engine  *rsync.SyncEngine
	hub     *recordingHub
	home    models.Home
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	remote, err := database.OpenLocal(":memory:")
	require.NoError(t, err)
	local, err := database.OpenLocal(":memory:")
	require.NoError(t, err)
	require.NoError(t, remote.AutoMigrate(models.RemoteModels()...))
	require.NoError(t, local.AutoMigrate(models.LocalModels()...))

	home := models.Home{
		OrganizationID:    testOrg,
		Name:              "Oak House",
		URN:               "SC123456",
		SettingType:       string(report.SettingShortBreaks),
		RegisteredManager: "J. Smith",
	}
	require.NoError(t, remote.Create(&home).Error)

	cfg := &config.SyncConfig{
		Enabled: true, Interval: 30, PingTimeout: 1, PushTimeout: 5, MaxAttempts: 5, BatchSize: 10,
		ConflictResolution: "last_write_wins", RecordConflicts: true,
	}
	store := localstore.New(local, 2)
	outbox := rsync.NewOutbox(local, "device-a")
	engine := rsync.NewSyncEngine(remote, store, outbox, cfg, "device-a")
	hub := &recordingHub{}

	m := NewManager(remote, store, engine, hub, time.Hour)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
		_ = remote.Close()
		_ = local.Close()
	})
	return &fixture{manager: m, remote: remote, store: store, engine: engine, hub: hub, home: home}
}

func (f *fixture) createUnlocked(t *testing.T) *Session {
	t.Helper()
	s, err := f.manager.Create(context.Background(), testOrg, f.home.ID, "2026-03-01")
	require.NoError(t, err)
	_, err = s.Update(func(r *report.ReportData) error { return r.SetFormType(report.FormFull) })
	require.NoError(t, err)
	return s
}

func TestCreatePrefillsFromHome(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.Create(context.Background(), testOrg, f.home.ID, "2026-03-01")
	require.NoError(t, err)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Oak House", snap.HomeName)
	assert.Equal(t, "SC123456", snap.URN)
	assert.Equal(t, report.SettingShortBreaks, snap.SettingType)
	assert.NotEmpty(t, snap.Sections)
	assert.False(t, snap.Unlocked(), "form type still to choose")

	var row models.Report
	require.NoError(t, f.remote.Where("id = ?", s.ReportID()).Take(&row).Error)
	assert.Equal(t, models.ReportStatusDraft, row.Status)
	assert.Equal(t, testOrg, row.OrganizationID)
}

func TestCreateRejectsUnknownHomeAndBadDate(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Create(context.Background(), testOrg, "missing", "2026-03-01")
	assert.ErrorIs(t, err, ErrHomeNotFound)

	_, err = f.manager.Create(context.Background(), "org-2", f.home.ID, "2026-03-01")
	assert.ErrorIs(t, err, ErrHomeNotFound, "homes are organization scoped")

	_, err = f.manager.Create(context.Background(), testOrg, f.home.ID, "01/03/2026")
	var verr *report.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Open(ctx, testOrg, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	data := report.New("r-remote", f.home.ID, "2026-02-01")
	data.HomeName = "from remote"
	require.NoError(t, f.remote.Create(&models.Report{
		ID: "r-remote", OrganizationID: testOrg, HomeID: f.home.ID, Status: models.ReportStatusDraft,
		Data: datatypes.NewJSONType(*data),
	}).Error)

	s, err := f.manager.Open(ctx, testOrg, "r-remote")
	require.NoError(t, err)
	snap, _ := s.Snapshot()
	assert.Equal(t, "from remote", snap.HomeName)

	again, err := f.manager.Open(ctx, testOrg, "r-remote")
	require.NoError(t, err)
	assert.Same(t, s, again)

	_, err = f.manager.Open(ctx, "org-2", "r-remote")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenPrefersLocalDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	remoteData := report.New("r1", f.home.ID, "2026-02-01")
	remoteData.HomeName = "remote"
	require.NoError(t, f.remote.Create(&models.Report{
		ID: "r1", OrganizationID: testOrg, HomeID: f.home.ID, Data: datatypes.NewJSONType(*remoteData),
	}).Error)
	localData := *remoteData
	localData.HomeName = "local"
	require.NoError(t, f.store.SaveDraft(ctx, localstore.Draft{ReportID: "r1", OrganizationID: testOrg, Data: localData}))

	s, err := f.manager.Open(ctx, testOrg, "r1")
	require.NoError(t, err)
	snap, _ := s.Snapshot()
	assert.Equal(t, "local", snap.HomeName)
}

func TestConcurrentOpenSharesOneSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := report.New("r-shared", f.home.ID, "2026-02-01")
	require.NoError(t, f.remote.Create(&models.Report{
		ID: "r-shared", OrganizationID: testOrg, HomeID: f.home.ID, Data: datatypes.NewJSONType(*data),
	}).Error)

	const n = 8
	got := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := f.manager.Open(ctx, testOrg, "r-shared")
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Len(t, f.manager.Active(), 1)
}

func TestOpenFromDraftKeepsOwnClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.createUnlocked(t)
	id := s.ReportID()
	_, err := s.Update(func(r *report.ReportData) error {
		return r.UpdateSectionContent("voice-of-child", "A-text")
	})
	require.NoError(t, err)
	require.NoError(t, f.manager.Close(ctx, testOrg, id))

	// another device writes a newer copy while this one is offline
	var row models.Report
	require.NoError(t, f.remote.Where("id = ?", id).Take(&row).Error)
	other := row.Data.Data()
	require.NoError(t, other.UpdateSectionContent("voice-of-child", "B-text"))
	require.NoError(t, f.remote.Model(&models.Report{}).Where("id = ?", id).Updates(map[string]interface{}{
		"data":         datatypes.NewJSONType(other),
		"vector_clock": models.JSONB{"device-b": 1},
		"written_at":   time.Now().UTC().Add(time.Hour),
		"updated_by":   "device-b",
		"version":      row.Version + 1,
	}).Error)

	s, err = f.manager.Open(ctx, testOrg, id)
	require.NoError(t, err)
	assert.NotContains(t, s.BaseClock(), "device-b", "a draft has not seen the other device's write")
	assert.Equal(t, rsync.VectorClock{"device-a": 1}, s.BaseClock())

	require.NoError(t, s.flush(ctx))
	res, err := f.engine.Push(ctx, testOrg, id)
	require.NoError(t, err)
	assert.Equal(t, rsync.ClockConcurrent, res.Resolution.Relation)
	assert.Equal(t, rsync.SideRemote, res.Resolution.Winner)
	assert.True(t, res.Conflict)

	var conflicts int64
	require.NoError(t, f.remote.Model(&models.SyncConflict{}).Where("entity_id = ?", id).Count(&conflicts).Error)
	assert.EqualValues(t, 1, conflicts)

	require.NoError(t, f.remote.Where("id = ?", id).Take(&row).Error)
	kept := row.Data.Data()
	sec, ok := kept.Section("voice-of-child")
	require.True(t, ok)
	assert.Equal(t, "B-text", sec.Content)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	sec, _ = snap.Section("voice-of-child")
	assert.Equal(t, "B-text", sec.Content, "the open session follows the winning copy")
}

func TestUpdateIsAtomic(t *testing.T) {
	f := newFixture(t)
	s := f.createUnlocked(t)

	_, err := s.Update(func(r *report.ReportData) error {
		r.HomeName = "changed"
		return errors.New("rejected")
	})
	require.Error(t, err)

	snap, _ := s.Snapshot()
	assert.Equal(t, "Oak House", snap.HomeName)

	snap.HomeName = "mutating a snapshot"
	again, _ := s.Snapshot()
	assert.Equal(t, "Oak House", again.HomeName)
	assert.Contains(t, f.hub.types(), websocket.EventReportUpdated)
}

func TestSaveValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.manager.Create(ctx, testOrg, f.home.ID, "2026-03-01")
	require.NoError(t, err)

	_, err = f.manager.Save(ctx, testOrg, s.ReportID())
	var verr *report.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "formType")

	snap, _ := s.Snapshot()
	assert.Contains(t, snap.ValidationErrors, "formType")

	versions, err := f.store.ListVersions(ctx, s.ReportID())
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestSavePushesAndVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.createUnlocked(t)
	_, err := s.Update(func(r *report.ReportData) error {
		return r.UpdateSectionContent("voice-of-child", "Children said they feel safe.")
	})
	require.NoError(t, err)

	res, err := f.manager.Save(ctx, testOrg, s.ReportID())
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.Equal(t, "saved", res.Version.Status)

	var row models.Report
	require.NoError(t, f.remote.Where("id = ?", s.ReportID()).Take(&row).Error)
	pushed := row.Data.Data()
	sec, ok := pushed.Section("voice-of-child")
	require.True(t, ok)
	assert.Equal(t, "Children said they feel safe.", sec.Content)
	assert.Contains(t, row.Summary, "Children said they feel safe.")
	assert.NotEmpty(t, rsync.RemoteClock(&row))

	// Pushed drafts are removed locally
	_, err = f.store.LoadDraft(ctx, s.ReportID())
	assert.ErrorIs(t, err, localstore.ErrNotFound)

	// The session now descends from the pushed row
	assert.Equal(t, rsync.RemoteClock(&row), s.BaseClock())
	assert.Contains(t, f.hub.types(), websocket.EventReportSaved)
	assert.Contains(t, f.hub.types(), websocket.EventReportPushed)
}

func TestSaveOfflineKeepsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.createUnlocked(t)
	require.NoError(t, f.remote.Close())

	res, err := f.manager.Save(ctx, testOrg, s.ReportID())
	require.NoError(t, err)
	assert.False(t, res.Pushed)
	assert.NotEmpty(t, res.PushError)

	_, err = f.store.LoadDraft(ctx, s.ReportID())
	assert.NoError(t, err)
}

func TestSubmitMakesReportReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.createUnlocked(t)

	res, err := f.manager.Submit(ctx, testOrg, s.ReportID())
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusSubmitted, res.Version.Status)
	assert.Equal(t, models.ReportStatusSubmitted, s.Status())

	var row models.Report
	require.NoError(t, f.remote.Where("id = ?", s.ReportID()).Take(&row).Error)
	assert.Equal(t, models.ReportStatusSubmitted, row.Status)
	assert.NotNil(t, row.SubmittedAt)

	_, err = f.manager.Mutate(ctx, testOrg, s.ReportID(), func(r *report.ReportData) error { return nil })
	assert.ErrorIs(t, err, ErrSubmitted)
	_, err = f.manager.Save(ctx, testOrg, s.ReportID())
	assert.ErrorIs(t, err, ErrSubmitted)
}

func TestSubmittedReportStopsAutosaving(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.createUnlocked(t)
	id := s.ReportID()

	_, err := f.manager.Submit(ctx, testOrg, id)
	require.NoError(t, err)
	assert.True(t, s.ReadOnly())

	var before models.Report
	require.NoError(t, f.remote.Where("id = ?", id).Take(&before).Error)

	require.NoError(t, s.flush(ctx))
	_, err = f.store.LoadDraft(ctx, id)
	assert.ErrorIs(t, err, localstore.ErrNotFound)

	pending, err := f.engine.PendingDrafts(ctx, testOrg)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.engine.Push(ctx, testOrg, id)
	assert.ErrorIs(t, err, rsync.ErrNothingToPush)

	require.NoError(t, f.manager.Close(ctx, testOrg, id))
	_, err = f.store.LoadDraft(ctx, id)
	assert.ErrorIs(t, err, localstore.ErrNotFound, "closing does not write a draft either")

	var after models.Report
	require.NoError(t, f.remote.Where("id = ?", id).Take(&after).Error)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, models.ReportStatusSubmitted, after.Status)
}

func TestVersionHistoryKeepsTwo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.createUnlocked(t)

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Update(func(r *report.ReportData) error { r.VisitorName = name; return nil })
		require.NoError(t, err)
		_, err = f.manager.Save(ctx, testOrg, s.ReportID())
		require.NoError(t, err)
	}

	versions, err := f.store.ListVersions(ctx, s.ReportID())
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "c", versions[0].Data.VisitorName)
	assert.Equal(t, "b", versions[1].Data.VisitorName)
}

func TestCloseFlushesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.createUnlocked(t)

	require.NoError(t, f.manager.Close(ctx, testOrg, s.ReportID()))
	_, ok := f.manager.Get(testOrg, s.ReportID())
	assert.False(t, ok)

	d, err := f.store.LoadDraft(ctx, s.ReportID())
	require.NoError(t, err)
	assert.Equal(t, "Oak House", d.Data.HomeName)

	assert.ErrorIs(t, f.manager.Close(ctx, testOrg, s.ReportID()), ErrNotFound)
}

func TestShutdownStopsAutosaveLoops(t *testing.T) {
	f := newFixture(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f.createUnlocked(t)
	f.createUnlocked(t)
	assert.Len(t, f.manager.Active(), 2)

	require.NoError(t, f.manager.Shutdown(context.Background()))
	assert.Empty(t, f.manager.Active())

	_, err := f.manager.Create(context.Background(), testOrg, f.home.ID, "2026-03-01")
	assert.ErrorIs(t, err, ErrShutdown)
}

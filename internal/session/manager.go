// Package session keeps open reports in memory, each with its own autosave
// loop, and turns manual saves and submissions into local versions and
// remote writes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xelth-com/reg44go/internal/autosave"
	"github.com/xelth-com/reg44go/internal/database"
	"github.com/xelth-com/reg44go/internal/localstore"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/narrative"
	"github.com/xelth-com/reg44go/internal/report"
	rsync "github.com/xelth-com/reg44go/internal/sync"
	"github.com/xelth-com/reg44go/internal/websocket"
)

var (
	// ErrNotFound is returned for reports that exist neither locally nor remotely
	ErrNotFound = errors.New("report not found")
	// ErrHomeNotFound is returned when creating a report for an unknown home
	ErrHomeNotFound = errors.New("home not found")
	// ErrSubmitted is returned when changing a submitted report
	ErrSubmitted = errors.New("report already submitted")
	// ErrShutdown is returned once the manager has been shut down
	ErrShutdown = errors.New("session manager shut down")
)

// Publisher fans events out to connected clients
type Publisher interface {
	Broadcast(orgID string, ev websocket.Event) int
}

// SaveResult describes a manual save or submission
type SaveResult struct {
	Version report.Version `json:"version"`
	Pushed  bool           `json:"pushed"`
	// PushError is set when the remote store could not be reached
	PushError string `json:"pushError,omitempty"`
}

// Manager owns the open sessions
type Manager struct {
	remote   *database.DB
	store    *localstore.Store
	engine   *rsync.SyncEngine
	hub      Publisher
	interval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a session manager and subscribes it to sync pushes
func NewManager(remote *database.DB, store *localstore.Store, engine *rsync.SyncEngine, hub Publisher, interval time.Duration) *Manager {
	m := &Manager{
		remote:   remote,
		store:    store,
		engine:   engine,
		hub:      hub,
		interval: interval,
		sessions: make(map[string]*Session),
	}
	engine.OnPush(m.handlePush)
	return m
}

// Get returns an already open session
func (m *Manager) Get(orgID, reportID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[reportID]
	if !ok || s.orgID != orgID {
		return nil, false
	}
	return s, true
}

// Active lists the ids of open reports
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Open returns the session for a report, loading it from the local draft
// first and the remote row second
func (m *Manager) Open(ctx context.Context, orgID, reportID string) (*Session, error) {
	if s, ok, err := m.lookup(orgID, reportID); ok || err != nil {
		return s, err
	}

	loaded, err := m.load(ctx, orgID, reportID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShutdown
	}
	// another request may have opened it while we were loading
	if s, ok := m.sessions[reportID]; ok {
		if s.orgID != orgID {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, reportID)
		}
		return s, nil
	}
	return m.start(orgID, reportID, loaded.data, loaded.status, loaded.clock), nil
}

func (m *Manager) lookup(orgID, reportID string) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrShutdown
	}
	s, ok := m.sessions[reportID]
	if !ok {
		return nil, false, nil
	}
	if s.orgID != orgID {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFound, reportID)
	}
	return s, true, nil
}

type loadedReport struct {
	data   *report.ReportData
	status string
	clock  rsync.VectorClock
}

// load reads a report without holding m.mu. A draft carries this device's
// history, so its clock comes from the outbox; the remote clock only
// applies when the data itself comes from the remote row.
func (m *Manager) load(ctx context.Context, orgID, reportID string) (*loadedReport, error) {
	row, rowErr := m.loadRemote(ctx, orgID, reportID)

	out := &loadedReport{status: models.ReportStatusDraft}
	if row != nil {
		out.status = row.Status
	}

	draft, err := m.store.LoadDraft(ctx, reportID)
	switch {
	case err == nil && draft.OrganizationID == orgID:
		clock, err := m.engine.LocalClock(ctx, reportID)
		if err != nil {
			return nil, err
		}
		out.data = &draft.Data
		out.clock = clock
		zap.L().Info("📂 Report opened from local draft", zap.String("report", reportID))
	case err != nil && !errors.Is(err, localstore.ErrNotFound):
		return nil, err
	case row != nil:
		d := row.Data.Data()
		out.data = &d
		out.clock = rsync.RemoteClock(row)
	case rowErr != nil && !errors.Is(rowErr, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("open %s: %w", reportID, rowErr)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reportID)
	}
	out.data.ReportID = reportID
	return out, nil
}

// Create makes a new report for a home visit and opens it
func (m *Manager) Create(ctx context.Context, orgID, homeID, visitDate string) (*Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrShutdown
	}
	if _, err := time.Parse(report.DateLayout, visitDate); err != nil {
		return nil, &report.ValidationError{Fields: map[string]string{"visitDate": "Visit date must be YYYY-MM-DD"}}
	}

	var home models.Home
	err := m.remote.WithContext(ctx).Scopes(database.ForOrganization(orgID)).Where("id = ?", homeID).Take(&home).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrHomeNotFound, homeID)
	}
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	data := report.New(uuid.NewString(), home.ID, visitDate)
	data.SetHomeDetails(report.HomeDetails{
		HomeName:              home.Name,
		URN:                   home.URN,
		Address:               home.Address,
		RegisteredManager:     home.RegisteredManager,
		ResponsibleIndividual: home.ResponsibleIndividual,
	})
	if st := report.SettingType(home.SettingType); st.Valid() {
		if err := data.SetSettingType(st); err != nil {
			return nil, err
		}
	}

	row := models.Report{
		ID:             data.ReportID,
		OrganizationID: orgID,
		HomeID:         home.ID,
		Status:         models.ReportStatusDraft,
		Data:           datatypes.NewJSONType(*data),
		Summary:        narrative.Summary(data),
		ActionPlan:     narrative.ActionPlan(data),
		VectorClock:    models.JSONB{},
		WrittenAt:      time.Now().UTC(),
	}
	if err := m.remote.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrShutdown
	}
	zap.L().Info("🆕 Report created", zap.String("report", row.ID), zap.String("home", home.Name))
	return m.start(orgID, row.ID, data, row.Status, rsync.NewVectorClock()), nil
}

// start registers a session and launches its autosave loop. Caller holds m.mu.
func (m *Manager) start(orgID, reportID string, data *report.ReportData, status string, clock rsync.VectorClock) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		orgID:     orgID,
		reportID:  reportID,
		data:      data,
		status:    status,
		baseClock: clock,
		hub:       m.hub,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.autosaver = autosave.New(s, m.store, m.engine, m.interval, autosave.WithNotifier(m.notifyFailure(orgID)))
	m.sessions[reportID] = s

	go func() {
		defer close(s.done)
		_ = s.autosaver.Run(ctx)
	}()
	return s
}

func (m *Manager) notifyFailure(orgID string) autosave.Notifier {
	return func(reportID string, err error) {
		if m.hub == nil {
			return
		}
		m.hub.Broadcast(orgID, websocket.Event{
			Type:     websocket.EventAutosaveFailed,
			ReportID: reportID,
			Message:  err.Error(),
		})
	}
}

func (m *Manager) loadRemote(ctx context.Context, orgID, reportID string) (*models.Report, error) {
	var row models.Report
	err := m.remote.WithContext(ctx).
		Scopes(database.ForOrganization(orgID)).
		Where("id = ?", reportID).
		Take(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Close flushes and stops one session
func (m *Manager) Close(ctx context.Context, orgID, reportID string) error {
	m.mu.Lock()
	s, ok := m.sessions[reportID]
	if !ok || s.orgID != orgID {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, reportID)
	}
	delete(m.sessions, reportID)
	m.mu.Unlock()

	s.stop()
	return s.flush(ctx)
}

// Shutdown flushes and stops every session
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		s.stop()
		if err := s.flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	zap.L().Info("🛑 Sessions closed", zap.Int("count", len(sessions)))
	return errors.Join(errs...)
}

// Mutate opens the report and applies fn through Session.Update.
// Submitted reports are read-only.
func (m *Manager) Mutate(ctx context.Context, orgID, reportID string, fn func(*report.ReportData) error) (*report.ReportData, error) {
	s, err := m.Open(ctx, orgID, reportID)
	if err != nil {
		return nil, err
	}
	if s.Status() == models.ReportStatusSubmitted {
		return nil, fmt.Errorf("%w: %s", ErrSubmitted, reportID)
	}
	return s.Update(fn)
}

// Save validates the report, records a version and writes it locally,
// then tries the remote store. Remote failures do not fail the save.
func (m *Manager) Save(ctx context.Context, orgID, reportID string) (*SaveResult, error) {
	s, snap, err := m.validated(ctx, orgID, reportID)
	if err != nil {
		return nil, err
	}

	v, err := m.store.SaveVersion(ctx, reportID, snap, "saved")
	if err != nil {
		return nil, err
	}
	if err := s.flush(ctx); err != nil {
		return nil, err
	}

	res := &SaveResult{Version: v}
	if _, err := m.engine.Push(ctx, orgID, reportID); err != nil {
		zap.L().Info("📴 Saved locally, remote push deferred", zap.String("report", reportID), zap.Error(err))
		res.PushError = err.Error()
	} else {
		res.Pushed = true
	}

	if m.hub != nil {
		m.hub.Broadcast(orgID, websocket.Event{Type: websocket.EventReportSaved, ReportID: reportID})
	}
	return res, nil
}

// Submit validates, saves and pushes the report, then marks it submitted.
// Unlike Save it fails when the remote store cannot be reached.
func (m *Manager) Submit(ctx context.Context, orgID, reportID string) (*SaveResult, error) {
	s, snap, err := m.validated(ctx, orgID, reportID)
	if err != nil {
		return nil, err
	}

	if err := s.flush(ctx); err != nil {
		return nil, err
	}
	if _, err := m.engine.Push(ctx, orgID, reportID); err != nil {
		return nil, fmt.Errorf("submit %s: %w", reportID, err)
	}

	now := time.Now().UTC()
	err = m.remote.WithContext(ctx).Model(&models.Report{}).
		Scopes(database.ForOrganization(orgID)).
		Where("id = ?", reportID).
		Updates(map[string]interface{}{
			"status":       models.ReportStatusSubmitted,
			"submitted_at": now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", reportID, err)
	}
	s.setStatus(models.ReportStatusSubmitted)

	v, err := m.store.SaveVersion(ctx, reportID, snap, models.ReportStatusSubmitted)
	if err != nil {
		return nil, err
	}

	if m.hub != nil {
		m.hub.Broadcast(orgID, websocket.Event{Type: websocket.EventReportSubmitted, ReportID: reportID})
	}
	zap.L().Info("📨 Report submitted", zap.String("report", reportID))
	return &SaveResult{Version: v, Pushed: true}, nil
}

// validated opens the report and runs validation, keeping the field
// messages on the report for the UI
func (m *Manager) validated(ctx context.Context, orgID, reportID string) (*Session, *report.ReportData, error) {
	s, err := m.Open(ctx, orgID, reportID)
	if err != nil {
		return nil, nil, err
	}
	if s.Status() == models.ReportStatusSubmitted {
		return nil, nil, fmt.Errorf("%w: %s", ErrSubmitted, reportID)
	}

	var validationErr error
	snap, err := s.Update(func(r *report.ReportData) error {
		validationErr = r.Validate()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if validationErr != nil {
		return nil, nil, validationErr
	}
	return s, snap, nil
}

// handlePush keeps open sessions in step with the remote row after a push
func (m *Manager) handlePush(orgID string, row *models.Report, result *rsync.PushResult) {
	s, ok := m.Get(orgID, row.ID)
	if ok {
		clock := rsync.RemoteClock(row)
		if result.Resolution.Winner == rsync.SideRemote {
			s.replace(row.Data.Data(), clock)
		} else {
			s.setBaseClock(clock)
		}
	}
	if m.hub != nil {
		m.hub.Broadcast(orgID, websocket.Event{
			Type:     websocket.EventReportPushed,
			ReportID: row.ID,
			Version:  row.Version,
			Data:     result,
		})
	}
}

// Push flushes the open session, if any, and pushes the report's newest write
func (m *Manager) Push(ctx context.Context, orgID, reportID string) (*rsync.PushResult, error) {
	if s, ok := m.Get(orgID, reportID); ok {
		if err := s.flush(ctx); err != nil {
			return nil, err
		}
	}
	return m.engine.Push(ctx, orgID, reportID)
}

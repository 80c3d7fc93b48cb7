// Package autosave writes a report's offline draft on a fixed cadence.
//
// Each tick takes one snapshot of the report. When both the setting type
// and the form type are chosen the snapshot is written once under its
// offline key and queued once in the outbox; otherwise nothing is written.
// Read-only targets are never written. Validation errors never block an
// autosave.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xelth-com/reg44go/internal/localstore"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/narrative"
	"github.com/xelth-com/reg44go/internal/report"
	rsync "github.com/xelth-com/reg44go/internal/sync"
)

// DefaultInterval is the autosave cadence
const DefaultInterval = 15 * time.Second

// Target is the report being edited
type Target interface {
	ReportID() string
	OrganizationID() string
	Snapshot() (*report.ReportData, error)
	BaseClock() rsync.VectorClock
	// ReadOnly reports a report that no longer accepts writes, such as a submitted one
	ReadOnly() bool
}

// Queue accepts writes bound for the remote store
type Queue interface {
	Queue(ctx context.Context, w rsync.Write) (*models.OutboxEntry, error)
}

// Notifier receives autosave failures for a transient user notification
type Notifier func(reportID string, err error)

// Autosaver drives periodic saves for one report
type Autosaver struct {
	Interval time.Duration

	target Target
	store  *localstore.Store
	queue  Queue
	notify Notifier
	now    func() time.Time

	mu        sync.Mutex
	lastSaved time.Time
	saves     int
}

// Option configures an Autosaver
type Option func(*Autosaver)

// WithNotifier sets the failure notifier
func WithNotifier(n Notifier) Option {
	return func(a *Autosaver) { a.notify = n }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(a *Autosaver) { a.now = now }
}

// New creates an autosaver. An interval of zero uses DefaultInterval.
func New(target Target, store *localstore.Store, queue Queue, interval time.Duration, opts ...Option) *Autosaver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	a := &Autosaver{
		Interval: interval,
		target:   target,
		store:    store,
		queue:    queue,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run saves on every tick until ctx is done
func (a *Autosaver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := a.Tick(ctx); err != nil && ctx.Err() == nil {
				zap.L().Warn("⚠️ Autosave failed",
					zap.String("report", a.target.ReportID()),
					zap.Error(err),
				)
				if a.notify != nil {
					a.notify(a.target.ReportID(), err)
				}
			}
		}
	}
}

// Tick performs one autosave. It reports whether anything was written.
func (a *Autosaver) Tick(ctx context.Context) (bool, error) {
	if a.target.ReadOnly() {
		return false, nil
	}
	snap, err := a.target.Snapshot()
	if err != nil {
		return false, fmt.Errorf("autosave snapshot: %w", err)
	}
	if !snap.Unlocked() {
		return false, nil
	}

	at := a.now().UTC()
	summary := narrative.Summary(snap)
	plan := narrative.ActionPlan(snap)
	reportID := a.target.ReportID()

	var version int64
	entry, queueErr := a.queue.Queue(ctx, rsync.Write{
		OrganizationID: a.target.OrganizationID(),
		ReportID:       reportID,
		HomeID:         snap.HomeID,
		Data:           snap,
		Summary:        summary,
		ActionPlan:     plan,
		WrittenAt:      at,
		BaseClock:      a.target.BaseClock(),
	})
	if queueErr == nil {
		version = entry.Version
	}

	draftErr := a.store.SaveDraft(ctx, localstore.Draft{
		ReportID:       reportID,
		OrganizationID: a.target.OrganizationID(),
		Data:           *snap,
		Summary:        summary,
		ActionPlan:     plan,
		SavedAt:        at,
		Version:        version,
	})

	if draftErr == nil {
		a.mu.Lock()
		a.lastSaved = at
		a.saves++
		a.mu.Unlock()
	}
	return draftErr == nil, errors.Join(draftErr, queueErr)
}

// LastSaved returns the time of the last successful draft write
func (a *Autosaver) LastSaved() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSaved
}

// Saves returns how many drafts this autosaver has written
func (a *Autosaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

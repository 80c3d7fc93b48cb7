package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xelth-com/reg44go/internal/autosave"
	"github.com/xelth-com/reg44go/internal/models"
	"github.com/xelth-com/reg44go/internal/report"
	rsync "github.com/xelth-com/reg44go/internal/sync"
	"github.com/xelth-com/reg44go/internal/websocket"
)

// Session is one open report. All mutations go through Update.
type Session struct {
	mu sync.Mutex

	orgID     string
	reportID  string
	data      *report.ReportData
	status    string
	baseClock rsync.VectorClock
	updatedAt time.Time

	hub       Publisher
	autosaver *autosave.Autosaver
	cancel    context.CancelFunc
	done      chan struct{}
}

// ReportID returns the id of the open report
func (s *Session) ReportID() string { return s.reportID }

// OrganizationID returns the organization owning the report
func (s *Session) OrganizationID() string { return s.orgID }

// Status returns the remote status of the report, draft or submitted
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ReadOnly reports whether the report has been submitted
func (s *Session) ReadOnly() bool {
	return s.Status() == models.ReportStatusSubmitted
}

// UpdatedAt returns the time of the last successful Update
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Snapshot returns a deep copy of the report
func (s *Session) Snapshot() (*report.ReportData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

// BaseClock returns the clock of the remote copy this session descends from
func (s *Session) BaseClock() rsync.VectorClock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseClock.Copy()
}

// Update applies fn to a copy of the report and keeps the copy only when
// fn succeeds, so a failed update leaves the report untouched.
func (s *Session) Update(fn func(*report.ReportData) error) (*report.ReportData, error) {
	s.mu.Lock()

	working, err := s.data.Clone()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := fn(working); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.data = working
	s.updatedAt = time.Now().UTC()

	out, err := working.Clone()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.hub != nil {
		s.hub.Broadcast(s.orgID, websocket.Event{Type: websocket.EventReportUpdated, ReportID: s.reportID})
	}
	return out, nil
}

// replace swaps in data that won against this session's copy, keeping
// transient section state for sections that still exist
func (s *Session) replace(data report.ReportData, clock rsync.VectorClock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	templates := make([]report.SectionTemplate, 0, len(data.Sections))
	for _, sec := range data.Sections {
		templates = append(templates, report.SectionTemplate{ID: sec.ID, Title: sec.Title})
	}
	merged := report.MergeSections(s.data.Sections, templates)
	for i := range merged {
		if sec, ok := data.Section(merged[i].ID); ok {
			merged[i].Content = sec.Content
		}
	}
	data.Sections = merged
	s.data = &data
	s.baseClock = clock
}

func (s *Session) setBaseClock(clock rsync.VectorClock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseClock = clock
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// LastSaved returns the time of the last autosave or manual save
func (s *Session) LastSaved() time.Time {
	return s.autosaver.LastSaved()
}

// stop ends the autosave loop and waits for it
func (s *Session) stop() {
	s.cancel()
	<-s.done
}

// flush performs one save outside the timer
func (s *Session) flush(ctx context.Context) error {
	if _, err := s.autosaver.Tick(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", s.reportID, err)
	}
	return nil
}

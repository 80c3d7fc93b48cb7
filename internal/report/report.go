package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownSettingType = errors.New("unknown setting type")
	ErrSectionNotFound    = errors.New("section not found")
	ErrActionNotFound     = errors.New("action not found")
	ErrFeedbackNotFound   = errors.New("feedback not found")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrInvalidValue       = errors.New("invalid value")
)

// New creates an empty report for a home visit
func New(reportID, homeID, visitDate string) *ReportData {
	return &ReportData{
		ReportID:          reportID,
		HomeID:            homeID,
		VisitDate:         visitDate,
		Sections:          []Section{},
		Actions:           []Action{},
		ChildFeedback:     []ChildFeedback{},
		StaffFeedback:     []StaffFeedback{},
		DocumentChecklist: []DocumentChecklistItem{},
	}
}

// MergeSections builds the section list for a template set.
// Content is carried over where an existing section has the same id;
// existing sections with no matching template are dropped.
func MergeSections(existing []Section, templates []SectionTemplate) []Section {
	byID := make(map[string]Section, len(existing))
	for _, s := range existing {
		byID[s.ID] = s
	}

	merged := make([]Section, 0, len(templates))
	for _, tpl := range templates {
		section := Section{ID: tpl.ID, Title: tpl.Title}
		if prev, ok := byID[tpl.ID]; ok {
			section.Content = prev.Content
			section.Images = prev.Images
			section.Recording = prev.Recording
		}
		merged = append(merged, section)
	}
	return merged
}

// SetSettingType switches the report to another template set.
// The document checklist is regenerated from scratch. Choosing the
// current type again changes nothing.
func (r *ReportData) SetSettingType(t SettingType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSettingType, t)
	}
	if t == r.SettingType {
		return nil
	}

	r.SettingType = t
	r.Sections = MergeSections(r.Sections, SectionTemplates(t))

	docs := DocumentTemplates(t)
	r.DocumentChecklist = make([]DocumentChecklistItem, 0, len(docs))
	for _, name := range docs {
		r.DocumentChecklist = append(r.DocumentChecklist, DocumentChecklistItem{Name: name})
	}

	r.ValidationErrors = nil
	return nil
}

// SetFormType chooses between a full and a focused visit
func (r *ReportData) SetFormType(f FormType) error {
	if !f.Valid() {
		return fmt.Errorf("%w: form type %q", ErrInvalidValue, f)
	}
	r.FormType = f
	return nil
}

// SetHomeDetails replaces the home identity fields
func (r *ReportData) SetHomeDetails(d HomeDetails) {
	r.HomeName = d.HomeName
	r.URN = d.URN
	r.Address = d.Address
	r.RegisteredManager = d.RegisteredManager
	r.ResponsibleIndividual = d.ResponsibleIndividual
}

// SetVisitDetails replaces the visit metadata fields
func (r *ReportData) SetVisitDetails(d VisitDetails) error {
	if d.VisitType != "" && !d.VisitType.Valid() {
		return fmt.Errorf("%w: visit type %q", ErrInvalidValue, d.VisitType)
	}
	if d.VisitDate != "" {
		if _, err := time.Parse(DateLayout, d.VisitDate); err != nil {
			return fmt.Errorf("%w: visit date %q", ErrInvalidValue, d.VisitDate)
		}
	}
	r.VisitDate = d.VisitDate
	r.VisitType = d.VisitType
	r.VisitorName = d.VisitorName
	return nil
}

// DateLayout is the format of visit dates and action deadlines
const DateLayout = "2006-01-02"

func (r *ReportData) section(id string) (*Section, error) {
	for i := range r.Sections {
		if r.Sections[i].ID == id {
			return &r.Sections[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSectionNotFound, id)
}

// Section returns a copy of the section with the given id
func (r *ReportData) Section(id string) (Section, bool) {
	s, err := r.section(id)
	if err != nil {
		return Section{}, false
	}
	return *s, true
}

// UpdateSectionContent replaces the free text of one section
func (r *ReportData) UpdateSectionContent(id, content string) error {
	s, err := r.section(id)
	if err != nil {
		return err
	}
	s.Content = content
	return nil
}

// SetSectionRecording flags a section as receiving dictation
func (r *ReportData) SetSectionRecording(id string, recording bool) error {
	s, err := r.section(id)
	if err != nil {
		return err
	}
	s.Recording = recording
	return nil
}

// AttachImage adds an in-memory image to a section
func (r *ReportData) AttachImage(id string, img Image) error {
	s, err := r.section(id)
	if err != nil {
		return err
	}
	s.Images = append(s.Images, img)
	return nil
}

// AddAction appends a follow-up action and returns it with its new id
func (r *ReportData) AddAction(a Action) (Action, error) {
	if a.Status == "" {
		a.Status = ActionNotStarted
	}
	if !a.Status.Valid() {
		return Action{}, fmt.Errorf("%w: action status %q", ErrInvalidValue, a.Status)
	}
	if strings.TrimSpace(a.Description) == "" {
		return Action{}, fmt.Errorf("%w: action description is empty", ErrInvalidValue)
	}
	a.ID = uuid.NewString()
	r.Actions = append(r.Actions, a)
	return a, nil
}

func (r *ReportData) action(id string) (*Action, error) {
	for i := range r.Actions {
		if r.Actions[i].ID == id {
			return &r.Actions[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrActionNotFound, id)
}

// UpdateAction replaces the editable fields of an action, keeping its id
func (r *ReportData) UpdateAction(id string, a Action) error {
	if a.Status == "" {
		a.Status = ActionNotStarted
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: action status %q", ErrInvalidValue, a.Status)
	}
	existing, err := r.action(id)
	if err != nil {
		return err
	}
	a.ID = existing.ID
	*existing = a
	return nil
}

// SetActionStatus moves an action to a new status
func (r *ReportData) SetActionStatus(id string, status ActionStatus, progress string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: action status %q", ErrInvalidValue, status)
	}
	a, err := r.action(id)
	if err != nil {
		return err
	}
	a.Status = status
	if progress != "" {
		a.Progress = progress
	}
	return nil
}

// RemoveAction deletes an action
func (r *ReportData) RemoveAction(id string) error {
	for i := range r.Actions {
		if r.Actions[i].ID == id {
			r.Actions = append(r.Actions[:i], r.Actions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrActionNotFound, id)
}

// AddChildFeedback appends a child interview record
func (r *ReportData) AddChildFeedback(f ChildFeedback) ChildFeedback {
	f.ID = uuid.NewString()
	r.ChildFeedback = append(r.ChildFeedback, f)
	return f
}

// AddStaffFeedback appends a staff interview record
func (r *ReportData) AddStaffFeedback(f StaffFeedback) StaffFeedback {
	f.ID = uuid.NewString()
	r.StaffFeedback = append(r.StaffFeedback, f)
	return f
}

// SetFeedbackIncluded toggles whether an interview record feeds the summary.
// The id is looked up across both child and staff feedback.
func (r *ReportData) SetFeedbackIncluded(id string, include bool) error {
	for i := range r.ChildFeedback {
		if r.ChildFeedback[i].ID == id {
			r.ChildFeedback[i].IncludeInSummary = include
			return nil
		}
	}
	for i := range r.StaffFeedback {
		if r.StaffFeedback[i].ID == id {
			r.StaffFeedback[i].IncludeInSummary = include
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrFeedbackNotFound, id)
}

// SetDocument ticks or unticks a checklist entry and sets its notes
func (r *ReportData) SetDocument(name string, checked bool, notes string) error {
	for i := range r.DocumentChecklist {
		if r.DocumentChecklist[i].Name == name {
			r.DocumentChecklist[i].Checked = checked
			r.DocumentChecklist[i].Notes = notes
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrDocumentNotFound, name)
}

// Assessment returns the record for a quality standard
func (r *ReportData) Assessment(s Standard) (Assessment, error) {
	a, err := r.assessment(s)
	if err != nil {
		return Assessment{}, err
	}
	return *a, nil
}

func (r *ReportData) assessment(s Standard) (*Assessment, error) {
	switch s {
	case StandardQualityOfCare:
		return &r.QualityOfCare, nil
	case StandardEducation:
		return &r.Education, nil
	case StandardEnjoyment:
		return &r.Enjoyment, nil
	case StandardHealth:
		return &r.Health, nil
	case StandardRelationships:
		return &r.Relationships, nil
	case StandardCarePlanning:
		return &r.CarePlanning, nil
	case StandardLeadership:
		return &r.Leadership, nil
	}
	return nil, fmt.Errorf("%w: standard %q", ErrInvalidValue, s)
}

// SetAssessment replaces the record for a quality standard
func (r *ReportData) SetAssessment(s Standard, a Assessment) error {
	target, err := r.assessment(s)
	if err != nil {
		return err
	}
	*target = a
	return nil
}

// SetFollowUp replaces the previous-actions review
func (r *ReportData) SetFollowUp(f FollowUp) {
	r.FollowUp = f
}

// SetSignOff records the final opinions. SignedAt is stamped when a
// signatory is given and no time was supplied.
func (r *ReportData) SetSignOff(s SignOff, now time.Time) {
	if s.SignedBy != "" && s.SignedAt == nil {
		t := now.UTC()
		s.SignedAt = &t
	}
	r.SignOff = s
}

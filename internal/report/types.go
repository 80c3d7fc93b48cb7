package report

import "time"

// SettingType is the category of care provision being inspected
type SettingType string

const (
	SettingChildrensHome          SettingType = "childrens-home"
	SettingShortBreaks            SettingType = "short-breaks"
	SettingSupportedAccommodation SettingType = "supported-accommodation"
	SettingSecureHome             SettingType = "secure-home"
)

// FormType selects between the full monthly visit and a themed visit
type FormType string

const (
	FormFull    FormType = "full"
	FormFocused FormType = "focused"
)

// Valid reports whether the form type is one of the known values
func (f FormType) Valid() bool {
	return f == FormFull || f == FormFocused
}

// VisitType records whether the home knew about the visit in advance
type VisitType string

const (
	VisitAnnounced   VisitType = "announced"
	VisitUnannounced VisitType = "unannounced"
)

// Valid reports whether the visit type is one of the known values
func (v VisitType) Valid() bool {
	return v == VisitAnnounced || v == VisitUnannounced
}

// ActionStatus tracks progress of a follow-up action
type ActionStatus string

const (
	ActionNotStarted ActionStatus = "not-started"
	ActionInProgress ActionStatus = "in-progress"
	ActionCompleted  ActionStatus = "completed"
)

// Valid reports whether the status is one of the known values
func (s ActionStatus) Valid() bool {
	switch s {
	case ActionNotStarted, ActionInProgress, ActionCompleted:
		return true
	}
	return false
}

// Standard identifies one of the per-regulation assessment records
type Standard string

const (
	StandardQualityOfCare Standard = "quality-of-care"
	StandardEducation     Standard = "education"
	StandardEnjoyment     Standard = "enjoyment"
	StandardHealth        Standard = "health"
	StandardRelationships Standard = "relationships"
	StandardCarePlanning  Standard = "care-planning"
	StandardLeadership    Standard = "leadership"
)

// Standards lists the assessment records in report order
func Standards() []Standard {
	return []Standard{
		StandardQualityOfCare,
		StandardEducation,
		StandardEnjoyment,
		StandardHealth,
		StandardRelationships,
		StandardCarePlanning,
		StandardLeadership,
	}
}

// Image is an attachment held in memory for the lifetime of an editing session
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// Section is one titled subdivision of the visit report
type Section struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`

	// Transient: never serialized
	Images    []Image `json:"-"`
	Recording bool    `json:"-"`
}

// Action is a tracked follow-up task
type Action struct {
	ID                string       `json:"id"`
	Description       string       `json:"description"`
	ResponsiblePerson string       `json:"responsiblePerson"`
	Deadline          string       `json:"deadline"`
	Status            ActionStatus `json:"status"`
	Progress          string       `json:"progress"`
}

// ChildFeedback is a structured note from a conversation with a child
type ChildFeedback struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Age              string `json:"age"`
	Comments         string `json:"comments"`
	IncludeInSummary bool   `json:"includeInSummary"`
}

// StaffFeedback is a structured note from a conversation with a staff member
type StaffFeedback struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Role             string `json:"role"`
	Comments         string `json:"comments"`
	IncludeInSummary bool   `json:"includeInSummary"`
}

// DocumentChecklistItem is a record the visitor should verify
type DocumentChecklistItem struct {
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
	Notes   string `json:"notes"`
}

// Assessment is the visitor's view against one quality standard
type Assessment struct {
	Judgement    string `json:"judgement"`
	Evidence     string `json:"evidence"`
	Strengths    string `json:"strengths"`
	Improvements string `json:"improvements"`
}

// FollowUp records the review of actions raised at the previous visit
type FollowUp struct {
	PreviousActionsReviewed bool   `json:"previousActionsReviewed"`
	Notes                   string `json:"notes"`
}

// SignOff holds the independent person's final opinions
type SignOff struct {
	SafeguardingOpinion string     `json:"safeguardingOpinion"`
	WellbeingOpinion    string     `json:"wellbeingOpinion"`
	SignedBy            string     `json:"signedBy"`
	SignedAt            *time.Time `json:"signedAt,omitempty"`
}

// ReportData is the whole visit report. One value per visit.
type ReportData struct {
	ReportID string `json:"reportId"`

	// Home identity
	HomeID                string `json:"homeId"`
	HomeName              string `json:"homeName"`
	URN                   string `json:"urn"`
	Address               string `json:"address"`
	RegisteredManager     string `json:"registeredManager"`
	ResponsibleIndividual string `json:"responsibleIndividual"`

	// Visit metadata
	VisitDate   string      `json:"visitDate"`
	VisitType   VisitType   `json:"visitType"`
	SettingType SettingType `json:"settingType"`
	FormType    FormType    `json:"formType"`
	VisitorName string      `json:"visitorName"`

	Sections          []Section               `json:"sections"`
	Actions           []Action                `json:"actions"`
	ChildFeedback     []ChildFeedback         `json:"childFeedback"`
	StaffFeedback     []StaffFeedback         `json:"staffFeedback"`
	DocumentChecklist []DocumentChecklistItem `json:"documentChecklist"`

	QualityOfCare Assessment `json:"qualityOfCare"`
	Education     Assessment `json:"education"`
	Enjoyment     Assessment `json:"enjoyment"`
	Health        Assessment `json:"health"`
	Relationships Assessment `json:"relationships"`
	CarePlanning  Assessment `json:"carePlanning"`
	Leadership    Assessment `json:"leadership"`
	FollowUp      FollowUp   `json:"followUp"`

	SignOff SignOff `json:"signOff"`

	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
}

// HomeDetails groups the home identity fields for a single update
type HomeDetails struct {
	HomeName              string `json:"homeName"`
	URN                   string `json:"urn"`
	Address               string `json:"address"`
	RegisteredManager     string `json:"registeredManager"`
	ResponsibleIndividual string `json:"responsibleIndividual"`
}

// VisitDetails groups the visit metadata fields for a single update
type VisitDetails struct {
	VisitDate   string    `json:"visitDate"`
	VisitType   VisitType `json:"visitType"`
	VisitorName string    `json:"visitorName"`
}

// Version is a timestamped deep copy of a report
type Version struct {
	Timestamp time.Time  `json:"timestamp"`
	Status    string     `json:"status"`
	Data      ReportData `json:"data"`
}

// Title returns the heading used for the standard in reports
func (s Standard) Title() string {
	switch s {
	case StandardQualityOfCare:
		return "Quality and purpose of care"
	case StandardEducation:
		return "Education"
	case StandardEnjoyment:
		return "Enjoyment and achievement"
	case StandardHealth:
		return "Health and well-being"
	case StandardRelationships:
		return "Positive relationships"
	case StandardCarePlanning:
		return "Care planning"
	case StandardLeadership:
		return "Leadership and management"
	}
	return string(s)
}

// Label returns the display text for an action status
func (s ActionStatus) Label() string {
	switch s {
	case ActionNotStarted:
		return "Not started"
	case ActionInProgress:
		return "In progress"
	case ActionCompleted:
		return "Completed"
	}
	return string(s)
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xelth-com/reg44go/internal/report"
)

// Report statuses
const (
	ReportStatusDraft     = "draft"
	ReportStatusSubmitted = "submitted"
)

// Report is the remote row holding a visit report
type Report struct {
	ID             string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrganizationID string  `gorm:"type:varchar(36);not null;index" json:"organizationId"`
	HomeID         string  `gorm:"type:varchar(36);not null;index" json:"homeId"`
	VisitID        *string `gorm:"type:varchar(36);index" json:"visitId,omitempty"`
	Status         string  `gorm:"type:varchar(20);default:'draft';index" json:"status"`

	Data       datatypes.JSONType[report.ReportData] `json:"data"`
	Summary    string                                `gorm:"type:text" json:"summary"`
	ActionPlan string                                `gorm:"type:text" json:"actionPlan"`

	// Sync bookkeeping
	Version     int64      `gorm:"default:0" json:"version"`
	VectorClock JSONB      `gorm:"type:jsonb" json:"vectorClock"`
	WrittenAt   time.Time  `json:"writtenAt"` // client timestamp of the winning write
	UpdatedBy   string     `gorm:"type:varchar(255)" json:"updatedBy"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

var _ SyncableEntity = Report{}

// TableName specifies the table name
func (Report) TableName() string {
	return "reports"
}

// BeforeCreate assigns a UUID when none was set
func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// GetEntityID implements SyncableEntity interface
func (r Report) GetEntityID() string {
	return r.ID
}

// GetEntityType implements SyncableEntity interface
func (r Report) GetEntityType() string {
	return "reports"
}

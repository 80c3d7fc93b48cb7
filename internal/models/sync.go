package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/xelth-com/reg44go/internal/report"
)

// JSONB type for PostgreSQL JSONB fields
type JSONB map[string]interface{}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	*j = result
	return err
}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(j)
}

// Outbox entry statuses
const (
	OutboxPending    = "pending"
	OutboxPushed     = "pushed"
	OutboxSuperseded = "superseded"
	OutboxFailed     = "failed"
)

// OutboxEntry is a pending write of a report to the remote store.
// Lives in the device-local database.
type OutboxEntry struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ReportID       string `gorm:"type:varchar(36);not null;uniqueIndex:idx_outbox_report_version;index:idx_outbox_pending" json:"reportId"`
	OrganizationID string `gorm:"type:varchar(36);not null" json:"organizationId"`
	HomeID         string `gorm:"type:varchar(36)" json:"homeId"`
	Version        int64  `gorm:"not null;uniqueIndex:idx_outbox_report_version" json:"version"` // monotonic per report
	DeviceID       string `gorm:"type:varchar(255)" json:"deviceId"`
	VectorClock    JSONB  `gorm:"type:jsonb" json:"vectorClock"`

	Payload    datatypes.JSONType[report.ReportData] `json:"payload"`
	Summary    string                                `gorm:"type:text" json:"summary"`
	ActionPlan string                                `gorm:"type:text" json:"actionPlan"`

	Status       string     `gorm:"type:varchar(20);default:'pending';index:idx_outbox_pending" json:"status"`
	Attempts     int        `gorm:"default:0" json:"attempts"`
	ErrorMessage *string    `gorm:"type:text" json:"errorMessage,omitempty"`
	WrittenAt    time.Time  `gorm:"not null" json:"writtenAt"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// TableName specifies the table name
func (OutboxEntry) TableName() string {
	return "sync_outbox"
}

// BeforeCreate hook
func (o *OutboxEntry) BeforeCreate(tx *gorm.DB) error {
	if o.WrittenAt.IsZero() {
		o.WrittenAt = time.Now().UTC()
	}
	return nil
}

// LocalEntry is one key/value snapshot in the device-local store
type LocalEntry struct {
	Key       string         `gorm:"primaryKey;type:varchar(255)" json:"key"`
	Value     datatypes.JSON `json:"value"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TableName specifies the table name
func (LocalEntry) TableName() string {
	return "local_entries"
}

// Conflict statuses
const (
	ConflictStatusResolved = "resolved"
	ConflictStatusPending  = "pending"
)

// SyncConflict records a write that lost (or could not be ordered) during reconciliation
type SyncConflict struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OrganizationID string         `gorm:"type:varchar(36);not null;index" json:"organizationId"`
	EntityType     string         `gorm:"type:varchar(100);not null;index:idx_entity" json:"entityType"`
	EntityID       string         `gorm:"type:varchar(255);not null;index:idx_entity" json:"entityId"`
	ConflictType   string         `gorm:"type:varchar(50)" json:"conflictType"`
	LocalData      datatypes.JSON `json:"localData"`
	LocalMetadata  JSONB          `gorm:"type:jsonb" json:"localMetadata"`
	RemoteData     datatypes.JSON `json:"remoteData"`
	RemoteMetadata JSONB          `gorm:"type:jsonb" json:"remoteMetadata"`
	Strategy       string         `gorm:"type:varchar(50)" json:"strategy"`
	Winner         string         `gorm:"type:varchar(50)" json:"winner"`
	Reason         string         `gorm:"type:text" json:"reason"`
	Status         string         `gorm:"type:varchar(50);default:'resolved';index" json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// TableName specifies the table name
func (SyncConflict) TableName() string {
	return "sync_conflicts"
}

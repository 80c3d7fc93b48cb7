package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Home is a care setting visited by the independent person
type Home struct {
	ID                    string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrganizationID        string `gorm:"type:varchar(36);not null;index" json:"organizationId"`
	Name                  string `gorm:"not null" json:"name"`
	URN                   string `gorm:"column:urn;index" json:"urn"` // Ofsted unique reference number
	Address               string `gorm:"type:text" json:"address"`
	SettingType           string `gorm:"type:varchar(50)" json:"settingType"`
	RegisteredManager     string `json:"registeredManager"`
	ResponsibleIndividual string `json:"responsibleIndividual"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Home) TableName() string {
	return "homes"
}

// BeforeCreate assigns a UUID when none was set
func (h *Home) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// Visit is a scheduled or completed visit to a home
type Visit struct {
	ID             string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrganizationID string `gorm:"type:varchar(36);not null;index" json:"organizationId"`
	HomeID         string `gorm:"type:varchar(36);not null;index" json:"homeId"`
	VisitorID      string `gorm:"type:varchar(36);index" json:"visitorId"`
	VisitDate      string `gorm:"type:varchar(10);not null;index" json:"visitDate"` // YYYY-MM-DD
	VisitType      string `gorm:"type:varchar(20)" json:"visitType"`
	Status         string `gorm:"type:varchar(20);default:'planned'" json:"status"` // planned, completed

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (Visit) TableName() string {
	return "visits"
}

// BeforeCreate assigns a UUID when none was set
func (v *Visit) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

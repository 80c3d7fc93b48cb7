package database

import "gorm.io/gorm"

// ForOrganization restricts a query to rows owned by orgID.
// Every remote read and write goes through it.
func ForOrganization(orgID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("organization_id = ?", orgID)
	}
}

package models

import "gorm.io/datatypes"

// ActionRecord is the persisted row of an action. Variant-specific fields are
// kept in Details so the table shape never changes with the variant set.
type ActionRecord struct {
	ID                  string         `gorm:"primaryKey;size:32"`
	Type                string         `gorm:"size:32;not null;index"`
	IDs                 datatypes.JSON `gorm:"type:json;not null"`
	HWIDs               datatypes.JSON `gorm:"type:json"`
	PlayerName          string         `gorm:"size:128"`
	Reason              string         `gorm:"type:text"`
	Author              string         `gorm:"size:128;not null;index"`
	Timestamp           int64          `gorm:"not null;index"`
	Expiration          *int64
	RevocationTimestamp *int64
	RevocationApprover  *string `gorm:"size:128"`
	RevocationRequestor *string `gorm:"size:128"`
	RevocationStatus    string  `gorm:"size:16"`
	RevocationReason    *string `gorm:"type:text"`
	Details             datatypes.JSON `gorm:"type:json"`
}

// TableName pins the table name used by gorm.
func (ActionRecord) TableName() string {
	return "actions"
}

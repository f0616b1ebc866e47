package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog captures auditable events triggered by administrators against the ledger.
type ActivityLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	AdminName string            `gorm:"size:128;not null;index" json:"admin_name"`
	Action    string            `gorm:"size:64;not null" json:"action"`
	ActionID  string            `gorm:"size:32;index" json:"action_id,omitempty"`
	Message   string            `gorm:"type:text" json:"message"`
	Metadata  datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

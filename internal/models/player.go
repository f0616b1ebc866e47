package models

import (
	"gorm.io/datatypes"
)

// Player is a game-server player as known to the admin panel. The ledger only
// reads players and toggles their targeting flags.
type Player struct {
	License          string         `gorm:"primaryKey;size:64" json:"license"`
	IDs              datatypes.JSON `gorm:"type:json" json:"ids"`
	HWIDs            datatypes.JSON `gorm:"type:json" json:"hwids"`
	DisplayName      string         `gorm:"size:128" json:"display_name"`
	PlayTime         int64          `json:"play_time"`
	TsJoined         int64          `gorm:"index" json:"ts_joined"`
	TsLastConnection int64          `json:"ts_last_connection"`
	IsTargeted       bool           `json:"is_targeted"`
	TargetedBy       *string        `gorm:"size:128" json:"targeted_by,omitempty"`
}

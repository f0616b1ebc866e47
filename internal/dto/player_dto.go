package dto

// PlayerSyncItem is one roster entry pushed by the game server.
type PlayerSyncItem struct {
	License          string   `json:"license" validate:"required"`
	IDs              []string `json:"ids"`
	HWIDs            []string `json:"hwids"`
	DisplayName      string   `json:"display_name" validate:"max=128"`
	PlayTime         int64    `json:"play_time" validate:"gte=0"`
	TsJoined         int64    `json:"ts_joined" validate:"gte=0"`
	TsLastConnection int64    `json:"ts_last_connection" validate:"gte=0"`
}

// PlayerSyncRequest wraps a batch of roster entries.
type PlayerSyncRequest struct {
	Players []PlayerSyncItem `json:"players" validate:"required,min=1,max=500,dive"`
}

// PlayerSyncResponse reports how many rows the sync touched.
type PlayerSyncResponse struct {
	Affected int64 `json:"affected"`
}

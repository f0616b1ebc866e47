package dto

// HistorySearchRequest captures the query string of the history search endpoint.
type HistorySearchRequest struct {
	SortKey     string `query:"sort_key" validate:"omitempty,oneof=timestamp"`
	SortDesc    bool   `query:"sort_desc"`
	OffsetValue *int64 `query:"offset_value"`
	OffsetID    string `query:"offset_id" validate:"max=32"`
	Type        string `query:"type" validate:"omitempty,oneof=ban warn mute wagerblacklist pc_check target summon"`
	Admin       string `query:"admin" validate:"max=128"`
	SearchType  string `query:"search_type" validate:"omitempty,oneof=actionId reason identifiers"`
	SearchValue string `query:"search_value" validate:"max=1024"`
	Limit       int    `query:"limit" validate:"gte=0"`
}

// Ban expiration states surfaced on history items.
const (
	BanExpirationPermanent = "permanent"
	BanExpirationExpired   = "expired"
	BanExpirationActive    = "active"
)

// HistoryItem is a post-processed ledger entry returned by the search endpoint.
type HistoryItem struct {
	ActionResponse
	BanExpiration   string `json:"ban_expiration,omitempty"`
	LinkedPcCheckID string `json:"linked_pc_check_id,omitempty"`
	WarnAcked       *bool  `json:"warn_acked,omitempty"`
}

// HistorySearchResponse is one page of search results.
type HistorySearchResponse struct {
	History       []HistoryItem `json:"history"`
	HasReachedEnd bool          `json:"has_reached_end"`
}

// WagerBlacklistListRequest filters the active wager blacklist.
type WagerBlacklistListRequest struct {
	PlayerName  string `query:"player_name" validate:"max=128"`
	Identifiers string `query:"identifiers" validate:"max=1024"`
}

package dto

import "time"

// AdminCount pairs an admin with a counter value.
type AdminCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// ActionStatsResponse aggregates ledger-wide counters.
type ActionStatsResponse struct {
	TotalWarns           int64        `json:"total_warns"`
	WarnsLast7d          int64        `json:"warns_last_7d"`
	TotalBans            int64        `json:"total_bans"`
	BansLast7d           int64        `json:"bans_last_7d"`
	TotalWagerBlacklists int64        `json:"total_wager_blacklists"`
	GroupedByAdmins      []AdminCount `json:"grouped_by_admins"`
}

// PlayerStatsResponse aggregates player collection counters.
type PlayerStatsResponse struct {
	Total         int64 `json:"total"`
	PlayedLast24h int64 `json:"played_last_24h"`
	JoinedLast24h int64 `json:"joined_last_24h"`
	JoinedLast7d  int64 `json:"joined_last_7d"`
}

// AdminStatsResponse aggregates the moderation activity of a single admin.
type AdminStatsResponse struct {
	Name            string `json:"name"`
	BansGiven       int64  `json:"bans_given"`
	WarnsGiven      int64  `json:"warns_given"`
	RevokeRequested int64  `json:"revoke_requested"`
	RevokeApproved  int64  `json:"revoke_approved"`
	RevokeDenied    int64  `json:"revoke_denied"`
}

// DashboardStatsResponse powers the staff statistics page.
type DashboardStatsResponse struct {
	ActiveBans  int64                `json:"active_bans"`
	BansGiven   int64                `json:"bans_given"`
	WarnsGiven  int64                `json:"warns_given"`
	MutesGiven  int64                `json:"mutes_given"`
	Leaderboard []AdminStatsResponse `json:"leaderboard"`
	GeneratedAt time.Time            `json:"generated_at"`
	CacheHit    bool                 `json:"cache_hit"`
}

// WagerBlacklistStatsResponse summarizes the wager blacklist.
type WagerBlacklistStatsResponse struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Revoked   int64 `json:"revoked"`
	Last7Days int64 `json:"last_7_days"`
}

// PcCheckLeaderboardResponse ranks PC checkers over a trailing window.
type PcCheckLeaderboardResponse struct {
	WindowStart int64        `json:"window_start"`
	Checkers    []AdminCount `json:"checkers"`
}

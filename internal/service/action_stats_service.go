package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/models"
	"github.com/noah-isme/action-ledger/internal/repository"
)

const (
	dashboardCacheKey      = "stats:dashboard"
	defaultPcCheckerWindow = 7 * 24 * time.Hour
	day                    = 24 * time.Hour
)

// ActionStatsService computes read models over the ledger.
type ActionStatsService interface {
	ActionStats(ctx context.Context) (dto.ActionStatsResponse, error)
	PlayerStats(ctx context.Context) (dto.PlayerStatsResponse, error)
	AdminStats(ctx context.Context, name string) (dto.AdminStatsResponse, error)
	Dashboard(ctx context.Context) (dto.DashboardStatsResponse, error)
	WagerBlacklistStats(ctx context.Context) (dto.WagerBlacklistStatsResponse, error)
	PcCheckLeaderboard(ctx context.Context, window time.Duration) (dto.PcCheckLeaderboardResponse, error)
}

type actionStatsService struct {
	repo     repository.ActionRepository
	players  repository.PlayerRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewActionStatsService constructs the stats service. cache may be nil.
func NewActionStatsService(repo repository.ActionRepository, players repository.PlayerRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ActionStatsService {
	return &actionStatsService{
		repo:     repo,
		players:  players,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "action_stats_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/action-ledger/internal/service/action_stats"),
		now:      time.Now,
	}
}

func (s *actionStatsService) ActionStats(ctx context.Context) (dto.ActionStatsResponse, error) {
	actions, err := s.repo.List(ctx, repository.ActionQuery{})
	if err != nil {
		return dto.ActionStatsResponse{}, err
	}

	sevenDaysAgo := s.now().Add(-7 * day).Unix()
	stats := dto.ActionStatsResponse{}
	byAdmin := map[string]int64{}
	for _, action := range actions {
		ts := action.Base().Timestamp
		switch action.Type() {
		case models.ActionTypeBan:
			stats.TotalBans++
			if ts > sevenDaysAgo {
				stats.BansLast7d++
			}
		case models.ActionTypeWarn:
			stats.TotalWarns++
			if ts > sevenDaysAgo {
				stats.WarnsLast7d++
			}
		case models.ActionTypeWagerBlacklist:
			stats.TotalWagerBlacklists++
		}
		byAdmin[action.Base().Author]++
	}

	stats.GroupedByAdmins = sortedCounts(byAdmin)
	return stats, nil
}

func (s *actionStatsService) PlayerStats(ctx context.Context) (dto.PlayerStatsResponse, error) {
	if s.players == nil {
		return dto.PlayerStatsResponse{}, nil
	}
	players, err := s.players.List(ctx)
	if err != nil {
		return dto.PlayerStatsResponse{}, err
	}

	now := s.now()
	oneDayAgo := now.Add(-day).Unix()
	sevenDaysAgo := now.Add(-7 * day).Unix()
	stats := dto.PlayerStatsResponse{}
	for _, p := range players {
		stats.Total++
		if p.TsLastConnection > oneDayAgo {
			stats.PlayedLast24h++
		}
		if p.TsJoined > oneDayAgo {
			stats.JoinedLast24h++
		}
		if p.TsJoined > sevenDaysAgo {
			stats.JoinedLast7d++
		}
	}
	return stats, nil
}

func (s *actionStatsService) AdminStats(ctx context.Context, name string) (dto.AdminStatsResponse, error) {
	name = strings.TrimSpace(name)
	stats := dto.AdminStatsResponse{Name: name}
	if name == "" {
		return stats, nil
	}

	actions, err := s.repo.List(ctx, repository.ActionQuery{})
	if err != nil {
		return dto.AdminStatsResponse{}, err
	}

	for _, action := range actions {
		accumulateAdminStats(&stats, action, name)
	}
	return stats, nil
}

func (s *actionStatsService) Dashboard(ctx context.Context) (dto.DashboardStatsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "stats.dashboard")
	span.SetAttributes(attribute.String("stats.cache_key", dashboardCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, dashboardCacheKey).Result()
		if err == nil {
			var response dto.DashboardStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("stats.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
			span.RecordError(err)
		}
	}

	actions, err := s.repo.List(ctx, repository.ActionQuery{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_actions_failed")
		return dto.DashboardStatsResponse{}, err
	}

	summary := s.buildDashboard(actions)
	span.SetAttributes(attribute.Int("stats.action_count", len(actions)))

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

func (s *actionStatsService) buildDashboard(actions []models.Action) dto.DashboardStatsResponse {
	now := s.now()
	summary := dto.DashboardStatsResponse{GeneratedAt: now.UTC()}
	admins := map[string]*dto.AdminStatsResponse{}
	order := make([]string, 0)

	see := func(name *string) {
		if name == nil || strings.TrimSpace(*name) == "" {
			return
		}
		key := strings.ToLower(strings.TrimSpace(*name))
		if _, ok := admins[key]; !ok {
			admins[key] = &dto.AdminStatsResponse{Name: strings.TrimSpace(*name)}
			order = append(order, key)
		}
	}

	for _, action := range actions {
		base := action.Base()
		switch action.Type() {
		case models.ActionTypeBan:
			summary.BansGiven++
			exp := models.Expiration(action)
			if !base.Revocation.IsRevoked() && (exp == nil || *exp > now.Unix()) {
				summary.ActiveBans++
			}
		case models.ActionTypeWarn:
			summary.WarnsGiven++
		case models.ActionTypeMute:
			summary.MutesGiven++
		}

		see(&base.Author)
		see(base.Revocation.Requestor)
		see(base.Revocation.Approver)
	}

	for _, action := range actions {
		for _, key := range adminKeys(action) {
			accumulateAdminStats(admins[key], action, key)
		}
	}

	summary.Leaderboard = make([]dto.AdminStatsResponse, 0, len(order))
	for _, key := range order {
		summary.Leaderboard = append(summary.Leaderboard, *admins[key])
	}
	sort.SliceStable(summary.Leaderboard, func(i, j int) bool {
		a, b := summary.Leaderboard[i], summary.Leaderboard[j]
		if a.BansGiven != b.BansGiven {
			return a.BansGiven > b.BansGiven
		}
		if a.WarnsGiven != b.WarnsGiven {
			return a.WarnsGiven > b.WarnsGiven
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})

	return summary
}

func (s *actionStatsService) WagerBlacklistStats(ctx context.Context) (dto.WagerBlacklistStatsResponse, error) {
	actions, err := s.repo.List(ctx, repository.ActionQuery{Types: []models.ActionType{models.ActionTypeWagerBlacklist}})
	if err != nil {
		return dto.WagerBlacklistStatsResponse{}, err
	}

	sevenDaysAgo := s.now().Add(-7 * day).Unix()
	stats := dto.WagerBlacklistStatsResponse{}
	for _, action := range actions {
		stats.Total++
		if action.Base().Revocation.IsRevoked() {
			stats.Revoked++
		} else {
			stats.Active++
		}
		if action.Base().Timestamp > sevenDaysAgo {
			stats.Last7Days++
		}
	}
	return stats, nil
}

func (s *actionStatsService) PcCheckLeaderboard(ctx context.Context, window time.Duration) (dto.PcCheckLeaderboardResponse, error) {
	if window <= 0 {
		window = defaultPcCheckerWindow
	}
	actions, err := s.repo.List(ctx, repository.ActionQuery{Types: []models.ActionType{models.ActionTypePcCheck}})
	if err != nil {
		return dto.PcCheckLeaderboardResponse{}, err
	}

	since := s.now().Add(-window).Unix()
	counts := map[string]int64{}
	for _, action := range actions {
		if action.Base().Timestamp > since {
			counts[action.Base().Author]++
		}
	}

	return dto.PcCheckLeaderboardResponse{WindowStart: since, Checkers: sortedCounts(counts)}, nil
}

// accumulateAdminStats adds the contribution of action to stats for the admin
// named name, compared case-insensitively.
func accumulateAdminStats(stats *dto.AdminStatsResponse, action models.Action, name string) {
	lower := strings.ToLower(name)
	base := action.Base()

	if strings.ToLower(base.Author) == lower {
		switch action.Type() {
		case models.ActionTypeBan:
			stats.BansGiven++
		case models.ActionTypeWarn:
			stats.WarnsGiven++
		}
	}

	rev := base.Revocation
	if rev.Requestor != nil && strings.ToLower(*rev.Requestor) == lower {
		stats.RevokeRequested++
	}
	if rev.Approver != nil && strings.ToLower(*rev.Approver) == lower {
		switch rev.Status {
		case models.RevocationApproved:
			stats.RevokeApproved++
		case models.RevocationDenied:
			stats.RevokeDenied++
		}
	}
}

// adminKeys returns the distinct lower-cased admin names referenced by action.
func adminKeys(action models.Action) []string {
	base := action.Base()
	keys := make([]string, 0, 3)
	add := func(name *string) {
		if name == nil {
			return
		}
		key := strings.ToLower(strings.TrimSpace(*name))
		if key == "" {
			return
		}
		for _, existing := range keys {
			if existing == key {
				return
			}
		}
		keys = append(keys, key)
	}
	add(&base.Author)
	add(base.Revocation.Requestor)
	add(base.Revocation.Approver)
	return keys
}

func sortedCounts(counts map[string]int64) []dto.AdminCount {
	result := make([]dto.AdminCount, 0, len(counts))
	for name, count := range counts {
		result = append(result, dto.AdminCount{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	return result
}

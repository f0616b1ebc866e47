package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/action-ledger/internal/models"
)

func revocationBy(requestor, approver string, status models.RevocationStatus, ts *int64) models.Revocation {
	rev := models.Revocation{Status: status, Timestamp: ts}
	if requestor != "" {
		rev.Requestor = &requestor
	}
	if approver != "" {
		rev.Approver = &approver
	}
	return rev
}

func seedStatsHistory(t *testing.T, fx *ledgerFixture) {
	t.Helper()
	now := baseTime.Unix()
	old := now - 10*24*3600
	revokedAt := now - 50
	future := now + 3600

	seedHistory(t, fx.repo,
		&models.Ban{ActionBase: models.ActionBase{ID: "B111-1111", IDs: []string{testLicense}, Author: "Alice", Reason: "a", Timestamp: old}},
		&models.Ban{ActionBase: models.ActionBase{ID: "B111-1112", IDs: []string{testLicense}, Author: "alice", Reason: "b", Timestamp: now - 100, Revocation: revocationBy("Bob", "Carol", models.RevocationApproved, &revokedAt)}},
		&models.Ban{ActionBase: models.ActionBase{ID: "B111-1113", IDs: []string{testLicense}, Author: "Bob", Reason: "c", Timestamp: now - 90}, Expiration: &future},
		warnAt("A111-1111", now-80, "Bob", "d", testLicense),
		warnAt("A111-1112", old, "Carol", "e", testLicense),
		&models.Mute{ActionBase: models.ActionBase{ID: "M111-1111", IDs: []string{testLicense}, Author: "Carol", Reason: "f", Timestamp: now - 70, Revocation: revocationBy("Alice", "Carol", models.RevocationDenied, nil)}},
		&models.WagerBlacklist{ActionBase: models.ActionBase{ID: "W111-1111", IDs: []string{testDiscord}, Author: "Head", Reason: "g", Timestamp: now - 60}},
		&models.WagerBlacklist{ActionBase: models.ActionBase{ID: "W111-1112", IDs: []string{testDiscord}, Author: "Head", Reason: "h", Timestamp: old, Revocation: revocationBy("", "Head", models.RevocationApproved, &revokedAt)}},
		&models.PcCheck{ActionBase: models.ActionBase{ID: "P111-1111", IDs: []string{testLicense}, Author: "Checker", Reason: "i", Timestamp: now - 40}, Proofs: []string{}},
		&models.PcCheck{ActionBase: models.ActionBase{ID: "P111-1112", IDs: []string{testLicense}, Author: "Checker", Reason: "j", Timestamp: now - 30}, Proofs: []string{}},
		&models.PcCheck{ActionBase: models.ActionBase{ID: "P111-1113", IDs: []string{testLicense}, Author: "Rookie", Reason: "k", Timestamp: old}, Proofs: []string{}},
	)
}

func newStatsService(t *testing.T, fx *ledgerFixture, cache *redis.Client) ActionStatsService {
	t.Helper()
	svc := NewActionStatsService(fx.repo, fx.players, cache, time.Minute, testLogger())
	if concrete, ok := svc.(*actionStatsService); ok {
		concrete.now = fx.clock.Now
	}
	return svc
}

func TestActionStatsCountsByType(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	seedStatsHistory(t, fx)
	svc := newStatsService(t, fx, nil)

	stats, err := svc.ActionStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.TotalBans)
	require.Equal(t, int64(2), stats.BansLast7d)
	require.Equal(t, int64(2), stats.TotalWarns)
	require.Equal(t, int64(1), stats.WarnsLast7d)
	require.Equal(t, int64(2), stats.TotalWagerBlacklists)
	require.NotEmpty(t, stats.GroupedByAdmins)
	require.Equal(t, "Bob", stats.GroupedByAdmins[0].Name)
}

func TestActionStatsAdminStatsIsCaseInsensitive(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	seedStatsHistory(t, fx)
	svc := newStatsService(t, fx, nil)
	ctx := context.Background()

	alice, err := svc.AdminStats(ctx, "ALICE")
	require.NoError(t, err)
	require.Equal(t, int64(2), alice.BansGiven)
	require.Equal(t, int64(1), alice.RevokeRequested)

	carol, err := svc.AdminStats(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, int64(1), carol.WarnsGiven)
	require.Equal(t, int64(1), carol.RevokeApproved)
	require.Equal(t, int64(1), carol.RevokeDenied)

	empty, err := svc.AdminStats(ctx, " ")
	require.NoError(t, err)
	require.Zero(t, empty.BansGiven)
}

func TestActionStatsWagerAndPcCheckers(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	seedStatsHistory(t, fx)
	svc := newStatsService(t, fx, nil)
	ctx := context.Background()

	wager, err := svc.WagerBlacklistStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), wager.Total)
	require.Equal(t, int64(1), wager.Active)
	require.Equal(t, int64(1), wager.Revoked)
	require.Equal(t, int64(1), wager.Last7Days)

	checkers, err := svc.PcCheckLeaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, checkers.Checkers, 1)
	require.Equal(t, "Checker", checkers.Checkers[0].Name)
	require.Equal(t, int64(2), checkers.Checkers[0].Count)
	require.Equal(t, baseTime.Add(-7*24*time.Hour).Unix(), checkers.WindowStart)
}

func TestActionStatsPlayerStats(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()
	now := baseTime.Unix()

	require.NoError(t, fx.players.Create(ctx, &models.Player{License: "p1", TsJoined: now - 3600, TsLastConnection: now - 60}))
	require.NoError(t, fx.players.Create(ctx, &models.Player{License: "p2", TsJoined: now - 3*24*3600, TsLastConnection: now - 2*24*3600}))
	require.NoError(t, fx.players.Create(ctx, &models.Player{License: "p3", TsJoined: now - 30*24*3600, TsLastConnection: now - 7200}))

	stats, err := newStatsService(t, fx, nil).PlayerStats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(2), stats.PlayedLast24h)
	require.Equal(t, int64(1), stats.JoinedLast24h)
	require.Equal(t, int64(2), stats.JoinedLast7d)
}

func TestActionStatsDashboardUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fx := setupLedgerFixture(t, LedgerConfig{})
	seedStatsHistory(t, fx)
	svc := newStatsService(t, fx, client)
	ctx := context.Background()

	first, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.Equal(t, int64(2), first.ActiveBans)
	require.Equal(t, int64(3), first.BansGiven)
	require.Equal(t, int64(2), first.WarnsGiven)
	require.Equal(t, int64(1), first.MutesGiven)
	require.Equal(t, "Alice", first.Leaderboard[0].Name)
	require.True(t, mr.Exists(dashboardCacheKey))

	second, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.BansGiven, second.BansGiven)

	mr.FastForward(2 * time.Minute)
	third, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	require.False(t, third.CacheHit)
}

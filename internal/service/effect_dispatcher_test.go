package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/action-ledger/internal/models"
)

func TestBrokerEffectDispatcherWritesRedisStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dispatcher := NewBrokerEffectDispatcher(client, "ledger", nil, testLogger())
	ctx := context.Background()

	mute := &models.Mute{ActionBase: models.ActionBase{ID: "M111-1111", IDs: []string{testLicense}, Author: "Alice", Reason: "mic spam"}}
	effects, _ := approvalEffects(mute, "Bob", "", baseTime, func(string) bool { return false })
	require.NoError(t, dispatcher.Dispatch(ctx, effects))

	entries, err := client.XRange(ctx, "ledger:effects", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, string(EffectPlayerUnmuted), entries[0].Values["kind"])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &decoded))
	require.Equal(t, "M111-1111", decoded["action_id"])
	require.Equal(t, testLicense, decoded["target_license"])
	require.Equal(t, "Bob", decoded["author"])
}

func TestBrokerEffectDispatcherReportsTransportFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	dispatcher := NewBrokerEffectDispatcher(client, "ledger", nil, testLogger())
	mr.Close()

	warn := &models.Warn{ActionBase: models.ActionBase{ID: "A111-1111", IDs: []string{testLicense}, Author: "Alice"}}
	err := dispatcher.Dispatch(context.Background(), []Effect{newEffect(EffectActionRevoked, warn, "Bob", baseTime)})
	require.Error(t, err)
}

func TestLogEffectDispatcherNeverFails(t *testing.T) {
	warn := &models.Warn{ActionBase: models.ActionBase{ID: "A111-1111"}}
	err := NewLogEffectDispatcher(testLogger()).Dispatch(context.Background(), []Effect{newEffect(EffectActionRevoked, warn, "Bob", baseTime)})
	require.NoError(t, err)
}

func TestApprovalEffectsSkipMissingIdentifiers(t *testing.T) {
	ban := &models.Ban{ActionBase: models.ActionBase{ID: "B111-1111", IDs: []string{testLicense}}, Blacklist: true, HWIDs: []string{"2:abc"}}
	effects, removed := approvalEffects(ban, "Bob", "", baseTime, func(string) bool { return false })
	require.False(t, removed)
	require.Len(t, effects, 1)
	require.Equal(t, EffectActionRevoked, effects[0].Kind)
	require.Equal(t, []string{"2:abc"}, effects[0].HWIDs)
	require.NotEmpty(t, effects[0].ID)
}

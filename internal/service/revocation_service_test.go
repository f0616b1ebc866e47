package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/action-ledger/internal/dto"
	"github.com/noah-isme/action-ledger/internal/models"
)

func TestRevocationRequestThenApprove(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()

	banID, err := fx.ledger.RegisterBan(ctx, dto.BanRequest{ActionTarget: target("Alice", testLicense), Reason: "wallhack"})
	require.NoError(t, err)

	requested, err := fx.revocation.RequestRevocation(ctx, banID, "Bob", "appeal accepted")
	require.NoError(t, err)
	rev := requested.Base().Revocation
	require.Equal(t, models.RevocationPending, rev.Status)
	require.Equal(t, "Bob", *rev.Requestor)
	require.Equal(t, "appeal accepted", *rev.Reason)
	require.Nil(t, rev.Timestamp)

	_, err = fx.revocation.RequestRevocation(ctx, banID, "Carol", "")
	require.ErrorIs(t, err, ErrRevocationPending)

	fx.clock.Advance(time.Hour)
	result, err := fx.revocation.ApproveRevocation(ctx, banID, "Master", OnlyTypes(models.ActionTypeBan), "")
	require.NoError(t, err)
	rev = result.Action.Base().Revocation
	require.Equal(t, models.RevocationApproved, rev.Status)
	require.Equal(t, baseTime.Add(time.Hour).Unix(), *rev.Timestamp)
	require.Equal(t, "Master", *rev.Approver)
	require.Equal(t, "Bob", *rev.Requestor)
	require.Equal(t, "appeal accepted", *rev.Reason)
	require.False(t, result.BlacklistRoleRemoved)
	require.Equal(t, []EffectKind{EffectActionRevoked}, fx.dispatcher.kinds())

	stored, err := fx.ledger.FindOne(ctx, banID)
	require.NoError(t, err)
	require.True(t, stored.Base().Revocation.IsRevoked())
}

func TestRevocationApproveRequiresPermission(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()

	warnID, err := fx.ledger.RegisterWarn(ctx, dto.WarnRequest{ActionTarget: target("Alice", testLicense), Reason: "rdm"})
	require.NoError(t, err)

	_, err = fx.revocation.ApproveRevocation(ctx, warnID, "Bob", OnlyTypes(models.ActionTypeBan), "")
	require.ErrorIs(t, err, ErrPermissionDenied)

	stored, err := fx.ledger.FindOne(ctx, warnID)
	require.NoError(t, err)
	require.Equal(t, models.RevocationNone, stored.Base().Revocation.Status)
	require.Empty(t, fx.dispatcher.effects)

	_, err = fx.revocation.ApproveRevocation(ctx, "A999-9999", "Bob", AnyType(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevocationApprovedIsTerminal(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()

	warnID, err := fx.ledger.RegisterWarn(ctx, dto.WarnRequest{ActionTarget: target("Alice", testLicense), Reason: "rdm"})
	require.NoError(t, err)
	_, err = fx.revocation.ApproveRevocation(ctx, warnID, "Bob", AnyType(), "mistake")
	require.NoError(t, err)

	_, err = fx.revocation.ApproveRevocation(ctx, warnID, "Carol", AnyType(), "")
	require.ErrorIs(t, err, ErrAlreadyRevoked)
	_, err = fx.revocation.RequestRevocation(ctx, warnID, "Carol", "")
	require.ErrorIs(t, err, ErrAlreadyRevoked)
	_, err = fx.revocation.DenyRevocation(ctx, warnID, "Carol", "")
	require.ErrorIs(t, err, ErrAlreadyRevoked)

	stored, err := fx.ledger.FindOne(ctx, warnID)
	require.NoError(t, err)
	rev := stored.Base().Revocation
	require.Equal(t, models.RevocationApproved, rev.Status)
	require.Equal(t, "Bob", *rev.Approver)
	require.Equal(t, "mistake", *rev.Reason)
}

func TestRevocationDenyAllowsNewRequest(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()

	muteID, err := fx.ledger.RegisterMute(ctx, dto.MuteRequest{ActionTarget: target("Alice", testLicense), Reason: "mic spam"})
	require.NoError(t, err)

	_, err = fx.revocation.RequestRevocation(ctx, muteID, "Bob", "")
	require.NoError(t, err)
	denied, err := fx.revocation.DenyRevocation(ctx, muteID, "Master", "not convincing")
	require.NoError(t, err)
	require.Equal(t, models.RevocationDenied, denied.Base().Revocation.Status)
	require.Nil(t, denied.Base().Revocation.Timestamp)
	require.Equal(t, []EffectKind{EffectRevocationDenied}, fx.dispatcher.kinds())
	require.Equal(t, "not convincing", fx.dispatcher.effects[0].Reason)
	require.NotNil(t, fx.dispatcher.effects[0].Action)

	again, err := fx.revocation.RequestRevocation(ctx, muteID, "Bob", "new evidence")
	require.NoError(t, err)
	require.Equal(t, models.RevocationPending, again.Base().Revocation.Status)

	// denying without an open request is permitted
	warnID, err := fx.ledger.RegisterWarn(ctx, dto.WarnRequest{ActionTarget: target("Alice", testLicense), Reason: "rdm"})
	require.NoError(t, err)
	_, err = fx.revocation.DenyRevocation(ctx, warnID, "Master", "")
	require.NoError(t, err)
}

func TestRevocationApproveEmitsTypeSpecificEffects(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()

	muteID, err := fx.ledger.RegisterMute(ctx, dto.MuteRequest{ActionTarget: target("Alice", testLicense), Reason: "mic spam"})
	require.NoError(t, err)
	wagerID, err := fx.ledger.RegisterWagerBlacklist(ctx, dto.WagerBlacklistRequest{ActionTarget: target("Head", testDiscord), Reason: "scam"})
	require.NoError(t, err)

	result, err := fx.revocation.ApproveRevocation(ctx, muteID, "Bob", AnyType(), "")
	require.NoError(t, err)
	require.Len(t, result.Effects, 2)
	require.Equal(t, EffectPlayerUnmuted, result.Effects[0].Kind)
	require.Equal(t, testLicense, result.Effects[0].TargetLicense)

	result, err = fx.revocation.ApproveRevocation(ctx, wagerID, "Bob", OnlyTypes(models.ActionTypeWagerBlacklist), "")
	require.NoError(t, err)
	require.Len(t, result.Effects, 2)
	require.Equal(t, EffectWagerRoleRemoval, result.Effects[0].Kind)
	require.Equal(t, "272800190639898628", result.Effects[0].DiscordUID)
	require.Equal(t, "no reason provided", result.Effects[0].Reason)
	require.Equal(t, EffectActionRevoked, result.Effects[1].Kind)

	require.Equal(t, []EffectKind{EffectPlayerUnmuted, EffectActionRevoked, EffectWagerRoleRemoval, EffectActionRevoked}, fx.dispatcher.kinds())
}

func TestRevocationBlacklistRoleRemovedOnlyWithoutOtherBlacklist(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()

	first, err := fx.ledger.RegisterBan(ctx, dto.BanRequest{ActionTarget: target("Alice", testDiscord), Reason: "cheats", Blacklist: true})
	require.NoError(t, err)
	fx.clock.Advance(time.Minute)
	second, err := fx.ledger.RegisterBan(ctx, dto.BanRequest{ActionTarget: target("Alice", testDiscord, testLicense), Reason: "cheats again", Blacklist: true})
	require.NoError(t, err)

	result, err := fx.revocation.ApproveRevocation(ctx, first, "Master", AnyType(), "")
	require.NoError(t, err)
	require.False(t, result.BlacklistRoleRemoved)

	result, err = fx.revocation.ApproveRevocation(ctx, second, "Master", AnyType(), "")
	require.NoError(t, err)
	require.True(t, result.BlacklistRoleRemoved)
	require.Equal(t, EffectBlacklistRoleRemoval, result.Effects[0].Kind)
}

func TestRevocationDispatchFailureDoesNotFailApproval(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()
	fx.dispatcher.err = errDispatchDown

	warnID, err := fx.ledger.RegisterWarn(ctx, dto.WarnRequest{ActionTarget: target("Alice", testLicense), Reason: "rdm"})
	require.NoError(t, err)

	result, err := fx.revocation.ApproveRevocation(ctx, warnID, "Bob", AnyType(), "")
	require.NoError(t, err)
	require.True(t, result.Action.Base().Revocation.IsRevoked())
}

func TestRevocationApproveClearsTargeting(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()

	license := testLicense[len(licensePrefix):]
	require.NoError(t, fx.players.Create(ctx, &models.Player{License: license}))

	targetID, err := fx.ledger.RegisterTarget(ctx, dto.TargetRequest{ActionTarget: target("Alice", testLicense), Reason: "suspicious"})
	require.NoError(t, err)

	_, err = fx.revocation.ApproveRevocation(ctx, targetID, "Bob", OnlyTypes(models.ActionTypeTarget), "")
	require.NoError(t, err)

	player, err := fx.players.FindByLicense(ctx, license)
	require.NoError(t, err)
	require.False(t, player.IsTargeted)
	require.Nil(t, player.TargetedBy)
}

func TestActorRevocableTypes(t *testing.T) {
	master := Actor{Name: "root", IsMaster: true}
	require.True(t, master.RevocableTypes().Allows(models.ActionTypeSummon))
	require.True(t, master.HasPermission("anything"))

	all := Actor{Name: "all", Permissions: []string{"all_permissions"}}
	require.True(t, all.RevocableTypes().Allows(models.ActionTypePcCheck))

	mod := Actor{Name: "mod", Permissions: []string{"players.warn", "wager.head"}}
	allowed := mod.RevocableTypes()
	require.True(t, allowed.Allows(models.ActionTypeWarn))
	require.True(t, allowed.Allows(models.ActionTypeWagerBlacklist))
	require.False(t, allowed.Allows(models.ActionTypeBan))
	require.False(t, mod.HasPermission("players.ban"))
}

func TestRevocationConcurrentApproveSucceedsOnce(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	ctx := context.Background()

	warnID, err := fx.ledger.RegisterWarn(ctx, dto.WarnRequest{ActionTarget: target("Alice", testLicense), Reason: "rdm"})
	require.NoError(t, err)

	const approvers = 20
	var (
		successes atomic.Int32
		wg        sync.WaitGroup
		errs      = make(chan error, approvers)
	)
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := fx.revocation.ApproveRevocation(ctx, warnID, fmt.Sprintf("Admin%d", n), AnyType(), "")
			if err != nil {
				errs <- err
				return
			}
			successes.Add(1)
		}(i)
	}
	wg.Wait()
	close(errs)

	require.EqualValues(t, 1, successes.Load())
	for err := range errs {
		require.ErrorIs(t, err, ErrAlreadyRevoked)
	}
	require.Equal(t, []EffectKind{EffectActionRevoked}, fx.dispatcher.kinds())

	_, err = fx.revocation.DenyRevocation(ctx, warnID, "Late", "")
	require.ErrorIs(t, err, ErrAlreadyRevoked)
}

type blockingDispatcher struct {
	sawDeadline atomic.Bool
}

func (b *blockingDispatcher) Dispatch(ctx context.Context, effects []Effect) error {
	_, ok := ctx.Deadline()
	b.sawDeadline.Store(ok)
	<-ctx.Done()
	return ctx.Err()
}

func TestRevocationDispatchIsBoundedByTimeout(t *testing.T) {
	fx := setupLedgerFixture(t, LedgerConfig{})
	blocking := &blockingDispatcher{}
	revocation := fx.revocation.(*revocationService)
	revocation.dispatcher = blocking
	revocation.dispatchTimeout = 20 * time.Millisecond

	warnID, err := fx.ledger.RegisterWarn(context.Background(), dto.WarnRequest{ActionTarget: target("Alice", testLicense), Reason: "rdm"})
	require.NoError(t, err)

	start := time.Now()
	result, err := revocation.ApproveRevocation(context.Background(), warnID, "Bob", AnyType(), "")
	require.NoError(t, err)
	require.True(t, result.Action.Base().Revocation.IsRevoked())
	require.True(t, blocking.sawDeadline.Load())
	require.Less(t, time.Since(start), 2*time.Second)
}

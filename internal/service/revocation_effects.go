package service

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/action-ledger/internal/models"
)

// EffectKind names a side effect of a revocation transition.
type EffectKind string

const (
	EffectActionRevoked        EffectKind = "action_revoked"
	EffectPlayerUnmuted        EffectKind = "player_unmuted"
	EffectWagerRoleRemoval     EffectKind = "wager_role_removal"
	EffectBlacklistRoleRemoval EffectKind = "blacklist_role_removal"
	EffectRevocationDenied     EffectKind = "revocation_denied"
)

// Effect is a notification the ledger asks an outer collaborator to deliver.
// The ledger never performs the I/O itself.
type Effect struct {
	ID            string            `json:"id"`
	Kind          EffectKind        `json:"kind"`
	ActionID      string            `json:"action_id"`
	ActionType    models.ActionType `json:"action_type"`
	Author        string            `json:"author"`
	Reason        string            `json:"reason,omitempty"`
	ActionAuthor  string            `json:"action_author,omitempty"`
	PlayerName    string            `json:"player_name,omitempty"`
	TargetLicense string            `json:"target_license,omitempty"`
	DiscordUID    string            `json:"discord_uid,omitempty"`
	IDs           []string          `json:"ids,omitempty"`
	HWIDs         []string          `json:"hwids,omitempty"`
	Action        models.Action     `json:"action,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func newEffect(kind EffectKind, action models.Action, author string, at time.Time) Effect {
	base := action.Base()
	return Effect{
		ID:           uuid.NewString(),
		Kind:         kind,
		ActionID:     base.ID,
		ActionType:   action.Type(),
		Author:       author,
		ActionAuthor: base.Author,
		PlayerName:   base.PlayerName,
		CreatedAt:    at.UTC(),
	}
}

// approvalEffects computes the type specific effects of an approved revocation.
// activeBlacklist reports whether another blacklist ban still applies to the discord id.
func approvalEffects(action models.Action, approver, reason string, at time.Time, activeBlacklist func(discordID string) bool) ([]Effect, bool) {
	var effects []Effect
	blacklistRoleRemoved := false

	switch v := action.(type) {
	case *models.Mute:
		if license, ok := models.FindIdentifier(v, licensePrefix); ok {
			effect := newEffect(EffectPlayerUnmuted, v, approver, at)
			effect.TargetLicense = license
			effects = append(effects, effect)
		}
	case *models.WagerBlacklist:
		if discordID, ok := models.FindIdentifier(v, discordPrefix); ok {
			effect := newEffect(EffectWagerRoleRemoval, v, approver, at)
			effect.DiscordUID = strings.TrimPrefix(discordID, discordPrefix)
			effect.Reason = reason
			if effect.Reason == "" {
				effect.Reason = "no reason provided"
			}
			effects = append(effects, effect)
		}
	case *models.Ban:
		if v.Blacklist {
			if discordID, ok := models.FindIdentifier(v, discordPrefix); ok && !activeBlacklist(discordID) {
				effect := newEffect(EffectBlacklistRoleRemoval, v, approver, at)
				effect.DiscordUID = strings.TrimPrefix(discordID, discordPrefix)
				effects = append(effects, effect)
				blacklistRoleRemoved = true
			}
		}
	}

	revoked := newEffect(EffectActionRevoked, action, approver, at)
	revoked.Reason = action.Base().Reason
	revoked.IDs = append([]string(nil), action.Base().IDs...)
	revoked.HWIDs = append([]string(nil), models.HWIDs(action)...)
	effects = append(effects, revoked)

	return effects, blacklistRoleRemoved
}

package dto

import (
	"github.com/noah-isme/action-ledger/internal/models"
)

// ActionTarget identifies the player an action is issued against. Author is
// always taken from the authenticated admin, never from the request body.
type ActionTarget struct {
	IDs        []string `json:"ids" validate:"required,min=1,dive,required"`
	PlayerName string   `json:"player_name" validate:"max=128"`
	Author     string   `json:"-" validate:"required,max=128"`
}

// BanRequest captures the payload for issuing a ban.
type BanRequest struct {
	ActionTarget
	Reason      string   `json:"reason" validate:"required,max=2048"`
	HWIDs       []string `json:"hwids" validate:"omitempty,dive,required"`
	Expiration  *int64   `json:"expiration" validate:"omitempty,gt=0"`
	BanApprover string   `json:"ban_approver" validate:"max=128"`
	Blacklist   bool     `json:"blacklist"`
	PcCheckID   string   `json:"pc_check_id" validate:"max=32"`
}

// WarnRequest captures the payload for issuing a warning.
type WarnRequest struct {
	ActionTarget
	Reason string `json:"reason" validate:"required,max=2048"`
}

// MuteRequest captures the payload for muting a player.
type MuteRequest struct {
	ActionTarget
	Reason     string `json:"reason" validate:"required,max=2048"`
	Expiration *int64 `json:"expiration" validate:"omitempty,gt=0"`
}

// WagerBlacklistRequest captures the payload for blacklisting a player from wagers.
type WagerBlacklistRequest struct {
	ActionTarget
	Reason string `json:"reason" validate:"required,max=2048"`
}

// TargetRequest captures the payload for flagging a player for staff attention.
type TargetRequest struct {
	ActionTarget
	Reason string `json:"reason" validate:"required,max=2048"`
}

// SummonRequest captures the payload for recording a summon. Summons carry no reason.
type SummonRequest struct {
	ActionTarget
}

// PcCheckRequest captures the outcome of a PC check.
type PcCheckRequest struct {
	ActionTarget
	Reason     string   `json:"reason" validate:"required,max=2048"`
	Caught     bool     `json:"caught"`
	Supervisor string   `json:"supervisor" validate:"required,max=128"`
	Approver   string   `json:"approver" validate:"required,max=128"`
	Proofs     []string `json:"proofs" validate:"omitempty,dive,required"`
	BanID      string   `json:"ban_id" validate:"max=32"`
}

// ModifyDurationRequest changes a ban's expiration. A null expiration makes the ban permanent.
type ModifyDurationRequest struct {
	Expiration *int64 `json:"expiration" validate:"omitempty,gt=0"`
}

// ModifyReasonRequest replaces a ban's reason.
type ModifyReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=2048"`
}

// LinkBanRequest links a PC check to a ban.
type LinkBanRequest struct {
	BanID string `json:"ban_id" validate:"required,max=32"`
}

// RevocationRequest carries the optional reason for a revocation transition.
type RevocationRequest struct {
	Reason string `json:"reason" validate:"max=2048"`
}

// ActionCreatedResponse is returned after an action has been registered.
type ActionCreatedResponse struct {
	ID   string            `json:"id"`
	Type models.ActionType `json:"type"`
}

// ActionResponse serializes a single action together with its variant fields.
type ActionResponse struct {
	Type models.ActionType `json:"type"`
	models.ActionBase
	HWIDs       []string `json:"hwids,omitempty"`
	Expiration  *int64   `json:"expiration,omitempty"`
	BanApprover string   `json:"ban_approver,omitempty"`
	OldReason   string   `json:"old_reason,omitempty"`
	Blacklist   bool     `json:"blacklist,omitempty"`
	PcCheckID   string   `json:"pc_check_id,omitempty"`
	Acked       *bool    `json:"acked,omitempty"`
	Caught      *bool    `json:"caught,omitempty"`
	Supervisor  string   `json:"supervisor,omitempty"`
	Approver    string   `json:"approver,omitempty"`
	Proofs      []string `json:"proofs,omitempty"`
	BanID       string   `json:"ban_id,omitempty"`
}

// RevocationResponse describes the outcome of a revocation transition.
type RevocationResponse struct {
	Action               ActionResponse `json:"action"`
	BlacklistRoleRemoved bool           `json:"blacklist_role_removed"`
	Effects              []string       `json:"effects,omitempty"`
	Pending              bool           `json:"pending"`
}

// NewActionResponse flattens an action into its wire representation.
func NewActionResponse(action models.Action) ActionResponse {
	response := ActionResponse{
		Type:       action.Type(),
		ActionBase: *action.Base(),
	}

	switch v := action.(type) {
	case *models.Ban:
		response.HWIDs = v.HWIDs
		response.Expiration = v.Expiration
		response.BanApprover = v.BanApprover
		response.OldReason = v.OldReason
		response.Blacklist = v.Blacklist
		response.PcCheckID = v.PcCheckID
	case *models.Mute:
		response.Expiration = v.Expiration
	case *models.Warn:
		acked := v.Acked
		response.Acked = &acked
	case *models.PcCheck:
		caught := v.Caught
		response.Caught = &caught
		response.Supervisor = v.Supervisor
		response.Approver = v.Approver
		response.Proofs = v.Proofs
		response.BanID = v.BanID
	}

	return response
}

// NewActionResponses converts a slice of actions.
func NewActionResponses(actions []models.Action) []ActionResponse {
	responses := make([]ActionResponse, 0, len(actions))
	for _, action := range actions {
		responses = append(responses, NewActionResponse(action))
	}
	return responses
}

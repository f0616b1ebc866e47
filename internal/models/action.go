package models

import "slices"

// ActionType identifies the variant of a moderation action.
type ActionType string

const (
	ActionTypeBan            ActionType = "ban"
	ActionTypeWarn           ActionType = "warn"
	ActionTypeMute           ActionType = "mute"
	ActionTypeWagerBlacklist ActionType = "wagerblacklist"
	ActionTypePcCheck        ActionType = "pc_check"
	ActionTypeTarget         ActionType = "target"
	ActionTypeSummon         ActionType = "summon"
)

// ActionTypes lists every known variant.
var ActionTypes = []ActionType{
	ActionTypeBan,
	ActionTypeWarn,
	ActionTypeMute,
	ActionTypeWagerBlacklist,
	ActionTypePcCheck,
	ActionTypeTarget,
	ActionTypeSummon,
}

// Valid reports whether t is one of the known variants.
func (t ActionType) Valid() bool {
	return slices.Contains(ActionTypes, t)
}

// ActionBase holds the fields shared by every action variant.
type ActionBase struct {
	ID         string     `json:"id"`
	IDs        []string   `json:"ids"`
	PlayerName string     `json:"player_name,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Author     string     `json:"author"`
	Timestamp  int64      `json:"timestamp"`
	Revocation Revocation `json:"revocation"`
}

// Action is a single ledger record. The set of implementations is closed.
type Action interface {
	Base() *ActionBase
	Type() ActionType
	Clone() Action
	isAction()
}

// Ban removes a player from the server, temporarily or permanently.
type Ban struct {
	ActionBase
	HWIDs       []string `json:"hwids,omitempty"`
	Expiration  *int64   `json:"expiration"`
	BanApprover string   `json:"ban_approver,omitempty"`
	OldReason   string   `json:"old_reason,omitempty"`
	Blacklist   bool     `json:"blacklist,omitempty"`
	PcCheckID   string   `json:"pc_check_id,omitempty"`
}

// Warn is a non-expiring warning the player must acknowledge.
type Warn struct {
	ActionBase
	Acked bool `json:"acked"`
}

// Mute silences a player's voice chat.
type Mute struct {
	ActionBase
	Expiration *int64 `json:"expiration"`
}

// WagerBlacklist excludes a player from wager matches.
type WagerBlacklist struct {
	ActionBase
}

// PcCheck records the outcome of a manual PC inspection.
type PcCheck struct {
	ActionBase
	Caught     bool     `json:"caught"`
	Supervisor string   `json:"supervisor"`
	Approver   string   `json:"approver"`
	Proofs     []string `json:"proofs"`
	BanID      string   `json:"ban_id,omitempty"`
}

// Target flags a player for staff attention.
type Target struct {
	ActionBase
}

// Summon records that a player was summoned by staff. Summons carry no reason.
type Summon struct {
	ActionBase
}

func (a *Ban) Base() *ActionBase            { return &a.ActionBase }
func (a *Warn) Base() *ActionBase           { return &a.ActionBase }
func (a *Mute) Base() *ActionBase           { return &a.ActionBase }
func (a *WagerBlacklist) Base() *ActionBase { return &a.ActionBase }
func (a *PcCheck) Base() *ActionBase        { return &a.ActionBase }
func (a *Target) Base() *ActionBase         { return &a.ActionBase }
func (a *Summon) Base() *ActionBase         { return &a.ActionBase }

func (*Ban) Type() ActionType            { return ActionTypeBan }
func (*Warn) Type() ActionType           { return ActionTypeWarn }
func (*Mute) Type() ActionType           { return ActionTypeMute }
func (*WagerBlacklist) Type() ActionType { return ActionTypeWagerBlacklist }
func (*PcCheck) Type() ActionType        { return ActionTypePcCheck }
func (*Target) Type() ActionType         { return ActionTypeTarget }
func (*Summon) Type() ActionType         { return ActionTypeSummon }

func (*Ban) isAction()            {}
func (*Warn) isAction()           {}
func (*Mute) isAction()           {}
func (*WagerBlacklist) isAction() {}
func (*PcCheck) isAction()        {}
func (*Target) isAction()         {}
func (*Summon) isAction()         {}

func (a *Ban) Clone() Action {
	c := *a
	c.ActionBase = a.ActionBase.clone()
	c.HWIDs = slices.Clone(a.HWIDs)
	c.Expiration = cloneInt64(a.Expiration)
	return &c
}

func (a *Warn) Clone() Action {
	c := *a
	c.ActionBase = a.ActionBase.clone()
	return &c
}

func (a *Mute) Clone() Action {
	c := *a
	c.ActionBase = a.ActionBase.clone()
	c.Expiration = cloneInt64(a.Expiration)
	return &c
}

func (a *WagerBlacklist) Clone() Action {
	return &WagerBlacklist{ActionBase: a.ActionBase.clone()}
}

func (a *PcCheck) Clone() Action {
	c := *a
	c.ActionBase = a.ActionBase.clone()
	c.Proofs = slices.Clone(a.Proofs)
	return &c
}

func (a *Target) Clone() Action {
	return &Target{ActionBase: a.ActionBase.clone()}
}

func (a *Summon) Clone() Action {
	return &Summon{ActionBase: a.ActionBase.clone()}
}

func (b ActionBase) clone() ActionBase {
	b.IDs = slices.Clone(b.IDs)
	b.Revocation = b.Revocation.Clone()
	return b
}

// NewAction returns an empty value of the given variant, or nil for unknown types.
func NewAction(t ActionType) Action {
	switch t {
	case ActionTypeBan:
		return &Ban{}
	case ActionTypeWarn:
		return &Warn{}
	case ActionTypeMute:
		return &Mute{}
	case ActionTypeWagerBlacklist:
		return &WagerBlacklist{}
	case ActionTypePcCheck:
		return &PcCheck{}
	case ActionTypeTarget:
		return &Target{}
	case ActionTypeSummon:
		return &Summon{}
	default:
		return nil
	}
}

// Expiration returns the expiration of expiring variants. Nil means the action never expires.
func Expiration(a Action) *int64 {
	switch v := a.(type) {
	case *Ban:
		return v.Expiration
	case *Mute:
		return v.Expiration
	default:
		return nil
	}
}

// HWIDs returns the hardware ids recorded on the action, if the variant carries any.
func HWIDs(a Action) []string {
	if ban, ok := a.(*Ban); ok {
		return ban.HWIDs
	}
	return nil
}

// HasIdentifier reports whether the action targets the given identifier.
func HasIdentifier(a Action, id string) bool {
	return slices.Contains(a.Base().IDs, id)
}

// SharesIdentifier reports whether the action targets any of ids.
func SharesIdentifier(a Action, ids []string) bool {
	for _, id := range ids {
		if HasIdentifier(a, id) {
			return true
		}
	}
	return false
}

// FindIdentifier returns the first identifier of the action with the given scheme prefix, e.g. "license:".
func FindIdentifier(a Action, prefix string) (string, bool) {
	for _, id := range a.Base().IDs {
		if len(id) > len(prefix) && id[:len(prefix)] == prefix {
			return id, true
		}
	}
	return "", false
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

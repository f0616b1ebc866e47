package service

import (
	"slices"

	"github.com/noah-isme/action-ledger/internal/models"
)

// Actor is the authenticated admin calling into the ledger.
type Actor struct {
	Name        string
	Permissions []string
	IsMaster    bool
}

// HasPermission reports whether the actor holds perm. Masters hold every permission.
func (a Actor) HasPermission(perm string) bool {
	if a.IsMaster {
		return true
	}
	return slices.Contains(a.Permissions, perm) || slices.Contains(a.Permissions, "all_permissions")
}

// revokePermissions maps admin permissions to the action types they may revoke.
var revokePermissions = map[string]models.ActionType{
	"players.ban":    models.ActionTypeBan,
	"players.warn":   models.ActionTypeWarn,
	"players.mute":   models.ActionTypeMute,
	"players.target": models.ActionTypeTarget,
	"wager.head":     models.ActionTypeWagerBlacklist,
}

// AllowedTypes is the set of action types a revocation approver may act on.
type AllowedTypes struct {
	any   bool
	types []models.ActionType
}

// AnyType allows every action type.
func AnyType() AllowedTypes {
	return AllowedTypes{any: true}
}

// OnlyTypes allows exactly the given types.
func OnlyTypes(types ...models.ActionType) AllowedTypes {
	return AllowedTypes{types: slices.Clone(types)}
}

// Allows reports whether t is permitted.
func (a AllowedTypes) Allows(t models.ActionType) bool {
	return a.any || slices.Contains(a.types, t)
}

// RevocableTypes derives the action types the actor may approve revocations for.
func (a Actor) RevocableTypes() AllowedTypes {
	if a.IsMaster || slices.Contains(a.Permissions, "all_permissions") {
		return AnyType()
	}

	types := make([]models.ActionType, 0, len(revokePermissions))
	for _, perm := range a.Permissions {
		if t, ok := revokePermissions[perm]; ok && !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	return OnlyTypes(types...)
}

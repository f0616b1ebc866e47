package service

import (
	"slices"

	"github.com/noah-isme/action-ledger/internal/models"
)

// ActionPredicate narrows FindMany results.
type ActionPredicate func(models.Action) bool

// OfType keeps actions of any of the given types.
func OfType(types ...models.ActionType) ActionPredicate {
	return func(a models.Action) bool {
		return slices.Contains(types, a.Type())
	}
}

// NotRevoked keeps actions whose revocation has not been approved.
func NotRevoked() ActionPredicate {
	return func(a models.Action) bool {
		return !a.Base().Revocation.IsRevoked()
	}
}

// BlacklistBans keeps bans flagged as blacklist bans.
func BlacklistBans() ActionPredicate {
	return func(a models.Action) bool {
		ban, ok := a.(*models.Ban)
		return ok && ban.Blacklist
	}
}

// AllOf combines predicates with logical AND. No predicates matches everything.
func AllOf(predicates ...ActionPredicate) ActionPredicate {
	return func(a models.Action) bool {
		for _, p := range predicates {
			if p != nil && !p(a) {
				return false
			}
		}
		return true
	}
}

func countHWIDMatches(a models.Action, hwids []string) int {
	stored := models.HWIDs(a)
	if len(stored) == 0 {
		return 0
	}
	count := 0
	for _, hwid := range hwids {
		if slices.Contains(stored, hwid) {
			count++
		}
	}
	return count
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/action-ledger/internal/utils"
)

// RequirePermission ensures that the authenticated admin holds at least one of the
// listed permissions. Master admins always pass.
func RequirePermission(perms ...string) fiber.Handler {
	allowed := make([]string, 0, len(perms))
	for _, perm := range perms {
		normalized := strings.ToLower(strings.TrimSpace(perm))
		if normalized != "" {
			allowed = append(allowed, normalized)
		}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := CurrentActor(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		for _, perm := range allowed {
			if actor.HasPermission(perm) {
				return c.Next()
			}
		}
		return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required": allowed})
	}
}

package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/action-ledger/internal/service"
	"github.com/noah-isme/action-ledger/internal/utils"
)

// ActorHandler is a fiber handler that receives the authenticated admin.
type ActorHandler func(c *fiber.Ctx, actor service.Actor) error

// AuthOptions configures the WithActor helper.
type AuthOptions struct {
	// Permissions lists alternatives; holding any one of them is enough.
	Permissions []string
	MasterOnly  bool
}

// WithActor resolves the authenticated admin, applies opts and calls handler.
func WithActor(handler ActorHandler, opts AuthOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := CurrentActor(c)
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if opts.MasterOnly && !actor.IsMaster {
			return utils.Fail(c, fiber.StatusForbidden, "master admin required", nil)
		}

		if len(opts.Permissions) > 0 {
			granted := false
			for _, perm := range opts.Permissions {
				if actor.HasPermission(perm) {
					granted = true
					break
				}
			}
			if !granted {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required": opts.Permissions})
			}
		}

		return handler(c, actor)
	}
}

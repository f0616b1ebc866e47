package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/action-ledger/internal/service"
	"github.com/noah-isme/action-ledger/internal/utils"
)

const actorLocalsKey = "actor"

// JWTProtected returns a middleware that validates JWT bearer tokens and binds
// the admin described by the claims to the request.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		actor, ok := actorFromClaims(claims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token does not identify an admin")
		}
		c.Locals(actorLocalsKey, actor)

		return c.Next()
	}
}

// CurrentActor returns the admin bound to the request by JWTProtected.
func CurrentActor(c *fiber.Ctx) (service.Actor, bool) {
	actor, ok := c.Locals(actorLocalsKey).(service.Actor)
	if !ok || actor.Name == "" {
		return service.Actor{}, false
	}
	return actor, true
}

// SetActor binds actor to the request.
func SetActor(c *fiber.Ctx, actor service.Actor) {
	c.Locals(actorLocalsKey, actor)
}

func actorFromClaims(claims jwt.MapClaims) (service.Actor, bool) {
	name := ""
	for _, key := range []string{"name", "sub"} {
		if value, ok := claims[key].(string); ok && strings.TrimSpace(value) != "" {
			name = strings.TrimSpace(value)
			break
		}
	}
	if name == "" {
		return service.Actor{}, false
	}

	isMaster, _ := claims["is_master"].(bool)
	return service.Actor{
		Name:        name,
		Permissions: normalizePermissions(claims["permissions"]),
		IsMaster:    isMaster,
	}, true
}

func normalizePermissions(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return splitPermissions(v)
	case []interface{}:
		perms := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				if perm := strings.ToLower(strings.TrimSpace(str)); perm != "" {
					perms = append(perms, perm)
				}
			}
		}
		return perms
	default:
		return nil
	}
}

func splitPermissions(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
	perms := make([]string, 0, len(fields))
	for _, field := range fields {
		perms = append(perms, strings.ToLower(field))
	}
	return perms
}

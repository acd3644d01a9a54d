package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/auth"
	"github.com/clipforge/api/pkg/response"
)

// GatewayAuthMiddleware trusts the X-User-* headers set by a gateway that
// already ran GET /auth/verify for this request.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		setIdentity(c, &auth.Identity{
			Subject: userID,
			Email:   c.Get("X-User-Email"),
			Name:    c.Get("X-User-Name"),
		})
		return c.Next()
	}
}

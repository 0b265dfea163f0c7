package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"

	localUserID   = "user_id"
	localUserRole = "user_role"
)

// TrustedIdentity reads the caller identity the API gateway attaches after
// authenticating the request. The gateway strips these headers from external
// traffic, so their presence here is authoritative.
func TrustedIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(userIDHeader))
		if userID == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing caller identity")
		}
		role := strings.TrimSpace(c.Get(userRoleHeader))
		if role == "" {
			role = "user"
		}

		c.Locals(localUserID, userID)
		c.Locals(localUserRole, role)
		return c.Next()
	}
}

// RequireRole guards a route group behind a role the gateway asserted.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got, _ := c.Locals(localUserRole).(string)
		if !strings.EqualFold(got, role) {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

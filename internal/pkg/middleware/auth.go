package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PlanFox/internal/pkg/usercontext"
)

func deny(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// RequireAdmin lets signed in admins through. Anonymous requests get 401,
// other users 403.
func RequireAdmin(c *fiber.Ctx) error {
	switch uc := usercontext.Get(c); {
	case !uc.IsLoggedIn:
		return deny(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	case !uc.IsAdmin:
		return deny(c, fiber.StatusForbidden, "forbidden", "admin only")
	}
	return c.Next()
}

// RequireAPISessionAuth only accepts a browser session, API keys do not count
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if loggedIn, _ := c.Locals(usercontext.KeyFromProtected).(bool); !loggedIn {
		return deny(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}
	return c.Next()
}

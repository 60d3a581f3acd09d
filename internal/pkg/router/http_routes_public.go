package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/PlanFox/internal/pkg/constants"
	"github.com/ManuelReschke/PlanFox/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get(constants.PublicRoute, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name": "PlanFox",
			"api":  constants.APIv1Route,
			"docs": constants.DocsRoute,
		})
	})

	if h.deps.Auth == nil {
		return
	}

	// Auth
	app.Post(constants.LogoutRoute, middleware.RequireAPISessionAuth, h.deps.Auth.HandleAuthLogout)

	// Google sign-in
	if h.deps.GoogleSignIn {
		app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
		app.Get("/auth/:provider/callback", h.deps.Auth.HandleOAuthCallback)
	}
}

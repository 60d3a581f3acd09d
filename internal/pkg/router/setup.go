package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PlanFox/app/controllers"
	apiv1 "github.com/ManuelReschke/PlanFox/internal/api/v1"
	"github.com/ManuelReschke/PlanFox/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries the wired controllers into the routers
type Dependencies struct {
	API     apiv1.Controllers
	Auth    *controllers.AuthController
	APIKeys middleware.APIKeyStore
	// GoogleSignIn registers /auth/:provider when the goth provider is set up
	GoogleSignIn bool
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// HttpRouter installs the session based UserContext middleware the
	// API routes rely on, so it goes first.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

package router

import (
	"time"

	apiv1 "github.com/ManuelReschke/PlanFox/internal/api/v1"
	"github.com/ManuelReschke/PlanFox/internal/pkg/constants"
	"github.com/ManuelReschke/PlanFox/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

const (
	apiRequestsPerWindow = 120
	apiRateWindow        = time.Minute
)

// ApiRouter mounts the versioned JSON API behind a per-client rate limit
type ApiRouter struct {
	deps Dependencies
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        apiRequestsPerWindow,
		Expiration: apiRateWindow,
	}))
	api.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": "planfox", "versions": []string{"v1"}})
	})

	server := apiv1.NewAPIServer(h.deps.API)
	apiv1.RegisterHandlersWithOptions(api.Group("/v1"), server, apiv1.FiberServerOptions{
		Authenticate: middleware.RequireAPIAuth(h.deps.APIKeys),
		AdminOnly:    middleware.RequireAdmin,
	})
}

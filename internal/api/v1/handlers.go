package apiv1

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/ManuelReschke/PlanFox/app/controllers"
)

// Controllers bundles the controllers the API delegates to. Nil entries
// answer 503.
type Controllers struct {
	Calendar *controllers.CalendarController
	Planning *controllers.PlanningController
	Tasks    *controllers.TaskController
	Users    *controllers.UserController
	Admin    *controllers.AdminQueueController
}

// APIServer implements the ServerInterface
type APIServer struct {
	ctrls Controllers
}

// NewAPIServer creates a new API server instance
func NewAPIServer(ctrls Controllers) *APIServer {
	return &APIServer{ctrls: ctrls}
}

func unavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(Error{
		Error:   "not_configured",
		Message: "This part of the API is not available",
	})
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetOpenAPI serves the embedded document as JSON
func (s *APIServer) GetOpenAPI(c *fiber.Ctx) error {
	doc, err := GetSwagger()
	if err != nil {
		log.Errorf("[API] %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(Error{Error: "internal_server_error", Message: "API description unavailable"})
	}
	return c.JSON(doc)
}

// GetUserAccount returns account information for the authenticated user.
func (s *APIServer) GetUserAccount(c *fiber.Ctx) error {
	if s.ctrls.Users == nil {
		return unavailable(c)
	}
	return s.ctrls.Users.HandleGetUserAccount(c)
}

func (s *APIServer) PostUserApiKey(c *fiber.Ctx) error {
	if s.ctrls.Users == nil {
		return unavailable(c)
	}
	return s.ctrls.Users.HandleIssueAPIKey(c)
}

func (s *APIServer) DeleteUserApiKey(c *fiber.Ctx) error {
	if s.ctrls.Users == nil {
		return unavailable(c)
	}
	return s.ctrls.Users.HandleRevokeAPIKey(c)
}

// GetCalendarEvents returns the merged events of the day. The controller reads
// the query itself; the wrapper already rejected malformed values.
func (s *APIServer) GetCalendarEvents(c *fiber.Ctx, params GetCalendarEventsParams) error {
	if s.ctrls.Calendar == nil {
		return unavailable(c)
	}
	return s.ctrls.Calendar.HandleEvents(c)
}

func (s *APIServer) GetFocusBlocks(c *fiber.Ctx, params GetFocusBlocksParams) error {
	if s.ctrls.Calendar == nil {
		return unavailable(c)
	}
	return s.ctrls.Calendar.HandleFocusBlocks(c)
}

func (s *APIServer) ListCalendarAccounts(c *fiber.Ctx) error {
	if s.ctrls.Calendar == nil {
		return unavailable(c)
	}
	return s.ctrls.Calendar.HandleListAccounts(c)
}

func (s *APIServer) ConnectCalendarAccount(c *fiber.Ctx) error {
	if s.ctrls.Calendar == nil {
		return unavailable(c)
	}
	return s.ctrls.Calendar.HandleConnectAccount(c)
}

func (s *APIServer) SubscribeIcsFeed(c *fiber.Ctx) error {
	if s.ctrls.Calendar == nil {
		return unavailable(c)
	}
	return s.ctrls.Calendar.HandleSubscribeICS(c)
}

func (s *APIServer) UpdateCalendarAccount(c *fiber.Ctx, id uint64) error {
	if s.ctrls.Calendar == nil {
		return unavailable(c)
	}
	return s.ctrls.Calendar.HandleUpdateAccount(c)
}

func (s *APIServer) DeleteCalendarAccount(c *fiber.Ctx, id uint64) error {
	if s.ctrls.Calendar == nil {
		return unavailable(c)
	}
	return s.ctrls.Calendar.HandleDeleteAccount(c)
}

// CalendarCallback is public, the OAuth state carries the user
func (s *APIServer) CalendarCallback(c *fiber.Ctx, params CalendarCallbackParams) error {
	if s.ctrls.Calendar == nil {
		return unavailable(c)
	}
	return s.ctrls.Calendar.HandleCallback(c)
}

func (s *APIServer) GetDailyPlan(c *fiber.Ctx, params GetDailyPlanParams) error {
	if s.ctrls.Planning == nil {
		return unavailable(c)
	}
	return s.ctrls.Planning.HandleGetDailyPlan(c)
}

func (s *APIServer) ReplaceDailyPlan(c *fiber.Ctx) error {
	if s.ctrls.Planning == nil {
		return unavailable(c)
	}
	return s.ctrls.Planning.HandleReplaceDailyPlan(c)
}

func (s *APIServer) PushDailyPlan(c *fiber.Ctx, params PushDailyPlanParams) error {
	if s.ctrls.Planning == nil {
		return unavailable(c)
	}
	return s.ctrls.Planning.HandlePushPlan(c)
}

func (s *APIServer) AutoSchedule(c *fiber.Ctx) error {
	if s.ctrls.Planning == nil {
		return unavailable(c)
	}
	return s.ctrls.Planning.HandleAutoSchedule(c)
}

func (s *APIServer) ListTasks(c *fiber.Ctx, params ListTasksParams) error {
	if s.ctrls.Tasks == nil {
		return unavailable(c)
	}
	return s.ctrls.Tasks.HandleListTasks(c)
}

func (s *APIServer) CreateTask(c *fiber.Ctx) error {
	if s.ctrls.Tasks == nil {
		return unavailable(c)
	}
	return s.ctrls.Tasks.HandleCreateTask(c)
}

func (s *APIServer) ListTimeSlots(c *fiber.Ctx) error {
	if s.ctrls.Tasks == nil {
		return unavailable(c)
	}
	return s.ctrls.Tasks.HandleListTimeSlots(c)
}

func (s *APIServer) CreateTimeSlot(c *fiber.Ctx) error {
	if s.ctrls.Tasks == nil {
		return unavailable(c)
	}
	return s.ctrls.Tasks.HandleCreateTimeSlot(c)
}

func (s *APIServer) DeleteTimeSlot(c *fiber.Ctx, id uint64) error {
	if s.ctrls.Tasks == nil {
		return unavailable(c)
	}
	return s.ctrls.Tasks.HandleDeleteTimeSlot(c)
}

func (s *APIServer) GetAdminQueue(c *fiber.Ctx) error {
	if s.ctrls.Admin == nil {
		return unavailable(c)
	}
	return s.ctrls.Admin.HandleAdminQueueStats(c)
}

func (s *APIServer) PurgeAdminQueue(c *fiber.Ctx, params PurgeAdminQueueParams) error {
	if s.ctrls.Admin == nil {
		return unavailable(c)
	}
	return s.ctrls.Admin.HandleAdminQueuePurge(c)
}

func (s *APIServer) PostAdminRefreshSweep(c *fiber.Ctx) error {
	if s.ctrls.Admin == nil {
		return unavailable(c)
	}
	return s.ctrls.Admin.HandleAdminRefreshSweep(c)
}

package apiv1

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Pong defines model for Pong.
type Pong struct {
	Ping string `json:"ping"`
}

// Error defines model for Error.
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GetCalendarEventsParams defines parameters for GetCalendarEvents.
type GetCalendarEventsParams struct {
	Date           *string `form:"date,omitempty" json:"date,omitempty"`
	HideDuplicates *bool   `form:"hideDuplicates,omitempty" json:"hideDuplicates,omitempty"`
}

// GetFocusBlocksParams defines parameters for GetFocusBlocks.
type GetFocusBlocksParams struct {
	Date       *string `form:"date,omitempty" json:"date,omitempty"`
	MinMinutes *int    `form:"minMinutes,omitempty" json:"minMinutes,omitempty"`
}

// CalendarCallbackParams defines parameters for CalendarCallback.
type CalendarCallbackParams struct {
	Code  *string `form:"code,omitempty" json:"code,omitempty"`
	State *string `form:"state,omitempty" json:"state,omitempty"`
	Error *string `form:"error,omitempty" json:"error,omitempty"`
}

// GetDailyPlanParams defines parameters for GetDailyPlan.
type GetDailyPlanParams struct {
	Date *string `form:"date,omitempty" json:"date,omitempty"`
}

// PushDailyPlanParams defines parameters for PushDailyPlan.
type PushDailyPlanParams struct {
	Date *string `form:"date,omitempty" json:"date,omitempty"`
}

// ListTasksParams defines parameters for ListTasks.
type ListTasksParams struct {
	Completed *bool `form:"completed,omitempty" json:"completed,omitempty"`
}

// PurgeAdminQueueParams defines parameters for PurgeAdminQueue.
type PurgeAdminQueueParams struct {
	Scope string `form:"scope" json:"scope"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Liveness probe
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// Machine readable API description
	// (GET /openapi.json)
	GetOpenAPI(c *fiber.Ctx) error
	// Profile and settings of the authenticated user
	// (GET /user/account)
	GetUserAccount(c *fiber.Ctx) error
	// Issue or rotate the API key
	// (POST /user/api-key)
	PostUserApiKey(c *fiber.Ctx) error
	// Revoke the API key
	// (DELETE /user/api-key)
	DeleteUserApiKey(c *fiber.Ctx) error
	// Merged events of all enabled calendars
	// (GET /calendar/events)
	GetCalendarEvents(c *fiber.Ctx, params GetCalendarEventsParams) error
	// Free ranges of the working day
	// (GET /calendar/focus-blocks)
	GetFocusBlocks(c *fiber.Ctx, params GetFocusBlocksParams) error
	// Connected calendars
	// (GET /calendar/accounts)
	ListCalendarAccounts(c *fiber.Ctx) error
	// Start the Google consent flow
	// (POST /calendar/accounts)
	ConnectCalendarAccount(c *fiber.Ctx) error
	// Subscribe a read-only ICS feed
	// (POST /calendar/accounts/ics)
	SubscribeIcsFeed(c *fiber.Ctx) error
	// Rename, recolor or toggle a calendar
	// (PATCH /calendar/accounts/{id})
	UpdateCalendarAccount(c *fiber.Ctx, id uint64) error
	// Disconnect a calendar
	// (DELETE /calendar/accounts/{id})
	DeleteCalendarAccount(c *fiber.Ctx, id uint64) error
	// Google consent redirect target
	// (GET /calendar/callback)
	CalendarCallback(c *fiber.Ctx, params CalendarCallbackParams) error
	// Daily plan with overload figures
	// (GET /planning/daily)
	GetDailyPlan(c *fiber.Ctx, params GetDailyPlanParams) error
	// Replace the daily plan
	// (PUT /planning/daily)
	ReplaceDailyPlan(c *fiber.Ctx) error
	// Queue pushing the time-boxed entries to Google Calendar
	// (POST /planning/daily/push)
	PushDailyPlan(c *fiber.Ctx, params PushDailyPlanParams) error
	// Assign time slots to tasks
	// (POST /planning/auto-schedule)
	AutoSchedule(c *fiber.Ctx) error
	// Tasks of the user
	// (GET /tasks)
	ListTasks(c *fiber.Ctx, params ListTasksParams) error
	// Create a task
	// (POST /tasks)
	CreateTask(c *fiber.Ctx) error
	// Recurring time slots
	// (GET /time-slots)
	ListTimeSlots(c *fiber.Ctx) error
	// Create a time slot
	// (POST /time-slots)
	CreateTimeSlot(c *fiber.Ctx) error
	// Delete a time slot
	// (DELETE /time-slots/{id})
	DeleteTimeSlot(c *fiber.Ctx, id uint64) error
	// Queue sizes and job counters
	// (GET /admin/queue)
	GetAdminQueue(c *fiber.Ctx) error
	// Delete the Redis keys of a scope
	// (DELETE /admin/queue)
	PurgeAdminQueue(c *fiber.Ctx, params PurgeAdminQueueParams) error
	// Queue credential refreshes now
	// (POST /admin/queue/refresh-sweep)
	PostAdminRefreshSweep(c *fiber.Ctx) error
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

type MiddlewareFunc fiber.Handler

func invalidParam(c *fiber.Ctx, name string, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(Error{
		Error:   "bad_request",
		Message: fmt.Sprintf("Invalid format for parameter %s: %v", name, err),
	})
}

func optionalString(c *fiber.Ctx, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}

func optionalBool(c *fiber.Ctx, name string) (*bool, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func optionalInt(c *fiber.Ctx, name string) (*int, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func pathID(c *fiber.Ctx) (uint64, error) {
	return strconv.ParseUint(c.Params("id"), 10, 64)
}

// GetPing operation middleware
func (siw *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return siw.Handler.GetPing(c)
}

// GetOpenAPI operation middleware
func (siw *ServerInterfaceWrapper) GetOpenAPI(c *fiber.Ctx) error {
	return siw.Handler.GetOpenAPI(c)
}

// GetUserAccount operation middleware
func (siw *ServerInterfaceWrapper) GetUserAccount(c *fiber.Ctx) error {
	return siw.Handler.GetUserAccount(c)
}

// PostUserApiKey operation middleware
func (siw *ServerInterfaceWrapper) PostUserApiKey(c *fiber.Ctx) error {
	return siw.Handler.PostUserApiKey(c)
}

// DeleteUserApiKey operation middleware
func (siw *ServerInterfaceWrapper) DeleteUserApiKey(c *fiber.Ctx) error {
	return siw.Handler.DeleteUserApiKey(c)
}

// GetCalendarEvents operation middleware
func (siw *ServerInterfaceWrapper) GetCalendarEvents(c *fiber.Ctx) error {
	var err error
	var params GetCalendarEventsParams

	params.Date = optionalString(c, "date")
	if params.HideDuplicates, err = optionalBool(c, "hideDuplicates"); err != nil {
		return invalidParam(c, "hideDuplicates", err)
	}

	return siw.Handler.GetCalendarEvents(c, params)
}

// GetFocusBlocks operation middleware
func (siw *ServerInterfaceWrapper) GetFocusBlocks(c *fiber.Ctx) error {
	var err error
	var params GetFocusBlocksParams

	params.Date = optionalString(c, "date")
	if params.MinMinutes, err = optionalInt(c, "minMinutes"); err != nil {
		return invalidParam(c, "minMinutes", err)
	}

	return siw.Handler.GetFocusBlocks(c, params)
}

// ListCalendarAccounts operation middleware
func (siw *ServerInterfaceWrapper) ListCalendarAccounts(c *fiber.Ctx) error {
	return siw.Handler.ListCalendarAccounts(c)
}

// ConnectCalendarAccount operation middleware
func (siw *ServerInterfaceWrapper) ConnectCalendarAccount(c *fiber.Ctx) error {
	return siw.Handler.ConnectCalendarAccount(c)
}

// SubscribeIcsFeed operation middleware
func (siw *ServerInterfaceWrapper) SubscribeIcsFeed(c *fiber.Ctx) error {
	return siw.Handler.SubscribeIcsFeed(c)
}

// UpdateCalendarAccount operation middleware
func (siw *ServerInterfaceWrapper) UpdateCalendarAccount(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return invalidParam(c, "id", err)
	}
	return siw.Handler.UpdateCalendarAccount(c, id)
}

// DeleteCalendarAccount operation middleware
func (siw *ServerInterfaceWrapper) DeleteCalendarAccount(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return invalidParam(c, "id", err)
	}
	return siw.Handler.DeleteCalendarAccount(c, id)
}

// CalendarCallback operation middleware
func (siw *ServerInterfaceWrapper) CalendarCallback(c *fiber.Ctx) error {
	params := CalendarCallbackParams{
		Code:  optionalString(c, "code"),
		State: optionalString(c, "state"),
		Error: optionalString(c, "error"),
	}
	return siw.Handler.CalendarCallback(c, params)
}

// GetDailyPlan operation middleware
func (siw *ServerInterfaceWrapper) GetDailyPlan(c *fiber.Ctx) error {
	return siw.Handler.GetDailyPlan(c, GetDailyPlanParams{Date: optionalString(c, "date")})
}

// ReplaceDailyPlan operation middleware
func (siw *ServerInterfaceWrapper) ReplaceDailyPlan(c *fiber.Ctx) error {
	return siw.Handler.ReplaceDailyPlan(c)
}

// PushDailyPlan operation middleware
func (siw *ServerInterfaceWrapper) PushDailyPlan(c *fiber.Ctx) error {
	return siw.Handler.PushDailyPlan(c, PushDailyPlanParams{Date: optionalString(c, "date")})
}

// AutoSchedule operation middleware
func (siw *ServerInterfaceWrapper) AutoSchedule(c *fiber.Ctx) error {
	return siw.Handler.AutoSchedule(c)
}

// ListTasks operation middleware
func (siw *ServerInterfaceWrapper) ListTasks(c *fiber.Ctx) error {
	var err error
	var params ListTasksParams

	if params.Completed, err = optionalBool(c, "completed"); err != nil {
		return invalidParam(c, "completed", err)
	}

	return siw.Handler.ListTasks(c, params)
}

// CreateTask operation middleware
func (siw *ServerInterfaceWrapper) CreateTask(c *fiber.Ctx) error {
	return siw.Handler.CreateTask(c)
}

// ListTimeSlots operation middleware
func (siw *ServerInterfaceWrapper) ListTimeSlots(c *fiber.Ctx) error {
	return siw.Handler.ListTimeSlots(c)
}

// CreateTimeSlot operation middleware
func (siw *ServerInterfaceWrapper) CreateTimeSlot(c *fiber.Ctx) error {
	return siw.Handler.CreateTimeSlot(c)
}

// DeleteTimeSlot operation middleware
func (siw *ServerInterfaceWrapper) DeleteTimeSlot(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return invalidParam(c, "id", err)
	}
	return siw.Handler.DeleteTimeSlot(c, id)
}

// GetAdminQueue operation middleware
func (siw *ServerInterfaceWrapper) GetAdminQueue(c *fiber.Ctx) error {
	return siw.Handler.GetAdminQueue(c)
}

// PurgeAdminQueue operation middleware
func (siw *ServerInterfaceWrapper) PurgeAdminQueue(c *fiber.Ctx) error {
	scope := c.Query("scope")
	if scope == "" {
		return c.Status(fiber.StatusBadRequest).JSON(Error{
			Error:   "bad_request",
			Message: "Query argument scope is required, but not found",
		})
	}
	return siw.Handler.PurgeAdminQueue(c, PurgeAdminQueueParams{Scope: scope})
}

// PostAdminRefreshSweep operation middleware
func (siw *ServerInterfaceWrapper) PostAdminRefreshSweep(c *fiber.Ctx) error {
	return siw.Handler.PostAdminRefreshSweep(c)
}

// FiberServerOptions provides options for the Fiber server.
type FiberServerOptions struct {
	BaseURL     string
	Middlewares []MiddlewareFunc
	// Authenticate runs before every operation that needs a user
	Authenticate fiber.Handler
	// AdminOnly runs after Authenticate on the admin operations
	AdminOnly fiber.Handler
}

// RegisterHandlers creates http.Handler with routing matching OpenAPI spec.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	RegisterHandlersWithOptions(router, si, FiberServerOptions{})
}

// RegisterHandlersWithOptions creates http.Handler with additional options
func RegisterHandlersWithOptions(router fiber.Router, si ServerInterface, options FiberServerOptions) {
	wrapper := ServerInterfaceWrapper{
		Handler: si,
	}

	for _, m := range options.Middlewares {
		router.Use(fiber.Handler(m))
	}

	secured := func(h fiber.Handler) []fiber.Handler {
		if options.Authenticate == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{options.Authenticate, h}
	}
	admin := func(h fiber.Handler) []fiber.Handler {
		var chain []fiber.Handler
		if options.Authenticate != nil {
			chain = append(chain, options.Authenticate)
		}
		if options.AdminOnly != nil {
			chain = append(chain, options.AdminOnly)
		}
		return append(chain, h)
	}

	base := options.BaseURL

	router.Get(base+"/ping", wrapper.GetPing)
	router.Get(base+"/openapi.json", wrapper.GetOpenAPI)
	router.Get(base+"/calendar/callback", wrapper.CalendarCallback)

	router.Get(base+"/user/account", secured(wrapper.GetUserAccount)...)
	router.Post(base+"/user/api-key", secured(wrapper.PostUserApiKey)...)
	router.Delete(base+"/user/api-key", secured(wrapper.DeleteUserApiKey)...)

	router.Get(base+"/calendar/events", secured(wrapper.GetCalendarEvents)...)
	router.Get(base+"/calendar/focus-blocks", secured(wrapper.GetFocusBlocks)...)
	router.Get(base+"/calendar/accounts", secured(wrapper.ListCalendarAccounts)...)
	router.Post(base+"/calendar/accounts", secured(wrapper.ConnectCalendarAccount)...)
	router.Post(base+"/calendar/accounts/ics", secured(wrapper.SubscribeIcsFeed)...)
	router.Patch(base+"/calendar/accounts/:id", secured(wrapper.UpdateCalendarAccount)...)
	router.Delete(base+"/calendar/accounts/:id", secured(wrapper.DeleteCalendarAccount)...)

	router.Get(base+"/planning/daily", secured(wrapper.GetDailyPlan)...)
	router.Put(base+"/planning/daily", secured(wrapper.ReplaceDailyPlan)...)
	router.Post(base+"/planning/daily/push", secured(wrapper.PushDailyPlan)...)
	router.Post(base+"/planning/auto-schedule", secured(wrapper.AutoSchedule)...)

	router.Get(base+"/tasks", secured(wrapper.ListTasks)...)
	router.Post(base+"/tasks", secured(wrapper.CreateTask)...)
	router.Get(base+"/time-slots", secured(wrapper.ListTimeSlots)...)
	router.Post(base+"/time-slots", secured(wrapper.CreateTimeSlot)...)
	router.Delete(base+"/time-slots/:id", secured(wrapper.DeleteTimeSlot)...)

	router.Get(base+"/admin/queue", admin(wrapper.GetAdminQueue)...)
	router.Delete(base+"/admin/queue", admin(wrapper.PurgeAdminQueue)...)
	router.Post(base+"/admin/queue/refresh-sweep", admin(wrapper.PostAdminRefreshSweep)...)
}

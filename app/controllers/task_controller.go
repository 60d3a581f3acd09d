package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PlanFox/app/models"
)

// TaskStore is the part of the task repository the controller uses
type TaskStore interface {
	Create(task *models.Task) error
	ListByUser(userID uint, includeCompleted bool) ([]models.Task, error)
}

// SlotStore is the part of the time slot repository the controller uses
type SlotStore interface {
	Create(slot *models.TimeSlot) error
	ListByUser(userID uint) ([]models.TimeSlot, error)
	DeleteForUser(id, userID uint) error
}

// TaskController exposes the minimal task and time slot API the scheduler works on
type TaskController struct {
	tasks TaskStore
	slots SlotStore
}

func NewTaskController(tasks TaskStore, slots SlotStore) *TaskController {
	return &TaskController{tasks: tasks, slots: slots}
}

type createTaskRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	EstimatedMinutes *int   `json:"estimatedMinutes"`
	Quadrant         string `json:"quadrant"`
	Horizon          string `json:"horizon"`
}

type createSlotRequest struct {
	Label      string `json:"label"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	DaysOfWeek []int  `json:"daysOfWeek"`
	Color      string `json:"color"`
	Blocking   bool   `json:"blocking"`
}

// HandleListTasks lists open tasks, ?completed=true includes finished ones
func (tc *TaskController) HandleListTasks(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	includeCompleted, _ := strconv.ParseBool(c.Query("completed"))
	tasks, err := tc.tasks.ListByUser(userID, includeCompleted)
	if err != nil {
		return storeError(c, "Tasks", err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return c.JSON(tasks)
}

// HandleCreateTask creates a task
func (tc *TaskController) HandleCreateTask(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid payload")
	}

	task := &models.Task{
		UserID:           userID,
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
		Quadrant:         strings.ToUpper(req.Quadrant),
		Horizon:          strings.ToUpper(req.Horizon),
	}
	if task.Quadrant == "" {
		task.Quadrant = models.QuadrantSchedule
	}
	if task.Horizon == "" {
		task.Horizon = models.HorizonShortTerm
	}
	if err := validate.Struct(task); err != nil {
		return badRequest(c, validationMessage(err))
	}

	if err := tc.tasks.Create(task); err != nil {
		return storeError(c, "Task", err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// HandleListTimeSlots lists the user's recurring time slots
func (tc *TaskController) HandleListTimeSlots(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	slots, err := tc.slots.ListByUser(userID)
	if err != nil {
		return storeError(c, "Time slots", err)
	}
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	return c.JSON(slots)
}

// HandleCreateTimeSlot creates a recurring slot; days default to Monday-Friday
func (tc *TaskController) HandleCreateTimeSlot(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	var req createSlotRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid payload")
	}

	slot := &models.TimeSlot{
		UserID:     userID,
		Label:      strings.TrimSpace(req.Label),
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		DaysOfWeek: models.Weekdays(req.DaysOfWeek),
		Color:      req.Color,
		Blocking:   req.Blocking,
	}
	if len(slot.DaysOfWeek) == 0 {
		slot.DaysOfWeek = models.DefaultWeekdays()
	}
	if slot.Color == "" {
		slot.Color = models.DefaultTimeSlotColor
	}
	if err := validate.Struct(slot); err != nil {
		return badRequest(c, validationMessage(err))
	}
	if slot.EndTime <= slot.StartTime {
		return badRequest(c, "endTime must be after startTime")
	}

	if err := tc.slots.Create(slot); err != nil {
		return storeError(c, "Time slot", err)
	}
	return c.Status(fiber.StatusCreated).JSON(slot)
}

// HandleDeleteTimeSlot deletes one of the user's slots
func (tc *TaskController) HandleDeleteTimeSlot(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid time slot id")
	}
	if err := tc.slots.DeleteForUser(id, userID); err != nil {
		return storeError(c, "Time slot", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

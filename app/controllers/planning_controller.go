package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlanFox/internal/pkg/config"
	"github.com/ManuelReschke/PlanFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planner"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planning"
)

// JobEnqueuer hands work to the background queue
type JobEnqueuer interface {
	EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error)
}

// PlanningController serves the daily plan and the auto-scheduler
type PlanningController struct {
	service *planning.Service
	jobs    JobEnqueuer
}

func NewPlanningController(service *planning.Service, jobs JobEnqueuer) *PlanningController {
	return &PlanningController{service: service, jobs: jobs}
}

type replacePlanRequest struct {
	Date  string               `json:"date" validate:"required"`
	Tasks []planner.EntryInput `json:"tasks" validate:"dive"`
}

type autoScheduleRequest struct {
	Date    string `json:"date"`
	TaskIDs []uint `json:"taskIds"`
	Apply   bool   `json:"apply"`
}

// HandleGetDailyPlan returns the plan of ?date= with its overload figures
func (pc *PlanningController) HandleGetDailyPlan(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	view, err := pc.service.DailyPlan(userID, c.Query("date"))
	if err != nil {
		return planError(c, err)
	}
	return c.JSON(view)
}

// HandleReplaceDailyPlan replaces the whole plan of a date
func (pc *PlanningController) HandleReplaceDailyPlan(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	var req replacePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid payload")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	view, err := pc.service.ReplaceDailyPlan(userID, req.Date, req.Tasks)
	if err != nil {
		return planError(c, err)
	}
	return c.JSON(view)
}

// HandleAutoSchedule assigns time slots to the given tasks. With apply the
// slots are written into the day plan.
func (pc *PlanningController) HandleAutoSchedule(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	var req autoScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid payload")
	}

	schedule, err := pc.service.AutoSchedule(c.UserContext(), userID, req.Date, req.TaskIDs, req.Apply)
	if err != nil {
		switch {
		case errors.Is(err, planner.ErrInvalidPlanInput):
			return badRequest(c, err.Error())
		case errors.Is(err, planner.ErrAutoScheduleFailed):
			message := "Auto scheduling failed"
			if pc.service.SchedulerName() == config.SchedulerGemini {
				message = "AI scheduling failed"
			}
			return jsonError(c, fiber.StatusInternalServerError, "auto_schedule_failed", message)
		default:
			log.Errorf("[Planning] Auto schedule for user %d: %v", userID, err)
			return internalError(c, "Auto scheduling failed")
		}
	}
	return c.JSON(fiber.Map{"schedule": schedule})
}

// HandlePushPlan queues writing the time-boxed entries of ?date= to Google Calendar
func (pc *PlanningController) HandlePushPlan(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	if pc.jobs == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "not_configured", "Background jobs are not available")
	}
	date, _, err := pc.service.ResolveDate(userID, c.Query("date"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	job, err := pc.jobs.EnqueueJob(jobqueue.JobTypePlanPush, jobqueue.PlanPushJobPayload{UserID: userID, Date: date}.ToMap())
	if err != nil {
		log.Errorf("[Planning] Failed to enqueue plan push for user %d: %v", userID, err)
		return internalError(c, "Failed to queue plan push")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"jobId": job.ID})
}

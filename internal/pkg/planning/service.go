package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/calendar"
	"github.com/ManuelReschke/PlanFox/internal/pkg/config"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planner"
)

// EventLister aggregates a user's calendars (see calendar.Aggregator).
type EventLister interface {
	ListAllEvents(ctx context.Context, userID uint, date string, loc *time.Location) []calendar.CalendarEvent
}

type TaskStore interface {
	GetByIDsForUser(userID uint, ids []uint) ([]models.Task, error)
}

type PlanStore interface {
	GetPlan(userID uint, date string) (*models.DailyPlan, error)
	ReplacePlan(userID uint, date string, entries []models.PlanEntry) (*models.DailyPlan, error)
}

type SlotStore interface {
	ListByUser(userID uint) ([]models.TimeSlot, error)
}

type SettingsStore interface {
	GetSettings(userID uint) (*models.UserSettings, error)
}

// Dependencies wires the service to its stores
type Dependencies struct {
	Config    *config.Planner
	Events    EventLister
	Tasks     TaskStore
	Plans     PlanStore
	Slots     SlotStore
	Settings  SettingsStore
	Scheduler planner.Scheduler
}

// Service implements the calendar and planning operations of the API on top
// of the aggregator, the gap finder, the schedulers and the plan store
type Service struct {
	cfg       *config.Planner
	events    EventLister
	tasks     TaskStore
	plans     PlanStore
	slots     SlotStore
	settings  SettingsStore
	scheduler planner.Scheduler
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	scheduler := deps.Scheduler
	if scheduler == nil {
		scheduler = planner.NewGreedy()
	}
	return &Service{
		cfg:       cfg,
		events:    deps.Events,
		tasks:     deps.Tasks,
		plans:     deps.Plans,
		slots:     deps.Slots,
		settings:  deps.Settings,
		scheduler: scheduler,
	}
}

// PlanView is a daily plan together with its overload figures
type PlanView struct {
	Date     string            `json:"date"`
	Plan     *models.DailyPlan `json:"plan"`
	Overload planner.Overload  `json:"overload"`
}

// SchedulerName reports the active scheduler backend
func (s *Service) SchedulerName() string {
	return s.scheduler.Name()
}

// Location returns the user's timezone, falling back to the configured default
func (s *Service) Location(userID uint) *time.Location {
	return s.userSettings(userID).Location(s.cfg.Location())
}

// MaxDailyMinutes returns the user's daily minute budget (480 by default)
func (s *Service) MaxDailyMinutes(userID uint) int {
	return s.userSettings(userID).DailyMinuteLimit()
}

func (s *Service) userSettings(userID uint) *models.UserSettings {
	if s.settings == nil {
		return nil
	}
	settings, err := s.settings.GetSettings(userID)
	if err != nil {
		log.Warnf("[Planning] Failed to load settings for user %d: %v", userID, err)
		return nil
	}
	return settings
}

// ResolveDate validates date in the user's timezone; empty means today.
func (s *Service) ResolveDate(userID uint, date string) (string, *time.Location, error) {
	loc := s.Location(userID)
	if date == "" {
		return planner.Today(loc), loc, nil
	}
	if _, err := planner.ParseDate(date, loc); err != nil {
		return "", loc, err
	}
	return date, loc, nil
}

// Events returns the aggregated events of a date. Fetch problems never
// surface here; an invalid date does.
func (s *Service) Events(ctx context.Context, userID uint, date string, hideDuplicates bool) ([]calendar.CalendarEvent, error) {
	date, loc, err := s.ResolveDate(userID, date)
	if err != nil {
		return nil, err
	}
	events := s.events.ListAllEvents(ctx, userID, date, loc)
	if hideDuplicates {
		events = calendar.FilterDuplicates(events)
	}
	return events, nil
}

// FocusBlocks returns the free ranges of the working day of at least minMinutes.
func (s *Service) FocusBlocks(ctx context.Context, userID uint, date string, minMinutes int) ([]planner.FocusBlock, error) {
	date, loc, err := s.ResolveDate(userID, date)
	if err != nil {
		return nil, err
	}
	if minMinutes <= 0 {
		minMinutes = s.cfg.MinFocusMinutes
	}
	workStart, workEnd, err := s.workWindow(date, loc)
	if err != nil {
		return nil, err
	}
	busy, err := s.busy(ctx, userID, date, loc)
	if err != nil {
		return nil, err
	}
	return planner.FindGaps(busy, workStart, workEnd, minMinutes), nil
}

// AutoSchedule assigns time slots to taskIDs on date. With apply the result
// is written into the day plan; nothing is written when scheduling fails.
func (s *Service) AutoSchedule(ctx context.Context, userID uint, date string, taskIDs []uint, apply bool) ([]planner.Assignment, error) {
	if len(taskIDs) == 0 {
		return []planner.Assignment{}, nil
	}
	date, loc, err := s.ResolveDate(userID, date)
	if err != nil {
		return nil, err
	}

	tasks, err := s.orderedTasks(userID, taskIDs)
	if err != nil {
		return nil, err
	}
	workStart, workEnd, err := s.workWindow(date, loc)
	if err != nil {
		return nil, err
	}
	busy, err := s.busy(ctx, userID, date, loc)
	if err != nil {
		return nil, err
	}
	current, err := s.plans.GetPlan(userID, date)
	if err != nil {
		return nil, err
	}
	busy = append(busy, bookedIntervals(current, taskIDs)...)

	req := planner.Request{
		Date:           date,
		Location:       loc,
		WorkStart:      workStart,
		WorkEnd:        workEnd,
		Tasks:          tasks,
		Busy:           busy,
		DefaultMinutes: s.cfg.DefaultTaskMinutes,
	}
	schedule, err := s.scheduler.Schedule(ctx, req)
	if err != nil {
		log.Warnf("[Scheduler] %s scheduler failed for user %d on %s: %v", s.scheduler.Name(), userID, date, err)
		return nil, err
	}
	log.Infof("[Scheduler] Scheduled %d tasks for user %d on %s (%s)", len(schedule), userID, date, s.scheduler.Name())

	if apply {
		if err := s.applySchedule(userID, date, current, schedule); err != nil {
			return nil, err
		}
	}
	return schedule, nil
}

// orderedTasks loads the tasks in the order of ids and rejects unknown or repeated ids
func (s *Service) orderedTasks(userID uint, ids []uint) ([]models.Task, error) {
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			return nil, fmt.Errorf("%w: task id 0", planner.ErrInvalidPlanInput)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: task %d listed twice", planner.ErrInvalidPlanInput, id)
		}
		seen[id] = struct{}{}
	}

	found, err := s.tasks.GetByIDsForUser(userID, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}

	tasks := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: task %d not found", planner.ErrInvalidPlanInput, id)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// bookedIntervals returns the slots of plan entries that keep their time,
// i.e. time-boxed entries for tasks not being rescheduled
func bookedIntervals(plan *models.DailyPlan, rescheduled []uint) []planner.Interval {
	if plan == nil {
		return nil
	}
	skip := make(map[uint]struct{}, len(rescheduled))
	for _, id := range rescheduled {
		skip[id] = struct{}{}
	}
	var booked []planner.Interval
	for i := range plan.Entries {
		e := &plan.Entries[i]
		if !e.HasTimeSlot() {
			continue
		}
		if _, ok := skip[e.TaskID]; ok {
			continue
		}
		booked = append(booked, planner.Interval{Start: *e.TimeSlotStart, End: *e.TimeSlotEnd})
	}
	return booked
}

// applySchedule keeps the current plan order, updates the slots of scheduled
// tasks and appends scheduled tasks not in the plan yet
func (s *Service) applySchedule(userID uint, date string, current *models.DailyPlan, schedule []planner.Assignment) error {
	slots := make(map[uint]planner.Assignment, len(schedule))
	for _, a := range schedule {
		slots[a.TaskID] = a
	}

	var entries []models.PlanEntry
	if current != nil {
		for _, e := range current.Entries {
			entry := models.PlanEntry{TaskID: e.TaskID, TimeSlotStart: e.TimeSlotStart, TimeSlotEnd: e.TimeSlotEnd}
			if a, ok := slots[e.TaskID]; ok {
				start, end := a.Start.UTC(), a.End.UTC()
				entry.TimeSlotStart, entry.TimeSlotEnd = &start, &end
				delete(slots, e.TaskID)
			}
			entries = append(entries, entry)
		}
	}
	for _, a := range schedule {
		if _, pending := slots[a.TaskID]; !pending {
			continue
		}
		entries = append(entries, planner.EntriesFromAssignments([]planner.Assignment{a})...)
	}
	for i := range entries {
		entries[i].SortOrder = i
	}

	_, err := s.plans.ReplacePlan(userID, date, entries)
	return err
}

// DailyPlan returns the plan of a date (nil when none exists) with overload figures
func (s *Service) DailyPlan(userID uint, date string) (*PlanView, error) {
	date, _, err := s.ResolveDate(userID, date)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.GetPlan(userID, date)
	if err != nil {
		return nil, err
	}
	return &PlanView{Date: date, Plan: plan, Overload: planner.ComputeOverload(plan, s.userSettings(userID))}, nil
}

// ReplaceDailyPlan validates inputs and replaces the whole plan of a date
func (s *Service) ReplaceDailyPlan(userID uint, date string, inputs []planner.EntryInput) (*PlanView, error) {
	if date == "" {
		return nil, fmt.Errorf("%w: date is required", planner.ErrInvalidPlanInput)
	}
	date, loc, err := s.ResolveDate(userID, date)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.TaskID)
	}
	owned := map[uint]bool{}
	if len(ids) > 0 {
		found, err := s.tasks.GetByIDsForUser(userID, ids)
		if err != nil {
			return nil, err
		}
		for _, t := range found {
			owned[t.ID] = true
		}
	}

	entries, err := planner.BuildPlanEntries(date, loc, inputs, owned)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.ReplacePlan(userID, date, entries)
	if err != nil {
		return nil, err
	}
	return &PlanView{Date: date, Plan: plan, Overload: planner.ComputeOverload(plan, s.userSettings(userID))}, nil
}

func (s *Service) workWindow(date string, loc *time.Location) (time.Time, time.Time, error) {
	startOffset, endOffset := s.cfg.WorkHours()
	return planner.WorkWindow(date, loc, startOffset, endOffset)
}

// busy collects calendar events and blocking time slots of the date
func (s *Service) busy(ctx context.Context, userID uint, date string, loc *time.Location) ([]planner.Interval, error) {
	busy := calendar.BusyIntervals(s.events.ListAllEvents(ctx, userID, date, loc))
	if s.slots == nil {
		return busy, nil
	}
	slots, err := s.slots.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	day, err := planner.ParseDate(date, loc)
	if err != nil {
		return nil, err
	}
	return append(busy, planner.TimeSlotIntervals(slots, day)...), nil
}

// IsInputError reports whether err should be answered with 400
func IsInputError(err error) bool {
	return errors.Is(err, planner.ErrInvalidPlanInput)
}

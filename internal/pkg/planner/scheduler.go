package planner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ManuelReschke/PlanFox/app/models"
)

// Assignment places one task on the timeline.
type Assignment struct {
	TaskID uint      `json:"taskId"`
	Start  time.Time `json:"timeSlotStart"`
	End    time.Time `json:"timeSlotEnd"`
}

// Request is everything a scheduler may look at. Busy holds calendar events and
// blocking time slots; tasks keep the caller's order.
type Request struct {
	Date           string
	Location       *time.Location
	WorkStart      time.Time
	WorkEnd        time.Time
	Tasks          []models.Task
	Busy           []Interval
	DefaultMinutes int
}

func (r *Request) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func (r *Request) defaultMinutes() int {
	if r.DefaultMinutes <= 0 {
		return 30
	}
	return r.DefaultMinutes
}

// Validate checks the request shape before any scheduler runs.
func (r *Request) Validate() error {
	if _, err := ParseDate(r.Date, r.location()); err != nil {
		return err
	}
	if !r.WorkEnd.After(r.WorkStart) {
		return fmt.Errorf("%w: working window is empty", ErrInvalidPlanInput)
	}
	seen := make(map[uint]struct{}, len(r.Tasks))
	for _, t := range r.Tasks {
		if t.ID == 0 {
			return fmt.Errorf("%w: task without id", ErrInvalidPlanInput)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: task %d listed twice", ErrInvalidPlanInput, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// Scheduler turns a request into one assignment per task.
type Scheduler interface {
	Name() string
	Schedule(ctx context.Context, req Request) ([]Assignment, error)
}

// Greedy is the deterministic scheduler. Tasks are placed by quadrant rank
// (ties keep input order) into the first free gap long enough for them; a task
// that fits nowhere inside working hours is appended after the latest placed task.
type Greedy struct{}

func NewGreedy() *Greedy {
	return &Greedy{}
}

func (g *Greedy) Name() string {
	return "greedy"
}

func (g *Greedy) Schedule(ctx context.Context, req Request) ([]Assignment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(req.Tasks) == 0 {
		return []Assignment{}, nil
	}
	_, dayEnd, err := DayBounds(req.Date, req.location())
	if err != nil {
		return nil, err
	}

	order := make([]int, len(req.Tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return models.QuadrantRank(req.Tasks[order[a]].Quadrant) < models.QuadrantRank(req.Tasks[order[b]].Quadrant)
	})

	busy := append([]Interval(nil), req.Busy...)
	placed := make([]Assignment, len(req.Tasks))
	var lastEnd time.Time

	for _, idx := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		task := req.Tasks[idx]
		minutes := task.Minutes(req.defaultMinutes())
		d := time.Duration(minutes) * time.Minute

		var start time.Time
		if gaps := FindGaps(busy, req.WorkStart, req.WorkEnd, minutes); len(gaps) > 0 {
			start = gaps[0].Start
		} else {
			cursor := req.WorkStart
			if !lastEnd.IsZero() {
				cursor = lastEnd
			}
			start = earliestFree(busy, cursor, d)
		}
		end := start.Add(d)
		// the end has to stay on the date, so midnight itself is out
		if !end.Before(dayEnd) {
			return nil, fmt.Errorf("%w: task %d does not fit on %s", ErrAutoScheduleFailed, task.ID, req.Date)
		}

		placed[idx] = Assignment{TaskID: task.ID, Start: start, End: end}
		busy = append(busy, Interval{Start: start, End: end})
		if end.After(lastEnd) {
			lastEnd = end
		}
	}

	return placed, nil
}

// earliestFree returns the first instant at or after cursor where d fits without
// touching a busy interval.
func earliestFree(busy []Interval, cursor time.Time, d time.Duration) time.Time {
	for _, iv := range sortedValid(busy) {
		if !iv.End.After(cursor) {
			continue
		}
		if !iv.Start.Before(cursor.Add(d)) {
			break
		}
		cursor = iv.End
	}
	return cursor
}

// ValidateAssignments checks that out covers every requested task exactly once,
// starts and ends on the requested date (before midnight) and overlaps neither
// busy time nor itself.
// The result is reordered to match req.Tasks.
func ValidateAssignments(req Request, out []Assignment) ([]Assignment, error) {
	dayStart, dayEnd, err := DayBounds(req.Date, req.location())
	if err != nil {
		return nil, err
	}

	byTask := make(map[uint]Assignment, len(out))
	for _, a := range out {
		if _, dup := byTask[a.TaskID]; dup {
			return nil, fmt.Errorf("%w: task %d assigned twice", ErrAutoScheduleFailed, a.TaskID)
		}
		if !a.End.After(a.Start) {
			return nil, fmt.Errorf("%w: task %d has an empty slot", ErrAutoScheduleFailed, a.TaskID)
		}
		if a.Start.Before(dayStart) || !a.End.Before(dayEnd) {
			return nil, fmt.Errorf("%w: task %d is outside %s", ErrAutoScheduleFailed, a.TaskID, req.Date)
		}
		byTask[a.TaskID] = a
	}

	ordered := make([]Assignment, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		a, ok := byTask[t.ID]
		if !ok {
			return nil, fmt.Errorf("%w: task %d was not scheduled", ErrAutoScheduleFailed, t.ID)
		}
		ordered = append(ordered, a)
	}
	if len(byTask) != len(req.Tasks) {
		return nil, fmt.Errorf("%w: unknown task in result", ErrAutoScheduleFailed)
	}

	busy := sortedValid(req.Busy)
	for i, a := range ordered {
		slot := Interval{Start: a.Start, End: a.End}
		for _, iv := range busy {
			if slot.overlaps(iv) {
				return nil, fmt.Errorf("%w: task %d overlaps busy time", ErrAutoScheduleFailed, a.TaskID)
			}
		}
		for _, other := range ordered[i+1:] {
			if slot.overlaps(Interval{Start: other.Start, End: other.End}) {
				return nil, fmt.Errorf("%w: tasks %d and %d overlap", ErrAutoScheduleFailed, a.TaskID, other.TaskID)
			}
		}
	}

	return ordered, nil
}

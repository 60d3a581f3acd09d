package planner

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/PlanFox/app/models"
)

// EntryInput is one task of a daily plan as submitted by a client. Slot bounds
// are ISO 8601 strings; zone-less values are read in the user's timezone.
type EntryInput struct {
	TaskID        uint    `json:"taskId" validate:"required"`
	TimeSlotStart *string `json:"timeSlotStart"`
	TimeSlotEnd   *string `json:"timeSlotEnd"`
}

// BuildPlanEntries validates inputs and converts them to plan entries with
// SortOrder equal to their position. owned lists the task ids the user may plan.
func BuildPlanEntries(date string, loc *time.Location, inputs []EntryInput, owned map[uint]bool) ([]models.PlanEntry, error) {
	dayStart, dayEnd, err := DayBounds(date, loc)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(inputs))
	entries := make([]models.PlanEntry, 0, len(inputs))
	for i, in := range inputs {
		if in.TaskID == 0 {
			return nil, fmt.Errorf("%w: entry %d has no taskId", ErrInvalidPlanInput, i)
		}
		if _, dup := seen[in.TaskID]; dup {
			return nil, fmt.Errorf("%w: task %d listed twice", ErrInvalidPlanInput, in.TaskID)
		}
		seen[in.TaskID] = struct{}{}
		if owned != nil && !owned[in.TaskID] {
			return nil, fmt.Errorf("%w: task %d not found", ErrInvalidPlanInput, in.TaskID)
		}

		entry := models.PlanEntry{TaskID: in.TaskID, SortOrder: i}

		hasStart := in.TimeSlotStart != nil && *in.TimeSlotStart != ""
		hasEnd := in.TimeSlotEnd != nil && *in.TimeSlotEnd != ""
		if hasStart != hasEnd {
			return nil, fmt.Errorf("%w: task %d needs both slot bounds or none", ErrInvalidPlanInput, in.TaskID)
		}
		if hasStart {
			start, err := ParseTimestamp(*in.TimeSlotStart, loc)
			if err != nil {
				return nil, err
			}
			end, err := ParseTimestamp(*in.TimeSlotEnd, loc)
			if err != nil {
				return nil, err
			}
			if !end.After(start) {
				return nil, fmt.Errorf("%w: task %d slot ends before it starts", ErrInvalidPlanInput, in.TaskID)
			}
			if start.Before(dayStart) || !start.Before(dayEnd) {
				return nil, fmt.Errorf("%w: task %d slot is not on %s", ErrInvalidPlanInput, in.TaskID, date)
			}
			start, end = start.UTC(), end.UTC()
			entry.TimeSlotStart = &start
			entry.TimeSlotEnd = &end
		}

		entries = append(entries, entry)
	}
	return entries, nil
}

// EntriesFromAssignments turns scheduler output into plan entries in output order.
func EntriesFromAssignments(out []Assignment) []models.PlanEntry {
	entries := make([]models.PlanEntry, 0, len(out))
	for i, a := range out {
		start, end := a.Start.UTC(), a.End.UTC()
		entries = append(entries, models.PlanEntry{
			TaskID:        a.TaskID,
			TimeSlotStart: &start,
			TimeSlotEnd:   &end,
			SortOrder:     i,
		})
	}
	return entries
}

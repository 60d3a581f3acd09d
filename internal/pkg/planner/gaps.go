package planner

import (
	"sort"
	"time"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/config"
)

// Interval is a half-open busy range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether both ends are concrete and the range is non-empty.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

func (i Interval) overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// FocusBlock is a free range inside the working window.
type FocusBlock struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Minutes int       `json:"minutes"`
}

// FindGaps returns the free ranges of [workStart, workEnd) not covered by busy
// that last at least minMinutes. Blocks come back ordered by start and never overlap.
func FindGaps(busy []Interval, workStart, workEnd time.Time, minMinutes int) []FocusBlock {
	blocks := []FocusBlock{}
	if !workEnd.After(workStart) {
		return blocks
	}
	minDur := time.Duration(minMinutes) * time.Minute

	emit := func(start, end time.Time) {
		d := end.Sub(start)
		if d <= 0 || d < minDur {
			return
		}
		blocks = append(blocks, FocusBlock{Start: start, End: end, Minutes: int(d / time.Minute)})
	}

	cursor := workStart
	for _, iv := range sortedValid(busy) {
		if !cursor.Before(workEnd) {
			break
		}
		if iv.Start.After(cursor) {
			end := iv.Start
			if end.After(workEnd) {
				end = workEnd
			}
			emit(cursor, end)
		}
		if iv.End.After(cursor) {
			cursor = iv.End
		}
	}
	if cursor.Before(workEnd) {
		emit(cursor, workEnd)
	}

	return blocks
}

func sortedValid(busy []Interval) []Interval {
	out := make([]Interval, 0, len(busy))
	for _, iv := range busy {
		if iv.Valid() {
			out = append(out, iv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// TimeSlotIntervals converts the blocking time slots active on day into busy intervals.
func TimeSlotIntervals(slots []models.TimeSlot, day time.Time) []Interval {
	out := make([]Interval, 0, len(slots))
	for _, slot := range slots {
		if !slot.Blocking || !slot.DaysOfWeek.Contains(day.Weekday()) {
			continue
		}
		start, err := config.ParseClock(slot.StartTime)
		if err != nil {
			continue
		}
		end, err := config.ParseClock(slot.EndTime)
		if err != nil || end <= start {
			continue
		}
		out = append(out, Interval{Start: atOffset(day, start), End: atOffset(day, end)})
	}
	return out
}

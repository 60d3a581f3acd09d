package models

import "time"

// DailyPlan is the set of tasks a user intends to work on for one date
type DailyPlan struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	UserID    uint        `gorm:"uniqueIndex:plan_user_date" json:"user_id"`
	Date      string      `gorm:"uniqueIndex:plan_user_date;type:char(10)" json:"date"`
	Entries   []PlanEntry `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE" json:"tasks"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// PlanEntry is one task's membership in a day plan. Both slot bounds are nil
// while the task is not time-boxed yet.
type PlanEntry struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	PlanID        uint       `gorm:"uniqueIndex:plan_task" json:"plan_id"`
	TaskID        uint       `gorm:"uniqueIndex:plan_task" json:"task_id"`
	Task          *Task      `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	TimeSlotStart *time.Time `gorm:"type:timestamp;default:null" json:"time_slot_start"`
	TimeSlotEnd   *time.Time `gorm:"type:timestamp;default:null" json:"time_slot_end"`
	SortOrder     int        `gorm:"default:0" json:"sort_order"`
}

// HasTimeSlot reports whether the entry is time-boxed
func (e *PlanEntry) HasTimeSlot() bool {
	return e.TimeSlotStart != nil && e.TimeSlotEnd != nil
}

// TotalEstimatedMinutes sums the task estimates of all loaded entries; tasks without an estimate count as 0
func (p *DailyPlan) TotalEstimatedMinutes() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, e := range p.Entries {
		if e.Task != nil && e.Task.EstimatedMinutes != nil && *e.Task.EstimatedMinutes > 0 {
			total += *e.Task.EstimatedMinutes
		}
	}
	return total
}

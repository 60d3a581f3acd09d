package planner

import "github.com/ManuelReschke/PlanFox/app/models"

// Overload summarizes how full a day plan is against the user's limits.
type Overload struct {
	TaskCount        int  `json:"taskCount"`
	MaxDaily         int  `json:"maxDaily"`
	TotalMinutes     int  `json:"totalMinutes"`
	MaxDailyMinutes  int  `json:"maxDailyMinutes"`
	IsOverloaded     bool `json:"isOverloaded"`
	IsTimeOverloaded bool `json:"isTimeOverloaded"`
}

// ComputeOverload flags a plan that exceeds (strictly) either limit.
func ComputeOverload(plan *models.DailyPlan, settings *models.UserSettings) Overload {
	o := Overload{
		MaxDaily:        settings.DailyTaskLimit(),
		MaxDailyMinutes: settings.DailyMinuteLimit(),
	}
	if plan != nil {
		o.TaskCount = len(plan.Entries)
		o.TotalMinutes = plan.TotalEstimatedMinutes()
	}
	o.IsOverloaded = o.TaskCount > o.MaxDaily
	o.IsTimeOverloaded = o.TotalMinutes > o.MaxDailyMinutes
	return o
}

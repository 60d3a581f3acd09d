package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestTaskMinutes(t *testing.T) {
	tests := []struct {
		name string
		est  *int
		want int
	}{
		{"nil estimate", nil, 30},
		{"zero estimate", intPtr(0), 30},
		{"negative estimate", intPtr(-10), 30},
		{"explicit estimate", intPtr(45), 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{EstimatedMinutes: tt.est}
			assert.Equal(t, tt.want, task.Minutes(30))
		})
	}
}

func TestQuadrantRank(t *testing.T) {
	assert.Less(t, QuadrantRank(QuadrantDoFirst), QuadrantRank(QuadrantSchedule))
	assert.Less(t, QuadrantRank(QuadrantSchedule), QuadrantRank(QuadrantDelegate))
	assert.Less(t, QuadrantRank(QuadrantDelegate), QuadrantRank(QuadrantEliminate))
	assert.Less(t, QuadrantRank(QuadrantEliminate), QuadrantRank("SOMEDAY"))
}

func TestCalendarAccountTokenExpired(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	soon := now.Add(10 * time.Second)
	later := now.Add(time.Hour)

	assert.True(t, (&CalendarAccount{}).TokenExpired(now, 30*time.Second), "missing token")
	assert.False(t, (&CalendarAccount{AccessToken: "a"}).TokenExpired(now, 30*time.Second), "no expiry known")
	assert.True(t, (&CalendarAccount{AccessToken: "a", ExpiresAt: &soon}).TokenExpired(now, 30*time.Second))
	assert.False(t, (&CalendarAccount{AccessToken: "a", ExpiresAt: &later}).TokenExpired(now, 30*time.Second))
}

func TestCalendarAccountNeedsCredentials(t *testing.T) {
	assert.True(t, (&CalendarAccount{Provider: CalendarProviderGoogle}).NeedsCredentials())
	assert.True(t, (&CalendarAccount{}).NeedsCredentials())
	assert.False(t, (&CalendarAccount{Provider: CalendarProviderICS}).NeedsCredentials())
}

func TestWeekdaysValueAndScan(t *testing.T) {
	v, err := DefaultWeekdays().Value()
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3,4,5]", v)

	var w Weekdays
	require.NoError(t, w.Scan([]byte("[0,6]")))
	assert.True(t, w.Contains(time.Sunday))
	assert.True(t, w.Contains(time.Saturday))
	assert.False(t, w.Contains(time.Monday))

	require.NoError(t, w.Scan(nil))
	assert.Nil(t, w)
	assert.Error(t, w.Scan(42))
}

func TestDailyPlanTotalEstimatedMinutes(t *testing.T) {
	var nilPlan *DailyPlan
	assert.Equal(t, 0, nilPlan.TotalEstimatedMinutes())

	plan := &DailyPlan{Entries: []PlanEntry{
		{Task: &Task{EstimatedMinutes: intPtr(30)}},
		{Task: &Task{EstimatedMinutes: nil}},
		{Task: &Task{EstimatedMinutes: intPtr(90)}},
		{},
	}}
	assert.Equal(t, 120, plan.TotalEstimatedMinutes())
}

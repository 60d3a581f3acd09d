package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlanFox/app/models"
)

func str(s string) *string {
	return &s
}

func TestBuildPlanEntries(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	inputs := []EntryInput{
		{TaskID: 4, TimeSlotStart: str("2025-03-10T09:00:00"), TimeSlotEnd: str("2025-03-10T09:30:00")},
		{TaskID: 2},
	}

	entries, err := BuildPlanEntries("2025-03-10", berlin, inputs, map[uint]bool{2: true, 4: true})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, 0, entries[0].SortOrder)
	assert.Equal(t, 1, entries[1].SortOrder)
	require.True(t, entries[0].HasTimeSlot())
	assert.Equal(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), *entries[0].TimeSlotStart)
	assert.False(t, entries[1].HasTimeSlot())
}

func TestBuildPlanEntriesRejectsInvalidInput(t *testing.T) {
	owned := map[uint]bool{1: true, 2: true}
	cases := map[string][]EntryInput{
		"duplicate":     {{TaskID: 1}, {TaskID: 1}},
		"foreign task":  {{TaskID: 3}},
		"zero id":       {{TaskID: 0}},
		"half slot":     {{TaskID: 1, TimeSlotStart: str("2025-03-10T09:00:00")}},
		"inverted slot": {{TaskID: 1, TimeSlotStart: str("2025-03-10T10:00:00"), TimeSlotEnd: str("2025-03-10T09:00:00")}},
		"bad timestamp": {{TaskID: 2, TimeSlotStart: str("nine"), TimeSlotEnd: str("ten")}},
		"other date":    {{TaskID: 2, TimeSlotStart: str("2025-03-11T09:00:00Z"), TimeSlotEnd: str("2025-03-11T10:00:00Z")}},
	}
	for name, inputs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildPlanEntries("2025-03-10", time.UTC, inputs, owned)
			assert.ErrorIs(t, err, ErrInvalidPlanInput)
		})
	}

	_, err := BuildPlanEntries("2025-13-40", time.UTC, nil, owned)
	assert.ErrorIs(t, err, ErrInvalidPlanInput)
}

func TestComputeOverload(t *testing.T) {
	plan := &models.DailyPlan{Entries: []models.PlanEntry{
		{Task: &models.Task{EstimatedMinutes: minutes(300)}},
		{Task: &models.Task{EstimatedMinutes: minutes(180)}},
		{Task: &models.Task{}},
	}}

	o := ComputeOverload(plan, &models.UserSettings{MaxDailyTasks: 3, MaxDailyMinutes: 480})
	assert.Equal(t, 3, o.TaskCount)
	assert.Equal(t, 480, o.TotalMinutes)
	assert.False(t, o.IsOverloaded)
	assert.False(t, o.IsTimeOverloaded)

	o = ComputeOverload(plan, &models.UserSettings{MaxDailyTasks: 2, MaxDailyMinutes: 479})
	assert.True(t, o.IsOverloaded)
	assert.True(t, o.IsTimeOverloaded)

	o = ComputeOverload(nil, nil)
	assert.Equal(t, Overload{MaxDaily: models.DefaultMaxDailyTasks, MaxDailyMinutes: models.DefaultMaxDailyMinutes}, o)
}

func TestEntriesFromAssignments(t *testing.T) {
	entries := EntriesFromAssignments([]Assignment{
		{TaskID: 3, Start: at(8, 0), End: at(8, 30)},
		{TaskID: 1, Start: at(9, 0), End: at(10, 0)},
	})

	require.Len(t, entries, 2)
	assert.Equal(t, uint(3), entries[0].TaskID)
	assert.Equal(t, 1, entries[1].SortOrder)
	assert.Equal(t, at(9, 0), *entries[1].TimeSlotStart)
}

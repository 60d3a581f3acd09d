package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlanFox/app/models"
)

func minutes(n int) *int {
	return &n
}

func baseRequest(tasks []models.Task, busy []Interval) Request {
	return Request{
		Date:           "2025-03-10",
		Location:       time.UTC,
		WorkStart:      at(8, 0),
		WorkEnd:        at(18, 0),
		Tasks:          tasks,
		Busy:           busy,
		DefaultMinutes: 30,
	}
}

func TestGreedyPlacesByPriority(t *testing.T) {
	tasks := []models.Task{
		{ID: 2, Title: "Plan sprint", Quadrant: models.QuadrantSchedule, EstimatedMinutes: minutes(60)},
		{ID: 1, Title: "Fix outage", Quadrant: models.QuadrantDoFirst, EstimatedMinutes: minutes(30)},
	}

	out, err := NewGreedy().Schedule(context.Background(), baseRequest(tasks, nil))
	require.NoError(t, err)
	require.Len(t, out, 2)

	// output keeps the input order
	assert.Equal(t, Assignment{TaskID: 2, Start: at(8, 30), End: at(9, 30)}, out[0])
	assert.Equal(t, Assignment{TaskID: 1, Start: at(8, 0), End: at(8, 30)}, out[1])
}

func TestGreedySkipsBusyTime(t *testing.T) {
	tasks := []models.Task{
		{ID: 1, Quadrant: models.QuadrantDoFirst, EstimatedMinutes: minutes(90)},
		{ID: 2, Quadrant: models.QuadrantDelegate},
	}
	busy := []Interval{{Start: at(8, 0), End: at(9, 0)}, {Start: at(9, 30), End: at(10, 0)}}

	out, err := NewGreedy().Schedule(context.Background(), baseRequest(tasks, busy))
	require.NoError(t, err)

	assert.Equal(t, at(10, 0), out[0].Start)
	assert.Equal(t, at(11, 30), out[0].End)
	// default duration fits into the 09:00-09:30 gap
	assert.Equal(t, at(9, 0), out[1].Start)
	assert.Equal(t, at(9, 30), out[1].End)
}

func TestGreedyOverflowAppendsAfterLastTask(t *testing.T) {
	tasks := []models.Task{
		{ID: 1, Quadrant: models.QuadrantDoFirst, EstimatedMinutes: minutes(60)},
		{ID: 2, Quadrant: models.QuadrantSchedule, EstimatedMinutes: minutes(60)},
	}
	busy := []Interval{{Start: at(8, 0), End: at(17, 0)}}

	out, err := NewGreedy().Schedule(context.Background(), baseRequest(tasks, busy))
	require.NoError(t, err)

	assert.Equal(t, Assignment{TaskID: 1, Start: at(17, 0), End: at(18, 0)}, out[0])
	assert.Equal(t, Assignment{TaskID: 2, Start: at(18, 0), End: at(19, 0)}, out[1])
}

func TestGreedyFailsPastMidnight(t *testing.T) {
	tasks := []models.Task{{ID: 1, Quadrant: models.QuadrantDoFirst, EstimatedMinutes: minutes(600)}}
	busy := []Interval{{Start: at(8, 0), End: at(18, 0)}}

	_, err := NewGreedy().Schedule(context.Background(), baseRequest(tasks, busy))
	assert.ErrorIs(t, err, ErrAutoScheduleFailed)
}

func TestGreedyRejectsEndAtMidnight(t *testing.T) {
	tasks := []models.Task{{ID: 1, Quadrant: models.QuadrantDoFirst, EstimatedMinutes: minutes(360)}}
	busy := []Interval{{Start: at(8, 0), End: at(18, 0)}}

	_, err := NewGreedy().Schedule(context.Background(), baseRequest(tasks, busy))
	assert.ErrorIs(t, err, ErrAutoScheduleFailed)

	tasks[0].EstimatedMinutes = minutes(359)
	out, err := NewGreedy().Schedule(context.Background(), baseRequest(tasks, busy))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", out[0].End.Format("2006-01-02"))
}

func TestGreedyEmptyAndInvalidInput(t *testing.T) {
	out, err := NewGreedy().Schedule(context.Background(), baseRequest(nil, nil))
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	dup := []models.Task{{ID: 1}, {ID: 1}}
	_, err = NewGreedy().Schedule(context.Background(), baseRequest(dup, nil))
	assert.ErrorIs(t, err, ErrInvalidPlanInput)

	req := baseRequest([]models.Task{{ID: 1}}, nil)
	req.Date = "tomorrow"
	_, err = NewGreedy().Schedule(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidPlanInput)
}

func TestGreedyIsDeterministic(t *testing.T) {
	tasks := []models.Task{
		{ID: 5, Quadrant: models.QuadrantEliminate},
		{ID: 3, Quadrant: models.QuadrantSchedule, EstimatedMinutes: minutes(45)},
		{ID: 4, Quadrant: models.QuadrantSchedule, EstimatedMinutes: minutes(15)},
		{ID: 9, Quadrant: "UNKNOWN"},
	}
	busy := []Interval{{Start: at(8, 30), End: at(9, 0)}}

	first, err := NewGreedy().Schedule(context.Background(), baseRequest(tasks, busy))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := NewGreedy().Schedule(context.Background(), baseRequest(tasks, busy))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	_, err = ValidateAssignments(baseRequest(tasks, busy), first)
	assert.NoError(t, err)
}

func TestValidateAssignmentsRejectsBadOutput(t *testing.T) {
	tasks := []models.Task{{ID: 1}, {ID: 2}}
	busy := []Interval{{Start: at(12, 0), End: at(13, 0)}}
	req := baseRequest(tasks, busy)

	cases := map[string][]Assignment{
		"missing task": {{TaskID: 1, Start: at(8, 0), End: at(8, 30)}},
		"overlap busy": {
			{TaskID: 1, Start: at(12, 30), End: at(13, 0)},
			{TaskID: 2, Start: at(8, 0), End: at(8, 30)},
		},
		"overlap each other": {
			{TaskID: 1, Start: at(8, 0), End: at(9, 0)},
			{TaskID: 2, Start: at(8, 30), End: at(9, 30)},
		},
		"other day": {
			{TaskID: 1, Start: at(8, 0).AddDate(0, 0, 1), End: at(9, 0).AddDate(0, 0, 1)},
			{TaskID: 2, Start: at(8, 0), End: at(8, 30)},
		},
		"ends at midnight": {
			{TaskID: 1, Start: at(23, 0), End: at(0, 0).AddDate(0, 0, 1)},
			{TaskID: 2, Start: at(8, 0), End: at(8, 30)},
		},
		"unknown task": {
			{TaskID: 1, Start: at(8, 0), End: at(8, 30)},
			{TaskID: 2, Start: at(9, 0), End: at(9, 30)},
			{TaskID: 7, Start: at(10, 0), End: at(10, 30)},
		},
	}
	for name, out := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateAssignments(req, out)
			assert.ErrorIs(t, err, ErrAutoScheduleFailed)
		})
	}

	ordered, err := ValidateAssignments(req, []Assignment{
		{TaskID: 2, Start: at(9, 0), End: at(9, 30)},
		{TaskID: 1, Start: at(8, 0), End: at(8, 30)},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(1), ordered[0].TaskID)
	assert.Equal(t, uint(2), ordered[1].TaskID)
}

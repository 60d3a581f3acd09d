package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlanFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planner"
)

func newPlanningApp(f *planningFixture, scheduler planner.Scheduler, jobs JobEnqueuer) *fiber.App {
	ctrl := NewPlanningController(f.service(scheduler), jobs)
	app := newTestApp(7)
	app.Get("/planning/daily", ctrl.HandleGetDailyPlan)
	app.Put("/planning/daily", ctrl.HandleReplaceDailyPlan)
	app.Post("/planning/auto-schedule", ctrl.HandleAutoSchedule)
	app.Post("/planning/daily/push", ctrl.HandlePushPlan)
	return app
}

func strPtr(s string) *string { return &s }

func TestGetDailyPlanWithoutPlan(t *testing.T) {
	f := newPlanningFixture()

	resp, body := doRequest(t, newPlanningApp(f, nil, nil), http.MethodGet, "/planning/daily?date="+testDate, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeMap(t, body)
	assert.Equal(t, testDate, view["date"])
	assert.Nil(t, view["plan"])
	overload := view["overload"].(map[string]interface{})
	assert.Equal(t, float64(0), overload["taskCount"])
	assert.Equal(t, false, overload["isOverloaded"])
}

func TestReplaceDailyPlan(t *testing.T) {
	f := newPlanningFixture()
	app := newPlanningApp(f, nil, nil)

	payload := replacePlanRequest{
		Date: testDate,
		Tasks: []planner.EntryInput{
			{TaskID: 2, TimeSlotStart: strPtr("2025-03-10T09:00:00Z"), TimeSlotEnd: strPtr("2025-03-10T10:00:00Z")},
			{TaskID: 1},
		},
	}
	resp, body := doRequest(t, app, http.MethodPut, "/planning/daily", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	plan := f.plans.plans[testDate]
	require.NotNil(t, plan)
	require.Len(t, plan.Entries, 2)
	assert.Equal(t, uint(2), plan.Entries[0].TaskID)
	assert.Equal(t, 0, plan.Entries[0].SortOrder)
	assert.True(t, plan.Entries[0].HasTimeSlot())
	assert.False(t, plan.Entries[1].HasTimeSlot())

	overload := decodeMap(t, body)["overload"].(map[string]interface{})
	assert.Equal(t, float64(2), overload["taskCount"])
	assert.Equal(t, float64(90), overload["totalMinutes"])

	resp, _ = doRequest(t, app, http.MethodGet, "/planning/daily?date="+testDate, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReplaceDailyPlanRejectsInvalidInput(t *testing.T) {
	f := newPlanningFixture()
	app := newPlanningApp(f, nil, nil)

	bad := []replacePlanRequest{
		{Date: testDate, Tasks: []planner.EntryInput{{TaskID: 3}}},
		{Date: testDate, Tasks: []planner.EntryInput{{TaskID: 0}}},
		{Date: testDate, Tasks: []planner.EntryInput{{TaskID: 1, TimeSlotStart: strPtr("2025-03-10T09:00:00Z")}}},
		{Date: testDate, Tasks: []planner.EntryInput{{TaskID: 1, TimeSlotStart: strPtr("2025-03-10T10:00:00Z"), TimeSlotEnd: strPtr("2025-03-10T09:00:00Z")}}},
		{Date: "", Tasks: []planner.EntryInput{{TaskID: 1}}},
	}
	for i, payload := range bad {
		resp, body := doRequest(t, app, http.MethodPut, "/planning/daily", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "case %d: %s", i, body)
	}
	assert.Zero(t, f.plans.replaced)
}

func TestAutoScheduleInvalidPayload(t *testing.T) {
	f := newPlanningFixture()
	app := newPlanningApp(f, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/planning/auto-schedule", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAutoSchedule(t *testing.T) {
	f := newPlanningFixture()
	app := newPlanningApp(f, nil, nil)

	resp, body := doRequest(t, app, http.MethodPost, "/planning/auto-schedule", map[string]interface{}{"date": testDate, "taskIds": []uint{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"schedule":[]}`, string(body))

	resp, body = doRequest(t, app, http.MethodPost, "/planning/auto-schedule", map[string]interface{}{"date": testDate, "taskIds": []uint{1}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	schedule := decodeMap(t, body)["schedule"].([]interface{})
	require.Len(t, schedule, 1)
	first := schedule[0].(map[string]interface{})
	assert.Equal(t, float64(1), first["taskId"])
	assert.Equal(t, "2025-03-10T08:00:00Z", first["timeSlotStart"])
	assert.Equal(t, "2025-03-10T08:30:00Z", first["timeSlotEnd"])
	assert.Zero(t, f.plans.replaced, "without apply nothing is written")

	resp, _ = doRequest(t, app, http.MethodPost, "/planning/auto-schedule", map[string]interface{}{"date": testDate, "taskIds": []uint{3}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAutoScheduleApply(t *testing.T) {
	f := newPlanningFixture()
	app := newPlanningApp(f, nil, nil)

	resp, body := doRequest(t, app, http.MethodPost, "/planning/auto-schedule", map[string]interface{}{"date": testDate, "taskIds": []uint{1}, "apply": true})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	require.Equal(t, 1, f.plans.replaced)
	plan := f.plans.plans[testDate]
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, uint(1), plan.Entries[0].TaskID)
	assert.True(t, plan.Entries[0].HasTimeSlot())
}

func TestAutoScheduleFailure(t *testing.T) {
	f := newPlanningFixture()
	app := newPlanningApp(f, failingScheduler{}, nil)

	resp, body := doRequest(t, app, http.MethodPost, "/planning/auto-schedule", map[string]interface{}{"date": testDate, "taskIds": []uint{1}, "apply": true})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	out := decodeMap(t, body)
	assert.Equal(t, "auto_schedule_failed", out["error"])
	assert.Equal(t, "AI scheduling failed", out["message"])
	assert.Zero(t, f.plans.replaced)
}

func TestPushPlan(t *testing.T) {
	f := newPlanningFixture()
	jobs := &fakeJobs{}
	app := newPlanningApp(f, nil, jobs)

	resp, body := doRequest(t, app, http.MethodPost, "/planning/daily/push?date="+testDate, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"jobId":"job-1"}`, string(body))
	require.Len(t, jobs.types, 1)
	assert.Equal(t, jobqueue.JobTypePlanPush, jobs.types[0])
	assert.Equal(t, jobqueue.PlanPushJobPayload{UserID: 7, Date: testDate}.ToMap(), jobs.payloads[0])

	resp, _ = doRequest(t, app, http.MethodPost, "/planning/daily/push?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	jobs.err = errors.New("redis down")
	resp, _ = doRequest(t, app, http.MethodPost, "/planning/daily/push?date="+testDate, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, body = doRequest(t, newPlanningApp(f, nil, nil), http.MethodPost, "/planning/daily/push?date="+testDate, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_configured", decodeMap(t, body)["error"])
}

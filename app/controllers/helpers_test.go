package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/calendar"
	"github.com/ManuelReschke/PlanFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planner"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planning"
	"github.com/ManuelReschke/PlanFox/internal/pkg/usercontext"
)

const testDate = "2025-03-10"

// newTestApp returns an app whose requests run as userID (0 = anonymous)
func newTestApp(userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		usercontext.Store(c, usercontext.UserContext{UserID: userID, Username: "tester", IsLoggedIn: userID != 0})
		return c.Next()
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeMap(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func decodeList(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

type fakeEvents struct {
	events []calendar.CalendarEvent
}

func (f *fakeEvents) ListAllEvents(ctx context.Context, userID uint, date string, loc *time.Location) []calendar.CalendarEvent {
	return f.events
}

func timedEvent(accountID uint, title string, startHour, endHour int, dup bool) calendar.CalendarEvent {
	start := time.Date(2025, 3, 10, startHour, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, endHour, 0, 0, 0, time.UTC)
	return calendar.CalendarEvent{
		ID:          title,
		AccountID:   accountID,
		Title:       title,
		Start:       calendar.At(start),
		End:         calendar.At(end),
		IsDuplicate: dup,
		Fingerprint: calendar.Fingerprint(title, start.Format(time.RFC3339), end.Format(time.RFC3339)),
	}
}

// fakeTasks serves both the planning service and the task controller
type fakeTasks struct {
	mu     sync.Mutex
	tasks  map[uint]models.Task
	nextID uint
}

func newFakeTasks(tasks ...models.Task) *fakeTasks {
	f := &fakeTasks{tasks: map[uint]models.Task{}, nextID: 100}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeTasks) GetByIDsForUser(userID uint, ids []uint) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, id := range ids {
		if t, ok := f.tasks[id]; ok && t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTasks) Create(task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	task.ID = f.nextID
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeTasks) ListByUser(userID uint, includeCompleted bool) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, t := range f.tasks {
		if t.UserID == userID && (includeCompleted || !t.Completed) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakePlans struct {
	plans    map[string]*models.DailyPlan
	tasks    *fakeTasks
	replaced int
}

func (f *fakePlans) GetPlan(userID uint, date string) (*models.DailyPlan, error) {
	return f.plans[date], nil
}

func (f *fakePlans) ReplacePlan(userID uint, date string, entries []models.PlanEntry) (*models.DailyPlan, error) {
	if f.plans == nil {
		f.plans = map[string]*models.DailyPlan{}
	}
	plan := &models.DailyPlan{UserID: userID, Date: date}
	for _, e := range entries {
		if t, ok := f.tasks.tasks[e.TaskID]; ok {
			task := t
			e.Task = &task
		}
		plan.Entries = append(plan.Entries, e)
	}
	f.plans[date] = plan
	f.replaced++
	return plan, nil
}

type fakeSlots struct {
	slots   []models.TimeSlot
	deleted []uint
}

func (f *fakeSlots) ListByUser(userID uint) ([]models.TimeSlot, error) {
	var out []models.TimeSlot
	for _, s := range f.slots {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSlots) Create(slot *models.TimeSlot) error {
	slot.ID = uint(len(f.slots) + 1)
	f.slots = append(f.slots, *slot)
	return nil
}

func (f *fakeSlots) DeleteForUser(id, userID uint) error {
	for i, s := range f.slots {
		if s.ID == id && s.UserID == userID {
			f.slots = append(f.slots[:i], f.slots[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeSettings struct {
	settings *models.UserSettings
}

func (f fakeSettings) GetSettings(userID uint) (*models.UserSettings, error) {
	return f.settings, nil
}

type failingScheduler struct{}

func (failingScheduler) Name() string { return "gemini" }

func (failingScheduler) Schedule(ctx context.Context, req planner.Request) ([]planner.Assignment, error) {
	return nil, planner.ErrAutoScheduleFailed
}

type planningFixture struct {
	events *fakeEvents
	tasks  *fakeTasks
	plans  *fakePlans
	slots  *fakeSlots
}

func newPlanningFixture() *planningFixture {
	thirty, sixty := 30, 60
	tasks := newFakeTasks(
		models.Task{ID: 1, UserID: 7, Title: "Write report", EstimatedMinutes: &thirty, Quadrant: models.QuadrantDoFirst},
		models.Task{ID: 2, UserID: 7, Title: "Plan sprint", EstimatedMinutes: &sixty, Quadrant: models.QuadrantSchedule},
		models.Task{ID: 3, UserID: 8, Title: "Someone else", EstimatedMinutes: &thirty},
	)
	return &planningFixture{
		events: &fakeEvents{},
		tasks:  tasks,
		plans:  &fakePlans{tasks: tasks},
		slots:  &fakeSlots{},
	}
}

func (f *planningFixture) service(scheduler planner.Scheduler) *planning.Service {
	return planning.NewService(planning.Dependencies{
		Events:    f.events,
		Tasks:     f.tasks,
		Plans:     f.plans,
		Slots:     f.slots,
		Settings:  fakeSettings{settings: &models.UserSettings{UserID: 7, Timezone: "UTC"}},
		Scheduler: scheduler,
	})
}

type fakeAccountStore struct {
	accounts map[uint]models.CalendarAccount
	nextID   uint
	deleted  []uint
}

func newFakeAccountStore(accounts ...models.CalendarAccount) *fakeAccountStore {
	f := &fakeAccountStore{accounts: map[uint]models.CalendarAccount{}, nextID: 50}
	for _, a := range accounts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccountStore) ListByUser(userID uint) ([]models.CalendarAccount, error) {
	var out []models.CalendarAccount
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccountStore) GetByIDForUser(id, userID uint) (*models.CalendarAccount, error) {
	a, ok := f.accounts[id]
	if !ok || a.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return &a, nil
}

func (f *fakeAccountStore) Upsert(account *models.CalendarAccount) error {
	if account.ID == 0 {
		f.nextID++
		account.ID = f.nextID
	}
	f.accounts[account.ID] = *account
	return nil
}

func (f *fakeAccountStore) UpdateSettings(id uint, name *string, color *string, enabled *bool) error {
	a, ok := f.accounts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if name != nil {
		a.CalendarName = *name
	}
	if color != nil {
		a.Color = *color
	}
	if enabled != nil {
		a.Enabled = *enabled
	}
	f.accounts[id] = a
	return nil
}

func (f *fakeAccountStore) Delete(id uint) error {
	if _, ok := f.accounts[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.accounts, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeConnector struct {
	exchangeErr error
	states      []string
}

func (f *fakeConnector) AuthCodeURL(state string) string {
	f.states = append(f.states, state)
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeConnector) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth2.Token{AccessToken: "at-" + code, RefreshToken: "rt-" + code, Expiry: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeConnector) PrimaryCalendar(ctx context.Context, accessToken string) (string, string, error) {
	return "me@example.com", "me@example.com", nil
}

type fakeFeeds struct {
	err     error
	checked []string
}

func (f *fakeFeeds) Validate(ctx context.Context, feedURL string) error {
	f.checked = append(f.checked, feedURL)
	return f.err
}

type memoryStates map[string]string

func (m memoryStates) Set(key string, value interface{}, expiration time.Duration) error {
	s, ok := value.(string)
	if !ok {
		return errors.New("unexpected value type")
	}
	m[key] = s
	return nil
}

func (m memoryStates) GetDel(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", redis.Nil
	}
	delete(m, key)
	return v, nil
}

type fakeJobs struct {
	types    []jobqueue.JobType
	payloads []map[string]interface{}
	err      error
}

func (f *fakeJobs) EnqueueJob(jobType jobqueue.JobType, payload map[string]interface{}) (*jobqueue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.types = append(f.types, jobType)
	f.payloads = append(f.payloads, payload)
	return &jobqueue.Job{ID: "job-1", Type: jobType, Payload: payload}, nil
}

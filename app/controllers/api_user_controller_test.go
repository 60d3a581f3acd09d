package controllers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlanFox/app/models"
)

type fakeUsers struct {
	user     *models.User
	settings *models.UserSettings
	saves    int
}

func (f *fakeUsers) GetByID(id uint) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return f.user, nil
}

func (f *fakeUsers) GetSettings(userID uint) (*models.UserSettings, error) {
	return f.settings, nil
}

func (f *fakeUsers) SaveSettings(settings *models.UserSettings) error {
	f.settings = settings
	f.saves++
	return nil
}

func newUserApp(users *fakeUsers, userID uint) *fiber.App {
	ctrl := NewUserController(users)
	app := newTestApp(userID)
	app.Get("/user/account", ctrl.HandleGetUserAccount)
	app.Post("/user/api-key", ctrl.HandleIssueAPIKey)
	app.Delete("/user/api-key", ctrl.HandleRevokeAPIKey)
	return app
}

func TestFormatTimePtr(t *testing.T) {
	assert.Nil(t, formatTimePtr(nil))

	now := time.Date(2024, 5, 1, 12, 34, 56, 0, time.Local)
	formatted := formatTimePtr(&now)
	assert.IsType(t, "", formatted)

	expected := now.UTC().Format(time.RFC3339)
	assert.Equal(t, expected, formatted)
}

func TestGetUserAccount(t *testing.T) {
	users := &fakeUsers{
		user:     &models.User{ID: 7, Name: "Ada", Email: "ada@example.com", Role: models.ROLE_USER, Status: models.STATUS_ACTIVE},
		settings: &models.UserSettings{UserID: 7, Timezone: "Europe/Berlin", MaxDailyMinutes: 300},
	}

	resp, body := doRequest(t, newUserApp(users, 7), http.MethodGet, "/user/account", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeMap(t, body)
	assert.Equal(t, "ada@example.com", out["email"])
	assert.Equal(t, false, out["is_admin"])
	settings := out["settings"].(map[string]interface{})
	assert.Equal(t, "Europe/Berlin", settings["timezone"])
	assert.Equal(t, float64(300), settings["max_daily_minutes"])
	assert.Equal(t, float64(models.DefaultMaxDailyTasks), settings["max_daily_tasks"])

	resp, _ = doRequest(t, newUserApp(users, 0), http.MethodGet, "/user/account", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIssueAndRevokeAPIKey(t *testing.T) {
	users := &fakeUsers{settings: &models.UserSettings{UserID: 7}}
	app := newUserApp(users, 7)

	resp, _ := doRequest(t, app, http.MethodDelete, "/user/api-key", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := doRequest(t, app, http.MethodPost, "/user/api-key", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decodeMap(t, body)
	rawKey, _ := out["api_key"].(string)
	prefix, _ := out["prefix"].(string)
	require.NotEmpty(t, rawKey)
	assert.True(t, strings.HasPrefix(rawKey, prefix))
	assert.True(t, users.settings.HasActiveAPIKey())
	assert.Equal(t, models.HashAPIKey(rawKey), users.settings.APIKeyHash)

	resp, _ = doRequest(t, app, http.MethodDelete, "/user/api-key", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, users.settings.HasActiveAPIKey())
	assert.Equal(t, 2, users.saves)
}

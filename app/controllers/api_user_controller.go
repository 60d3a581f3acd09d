package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/usercontext"
)

// UserStore is the part of the user repository the controller uses
type UserStore interface {
	GetByID(id uint) (*models.User, error)
	GetSettings(userID uint) (*models.UserSettings, error)
	SaveSettings(settings *models.UserSettings) error
}

type UserController struct {
	users UserStore
}

func NewUserController(users UserStore) *UserController {
	return &UserController{users: users}
}

// HandleGetUserAccount returns account information for the authenticated user (API key or session).
func (uc *UserController) HandleGetUserAccount(c *fiber.Ctx) error {
	userCtx := usercontext.Get(c)
	if !userCtx.IsLoggedIn {
		return unauthorized(c)
	}

	account, err := uc.users.GetByID(userCtx.UserID)
	if err != nil {
		return storeError(c, "User", err)
	}
	settings, err := uc.users.GetSettings(userCtx.UserID)
	if err != nil {
		return storeError(c, "User settings", err)
	}

	response := fiber.Map{
		"id":                   account.ID,
		"username":             account.Name,
		"email":                account.Email,
		"status":               account.Status,
		"is_admin":             account.Role == models.ROLE_ADMIN,
		"created_at":           account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at":        formatTimePtr(account.LastLoginAt),
		"api_key_prefix":       settings.APIKeyPrefix,
		"api_key_last_used_at": formatTimePtr(settings.APIKeyLastUsedAt),
		"settings": fiber.Map{
			"timezone":          settings.Timezone,
			"max_daily_tasks":   settings.DailyTaskLimit(),
			"max_daily_minutes": settings.DailyMinuteLimit(),
		},
	}

	return c.JSON(response)
}

// HandleIssueAPIKey creates (or rotates) the user's API key. The raw key is only returned once.
func (uc *UserController) HandleIssueAPIKey(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	settings, err := uc.users.GetSettings(userID)
	if err != nil {
		return storeError(c, "User settings", err)
	}
	rawKey, err := settings.IssueAPIKey()
	if err != nil {
		log.Errorf("[User] API key generation for user %d failed: %v", userID, err)
		return internalError(c, "Failed to generate API key")
	}
	if err := uc.users.SaveSettings(settings); err != nil {
		return storeError(c, "User settings", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    rawKey,
		"prefix":     settings.APIKeyPrefix,
		"created_at": formatTimePtr(settings.APIKeyCreatedAt),
	})
}

// HandleRevokeAPIKey disables the user's API key
func (uc *UserController) HandleRevokeAPIKey(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if userID == 0 {
		return unauthorized(c)
	}
	settings, err := uc.users.GetSettings(userID)
	if err != nil {
		return storeError(c, "User settings", err)
	}
	if !settings.HasActiveAPIKey() {
		return notFound(c, "No active API key")
	}
	settings.RevokeAPIKey()
	if err := uc.users.SaveSettings(settings); err != nil {
		return storeError(c, "User settings", err)
	}
	return c.JSON(fiber.Map{"success": true})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

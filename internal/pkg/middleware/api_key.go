package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/usercontext"
)

// apiKeyUsageResolution limits how often a key's last use is written back
const apiKeyUsageResolution = time.Minute

// APIKeyStore resolves API keys to users
type APIKeyStore interface {
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	SaveSettings(settings *models.UserSettings) error
}

// APIKeyAuthMiddleware requires an API key on every request
func APIKeyAuthMiddleware(store APIKeyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := presentedAPIKey(c)
		if key == "" {
			return deny(c, fiber.StatusUnauthorized, "unauthorized", "Missing API key")
		}
		return authenticateAPIKey(c, store, key)
	}
}

// RequireAPIAuth passes signed in sessions and falls back to an API key
func RequireAPIAuth(store APIKeyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if usercontext.Get(c).IsLoggedIn {
			return c.Next()
		}
		key := presentedAPIKey(c)
		if key == "" {
			return deny(c, fiber.StatusUnauthorized, "unauthorized", "login required")
		}
		return authenticateAPIKey(c, store, key)
	}
}

func authenticateAPIKey(c *fiber.Ctx, store APIKeyStore, key string) error {
	if store == nil {
		log.Error("[APIKey] No user store configured")
		return deny(c, fiber.StatusInternalServerError, "internal_server_error", "Database unavailable")
	}

	user, settings, err := store.GetByAPIKeyHash(models.HashAPIKey(key))
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return deny(c, fiber.StatusUnauthorized, "unauthorized", "Invalid API key")
	case err != nil:
		log.Errorf("[APIKey] Lookup failed: %v", err)
		return deny(c, fiber.StatusInternalServerError, "internal_server_error", "API key verification failed")
	case !user.IsActive():
		return deny(c, fiber.StatusForbidden, "forbidden", "User inactive")
	}

	if last := settings.APIKeyLastUsedAt; last == nil || time.Since(*last) >= apiKeyUsageResolution {
		settings.TouchAPIKeyUsage()
		if err := store.SaveSettings(settings); err != nil {
			log.Warnf("[APIKey] Recording usage for user %d: %v", user.ID, err)
		}
	}

	usercontext.Store(c, usercontext.UserContext{
		UserID:     user.ID,
		Username:   user.Name,
		IsLoggedIn: true,
		IsAdmin:    user.Role == models.ROLE_ADMIN,
	})
	return c.Next()
}

// presentedAPIKey reads X-API-Key, then an Authorization bearer token
func presentedAPIKey(c *fiber.Ctx) string {
	if key := strings.TrimSpace(c.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(c.Get(fiber.HeaderAuthorization)), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

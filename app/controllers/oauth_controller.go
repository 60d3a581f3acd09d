package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/session"
	"github.com/ManuelReschke/PlanFox/internal/pkg/utils"
)

// HandleOAuthCallback completes the provider flow and logs the user in
func (ac *AuthController) HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warnf("[Auth] OAuth sign-in failed: %v", err)
		return jsonError(c, fiber.StatusBadRequest, "oauth_failed", "Sign-in failed")
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return jsonError(c, fiber.StatusBadRequest, "oauth_failed", "The provider did not share an email address")
	}

	appUser, err := ac.users.GetByEmail(email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		appUser, err = models.NewOAuthUser(firstNonEmpty(u.Name, u.NickName, email), email, utils.AvatarOrGravatar(u.AvatarURL, email))
		if err != nil {
			return badRequest(c, validationMessage(err))
		}
		if err := ac.users.Create(appUser); err != nil {
			log.Errorf("[Auth] Creating user %s failed: %v", email, err)
			return internalError(c, "Failed to create user")
		}
		log.Infof("[Auth] Created user %d via %s", appUser.ID, u.Provider)
	case err != nil:
		return storeError(c, "User", err)
	}

	if !appUser.IsActive() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "User inactive")
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return internalError(c, "Session init failed")
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, appUser.ID)
	sess.Set(USER_NAME, appUser.Name)
	sess.Set(USER_IS_ADMIN, appUser.Role == models.ROLE_ADMIN)
	if err := sess.Save(); err != nil {
		return internalError(c, "Session save failed")
	}

	now := time.Now()
	appUser.LastLoginAt = &now
	if err := ac.users.Update(appUser); err != nil {
		log.Warnf("[Auth] Failed to update last login of user %d: %v", appUser.ID, err)
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/session"
	"github.com/ManuelReschke/PlanFox/internal/pkg/usercontext"
)

const (
	AUTH_KEY      string = usercontext.AuthKey
	USER_ID       string = usercontext.KeyUserID
	USER_NAME     string = usercontext.KeyUsername
	USER_IS_ADMIN string = usercontext.KeyIsAdmin
)

// SignInStore is the part of the user repository the sign-in flow uses
type SignInStore interface {
	GetByEmail(email string) (*models.User, error)
	Create(user *models.User) error
	Update(user *models.User) error
}

// AuthController handles Google sign-in sessions
type AuthController struct {
	users SignInStore
}

func NewAuthController(users SignInStore) *AuthController {
	return &AuthController{users: users}
}

// HandleAuthLogout destroys the session
func (ac *AuthController) HandleAuthLogout(c *fiber.Ctx) error {
	store := session.GetSessionStore()
	if store == nil {
		return c.JSON(fiber.Map{"success": true})
	}
	sess, err := store.Get(c)
	if err != nil {
		return c.JSON(fiber.Map{"success": true})
	}
	if err := sess.Destroy(); err != nil {
		log.Errorf("[Auth] Failed to destroy session: %v", err)
		return internalError(c, "Logout failed")
	}

	c.Locals(FROM_PROTECTED, false)
	return c.JSON(fiber.Map{"success": true})
}

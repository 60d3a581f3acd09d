package usercontext

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Keys written into the session at sign-in and mirrored into Locals
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)

const localsKey = "planfox.user"

// UserContext identifies who a request acts for. The zero value is an
// anonymous visitor.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
}

// FromSession rebuilds the context of a signed in user. Sessions without a
// user id yield an anonymous context.
func FromSession(sess *session.Session) UserContext {
	if sess == nil {
		return UserContext{}
	}
	userID, ok := sess.Get(KeyUserID).(uint)
	if !ok || userID == 0 {
		return UserContext{}
	}
	username, _ := sess.Get(KeyUsername).(string)
	isAdmin, _ := sess.Get(KeyIsAdmin).(bool)
	return UserContext{UserID: userID, Username: username, IsLoggedIn: true, IsAdmin: isAdmin}
}

// Store attaches uc to the request. The flat keys are set as well for
// handlers that only need one value.
func Store(c *fiber.Ctx, uc UserContext) {
	c.Locals(localsKey, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
	if uc.IsLoggedIn {
		c.Locals(KeyUserID, uc.UserID)
		c.Locals(KeyUsername, uc.Username)
	}
}

// Get returns the stored context, anonymous when nothing was stored
func Get(c *fiber.Ctx) UserContext {
	uc, _ := c.Locals(localsKey).(UserContext)
	return uc
}

// UserID is 0 for anonymous requests
func UserID(c *fiber.Ctx) uint {
	return Get(c).UserID
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PlanFox/internal/pkg/session"
	"github.com/ManuelReschke/PlanFox/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the signed in user from the app session.
// Requests without a usable session continue as anonymous.
func UserContextMiddleware(c *fiber.Ctx) error {
	// goth keeps its own session store on /auth/*
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	uc := usercontext.UserContext{}
	if store := session.GetSessionStore(); store != nil {
		if sess, err := store.Get(c); err == nil {
			uc = usercontext.FromSession(sess)
		}
	}
	usercontext.Store(c, uc)
	return c.Next()
}

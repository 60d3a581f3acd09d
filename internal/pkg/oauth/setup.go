package oauth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/PlanFox/internal/pkg/constants"
	"github.com/ManuelReschke/PlanFox/internal/pkg/env"
	appsession "github.com/ManuelReschke/PlanFox/internal/pkg/session"
)

// Setup registers the Google login provider and the Redis backed goth session store.
// It reports false when GOOGLE_KEY is unset, the sign-in routes stay unregistered then.
func Setup() bool {
	key := env.GetEnv("GOOGLE_KEY", "")
	if key == "" {
		return false
	}

	goth.UseProviders(
		google.New(
			key,
			env.GetEnv("GOOGLE_SECRET", ""),
			CallbackURL(constants.GoogleSignInCallbackRoute),
			"email", "profile",
		),
	)

	// goth only keeps the OAuth state here while a sign-in is in flight
	gothfiber.SessionStore = session.New(session.Config{
		Storage:        appsession.RedisStorage(appsession.OAuthStateDB),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     time.Hour,
	})
	return true
}

// CallbackURL joins PUBLIC_DOMAIN (or the local port) with path
func CallbackURL(path string) string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base + path
}

package session

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/PlanFox/internal/pkg/cache"
	"github.com/ManuelReschke/PlanFox/internal/pkg/env"
)

// Redis databases next to the cache (DB 0)
const (
	SessionDB    = 1
	OAuthStateDB = 2

	CookieName = "planfox_session"
)

var sessionStore *session.Store

// RedisStorage returns fiber storage on the cache server, using database db
func RedisStorage(db int) *redis.Storage {
	cfg := redis.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     env.GetEnvInt("CACHE_PORT", 6379),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: db,
	}
	if client := cache.GetClient(); client != nil {
		opts := client.Options()
		if host, port, err := net.SplitHostPort(opts.Addr); err == nil {
			cfg.Host = host
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Port = p
			}
		}
		cfg.Username = opts.Username
		if opts.Password != "" {
			cfg.Password = opts.Password
		}
	}
	return redis.New(cfg)
}

// NewSessionStore creates the app session store. Sessions last SESSION_HOURS
// (default 24) and the cookie is only sent over HTTPS outside of dev.
func NewSessionStore() *session.Store {
	sessionStore = session.New(session.Config{
		Storage:        RedisStorage(SessionDB),
		KeyLookup:      "cookie:" + CookieName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     time.Duration(env.GetEnvInt("SESSION_HOURS", 24)) * time.Hour,
	})
	return sessionStore
}

// GetSessionStore is nil until NewSessionStore ran
func GetSessionStore() *session.Store {
	return sessionStore
}

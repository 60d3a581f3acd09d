package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PlanFox/internal/pkg/env"
)

var client *redis.Client

// releaseScript deletes a lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// SetupCache connects to the Redis (or Dragonfly) server from CACHE_*. A
// failed ping is only logged, the client reconnects on use.
func SetupCache() {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("[Cache] %s not reachable yet: %v", client.Options().Addr, err)
		return
	}
	log.Infof("[Cache] Connected to %s", client.Options().Addr)
}

// GetClient returns the shared client and connects on first use
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// Locker is a best-effort distributed mutex on top of SET NX
type Locker struct {
	client *redis.Client
}

func NewLocker(c *redis.Client) *Locker {
	return &Locker{client: c}
}

// Acquire tries to take key for ttl with the caller's token. It returns false
// when another holder owns the key.
func (l *Locker) Acquire(ctx context.Context, key string, token string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, token, ttl).Result()
}

// Release drops the lock if it is still held with token
func (l *Locker) Release(ctx context.Context, key string, token string) error {
	return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}

// KV stores short lived single-use values such as OAuth connect states
type KV struct{}

func (KV) Set(key string, value interface{}, expiration time.Duration) error {
	return GetClient().Set(context.Background(), key, value, expiration).Err()
}

// GetDel reads and removes key in one round trip
func (KV) GetDel(key string) (string, error) {
	return GetClient().GetDel(context.Background(), key).Result()
}

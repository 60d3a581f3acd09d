package jobqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PlanFox/internal/pkg/env"
)

// jobQueueTestDB keeps the queue tests away from data in the default database
const jobQueueTestDB = 14

// redisCandidates lists the addresses tried for tests: the configured cache,
// the compose service name, then localhost
func redisCandidates() []*redis.Options {
	password := env.GetEnv("CACHE_PASSWORD", "")
	port := env.GetEnv("CACHE_PORT", "6379")
	var opts []*redis.Options
	seen := map[string]bool{}
	for _, host := range []string{env.GetEnv("CACHE_HOST", ""), "cache", "localhost"} {
		addr := fmt.Sprintf("%s:%s", host, port)
		if host == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		opts = append(opts, &redis.Options{Addr: addr, Password: password, DB: jobQueueTestDB})
	}
	return opts
}

// newTestRedis returns a client on an empty database or skips the test when
// no Redis is reachable
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	var lastErr error
	for _, opt := range redisCandidates() {
		client := redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		lastErr = client.Ping(ctx).Err()
		if lastErr == nil {
			lastErr = client.FlushDB(ctx).Err()
		}
		cancel()
		if lastErr != nil {
			_ = client.Close()
			continue
		}
		t.Cleanup(func() {
			_ = client.FlushDB(context.Background()).Err()
			_ = client.Close()
		})
		return client
	}
	t.Skipf("Skipping Redis-dependent test: %v", lastErr)
	return nil
}

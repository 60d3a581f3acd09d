package repository

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

const (
	scanBatch   = 500
	deleteBatch = 500
)

// queueRepository reads and trims the Redis keys behind the job queue, the
// calendar connect states and the refresh locks
type queueRepository struct {
	client *redis.Client
}

// NewQueueRepository returns a QueueRepository on the given client
func NewQueueRepository(client *redis.Client) QueueRepository {
	return &queueRepository{client: client}
}

func (r *queueRepository) GetListLength(key string) (int64, error) {
	return r.client.LLen(context.Background(), key).Result()
}

func (r *queueRepository) GetSortedSetLength(key string) (int64, error) {
	return r.client.ZCard(context.Background(), key).Result()
}

// FindKeysByPatterns SCANs every pattern and returns the distinct keys sorted
func (r *queueRepository) FindKeysByPatterns(patterns []string) ([]string, error) {
	ctx := context.Background()
	found := map[string]struct{}{}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			found[iter.Val()] = struct{}{}
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(found))
	for key := range found {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// DeleteKeys removes keys with UNLINK in chunks and returns how many existed
func (r *queueRepository) DeleteKeys(keys []string) (int64, error) {
	ctx := context.Background()
	var deleted int64
	for len(keys) > 0 {
		chunk := keys
		if len(chunk) > deleteBatch {
			chunk = chunk[:deleteBatch]
		}
		keys = keys[len(chunk):]

		n, err := r.client.Unlink(ctx, chunk...).Result()
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

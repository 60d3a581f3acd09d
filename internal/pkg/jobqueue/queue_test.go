package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlanFox/internal/pkg/calendar"
)

func TestNewQueueWorkers(t *testing.T) {
	assert.Equal(t, 5, NewQueue(5).workers)
	assert.Equal(t, defaultQueueWorkers, NewQueue(0).workers)
	assert.Equal(t, defaultQueueWorkers, NewQueue(-2).workers)
	assert.False(t, NewQueue(1).running)
}

func TestPolicies(t *testing.T) {
	assert.Equal(t, DefaultMaxRetries, policyFor(JobTypePlanPush).maxRetries)
	assert.Less(t, policyFor(JobTypeCalendarRefresh).maxRetries, DefaultMaxRetries)
	assert.Equal(t, DefaultMaxRetries, policyFor(JobType("unknown")).maxRetries)
}

func TestPermanentErrors(t *testing.T) {
	assert.True(t, isPermanent(permanent(errors.New("bad payload"))))
	assert.True(t, isPermanent(fmt.Errorf("wrapped: %w", permanent(errors.New("bad payload")))))
	assert.True(t, isPermanent(errNotConfigured))
	assert.True(t, isPermanent(fmt.Errorf("%w: x", errUnknownJobType)))
	assert.False(t, isPermanent(&calendar.AccountError{AccountID: 1, Kind: calendar.ErrProviderError}))

	inner := errors.New("inner")
	assert.ErrorIs(t, permanent(inner), inner)
}

func newRedisQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	client := newTestRedis(t)
	q := NewQueue(1)
	q.client = client
	return q, client
}

func TestEnqueueJob(t *testing.T) {
	q, client := newRedisQueue(t)
	ctx := context.Background()

	job, err := q.EnqueueJob(JobTypePlanPush, PlanPushJobPayload{UserID: 7, Date: "2025-03-10"}.ToMap())
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobTypePlanPush, stored.Type)
	assert.Equal(t, "2025-03-10", stored.Payload["date"])

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[JobStatusPending])

	ttl, err := client.TTL(ctx, JobKeyPrefix+job.ID).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= JobTTL)
}

func TestEnqueueUnique(t *testing.T) {
	q, _ := newRedisQueue(t)
	payload := CalendarRefreshJobPayload{AccountID: 4}.ToMap()

	first, err := q.EnqueueUnique(JobTypeCalendarRefresh, "4", payload, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := q.EnqueueUnique(JobTypeCalendarRefresh, "4", payload, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again)

	other, err := q.EnqueueUnique(JobTypeCalendarRefresh, "5", payload, time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, other)

	size, err := q.GetQueueSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

func TestEnqueueExpiringRefreshes(t *testing.T) {
	q, _ := newRedisQueue(t)
	accounts := newFakeAccounts(googleAccount(1, 7), googleAccount(2, 8))
	q.SetProcessors(&Processors{Accounts: accounts})
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

	queued, err := q.EnqueueExpiringRefreshes(now, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	assert.Equal(t, now.Add(15*time.Minute), accounts.before)

	// the next sweep inside the window finds both accounts already queued
	queued, err = q.EnqueueExpiringRefreshes(now.Add(time.Minute), 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, queued)

	size, err := q.GetQueueSize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

func TestProcessJobCompletesAndRemovesJob(t *testing.T) {
	q, client := newRedisQueue(t)
	ctx := context.Background()
	accounts, plans := pushFixture()
	writer := &fakeWriter{}
	q.SetProcessors(&Processors{Accounts: accounts, Plans: plans, Credentials: &fakeCredentials{}, Events: writer})

	job, err := q.EnqueueJob(JobTypePlanPush, PlanPushJobPayload{UserID: 7, Date: "2025-03-10"}.ToMap())
	require.NoError(t, err)

	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	require.Equal(t, job.ID, dequeued.ID)

	q.processJob(ctx, dequeued)

	assert.Len(t, writer.inserted, 2)
	exists, err := client.Exists(ctx, JobKeyPrefix+job.ID).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[JobStatusCompleted])
	assert.Zero(t, stats[JobStatusPending])
	assert.Zero(t, stats[JobStatusProcessing])
}

func TestProcessJobSchedulesRetry(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	q.SetProcessors(&Processors{
		Accounts: newFakeAccounts(googleAccount(1, 7)),
		Credentials: &fakeCredentials{
			err: &calendar.AccountError{AccountID: 1, Kind: calendar.ErrProviderError},
		},
	})

	job, err := q.EnqueueJob(JobTypeCalendarRefresh, CalendarRefreshJobPayload{AccountID: 1}.ToMap())
	require.NoError(t, err)
	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	delayed, err := q.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)
	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Contains(t, stored.ErrorMsg, "provider")

	// not due yet
	promoted, err := q.promoteDueRetries(ctx)
	require.NoError(t, err)
	assert.Zero(t, promoted)

	now = now.Add(policyFor(JobTypeCalendarRefresh).backoff)
	promoted, err = q.promoteDueRetries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)
	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestProcessJobPermanentFailure(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()
	q.SetProcessors(&Processors{Accounts: newFakeAccounts(), Credentials: &fakeCredentials{}})

	job, err := q.EnqueueJob(JobTypeCalendarRefresh, map[string]interface{}{"account_id": "nope"})
	require.NoError(t, err)
	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	delayed, err := q.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, delayed)
	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[JobStatusFailed])
}

func TestRequeueStuck(t *testing.T) {
	q, client := newRedisQueue(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	job, err := q.EnqueueJob(JobTypePlanPush, PlanPushJobPayload{UserID: 7, Date: "2025-03-10"}.ToMap())
	require.NoError(t, err)
	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	started := now.Add(-time.Hour)
	dequeued.Status = JobStatusProcessing
	dequeued.ProcessedAt = &started
	q.save(ctx, dequeued)

	// a processing entry whose record expired is dropped
	require.NoError(t, client.LPush(ctx, JobProcessingKey, "gone").Err())

	n, err := q.requeueStuck(ctx, stuckAfter)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := client.LRange(ctx, JobQueueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, pending)
	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestStartStop(t *testing.T) {
	q, _ := newRedisQueue(t)
	q.Start()
	assert.True(t, q.running)
	q.Start()
	q.Stop()
	assert.False(t, q.running)
	q.Stop()
}

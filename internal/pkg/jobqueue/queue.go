package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PlanFox/internal/pkg/cache"
)

const (
	JobKeyPrefix       = "planfox:job:"
	JobQueueKey        = "planfox:jobs:pending"
	JobProcessingKey   = "planfox:jobs:processing"
	JobDelayedKey      = "planfox:jobs:delayed"
	JobStatsKey        = "planfox:jobs:stats"
	JobUniqueKeyPrefix = "planfox:jobs:unique:"

	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour

	defaultQueueWorkers = 3
	dequeueTimeout      = 5 * time.Second
	stuckAfter          = 10 * time.Minute
	maintenanceInterval = 15 * time.Second
)

// jobPolicy controls how often and how long a job type may run. The retry
// delay grows linearly with the attempt.
type jobPolicy struct {
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration
}

var jobPolicies = map[JobType]jobPolicy{
	// the next sweep queues a fresh refresh anyway
	JobTypeCalendarRefresh: {maxRetries: 2, timeout: 30 * time.Second, backoff: 30 * time.Second},
	JobTypePlanPush:        {maxRetries: DefaultMaxRetries, timeout: 2 * time.Minute, backoff: time.Minute},
}

func policyFor(t JobType) jobPolicy {
	if p, ok := jobPolicies[t]; ok {
		return p
	}
	return jobPolicy{maxRetries: DefaultMaxRetries, timeout: time.Minute, backoff: 30 * time.Second}
}

var errUnknownJobType = errors.New("unknown job type")

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// permanent marks a failure that no retry can fix
func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p) || errors.Is(err, errNotConfigured) || errors.Is(err, errUnknownJobType)
}

// Queue runs calendar background jobs on Redis lists. Pending ids are moved
// atomically into the processing list so a crashed worker never loses a job;
// failed jobs wait in a sorted set until their retry is due.
type Queue struct {
	client     *redis.Client
	processors *Processors
	workers    int
	now        func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a queue with the given number of workers
func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = defaultQueueWorkers
	}
	return &Queue{
		client:  cache.GetClient(),
		workers: workers,
		now:     time.Now,
	}
}

// SetProcessors wires the dependencies of the job handlers
func (q *Queue) SetProcessors(p *Processors) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processors = p
}

// Start launches the workers and the maintenance loop
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	if q.client == nil {
		q.client = cache.GetClient()
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.maintain(ctx)
}

// Stop cancels running jobs and waits for all goroutines
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	cancel := q.cancel
	q.cancel = nil
	q.mu.Unlock()

	log.Info("[JobQueue] Stopping workers...")
	cancel()
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		job, err := q.dequeueJob(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("[JobQueue] Worker %d: dequeue failed: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job != nil {
			q.processJob(ctx, job)
		}
	}
}

// maintain promotes due retries and recovers jobs abandoned in processing
func (q *Queue) maintain(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := q.promoteDueRetries(ctx); err != nil {
				log.Errorf("[JobQueue] Promoting retries failed: %v", err)
			} else if n > 0 {
				log.Debugf("[JobQueue] %d delayed jobs are due", n)
			}
			if n, err := q.requeueStuck(ctx, stuckAfter); err != nil {
				log.Errorf("[JobQueue] Stuck job recovery failed: %v", err)
			} else if n > 0 {
				log.Warnf("[JobQueue] Requeued %d stuck jobs", n)
			}
		}
	}
}

// EnqueueJob stores a job and appends it to the pending list
func (q *Queue) EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error) {
	now := q.now()
	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: policyFor(jobType).maxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}

	ctx := context.Background()
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
		pipe.LPush(ctx, JobQueueKey, job.ID)
		pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s job: %w", jobType, err)
	}
	log.Debugf("[JobQueue] Enqueued %s job %s", jobType, job.ID)
	return job, nil
}

// EnqueueUnique behaves like EnqueueJob but drops the job when another one
// with the same type and key was queued within window. The returned job is
// nil in that case.
func (q *Queue) EnqueueUnique(jobType JobType, key string, payload map[string]interface{}, window time.Duration) (*Job, error) {
	ctx := context.Background()
	uniqueKey := JobUniqueKeyPrefix + string(jobType) + ":" + key
	fresh, err := q.client.SetNX(ctx, uniqueKey, 1, window).Result()
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", uniqueKey, err)
	}
	if !fresh {
		return nil, nil
	}
	job, err := q.EnqueueJob(jobType, payload)
	if err != nil {
		_ = q.client.Del(ctx, uniqueKey).Err()
		return nil, err
	}
	return job, nil
}

// dequeueJob blocks until a job id is available and returns the stored job,
// nil when the wait timed out or the job record has expired
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BLMove(ctx, JobQueueKey, JobProcessingKey, "RIGHT", "LEFT", dequeueTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job, err := q.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			log.Warnf("[JobQueue] Job %s expired before it ran", id)
			q.client.LRem(ctx, JobProcessingKey, 1, id)
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (q *Queue) handlerFor(t JobType) func(context.Context, *Job) error {
	switch t {
	case JobTypeCalendarRefresh:
		return q.processCalendarRefreshJob
	case JobTypePlanPush:
		return q.processPlanPushJob
	}
	return nil
}

// processJob runs one dequeued job and records the outcome. Completed jobs
// are removed, failed ones are rescheduled unless the failure is permanent
// or the retry budget is spent.
func (q *Queue) processJob(ctx context.Context, job *Job) {
	policy := policyFor(job.Type)
	previous := job.Status
	job.MarkAsProcessing()
	q.save(ctx, job)
	q.countTransition(ctx, previous, JobStatusProcessing)

	var err error
	if handler := q.handlerFor(job.Type); handler != nil {
		jobCtx, cancel := context.WithTimeout(ctx, policy.timeout)
		err = handler(jobCtx, job)
		cancel()
	} else {
		err = fmt.Errorf("%w: %s", errUnknownJobType, job.Type)
	}

	// a shutdown interrupted the job, leave it in processing for recovery
	if err != nil && ctx.Err() != nil {
		log.Warnf("[JobQueue] Job %s interrupted by shutdown", job.ID)
		return
	}

	if err == nil {
		job.MarkAsCompleted()
		q.countTransition(ctx, JobStatusProcessing, JobStatusCompleted)
		q.finish(ctx, job.ID)
		log.Infof("[JobQueue] %s job %s completed", job.Type, job.ID)
		return
	}

	job.MarkAsFailed(err.Error())
	if isPermanent(err) || !job.IsRetryable() {
		q.save(ctx, job)
		q.countTransition(ctx, JobStatusProcessing, JobStatusFailed)
		q.client.LRem(ctx, JobProcessingKey, 1, job.ID)
		log.Errorf("[JobQueue] %s job %s failed after %d attempts: %v", job.Type, job.ID, job.RetryCount, err)
		return
	}

	job.MarkAsRetrying()
	delay := policy.backoff * time.Duration(job.RetryCount)
	if err := q.scheduleRetry(ctx, job, q.now().Add(delay)); err != nil {
		log.Errorf("[JobQueue] Could not schedule retry of job %s: %v", job.ID, err)
		return
	}
	q.countTransition(ctx, JobStatusProcessing, JobStatusRetrying)
	log.Warnf("[JobQueue] %s job %s failed (attempt %d/%d), retry in %s: %v",
		job.Type, job.ID, job.RetryCount, job.MaxRetries, delay, err)
}

func (q *Queue) scheduleRetry(ctx context.Context, job *Job, due time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
		pipe.LRem(ctx, JobProcessingKey, 1, job.ID)
		pipe.ZAdd(ctx, JobDelayedKey, redis.Z{Score: float64(due.Unix()), Member: job.ID})
		return nil
	})
	return err
}

// promoteDueRetries moves delayed jobs whose retry time has passed back to
// the pending list
func (q *Queue) promoteDueRetries(ctx context.Context) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, JobDelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, id := range due {
		// ZRem decides which maintainer owns the job when several instances run
		removed, err := q.client.ZRem(ctx, JobDelayedKey, id).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, JobQueueKey, id).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// requeueStuck puts jobs back on the pending list that sat in processing for
// longer than maxAge. Job records that have expired are dropped.
func (q *Queue) requeueStuck(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	cutoff := q.now().Add(-maxAge)
	requeued := 0
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if errors.Is(err, redis.Nil) {
			q.client.LRem(ctx, JobProcessingKey, 1, id)
			continue
		}
		if err != nil {
			return requeued, err
		}
		if job.ProcessedAt == nil || job.ProcessedAt.After(cutoff) {
			continue
		}
		if n, err := q.client.LRem(ctx, JobProcessingKey, 1, id).Result(); err != nil || n == 0 {
			continue
		}
		job.Status = JobStatusPending
		job.UpdatedAt = q.now()
		q.save(ctx, job)
		q.countTransition(ctx, JobStatusProcessing, JobStatusPending)
		if err := q.client.LPush(ctx, JobQueueKey, id).Err(); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}

func (q *Queue) save(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Encoding job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Saving job %s: %v", job.ID, err)
	}
}

func (q *Queue) finish(ctx context.Context, jobID string) {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, JobProcessingKey, 1, jobID)
		pipe.Del(ctx, JobKeyPrefix+jobID)
		return nil
	})
	if err != nil {
		log.Errorf("[JobQueue] Cleaning up job %s: %v", jobID, err)
	}
}

// countTransition keeps the per-status gauges in the stats hash. Completed
// and failed are running totals.
func (q *Queue) countTransition(ctx context.Context, from, to JobStatus) {
	pipe := q.client.Pipeline()
	if from != "" && from != JobStatusCompleted && from != JobStatusFailed {
		pipe.HIncrBy(ctx, JobStatsKey, string(from), -1)
	}
	pipe.HIncrBy(ctx, JobStatsKey, string(to), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("[JobQueue] Updating stats: %v", err)
	}
}

// GetJob loads a stored job, redis.Nil when it does not exist
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+jobID).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// GetJobStats returns the counters of the stats hash by status
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	raw, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}
	stats := make(map[JobStatus]int64, len(raw))
	for status, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		stats[JobStatus(status)] = n
	}
	return stats, nil
}

// GetQueueSize returns the number of pending jobs
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

// GetProcessingSize returns the number of jobs being worked on
func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}

// GetDelayedSize returns the number of jobs waiting for a retry
func (q *Queue) GetDelayedSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, JobDelayedKey).Result()
}

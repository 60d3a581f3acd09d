package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlanFox/app/repository"
	"github.com/ManuelReschke/PlanFox/internal/pkg/jobqueue"
)

// JobStatsReader reads the job counters of the queue
type JobStatsReader interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
}

// RefreshSweeper triggers the credential refresh sweep by hand
type RefreshSweeper interface {
	RunRefreshSweepOnce() (int, error)
}

// purgeScopes maps a purge scope to the Redis key patterns it removes
var purgeScopes = map[string][]string{
	"jobs": {
		jobqueue.JobKeyPrefix + "*",
		jobqueue.JobUniqueKeyPrefix + "*",
		jobqueue.JobQueueKey,
		jobqueue.JobProcessingKey,
		jobqueue.JobDelayedKey,
		jobqueue.JobStatsKey,
	},
	"oauth_states":  {connectStatePrefix + "*"},
	"refresh_locks": {"calendar:refresh:*"},
}

// AdminQueueController exposes queue health and maintenance to admins
type AdminQueueController struct {
	queueRepo repository.QueueRepository
	stats     JobStatsReader
	sweeper   RefreshSweeper
}

// NewAdminQueueController creates a new admin queue controller with repository
func NewAdminQueueController(queueRepo repository.QueueRepository, stats JobStatsReader, sweeper RefreshSweeper) *AdminQueueController {
	return &AdminQueueController{
		queueRepo: queueRepo,
		stats:     stats,
		sweeper:   sweeper,
	}
}

// HandleAdminQueueStats returns list sizes and job counters
func (aqc *AdminQueueController) HandleAdminQueueStats(c *fiber.Ctx) error {
	pending, err := aqc.queueRepo.GetListLength(jobqueue.JobQueueKey)
	if err != nil {
		log.Errorf("[AdminQueue] Reading queue length: %v", err)
		return internalError(c, "Failed to read queue")
	}
	processing, err := aqc.queueRepo.GetListLength(jobqueue.JobProcessingKey)
	if err != nil {
		log.Errorf("[AdminQueue] Reading processing length: %v", err)
		return internalError(c, "Failed to read queue")
	}
	delayed, err := aqc.queueRepo.GetSortedSetLength(jobqueue.JobDelayedKey)
	if err != nil {
		log.Errorf("[AdminQueue] Reading retry backlog: %v", err)
		return internalError(c, "Failed to read queue")
	}
	jobKeys, err := aqc.queueRepo.FindKeysByPatterns([]string{jobqueue.JobKeyPrefix + "*"})
	if err != nil {
		log.Errorf("[AdminQueue] Scanning job keys: %v", err)
		return internalError(c, "Failed to read queue")
	}

	counters := map[jobqueue.JobStatus]int64{}
	if aqc.stats != nil {
		if counters, err = aqc.stats.GetJobStats(c.UserContext()); err != nil {
			log.Errorf("[AdminQueue] Reading job stats: %v", err)
			return internalError(c, "Failed to read queue")
		}
	}

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"delayed":    delayed,
		"stored":     len(jobKeys),
		"stats":      counters,
	})
}

// HandleAdminQueuePurge deletes the Redis keys of ?scope=jobs|oauth_states|refresh_locks
func (aqc *AdminQueueController) HandleAdminQueuePurge(c *fiber.Ctx) error {
	scope := c.Query("scope")
	patterns, ok := purgeScopes[scope]
	if !ok {
		return badRequest(c, "Unknown scope")
	}

	keys, err := aqc.queueRepo.FindKeysByPatterns(patterns)
	if err != nil {
		log.Errorf("[AdminQueue] Scanning %s keys: %v", scope, err)
		return internalError(c, "Failed to read keys")
	}
	deleted, err := aqc.queueRepo.DeleteKeys(keys)
	if err != nil {
		log.Errorf("[AdminQueue] Deleting %s keys: %v", scope, err)
		return internalError(c, "Failed to delete keys")
	}

	log.Infof("[AdminQueue] Purged %d keys of scope %s", deleted, scope)
	return c.JSON(fiber.Map{"scope": scope, "deleted": deleted})
}

// HandleAdminRefreshSweep queues credential refreshes for accounts expiring soon
func (aqc *AdminQueueController) HandleAdminRefreshSweep(c *fiber.Ctx) error {
	if aqc.sweeper == nil {
		return jsonError(c, fiber.StatusServiceUnavailable, "not_configured", "Background jobs are not available")
	}
	queued, err := aqc.sweeper.RunRefreshSweepOnce()
	if err != nil {
		log.Errorf("[AdminQueue] Refresh sweep: %v", err)
		return internalError(c, "Refresh sweep failed")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": queued})
}

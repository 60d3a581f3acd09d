package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/ManuelReschke/PlanFox/internal/pkg/env"
	metrics "github.com/ManuelReschke/PlanFox/internal/pkg/metrics/counter"
)

const (
	defaultWorkerCount   = 5
	counterFlushInterval = 5 * time.Second
)

// Manager owns the process wide queue, the cron driven credential refresh
// sweep and the flush of the provider fetch counters
type Manager struct {
	queue        *Queue
	refreshCron  string
	refreshAhead time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	scheduler *cron.Cron
	wg        sync.WaitGroup
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the singleton, sized by JOBQUEUE_WORKERS
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{queue: NewQueue(env.GetEnvInt("JOBQUEUE_WORKERS", defaultWorkerCount))}
	})
	return globalManager
}

func (m *Manager) GetQueue() *Queue {
	return m.queue
}

func (m *Manager) EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error) {
	return m.queue.EnqueueJob(jobType, payload)
}

// Configure wires the job handlers and the refresh schedule, a standard five
// field cron expression. An empty schedule disables the sweep.
func (m *Manager) Configure(p *Processors, refreshCron string) error {
	if refreshCron != "" {
		if _, err := cron.ParseStandard(refreshCron); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.SetProcessors(p)
	m.refreshCron = refreshCron
	m.refreshAhead = 0
	if p != nil {
		m.refreshAhead = p.RefreshAhead
	}
	return nil
}

// Start runs the queue, the counter flush and the refresh sweep. Calling it
// on a running manager does nothing.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	log.Info("[JobQueue Manager] Starting")

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true
	m.queue.Start()

	m.wg.Add(1)
	go m.flushCounters(ctx)

	if m.refreshCron != "" {
		m.scheduler = cron.New()
		// Configure validated the expression
		_, _ = m.scheduler.AddFunc(m.refreshCron, func() {
			if _, err := m.RunRefreshSweepOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Credential refresh sweep: %v", err)
			}
		})
		m.scheduler.Start()
		log.Infof("[JobQueue Manager] Credential refresh sweep on %q, %s ahead", m.refreshCron, m.refreshAhead)
	}
}

// Stop halts the sweep, drains the queue workers and flushes the counters
// one last time
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	log.Info("[JobQueue Manager] Stopping")

	if m.scheduler != nil {
		<-m.scheduler.Stop().Done()
		m.scheduler = nil
	}
	m.cancel()
	m.wg.Wait()
	m.queue.Stop()
	m.running = false

	if err := metrics.FlushAll(); err != nil {
		log.Errorf("[JobQueue Manager] Final counter flush: %v", err)
	}
}

func (m *Manager) flushCounters(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(counterFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush: %v", err)
			}
		}
	}
}

// RunRefreshSweepOnce queues refresh jobs for all accounts expiring soon
func (m *Manager) RunRefreshSweepOnce() (int, error) {
	m.mu.Lock()
	ahead := m.refreshAhead
	m.mu.Unlock()

	queued, err := m.queue.EnqueueExpiringRefreshes(time.Now(), ahead)
	if queued > 0 {
		log.Infof("[JobQueue Manager] Queued %d credential refreshes", queued)
	}
	return queued, err
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

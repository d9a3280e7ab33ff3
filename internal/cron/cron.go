package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/parceltrace/parceltrace/config"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
	"github.com/parceltrace/parceltrace/services/queue"
)

const (
	JobQueueWorker      = "queue-worker"
	JobRetentionCleanup = "retention-cleanup"
)

// JobMetadata is the scheduler state exposed on the system status endpoint.
type JobMetadata struct {
	Description     string     `json:"description"`
	IntervalSeconds int        `json:"intervalSeconds"`
	LastRunAt       *time.Time `json:"lastRunAt"`
	LastStatus      string     `json:"lastStatus"`
}

// CronManager drives the background jobs: the queue worker tick and the
// retention cleanup. Jobs are chained with SkipIfStillRunning so a slow
// analyzer never stacks ticks.
type CronManager struct {
	cfg       *config.Config
	log       logger.Logger
	processor *queue.Processor
	retention *queue.Retention

	cron   *cronv3.Cron
	stopCh chan struct{}

	mu     sync.Mutex
	jobIDs map[string]cronv3.EntryID
	jobs   map[string]*JobMetadata
}

func NewCronManager(cfg *config.Config, log logger.Logger, processor *queue.Processor, retention *queue.Retention) *CronManager {
	return &CronManager{
		cfg:       cfg,
		log:       log,
		processor: processor,
		retention: retention,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
		jobs:      make(map[string]*JobMetadata),
	}
}

// StartCron initializes and starts the cron scheduler.
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

// Stop gracefully stops the cron manager and waits for running jobs.
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		<-ctx.Done()
	}
	close(cm.stopCh)
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	cm.addJob(c, JobQueueWorker, "Process queued emails through the analyzer",
		cm.cfg.QueueConfig.TickSeconds, cm.runQueueWorker)
	cm.addJob(c, JobRetentionCleanup, "Prune queue items past retention",
		cm.cfg.QueueConfig.RetentionSeconds, cm.runRetentionCleanup)
}

// addJob registers one job; a duplicate name is a no-op.
func (cm *CronManager) addJob(c *cronv3.Cron, name, description string, intervalSeconds int, run func(ctx context.Context) error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.jobIDs[name]; exists {
		cm.log.Warnf("job %s already registered, skipping", name)
		return
	}

	schedule := fmt.Sprintf("@every %ds", intervalSeconds)
	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		cm.runJob(name, run)
	})
	if err != nil {
		cm.log.Fatalf("Could not add %s cron job: %v", name, err)
	}
	cm.jobIDs[name] = id
	cm.jobs[name] = &JobMetadata{
		Description:     description,
		IntervalSeconds: intervalSeconds,
		LastStatus:      "never_run",
	}
	cm.log.Infof("Registered %s job with schedule: %s", name, schedule)
}

func (cm *CronManager) runJob(name string, run func(ctx context.Context) error) {
	err := run(context.Background())

	cm.mu.Lock()
	defer cm.mu.Unlock()
	meta := cm.jobs[name]
	meta.LastRunAt = utils.TimePtr(utils.Now())
	if err != nil {
		meta.LastStatus = "failed: " + err.Error()
		return
	}
	meta.LastStatus = "ok"
}

// Jobs returns a copy of the scheduler metadata.
func (cm *CronManager) Jobs() map[string]JobMetadata {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	result := make(map[string]JobMetadata, len(cm.jobs))
	for name, meta := range cm.jobs {
		result[name] = *meta
	}
	return result
}

// runQueueWorker handles at most one item per tick. Throughput is bounded
// by the tick interval on purpose, it keeps a burst of mail from hammering
// the analyzer endpoint.
func (cm *CronManager) runQueueWorker(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runQueueWorker")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	select {
	case <-cm.stopCh:
		return nil
	default:
	}

	if _, err := cm.processor.ProcessNextItem(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (cm *CronManager) runRetentionCleanup(ctx context.Context) error {
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runRetentionCleanup")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	if err := cm.retention.Cleanup(ctx); err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

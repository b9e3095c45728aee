package work

import (
	"errors"
	"fmt"

	"github.com/beaconhq/beacon/server/cron"
	"github.com/beaconhq/beacon/server/models"
	"github.com/go-co-op/gocron"
)

const MAX_CONCURRENCY = 1

type WorkerPoolAdapter struct {
	cronScheduler *gocron.Scheduler
	pool          WorkerPool
	testMode      bool
}

func NewWorkerAdapter(timeZoneArg string, testMode bool) *WorkerPoolAdapter {
	pool, err := newWorkerPool(MAX_CONCURRENCY)
	if err != nil {
		logg.Panic(err)
	}

	return &WorkerPoolAdapter{
		cronScheduler: cron.NewCronScheduler(timeZoneArg),
		pool:          *pool,
		testMode:      testMode,
	}
}

// Start starts the cron scheduler & worker pool. In test mode the cron
// scheduler stays idle, so tests drive the queue directly.
func (adapter *WorkerPoolAdapter) Start() error {
	logg.Info("Starting cron scheduler & worker pool")
	if !adapter.testMode {
		adapter.cronScheduler.StartAsync()
	}
	adapter.pool.start()

	return nil
}

// Stop stops the cron scheduler & worker pool
func (adapter *WorkerPoolAdapter) Stop() error {
	logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.pool.stop()

	return nil
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.registerHandler(name, handler)
}

// Perform sends a new job to the queue, now - to be executed as soon as a worker is available
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	logg.Infof("Enqueuing job: %v", job)

	err := adapter.pool.enqueue(job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueuing job: %v, %v", job, err)
	}

	return nil
}

// PerformIn schedules a job to be executed 'offsetInSeconds' seconds from now
func (adapter *WorkerPoolAdapter) PerformIn(offsetInSeconds int64, job JobParams) error {
	logg.Infof("Scheduling job: %v to run in %vs", job, offsetInSeconds)

	err := adapter.pool.enqueueIn(offsetInSeconds, job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error scheduling job: %v, %v", job, err)
	}

	return nil
}

// PeriodicallyPerform adds a job to the queue (to be executed)
// periodically, based on the 'cronExpression' expression provided
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).
		Do(
			func(job JobParams) {
				err := adapter.Perform(job)
				if err != nil {
					logg.Error(err)
				}
			},
			job,
		)
	return err
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) {
	adapter.cronScheduler.RemoveByTag(jobName)
}

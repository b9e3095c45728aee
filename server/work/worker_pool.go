package work

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/beaconhq/beacon/server/models"
	"github.com/pkg/errors"
)

type WorkerPool struct {
	workers     []*worker
	requeuers   []*requeuer
	concurrency int
	started     bool
}

func newWorkerPool(concurrency int) (*WorkerPool, error) {
	wp := WorkerPool{concurrency: concurrency}

	for i := 0; i < concurrency; i++ {
		wp.workers = append(wp.workers, newWorker([]int64{0, 1, 5, 10}))
	}

	// One requeuer moves 'scheduled' jobs whose time has come into the
	// queue, the other rescues jobs stuck 'in-progress'.
	for _, queue := range []string{models.SCHEDULED_JOB, models.IN_PROGRESS_JOB} {
		rq, err := newRequeuer(queue)
		if err != nil {
			return nil, err
		}
		wp.requeuers = append(wp.requeuers, rq)
	}

	return &wp, nil
}

// registerHandler binds a name to a job handler for all workers in pool
func (wp *WorkerPool) registerHandler(name string, handler Handler) error {
	for _, worker := range wp.workers {
		err := worker.registerHandler(name, handler)
		if err != nil {
			return errors.Wrapf(err, "unable to register %q", name)
		}
	}
	return nil
}

// enqueue adds a job to the queue(to be executed) by creating a DB record based on 'JobParams' provided
func (wp *WorkerPool) enqueue(job JobParams) error {
	return wp.enqueueIn(0, job)
}

// enqueueIn adds a job to the queue to be executed 'offsetInSeconds' seconds from now
func (wp *WorkerPool) enqueueIn(offsetInSeconds int64, job JobParams) error {
	if strings.TrimSpace(job.Name) == "" || strings.TrimSpace(job.Handler) == "" {
		return fmt.Errorf("both a name & handler is required for a job")
	}

	argsAsJson, err := json.Marshal(job.Args)
	if err != nil {
		return err
	}

	enqueuedAt := time.Now().Add(time.Duration(offsetInSeconds) * time.Second)

	return models.CreateJob(job.Name, job.Handler, string(argsAsJson), job.Unique, enqueuedAt)
}

// start starts all workers & requeuers in pool i.e jobs can start being processed
func (wp *WorkerPool) start() {
	if wp.started {
		return
	}
	wp.started = true

	for _, worker := range wp.workers {
		worker.start()
	}

	for _, requeuer := range wp.requeuers {
		requeuer.start()
	}
}

// stop stops all workers & requeuers in pool i.e jobs will stop being processed
func (wp *WorkerPool) stop() {
	if !wp.started {
		return
	}

	wg := sync.WaitGroup{}
	for _, w := range wp.workers {
		wg.Add(1)
		go func(w *worker) {
			w.stop()
			wg.Done()
		}(w)
	}

	for _, r := range wp.requeuers {
		wg.Add(1)
		go func(r *requeuer) {
			r.stop()
			wg.Done()
		}(r)
	}
	wg.Wait()
	wp.started = false
}

// Package engine owns the priority queue, scheduler, and worker threads
// plus the job catalog, and exposes the supervisor's top-level lifecycle:
// Start, EnqueueJob, Stop. Collapsed from an N-worker, distributed-queue
// workflow execution design down to a single in-process priority queue
// with one worker goroutine.
package engine

import (
	"context"
	"sync"

	"github.com/steamrunner/steamrunner/internal/platform/logger"
	"github.com/steamrunner/steamrunner/internal/platform/metrics"
	"github.com/steamrunner/steamrunner/internal/queue"
	"github.com/steamrunner/steamrunner/internal/scheduler"
	"github.com/steamrunner/steamrunner/internal/worker"
	"github.com/steamrunner/steamrunner/internal/workflow"
)

// Engine composes the priority queue, scheduler, and worker around a fixed
// job catalog. Catalog and schedule entries are supplied at construction
// and never mutated afterward.
type Engine struct {
	queue     *queue.Queue
	scheduler *scheduler.Scheduler
	worker    *worker.Worker
	catalog   workflow.Catalog
	log       logger.Logger
	metrics   *metrics.Metrics

	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New builds an Engine. entries is the static schedule table (see
// scheduler.DefaultEntries); catalog must contain a Job for every JobID
// any entry or EnqueueJob call might reference.
func New(catalog workflow.Catalog, entries []scheduler.Entry, log logger.Logger, m *metrics.Metrics) (*Engine, error) {
	q := queue.New()
	s := scheduler.New(q, catalog, log)
	s.SetMetrics(m)
	for _, e := range entries {
		if err := s.Register(e); err != nil {
			return nil, err
		}
	}

	return &Engine{
		queue:     q,
		scheduler: s,
		worker:    worker.New(q, log, m),
		catalog:   catalog,
		log:       log,
		metrics:   m,
	}, nil
}

// Start spawns the scheduler and worker and returns immediately.
func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.scheduler.Start()
	go e.worker.Run(ctx)

	e.log.Info("engine: started")
}

// EnqueueJob looks up id in the catalog and enqueues it, reporting whether
// it was found. Callers typically enqueue UPDATE_START immediately after
// Start to bootstrap reconciliation.
func (e *Engine) EnqueueJob(id workflow.JobID) bool {
	job, ok := e.catalog.Get(id)
	if !ok {
		e.log.Error("engine: enqueue requested for unknown job", "job", id.String())
		return false
	}
	if e.metrics != nil {
		e.metrics.JobsEnqueuedTotal.WithLabelValues(id.String()).Inc()
		e.metrics.QueueDepth.Set(float64(e.queue.Len() + 1))
	}
	e.queue.Enqueue(job)
	e.log.Info("engine: job enqueued", "job", job.Name)
	return true
}

// Stop sets the stop condition, drains the queue via a sentinel, and joins
// both the scheduler and worker. Idempotent: calling Stop more than once
// has no additional effect.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.log.Info("engine: stopping")
		e.scheduler.Stop()
		e.queue.Enqueue(workflow.Sentinel())
		<-e.worker.Done()
		if e.cancel != nil {
			e.cancel()
		}
		e.log.Info("engine: stopped")
	})
}

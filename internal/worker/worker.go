// Package worker is the single-threaded consumer that drains the priority
// queue, runs each dequeued job's tasks in order, and applies the cascade
// policy once a job finishes. A single goroutine, not a worker pool: at
// most one job's tasks execute at a time, by design.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/steamrunner/steamrunner/internal/platform/logger"
	"github.com/steamrunner/steamrunner/internal/platform/metrics"
	"github.com/steamrunner/steamrunner/internal/queue"
	"github.com/steamrunner/steamrunner/internal/tasks"
	"github.com/steamrunner/steamrunner/internal/workflow"
)

// getTimeout bounds a single blocking dequeue attempt; the worker loop
// rechecks its stop condition between attempts.
const getTimeout = time.Second

// Worker drains q, running jobs to completion or abort, one at a time.
type Worker struct {
	queue   *queue.Queue
	log     logger.Logger
	metrics *metrics.Metrics
	done    chan struct{}
}

// New builds a Worker bound to q. metrics may be nil.
func New(q *queue.Queue, log logger.Logger, m *metrics.Metrics) *Worker {
	return &Worker{queue: q, log: log, metrics: m, done: make(chan struct{})}
}

// Run drains the queue until it dequeues a sentinel, then returns. Intended
// to be run on its own goroutine; the engine owns join-on-stop via Done.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok := w.queue.Get(getTimeout)
		if !ok {
			continue
		}
		if job.IsSentinel() {
			w.log.Info("worker: sentinel observed, stopping")
			return
		}

		w.runJob(ctx, job)
		w.queue.PruneLowerPriority(job)
	}
}

// Done is closed once Run has returned (sentinel observed or ctx
// cancelled), for the engine to join on during Stop.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) runJob(ctx context.Context, job workflow.Job) {
	w.log.Info("worker: job starting", "job", job.Name)
	if w.metrics != nil {
		w.metrics.WorkerBusy.Set(1)
		defer w.metrics.WorkerBusy.Set(0)
	}
	start := time.Now()

	outcome := "success"
	for _, task := range job.Tasks() {
		result, err := func() (result tasks.Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task panicked: %v", r)
				}
			}()
			return task.Run(ctx)
		}()
		if err != nil {
			w.log.Error("worker: task failed, aborting remaining tasks in job", "job", job.Name, "error", err)
			outcome = "error"
			break
		}
		if !result.Success {
			w.log.Warn("worker: task completed unsuccessfully", "job", job.Name, "message", result.Message)
			outcome = "failure"
		}
	}

	w.log.Info("worker: job finished", "job", job.Name, "outcome", outcome)
	if w.metrics != nil {
		w.metrics.JobsCompletedTotal.WithLabelValues(job.ID.String(), outcome).Inc()
		w.metrics.JobDuration.WithLabelValues(job.ID.String()).Observe(time.Since(start).Seconds())
	}
}

// Package scheduler is the time-driven producer: a static trigger table
// that, on each fire, evaluates a predicate and enqueues the bound job.
// Built on robfig/cron/v3 wrapping a fixed four-row table of cron entries.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/steamrunner/steamrunner/internal/platform/logger"
	"github.com/steamrunner/steamrunner/internal/platform/metrics"
	"github.com/steamrunner/steamrunner/internal/queue"
	"github.com/steamrunner/steamrunner/internal/workflow"
)

// defaultPredicateTimeout bounds a single predicate evaluation. Predicates
// may call out over HTTP or to steamcmd; this keeps one slow predicate
// from blocking the scheduler goroutine indefinitely.
const defaultPredicateTimeout = 10 * time.Second

// Predicate reports whether the bound job should be enqueued on this tick.
// It must not mutate the managed server; it may return an error, which is
// logged and swallowed rather than enqueuing the job.
type Predicate func(ctx context.Context) (bool, error)

// Entry binds a JobID to a cron expression and the predicate gating it.
type Entry struct {
	JobID     workflow.JobID
	CronSpec  string
	Predicate Predicate
}

// Scheduler drives a static trigger table. It never blocks on the queue;
// each fire evaluates its predicate inline and, if true, enqueues the
// catalog job for that JobID.
type Scheduler struct {
	cron    *cron.Cron
	queue   *queue.Queue
	catalog workflow.Catalog
	log     logger.Logger
	metrics *metrics.Metrics
}

// New builds a Scheduler bound to queue q and catalog. Entries are
// registered with Register before Start.
func New(q *queue.Queue, catalog workflow.Catalog, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithChain(cron.Recover(cron.DefaultLogger)),
		),
		queue:   q,
		catalog: catalog,
		log:     log,
	}
}

// SetMetrics attaches the collectors this scheduler updates when a
// predicate errors or a job is enqueued. Optional; a nil Metrics (the default) disables
// recording without changing behavior.
func (s *Scheduler) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Register adds a trigger entry. Must be called before Start; the schedule
// table is fixed once the engine is running (no dynamic reconfiguration).
func (s *Scheduler) Register(e Entry) error {
	_, err := s.cron.AddFunc(e.CronSpec, func() {
		s.fire(e)
	})
	return err
}

func (s *Scheduler) fire(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPredicateTimeout)
	defer cancel()

	ok, err := e.Predicate(ctx)
	if err != nil {
		s.log.Error("scheduler: predicate failed", "job", e.JobID.String(), "error", err)
		if s.metrics != nil {
			s.metrics.PredicateErrors.WithLabelValues(e.JobID.String()).Inc()
		}
		return
	}
	if !ok {
		return
	}

	job, found := s.catalog.Get(e.JobID)
	if !found {
		s.log.Error("scheduler: predicate fired for unknown job", "job", e.JobID.String())
		return
	}

	s.log.Info("scheduler: enqueuing job", "job", job.Name)
	if s.metrics != nil {
		s.metrics.JobsEnqueuedTotal.WithLabelValues(e.JobID.String()).Inc()
	}
	s.queue.Enqueue(job)
}

// Start begins running the trigger table. Non-blocking; the underlying
// cron scheduler runs its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts future ticks and waits for any in-flight fire to finish.
// Idempotent.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// DefaultEntries builds the fixed trigger table: START every minute, OOM
// at :00/:10/:20/:30/:40/:50 past the hour, UPDATE at :00/:15/:30/:45 past
// the hour, RESTART daily at 05:45.
func DefaultEntries(stateNotRunning, isOutOfMemory, updateAvailable, stateRunning Predicate) []Entry {
	return []Entry{
		{JobID: workflow.Start, CronSpec: "* * * * *", Predicate: stateNotRunning},
		{JobID: workflow.OOM, CronSpec: "0,10,20,30,40,50 * * * *", Predicate: isOutOfMemory},
		{JobID: workflow.Update, CronSpec: "0,15,30,45 * * * *", Predicate: updateAvailable},
		{JobID: workflow.Restart, CronSpec: "45 5 * * *", Predicate: stateRunning},
	}
}

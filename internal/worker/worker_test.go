package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/steamrunner/steamrunner/internal/platform/logger"
	"github.com/steamrunner/steamrunner/internal/queue"
	"github.com/steamrunner/steamrunner/internal/tasks"
	"github.com/steamrunner/steamrunner/internal/workflow"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}
func (n noopLogger) WithFields(map[string]interface{}) logger.Logger { return n }
func (n noopLogger) WithContext(context.Context) logger.Logger       { return n }

type fakeTask struct {
	result tasks.Result
	err    error
	ran    *bool
}

func (f fakeTask) Run(ctx context.Context) (tasks.Result, error) {
	if f.ran != nil {
		*f.ran = true
	}
	return f.result, f.err
}

// enqueueTask enqueues job on q while it runs, then calls after (if set)
// and returns err (success when err is nil).
type enqueueTask struct {
	q     *queue.Queue
	job   workflow.Job
	after func()
	err   error
}

func (e enqueueTask) Run(ctx context.Context) (tasks.Result, error) {
	e.q.Enqueue(e.job)
	if e.after != nil {
		e.after()
	}
	if e.err != nil {
		return tasks.Result{}, e.err
	}
	return tasks.Result{Success: true}, nil
}

func TestWorkerRunsJobTasksInOrderThenStopsOnSentinel(t *testing.T) {
	q := queue.New()

	var ran1, ran2 bool
	job := workflow.New(workflow.Start, "START", []tasks.Task{
		fakeTask{result: tasks.Result{Success: true}, ran: &ran1},
		fakeTask{result: tasks.Result{Success: true}, ran: &ran2},
		// The sentinel is enqueued while the job runs: enqueued up front it
		// would drain the job before the worker dequeued it.
		enqueueTask{q: q, job: workflow.Sentinel()},
	})
	q.Enqueue(job)

	w := New(q, noopLogger{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after sentinel")
	}
	<-done

	assert.True(t, ran1)
	assert.True(t, ran2)
}

func TestWorkerAbortsRemainingTasksOnError(t *testing.T) {
	q := queue.New()

	var ran2 bool
	job := workflow.New(workflow.Start, "START", []tasks.Task{
		enqueueTask{q: q, job: workflow.Sentinel(), err: errors.New("boom")},
		fakeTask{result: tasks.Result{Success: true}, ran: &ran2},
	})
	q.Enqueue(job)

	w := New(q, noopLogger{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)
	<-w.Done()

	assert.False(t, ran2)
}

func TestWorkerPrunesLowerPriorityAfterJobCompletes(t *testing.T) {
	q := queue.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var lowerRan bool
	lower := workflow.New(workflow.Update, "UPDATE", []tasks.Task{
		fakeTask{result: tasks.Result{Success: true}, ran: &lowerRan},
	}) // priority 5 > 3

	// UPDATE arrives while RESTART runs; the task then cancels ctx so the
	// worker returns right after the prune instead of dequeuing again.
	job := workflow.New(workflow.Restart, "RESTART", []tasks.Task{
		enqueueTask{q: q, job: lower, after: cancel},
	})
	q.Enqueue(job)

	w := New(q, noopLogger{}, nil)

	go w.Run(ctx)
	<-w.Done()

	// UPDATE was pruned, not left queued and not run.
	assert.False(t, lowerRan)
	assert.Equal(t, 0, q.Len())
}

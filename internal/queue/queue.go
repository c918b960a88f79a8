// Package queue is a priority queue of workflow jobs with cascading
// cancellation: once a job finishes, every still-queued job of strictly
// lower priority is pruned, whenever it arrived. Built on
// container/heap, ordered by (priority, insertion-sequence) so ties break
// FIFO.
package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/steamrunner/steamrunner/internal/workflow"
)

// entry wraps a job with its insertion sequence so ties break FIFO rather
// than on any ordering the job value itself might expose.
type entry struct {
	job      workflow.Job
	sequence uint64
	index    int
}

// heapData implements heap.Interface over entries ordered by
// (priority ascending, sequence ascending).
type heapData []*entry

func (h heapData) Len() int { return len(h) }

func (h heapData) Less(i, j int) bool {
	if h[i].job.Priority() != h[j].job.Priority() {
		return h[i].job.Priority() < h[j].job.Priority()
	}
	return h[i].sequence < h[j].sequence
}

func (h heapData) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *heapData) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *heapData) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// pollInterval is how often a blocked Get wakes to recheck for new work: a
// short ticker rather than a per-waiter channel, appropriate for this
// queue's single consumer.
const pollInterval = 10 * time.Millisecond

// Queue is a min-priority queue of workflow jobs, synchronized for a
// single producer (scheduler, plus the engine's manual enqueue call) and a
// single consumer (worker). Safe for concurrent Enqueue/PruneLowerPriority
// calls from multiple goroutines.
type Queue struct {
	mu       sync.Mutex
	data     heapData
	sequence uint64
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue inserts job. A sentinel job first atomically drains every
// non-sentinel entry already queued, then is inserted itself, guaranteeing
// it is the last thing the worker will ever see queued ahead of any
// pre-existing non-sentinel work that has not yet been dequeued.
func (q *Queue) Enqueue(job workflow.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.IsSentinel() {
		kept := q.data[:0]
		for _, e := range q.data {
			if e.job.IsSentinel() {
				kept = append(kept, e)
			}
		}
		q.data = kept
		heap.Init(&q.data)
	}

	q.sequence++
	heap.Push(&q.data, &entry{job: job, sequence: q.sequence})
}

// Get blocks until a job is available or timeout elapses, then pops and
// returns the least-priority entry. Returns (zero, false) on timeout.
func (q *Queue) Get(timeout time.Duration) (workflow.Job, bool) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if job, ok := q.tryPop(); ok {
			return job, true
		}
		if !time.Now().Before(deadline) {
			return workflow.Job{}, false
		}
		<-ticker.C
	}
}

func (q *Queue) tryPop() (workflow.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.data.Len() == 0 {
		return workflow.Job{}, false
	}
	e := heap.Pop(&q.data).(*entry)
	return e.job, true
}

// PruneLowerPriority removes every queued entry whose priority is strictly
// greater (numerically) than base's, preserving any sentinel regardless of
// its priority. Atomic with respect to concurrent Enqueue calls.
func (q *Queue) PruneLowerPriority(base workflow.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.data[:0]
	for _, e := range q.data {
		if e.job.IsSentinel() || e.job.Priority() <= base.Priority() {
			kept = append(kept, e)
		}
	}
	q.data = kept
	heap.Init(&q.data)
}

// Peek returns the least-priority entry without removing it.
func (q *Queue) Peek() (workflow.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.data.Len() == 0 {
		return workflow.Job{}, false
	}
	return q.data[0].job, true
}

// Len returns the number of queued entries, for metrics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.data.Len()
}

package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/steamrunner/steamrunner/internal/tasks"
	"github.com/steamrunner/steamrunner/internal/workflow"
)

func job(id workflow.JobID) workflow.Job {
	return workflow.New(id, id.String(), []tasks.Task{})
}

func TestPriorityOrdering(t *testing.T) {
	q := New()
	q.Enqueue(job(workflow.Stop))   // priority 6
	q.Enqueue(job(workflow.Restart)) // priority 3

	got, ok := q.Get(time.Second)
	assert.True(t, ok)
	assert.Equal(t, workflow.Restart, got.ID)
}

func TestFIFOTieBreak(t *testing.T) {
	q := New()
	q.Enqueue(workflow.New(workflow.Start, "first", []tasks.Task{}))
	q.Enqueue(workflow.New(workflow.Start, "second", []tasks.Task{}))

	first, _ := q.Get(time.Second)
	second, _ := q.Get(time.Second)
	assert.Equal(t, "first", first.Name)
	assert.Equal(t, "second", second.Name)
}

func TestGetTimesOutOnEmptyQueue(t *testing.T) {
	q := New()
	_, ok := q.Get(50 * time.Millisecond)
	assert.False(t, ok)
}

func TestPruneLowerPriorityRemovesStrictlyLowerPriority(t *testing.T) {
	q := New()
	q.Enqueue(job(workflow.OOM))    // priority 4
	q.Enqueue(job(workflow.Update)) // priority 5
	q.Enqueue(job(workflow.Stop))   // priority 6

	q.PruneLowerPriority(job(workflow.Restart)) // priority 3: only keeps <=3

	assert.Equal(t, 0, q.Len())
}

func TestPrunePreservesEqualOrHigherPriority(t *testing.T) {
	q := New()
	q.Enqueue(job(workflow.Restart)) // priority 3
	q.Enqueue(job(workflow.OOM))     // priority 4
	q.Enqueue(job(workflow.Update))  // priority 5
	q.Enqueue(job(workflow.Stop))    // priority 6

	q.PruneLowerPriority(job(workflow.OOM)) // priority 4: keeps Restart(3) and OOM(4)

	assert.Equal(t, 2, q.Len())
	next, ok := q.Peek()
	assert.True(t, ok)
	assert.Equal(t, workflow.Restart, next.ID)
}

func TestPruneKeepsSentinel(t *testing.T) {
	q := New()
	q.Enqueue(job(workflow.Update))
	q.Enqueue(workflow.Sentinel())

	q.PruneLowerPriority(job(workflow.Start))

	assert.Equal(t, 1, q.Len())
	remaining, ok := q.Peek()
	assert.True(t, ok)
	assert.True(t, remaining.IsSentinel())
}

func TestEnqueueSentinelDrainsNonSentinelEntries(t *testing.T) {
	q := New()
	q.Enqueue(job(workflow.Start))
	q.Enqueue(job(workflow.Update))
	q.Enqueue(workflow.Sentinel())

	assert.Equal(t, 1, q.Len())
	got, ok := q.Get(time.Second)
	assert.True(t, ok)
	assert.True(t, got.IsSentinel())
}

func TestPeekDoesNotRemove(t *testing.T) {
	q := New()
	q.Enqueue(job(workflow.Start))

	peeked, ok := q.Peek()
	assert.True(t, ok)
	assert.Equal(t, workflow.Start, peeked.ID)
	assert.Equal(t, 1, q.Len())
}

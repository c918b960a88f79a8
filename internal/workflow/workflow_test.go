package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobIDStrings(t *testing.T) {
	assert.Equal(t, "START", Start.String())
	assert.Equal(t, "STOP", Stop.String())
	assert.Equal(t, "UNKNOWN", JobID(999).String())
}

func TestPriorityAssignment(t *testing.T) {
	assert.Equal(t, 1, Priority[Start])
	assert.Equal(t, 2, Priority[UpdateStart])
	assert.Equal(t, 3, Priority[Restart])
	assert.Equal(t, 4, Priority[OOM])
	assert.Equal(t, 5, Priority[Update])
	assert.Equal(t, 6, Priority[Stop])
}

func TestNewJobUsesCatalogPriority(t *testing.T) {
	job := New(Restart, "RESTART", nil)
	assert.Equal(t, 3, job.Priority())
	assert.False(t, job.IsSentinel())
	assert.Equal(t, Restart, job.ID)
}

func TestSentinelHasMaximalPriorityAndNoTasks(t *testing.T) {
	s := Sentinel()
	assert.True(t, s.IsSentinel())
	assert.Equal(t, SentinelPriority, s.Priority())
	assert.Empty(t, s.Tasks())
}

func TestNewPanicsOnUnknownJobID(t *testing.T) {
	assert.Panics(t, func() {
		New(JobID(999), "bogus", nil)
	})
}

func TestCatalogGet(t *testing.T) {
	c := Catalog{
		Start: New(Start, "START", nil),
	}
	job, ok := c.Get(Start)
	require.True(t, ok)
	assert.Equal(t, "START", job.Name)

	_, ok = c.Get(Stop)
	assert.False(t, ok)
}

package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func catalogWith(ids ...workflow.JobID) workflow.Catalog {
	c := workflow.Catalog{}
	for _, id := range ids {
		c[id] = workflow.New(id, id.String(), []tasks.Task{})
	}
	return c
}

func TestFireEnqueuesWhenPredicateTrue(t *testing.T) {
	q := queue.New()
	s := New(q, catalogWith(workflow.Start), noopLogger{})

	s.fire(Entry{
		JobID:    workflow.Start,
		Predicate: func(context.Context) (bool, error) { return true, nil },
	})

	assert.Equal(t, 1, q.Len())
}

func TestFireSkipsWhenPredicateFalse(t *testing.T) {
	q := queue.New()
	s := New(q, catalogWith(workflow.Start), noopLogger{})

	s.fire(Entry{
		JobID:    workflow.Start,
		Predicate: func(context.Context) (bool, error) { return false, nil },
	})

	assert.Equal(t, 0, q.Len())
}

func TestFireSwallowsPredicateError(t *testing.T) {
	q := queue.New()
	s := New(q, catalogWith(workflow.Start), noopLogger{})

	assert.NotPanics(t, func() {
		s.fire(Entry{
			JobID:    workflow.Start,
			Predicate: func(context.Context) (bool, error) { return false, errors.New("boom") },
		})
	})
	assert.Equal(t, 0, q.Len())
}

func TestFireSkipsUnknownCatalogEntry(t *testing.T) {
	q := queue.New()
	s := New(q, workflow.Catalog{}, noopLogger{})

	s.fire(Entry{
		JobID:    workflow.Start,
		Predicate: func(context.Context) (bool, error) { return true, nil },
	})

	assert.Equal(t, 0, q.Len())
}

func TestRegisterRejectsInvalidCronSpec(t *testing.T) {
	q := queue.New()
	s := New(q, catalogWith(workflow.Start), noopLogger{})

	err := s.Register(Entry{JobID: workflow.Start, CronSpec: "not a cron spec", Predicate: func(context.Context) (bool, error) { return true, nil }})
	require.Error(t, err)
}

func TestDefaultEntriesBuildsFourRowTable(t *testing.T) {
	always := func(context.Context) (bool, error) { return true, nil }
	entries := DefaultEntries(always, always, always, always)
	require.Len(t, entries, 4)

	ids := map[workflow.JobID]bool{}
	for _, e := range entries {
		ids[e.JobID] = true
	}
	assert.True(t, ids[workflow.Start])
	assert.True(t, ids[workflow.OOM])
	assert.True(t, ids[workflow.Update])
	assert.True(t, ids[workflow.Restart])
}

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steamrunner/steamrunner/internal/platform/logger"
	"github.com/steamrunner/steamrunner/internal/scheduler"
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

func testCatalog() workflow.Catalog {
	return workflow.Catalog{
		workflow.Start: workflow.New(workflow.Start, "START", []tasks.Task{}),
		workflow.Stop:  workflow.New(workflow.Stop, "STOP", []tasks.Task{}),
	}
}

func TestEnqueueJobReturnsFalseForUnknownID(t *testing.T) {
	e, err := New(testCatalog(), nil, noopLogger{}, nil)
	require.NoError(t, err)

	assert.False(t, e.EnqueueJob(workflow.Restart))
}

func TestEnqueueJobReturnsTrueForKnownID(t *testing.T) {
	e, err := New(testCatalog(), nil, noopLogger{}, nil)
	require.NoError(t, err)

	assert.True(t, e.EnqueueJob(workflow.Start))
}

func TestStartEnqueueStop(t *testing.T) {
	e, err := New(testCatalog(), nil, noopLogger{}, nil)
	require.NoError(t, err)

	e.Start()
	assert.True(t, e.EnqueueJob(workflow.Start))

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	e, err := New(testCatalog(), nil, noopLogger{}, nil)
	require.NoError(t, err)

	e.Start()
	e.Stop()
	assert.NotPanics(t, func() { e.Stop() })
}

func TestNewRegistersSchedulerEntries(t *testing.T) {
	fired := make(chan struct{}, 1)
	entries := []scheduler.Entry{
		{
			JobID:    workflow.Start,
			CronSpec: "* * * * *",
			Predicate: func(context.Context) (bool, error) {
				select {
				case fired <- struct{}{}:
				default:
				}
				return false, nil
			},
		},
	}

	e, err := New(testCatalog(), entries, noopLogger{}, nil)
	require.NoError(t, err)
	e.Start()
	defer e.Stop()

	assert.NotNil(t, e)
}

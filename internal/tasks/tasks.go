// Package tasks implements the smallest units of work a workflow job is
// built from: Start, Stop, Update, Countdown. Grounded on tasks.py and
// job_definitions.py's per-job countdown customization.
package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/steamrunner/steamrunner/internal/managedserver"
	"github.com/steamrunner/steamrunner/internal/wait"
)

// Result is the outcome of running a task: a success flag plus a
// human-readable message. A task that errors instead returns a non-nil
// error and a zero Result; the worker treats that as a hard failure of the
// remainder of the job.
type Result struct {
	Success bool
	Message string
}

// Task is the smallest unit of work executed by the worker.
type Task interface {
	Run(ctx context.Context) (Result, error)
}

// Start starts the managed server if it isn't already running.
type Start struct {
	Server *managedserver.Server
}

// Run implements Task.
func (t Start) Run(ctx context.Context) (Result, error) {
	if t.Server.State(ctx) == managedserver.StateRunning {
		return Result{Success: true, Message: "already running"}, nil
	}
	if err := t.Server.Start(); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: "started"}, nil
}

// Stop gracefully stops the managed server.
type Stop struct {
	Server *managedserver.Server
}

// Run implements Task.
func (t Stop) Run(ctx context.Context) (Result, error) {
	if t.Server.State(ctx) == managedserver.StateStopped {
		return Result{Success: true, Message: "already stopped"}, nil
	}
	ok := t.Server.Stop(ctx, managedserver.StopGraceful, 60*time.Second)
	return Result{Success: ok, Message: stopMessage(ok)}, nil
}

func stopMessage(ok bool) string {
	if ok {
		return "stopped"
	}
	return "stop failed"
}

// Update applies a pending server update, stopping the server first if
// necessary. Always reports success unless the underlying call panics
// (propagated to the worker as a hard error, not caught here).
type Update struct {
	Server *managedserver.Server
}

// Run implements Task.
func (t Update) Run(ctx context.Context) (Result, error) {
	t.Server.Update(ctx)
	return Result{Success: true, Message: "update complete"}, nil
}

// DefaultCheckpoints are the announcement checkpoints (in seconds,
// descending) used when a Countdown task is not given its own.
var DefaultCheckpoints = []int{300, 60, 30, 15}

// Countdown announces the time remaining until an action, at the start of
// the countdown and at each checkpoint crossed, sleeping in up-to-15s
// increments until the delay elapses.
type Countdown struct {
	Server       *managedserver.Server
	Clock        *wait.Clock
	Title        string
	DelaySeconds int
	Checkpoints  []int
}

// Run implements Task.
func (t Countdown) Run(ctx context.Context) (Result, error) {
	checkpoints := t.Checkpoints
	if len(checkpoints) == 0 {
		checkpoints = DefaultCheckpoints
	}
	pending := effectiveCheckpoints(t.DelaySeconds, checkpoints)

	remaining := t.DelaySeconds
	for remaining > 0 {
		for len(pending) > 0 && remaining <= pending[0] {
			t.Server.Announce(ctx, formatAnnouncement(t.Title, remaining))
			pending = pending[1:]
		}

		sleep := 15
		if remaining < sleep {
			sleep = remaining
		}
		t.Clock.Sleep(ctx, time.Duration(sleep)*time.Second)
		remaining -= sleep
	}

	return Result{Success: true, Message: "countdown complete"}, nil
}

// effectiveCheckpoints merges delaySeconds in as an implicit leading
// checkpoint (the countdown always announces its own start) with the
// caller's checkpoints, deduplicated and sorted strictly descending,
// dropping anything above delaySeconds.
func effectiveCheckpoints(delaySeconds int, checkpoints []int) []int {
	seen := map[int]bool{}
	merged := make([]int, 0, len(checkpoints)+1)
	for _, c := range append([]int{delaySeconds}, checkpoints...) {
		if c <= 0 || c > delaySeconds || seen[c] {
			continue
		}
		seen[c] = true
		merged = append(merged, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(merged)))
	return merged
}

func formatAnnouncement(title string, remaining int) string {
	value, unit := formatDuration(remaining)
	return fmt.Sprintf("[%s] restarting in %d %s", title, value, unit)
}

func formatDuration(remaining int) (int, string) {
	if remaining >= 60 {
		minutes := remaining / 60
		if minutes == 1 {
			return minutes, "minute"
		}
		return minutes, "minutes"
	}
	if remaining == 1 {
		return remaining, "second"
	}
	return remaining, "seconds"
}

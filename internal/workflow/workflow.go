// Package workflow defines the job catalog: job identities, their fixed
// priorities, and the ordered task sequences that make up each job.
// Grounded on job_definitions.py, rendered without its schedule/predicate
// fields (see internal/scheduler, which owns the trigger table).
package workflow

import "github.com/steamrunner/steamrunner/internal/tasks"

// JobID is the closed set of workflow job identities.
type JobID int

const (
	// Start brings the server up if it isn't already running.
	Start JobID = iota
	// UpdateStart applies a pending update, then starts the server.
	UpdateStart
	// Restart performs a countdown, stop, and start for a scheduled restart.
	Restart
	// OOM performs a countdown, stop, and start in response to high memory use.
	OOM
	// Update performs a countdown, stop, update, and start for a pending build.
	Update
	// Stop brings the server down.
	Stop
)

func (id JobID) String() string {
	switch id {
	case Start:
		return "START"
	case UpdateStart:
		return "UPDATE_START"
	case Restart:
		return "RESTART"
	case OOM:
		return "OOM"
	case Update:
		return "UPDATE"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Priority assigns each JobID its fixed priority. Smaller values sort
// first; a sentinel job's priority is always considered to exceed every
// real job's priority.
var Priority = map[JobID]int{
	Start:       1,
	UpdateStart: 2,
	Restart:     3,
	OOM:         4,
	Update:      5,
	Stop:        6,
}

// SentinelPriority exceeds every real job's priority, per the data model's
// requirement that a sentinel compares strictly greater than any real job.
const SentinelPriority = int(^uint(0) >> 1)

// Job is an ordered, named sequence of tasks at a fixed priority. Tasks is
// immutable after construction — callers must not mutate the slice
// returned by Tasks.
type Job struct {
	ID         JobID
	Name       string
	priority   int
	tasks      []tasks.Task
	isSentinel bool
}

// New builds a real (non-sentinel) job from the catalog's fixed priority
// table. Panics if id is not a known JobID — this is a programmer error,
// not a runtime condition.
func New(id JobID, name string, taskList []tasks.Task) Job {
	priority, ok := Priority[id]
	if !ok {
		panic("workflow: unknown job id")
	}
	frozen := make([]tasks.Task, len(taskList))
	copy(frozen, taskList)
	return Job{ID: id, Name: name, priority: priority, tasks: frozen}
}

// Sentinel returns a job used only to signal queue shutdown: empty task
// list, maximal priority, delivered regardless of ordering once present.
func Sentinel() Job {
	return Job{Name: "SENTINEL", priority: SentinelPriority, isSentinel: true}
}

// Priority returns the job's fixed priority (lower sorts first).
func (j Job) Priority() int { return j.priority }

// Tasks returns the job's ordered task list. The returned slice must not
// be mutated by callers; Job does not defensively copy on every read.
func (j Job) Tasks() []tasks.Task { return j.tasks }

// IsSentinel reports whether this job is the queue-shutdown sentinel.
func (j Job) IsSentinel() bool { return j.isSentinel }

// Catalog maps every JobID to its built Job. Constructed once at engine
// startup and never mutated afterward.
type Catalog map[JobID]Job

// Get returns the job registered for id and whether it was found.
func (c Catalog) Get(id JobID) (Job, bool) {
	job, ok := c[id]
	return job, ok
}

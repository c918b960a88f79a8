// Package process owns a single child OS process: launch, graceful
// terminate with escalation to a recursive kill, liveness, exit code, and
// memory share of host RAM. Grounded on managed_process.py, ported to
// os/exec + gopsutil/v3 process-tree walking for the recursive kill that
// Python got for free from psutil.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"
)

// ErrAlreadyRunning is returned by Start when a prior handle is still alive.
var ErrAlreadyRunning = errors.New("process: already running")

// Managed owns exactly one child process handle at a time. The handle
// transitions none -> alive -> none and is never aliased across Managed
// values.
type Managed struct {
	command []string
	dir     string
	env     []string

	mu       sync.Mutex
	cmd      *exec.Cmd
	exitCode *int
}

// New builds a Managed process for the given command line. args[0] is the
// executable; the remaining entries are passed verbatim as arguments.
func New(args []string, dir string, env []string) *Managed {
	return &Managed{command: args, dir: dir, env: env}
}

// Start launches the configured command line in its own process group so
// that Terminate/Kill can target the whole tree, not just the direct child.
func (m *Managed) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd != nil && m.isRunningLocked() {
		return ErrAlreadyRunning
	}

	if len(m.command) == 0 {
		return errors.New("process: empty command")
	}

	cmd := exec.Command(m.command[0], m.command[1:]...)
	cmd.Dir = m.dir
	if len(m.env) > 0 {
		cmd.Env = m.env
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("process: start: %w", err)
	}

	m.cmd = cmd
	m.exitCode = nil

	go m.reap(cmd)

	return nil
}

// reap waits for the process to exit off the caller's goroutine so
// IsRunning/ExitCode observe an accurate state without blocking Start.
func (m *Managed) reap(cmd *exec.Cmd) {
	err := cmd.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != cmd {
		return
	}
	code := cmd.ProcessState.ExitCode()
	if err != nil && code < 0 {
		code = -1
	}
	m.exitCode = &code
}

// Terminate sends a polite termination signal to the process group, waits
// up to timeout, and escalates to Kill if the process is still alive.
// Idempotent; a no-op if nothing is running.
func (m *Managed) Terminate(ctx context.Context, timeout time.Duration) error {
	m.mu.Lock()
	cmd := m.cmd
	m.mu.Unlock()

	if cmd == nil || !m.IsRunning() {
		return nil
	}

	pgid := cmd.Process.Pid
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	deadline := time.Now().Add(timeout)
	for m.IsRunning() && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return m.Kill()
		case <-time.After(100 * time.Millisecond):
		}
	}

	if m.IsRunning() {
		return m.Kill()
	}
	return nil
}

// Kill recursively and forcibly terminates the entire process tree rooted
// at the child, including grandchildren spawned by the game server. It must
// not error on "already gone".
func (m *Managed) Kill() error {
	m.mu.Lock()
	cmd := m.cmd
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	root, err := gopsprocess.NewProcess(int32(cmd.Process.Pid))
	if err == nil {
		children, _ := root.Children()
		for _, child := range children {
			killTree(child)
		}
	}

	_ = cmd.Process.Kill()
	return nil
}

func killTree(p *gopsprocess.Process) {
	children, _ := p.Children()
	for _, child := range children {
		killTree(child)
	}
	_ = p.Kill()
}

// IsRunning reports whether the handle exists and the OS has not yet
// reported the child as exited.
func (m *Managed) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunningLocked()
}

func (m *Managed) isRunningLocked() bool {
	if m.cmd == nil {
		return false
	}
	return m.exitCode == nil
}

// ExitCode returns the last observed exit code, or (0, false) if the
// process never finished.
func (m *Managed) ExitCode() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exitCode == nil {
		return 0, false
	}
	return *m.exitCode, true
}

// MemoryPercent returns the current RSS as a percent of host RAM, or 0.0 if
// no process is running.
func (m *Managed) MemoryPercent() float64 {
	m.mu.Lock()
	cmd := m.cmd
	running := m.isRunningLocked()
	m.mu.Unlock()

	if !running || cmd == nil || cmd.Process == nil {
		return 0.0
	}

	proc, err := gopsprocess.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		return 0.0
	}
	pct, err := proc.MemoryPercent()
	if err != nil {
		return 0.0
	}
	return float64(pct)
}

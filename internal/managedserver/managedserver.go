// Package managedserver composes a process, a version probe, and a
// control-API client into one managed game server: derived state, stop
// escalation, and update-in-place. Grounded on managed_game_server.py.
package managedserver

import (
	"context"
	"time"

	"github.com/steamrunner/steamrunner/internal/platform/logger"
	"github.com/steamrunner/steamrunner/internal/process"
	"github.com/steamrunner/steamrunner/internal/serverapi"
	"github.com/steamrunner/steamrunner/internal/version"
	"github.com/steamrunner/steamrunner/internal/wait"
)

// StopMode selects how Stop attempts to bring the server down.
type StopMode int

const (
	// StopGraceful saves and requests an API shutdown before escalating
	// to a forced kill if the server doesn't stop in time.
	StopGraceful StopMode = iota
	// StopForce terminates the process at the OS level without API calls:
	// SIGTERM to the process group, escalating to a kill if it persists.
	StopForce
)

// State is the derived (process-alive x API-healthy) server state.
type State int

const (
	// StateRunning: process alive and control API responsive.
	StateRunning State = iota
	// StateUnresponsive: process alive but control API not responding.
	StateUnresponsive
	// StateStopped: process not running.
	StateStopped
	// StateUnknown: state could not be determined.
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateUnresponsive:
		return "UNRESPONSIVE"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// outOfMemoryThreshold is the RSS-as-percent-of-host-RAM watermark above
// which a server is considered to be at risk of OOM.
const outOfMemoryThreshold = 80.0

// Server manages one game server instance's process lifecycle and API
// interactions.
type Server struct {
	Process *process.Managed
	API     *serverapi.Client
	Version *version.Probe
	Wait    *wait.Clock
	Log     logger.Logger
}

// New builds a Server from its collaborators.
func New(proc *process.Managed, api *serverapi.Client, ver *version.Probe, clock *wait.Clock, log logger.Logger) *Server {
	return &Server{Process: proc, API: api, Version: ver, Wait: clock, Log: log}
}

// State derives the server's current state from process liveness and API
// health. A nil or absent API client is treated as never responsive.
func (s *Server) State(ctx context.Context) State {
	if !s.Process.IsRunning() {
		return StateStopped
	}
	if s.API == nil || !s.API.HealthCheck(ctx) {
		return StateUnresponsive
	}
	return StateRunning
}

// IsOutOfMemory reports whether the process's RSS share of host RAM is at
// or above the out-of-memory watermark.
func (s *Server) IsOutOfMemory() bool {
	return s.Process.MemoryPercent() >= outOfMemoryThreshold
}

// Start launches the server process if it isn't already running.
func (s *Server) Start() error {
	if s.Process.IsRunning() {
		s.Log.Warn("server already running")
		return nil
	}
	return s.Process.Start()
}

// Stop brings the server down per mode. GRACEFUL attempts an API-driven
// shutdown first and escalates to a forced kill if the server doesn't stop
// within timeout; FORCE terminates the process directly (process.Terminate,
// which itself escalates to a kill).
func (s *Server) Stop(ctx context.Context, mode StopMode, timeout time.Duration) bool {
	if s.State(ctx) == StateStopped {
		s.Log.Info("server already stopped")
		return true
	}

	if mode == StopForce {
		return s.stopForcefully(ctx, timeout)
	}

	if s.stopGracefully(ctx, timeout) {
		return true
	}

	s.Log.Warn("graceful shutdown failed; forcing stop")
	return s.stopForcefully(ctx, 30*time.Second)
}

func (s *Server) stopGracefully(ctx context.Context, timeout time.Duration) bool {
	state := s.State(ctx)
	if state == StateStopped {
		return true
	}
	if state != StateRunning {
		s.Log.Warn("server not responsive; cannot stop gracefully")
		return false
	}

	s.Log.Debug("saving server state before graceful shutdown")
	if err := s.API.Save(ctx); err != nil {
		s.Log.Error("save before shutdown failed", "error", err)
	}

	s.Log.Info("requesting graceful shutdown via API")
	if err := s.API.Shutdown(ctx, "Server shutting down", 5); err != nil {
		s.Log.Error("shutdown request failed", "error", err)
	}

	stopped, _ := s.Wait.Until(ctx, func() (bool, error) {
		return !s.Process.IsRunning(), nil
	}, timeout, time.Second)

	if stopped {
		s.Log.Info("server stopped successfully")
		return true
	}
	return false
}

func (s *Server) stopForcefully(ctx context.Context, timeout time.Duration) bool {
	if s.State(ctx) == StateStopped {
		return true
	}

	s.Log.Info("force stopping server process")
	_ = s.Process.Terminate(ctx, timeout)

	stopped, _ := s.Wait.Until(ctx, func() (bool, error) {
		return !s.Process.IsRunning(), nil
	}, timeout, time.Second)

	if stopped {
		s.Log.Info("server force-stopped successfully")
		return true
	}
	s.Log.Error("failed to force-stop server")
	return false
}

// UpdateAvailable reports whether a newer build is published upstream.
func (s *Server) UpdateAvailable(ctx context.Context) bool {
	return s.Version.UpdateAvailable(ctx)
}

// Update stops the server (if running) and applies a pending update.
// Safe to call at any time; a no-op if no update is available.
func (s *Server) Update(ctx context.Context) {
	if !s.Version.UpdateAvailable(ctx) {
		s.Log.Debug("no server update available")
		return
	}

	s.Log.Info("server update available")
	s.Stop(ctx, StopGraceful, 60*time.Second)

	s.Log.Info("applying server update")
	s.Version.Apply(ctx)
}

// Announce sends a broadcast message, skipping it if the server isn't
// running. Returns whether the announcement was sent.
func (s *Server) Announce(ctx context.Context, message string) bool {
	if s.State(ctx) != StateRunning {
		s.Log.Debug("skipping announce; server not running")
		return false
	}
	if err := s.API.Announce(ctx, message); err != nil {
		s.Log.Error("announce failed", "error", err)
	}
	return true
}

// Command steamrunner supervises a single external game-server process:
// it keeps it running, patched, and within its memory budget by reconciling
// desired state against observed state through prioritized workflow jobs.
// Startup follows the familiar shape for a long-lived Go service: load
// config -> build logger -> build server -> run -> wait on signal channel
// -> bounded graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	runnerconfig "github.com/steamrunner/steamrunner/internal/config"
	"github.com/steamrunner/steamrunner/internal/engine"
	"github.com/steamrunner/steamrunner/internal/installresolver"
	"github.com/steamrunner/steamrunner/internal/managedserver"
	"github.com/steamrunner/steamrunner/internal/platform/config"
	"github.com/steamrunner/steamrunner/internal/platform/health"
	"github.com/steamrunner/steamrunner/internal/platform/logger"
	"github.com/steamrunner/steamrunner/internal/platform/metrics"
	"github.com/steamrunner/steamrunner/internal/process"
	"github.com/steamrunner/steamrunner/internal/scheduler"
	"github.com/steamrunner/steamrunner/internal/serverapi"
	"github.com/steamrunner/steamrunner/internal/tasks"
	"github.com/steamrunner/steamrunner/internal/version"
	"github.com/steamrunner/steamrunner/internal/wait"
	"github.com/steamrunner/steamrunner/internal/workflow"
)

func main() {
	root := &cobra.Command{
		Use:                "steamrunner",
		Short:              "Supervises a Steam dedicated game server: keeps it running, patched, and healthy",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

func run(args []string) error {
	serverCfg, err := runnerconfig.Parse(args)
	if err != nil {
		return err
	}

	ambientCfg, err := config.Load("steamrunner")
	if err != nil {
		return fmt.Errorf("ambient config: %w", err)
	}

	log := logger.New(ambientCfg.Logger)
	log.Info("steamrunner starting", "app_id", serverCfg.AppID, "version", ambientCfg.Version)

	execPath, err := installresolver.Resolve(serverCfg.SteamPath, serverCfg.InstallDir, serverCfg.AppID)
	if err != nil {
		return fmt.Errorf("resolve install path: %w", err)
	}
	log.Info("resolved game executable", "path", execPath)

	var auth serverapi.Auth
	switch serverCfg.AuthType {
	case runnerconfig.AuthToken:
		auth = serverapi.BearerAuth{Token: serverCfg.APIToken}
	default:
		auth = serverapi.BasicAuth{Username: serverCfg.APIUsername, Password: serverCfg.APIPassword}
	}

	proc := process.New(append([]string{execPath}, serverCfg.GameArgs...), "", nil)
	api := serverapi.New(serverCfg.APIBaseURL, auth, 10*time.Second)
	probe := version.New(serverCfg.AppID)
	clock := wait.New()
	server := managedserver.New(proc, api, probe, clock, log)

	m := metrics.NewMetrics("steamrunner")
	catalog := buildCatalog(server, clock)
	entries := scheduler.DefaultEntries(
		predicateNotRunning(server),
		predicateOutOfMemory(server),
		predicateUpdateAvailable(server),
		predicateRunning(server),
	)

	eng, err := engine.New(catalog, entries, log, m)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	httpSrv := startObservabilityServer(ambientCfg.HTTP.Port, m, server, log)
	defer httpSrv.Close()

	samplerCtx, stopSampler := context.WithCancel(context.Background())
	defer stopSampler()
	go sampleMetrics(samplerCtx, server, m)

	eng.Start()
	eng.EnqueueJob(workflow.UpdateStart)

	waitForShutdown(log)
	stopSampler()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	server.Stop(shutdownCtx, managedserver.StopForce, 30*time.Second)
	eng.Stop()

	log.Info("steamrunner stopped")
	return nil
}

func waitForShutdown(log logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
}

func buildCatalog(server *managedserver.Server, clock *wait.Clock) workflow.Catalog {
	countdown := func(title string, delaySeconds int, checkpoints []int) tasks.Countdown {
		return tasks.Countdown{Server: server, Clock: clock, Title: title, DelaySeconds: delaySeconds, Checkpoints: checkpoints}
	}

	start := tasks.Start{Server: server}
	stop := tasks.Stop{Server: server}
	update := tasks.Update{Server: server}

	return workflow.Catalog{
		workflow.Start: workflow.New(workflow.Start, "START", []tasks.Task{start}),
		workflow.UpdateStart: workflow.New(workflow.UpdateStart, "UPDATE_START", []tasks.Task{
			update, start,
		}),
		workflow.Restart: workflow.New(workflow.Restart, "RESTART", []tasks.Task{
			countdown("Restarting", 900, tasks.DefaultCheckpoints),
			stop, start,
		}),
		workflow.OOM: workflow.New(workflow.OOM, "OOM", []tasks.Task{
			countdown("High memory usage, restarting", 60, []int{30, 15}),
			stop, start,
		}),
		workflow.Update: workflow.New(workflow.Update, "UPDATE", []tasks.Task{
			countdown("Update available, restarting", 900, tasks.DefaultCheckpoints),
			stop, update, start,
		}),
		workflow.Stop: workflow.New(workflow.Stop, "STOP", []tasks.Task{stop}),
	}
}

func predicateNotRunning(server *managedserver.Server) scheduler.Predicate {
	return func(ctx context.Context) (bool, error) {
		return server.State(ctx) != managedserver.StateRunning, nil
	}
}

func predicateRunning(server *managedserver.Server) scheduler.Predicate {
	return func(ctx context.Context) (bool, error) {
		return server.State(ctx) == managedserver.StateRunning, nil
	}
}

func predicateOutOfMemory(server *managedserver.Server) scheduler.Predicate {
	return func(ctx context.Context) (bool, error) {
		return server.IsOutOfMemory(), nil
	}
}

func predicateUpdateAvailable(server *managedserver.Server) scheduler.Predicate {
	return func(ctx context.Context) (bool, error) {
		return server.UpdateAvailable(ctx), nil
	}
}

// serverStates lists every managedserver.State label so sampleMetrics can
// zero out the ones not currently active (Metrics.SetServerState expects
// the full known set).
var serverStates = []string{
	managedserver.StateRunning.String(),
	managedserver.StateUnresponsive.String(),
	managedserver.StateStopped.String(),
	managedserver.StateUnknown.String(),
}

// sampleMetrics periodically refreshes the gauges that aren't naturally
// updated by job execution: derived server state, process memory share,
// and host-wide memory (observability only; it does not feed the OOM
// predicate, see managedserver.Server.IsOutOfMemory).
func sampleMetrics(ctx context.Context, server *managedserver.Server, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	sample := func() {
		m.SetServerState(server.State(ctx).String(), serverStates...)
		m.ProcessMemory.Set(server.Process.MemoryPercent())
		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
			m.HostMemory.Set(vm.UsedPercent)
		}
	}

	sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}

// startObservabilityServer serves /healthz, /readyz and /metrics; it is the
// engine's only inbound HTTP surface (no control-plane API).
func startObservabilityServer(port int, m *metrics.Metrics, server *managedserver.Server, log logger.Logger) *http.Server {
	handler := health.NewHandler("steamrunner", "")
	handler.AddCheck("managed-server", func(ctx context.Context) error {
		if server.State(ctx) == managedserver.StateUnknown {
			return fmt.Errorf("managed server state unknown")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/healthz", logger.HTTPMiddleware(log)(handler.LivenessHandler()))
	mux.Handle("/readyz", logger.HTTPMiddleware(log)(handler.ReadinessHandler()))
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("observability server stopped", "error", err)
		}
	}()
	return srv
}

// Package version probes the installed and upstream Steam build ids for an
// app and applies updates via steamcmd. Grounded on version_manager.py.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/steamrunner/steamrunner/internal/platform/resilience"
)

var buildIDPattern = regexp.MustCompile(`BuildID\s+(\d+)`)

// Runner executes a named command with arguments and returns its stdout
// and exit code. It is an interface so tests can stub steamcmd without a real
// Steam install.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, exitCode int, err error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run implements Runner using os/exec.CommandContext.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}
	return string(out), code, err
}

// Probe checks current vs. upstream build ids for a Steam app id.
type Probe struct {
	AppID      int
	Runner     Runner
	HTTPClient *retryablehttp.Client
	Breaker    *resilience.CircuitBreaker
}

// New builds a Probe with production defaults: a real steamcmd runner, a
// retrying HTTP client for the steamcmd.net lookup, and a circuit breaker
// around that lookup so a sustained steamcmd.net outage stops costing a
// full retry budget on every scheduler tick.
func New(appID int) *Probe {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	return &Probe{
		AppID:      appID,
		Runner:     ExecRunner{},
		HTTPClient: client,
		Breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("steamcmd-latest")),
	}
}

// Current returns the installed build id by invoking steamcmd and scanning
// its output for "BuildID <n>". Returns (0, false) on parse/tool failure.
func (p *Probe) Current(ctx context.Context) (int, bool) {
	out, _, err := p.Runner.Run(ctx, "steamcmd",
		"+login", "anonymous",
		"+app_info_update", "1",
		"+app_status", strconv.Itoa(p.AppID),
		"+quit",
	)
	if err != nil {
		return 0, false
	}

	match := buildIDPattern.FindStringSubmatch(out)
	if match == nil {
		return 0, false
	}

	id, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

type steamcmdInfoResponse struct {
	Data map[string]struct {
		Depots struct {
			Branches struct {
				Public struct {
					BuildID string `json:"buildid"`
				} `json:"public"`
			} `json:"branches"`
		} `json:"depots"`
	} `json:"data"`
}

// Latest fetches the upstream build id from api.steamcmd.net. Returns
// (0, false) on network/validation failure, or immediately if the circuit
// breaker around this endpoint is open from recent failures.
func (p *Probe) Latest(ctx context.Context) (int, bool) {
	var id int
	var ok bool

	err := p.Breaker.Execute(ctx, func() error {
		var fetchErr error
		id, ok, fetchErr = p.fetchLatest(ctx)
		return fetchErr
	})
	if err != nil {
		return 0, false
	}
	return id, ok
}

func (p *Probe) fetchLatest(ctx context.Context) (int, bool, error) {
	url := fmt.Sprintf("https://api.steamcmd.net/v1/info/%d", p.AppID)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, false, fmt.Errorf("version: steamcmd.net status %d", resp.StatusCode)
	}

	var body steamcmdInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false, err
	}

	entry, ok := body.Data[strconv.Itoa(p.AppID)]
	if !ok {
		return 0, false, nil
	}

	buildID := entry.Depots.Branches.Public.BuildID
	if buildID == "" {
		return 0, false, nil
	}

	id, err := strconv.Atoi(buildID)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// UpdateAvailable reports whether current and latest are both known and
// differ. Unknown values default to "no update available".
func (p *Probe) UpdateAvailable(ctx context.Context) bool {
	current, ok := p.Current(ctx)
	if !ok {
		return false
	}
	latest, ok := p.Latest(ctx)
	if !ok {
		return false
	}
	return current != latest
}

// Apply runs the steamcmd update/validate command and reports success iff
// the tool exits 0.
func (p *Probe) Apply(ctx context.Context) bool {
	_, code, err := p.Runner.Run(ctx, "steamcmd",
		"+login", "anonymous",
		"+app_update", strconv.Itoa(p.AppID), "validate",
		"+quit",
	)
	return err == nil && code == 0
}

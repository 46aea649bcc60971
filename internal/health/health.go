// Package health exposes liveness and readiness probes for the daemon.
// Components register a check; the aggregate is served next to the
// telemetry endpoint.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is a component's health state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"lastChecked"`
}

// Check probes one component. It must be fast; checks run inline with
// the HTTP request under a shared timeout.
type Check func(ctx context.Context) CheckResult

// Healthy is a convenience result.
func Healthy() CheckResult {
	return CheckResult{Status: StatusHealthy, LastChecked: time.Now().UTC()}
}

// Unhealthy is a convenience result with a reason.
func Unhealthy(msg string) CheckResult {
	return CheckResult{Status: StatusUnhealthy, Message: msg, LastChecked: time.Now().UTC()}
}

// Degraded is a convenience result with a reason.
func Degraded(msg string) CheckResult {
	return CheckResult{Status: StatusDegraded, Message: msg, LastChecked: time.Now().UTC()}
}

type component struct {
	check    Check
	critical bool
}

// Checker aggregates component checks. Zero value is not usable; use
// NewChecker.
type Checker struct {
	mu         sync.RWMutex
	components map[string]component
	ready      bool
	startTime  time.Time
	timeout    time.Duration
}

// NewChecker creates an empty checker. The daemon calls SetReady once
// startup completes.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]component),
		startTime:  time.Now().UTC(),
		timeout:    5 * time.Second,
	}
}

// Register adds a named check. A failing critical check makes the
// aggregate unhealthy; a failing non-critical check only degrades it.
func (c *Checker) Register(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = component{check: check, critical: critical}
}

// SetReady flips the readiness probe.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// Ready reports whether the daemon finished starting up.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Report is the aggregate health payload.
type Report struct {
	Status        Status                 `json:"status"`
	UptimeSeconds int64                  `json:"uptimeSeconds"`
	Components    map[string]CheckResult `json:"components"`
}

// RunChecks evaluates every registered check and aggregates the result.
func (c *Checker) RunChecks(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	components := make(map[string]component, len(c.components))
	for name, comp := range c.components {
		components[name] = comp
	}
	start := c.startTime
	c.mu.RUnlock()

	report := Report{
		Status:        StatusHealthy,
		UptimeSeconds: int64(time.Since(start).Seconds()),
		Components:    make(map[string]CheckResult, len(components)),
	}

	for name, comp := range components {
		res := comp.check(ctx)
		report.Components[name] = res

		switch res.Status {
		case StatusUnhealthy:
			if comp.critical {
				report.Status = StatusUnhealthy
			} else if report.Status != StatusUnhealthy {
				report.Status = StatusDegraded
			}
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}

	return report
}

// Handler serves GET /healthz with the aggregate report. Returns 503
// only when a critical component is down.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.RunChecks(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})
}

// ReadyHandler serves GET /readyz: 200 once SetReady(true), 503 before.
func (c *Checker) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if c.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting\n"))
	})
}

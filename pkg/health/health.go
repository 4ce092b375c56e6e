// Package health runs dependency checks (post store, cache store, index)
// concurrently and serves liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status is the state of one dependency or of the service overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// DefaultCheckTimeout bounds each check run by Run.
const DefaultCheckTimeout = 2 * time.Second

// Check reports the state of a single dependency. It must honour ctx.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the outcome of one Run. Status is the worst component status.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Ready reports whether the service should receive traffic. A degraded
// service, for example one serving from the in-process cache, is ready.
func (r Report) Ready() bool {
	return r.Status != StatusDown
}

// Checker holds the registered checks of one service.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: DefaultCheckTimeout,
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// SetCheckTimeout changes the per-check deadline. Non-positive values
// restore DefaultCheckTimeout.
func (c *Checker) SetCheckTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultCheckTimeout
	}
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Run executes every check concurrently, each under its own deadline. A
// check that overruns is reported down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		names = append(names, name)
		checks[name] = check
	}
	timeout := c.timeout
	c.mu.RUnlock()
	sort.Strings(names)

	type result struct {
		name   string
		health ComponentHealth
	}
	results := make(chan result, len(names))
	for _, name := range names {
		go func(name string, check Check) {
			results <- result{name, c.runOne(ctx, name, check, timeout)}
		}(name, checks[name])
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(names)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	for range names {
		r := <-results
		report.Components[r.name] = r.health
		if r.health.Status.rank() > report.Status.rank() {
			report.Status = r.health.Status
		}
	}
	return report
}

func (c *Checker) runOne(ctx context.Context, name string, check Check, timeout time.Duration) ComponentHealth {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan ComponentHealth, 1)
	go func() { done <- check(checkCtx) }()

	var h ComponentHealth
	select {
	case h = <-done:
	case <-checkCtx.Done():
		h = ComponentHealth{Status: StatusDown, Message: fmt.Sprintf("check timed out after %v", timeout)}
	}
	h.Latency = time.Since(start).Round(time.Millisecond).String()
	if h.Status != StatusUp {
		c.logger.Warn("health check not up", "check", name, "status", h.Status, "message", h.Message)
	}
	return h
}

// PingCheck adapts a ping function. A failing ping reports failStatus so
// optional dependencies can degrade instead of failing readiness.
func PingCheck(ping func(ctx context.Context) error, failStatus Status) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: failStatus, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Static always reports status with message.
func Static(status Status, message string) Check {
	return func(context.Context) ComponentHealth {
		return ComponentHealth{Status: status, Message: message}
	}
}

// LiveHandler answers 200 while the process is serving HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler runs every check and answers 503 only when one is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		code := http.StatusOK
		if !report.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

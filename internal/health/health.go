// Package health reports whether the daemon's components are working.
//
// A Checker runs registered checks concurrently and aggregates them into a
// single Status. Handlers expose liveness, readiness and a detailed report
// over HTTP alongside the metrics endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"keybowd/internal/clock"
)

// Status is the health of a component or of the whole daemon.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 2 * time.Second

// Result is the outcome of one check.
type Result struct {
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ns"`
}

// Check inspects one component.
type Check func(ctx context.Context) Result

type component struct {
	name     string
	critical bool
	check    Check
	timeout  time.Duration
}

// Checker holds the registered checks and their latest results.
type Checker struct {
	clock clock.Clock
	start time.Time

	mu         sync.RWMutex
	components map[string]*component
	results    map[string]Result
	ready      bool
}

// NewChecker creates an empty Checker. A nil clock uses the wall clock.
func NewChecker(clk clock.Clock) *Checker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Checker{
		clock:      clk,
		start:      clk.Now(),
		components: make(map[string]*component),
		results:    make(map[string]Result),
	}
}

// Register adds a check. A failing critical check makes the daemon unhealthy;
// a failing non-critical one only degrades it.
func (c *Checker) Register(name string, critical bool, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = &component{
		name:     name,
		critical: critical,
		check:    check,
		timeout:  DefaultTimeout,
	}
	c.results[name] = Result{Status: StatusUnknown}
}

// Unregister removes a check.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.components, name)
	delete(c.results, name)
}

// SetReady marks the daemon as accepting key events.
func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// Ready reports the readiness flag.
func (c *Checker) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Check runs every registered check and stores the results.
func (c *Checker) Check(ctx context.Context) map[string]Result {
	c.mu.RLock()
	comps := make([]*component, 0, len(c.components))
	for _, comp := range c.components {
		comps = append(comps, comp)
	}
	c.mu.RUnlock()

	results := make(map[string]Result, len(comps))
	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	for _, comp := range comps {
		comp := comp
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.run(ctx, comp)
			rmu.Lock()
			results[comp.name] = res
			rmu.Unlock()
		}()
	}
	wg.Wait()

	c.mu.Lock()
	for name, res := range results {
		if _, ok := c.components[name]; ok {
			c.results[name] = res
		}
	}
	c.mu.Unlock()
	return results
}

// run executes one check with a timeout and panic recovery.
func (c *Checker) run(ctx context.Context, comp *component) Result {
	ctx, cancel := context.WithTimeout(ctx, comp.timeout)
	defer cancel()

	start := c.clock.Now()
	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Result{Status: StatusUnhealthy, Message: "check panicked", Error: fmt.Sprint(r)}
			}
		}()
		done <- comp.check(ctx)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Result{Status: StatusUnhealthy, Message: "check timed out", Error: ctx.Err().Error()}
	}
	res.LastChecked = start
	res.Duration = c.clock.Now().Sub(start)
	return res
}

// Results returns a copy of the latest results.
func (c *Checker) Results() map[string]Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Result, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// Status aggregates the latest results.
func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	unknown, degraded := false, false
	for name, res := range c.results {
		comp := c.components[name]
		switch res.Status {
		case StatusUnhealthy:
			if comp.critical {
				return StatusUnhealthy
			}
			degraded = true
		case StatusDegraded:
			degraded = true
		case StatusUnknown:
			if comp.critical {
				unknown = true
			}
		}
	}
	switch {
	case unknown:
		return StatusUnknown
	case degraded:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Report is the body of the detailed health endpoint.
type Report struct {
	Status     Status            `json:"status"`
	Ready      bool              `json:"ready"`
	Uptime     string            `json:"uptime"`
	Components map[string]Result `json:"components,omitempty"`
	Failing    []string          `json:"failing,omitempty"`
}

// Report runs every check and summarises the outcome.
func (c *Checker) Report(ctx context.Context) Report {
	results := c.Check(ctx)

	var failing []string
	for name, res := range results {
		if res.Status != StatusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	return Report{
		Status:     c.Status(),
		Ready:      c.Ready(),
		Uptime:     c.clock.Now().Sub(c.start).Truncate(time.Second).String(),
		Components: results,
		Failing:    failing,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// LivenessHandler answers 200 while the process is serving.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})
}

// ReadinessHandler answers 503 until SetReady(true) and while any critical
// check fails.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "ready": false})
			return
		}
		c.Check(r.Context())
		status := c.Status()
		code := http.StatusOK
		if status == StatusUnhealthy || status == StatusUnknown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{"status": status, "ready": true})
	})
}

// HealthHandler answers with the full Report.
func (c *Checker) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rep := c.Report(r.Context())
		code := http.StatusOK
		if rep.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	})
}

// Routes returns the health endpoints keyed by path.
func (c *Checker) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		"/livez":   c.LivenessHandler(),
		"/readyz":  c.ReadinessHandler(),
		"/healthz": c.HealthHandler(),
	}
}

// ErrNotRunning is reported by Running when the component has stopped.
var ErrNotRunning = errors.New("not running")

// Ping turns a connectivity probe into a Check.
func Ping(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) Result {
		if err := ping(ctx); err != nil {
			return Result{Status: StatusUnhealthy, Message: "ping failed", Error: err.Error()}
		}
		return Result{Status: StatusHealthy}
	}
}

// Running reports healthy while running returns true.
func Running(running func() bool) Check {
	return func(ctx context.Context) Result {
		if !running() {
			return Result{Status: StatusUnhealthy, Error: ErrNotRunning.Error()}
		}
		return Result{Status: StatusHealthy}
	}
}

// Threshold degrades once value exceeds limit.
func Threshold(what string, value func() int64, limit int64) Check {
	return func(ctx context.Context) Result {
		v := value()
		if v > limit {
			return Result{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("%s is %d, above %d", what, v, limit),
			}
		}
		return Result{Status: StatusHealthy}
	}
}

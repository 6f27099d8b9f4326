package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Check statuses.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DefaultCheckTimeout bounds a single check when New is given zero.
const DefaultCheckTimeout = 5 * time.Second

// ErrCheckTimeout is reported when a check does not return in time.
var ErrCheckTimeout = errors.New("health check timeout")

// CheckFunc reports nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Status is the aggregated health report.
type Status struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Checker holds named readiness checks.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]CheckFunc
	checkTimeout time.Duration
}

// New creates a Checker. A zero timeout uses DefaultCheckTimeout.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = DefaultCheckTimeout
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck adds or replaces the check called name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Liveness reports that the process is up.
func (c *Checker) Liveness() Status {
	return Status{Status: StatusOK, Timestamp: time.Now()}
}

// Readiness runs all checks concurrently. The result is degraded if any
// check fails.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.run(ctx, check)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status != StatusOK {
			status = StatusDegraded
			break
		}
	}
	return Status{Status: status, Checks: results, Timestamp: time.Now()}
}

func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ErrCheckTimeout
	}

	result := CheckResult{Status: StatusOK, Duration: time.Since(start)}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}

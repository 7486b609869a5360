package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "UP"
	HealthStatusDown     HealthStatus = "DOWN"
	HealthStatusDegraded HealthStatus = "DEGRADED"
)

// HealthCheck represents a health check
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) HealthResult
}

// HealthResult represents the result of a health check
type HealthResult struct {
	Status    HealthStatus           `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Duration  time.Duration          `json:"duration_ms"`
	Timestamp time.Time              `json:"timestamp"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status     HealthStatus            `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Duration   time.Duration           `json:"duration_ms"`
	Components map[string]HealthResult `json:"components"`
}

// HealthManager manages health checks
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	timeout time.Duration
	logger  *Logger
}

// NewHealthManager creates a new health manager
func NewHealthManager(timeout time.Duration, logger *Logger) *HealthManager {
	return &HealthManager{
		checks:  make(map[string]HealthCheck),
		timeout: timeout,
		logger:  logger,
	}
}

// RegisterCheck registers a health check
func (hm *HealthManager) RegisterCheck(check HealthCheck) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[check.Name()] = check
}

// Names returns the registered check names, sorted
func (hm *HealthManager) Names() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth runs all checks concurrently and aggregates the worst status
func (hm *HealthManager) CheckHealth(ctx context.Context) HealthReport {
	start := time.Now()

	hm.mu.RLock()
	checks := make(map[string]HealthCheck, len(hm.checks))
	for name, check := range hm.checks {
		checks[name] = check
	}
	hm.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	type namedResult struct {
		name   string
		result HealthResult
	}
	results := make(chan namedResult, len(checks))

	for name, check := range checks {
		go func(name string, check HealthCheck) {
			checkStart := time.Now()
			result := check.Check(ctx)
			result.Duration = time.Since(checkStart)
			result.Timestamp = time.Now()
			results <- namedResult{name, result}
		}(name, check)
	}

	components := make(map[string]HealthResult, len(checks))
	overall := HealthStatusUp
	for i := 0; i < len(checks); i++ {
		r := <-results
		components[r.name] = r.result

		switch r.result.Status {
		case HealthStatusDown:
			overall = HealthStatusDown
		case HealthStatusDegraded:
			if overall == HealthStatusUp {
				overall = HealthStatusDegraded
			}
		}
	}

	report := HealthReport{
		Status:     overall,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
		Components: components,
	}

	if hm.logger != nil {
		hm.logger.DebugWithFields("Health check completed", map[string]interface{}{
			"status":      string(overall),
			"duration_ms": report.Duration.Milliseconds(),
			"components":  len(components),
		})
	}

	return report
}

// HealthHandler returns an HTTP handler for health checks
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == HealthStatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(report)
	}
}

// PingCheck reports a component down when its ping function fails
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck creates a health check around a ping function
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

// Name returns the check name
func (p *PingCheck) Name() string {
	return p.name
}

// Check pings the component
func (p *PingCheck) Check(ctx context.Context) HealthResult {
	if err := p.ping(ctx); err != nil {
		return HealthResult{
			Status:  HealthStatusDown,
			Message: fmt.Sprintf("%s unreachable: %v", p.name, err),
		}
	}
	return HealthResult{Status: HealthStatusUp}
}

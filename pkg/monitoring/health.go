package monitoring

import (
	"context"
	"database/sql"
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
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// severity orders statuses so the worst check decides the report
func (s HealthStatus) severity() int {
	switch s {
	case HealthStatusHealthy:
		return 0
	case HealthStatusDegraded:
		return 1
	}
	return 2
}

// HealthCheck is the result of one checker
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// HealthReport is served by the health endpoint
type HealthReport struct {
	Status    HealthStatus   `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Checks    []HealthCheck  `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// HealthChecker reports the state of one component
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
}

// HealthCheckFunc adapts a function to HealthChecker
type HealthCheckFunc func(ctx context.Context) HealthCheck

// Check calls f
func (f HealthCheckFunc) Check(ctx context.Context) HealthCheck {
	return f(ctx)
}

// HealthManager runs the registered checkers with a shared deadline
type HealthManager struct {
	service  string
	version  string
	timeout  time.Duration
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager creates a manager. A non-positive timeout means five seconds.
func NewHealthManager(service, version string, timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthManager{
		service:  service,
		version:  version,
		timeout:  timeout,
		checkers: make(map[string]HealthChecker),
	}
}

// RegisterChecker registers a checker under name, replacing any previous one
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// CheckHealth runs every checker concurrently. Checks are sorted by name.
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]HealthChecker, len(names))
	for i, name := range names {
		checkers[i] = hm.checkers[name]
	}
	hm.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	checks := make([]HealthCheck, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, checker HealthChecker) {
			defer wg.Done()
			start := time.Now()
			check := checker.Check(ctx)
			check.Name = names[i]
			check.LastChecked = start
			check.Duration = time.Since(start)
			if check.Status == "" {
				check.Status = HealthStatusUnhealthy
			}
			checks[i] = check
		}(i, checker)
	}
	wg.Wait()

	report := &HealthReport{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Service:   hm.service,
		Version:   hm.version,
		Checks:    checks,
		Summary:   make(map[string]int),
	}
	for _, check := range checks {
		report.Summary[string(check.Status)]++
		if check.Status.severity() > report.Status.severity() {
			report.Status = check.Status
		}
	}
	return report
}

// HTTPHandler serves the report. Only an unhealthy report is a 503.
func (hm *HealthManager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		status := http.StatusOK
		if report.Status == HealthStatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	}
}

// poolPressure is the share of the connection pool in use that reports degraded
const poolPressure = 0.9

// DBStatser is the part of *sql.DB the database checker needs
type DBStatser interface {
	PingContext(ctx context.Context) error
	Stats() sql.DBStats
}

// NewDatabaseHealthChecker pings the database and reports pool usage
func NewDatabaseHealthChecker(db DBStatser) HealthChecker {
	return HealthCheckFunc(func(ctx context.Context) HealthCheck {
		if err := db.PingContext(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("database unreachable: %v", err),
			}
		}

		stats := db.Stats()
		check := HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "database reachable",
			Details: map[string]interface{}{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"max_open":         stats.MaxOpenConnections,
				"wait_count":       stats.WaitCount,
			},
		}
		if limit := stats.MaxOpenConnections; limit > 0 && float64(stats.InUse) >= poolPressure*float64(limit) {
			check.Status = HealthStatusDegraded
			check.Message = fmt.Sprintf("%d of %d connections in use", stats.InUse, limit)
		}
		return check
	})
}

// Pinger is anything that can report its own reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingHealthChecker reports component healthy while its Ping succeeds
func NewPingHealthChecker(component string, target Pinger) HealthChecker {
	return HealthCheckFunc(func(ctx context.Context) HealthCheck {
		if err := target.Ping(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: fmt.Sprintf("%s unreachable: %v", component, err),
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: component + " reachable"}
	})
}

package portal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/monitoring"
)

// idleLimiterBucket is how long an unused rate-limit bucket is kept
const idleLimiterBucket = 10 * time.Minute

// Janitor periodically expires in-memory visitor state
type Janitor struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	sweeps    []sweep
	logger    *logger.Logger
	now       func() time.Time

	mu          sync.Mutex
	startedAt   time.Time
	lastSweep   time.Time
	lastRemoved map[string]int
}

type sweep struct {
	name string
	run  func() int
}

// NewJanitor creates a janitor that runs every interval once started
func NewJanitor(interval time.Duration, log *logger.Logger) *Janitor {
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		interval:  interval,
		logger:    log,
		now:       time.Now,
	}
}

// Register adds a sweep; run returns how many entries it removed
func (j *Janitor) Register(name string, run func() int) {
	j.sweeps = append(j.sweeps, sweep{name: name, run: run})
}

// RunOnce runs every sweep and returns the removals per sweep
func (j *Janitor) RunOnce() map[string]int {
	removed := make(map[string]int, len(j.sweeps))
	for _, sw := range j.sweeps {
		removed[sw.name] = sw.run()
	}
	j.mu.Lock()
	j.lastSweep = j.now()
	j.lastRemoved = removed
	j.mu.Unlock()
	j.logger.WithFields(map[string]interface{}{
		"component": "janitor",
		"removed":   removed,
	}).Debug("Janitor sweep finished")
	return removed
}

// Start schedules the sweeps. A zero interval disables the janitor.
func (j *Janitor) Start() error {
	if j.interval <= 0 {
		return nil
	}
	seconds := int(j.interval / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if _, err := j.scheduler.Every(seconds).Seconds().Do(func() { j.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	j.scheduler.StartAsync()
	j.mu.Lock()
	j.startedAt = j.now()
	j.mu.Unlock()
	j.logger.WithField("interval", j.interval.String()).Info("Janitor started")
	return nil
}

// Stop halts the scheduler
func (j *Janitor) Stop() {
	if j.scheduler.IsRunning() {
		j.scheduler.Stop()
	}
	j.mu.Lock()
	j.startedAt = time.Time{}
	j.mu.Unlock()
}

// Health reports degraded when a started janitor has stopped sweeping
func (j *Janitor) Health(ctx context.Context) monitoring.HealthCheck {
	j.mu.Lock()
	startedAt, lastSweep := j.startedAt, j.lastSweep
	details := map[string]interface{}{
		"interval":     j.interval.String(),
		"last_removed": j.lastRemoved,
	}
	j.mu.Unlock()
	if !lastSweep.IsZero() {
		details["last_sweep"] = lastSweep
	}

	switch {
	case j.interval <= 0:
		return monitoring.HealthCheck{Status: monitoring.HealthStatusHealthy, Message: "janitor disabled", Details: details}
	case startedAt.IsZero():
		return monitoring.HealthCheck{Status: monitoring.HealthStatusHealthy, Message: "janitor not started", Details: details}
	case !j.scheduler.IsRunning():
		return monitoring.HealthCheck{Status: monitoring.HealthStatusDegraded, Message: "janitor scheduler stopped", Details: details}
	}

	// a sweep is due every interval; allow two misses
	last := lastSweep
	if last.IsZero() {
		last = startedAt
	}
	if j.now().Sub(last) > 3*j.interval {
		return monitoring.HealthCheck{Status: monitoring.HealthStatusDegraded, Message: "janitor sweeps overdue", Details: details}
	}
	return monitoring.HealthCheck{Status: monitoring.HealthStatusHealthy, Message: "janitor running", Details: details}
}

// registerSweeps wires the service's expiring state into the janitor
func (s *Service) registerSweeps() {
	s.janitor.Register("wizard_sessions", func() int {
		n := s.sessions.Sweep()
		s.metrics.SetWizardSessions(s.sessions.Len())
		return n
	})
	s.janitor.Register("promo_marks", s.promo.Sweep)
	s.janitor.Register("login_attempts", func() int {
		return s.auth.Limiter().Cleanup(idleLimiterBucket)
	})
	s.janitor.Register("request_budget", func() int {
		return s.limiter.Cleanup(idleLimiterBucket)
	})
}

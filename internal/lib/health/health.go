// Package health probes the service's dependencies.
//
// The same Checker answers the /status endpoint on demand and, when
// observability.health_checks is enabled, runs on a cron schedule so a
// failing dependency shows up in logs and New Relic before anyone asks.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time"`
	Error        string `json:"error,omitempty"`
}

// Report is the outcome of a full round.
type Report struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

type Checker struct {
	probes   map[string]Probe
	required map[string]bool
	timeout  time.Duration
	logger   *zerolog.Logger
	nrApp    *newrelic.Application

	mu   sync.RWMutex
	last *Report

	cron *cron.Cron
}

// NewChecker builds a Checker. Probes named in required mark the whole
// report unhealthy when they fail; the others are reported only.
func NewChecker(logger *zerolog.Logger, nrApp *newrelic.Application, timeout time.Duration, required ...string) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	req := make(map[string]bool, len(required))
	for _, name := range required {
		req[name] = true
	}

	return &Checker{
		probes:   make(map[string]Probe),
		required: req,
		timeout:  timeout,
		logger:   logger,
		nrApp:    nrApp,
	}
}

// Register adds a named probe. Register before Start.
func (c *Checker) Register(name string, probe Probe) {
	c.probes[name] = probe
}

// Names lists the registered probes in order.
func (c *Checker) Names() []string {
	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every probe once.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(c.probes)),
	}

	for _, name := range c.Names() {
		result := c.run(ctx, name, c.probes[name])
		report.Checks[name] = result

		if result.Status != StatusHealthy && c.required[name] {
			report.Status = StatusUnhealthy
		}
	}

	c.mu.Lock()
	c.last = &report
	c.mu.Unlock()

	return report
}

func (c *Checker) run(ctx context.Context, name string, probe Probe) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	elapsed := time.Since(start)

	if err != nil {
		c.logger.Error().
			Err(err).
			Str("check", name).
			Dur("response_time", elapsed).
			Msg("health check failed")

		if c.nrApp != nil {
			c.nrApp.RecordCustomEvent("HealthCheckError", map[string]interface{}{
				"check_type":       name,
				"operation":        "health_check",
				"error_type":       name + "_unhealthy",
				"response_time_ms": elapsed.Milliseconds(),
				"error_message":    err.Error(),
			})
		}

		return CheckResult{
			Status:       StatusUnhealthy,
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	c.logger.Debug().
		Str("check", name).
		Dur("response_time", elapsed).
		Msg("health check passed")

	return CheckResult{Status: StatusHealthy, ResponseTime: elapsed.String()}
}

// Last returns the most recent report, or nil before the first round.
func (c *Checker) Last() *Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Start runs Check every interval until Stop.
func (c *Checker) Start(interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("health check interval must be at least 1s, got %s", interval)
	}

	c.cron = cron.New()
	_, err := c.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		report := c.Check(context.Background())
		if !report.Healthy() {
			c.logger.Warn().Msg("periodic health check reported unhealthy")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule health checks: %w", err)
	}

	c.cron.Start()
	c.logger.Info().Dur("interval", interval).Strs("checks", c.Names()).Msg("started periodic health checks")
	return nil
}

// Stop halts the schedule and waits for a running round to finish.
func (c *Checker) Stop() {
	if c.cron == nil {
		return
	}
	<-c.cron.Stop().Done()
}

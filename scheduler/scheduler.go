// Package scheduler runs the periodic CMS probe: a single NCD fetch whose
// outcome is recorded in the probe store for health checks and metrics.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/priorauth-checker/coverage"
	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
	"github.com/giygas/priorauth-checker/logging"
	"github.com/giygas/priorauth-checker/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Target is the NCD fetched by every probe
type Target struct {
	PolicyID      string
	PolicyVersion string
}

// Scheduler probes the CMS API on a fixed interval using dependency injection
type Scheduler struct {
	store     interfaces.ProbeStore
	fetcher   interfaces.PolicyFetcher
	target    Target
	interval  time.Duration
	timeout   time.Duration
	scheduler *gocron.Scheduler
	job       *gocron.Job
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(store interfaces.ProbeStore, fetcher interfaces.PolicyFetcher, target Target, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	timeout := interval
	if timeout <= 0 || timeout > time.Minute {
		timeout = time.Minute
	}

	return &Scheduler{
		store:     store,
		fetcher:   fetcher,
		target:    target,
		interval:  interval,
		timeout:   timeout,
		scheduler: s,
	}
}

// Start schedules the probe. The first probe runs immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %s", s.interval)
	}

	job, err := s.scheduler.Every(s.interval).Do(func() {
		s.ProbeNow(context.Background())
	})
	if err != nil {
		logging.Error("Failed to schedule CMS probe", "error", err)
		return fmt.Errorf("failed to schedule probe: %w", err)
	}
	s.job = job

	s.scheduler.StartAsync()
	logging.Info("CMS probe scheduled",
		"interval", s.interval.String(),
		"ncd_id", s.target.PolicyID,
		"ncd_ver", s.target.PolicyVersion,
	)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// NextRun returns when the next probe is due, zero before Start
func (s *Scheduler) NextRun() time.Time {
	if s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// ProbeNow fetches the probe target once and records the result. It returns
// false when another probe was already running.
func (s *Scheduler) ProbeNow(ctx context.Context) bool {
	if !s.store.BeginProbe() {
		logging.Info("Probe already in progress, skipping...")
		return false
	}
	defer s.store.EndProbe()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.fetcher.FetchPolicy(ctx, s.target.PolicyID, s.target.PolicyVersion)

	result := entities.ProbeResult{
		CheckedAt: start,
		Latency:   time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
		var uerr *coverage.UpstreamError
		if errors.As(err, &uerr) {
			result.StatusCode = uerr.StatusCode
		}
		metrics.CMSProbeUp.Set(0)
		logging.Warn("CMS probe failed", "error", err, "status_code", result.StatusCode)
	} else {
		result.OK = true
		result.StatusCode = 200
		result.Items = len(resp.Items)
		metrics.CMSProbeUp.Set(1)
		if result.Items == 0 {
			logging.Warn("CMS probe returned no record", "ncd_id", s.target.PolicyID, "ncd_ver", s.target.PolicyVersion)
		} else {
			logging.Debug("CMS probe succeeded", "latency", result.Latency.String())
		}
	}

	s.store.RecordProbe(result)
	return true
}

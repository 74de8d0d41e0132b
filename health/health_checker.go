// Package health provides health checking functionality for the NCD policy server.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/giygas/priorauth-checker/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store         interfaces.ReferenceStore
	probes        interfaces.ProbeStore
	scheduler     interfaces.Scheduler // nil when probing is disabled
	probeInterval time.Duration
	now           func() time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies.
// scheduler may be nil when the upstream probe is disabled.
func NewHealthChecker(store interfaces.ReferenceStore, probes interfaces.ProbeStore, scheduler interfaces.Scheduler, probeInterval time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		store:         store,
		probes:        probes,
		scheduler:     scheduler,
		probeInterval: probeInterval,
		now:           time.Now,
	}
}

// HealthCheck returns HTTP-specific health data
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	now := h.now()

	data = map[string]any{
		"reference_source": h.store.Source(),
	}
	if start := h.probes.GetServerStartTime(); !start.IsZero() {
		data["uptime_seconds"] = math.Round(now.Sub(start).Seconds())
	}

	refErr := h.store.Ping(ctx)
	if refErr == nil {
		if n, err := h.store.Count(ctx); err == nil {
			data["reference_entries"] = n
		} else {
			refErr = err
		}
	}
	if refErr != nil {
		data["reference_error"] = refErr.Error()
	}

	report := h.probes.GetQualityReport()
	data["shadowed_titles"] = len(report.ShadowedTitles)
	data["duplicate_titles"] = len(report.DuplicateTitles)

	probeEnabled := h.scheduler != nil && h.probeInterval > 0
	probe := h.probes.GetLastProbe()
	probeAge := now.Sub(probe.CheckedAt)

	data["probe_enabled"] = probeEnabled
	if probeEnabled {
		data["is_probing"] = h.probes.IsProbing()
		if next := h.scheduler.NextRun(); !next.IsZero() {
			data["next_probe"] = next.Format(time.RFC3339)
		}
		if !probe.CheckedAt.IsZero() {
			data["last_probe"] = probe.CheckedAt.Format(time.RFC3339)
			data["probe_ok"] = probe.OK
			data["probe_status_code"] = probe.StatusCode
			data["probe_latency_ms"] = probe.Latency.Milliseconds()
			if probe.Error != "" {
				data["probe_error"] = probe.Error
			}
		}
	}

	switch {
	case refErr != nil:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case probeEnabled && !probe.CheckedAt.IsZero() && !probe.OK:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case probeEnabled && !probe.CheckedAt.IsZero() && probeAge > 3*h.probeInterval:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return status, data, httpStatus
}

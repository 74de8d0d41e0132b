// Package data provides thread-safe runtime state for the NCD policy server:
// the last upstream probe result, the reference table quality report and the
// server start time. Values are swapped atomically so readers never block.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
	"github.com/giygas/priorauth-checker/logging"
)

// Compile-time check to ensure DataContainer implements ProbeStore
var _ interfaces.ProbeStore = (*DataContainer)(nil)

// DataContainer holds the runtime state with atomic values
type DataContainer struct {
	lastProbe       atomic.Value // entities.ProbeResult
	qualityReport   atomic.Value // *interfaces.ReferenceQualityReport
	probing         atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with no probe recorded
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.lastProbe.Store(entities.ProbeResult{})
	dc.qualityReport.Store(&interfaces.ReferenceQualityReport{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetLastProbe returns the most recent probe result, zero if none ran yet
func (dc *DataContainer) GetLastProbe() entities.ProbeResult {
	if v := dc.lastProbe.Load(); v != nil {
		if result, ok := v.(entities.ProbeResult); ok {
			return result
		}
	}

	logging.Warn("Could not get the last probe result")
	return entities.ProbeResult{}
}

// RecordProbe atomically replaces the last probe result
func (dc *DataContainer) RecordProbe(result entities.ProbeResult) {
	if result.CheckedAt.IsZero() {
		result.CheckedAt = time.Now()
	}
	dc.lastProbe.Store(result)
}

// GetQualityReport returns the reference table report computed at startup
func (dc *DataContainer) GetQualityReport() *interfaces.ReferenceQualityReport {
	if v := dc.qualityReport.Load(); v != nil {
		if report, ok := v.(*interfaces.ReferenceQualityReport); ok && report != nil {
			return report
		}
	}

	logging.Warn("Reference quality report is empty or invalid")
	return &interfaces.ReferenceQualityReport{}
}

// SetQualityReport stores the reference table report; nil is ignored
func (dc *DataContainer) SetQualityReport(report *interfaces.ReferenceQualityReport) {
	if report == nil {
		return
	}
	dc.qualityReport.Store(report)
}

// IsProbing returns true if a probe is currently in progress
func (dc *DataContainer) IsProbing() bool {
	return dc.probing.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// BeginProbe marks the start of a probe
// Returns true if the probe can proceed, false if another one is in progress
func (dc *DataContainer) BeginProbe() bool {
	return dc.probing.CompareAndSwap(false, true)
}

// EndProbe marks the end of a probe
func (dc *DataContainer) EndProbe() {
	dc.probing.Store(false)
}

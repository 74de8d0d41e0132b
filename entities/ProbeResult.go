package entities

import "time"

// ProbeResult is the outcome of one scheduled call to the CMS API.
type ProbeResult struct {
	CheckedAt  time.Time     `json:"checked_at"`
	OK         bool          `json:"ok"`
	StatusCode int           `json:"status_code,omitempty"`
	Items      int           `json:"items"`
	Latency    time.Duration `json:"latency_ns"`
	Error      string        `json:"error,omitempty"`
}

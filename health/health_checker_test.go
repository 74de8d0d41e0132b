package health

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/giygas/priorauth-checker/data"
	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
	"github.com/giygas/priorauth-checker/lookup"
)

// brokenStore fails every ping
type brokenStore struct {
	*lookup.BuiltinTable
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("sqlite ping: disk I/O error")
}

// mockScheduler reports a fixed next run
type mockScheduler struct {
	next time.Time
}

func (m *mockScheduler) Start() error       { return nil }
func (m *mockScheduler) Stop()              {}
func (m *mockScheduler) NextRun() time.Time { return m.next }

func newBuiltin(t *testing.T) *lookup.BuiltinTable {
	t.Helper()
	table, err := lookup.LoadBuiltin()
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}
	return table
}

func TestHealthCheck(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name           string
		store          func(t *testing.T) interfaces.ReferenceStore
		probe          *entities.ProbeResult
		scheduler      interfaces.Scheduler
		expectedStatus string
		expectedHTTP   int
	}{
		{
			name:           "healthy without probe",
			store:          func(t *testing.T) interfaces.ReferenceStore { return newBuiltin(t) },
			expectedStatus: "healthy",
			expectedHTTP:   http.StatusOK,
		},
		{
			name:           "healthy before first probe",
			store:          func(t *testing.T) interfaces.ReferenceStore { return newBuiltin(t) },
			scheduler:      &mockScheduler{},
			expectedStatus: "healthy",
			expectedHTTP:   http.StatusOK,
		},
		{
			name:           "healthy with recent probe",
			store:          func(t *testing.T) interfaces.ReferenceStore { return newBuiltin(t) },
			probe:          &entities.ProbeResult{CheckedAt: now.Add(-10 * time.Minute), OK: true, StatusCode: 200},
			scheduler:      &mockScheduler{next: now.Add(50 * time.Minute)},
			expectedStatus: "healthy",
			expectedHTTP:   http.StatusOK,
		},
		{
			name:           "degraded on failed probe",
			store:          func(t *testing.T) interfaces.ReferenceStore { return newBuiltin(t) },
			probe:          &entities.ProbeResult{CheckedAt: now.Add(-10 * time.Minute), StatusCode: 503, Error: "HTTP 503"},
			scheduler:      &mockScheduler{},
			expectedStatus: "degraded",
			expectedHTTP:   http.StatusServiceUnavailable,
		},
		{
			name:           "degraded on stale probe",
			store:          func(t *testing.T) interfaces.ReferenceStore { return newBuiltin(t) },
			probe:          &entities.ProbeResult{CheckedAt: now.Add(-4 * time.Hour), OK: true},
			scheduler:      &mockScheduler{},
			expectedStatus: "degraded",
			expectedHTTP:   http.StatusServiceUnavailable,
		},
		{
			name:           "failed probe ignored when probing is disabled",
			store:          func(t *testing.T) interfaces.ReferenceStore { return newBuiltin(t) },
			probe:          &entities.ProbeResult{CheckedAt: now.Add(-10 * time.Minute), Error: "HTTP 503"},
			expectedStatus: "healthy",
			expectedHTTP:   http.StatusOK,
		},
		{
			name:           "unhealthy reference store",
			store:          func(t *testing.T) interfaces.ReferenceStore { return brokenStore{newBuiltin(t)} },
			expectedStatus: "unhealthy",
			expectedHTTP:   http.StatusServiceUnavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			probes := data.NewDataContainer()
			probes.SetServerStartTime(now.Add(-time.Hour))
			if tc.probe != nil {
				probes.RecordProbe(*tc.probe)
			}

			checker := NewHealthChecker(tc.store(t), probes, tc.scheduler, time.Hour).(*HealthCheckerImpl)
			checker.now = func() time.Time { return now }

			status, details, httpStatus := checker.HealthCheck(context.Background())

			if status != tc.expectedStatus {
				t.Errorf("Expected status %s, got %s", tc.expectedStatus, status)
			}
			if httpStatus != tc.expectedHTTP {
				t.Errorf("Expected HTTP %d, got %d", tc.expectedHTTP, httpStatus)
			}
			if details["reference_source"] != lookup.SourceBuiltin {
				t.Errorf("Expected built-in source, got %v", details["reference_source"])
			}
			if details["uptime_seconds"] != float64(3600) {
				t.Errorf("Expected uptime 3600, got %v", details["uptime_seconds"])
			}
		})
	}
}

func TestHealthCheckDetails(t *testing.T) {
	now := time.Now()
	probes := data.NewDataContainer()
	probes.RecordProbe(entities.ProbeResult{CheckedAt: now, OK: false, StatusCode: 502, Error: "HTTP 502", Latency: 250 * time.Millisecond})
	probes.SetQualityReport(&interfaces.ReferenceQualityReport{ShadowedTitles: []string{"a", "b"}})

	checker := NewHealthChecker(newBuiltin(t), probes, &mockScheduler{next: now.Add(time.Hour)}, time.Hour)
	_, details, _ := checker.HealthCheck(context.Background())

	expected := map[string]any{
		"reference_entries": 2,
		"probe_enabled":     true,
		"probe_ok":          false,
		"probe_status_code": 502,
		"probe_error":       "HTTP 502",
		"probe_latency_ms":  int64(250),
		"shadowed_titles":   2,
		"duplicate_titles":  0,
		"is_probing":        false,
	}
	for key, want := range expected {
		if details[key] != want {
			t.Errorf("Expected %s=%v, got %v", key, want, details[key])
		}
	}
	if _, ok := details["next_probe"]; !ok {
		t.Error("Expected next_probe in details")
	}
	if _, ok := details["uptime_seconds"]; ok {
		t.Error("uptime_seconds should be absent without a start time")
	}
}

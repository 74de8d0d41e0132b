package interfaces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/priorauth-checker/entities"
)

type mockError struct {
	msg string
}

func (e *mockError) Error() string {
	return e.msg
}

// MockReferenceStore implements ReferenceStore with first-match semantics
type MockReferenceStore struct {
	entries []entities.LookupEntry
	closed  bool
}

func (m *MockReferenceStore) Resolve(ctx context.Context, title string) (entities.LookupEntry, bool, error) {
	found, err := m.Search(ctx, title, 1)
	if err != nil || len(found) == 0 {
		return entities.LookupEntry{}, false, err
	}
	return found[0], true, nil
}

func (m *MockReferenceStore) Search(ctx context.Context, title string, limit int) ([]entities.LookupEntry, error) {
	if m.closed {
		return nil, &mockError{"store closed"}
	}
	q := strings.ToLower(strings.TrimSpace(title))
	var out []entities.LookupEntry
	for _, e := range m.entries {
		t := strings.ToLower(e.Title)
		if q != "" && (strings.Contains(t, q) || strings.Contains(q, t)) {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockReferenceStore) Entries(ctx context.Context) ([]entities.LookupEntry, error) {
	return m.entries, nil
}

func (m *MockReferenceStore) Count(ctx context.Context) (int, error) {
	return len(m.entries), nil
}

func (m *MockReferenceStore) Ping(ctx context.Context) error {
	if m.closed {
		return &mockError{"store closed"}
	}
	return nil
}

func (m *MockReferenceStore) Source() string {
	return "mock"
}

func (m *MockReferenceStore) Close() error {
	m.closed = true
	return nil
}

// MockPolicyFetcher implements PolicyFetcher
type MockPolicyFetcher struct {
	items []entities.PolicyItem
	calls int
}

func (m *MockPolicyFetcher) FetchPolicy(ctx context.Context, policyID, policyVersion string) (*entities.PolicyResponse, error) {
	m.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &entities.PolicyResponse{Items: m.items}, nil
}

// MockScheduler implements Scheduler
type MockScheduler struct {
	started bool
	stopped bool
	next    time.Time
}

func (m *MockScheduler) Start() error {
	if m.started {
		return &mockError{"already started"}
	}
	m.started = true
	m.next = time.Now().Add(time.Hour)
	return nil
}

func (m *MockScheduler) Stop() {
	m.stopped = true
}

func (m *MockScheduler) NextRun() time.Time {
	return m.next
}

// MockHTTPHandler implements HTTPHandler
type MockHTTPHandler struct {
	responseCode int
	responseBody string
}

func (m *MockHTTPHandler) write(w http.ResponseWriter) {
	w.WriteHeader(m.responseCode)
	_, _ = w.Write([]byte(m.responseBody))
}

func (m *MockHTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request)   { m.write(w) }
func (m *MockHTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) { m.write(w) }
func (m *MockHTTPHandler) LookupTitle(w http.ResponseWriter, r *http.Request) { m.write(w) }
func (m *MockHTTPHandler) FetchPolicy(w http.ResponseWriter, r *http.Request) { m.write(w) }

// MockHealthChecker implements HealthChecker
type MockHealthChecker struct {
	status string
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) (string, map[string]any, int) {
	if m.status == "healthy" {
		return m.status, map[string]any{}, http.StatusOK
	}
	return m.status, map[string]any{}, http.StatusServiceUnavailable
}

// Compile-time checks
var (
	_ ReferenceStore = (*MockReferenceStore)(nil)
	_ PolicyFetcher  = (*MockPolicyFetcher)(nil)
	_ Scheduler      = (*MockScheduler)(nil)
	_ HTTPHandler    = (*MockHTTPHandler)(nil)
	_ HealthChecker  = (*MockHealthChecker)(nil)
)

func TestReferenceStoreInterface(t *testing.T) {
	var store ReferenceStore = &MockReferenceStore{entries: []entities.LookupEntry{
		{Title: "Lumbar Artificial Disc Replacement", PolicyID: "313", PolicyVersion: "2"},
		{Title: "Electrical Nerve Stimulators", PolicyID: "240", PolicyVersion: "1"},
	}}
	ctx := context.Background()

	entry, ok, err := store.Resolve(ctx, "lumbar artificial disc")
	if err != nil || !ok {
		t.Fatalf("Expected a match, got ok=%v err=%v", ok, err)
	}
	if entry.PolicyID != "313" {
		t.Errorf("Expected ncd_id 313, got %s", entry.PolicyID)
	}

	if _, ok, _ := store.Resolve(ctx, ""); ok {
		t.Error("Empty title must not match")
	}

	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("Expected 2 entries, got %d", n)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close returned %v", err)
	}
	if err := store.Ping(ctx); err == nil {
		t.Error("Ping should fail after Close")
	}
}

func TestPolicyFetcherInterface(t *testing.T) {
	fetcher := &MockPolicyFetcher{items: []entities.PolicyItem{{Title: "Lumbar Artificial Disc Replacement"}}}
	var f PolicyFetcher = fetcher

	resp, err := f.FetchPolicy(context.Background(), "313", "2")
	if err != nil {
		t.Fatalf("FetchPolicy returned %v", err)
	}
	if item, ok := resp.First(); !ok || item.Title != "Lumbar Artificial Disc Replacement" {
		t.Errorf("Unexpected first item %+v", item)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.FetchPolicy(ctx, "313", "2"); err == nil {
		t.Error("Expected an error for a cancelled context")
	}
	if fetcher.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", fetcher.calls)
	}
}

func TestSchedulerInterface(t *testing.T) {
	mock := &MockScheduler{}
	var s Scheduler = mock

	if !s.NextRun().IsZero() {
		t.Error("NextRun should be zero before Start")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start returned %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("Second Start should fail")
	}
	if s.NextRun().IsZero() {
		t.Error("NextRun should be set after Start")
	}

	s.Stop()
	if !mock.stopped {
		t.Error("Scheduler should be stopped")
	}
}

func TestHTTPHandlerInterface(t *testing.T) {
	var h HTTPHandler = &MockHTTPHandler{responseCode: http.StatusOK, responseBody: `{"status":"healthy"}`}

	for name, fn := range map[string]http.HandlerFunc{
		"health": h.HealthCheck,
		"lookup": h.LookupTitle,
		"policy": h.FetchPolicy,
	} {
		rr := httptest.NewRecorder()
		fn(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected status 200, got %d", name, rr.Code)
		}
	}
}

func TestHealthCheckerInterface(t *testing.T) {
	tests := []struct {
		status   string
		expected int
	}{
		{"healthy", http.StatusOK},
		{"degraded", http.StatusServiceUnavailable},
		{"unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		var hc HealthChecker = &MockHealthChecker{status: tt.status}
		status, details, code := hc.HealthCheck(context.Background())
		if status != tt.status || code != tt.expected || details == nil {
			t.Errorf("HealthCheck() = %s, %v, %d; want %s, %d", status, details, code, tt.status, tt.expected)
		}
	}
}

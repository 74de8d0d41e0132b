package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/priorauth-checker/config"
)

// stubHandler answers every route with its name
type stubHandler struct{}

func (stubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotImplemented)
}

func (stubHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, "health")
}

func (stubHandler) LookupTitle(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, "lookup")
}

func (stubHandler) FetchPolicy(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, "policy")
}

func testConfig() *config.Config {
	return &config.Config{
		Env:            config.EnvTest,
		Address:        "127.0.0.1",
		Port:           "0",
		CMSHTTPTimeout: 30 * time.Second,
		MaxRequestBody: 1048576,
		MaxHeaderSize:  1048576,
	}
}

func TestNewServer(t *testing.T) {
	s := NewServer(testConfig(), stubHandler{})

	if s.server.Addr != "127.0.0.1:0" {
		t.Errorf("Expected address 127.0.0.1:0, got %s", s.server.Addr)
	}
	if s.server.WriteTimeout != 45*time.Second {
		t.Errorf("Expected write timeout to cover the CMS timeout, got %s", s.server.WriteTimeout)
	}
	if s.rateLimiter == nil {
		t.Error("Expected a rate limiter")
	}
}

func TestSetupRoutes(t *testing.T) {
	s := NewServer(testConfig(), stubHandler{})

	tests := []struct {
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{"/health", http.StatusOK, "health"},
		{"/v1/lookup/lumbar", http.StatusOK, "lookup"},
		{"/v1/policy?ncd_id=313&ncd_ver=2", http.StatusOK, "policy"},
		{"/metrics", http.StatusOK, "# HELP"},
		{"/v1/unknown", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.RemoteAddr = "127.0.0.1:40000"
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if !strings.Contains(rr.Body.String(), tt.expectedBody) {
				t.Errorf("Expected body containing %q, got %q", tt.expectedBody, rr.Body.String())
			}
		})
	}
}

func TestSetupMiddleware(t *testing.T) {
	s := NewServer(testConfig(), stubHandler{})

	t.Run("request id and rate limit headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "127.0.0.1:40000"
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)

		if rr.Header().Get("X-RateLimit-Limit") != "1000" {
			t.Errorf("Expected rate limit headers, got %v", rr.Header())
		}
	})

	t.Run("direct access blocked outside dev", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.9:40000"
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", rr.Code)
		}
	})

	t.Run("trailing slash redirected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/", nil)
		req.RemoteAddr = "127.0.0.1:40000"
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusMovedPermanently {
			t.Errorf("Expected status 301, got %d", rr.Code)
		}
	})
}

func TestServerLifecycle(t *testing.T) {
	s := NewServer(testConfig(), stubHandler{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "health" {
		t.Errorf("Unexpected response %d %q", resp.StatusCode, body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Server shutdown should not error: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Serve should return nil after a graceful shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Server should have shutdown within 1 second")
	}
}

func TestStartInvalidAddress(t *testing.T) {
	cfg := testConfig()
	cfg.Address = "256.0.0.1"

	if err := NewServer(cfg, stubHandler{}).Start(); err == nil {
		t.Error("Expected listen error for an invalid address")
	}
}

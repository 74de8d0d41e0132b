// Package handlers provides the admin HTTP handlers of the NCD policy server.
// This file implements the HTTPHandler interface with dependency injection.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/priorauth-checker/config"
	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
	"github.com/giygas/priorauth-checker/logging"
	"github.com/giygas/priorauth-checker/lookup"
	"github.com/giygas/priorauth-checker/policy"
)

const maxLookupLimit = 50

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	store     interfaces.ReferenceStore
	validator interfaces.DataValidator
	health    interfaces.HealthChecker
	policy    *policy.Handler
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(store interfaces.ReferenceStore, validator interfaces.DataValidator, health interfaces.HealthChecker, policyHandler *policy.Handler) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		store:     store,
		validator: validator,
		health:    health,
		policy:    policyHandler,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *HTTPHandlerImpl) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// routing is handled by chi
	h.RespondWithError(w, http.StatusNotImplemented, "Not implemented")
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Data    map[string]any `json:"data"`
	System  map[string]any `json:"system"`
}

// LookupResponse lists the reference rows matching a title
type LookupResponse struct {
	Query   string                 `json:"query"`
	Source  string                 `json:"source"`
	Count   int                    `json:"count"`
	Results []entities.LookupEntry `json:"results"`
}

// PolicyResponse carries the tool text for one policy request
type PolicyResponse struct {
	InvocationID string `json:"invocation_id"`
	Outcome      string `json:"outcome"`
	Text         string `json:"text"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	errorResponse := map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	}
	h.RespondWithJSON(w, code, errorResponse)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.health.HealthCheck(r.Context())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:  status,
		Version: config.AppVersion,
		Data:    data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	}
	if uptime, ok := data["uptime_seconds"].(float64); ok {
		response.System["uptime"] = formatUptimeHuman(time.Duration(uptime) * time.Second)
	}

	h.RespondWithJSON(w, httpStatus, response)
}

// LookupTitle lists the reference rows matching a title, in table order
func (h *HTTPHandlerImpl) LookupTitle(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	if err := h.validator.ValidateInput(title); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := lookup.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLookupLimit {
			logging.Warn("Unusual user input", "limit", raw)
			h.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxLookupLimit))
			return
		}
		limit = n
	}

	results, err := h.store.Search(r.Context(), title, limit)
	if err != nil {
		logging.Error("Reference lookup failed", "title", title, "error", err)
		h.RespondWithError(w, http.StatusInternalServerError, "Reference lookup failed")
		return
	}
	if results == nil {
		results = []entities.LookupEntry{}
	}

	// Always return 200 with results array (empty if no matches)
	h.RespondWithJSON(w, http.StatusOK, LookupResponse{
		Query:   title,
		Source:  h.store.Source(),
		Count:   len(results),
		Results: results,
	})
}

// FetchPolicy runs the fetch_ncd_policy tool over HTTP. The text is the same
// the MCP caller would get, the status code reflects the outcome.
func (h *HTTPHandlerImpl) FetchPolicy(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := entities.PolicyQuery{
		PolicyID:      strings.TrimSpace(params.Get("ncd_id")),
		PolicyVersion: strings.TrimSpace(params.Get("ncd_ver")),
		Title:         params.Get("title"),
	}

	for name, value := range map[string]string{"ncd_id": q.PolicyID, "ncd_ver": q.PolicyVersion} {
		if value == "" {
			continue
		}
		if err := h.validator.ValidatePolicyID(value); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, name+": "+err.Error())
			return
		}
	}
	if q.Title != "" {
		if err := h.validator.ValidateInput(q.Title); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, "title: "+err.Error())
			return
		}
	}

	res := h.policy.Handle(r.Context(), q)
	w.Header().Set(logging.InvocationIDHeader, res.InvocationID)
	w.Header().Set(logging.OutcomeHeader, string(res.Outcome))
	h.RespondWithJSON(w, statusForOutcome(res), PolicyResponse{
		InvocationID: res.InvocationID,
		Outcome:      string(res.Outcome),
		Text:         res.Text,
	})
}

func statusForOutcome(res policy.Result) int {
	switch {
	case res.Err == nil:
		return http.StatusOK
	case errors.Is(res.Err, policy.ErrMissingParameters):
		return http.StatusBadRequest
	case errors.Is(res.Err, policy.ErrResolutionMiss), errors.Is(res.Err, policy.ErrRecordNotFound):
		return http.StatusNotFound
	case res.Outcome == policy.OutcomeUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

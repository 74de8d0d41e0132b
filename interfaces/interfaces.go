// Package interfaces defines core abstractions for the NCD policy server
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/priorauth-checker/entities"
)

// ReferenceQualityReport summarises problems found in the reference table
type ReferenceQualityReport struct {
	TotalEntries      int
	DuplicateTitles   []string // same title listed more than once
	ShadowedTitles    []string // never returned for their own title, an earlier entry wins
	IncompleteEntries int      // entries missing a title, id or version
}

// ReferenceStore defines the read-only contract of the title reference table.
// Implementations are safe for concurrent use.
type ReferenceStore interface {
	// Resolve returns the first entry matching the title
	Resolve(ctx context.Context, title string) (entities.LookupEntry, bool, error)

	// Search returns every matching entry in table order, up to limit
	Search(ctx context.Context, title string, limit int) ([]entities.LookupEntry, error)

	Entries(ctx context.Context) ([]entities.LookupEntry, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error

	// Source names the backend in user facing messages ("built-in", "database")
	Source() string
	Close() error
}

// PolicyFetcher defines the contract for retrieving NCD documents from CMS.
type PolicyFetcher interface {
	FetchPolicy(ctx context.Context, policyID, policyVersion string) (*entities.PolicyResponse, error)
}

// ProbeStore holds the state of the upstream probe.
// It provides thread-safe access for the scheduler and health checks.
type ProbeStore interface {
	GetLastProbe() entities.ProbeResult
	RecordProbe(result entities.ProbeResult)
	GetServerStartTime() time.Time
	IsProbing() bool
	BeginProbe() bool
	EndProbe()

	GetQualityReport() *ReferenceQualityReport
	SetQualityReport(report *ReferenceQualityReport)
}

// Scheduler defines the contract for job scheduling.
type Scheduler interface {
	Start() error
	Stop()
	NextRun() time.Time
}

// HTTPHandler defines the contract for the admin HTTP handlers.
type HTTPHandler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)

	HealthCheck(w http.ResponseWriter, r *http.Request)
	LookupTitle(w http.ResponseWriter, r *http.Request)
	FetchPolicy(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns current system health status and the HTTP status to report
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)
}

// DataValidator defines the contract for data validation operations.
type DataValidator interface {
	// ValidateEntry checks one reference row
	ValidateEntry(e *entities.LookupEntry) error

	// ReportReferenceQuality inspects the whole reference table
	ReportReferenceQuality(entries []entities.LookupEntry) *ReferenceQualityReport

	// ValidateInput validates free-text titles received over HTTP
	ValidateInput(input string) error

	// ValidatePolicyID validates NCD ids and versions received over HTTP
	ValidatePolicyID(input string) error
}

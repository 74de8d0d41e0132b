package policy

import "errors"

var (
	ErrResolutionMiss    = errors.New("no reference entry matches the title")
	ErrMissingParameters = errors.New("missing NCD ID or version")
	ErrRecordNotFound    = errors.New("no NCD record found")
)

// Outcome classifies how an invocation ended
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeResolutionMiss    Outcome = "resolution_miss"
	OutcomeMissingParameters Outcome = "missing_parameters"
	OutcomeUpstreamError     Outcome = "upstream_error"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeLookupError       Outcome = "lookup_error"
)

// Outcomes lists every outcome, in state order
var Outcomes = []Outcome{
	OutcomeSuccess,
	OutcomeResolutionMiss,
	OutcomeMissingParameters,
	OutcomeUpstreamError,
	OutcomeNotFound,
	OutcomeLookupError,
}

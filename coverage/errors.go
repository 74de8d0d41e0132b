package coverage

import "fmt"

// UpstreamError is the tagged failure value returned by FetchPolicy. It covers
// transport failures, non-2xx statuses and undecodable bodies.
type UpstreamError struct {
	// StatusCode is 0 when no HTTP response was received
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	return e.Message
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func statusError(code int) *UpstreamError {
	return &UpstreamError{StatusCode: code, Message: fmt.Sprintf("HTTP %d", code)}
}

func transportError(err error) *UpstreamError {
	return &UpstreamError{Message: err.Error(), Err: err}
}

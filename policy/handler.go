// Package policy implements the fetch_ncd_policy tool: title resolution,
// the CMS fetch and the normalization of the returned record.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/giygas/priorauth-checker/coverage"
	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
	"github.com/giygas/priorauth-checker/logging"
	"github.com/giygas/priorauth-checker/metrics"
	"github.com/giygas/priorauth-checker/telemetry"
)

// Result is the text returned to the caller together with how it was reached.
// Err is nil only for OutcomeSuccess.
type Result struct {
	Text         string
	Outcome      Outcome
	InvocationID string
	Err          error
}

// Handler runs one invocation as a fixed sequence: resolve, validate, fetch,
// extract, normalize. It holds no mutable state and is safe for concurrent use.
type Handler struct {
	store   interfaces.ReferenceStore
	fetcher interfaces.PolicyFetcher
	tracer  trace.Tracer
	newID   func() string
}

// Option customises a Handler
type Option func(*Handler)

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(h *Handler) { h.tracer = t }
}

// WithIDGenerator overrides the invocation id source
func WithIDGenerator(f func() string) Option {
	return func(h *Handler) { h.newID = f }
}

func NewHandler(store interfaces.ReferenceStore, fetcher interfaces.PolicyFetcher, opts ...Option) *Handler {
	h := &Handler{
		store:   store,
		fetcher: fetcher,
		tracer:  telemetry.Tracer(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle never returns an error: every branch ends in a text result
func (h *Handler) Handle(ctx context.Context, q entities.PolicyQuery) Result {
	id := h.newID()
	log := logging.With("invocation_id", id)

	ctx, span := h.tracer.Start(ctx, "policy.Handler.Handle",
		trace.WithAttributes(attribute.String("invocation_id", id)),
	)
	defer span.End()

	start := time.Now()
	res := h.run(ctx, log, q)
	res.InvocationID = id

	metrics.ToolInvocationsTotal.WithLabelValues(string(res.Outcome)).Inc()
	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	if res.Err != nil {
		span.SetStatus(codes.Error, res.Err.Error())
	}

	log.Info("fetch_ncd_policy finished",
		"outcome", res.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res
}

func (h *Handler) run(ctx context.Context, log *slog.Logger, q entities.PolicyQuery) Result {
	id, ver := q.PolicyID, q.PolicyVersion

	// Resolve
	if q.NeedsResolution() {
		source := h.store.Source()
		log.Info("Resolving NCD title", "title", q.Title, "source", source)

		entry, ok, err := h.store.Resolve(ctx, q.Title)
		if err != nil {
			metrics.LookupResolutionsTotal.WithLabelValues(source, "error").Inc()
			log.Error("Reference lookup failed", "title", q.Title, "error", err)
			return Result{
				Text:    fmt.Sprintf("Reference lookup failed: %v", err),
				Outcome: OutcomeLookupError,
				Err:     fmt.Errorf("resolve %q: %w", q.Title, err),
			}
		}
		if !ok {
			metrics.LookupResolutionsTotal.WithLabelValues(source, "miss").Inc()
			log.Warn("No reference entry for title", "title", q.Title)
			return Result{
				Text:    fmt.Sprintf("No %s match found for \"%s\"", source, q.Title),
				Outcome: OutcomeResolutionMiss,
				Err:     fmt.Errorf("%w: %q", ErrResolutionMiss, q.Title),
			}
		}

		metrics.LookupResolutionsTotal.WithLabelValues(source, "hit").Inc()
		id, ver = entry.PolicyID, entry.PolicyVersion
		log.Info("Resolved NCD title", "title", entry.Title, "ncd_id", id, "ncd_ver", ver)
	}

	// Validate
	if id == "" || ver == "" {
		log.Warn("Missing NCD ID or version", "ncd_id", id, "ncd_ver", ver)
		return Result{
			Text:    "Missing NCD ID or version.",
			Outcome: OutcomeMissingParameters,
			Err:     ErrMissingParameters,
		}
	}

	// Fetch
	log.Info("Fetching NCD document", "ncd_id", id, "ncd_ver", ver)
	resp, err := h.fetcher.FetchPolicy(ctx, id, ver)
	if err != nil {
		msg := err.Error()
		var uerr *coverage.UpstreamError
		if errors.As(err, &uerr) {
			msg = uerr.Message
		}
		return Result{
			Text:    "CMS API error: " + msg,
			Outcome: OutcomeUpstreamError,
			Err:     err,
		}
	}

	// Extract
	item, ok := resp.First()
	if !ok {
		log.Warn("CMS returned no NCD record", "ncd_id", id, "ncd_ver", ver)
		return Result{
			Text:    fmt.Sprintf("No NCD record found for id=%s version=%s", id, ver),
			Outcome: OutcomeNotFound,
			Err:     fmt.Errorf("%w: id=%s version=%s", ErrRecordNotFound, id, ver),
		}
	}

	// Normalize and respond
	text, err := Render(Normalize(item))
	if err != nil {
		// only reachable with a document id that is not valid JSON
		return Result{
			Text:    "CMS API error: " + err.Error(),
			Outcome: OutcomeUpstreamError,
			Err:     err,
		}
	}
	return Result{Text: text, Outcome: OutcomeSuccess}
}

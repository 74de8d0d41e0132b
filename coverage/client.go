// Package coverage fetches National Coverage Determination documents from the
// public CMS coverage API.
package coverage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/giygas/priorauth-checker/config"
	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
	"github.com/giygas/priorauth-checker/logging"
	"github.com/giygas/priorauth-checker/metrics"
	"github.com/giygas/priorauth-checker/telemetry"
)

// DefaultTimeout bounds one CMS request when no timeout is configured
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read
const maxBodySize = 16 << 20

// UserAgent is sent with every request
var UserAgent = config.AppName + "/" + config.AppVersion

// Compile-time check to ensure Client implements PolicyFetcher
var _ interfaces.PolicyFetcher = (*Client)(nil)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Tracer     trace.Tracer
}

// Client issues one GET per call. It never retries or caches.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tracer  trace.Tracer
}

// NewClient validates the base endpoint and builds a client
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("coverage: invalid base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("coverage: base url must be an absolute http(s) url, got %q", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer()
	}

	return &Client{baseURL: u, http: hc, tracer: tracer}, nil
}

// RequestURL returns the endpoint queried for one id and version
func (c *Client) RequestURL(policyID, policyVersion string) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("ncdid", policyID)
	q.Set("ncdver", policyVersion)
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchPolicy retrieves the document for one id and version. Every error it
// returns is an *UpstreamError.
func (c *Client) FetchPolicy(ctx context.Context, policyID, policyVersion string) (*entities.PolicyResponse, error) {
	ctx, span := c.tracer.Start(ctx, "coverage.Client.FetchPolicy",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ncd.id", policyID),
			attribute.String("ncd.version", policyVersion),
		),
	)
	defer span.End()

	start := time.Now()
	resp, uerr := c.fetch(ctx, policyID, policyVersion)

	status := http.StatusOK
	if uerr != nil {
		status = uerr.StatusCode
	}
	label := metrics.StatusLabel(status)
	metrics.CMSRequestsTotal.WithLabelValues(label).Inc()
	metrics.CMSRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if uerr != nil {
		span.RecordError(uerr)
		span.SetStatus(codes.Error, uerr.Message)
		if uerr.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", uerr.StatusCode))
		}
		logging.Warn("CMS request failed",
			"ncd_id", policyID,
			"ncd_ver", policyVersion,
			"status_code", uerr.StatusCode,
			"error", uerr.Message,
		)
		return nil, uerr
	}

	span.SetAttributes(attribute.Int("ncd.items", len(resp.Items)))
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, policyID, policyVersion string) (*entities.PolicyResponse, *UpstreamError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.RequestURL(policyID, policyVersion), nil)
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	logging.Debug("Requesting CMS NCD document", "url", req.URL.String())

	res, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer func() {
		if cerr := res.Body.Close(); cerr != nil {
			logging.Warn("Failed to close response body", "error", cerr)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodySize))
		return nil, statusError(res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, transportError(err)
	}

	items, err := decodeItems(body)
	if err != nil {
		return nil, transportError(err)
	}
	return &entities.PolicyResponse{Items: items}, nil
}

// decodeItems extracts the "data" array. Any valid JSON that does not carry
// an array under "data" yields no items; invalid JSON is an error.
func decodeItems(body []byte) ([]entities.PolicyItem, error) {
	var doc json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 || doc[0] != '{' {
		return nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(doc, &envelope); err != nil {
		return nil, err
	}

	raw, ok := envelope["data"]
	if !ok {
		return nil, nil
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}

	items := make([]entities.PolicyItem, 0, len(elems))
	for _, elem := range elems {
		items = append(items, decodeItem(elem))
	}
	return items, nil
}

// decodeItem reads one record field by field so a field of an unexpected
// type is dropped instead of failing the whole document
func decodeItem(raw json.RawMessage) entities.PolicyItem {
	var item entities.PolicyItem
	if isEmptyValue(raw) {
		item.Empty = true
		return item
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return item
	}

	item.DocumentID = passThrough(fields["document_id"])
	item.DocumentVersion = passThrough(fields["document_version"])
	item.Title = textField(fields["title"])
	item.BenefitCategory = textField(fields["benefit_category"])
	item.IndicationsLimitations = textField(fields["indications_limitations"])
	item.TransmittalNumber = textField(fields["transmittal_number"])
	item.TransmittalURL = textField(fields["transmittal_url"])
	return item
}

// isEmptyValue reports whether raw is null, false, a zero number or ""
func isEmptyValue(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true
	}
	switch raw[0] {
	case 'n', 'f':
		return bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false"))
	case '"':
		return bytes.Equal(raw, []byte(`""`))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(raw), 64)
		return err == nil && f == 0
	}
	return false
}

// passThrough keeps an identifier exactly as sent, null included. Only a
// missing key yields nil.
func passThrough(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// textField returns strings as-is and non-zero numbers in their JSON form;
// anything else becomes the empty string
func textField(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if string(raw) != "0" {
			return string(raw)
		}
	}
	return ""
}

package entities

import "encoding/json"

// PolicyItem is one record of the CMS "data" array. The identifiers are kept
// raw so numbers and strings pass through exactly as the API sent them.
type PolicyItem struct {
	DocumentID             json.RawMessage `json:"document_id,omitempty"`
	DocumentVersion        json.RawMessage `json:"document_version,omitempty"`
	Title                  string          `json:"title"`
	BenefitCategory        string          `json:"benefit_category"`
	IndicationsLimitations string          `json:"indications_limitations"`
	TransmittalNumber      string          `json:"transmittal_number"`
	TransmittalURL         string          `json:"transmittal_url"`

	// Empty marks an element that was null, false, 0 or "" on the wire
	Empty bool `json:"-"`
}

// PolicyResponse is the decoded body of a successful CMS call.
type PolicyResponse struct {
	Items []PolicyItem `json:"data"`
}

// First returns the first item, if any. An empty first element counts as
// missing.
func (r *PolicyResponse) First() (PolicyItem, bool) {
	if r == nil || len(r.Items) == 0 || r.Items[0].Empty {
		return PolicyItem{}, false
	}
	return r.Items[0], true
}

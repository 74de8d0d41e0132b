package entities

import "encoding/json"

// NormalizedPolicy is the record returned to the caller. Field order is the
// output key order.
type NormalizedPolicy struct {
	DocumentID             json.RawMessage `json:"document_id,omitempty"`
	DocumentVersion        json.RawMessage `json:"document_version,omitempty"`
	Title                  string          `json:"title"`
	BenefitCategory        string          `json:"benefit_category"`
	IndicationsLimitations string          `json:"indications_limitations"`
	TransmittalNumber      string          `json:"transmittal_number"`
	TransmittalURL         string          `json:"transmittal_url"`
}

// Package validation provides data validation functionality for the NCD
// reference table and for the inputs of the admin HTTP API.
package validation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/giygas/priorauth-checker/entities"
	"github.com/giygas/priorauth-checker/interfaces"
	"github.com/giygas/priorauth-checker/lookup"
)

// Pre-compiled patterns, compiled once at package initialization
var (
	// Titles: letters, digits, spaces and the punctuation found in NCD manual titles
	inputRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-\.\+'(),/&:;]+$`)

	// NCD ids look like 313, 20.4 or 160.18; versions are plain numbers
	policyIDRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "@import",
		// SQL injection patterns
		"' or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

const (
	maxTitleLength    = 200
	maxPolicyIDLength = 16
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct {
	validate *validator.Validate
}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{validate: validator.New()}
}

// ValidateEntry checks if a reference entry is usable
func (v *DataValidatorImpl) ValidateEntry(e *entities.LookupEntry) error {
	if e == nil {
		return fmt.Errorf("entry is nil")
	}

	if err := v.validate.Struct(e); err != nil {
		return fmt.Errorf("invalid entry %q: %w", e.Title, err)
	}

	if len(e.Title) > maxTitleLength {
		return fmt.Errorf("title too long for NCD %s: %d characters", e.PolicyID, len(e.Title))
	}

	if err := v.ValidatePolicyID(e.PolicyID); err != nil {
		return fmt.Errorf("invalid NCD id for %q: %w", e.Title, err)
	}

	if err := v.ValidatePolicyID(e.PolicyVersion); err != nil {
		return fmt.Errorf("invalid NCD version for %q: %w", e.Title, err)
	}

	return nil
}

// ReportReferenceQuality lists duplicate titles and titles that resolve to an
// earlier entry instead of themselves
func (v *DataValidatorImpl) ReportReferenceQuality(entries []entities.LookupEntry) *interfaces.ReferenceQualityReport {
	report := &interfaces.ReferenceQualityReport{
		TotalEntries:    len(entries),
		DuplicateTitles: []string{},
		ShadowedTitles:  []string{},
	}

	table := lookup.NewBuiltinTable(entries)
	seen := make(map[string]bool)

	for _, e := range entries {
		if v.ValidateEntry(&e) != nil {
			report.IncompleteEntries++
		}

		key := strings.ToLower(strings.TrimSpace(e.Title))
		if key == "" {
			continue
		}
		if seen[key] {
			report.DuplicateTitles = append(report.DuplicateTitles, e.Title)
			continue
		}
		seen[key] = true

		got, ok, err := table.Resolve(context.Background(), e.Title)
		if err != nil || !ok {
			continue
		}
		if got.PolicyID != e.PolicyID || got.PolicyVersion != e.PolicyVersion ||
			!strings.EqualFold(strings.TrimSpace(got.Title), strings.TrimSpace(e.Title)) {
			report.ShadowedTitles = append(report.ShadowedTitles, e.Title)
		}
	}

	return report
}

// ValidateInput validates a free-text title
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) < 3 {
		return fmt.Errorf("input too short: minimum 3 characters")
	}

	if len(input) > maxTitleLength {
		return fmt.Errorf("input too long: maximum %d characters", maxTitleLength)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters")
	}

	if v.hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidatePolicyID validates an NCD id or version
func (v *DataValidatorImpl) ValidatePolicyID(input string) error {
	if input == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) > maxPolicyIDLength {
		return fmt.Errorf("input too long: maximum %d characters", maxPolicyIDLength)
	}

	if !policyIDRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only digits separated by dots are allowed")
	}

	return nil
}

// hasExcessiveRepetition checks for the same character repeated more than 10
// times consecutively
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}

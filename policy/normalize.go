package policy

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/giygas/priorauth-checker/entities"
)

// tagPattern matches an opening or closing tag, including one left
// unterminated at the end of the text
var tagPattern = regexp.MustCompile(`</?[^>]+(>|$)`)

// StripHTML removes markup from s and collapses whitespace. The result holds
// no angle brackets and no control characters, and StripHTML(StripHTML(s))
// equals StripHTML(s).
func StripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '<' || r == '>':
			return -1
		case r == '\ufeff':
			return ' '
		case unicode.IsSpace(r):
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Normalize builds the output record. Identifiers and the transmittal URL are
// passed through untouched.
func Normalize(item entities.PolicyItem) entities.NormalizedPolicy {
	return entities.NormalizedPolicy{
		DocumentID:             item.DocumentID,
		DocumentVersion:        item.DocumentVersion,
		Title:                  StripHTML(item.Title),
		BenefitCategory:        StripHTML(item.BenefitCategory),
		IndicationsLimitations: StripHTML(item.IndicationsLimitations),
		TransmittalNumber:      StripHTML(item.TransmittalNumber),
		TransmittalURL:         item.TransmittalURL,
	}
}

// Render serializes the record as JSON indented by two spaces. HTML
// characters are written literally.
func Render(p entities.NormalizedPolicy) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Package lookup resolves free-text policy titles to NCD identifiers using
// either the built-in reference table or a read-only SQLite file.
package lookup

import "strings"

const (
	SourceBuiltin  = "built-in"
	SourceDatabase = "database"
)

// DefaultSearchLimit caps Search when the caller passes a non-positive limit
const DefaultSearchLimit = 5

// normalizeQuery trims and lowercases a title before matching
func normalizeQuery(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// matches reports whether an entry title and a normalized query contain one
// another. Empty values never match.
func matches(entryTitle, query string) bool {
	if query == "" {
		return false
	}
	t := strings.ToLower(strings.TrimSpace(entryTitle))
	if t == "" {
		return false
	}
	return strings.Contains(t, query) || strings.Contains(query, t)
}

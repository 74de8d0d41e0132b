package entities

// PolicyQuery holds the caller supplied parameters of one tool invocation.
type PolicyQuery struct {
	PolicyID      string
	PolicyVersion string
	Title         string
}

// NeedsResolution reports whether the title has to be resolved to an id.
// A caller supplied id always wins over the title.
func (q PolicyQuery) NeedsResolution() bool {
	return q.PolicyID == "" && q.Title != ""
}

package entities

// LookupEntry maps a policy title to its NCD identifier and version.
// Entries are loaded once at startup and never modified.
type LookupEntry struct {
	Title         string `json:"title" yaml:"title" validate:"required"`
	PolicyID      string `json:"ncd_id" yaml:"ncd_id" validate:"required"`
	PolicyVersion string `json:"ncd_ver" yaml:"ncd_ver" validate:"required"`
}

package model

import "time"

// ValidationResult compares the citations in a document body with its references block.
// All slices are sorted ascending.
type ValidationResult struct {
	Valid    bool  `json:"valid"`
	Cited    []int `json:"cited"`    // Numbers found in inline citation markers
	Declared []int `json:"declared"` // Numbers listed in the references block
	Missing  []int `json:"missing"`  // Cited but not declared (a claim with no backing citation shown)
	Extra    []int `json:"extra"`    // Declared but never cited
	Unknown  []int `json:"unknown"`  // Cited numbers absent from the reference catalog
}

// PostProcessResult is the output of rebuilding a document's references block
type PostProcessResult struct {
	HTML        string `json:"html"`
	References  []int  `json:"references"`
	WasModified bool   `json:"was_modified"`
}

// PatternMatch records a claim pattern that matched a document's body text
type PatternMatch struct {
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Refs        []int  `json:"refs"`
	Excerpt     string `json:"excerpt"`
}

// AuditResult is an advisory comparison of detected claims against the body's citations
type AuditResult struct {
	Required []int          `json:"required"` // Base reference plus refs of every matched claim pattern
	Cited    []int          `json:"cited"`
	Uncited  []int          `json:"uncited"` // Required but never cited in the body
	Matches  []PatternMatch `json:"matches"`
}

// CheckReport is the outcome of checking and correcting one document
type CheckReport struct {
	Source         string            `json:"source"`
	CatalogVersion string            `json:"catalog_version"`
	Before         ValidationResult  `json:"before"`
	After          *ValidationResult `json:"after,omitempty"` // nil when the document could not be corrected
	Audit          AuditResult       `json:"audit"`
	Fixed          PostProcessResult `json:"fixed"`
	Truncated      bool              `json:"truncated,omitempty"` // Source exceeded the size limit
	Cached         bool              `json:"cached,omitempty"`
	CheckedAt      time.Time         `json:"checked_at"`
}

package model

import "time"

// LinkCheck is the reachability of one catalog reference's source URL
type LinkCheck struct {
	Reference    int        `json:"reference"`
	URL          string     `json:"url"`
	StatusCode   int        `json:"status_code,omitempty"`
	IsAccessible bool       `json:"is_accessible"`
	IsDead       bool       `json:"is_dead"` // 404/410 or unreachable
	RedirectURL  string     `json:"redirect_url,omitempty"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Age          *int       `json:"age_days,omitempty"`
	IsStale      bool       `json:"is_stale"`      // Older than 1 year
	IsVeryStale  bool       `json:"is_very_stale"` // Older than 3 years
	Error        string     `json:"error,omitempty"`
}

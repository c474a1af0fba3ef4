package model

import "regexp"

// ClaimPattern pairs a body-text regex with the reference numbers any matching claim requires.
// Every matching pattern contributes its refs; Priority is descriptive and never used to
// exclude a lower-priority match.
type ClaimPattern struct {
	Pattern     *regexp.Regexp
	Refs        []int
	Priority    int
	Description string
}

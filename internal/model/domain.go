package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDomain is returned when a domain tag is not one of the supported content categories
var ErrUnknownDomain = errors.New("unknown domain")

// Domain selects a wizard's step schema
type Domain string

const (
	DomainHCPEmail    Domain = "hcp-email"
	DomainSocialMedia Domain = "social-media"
	DomainVideo       Domain = "video"
)

// Domains lists every supported domain in display order
func Domains() []Domain {
	return []Domain{DomainHCPEmail, DomainSocialMedia, DomainVideo}
}

// ParseDomain parses a domain tag (case-insensitive, surrounding whitespace ignored)
func ParseDomain(s string) (Domain, error) {
	tag := Domain(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range Domains() {
		if d == tag {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q (supported: hcp-email, social-media, video)", ErrUnknownDomain, s)
}

func (d Domain) String() string {
	return string(d)
}

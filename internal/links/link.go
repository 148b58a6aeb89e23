// Package links stores short code to target URL mappings in the shared
// key-value namespace. Link keys carry no prefix; keys under a reserved
// prefix belong to other record kinds and are never treated as links.
package links

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Code is a short code, the unique key of a link.
type Code string

// Link is a redirect mapping.
type Link struct {
	Code      Code
	URL       string
	CreatedAt time.Time // zero when the record has no created metadata
}

var (
	ErrNotFound    = errors.New("link not found")
	ErrConflict    = errors.New("slug already exists")
	ErrInvalidURL  = errors.New("invalid url")
	ErrInvalidSlug = errors.New("invalid slug")
)

// MetadataCreated is the metadata field holding the RFC 3339 creation time.
const MetadataCreated = "created"

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// routeSlugs are single-segment paths served by fixed routes. A link under
// one of them would never be reached.
var routeSlugs = map[string]struct{}{
	"login":  {},
	"health": {},
}

// ShadowedByRoute reports whether code is a path owned by a fixed route.
func ShadowedByRoute(code string) bool {
	_, ok := routeSlugs[code]

	return ok
}

// ValidateSlug reports whether slug is usable as a custom short code.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) || ShadowedByRoute(slug) {
		return ErrInvalidSlug
	}

	return nil
}

// ValidateURL requires an absolute http or https URL.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return ErrInvalidURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}

	return nil
}

package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DomainKey is a lowercase hostname with a single leading "www." removed.
// Two URLs are same-origin when their keys are equal.
type DomainKey string

// NormalizeHost derives the DomainKey of raw. It fails with ErrInvalidURL when
// raw does not parse or carries no host.
func NormalizeHost(raw string) (DomainKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return DomainKey(host), nil
}

// SameOrigin reports whether raw belongs to start. Unparsable URLs are never
// same-origin.
func SameOrigin(raw string, start DomainKey) bool {
	key, err := NormalizeHost(raw)
	if err != nil {
		return false
	}
	return key == start
}

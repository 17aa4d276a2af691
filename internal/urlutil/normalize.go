// Package urlutil provides URL validation and normalization helpers.
//
// Two URLs that differ only by scheme/host casing, default port, fragment,
// or trailing slash are the same download identity. Every checkpoint lookup
// and mutation goes through Normalize so duplicates cannot slip in.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidURL is returned when a URL cannot be parsed or lacks a host.
var ErrInvalidURL = errors.New("invalid URL")

// defaultPorts maps schemes to their default ports, which are stripped
// during normalization.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize returns the canonical identity form of rawURL: scheme and host
// lowercased, default port stripped, fragment removed, trailing slash
// removed from non-root paths.
func Normalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	// Scheme detection must be case-insensitive or "HTTP://x.com" would
	// get a second scheme prepended and break the identity key.
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host: %s", ErrInvalidURL, rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if port := u.Port(); port != "" && port == defaultPorts[u.Scheme] {
		u.Host = u.Hostname()
	}

	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// Filename returns the base name of the URL path, or "" when the path has
// no usable final segment.
func Filename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// Host returns the lowercased hostname of the URL, without port.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

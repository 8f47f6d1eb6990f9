package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// BaseURL extracts scheme://host[:port] from a URL string. The base is the
// crawl queue's partition key: links whose base differs from the current
// page's base are domain boundaries.
func BaseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// baseURLOrSelf falls back to the raw string when the URL cannot be parsed,
// so base comparison still yields a stable (never-equal) value.
func baseURLOrSelf(rawURL string) string {
	base, err := BaseURL(rawURL)
	if err != nil {
		return rawURL
	}
	return base
}

// isHTTP reports whether the link uses a crawlable scheme.
func isHTTP(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// validLink checks that a link parses and carries a host.
func validLink(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Host != ""
}

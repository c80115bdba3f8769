package scrape

import (
	"net/url"
	"strings"
)

// Normalize canonicalizes a raw input string into a fetchable absolute URL.
// It trims whitespace, prepends https:// when no scheme is present, and strips
// exactly one trailing slash. Pure and idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}
	s = strings.TrimSuffix(s, "/")
	return s
}

// Hostname extracts the lowercase hostname from a raw or normalized URL.
// It returns "unknown" if the URL cannot be parsed.
func Hostname(rawURL string) string {
	u, err := url.Parse(Normalize(rawURL))
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

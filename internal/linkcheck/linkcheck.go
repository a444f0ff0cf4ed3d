// Package linkcheck decides whether a hotspot source URL is worth keeping.
package linkcheck

import (
	"net/url"
	"strings"
)

var placeholderHosts = map[string]bool{
	"example.com":     true,
	"test.com":        true,
	"fake.com":        true,
	"placeholder.com": true,
}

var knownHosts = map[string]bool{
	"github.com":           true,
	"twitter.com":          true,
	"x.com":                true,
	"reddit.com":           true,
	"news.ycombinator.com": true,
	"techcrunch.com":       true,
	"theverge.com":         true,
	"wired.com":            true,
	"medium.com":           true,
	"dev.to":               true,
	"youtube.com":          true,
}

// Valid reports whether raw is an absolute http(s) URL whose hostname is on
// the allow list. Hostnames must match exactly; subdomains are rejected.
func Valid(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" || placeholderHosts[host] {
		return false
	}
	return knownHosts[host]
}

// Normalize returns raw trimmed when Valid, or nil.
func Normalize(raw string) *string {
	if !Valid(raw) {
		return nil
	}
	v := strings.TrimSpace(raw)
	return &v
}

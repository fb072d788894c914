// Package filter implements the filter_url collaborator: a domain denylist
// checked after request-line parsing but before connecting upstream.
package filter

import (
	"path"
	"strings"
)

// List matches a lowercased hostname against a set of patterns. Patterns
// may be exact hostnames, ".suffix" domain-suffix matches (so ".example.com"
// matches "a.example.com" but not "example.com" itself, matching the
// original's leading-dot convention), or shell-style globs understood by
// path.Match ("*.example.com"). No pack example repo carries a dedicated
// glob-matching dependency, so this stays on the standard library's
// path.Match rather than reaching for a third-party matcher.
type List struct {
	enabled  bool
	patterns []string
}

// New builds a List. enabled mirrors the "filtering is enabled" configuration
// flag; when false, Denied always reports false regardless of patterns.
func New(enabled bool, patterns []string) *List {
	normalized := make([]string, len(patterns))
	for i, p := range patterns {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return &List{enabled: enabled, patterns: normalized}
}

// Denied reports whether host matches a denied domain pattern. Returns false
// unconditionally when filtering is disabled or the list is nil.
func (l *List) Denied(host string) bool {
	if l == nil || !l.enabled {
		return false
	}
	host = strings.ToLower(host)
	for _, p := range l.patterns {
		switch {
		case strings.HasPrefix(p, "."):
			if strings.HasSuffix(host, p) {
				return true
			}
		case strings.ContainsAny(p, "*?["):
			if ok, _ := path.Match(p, host); ok {
				return true
			}
		default:
			if host == p {
				return true
			}
		}
	}
	return false
}

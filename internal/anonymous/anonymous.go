// Package anonymous implements the anonymity allow-list: when enabled, only
// listed client header names are forwarded to the origin or upstream.
package anonymous

import "strings"

// List is the anonymity allow-list described by the header rewriting
// policy. A nil List behaves as disabled.
type List struct {
	enabled bool
	allowed map[string]bool
}

// New builds a List from a set of header names. Matching is
// case-insensitive, consistent with the header map's keying.
func New(enabled bool, allowedHeaders []string) *List {
	m := make(map[string]bool, len(allowedHeaders))
	for _, h := range allowedHeaders {
		m[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return &List{enabled: enabled, allowed: m}
}

// Enabled reports whether anonymity mode is active.
func (l *List) Enabled() bool {
	return l != nil && l.enabled
}

// Allowed reports whether the given header name (case-insensitive) may be
// forwarded while anonymity mode is enabled. Meaningless, and always true,
// when Enabled() is false.
func (l *List) Allowed(name string) bool {
	if l == nil || !l.enabled {
		return true
	}
	return l.allowed[strings.ToLower(strings.TrimSpace(name))]
}

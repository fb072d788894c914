// Package headermap implements the case-insensitive, multi-insert header
// map described by the proxy's data model: header names key the map
// case-insensitively, values are preserved byte-for-byte, and keys
// enumerate in insertion order so forwarded output is deterministic.
package headermap

import "strings"

// entry holds one inserted header; Key retains the lowercased form used for
// lookups, Value is the raw bytes after the separator run was stripped.
type entry struct {
	key   string
	value string
}

// Map is a case-insensitive, insertion-ordered multimap from header name to
// raw value. The zero value is ready to use.
type Map struct {
	entries []entry
	order   []string // first-seen lowercased keys, in insertion order
	seen    map[string]bool
}

// New returns an empty Map.
func New() *Map {
	return &Map{seen: make(map[string]bool)}
}

func normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Insert adds a header, keyed case-insensitively. Multiple inserts under the
// same key are all retained; Lookup returns only the first.
func (m *Map) Insert(key, value string) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	k := normalize(key)
	m.entries = append(m.entries, entry{key: k, value: value})
	if !m.seen[k] {
		m.seen[k] = true
		m.order = append(m.order, k)
	}
}

// Lookup returns the first value inserted under key (case-insensitive) and
// its length, or ok=false if no such header exists.
func (m *Map) Lookup(key string) (value string, length int, ok bool) {
	k := normalize(key)
	for _, e := range m.entries {
		if e.key == k {
			return e.value, len(e.value), true
		}
	}
	return "", 0, false
}

// Remove deletes every entry inserted under key (case-insensitive).
func (m *Map) Remove(key string) {
	k := normalize(key)
	if !m.seen[k] {
		return
	}
	filtered := m.entries[:0]
	for _, e := range m.entries {
		if e.key != k {
			filtered = append(filtered, e)
		}
	}
	m.entries = filtered
	delete(m.seen, k)
	for i, ok := range m.order {
		if ok == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Keys returns the set of distinct keys in first-insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Values returns every value inserted under key, in insertion order.
func (m *Map) Values(key string) []string {
	k := normalize(key)
	var out []string
	for _, e := range m.entries {
		if e.key == k {
			out = append(out, e.value)
		}
	}
	return out
}

// Len returns the number of distinct keys currently stored.
func (m *Map) Len() int {
	return len(m.order)
}

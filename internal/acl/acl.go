// Package acl implements the check_acl collaborator: a peer-address policy
// gate evaluated once per accepted connection, before any request parsing.
package acl

import (
	"net/netip"
)

// List evaluates a client address against allow/deny CIDR rules. A nil List
// (or one with no rules at all) allows every peer, matching the "ACL
// disabled" configuration state.
type List struct {
	allow []netip.Prefix
	deny  []netip.Prefix
}

// New builds a List from CIDR strings. Malformed entries are skipped; callers
// that need strict validation should validate with netip.ParsePrefix during
// configuration loading instead.
func New(allow, deny []string) *List {
	l := &List{}
	for _, a := range allow {
		if p, err := netip.ParsePrefix(a); err == nil {
			l.allow = append(l.allow, p)
		}
	}
	for _, d := range deny {
		if p, err := netip.ParsePrefix(d); err == nil {
			l.deny = append(l.deny, p)
		}
	}
	return l
}

// Allow reports whether addr may proceed. Deny rules take precedence over
// allow rules. When no allow rules are configured at all, any address not
// explicitly denied is permitted (default-allow, matching tinyproxy's
// default of no ACL file configured).
func (l *List) Allow(addr netip.Addr) bool {
	if l == nil {
		return true
	}
	for _, d := range l.deny {
		if d.Contains(addr) {
			return false
		}
	}
	if len(l.allow) == 0 {
		return true
	}
	for _, a := range l.allow {
		if a.Contains(addr) {
			return true
		}
	}
	return false
}

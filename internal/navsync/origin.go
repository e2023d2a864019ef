package navsync

import (
	"slices"
	"strings"
)

// AnyOrigin accepts messages from, and targets, every origin.
const AnyOrigin = "*"

// OriginPolicy is an allow-list of message origins.
//
// The zero value and a list containing "*" accept every origin; the deck
// content is public so this is the default.
type OriginPolicy struct {
	allowed []string
}

// NewOriginPolicy builds a policy from configured origins.
func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{}
	for _, o := range origins {
		o = normalizeOrigin(o)
		if o == "" || slices.Contains(p.allowed, o) {
			continue
		}
		p.allowed = append(p.allowed, o)
	}
	return p
}

// Allows reports whether a message from origin should be processed.
func (p OriginPolicy) Allows(origin string) bool {
	if p.Open() {
		return true
	}
	return slices.Contains(p.allowed, normalizeOrigin(origin))
}

// Open reports whether every origin is accepted.
func (p OriginPolicy) Open() bool {
	return len(p.allowed) == 0 || slices.Contains(p.allowed, AnyOrigin)
}

// Origins returns the normalized allow-list.
func (p OriginPolicy) Origins() []string {
	if p.Open() {
		return []string{AnyOrigin}
	}
	return slices.Clone(p.allowed)
}

func normalizeOrigin(o string) string {
	o = strings.TrimSpace(o)
	if o == AnyOrigin {
		return o
	}
	return strings.ToLower(strings.TrimSuffix(o, "/"))
}

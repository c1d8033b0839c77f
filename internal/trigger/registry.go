// Package trigger maps observed facts (running processes, hardware
// edges) to trigger rules and turns their edges into coordinator calls.
//
// Triggers only start sessions from Inactive and only end sessions they
// started themselves.
package trigger

import "slices"

// Rule binds a key (process name or hardware edge kind) to a label.
type Rule struct {
	Key     string
	Label   string
	Enabled bool
}

// KeySet is a set of process names or edge kinds.
type KeySet map[string]struct{}

// NewKeySet returns a set containing keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether k is in s.
func (s KeySet) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Match returns the first enabled rule, in configured order, whose key
// is in running. It never matches while the feature is disabled.
func Match(running KeySet, rules []Rule, featureEnabled bool) (Rule, bool) {
	if !featureEnabled {
		return Rule{}, false
	}
	for _, r := range rules {
		if r.Enabled && r.Key != "" && running.Has(r.Key) {
			return r, true
		}
	}
	return Rule{}, false
}

// labelsFor returns the distinct labels of every rule with key, enabled
// or not, in configured order.
func labelsFor(rules []Rule, key string) []string {
	var out []string
	for _, r := range rules {
		if r.Key == key && !slices.Contains(out, r.Label) {
			out = append(out, r.Label)
		}
	}
	return out
}

// hasEnabled reports whether any enabled rule has key.
func hasEnabled(rules []Rule, key string) bool {
	for _, r := range rules {
		if r.Enabled && r.Key == key {
			return true
		}
	}
	return false
}

package domain

import (
	"sort"
	"strings"
)

// Scope is a set of OAuth scope strings. Order carries no meaning; the
// space-joined wire form exists only at the HTTP and storage edges.
type Scope []string

// ParseScope splits a space-delimited scope parameter into a Scope,
// dropping empty entries and duplicates.
func ParseScope(raw string) Scope {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	scope := make(Scope, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		scope = append(scope, f)
	}
	return scope
}

// String renders the space-delimited wire form.
func (s Scope) String() string {
	return strings.Join(s, " ")
}

// IsEmpty reports whether the scope set has no entries.
func (s Scope) IsEmpty() bool {
	return len(s) == 0
}

// Contains reports whether the named scope is a member of the set.
func (s Scope) Contains(name string) bool {
	for _, entry := range s {
		if entry == name {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every entry of s is a member of other.
func (s Scope) SubsetOf(other Scope) bool {
	for _, entry := range s {
		if !other.Contains(entry) {
			return false
		}
	}
	return true
}

// Missing returns the entries of s that are not members of other,
// sorted for stable error messages.
func (s Scope) Missing(other Scope) []string {
	var missing []string
	for _, entry := range s {
		if !other.Contains(entry) {
			missing = append(missing, entry)
		}
	}
	sort.Strings(missing)
	return missing
}

// Clone returns an independent copy of the scope set.
func (s Scope) Clone() Scope {
	if s == nil {
		return nil
	}
	out := make(Scope, len(s))
	copy(out, s)
	return out
}

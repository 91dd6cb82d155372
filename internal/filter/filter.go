// Package filter turns checked filter controls into a grouped selection, a
// record predicate and the equivalent map-surface filter expression. The
// predicate and the expression always accept the same records.
package filter

import (
	"sort"
)

// KeyIndoorOutdoor is the weather attribute subject to the Mixed implication.
const KeyIndoorOutdoor = "indoor_outdoor"

const (
	weatherIndoor  = "Indoor"
	weatherOutdoor = "Outdoor"
	weatherMixed   = "Mixed"
)

// Check is one checked filter control.
type Check struct {
	Key   string `json:"filter"`
	Value string `json:"value"`
}

// Properties is anything that exposes string attribute values by key.
type Properties interface {
	Value(key string) (string, bool)
}

// PropertyMap adapts a plain map to Properties.
type PropertyMap map[string]string

// Value implements Properties.
func (m PropertyMap) Value(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Selection maps an attribute key to the values accepted for it. An empty
// selection accepts every record.
type Selection map[string][]string

// Group rebuilds the selection from the full set of checked controls:
// values are grouped per key, duplicates dropped, and Mixed is added to
// indoor_outdoor whenever Indoor or Outdoor is selected.
func Group(checks []Check) Selection {
	sel := Selection{}
	for _, c := range checks {
		if c.Key == "" {
			continue
		}
		if !contains(sel[c.Key], c.Value) {
			sel[c.Key] = append(sel[c.Key], c.Value)
		}
	}

	if weather, ok := sel[KeyIndoorOutdoor]; ok {
		if (contains(weather, weatherOutdoor) || contains(weather, weatherIndoor)) && !contains(weather, weatherMixed) {
			sel[KeyIndoorOutdoor] = append(weather, weatherMixed)
		}
	}
	return sel
}

// Reset returns the empty selection.
func Reset() Selection {
	return Selection{}
}

// IsEmpty reports whether the selection filters nothing.
func (s Selection) IsEmpty() bool {
	return len(s) == 0
}

// Keys returns the selected attribute keys in sorted order.
func (s Selection) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether props satisfy every key of the selection, where a
// key is satisfied by any one of its selected values. A missing property
// never satisfies a key.
func (s Selection) Matches(props Properties) bool {
	for key, values := range s {
		v, ok := props.Value(key)
		if !ok || !contains(values, v) {
			return false
		}
	}
	return true
}

// Predicate returns Matches as a function value.
func (s Selection) Predicate() func(Properties) bool {
	return s.Matches
}

// Clone returns a deep copy.
func (s Selection) Clone() Selection {
	cp := make(Selection, len(s))
	for k, v := range s {
		cp[k] = append([]string(nil), v...)
	}
	return cp
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// ActiveCount is the number of checked controls shown on the filter
// indicator badge. Implied values such as Mixed are not counted.
func ActiveCount(checks []Check) int {
	n := 0
	for _, c := range checks {
		if c.Key != "" {
			n++
		}
	}
	return n
}

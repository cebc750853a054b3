// Package binding holds the variable bindings of a compilation and substitutes them into
// markup through strict {{name}} placeholders.
package binding

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
)

// ErrInvalidName is returned when a binding name is blank after normalization.
var ErrInvalidName = errors.New("invalid variable name")

// Bindings maps normalized variable names to values. Values are usually strings; variable
// files may also provide numbers, booleans, lists and objects.
type Bindings map[string]any

// NormalizeName trims the name and replaces dots with underscores, so a copied file
// "app.min.js" is addressable as {{app_min_js}}.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), ".", "_")
}

// Set binds value to the normalized name, replacing the previous value.
func (b Bindings) Set(name string, value any) error {
	k := NormalizeName(name)
	if k == "" {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if value == nil {
		return fmt.Errorf("variable %q: nil value", k)
	}
	b[k] = value
	return nil
}

// Merge copies all bindings of other into b. Values of other win on name collision.
func (b Bindings) Merge(other Bindings) {
	maps.Copy(b, other)
}

// Clone returns a shallow copy of b.
func (b Bindings) Clone() Bindings {
	if b == nil {
		return Bindings{}
	}
	return maps.Clone(b)
}

// Names returns the sorted list of bound names.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FromMap normalizes the keys of m.
func FromMap(m map[string]any) (Bindings, error) {
	b := make(Bindings, len(m))
	for k, v := range m {
		if err := b.Set(k, v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ParseAssignment splits a "name=value" command line argument.
func ParseAssignment(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", fmt.Errorf("expected name=value, got %q", s)
	}
	if NormalizeName(name) == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return NormalizeName(name), value, nil
}

// Package collation supplies the string-comparison capability injected
// into the value model and evaluator, per the design note in spec.md §9:
// collation is an injected capability, never baked into global state.
package collation

import "strings"

// Collation compares and tests equality of strings under a locale/case
// policy.
type Collation struct {
	name     string
	compare  func(a, b string) int
	foldCase bool
}

// Name returns a human-readable identifier for the collation, useful in
// diagnostics and test output.
func (c *Collation) Name() string {
	return c.name
}

// Compare returns -1, 0, or 1 as a orders before, equal to, or after b.
func (c *Collation) Compare(a, b string) int {
	return c.compare(a, b)
}

// Equal reports whether a and b are equal under this collation.
func (c *Collation) Equal(a, b string) bool {
	return c.Compare(a, b) == 0
}

// Fold applies this collation's case policy to s, used by LIKE pattern
// matching so that '%'/'_' wildcards compare character-by-character under
// the same policy as Compare/Equal.
func (c *Collation) Fold(s string) string {
	if c.foldCase {
		return strings.ToUpper(s)
	}
	return s
}

// Invariant is the deterministic, byte-wise, case-sensitive collation.
// Tests inject this collation, per spec.md §9.
func Invariant() *Collation {
	return &Collation{
		name: "invariant",
		compare: func(a, b string) int {
			return strings.Compare(a, b)
		},
	}
}

// CaseInsensitive returns a collation that folds case before comparing.
// The culture argument is retained for interface symmetry with multi-locale
// collation tables maintained outside this module (§1: culture/collation
// tables are out of scope here); this module only implements the invariant
// policy and a case-insensitive policy that folds with strings.ToUpper
// (Unicode case mapping, the same for every culture).
func CaseInsensitive(culture string) *Collation {
	return &Collation{
		name:     "case-insensitive:" + culture,
		foldCase: true,
		compare: func(a, b string) int {
			return strings.Compare(strings.ToUpper(a), strings.ToUpper(b))
		},
	}
}

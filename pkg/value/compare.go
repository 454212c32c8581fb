package value

import (
	"bytes"
	"time"

	"github.com/quiverdb/quiverdb/pkg/collation"
)

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

// typeRank orders the variants for cross-type comparison, per spec.md
// §6.3: Null < MinValue < numeric < DateTime < String < Document < Array
// < Binary < ObjectId < Guid < Boolean < MaxValue.
func typeRank(k Kind) int {
	switch k {
	case Null:
		return 0
	case MinValue:
		return 1
	case Int32, Int64, Double, Decimal:
		return 2
	case DateTime:
		return 3
	case String:
		return 4
	case Document:
		return 5
	case Array:
		return 6
	case Binary:
		return 7
	case ObjectId:
		return 8
	case Guid:
		return 9
	case Boolean:
		return 10
	case MaxValue:
		return 11
	default:
		return 2
	}
}

// Compare implements the total order of spec.md §6.3, returning -1, 0, or
// 1. String comparison (including the string-valued component of document
// key-then-value comparisons) is parameterized by coll.
func Compare(a, b Value, coll *collation.Collation) int {
	ra, rb := typeRank(a.kind), typeRank(b.kind)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch a.kind {
	case Null, MinValue, MaxValue:
		return 0
	case Int32, Int64, Double, Decimal:
		return compareNumeric(a, b)
	case DateTime:
		return compareTime(a.t, b.t)
	case String:
		return coll.Compare(a.s, b.s)
	case Boolean:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case Document:
		return compareDocument(a.doc, b.doc, coll)
	case Array:
		return compareArray(a.arr, b.arr, coll)
	case Binary:
		return bytes.Compare(a.bin, b.bin)
	case ObjectId:
		return a.oid.Compare(b.oid)
	case Guid:
		return bytes.Compare(a.guid[:], b.guid[:])
	default:
		return 0
	}
}

// Equal reports whether a and b are equal under coll: equality follows
// ordering, per spec.md §6.3.
func Equal(a, b Value, coll *collation.Collation) bool {
	return Compare(a, b, coll) == 0
}

func compareNumeric(a, b Value) int {
	// Fast path: both Int32/Int64 avoids float widening error for large
	// magnitudes.
	if isIntKind(a.kind) && isIntKind(b.kind) {
		if a.i < b.i {
			return -1
		}
		if a.i > b.i {
			return 1
		}
		return 0
	}
	if a.kind == Decimal || b.kind == Decimal {
		da, db := a.AsDecimalValue(), b.AsDecimalValue()
		return da.Cmp(db)
	}
	fa, fb := a.AsFloat64(), b.AsFloat64()
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	default:
		return 0
	}
}

func isIntKind(k Kind) bool { return k == Int32 || k == Int64 }

// compareDocument orders documents key-then-value, lexicographically over
// fields in insertion order (spec.md §6.3).
func compareDocument(a, b *Doc, coll *collation.Collation) int {
	af, bf := a.Fields(), b.Fields()
	n := len(af)
	if len(bf) < n {
		n = len(bf)
	}
	for i := 0; i < n; i++ {
		if c := coll.Compare(af[i].Key, bf[i].Key); c != 0 {
			return c
		}
		if c := Compare(af[i].Value, bf[i].Value, coll); c != 0 {
			return c
		}
	}
	switch {
	case len(af) < len(bf):
		return -1
	case len(af) > len(bf):
		return 1
	default:
		return 0
	}
}

// compareArray orders arrays lexicographically by element (spec.md §6.3).
func compareArray(a, b []Value, coll *collation.Collation) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i], coll); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

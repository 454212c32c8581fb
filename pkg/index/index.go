// Package index describes collection index metadata and the per-predicate
// cost model the optimizer uses to score candidate indexes (spec.md §3.4,
// §4.5).
package index

import "github.com/quiverdb/quiverdb/pkg/expr"

// Descriptor is the planner-visible shape of a collection index
// (spec.md §3.4). HeadNode is opaque to the planner — it is whatever the
// storage layer's B+Tree root handle looks like.
type Descriptor struct {
	Name       string
	Expression *expr.Node // normalized source the index keys by
	Unique     bool
	KeyCount   int64
	HeadNode   any
}

// PredicateKind names the shapes the cost model in spec.md §4.5 scores.
type PredicateKind int

const (
	PredicateEqual PredicateKind = iota
	PredicateIn
	PredicateBetween
	PredicateRange // GreaterThan/LessThan/GreaterOrEqual/LessOrEqual
	PredicateLikePrefix
	PredicateLikeReject
	PredicateNotEqual
)

// Stats is the minimal key-distribution information the cost model needs
// per spec.md §4.5 ("estimated duplicates for the key", "estimated range
// width", "estimated half-scan").
type Stats struct {
	KeyCount      int64
	DistinctCount int64 // estimated number of distinct keys
}

func (s Stats) avgDuplicates() int64 {
	if s.DistinctCount <= 0 {
		return s.KeyCount
	}
	d := s.KeyCount / s.DistinctCount
	if d < 1 {
		return 1
	}
	return d
}

// logN is a crude O(log N) estimate, floor-clamped at 1.
func logN(n int64) int64 {
	if n <= 1 {
		return 1
	}
	cost := int64(0)
	for n > 1 {
		n >>= 1
		cost++
	}
	return cost
}

// Cost implements the table in spec.md §4.5. inCount is the number of
// keys in an IN list (ignored for other kinds).
func (d *Descriptor) Cost(kind PredicateKind, stats Stats, inCount int) int {
	switch kind {
	case PredicateEqual:
		if d.Unique {
			return 1
		}
		return int(logN(stats.KeyCount) + stats.avgDuplicates())
	case PredicateIn:
		per := int(logN(stats.KeyCount) + stats.avgDuplicates())
		if d.Unique {
			per = 1
		}
		if inCount <= 0 {
			inCount = 1
		}
		return per * inCount
	case PredicateBetween, PredicateRange:
		half := stats.KeyCount / 2
		if half < 1 {
			half = 1
		}
		return int(logN(stats.KeyCount) + half)
	case PredicateLikePrefix:
		quarter := stats.KeyCount / 4
		if quarter < 1 {
			quarter = 1
		}
		return int(logN(stats.KeyCount) + quarter)
	case PredicateLikeReject, PredicateNotEqual:
		n := stats.KeyCount
		if n < 1 {
			n = 1
		}
		return int(n)
	default:
		return int(stats.KeyCount)
	}
}

// CostEstimator is the snapshot-provided capability named in spec.md
// §6.4: "for each descriptor a get_cost(predicate) → int".
type CostEstimator interface {
	Cost(kind PredicateKind, inCount int) int
}

// boundEstimator implements CostEstimator by closing over one
// descriptor's own key statistics, so a caller holding only a Snapshot
// and a Descriptor can score a predicate without separately plumbing
// Stats around.
type boundEstimator struct {
	desc  *Descriptor
	stats Stats
}

// Cost implements CostEstimator.
func (e *boundEstimator) Cost(kind PredicateKind, inCount int) int {
	return e.desc.Cost(kind, e.stats, inCount)
}

// NewCostEstimator binds desc's cost table (§4.5) to stats, producing
// the get_cost(predicate) capability a Snapshot hands back per
// descriptor (spec.md §6.4).
func NewCostEstimator(desc *Descriptor, stats Stats) CostEstimator {
	return &boundEstimator{desc: desc, stats: stats}
}

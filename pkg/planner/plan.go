package planner

import (
	"github.com/quiverdb/quiverdb/pkg/expr"
	"github.com/quiverdb/quiverdb/pkg/index"
)

// IndexKind tags the shape of Plan.Index (spec.md §3.6).
type IndexKind int

const (
	IndexAll IndexKind = iota
	IndexEquals
	IndexRange
	IndexScan
	IndexVirtual
)

// PlanIndex is the tagged chosen-index record of spec.md §3.6. Only the
// fields relevant to Kind are populated.
type PlanIndex struct {
	Kind IndexKind

	// IndexAll
	Field string
	Order int

	// IndexEquals / IndexRange / IndexScan
	Descriptor *index.Descriptor
	Value      *expr.Node // IndexEquals
	Lower      *expr.Node // IndexRange
	Upper      *expr.Node // IndexRange
	Predicate  *expr.Node // IndexScan (Between/In/Like-prefix consumed as a scan)

	// IndexVirtual
	Source any
}

// Plan is the optimizer's output (spec.md §3.6).
type Plan struct {
	Collection       string
	Index            PlanIndex
	IndexCost        int
	IndexExpression  string
	IsIndexKeyOnly   bool
	Filters          []*expr.Node
	Fields           []string // empty means "all"
	IncludeBefore    []*expr.Node
	IncludeAfter     []*expr.Node
	OrderBy          *expr.Node
	GroupBy          *expr.Node
	Select           *expr.Node
	Limit            int
	Offset           int
	ForUpdate        bool
}

// Package planner implements the query plan record (spec.md §3.6) and the
// nine-step optimizer (spec.md §4.6) that turns a Query plus an index
// snapshot into an executable Plan.
package planner

import "github.com/quiverdb/quiverdb/pkg/expr"

// Query is the optimizer's input (spec.md §3.5).
type Query struct {
	Select    *expr.Node // required; Select.UsesSource() is the "carries use_source flag" of §3.5
	Where     []*expr.Node
	Includes  []*expr.Node // single-field path expressions
	GroupBy   *expr.Node
	Having    *expr.Node
	OrderBy   *expr.Node
	Order     int // +1 ascending, -1 descending
	Limit     int
	Offset    int
	ForUpdate bool

	// Virtual is set when the query is driven by an external sequence
	// rather than a collection index (spec.md §4.6 step 4).
	Virtual any
}

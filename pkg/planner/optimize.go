package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quiverdb/quiverdb/pkg/expr"
	"github.com/quiverdb/quiverdb/pkg/index"
	"github.com/quiverdb/quiverdb/pkg/quiverr"
)

// Optimize runs the fixed nine-step sequence of spec.md §4.6, producing an
// executable Plan from query against the indexes visible in snap.
func Optimize(query *Query, snap Snapshot) (*Plan, error) {
	terms, err := splitWhereIntoTerms(query.Where)
	if err != nil {
		return nil, err
	}

	terms, err = rewriteAnyEqualsTerms(terms)
	if err != nil {
		return nil, err
	}

	fields := collectFields(query, terms)

	plan := &Plan{
		Collection: snap.CollectionName(),
		Select:     query.Select,
		GroupBy:    query.GroupBy,
		Limit:      query.Limit,
		Offset:     query.Offset,
		ForUpdate:  query.ForUpdate,
		Fields:     fields,
	}

	consumed, err := chooseIndex(query, snap, terms, plan)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimPrefix(plan.IndexExpression, "$.")
	if len(plan.Fields) == 1 && plan.Fields[0] == trimmed {
		plan.IsIndexKeyOnly = true
	}

	for _, t := range terms {
		if t == consumed {
			continue
		}
		plan.Filters = append(plan.Filters, t)
	}

	defineOrderBy(query, plan)
	if err := defineGroupBy(query, plan); err != nil {
		return nil, err
	}
	partitionIncludes(query, plan)

	return plan, nil
}

// splitWhereIntoTerms is step 1.
func splitWhereIntoTerms(where []*expr.Node) ([]*expr.Node, error) {
	var terms []*expr.Node
	var walk func(n *expr.Node) error
	walk = func(n *expr.Node) error {
		if n.Kind() == expr.KindAnd {
			if err := walk(n.Left()); err != nil {
				return err
			}
			return walk(n.Right())
		}
		if n.UsesSource() {
			return quiverr.New(quiverr.InvalidExpressionType, "'*' is not allowed in a WHERE term: %s", n.Source())
		}
		if !n.IsPredicate() && n.Kind() != expr.KindOr {
			return quiverr.New(quiverr.InvalidExpressionType, "WHERE term is not a predicate: %s", n.Source())
		}
		terms = append(terms, n)
		return nil
	}
	for _, w := range where {
		if err := walk(w); err != nil {
			return nil, err
		}
	}
	return terms, nil
}

// rewriteAnyEqualsTerms is step 2: "seq = scalar_path" under ANY rewrites
// to "scalar_path IN ARRAY(seq)".
func rewriteAnyEqualsTerms(terms []*expr.Node) ([]*expr.Node, error) {
	out := make([]*expr.Node, len(terms))
	for i, t := range terms {
		if t.Kind() == expr.KindEqual && t.IsAny() &&
			!t.Left().IsScalar() && t.Right().IsScalar() && t.Right().Kind() == expr.KindPath {
			rewritten, err := expr.Compile(fmt.Sprintf("%s IN %s", t.Right().Source(), arrayWrap(t.Left().Source())))
			if err != nil {
				return nil, err
			}
			out[i] = rewritten
			continue
		}
		out[i] = t
	}
	return out, nil
}

func arrayWrap(seqSource string) string { return "ARRAY(" + seqSource + ")" }

// collectFields is step 3.
func collectFields(query *Query, terms []*expr.Node) []string {
	set := map[string]string{} // upper -> first-seen casing
	var order []string
	add := func(names []string) {
		for _, n := range names {
			key := strings.ToUpper(n)
			if _, ok := set[key]; ok {
				continue
			}
			set[key] = n
			order = append(order, n)
		}
	}
	if query.Select != nil {
		add(query.Select.Fields())
	}
	for _, t := range terms {
		add(t.Fields())
	}
	for _, inc := range query.Includes {
		add(inc.Fields())
	}
	if query.GroupBy != nil {
		add(query.GroupBy.Fields())
	}
	if query.Having != nil {
		add(query.Having.Fields())
	}
	if query.OrderBy != nil {
		add(query.OrderBy.Fields())
	}
	for _, n := range order {
		if strings.ToUpper(n) == "$" {
			return nil
		}
	}
	return order
}

var likePrefixPattern = regexp.MustCompile(`^[^%_]*%$`)

// chooseIndex is step 4. It returns the consumed term (nil if the
// fallback _id scan was chosen) and populates plan's index fields.
func chooseIndex(query *Query, snap Snapshot, terms []*expr.Node, plan *Plan) (*expr.Node, error) {
	if query.Virtual != nil {
		plan.Index = PlanIndex{Kind: IndexVirtual, Source: query.Virtual}
		plan.IndexCost = 0
		plan.IndexExpression = ""
		return nil, nil
	}

	indexes := snap.Indexes()

	type candidate struct {
		term *expr.Node
		idx  *index.Descriptor
		kind index.PredicateKind
		pi   PlanIndex
		cost int
	}
	var best *candidate

	consider := func(c candidate) {
		if best == nil || c.cost < best.cost {
			cc := c
			best = &cc
		}
	}

	for _, t := range terms {
		if t.IsAll() {
			continue // ALL quantification is never indexable (spec.md §9 open question, preserved)
		}
		for _, idx := range indexes {
			cost := snap.CostEstimator(idx)
			switch t.Kind() {
			case expr.KindEqual, expr.KindNotEqual,
				expr.KindGreaterThan, expr.KindGreaterThanOrEqual,
				expr.KindLessThan, expr.KindLessThanOrEqual:
				if sourceMatches(t.Left(), idx) {
					kind := predicateKindFor(t.Kind())
					consider(candidate{t, idx, kind, PlanIndex{Kind: indexKindFor(t.Kind()), Descriptor: idx, Value: t.Right()}, cost.Cost(kind, 0)})
				} else if sourceMatches(t.Right(), idx) {
					flipped := flipComparison(t.Kind())
					kind := predicateKindFor(flipped)
					consider(candidate{t, idx, kind, PlanIndex{Kind: indexKindFor(flipped), Descriptor: idx, Value: t.Left()}, cost.Cost(kind, 0)})
				}
			case expr.KindIn:
				if sourceMatches(t.Left(), idx) {
					n := 1
					if t.Right().Kind() == expr.KindArray {
						n = len(t.Right().Elements())
					}
					consider(candidate{t, idx, index.PredicateIn, PlanIndex{Kind: IndexScan, Descriptor: idx, Predicate: t}, cost.Cost(index.PredicateIn, n)})
				}
			case expr.KindBetween:
				if sourceMatches(t.Left(), idx) {
					consider(candidate{t, idx, index.PredicateBetween, PlanIndex{Kind: IndexRange, Descriptor: idx, Lower: t.Lower(), Upper: t.Upper()}, cost.Cost(index.PredicateBetween, 0)})
				}
			case expr.KindLike:
				if sourceMatches(t.Left(), idx) && t.Right().Kind() == expr.KindString &&
					likePrefixPattern.MatchString(t.Right().Literal().AsString()) {
					consider(candidate{t, idx, index.PredicateLikePrefix, PlanIndex{Kind: IndexScan, Descriptor: idx, Predicate: t}, cost.Cost(index.PredicateLikePrefix, 0)})
				}
			}
		}
	}

	if best != nil {
		plan.Index = best.pi
		plan.IndexCost = best.cost
		plan.IndexExpression = best.idx.Expression.Source()
		return best.term, nil
	}

	// No predicate-driven candidate: group_by / order_by / preferred hint.
	if idx := matchExpressionToIndex(query.GroupBy, indexes); idx != nil {
		plan.Index = PlanIndex{Kind: IndexScan, Descriptor: idx}
		plan.IndexCost = int(idx.KeyCount)
		plan.IndexExpression = idx.Expression.Source()
		return nil, nil
	}
	if idx := matchExpressionToIndex(query.OrderBy, indexes); idx != nil {
		plan.Index = PlanIndex{Kind: IndexScan, Descriptor: idx}
		plan.IndexCost = int(idx.KeyCount)
		plan.IndexExpression = idx.Expression.Source()
		return nil, nil
	}
	if len(plan.Fields) == 1 {
		preferred := "$." + plan.Fields[0]
		for _, idx := range indexes {
			if idx.Expression.Source() == preferred {
				plan.Index = PlanIndex{Kind: IndexScan, Descriptor: idx}
				plan.IndexCost = int(idx.KeyCount)
				plan.IndexExpression = idx.Expression.Source()
				return nil, nil
			}
		}
	}

	plan.Index = PlanIndex{Kind: IndexAll, Field: "_id", Order: 1}
	plan.IndexExpression = "$._id"
	for _, idx := range indexes {
		if idx.Expression.Source() == "$._id" {
			plan.IndexCost = int(idx.KeyCount)
			break
		}
	}
	return nil, nil
}

func sourceMatches(side *expr.Node, idx *index.Descriptor) bool {
	return side.Source() == idx.Expression.Source()
}

func matchExpressionToIndex(e *expr.Node, indexes []*index.Descriptor) *index.Descriptor {
	if e == nil {
		return nil
	}
	for _, idx := range indexes {
		if idx.Expression.Source() == e.Source() {
			return idx
		}
	}
	return nil
}

func predicateKindFor(k expr.Kind) index.PredicateKind {
	switch k {
	case expr.KindEqual:
		return index.PredicateEqual
	case expr.KindNotEqual:
		return index.PredicateNotEqual
	default:
		return index.PredicateRange
	}
}

func indexKindFor(k expr.Kind) IndexKind {
	if k == expr.KindEqual {
		return IndexEquals
	}
	return IndexRange
}

func flipComparison(k expr.Kind) expr.Kind {
	switch k {
	case expr.KindGreaterThan:
		return expr.KindLessThan
	case expr.KindGreaterThanOrEqual:
		return expr.KindLessThanOrEqual
	case expr.KindLessThan:
		return expr.KindGreaterThan
	case expr.KindLessThanOrEqual:
		return expr.KindGreaterThanOrEqual
	default:
		return k
	}
}

// defineOrderBy is step 7.
func defineOrderBy(query *Query, plan *Plan) {
	if query.OrderBy != nil && query.OrderBy.Source() == plan.IndexExpression {
		plan.OrderBy = nil
		return
	}
	plan.OrderBy = query.OrderBy
}

// defineGroupBy is step 8.
func defineGroupBy(query *Query, plan *Plan) error {
	if query.GroupBy == nil {
		return nil
	}
	if query.OrderBy != nil || len(query.Includes) > 0 {
		return quiverr.New(quiverr.InvalidExpressionType, "GROUP BY cannot combine with ORDER BY or includes")
	}
	if query.GroupBy.Source() == plan.IndexExpression {
		return nil
	}
	plan.OrderBy = query.GroupBy
	return nil
}

// partitionIncludes is step 9.
func partitionIncludes(query *Query, plan *Plan) {
	for _, inc := range query.Includes {
		field := includeField(inc)
		before := fieldUsedIn(plan.Filters, field) || (plan.OrderBy != nil && fieldUsedInOne(plan.OrderBy, field))
		after := !before || (before && plan.OrderBy != nil)
		if before {
			plan.IncludeBefore = append(plan.IncludeBefore, inc)
		}
		if after {
			plan.IncludeAfter = append(plan.IncludeAfter, inc)
		}
	}
}

func includeField(inc *expr.Node) string {
	fields := inc.Fields()
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func fieldUsedIn(terms []*expr.Node, field string) bool {
	for _, t := range terms {
		if fieldUsedInOne(t, field) {
			return true
		}
	}
	return false
}

func fieldUsedInOne(n *expr.Node, field string) bool {
	for _, f := range n.Fields() {
		if strings.EqualFold(f, field) {
			return true
		}
	}
	return false
}

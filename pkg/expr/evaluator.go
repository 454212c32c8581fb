package expr

import (
	"github.com/quiverdb/quiverdb/pkg/collation"
	"github.com/quiverdb/quiverdb/pkg/value"
)

// evalContext bundles the five inputs of the evaluation contract in
// spec.md §3.3: (source_seq, root_doc, current_value, collation,
// parameters_doc).
type evalContext struct {
	source    []value.Value
	root      value.Value
	current   value.Value
	collation *collation.Collation
	params    *value.Doc
}

type evalFunc func(ctx *evalContext) ([]value.Value, error)

// Evaluate runs the compiled expression, returning its emitted sequence.
func (n *Node) Evaluate(sourceSeq []value.Value, root, current value.Value, coll *collation.Collation, params *value.Doc) ([]value.Value, error) {
	if coll == nil {
		coll = collation.Invariant()
	}
	return n.eval(&evalContext{source: sourceSeq, root: root, current: current, collation: coll, params: params})
}

// ExecuteScalar runs the expression and returns the first emitted value,
// or Null on an empty sequence (spec.md §6.2).
func (n *Node) ExecuteScalar(root value.Value, coll *collation.Collation, params *value.Doc) (value.Value, error) {
	seq, err := n.Evaluate(nil, root, root, coll, params)
	if err != nil {
		return value.Value{}, err
	}
	return firstOrNull(seq), nil
}

func firstOrNull(seq []value.Value) value.Value {
	if len(seq) == 0 {
		return value.NewNull()
	}
	return seq[0]
}

func evalLiteral(n *Node) evalFunc {
	lit := n.lit
	return func(ctx *evalContext) ([]value.Value, error) { return []value.Value{lit}, nil }
}

func evalParameter(n *Node) evalFunc {
	ref := n.paramRef
	return func(ctx *evalContext) ([]value.Value, error) {
		if ctx.params == nil {
			return []value.Value{value.NewNull()}, nil
		}
		if idx, ok := parsePositionalRef(ref); ok {
			if v, ok := ctx.params.ValueAt(idx); ok {
				return []value.Value{v}, nil
			}
			return []value.Value{value.NewNull()}, nil
		}
		if v, ok := ctx.params.Get(ref); ok {
			return []value.Value{v}, nil
		}
		return []value.Value{value.NewNull()}, nil
	}
}

func parsePositionalRef(ref string) (int, bool) {
	if ref == "" {
		return 0, false
	}
	n := 0
	for _, r := range ref {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func evalSource(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		return append([]value.Value(nil), ctx.source...), nil
	}
}

func evalPath(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		base := ctx.root
		if n.root == RootAt {
			base = ctx.current
		}

		lastIsSeq := len(n.segments) > 0 &&
			(n.segments[len(n.segments)-1].Kind == SegStar || n.segments[len(n.segments)-1].Kind == SegFilter)
		scalarSegs := n.segments
		if lastIsSeq {
			scalarSegs = n.segments[:len(n.segments)-1]
		}

		cur, ok := navigateScalar(base, scalarSegs)
		if !ok {
			if n.isScalar {
				return []value.Value{value.NewNull()}, nil
			}
			return nil, nil
		}
		if !lastIsSeq {
			return []value.Value{cur}, nil
		}

		last := n.segments[len(n.segments)-1]
		if cur.Kind() != value.Array {
			return nil, nil
		}
		arr := cur.AsArray()
		switch last.Kind {
		case SegStar:
			return append([]value.Value(nil), arr...), nil
		case SegFilter:
			var out []value.Value
			for _, elem := range arr {
				sub := *ctx
				sub.current = elem
				predSeq, err := last.Filter.eval(&sub)
				if err != nil {
					return nil, err
				}
				if firstOrNull(predSeq).Truthy() {
					out = append(out, elem)
				}
			}
			return out, nil
		default:
			return nil, nil
		}
	}
}

func navigateScalar(base value.Value, segs []Segment) (value.Value, bool) {
	cur := base
	for _, seg := range segs {
		switch seg.Kind {
		case SegField:
			if cur.Kind() != value.Document {
				return value.Value{}, false
			}
			v, ok := cur.AsDocument().Get(seg.Name)
			if !ok {
				return value.Value{}, false
			}
			cur = v
		case SegIndex:
			if cur.Kind() != value.Array {
				return value.Value{}, false
			}
			arr := cur.AsArray()
			if seg.Index < 0 || seg.Index >= len(arr) {
				return value.Value{}, false
			}
			cur = arr[seg.Index]
		default:
			return value.Value{}, false
		}
	}
	return cur, true
}

func evalArray(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		out := make([]value.Value, len(n.elements))
		for i, e := range n.elements {
			seq, err := e.eval(ctx)
			if err != nil {
				return nil, err
			}
			out[i] = firstOrNull(seq)
		}
		return []value.Value{value.NewArray(out)}, nil
	}
}

func evalDocument(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		d := value.NewDoc()
		for _, entry := range n.entries {
			seq, err := entry.Value.eval(ctx)
			if err != nil {
				return nil, err
			}
			if err := d.Set(entry.Key, firstOrNull(seq)); err != nil {
				return nil, err
			}
		}
		return []value.Value{value.NewDocument(d)}, nil
	}
}

func evalCall(n *Node, b builtin) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		argVals := make([][]value.Value, len(n.args))
		for i, a := range n.args {
			seq, err := a.eval(ctx)
			if err != nil {
				return nil, err
			}
			if b.seqArgs {
				argVals[i] = seq
			} else {
				argVals[i] = []value.Value{firstOrNull(seq)}
			}
		}
		v, err := b.call(argVals)
		if err != nil {
			return nil, err
		}
		return []value.Value{v}, nil
	}
}

func evalMap(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		srcSeq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		var out []value.Value
		for _, elem := range srcSeq {
			sub := *ctx
			sub.current = elem
			projSeq, err := n.right.eval(&sub)
			if err != nil {
				return nil, err
			}
			out = append(out, projSeq...)
		}
		return out, nil
	}
}

func evalFilter(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		srcSeq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		var out []value.Value
		for _, elem := range srcSeq {
			sub := *ctx
			sub.current = elem
			predSeq, err := n.right.eval(&sub)
			if err != nil {
				return nil, err
			}
			if firstOrNull(predSeq).Truthy() {
				out = append(out, elem)
			}
		}
		return out, nil
	}
}

func evalArith(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		lseq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		rseq, err := n.right.eval(ctx)
		if err != nil {
			return nil, err
		}
		l, r := firstOrNull(lseq), firstOrNull(rseq)
		return []value.Value{arith(n.kind, l, r)}, nil
	}
}

func arith(kind Kind, l, r value.Value) value.Value {
	if kind == KindAdd && l.Kind() == value.String && r.Kind() == value.String {
		return value.NewString(l.AsString() + r.AsString())
	}
	if l.IsNull() || r.IsNull() || !l.IsNumeric() || !r.IsNumeric() {
		return value.NewNull()
	}
	ld, rd := l.AsDecimalValue(), r.AsDecimalValue()
	var res value.Value
	switch kind {
	case KindAdd:
		res = value.NewDecimal(ld.Add(rd))
	case KindSubtract:
		res = value.NewDecimal(ld.Sub(rd))
	case KindMultiply:
		res = value.NewDecimal(ld.Mul(rd))
	case KindDivide:
		if rd.IsZero() {
			return value.NewNull()
		}
		res = value.NewDecimal(ld.Div(rd))
	case KindModulo:
		if rd.IsZero() {
			return value.NewNull()
		}
		res = value.NewDecimal(ld.Mod(rd))
	}
	return res
}

func compareOp(kind Kind, c int) bool {
	switch kind {
	case KindEqual:
		return c == 0
	case KindNotEqual:
		return c != 0
	case KindGreaterThan:
		return c > 0
	case KindGreaterThanOrEqual:
		return c >= 0
	case KindLessThan:
		return c < 0
	case KindLessThanOrEqual:
		return c <= 0
	default:
		return false
	}
}

func combineQuant(results []bool, all bool) bool {
	if all {
		for _, b := range results {
			if !b {
				return false
			}
		}
		return true
	}
	for _, b := range results {
		if b {
			return true
		}
	}
	return false
}

func evalCompare(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		lseq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		rseq, err := n.right.eval(ctx)
		if err != nil {
			return nil, err
		}
		target := firstOrNull(rseq)
		results := make([]bool, len(lseq))
		for i, elem := range lseq {
			results[i] = compareOp(n.kind, value.Compare(elem, target, ctx.collation))
		}
		return []value.Value{value.NewBoolean(combineQuant(results, n.quant == All))}, nil
	}
}

func evalLike(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		lseq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		rseq, err := n.right.eval(ctx)
		if err != nil {
			return nil, err
		}
		pattern := firstOrNull(rseq)
		if pattern.Kind() != value.String {
			return []value.Value{value.NewBoolean(false)}, nil
		}
		results := make([]bool, len(lseq))
		for i, elem := range lseq {
			if elem.Kind() != value.String {
				results[i] = false
				continue
			}
			results[i] = likeMatch(ctx.collation.Fold(elem.AsString()), ctx.collation.Fold(pattern.AsString()))
		}
		return []value.Value{value.NewBoolean(combineQuant(results, n.quant == All))}, nil
	}
}

// likeMatch implements SQL-style LIKE matching: '%' matches any run
// (including empty), '_' matches exactly one character (spec.md §4.3).
func likeMatch(s, pattern string) bool {
	sr, pr := []rune(s), []rune(pattern)
	return likeMatchRunes(sr, pr)
}

func likeMatchRunes(s, p []rune) bool {
	// Classic DP over rune slices; small inputs (index/filter predicates),
	// so the quadratic table is not a concern.
	n, m := len(s), len(p)
	dp := make([][]bool, n+1)
	for i := range dp {
		dp[i] = make([]bool, m+1)
	}
	dp[0][0] = true
	for j := 1; j <= m; j++ {
		if p[j-1] == '%' {
			dp[0][j] = dp[0][j-1]
		}
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			switch p[j-1] {
			case '%':
				dp[i][j] = dp[i-1][j] || dp[i][j-1]
			case '_':
				dp[i][j] = dp[i-1][j-1]
			default:
				dp[i][j] = dp[i-1][j-1] && s[i-1] == p[j-1]
			}
		}
	}
	return dp[n][m]
}

func evalBetween(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		lseq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		lowSeq, err := n.lower.eval(ctx)
		if err != nil {
			return nil, err
		}
		highSeq, err := n.upper.eval(ctx)
		if err != nil {
			return nil, err
		}
		low, high := firstOrNull(lowSeq), firstOrNull(highSeq)
		results := make([]bool, len(lseq))
		for i, elem := range lseq {
			results[i] = value.Compare(elem, low, ctx.collation) >= 0 && value.Compare(elem, high, ctx.collation) <= 0
		}
		return []value.Value{value.NewBoolean(combineQuant(results, n.quant == All))}, nil
	}
}

func evalIn(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		lseq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		rseq, err := n.right.eval(ctx)
		if err != nil {
			return nil, err
		}
		var set []value.Value
		for _, v := range rseq {
			if v.Kind() == value.Array {
				set = append(set, v.AsArray()...)
			} else {
				set = append(set, v)
			}
		}
		results := make([]bool, len(lseq))
		for i, elem := range lseq {
			for _, cand := range set {
				if value.Equal(elem, cand, ctx.collation) {
					results[i] = true
					break
				}
			}
		}
		return []value.Value{value.NewBoolean(combineQuant(results, n.quant == All))}, nil
	}
}

func evalAnd(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		lseq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		if !firstOrNull(lseq).Truthy() {
			return []value.Value{value.NewBoolean(false)}, nil
		}
		rseq, err := n.right.eval(ctx)
		if err != nil {
			return nil, err
		}
		return []value.Value{value.NewBoolean(firstOrNull(rseq).Truthy())}, nil
	}
}

func evalOr(n *Node) evalFunc {
	return func(ctx *evalContext) ([]value.Value, error) {
		lseq, err := n.left.eval(ctx)
		if err != nil {
			return nil, err
		}
		if firstOrNull(lseq).Truthy() {
			return []value.Value{value.NewBoolean(true)}, nil
		}
		rseq, err := n.right.eval(ctx)
		if err != nil {
			return nil, err
		}
		return []value.Value{value.NewBoolean(firstOrNull(rseq).Truthy())}, nil
	}
}

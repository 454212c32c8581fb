package expr

import (
	"github.com/quiverdb/quiverdb/pkg/quiverr"
)

// maxCompileDepth mirrors maxParseDepth for the bottom-up analysis pass
// (spec.md §9).
const maxCompileDepth = 200

// Compile parses and analyzes source, producing an Expression whose
// metadata and evaluator are populated (spec.md §4.3, §6.1's compile).
func Compile(source string) (*Node, error) {
	n, err := Parse(source)
	if err != nil {
		return nil, err
	}
	if err := analyze(n, 0); err != nil {
		return nil, err
	}
	n.source = normalize(n)
	return n, nil
}

// CompileForIndex is the restricted entry point of spec.md §6.1: only
// paths (nested, with [*]/[index]/scalar-predicate segments) and
// document/array initializers of the same are allowed. No parameters,
// calls, operators, or '*'.
func CompileForIndex(source string) (*Node, error) {
	n, err := Parse(source)
	if err != nil {
		return nil, err
	}
	if err := checkIndexSafe(n); err != nil {
		return nil, err
	}
	if err := analyze(n, 0); err != nil {
		return nil, err
	}
	n.source = normalize(n)
	return n, nil
}

// checkIndexSafe enforces compile_for_index's restricted grammar
// (spec.md §6.1): only paths (nested, with [*]/[index]/scalar-predicate
// segments — including their MAP-lowered form) and document/array
// initializers of the same are allowed. No parameters, user calls,
// free-standing operators, or '*'.
func checkIndexSafe(n *Node) error {
	switch n.kind {
	case KindPath:
		for _, seg := range n.segments {
			if seg.Kind == SegFilter {
				if err := checkIndexSafeFilter(seg.Filter); err != nil {
					return err
				}
			}
		}
		return nil
	case KindMap:
		// The lowered form of a non-terminal [*]/[predicate] segment; both
		// sides are themselves paths rooted at $ or @.
		if err := checkIndexSafe(n.left); err != nil {
			return err
		}
		return checkIndexSafe(n.right)
	case KindInt, KindDouble, KindString, KindBoolean, KindNull:
		return nil
	case KindArray:
		for _, e := range n.elements {
			if err := checkIndexSafe(e); err != nil {
				return err
			}
		}
		return nil
	case KindDocument:
		for _, e := range n.entries {
			if err := checkIndexSafe(e.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return quiverr.New(quiverr.InvalidExpressionType, "%v is not allowed in an index expression", n.kind)
	}
}

// checkIndexSafeFilter is the same restriction, but additionally permits
// the enumerated predicate kinds: an index filter segment like
// "[Status=1]" is a scalar predicate over paths/literals, not a
// free-standing operator expression.
func checkIndexSafeFilter(n *Node) error {
	switch n.kind {
	case KindEqual, KindNotEqual, KindGreaterThan, KindGreaterThanOrEqual, KindLessThan, KindLessThanOrEqual:
		if err := checkIndexSafe(n.left); err != nil {
			return err
		}
		return checkIndexSafe(n.right)
	case KindAnd, KindOr:
		if err := checkIndexSafeFilter(n.left); err != nil {
			return err
		}
		return checkIndexSafeFilter(n.right)
	default:
		return checkIndexSafe(n)
	}
}

// analyze computes is_scalar/is_immutable/uses_source/fields bottom-up and
// attaches the evaluator closure (spec.md §4.3).
func analyze(n *Node, depth int) error {
	if depth > maxCompileDepth {
		return quiverr.New(quiverr.UnexpectedToken, "expression nesting too deep")
	}
	if n.compiled {
		return nil
	}

	switch n.kind {
	case KindInt, KindDouble, KindString, KindBoolean, KindNull:
		n.isScalar, n.isImmutable, n.usesSource = true, true, false
		n.fields = newFieldSet()
		n.eval = evalLiteral(n)

	case KindParameter:
		n.isScalar, n.isImmutable, n.usesSource = true, false, false
		n.fields = newFieldSet()
		n.eval = evalParameter(n)

	case KindSource:
		n.isScalar, n.isImmutable, n.usesSource = false, false, true
		n.fields = newFieldSet()
		n.fields.add("$")
		n.eval = evalSource(n)

	case KindPath:
		if err := analyzeChildrenSegments(n, depth); err != nil {
			return err
		}
		n.isScalar = !pathIsSequence(n)
		n.isImmutable = pathIsImmutable(n)
		n.usesSource = pathUsesSource(n)
		n.fields = newFieldSet()
		if n.root == RootDollar {
			if len(n.segments) == 0 {
				n.fields.add("$")
			} else if n.segments[0].Kind == SegField {
				n.fields.add(n.segments[0].Name)
			}
		}
		for _, seg := range n.segments {
			if seg.Kind == SegFilter {
				n.fields.addAll(seg.Filter.fields)
			}
		}
		n.eval = evalPath(n)

	case KindArray:
		for _, e := range n.elements {
			if err := analyze(e, depth+1); err != nil {
				return err
			}
		}
		n.isScalar = true
		n.isImmutable = true
		n.fields = newFieldSet()
		for _, e := range n.elements {
			n.isImmutable = n.isImmutable && e.isImmutable
			n.usesSource = n.usesSource || e.usesSource
			n.fields.addAll(e.fields)
		}
		n.eval = evalArray(n)

	case KindDocument:
		n.isScalar, n.isImmutable = true, true
		n.fields = newFieldSet()
		for _, e := range n.entries {
			if err := analyze(e.Value, depth+1); err != nil {
				return err
			}
			n.isImmutable = n.isImmutable && e.Value.isImmutable
			n.usesSource = n.usesSource || e.Value.usesSource
			n.fields.addAll(e.Value.fields) // keys are not fields
		}
		n.eval = evalDocument(n)

	case KindCall:
		for _, a := range n.args {
			if err := analyze(a, depth+1); err != nil {
				return err
			}
		}
		b, ok := lookupFunction(n.funcName)
		if !ok {
			return quiverr.New(quiverr.InvalidExpressionType, "unknown function %s", n.funcName)
		}
		if len(n.args) < b.minArgs || (b.maxArgs >= 0 && len(n.args) > b.maxArgs) {
			return quiverr.New(quiverr.InvalidExpressionType, "wrong arity for %s: got %d arguments", n.funcName, len(n.args))
		}
		if !b.seqArgs {
			for _, a := range n.args {
				if !a.isScalar {
					return quiverr.New(quiverr.InvalidExpressionType, "%s does not accept a sequence argument", n.funcName)
				}
			}
		}
		n.isScalar = !b.sequenceResult
		n.isImmutable = b.immutable(n.args)
		n.fields = newFieldSet()
		for _, a := range n.args {
			n.usesSource = n.usesSource || a.usesSource
			n.fields.addAll(a.fields)
		}
		n.eval = evalCall(n, b)

	case KindMap, KindFilter:
		if err := analyze(n.left, depth+1); err != nil {
			return err
		}
		if err := analyze(n.right, depth+1); err != nil {
			return err
		}
		n.isScalar = false
		n.isImmutable = n.left.isImmutable && n.right.isImmutable
		n.usesSource = n.left.usesSource || n.right.usesSource
		n.fields = newFieldSet()
		n.fields.addAll(n.left.fields)
		n.fields.addAll(fieldsThroughDollarOnly(n.right))
		if n.kind == KindMap {
			n.eval = evalMap(n)
		} else {
			n.eval = evalFilter(n)
		}

	case KindAdd, KindSubtract, KindMultiply, KindDivide, KindModulo:
		if err := analyze(n.left, depth+1); err != nil {
			return err
		}
		if err := analyze(n.right, depth+1); err != nil {
			return err
		}
		n.isScalar = true
		n.isImmutable = n.left.isImmutable && n.right.isImmutable
		n.usesSource = n.left.usesSource || n.right.usesSource
		n.fields = newFieldSet()
		n.fields.addAll(n.left.fields)
		n.fields.addAll(n.right.fields)
		n.eval = evalArith(n)

	case KindEqual, KindNotEqual, KindGreaterThan, KindGreaterThanOrEqual, KindLessThan, KindLessThanOrEqual:
		if err := analyze(n.left, depth+1); err != nil {
			return err
		}
		if err := analyze(n.right, depth+1); err != nil {
			return err
		}
		n.isScalar = true
		n.isImmutable = n.left.isImmutable && n.right.isImmutable
		n.usesSource = n.left.usesSource || n.right.usesSource
		n.fields = newFieldSet()
		n.fields.addAll(n.left.fields)
		n.fields.addAll(n.right.fields)
		n.eval = evalCompare(n)

	case KindLike:
		if err := analyze(n.left, depth+1); err != nil {
			return err
		}
		if err := analyze(n.right, depth+1); err != nil {
			return err
		}
		n.isScalar = true
		n.isImmutable = n.left.isImmutable && n.right.isImmutable
		n.usesSource = n.left.usesSource || n.right.usesSource
		n.fields = newFieldSet()
		n.fields.addAll(n.left.fields)
		n.fields.addAll(n.right.fields)
		n.eval = evalLike(n)

	case KindBetween:
		if err := analyze(n.left, depth+1); err != nil {
			return err
		}
		if err := analyze(n.lower, depth+1); err != nil {
			return err
		}
		if err := analyze(n.upper, depth+1); err != nil {
			return err
		}
		n.isScalar = true
		n.isImmutable = n.left.isImmutable && n.lower.isImmutable && n.upper.isImmutable
		n.usesSource = n.left.usesSource || n.lower.usesSource || n.upper.usesSource
		n.fields = newFieldSet()
		n.fields.addAll(n.left.fields)
		n.fields.addAll(n.lower.fields)
		n.fields.addAll(n.upper.fields)
		n.eval = evalBetween(n)

	case KindIn:
		if err := analyze(n.left, depth+1); err != nil {
			return err
		}
		if err := analyze(n.right, depth+1); err != nil {
			return err
		}
		n.isScalar = true
		n.isImmutable = n.left.isImmutable && n.right.isImmutable
		n.usesSource = n.left.usesSource || n.right.usesSource
		n.fields = newFieldSet()
		n.fields.addAll(n.left.fields)
		n.fields.addAll(n.right.fields)
		n.eval = evalIn(n)

	case KindAnd, KindOr:
		if err := analyze(n.left, depth+1); err != nil {
			return err
		}
		if err := analyze(n.right, depth+1); err != nil {
			return err
		}
		n.isScalar = true
		n.isImmutable = n.left.isImmutable && n.right.isImmutable
		n.usesSource = n.left.usesSource || n.right.usesSource
		n.fields = newFieldSet()
		n.fields.addAll(n.left.fields)
		n.fields.addAll(n.right.fields)
		if n.kind == KindAnd {
			n.eval = evalAnd(n)
		} else {
			n.eval = evalOr(n)
		}

	default:
		return quiverr.New(quiverr.InvalidExpressionType, "cannot compile node kind %v", n.kind)
	}

	n.source = normalize(n)
	n.compiled = true
	return nil
}

func analyzeChildrenSegments(n *Node, depth int) error {
	for _, seg := range n.segments {
		if seg.Kind == SegFilter {
			if err := analyze(seg.Filter, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func pathIsSequence(n *Node) bool {
	for _, seg := range n.segments {
		if seg.Kind == SegStar || seg.Kind == SegFilter {
			return true
		}
	}
	return false
}

func pathIsImmutable(n *Node) bool {
	for _, seg := range n.segments {
		if seg.Kind == SegFilter && !seg.Filter.isImmutable {
			return false
		}
	}
	return true
}

func pathUsesSource(n *Node) bool {
	for _, seg := range n.segments {
		if seg.Kind == SegFilter && seg.Filter.usesSource {
			return true
		}
	}
	return false
}

// fieldsThroughDollarOnly collects fields from a MAP/FILTER projection
// that explicitly re-reference $ (or bare-identifier sugar for $), per
// spec.md §4.3 point 2: fields reached only through @ are not outer
// fields. Every Path/Source node that stores RootDollar (or is a Source
// node) was written with an explicit $ or bare identifier in the
// original source, so this is just "collect fields ignoring @-rooted
// subtrees" — which n.fields already does correctly for every subtree,
// since RootAt paths never call fields.add.
func fieldsThroughDollarOnly(n *Node) *fieldSet {
	return n.fields
}

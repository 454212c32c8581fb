// Package expr implements the expression sublanguage: parsing (spec.md
// §4.2), compilation/analysis (§4.3), source normalization (§4.4), and
// evaluation (§4.3's evaluation contract). A single Node type carries both
// the raw AST shape and, once Compile has run, the derived metadata and
// evaluator closure described in spec.md §3.3 — the teacher's per-type AST
// node pattern (BinaryExpr, FunctionCall, ...) generalized to one tagged
// struct, since this grammar's node set is closed and small enough that a
// uniform shape is what lets the analyzer compute fields/is_immutable/
// is_scalar generically instead of with a type switch per pass.
package expr

import "github.com/quiverdb/quiverdb/pkg/value"

// Kind is the node/expression type tag of spec.md §3.3.
type Kind int

const (
	KindInt Kind = iota
	KindDouble
	KindString
	KindBoolean
	KindNull
	KindArray
	KindDocument
	KindParameter
	KindCall
	KindPath
	KindSource
	KindMap
	KindFilter
	KindAdd
	KindSubtract
	KindMultiply
	KindDivide
	KindModulo
	KindEqual
	KindNotEqual
	KindGreaterThan
	KindGreaterThanOrEqual
	KindLessThan
	KindLessThanOrEqual
	KindLike
	KindBetween
	KindIn
	KindAnd
	KindOr
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindDouble:
		return "Double"
	case KindString:
		return "String"
	case KindBoolean:
		return "Boolean"
	case KindNull:
		return "Null"
	case KindArray:
		return "Array"
	case KindDocument:
		return "Document"
	case KindParameter:
		return "Parameter"
	case KindCall:
		return "Call"
	case KindPath:
		return "Path"
	case KindSource:
		return "Source"
	case KindMap:
		return "Map"
	case KindFilter:
		return "Filter"
	case KindAdd:
		return "Add"
	case KindSubtract:
		return "Subtract"
	case KindMultiply:
		return "Multiply"
	case KindDivide:
		return "Divide"
	case KindModulo:
		return "Modulo"
	case KindEqual:
		return "Equal"
	case KindNotEqual:
		return "NotEqual"
	case KindGreaterThan:
		return "GreaterThan"
	case KindGreaterThanOrEqual:
		return "GreaterThanOrEqual"
	case KindLessThan:
		return "LessThan"
	case KindLessThanOrEqual:
		return "LessThanOrEqual"
	case KindLike:
		return "Like"
	case KindBetween:
		return "Between"
	case KindIn:
		return "In"
	case KindAnd:
		return "And"
	case KindOr:
		return "Or"
	default:
		return "Unknown"
	}
}

// predicateKinds is the set named in spec.md §3.3's is_predicate rule.
var predicateKinds = map[Kind]bool{
	KindEqual: true, KindNotEqual: true,
	KindGreaterThan: true, KindGreaterThanOrEqual: true,
	KindLessThan: true, KindLessThanOrEqual: true,
	KindLike: true, KindBetween: true, KindIn: true,
	KindAnd: true, KindOr: true,
}

// Quantifier selects ANY (default) or ALL semantics for a sequence-vs-
// scalar comparison (spec.md §3.3, §4.3).
type Quantifier int

const (
	Any Quantifier = iota
	All
)

func (q Quantifier) String() string {
	if q == All {
		return "ALL"
	}
	return "ANY"
}

// PathRoot distinguishes a path rooted at the document ($) from one rooted
// at the current MAP/FILTER element (@).
type PathRoot int

const (
	RootDollar PathRoot = iota
	RootAt
)

// SegmentKind tags one step of postfix path access.
type SegmentKind int

const (
	SegField SegmentKind = iota
	SegIndex
	SegFilter
	SegStar
)

// Segment is one '.field', '[index]', '[predicate]', or '[*]' step.
type Segment struct {
	Kind   SegmentKind
	Name   string // SegField
	Index  int    // SegIndex
	Filter *Node  // SegFilter: evaluated with @ bound to the element
}

// DocEntry is one key/value pair of a document initializer.
type DocEntry struct {
	Key   string
	Value *Node
}

// Node is both an AST node and, once compiled, an Expression: it carries
// the structural children plus the four pieces of derived metadata from
// spec.md §3.3.
type Node struct {
	kind Kind

	lit value.Value // literal payload for Int/Double/String/Boolean/Null

	root     PathRoot  // Path
	segments []Segment // Path

	paramRef string // Parameter: "" + numeric text, or a bare name

	funcName string // Call
	args     []*Node

	elements []*Node    // Array
	entries  []DocEntry // Document

	left  *Node // Map/Filter source, arithmetic/comparison/Like/In/And/Or left, Between target
	right *Node // Map/Filter projection, arithmetic/comparison/Like right operand, In list

	lower *Node // Between
	upper *Node // Between

	quant         Quantifier
	quantExplicit bool

	// compiled metadata, populated by Compile.
	compiled    bool
	source      string
	isScalar    bool
	isImmutable bool
	usesSource  bool
	fields      *fieldSet
	eval        evalFunc
}

// Kind returns the node/expression type tag.
func (n *Node) Kind() Kind { return n.kind }

// IsPredicate reports whether Kind is one of the enumerated predicate
// kinds (spec.md §3.3).
func (n *Node) IsPredicate() bool { return predicateKinds[n.kind] }

// IsAny / IsAll report the quantifier selected for sequence-vs-scalar
// comparisons; meaningless (always IsAny) for non-comparison kinds.
func (n *Node) IsAny() bool { return n.quant == Any }
func (n *Node) IsAll() bool { return n.quant == All }

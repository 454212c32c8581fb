package expr

import (
	"strconv"
	"strings"
)

// normalize unparses n into the canonical source string of spec.md §4.4.
func normalize(n *Node) string {
	var b strings.Builder
	writeNode(&b, n, 0)
	return b.String()
}

func precOf(k Kind) int {
	switch k {
	case KindOr:
		return 1
	case KindAnd:
		return 2
	case KindEqual, KindNotEqual, KindGreaterThan, KindGreaterThanOrEqual, KindLessThan, KindLessThanOrEqual,
		KindLike, KindBetween, KindIn:
		return 3
	case KindAdd, KindSubtract:
		return 4
	case KindMultiply, KindDivide, KindModulo:
		return 5
	default:
		return 7 // atoms: literals, paths, calls, map/filter, init lists
	}
}

// chainable reports whether repeated use of kind at the same precedence
// level composes without parentheses on the left (spec.md §4.4: "parens
// re-emitted only where needed to preserve precedence").
func chainable(k Kind) bool {
	switch k {
	case KindAnd, KindOr, KindAdd, KindSubtract, KindMultiply, KindDivide, KindModulo:
		return true
	default:
		return false
	}
}

func leftNeedsParens(parent Kind, child *Node) bool {
	pp, cp := precOf(parent), precOf(child.kind)
	if cp < pp {
		return true
	}
	return cp == pp && !chainable(parent)
}

func rightNeedsParens(parent Kind, child *Node) bool {
	return precOf(child.kind) <= precOf(parent)
}

func writeChild(b *strings.Builder, parent Kind, child *Node, right bool) {
	needs := false
	if right {
		needs = rightNeedsParens(parent, child)
	} else {
		needs = leftNeedsParens(parent, child)
	}
	if needs {
		b.WriteByte('(')
		writeNode(b, child, 0)
		b.WriteByte(')')
	} else {
		writeNode(b, child, 0)
	}
}

func writeNode(b *strings.Builder, n *Node, _ int) {
	switch n.kind {
	case KindInt:
		writeInt(b, n)
	case KindDouble:
		writeDouble(b, n)
	case KindString:
		writeStringLiteral(b, n.lit.AsString())
	case KindBoolean:
		if n.lit.AsBoolean() {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}
	case KindNull:
		b.WriteString("NULL")
	case KindParameter:
		b.WriteByte('@')
		b.WriteString(n.paramRef)
	case KindSource:
		b.WriteByte('*')
	case KindPath:
		writePath(b, n)
	case KindCall:
		b.WriteString(strings.ToUpper(n.funcName))
		b.WriteByte('(')
		for i, a := range n.args {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNode(b, a, 0)
		}
		b.WriteByte(')')
	case KindArray:
		b.WriteByte('[')
		for i, e := range n.elements {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNode(b, e, 0)
		}
		b.WriteByte(']')
	case KindDocument:
		b.WriteByte('{')
		for i, e := range n.entries {
			if i > 0 {
				b.WriteByte(',')
			}
			writeKeyLiteral(b, e.Key)
			b.WriteByte(':')
			writeNode(b, e.Value, 0)
		}
		b.WriteByte('}')
	case KindMap:
		b.WriteString("MAP(")
		writeNode(b, n.left, 0)
		b.WriteString("=>")
		writeNode(b, n.right, 0)
		b.WriteByte(')')
	case KindFilter:
		b.WriteString("FILTER(")
		writeNode(b, n.left, 0)
		b.WriteString("=>")
		writeNode(b, n.right, 0)
		b.WriteByte(')')
	case KindAdd:
		writeBinary(b, n, "+")
	case KindSubtract:
		writeBinary(b, n, "-")
	case KindMultiply:
		writeBinary(b, n, "*")
	case KindDivide:
		writeBinary(b, n, "/")
	case KindModulo:
		writeBinary(b, n, "%")
	case KindEqual:
		writeCompare(b, n, "=")
	case KindNotEqual:
		writeCompare(b, n, "!=")
	case KindGreaterThan:
		writeCompare(b, n, ">")
	case KindGreaterThanOrEqual:
		writeCompare(b, n, ">=")
	case KindLessThan:
		writeCompare(b, n, "<")
	case KindLessThanOrEqual:
		writeCompare(b, n, "<=")
	case KindLike:
		writeChild(b, n.kind, n.left, false)
		writeQuant(b, n)
		b.WriteString(" LIKE ")
		writeNode(b, n.right, 0)
	case KindBetween:
		writeChild(b, n.kind, n.left, false)
		writeQuant(b, n)
		b.WriteString(" BETWEEN ")
		writeNode(b, n.lower, 0)
		b.WriteString(" AND ")
		writeNode(b, n.upper, 0)
	case KindIn:
		writeChild(b, n.kind, n.left, false)
		writeQuant(b, n)
		b.WriteString(" IN ")
		writeNode(b, n.right, 0)
	case KindAnd:
		writeChild(b, n.kind, n.left, false)
		b.WriteString(" AND ")
		writeChild(b, n.kind, n.right, true)
	case KindOr:
		writeChild(b, n.kind, n.left, false)
		b.WriteString(" OR ")
		writeChild(b, n.kind, n.right, true)
	}
}

// writeQuant prints " ANY" / " ALL" with a leading space but none
// trailing: a comparison operator symbol follows directly ("ANY=5"), while
// LIKE/BETWEEN/IN re-add their own leading space before the keyword.
func writeQuant(b *strings.Builder, n *Node) {
	if n.quantExplicit {
		b.WriteByte(' ')
		b.WriteString(n.quant.String())
	}
}

func writeBinary(b *strings.Builder, n *Node, op string) {
	writeChild(b, n.kind, n.left, false)
	b.WriteString(op)
	writeChild(b, n.kind, n.right, true)
}

func writeCompare(b *strings.Builder, n *Node, op string) {
	writeChild(b, n.kind, n.left, false)
	writeQuant(b, n)
	b.WriteString(op)
	writeChild(b, n.kind, n.right, true)
}

func writePath(b *strings.Builder, n *Node) {
	if n.root == RootDollar {
		b.WriteByte('$')
	} else {
		b.WriteByte('@')
	}
	for _, seg := range n.segments {
		switch seg.Kind {
		case SegField:
			b.WriteByte('.')
			writeIdentOrBracket(b, seg.Name)
		case SegIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		case SegStar:
			b.WriteString("[*]")
		case SegFilter:
			b.WriteByte('[')
			writeNode(b, seg.Filter, 0)
			b.WriteByte(']')
		}
	}
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func writeIdentOrBracket(b *strings.Builder, name string) {
	if isSafeIdent(name) {
		b.WriteString(name)
		return
	}
	b.WriteByte('[')
	writeStringLiteral(b, name)
	b.WriteByte(']')
}

func writeKeyLiteral(b *strings.Builder, key string) {
	if isSafeIdent(key) {
		b.WriteString(key)
		return
	}
	b.WriteByte('[')
	writeStringLiteral(b, key)
	b.WriteByte(']')
}

func writeStringLiteral(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

func writeInt(b *strings.Builder, n *Node) {
	if n.lit.Kind().String() == "Int64" {
		b.WriteString(strconv.FormatInt(n.lit.AsInt64(), 10))
		return
	}
	b.WriteString(strconv.FormatInt(int64(n.lit.AsInt32()), 10))
}

func writeDouble(b *strings.Builder, n *Node) {
	s := strconv.FormatFloat(n.lit.AsFloat64(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	b.WriteString(s)
}

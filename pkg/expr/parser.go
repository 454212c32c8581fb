package expr

import (
	"strconv"
	"strings"

	"github.com/quiverdb/quiverdb/pkg/quiverr"
	"github.com/quiverdb/quiverdb/pkg/token"
	"github.com/quiverdb/quiverdb/pkg/value"
)

// maxParseDepth bounds recursive descent so pathological nesting fails
// cleanly instead of overflowing the goroutine stack (spec.md §9).
const maxParseDepth = 200

// reservedWords may not start an atom; they are consumed by the predicate
// grammar itself.
var reservedWords = map[string]bool{
	"AND": true, "OR": true, "BETWEEN": true, "LIKE": true, "IN": true,
	"ANY": true, "ALL": true, "MAP": true, "FILTER": true,
}

// parser turns a token.Stream into an AST, mirroring the teacher's
// Parser{tokens, pos} shape generalized to operate directly against the
// stream's current/peek/advance/expect primitives instead of a
// pre-materialized token slice.
type parser struct {
	stream *token.Stream
	cur    token.Token
	depth  int
}

// Parse compiles source text into an unanalyzed AST (the caller runs
// Compile separately to get metadata and the evaluator).
func Parse(source string) (*Node, error) {
	p := &parser{stream: token.New(source)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != token.EOF {
		return nil, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "unexpected trailing token %q", p.cur.String())
	}
	return n, nil
}

func (p *parser) advance() error {
	tok, err := p.stream.Scan()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) peek() (token.Token, error) { return p.stream.Peek() }

func (p *parser) is(k token.Kind) bool { return p.cur.Kind == k }

func (p *parser) isWord(upper string) bool {
	return p.cur.Kind == token.Word && strings.ToUpper(p.cur.Value) == upper
}

func (p *parser) expectWord(upper string) error {
	if !p.isWord(upper) {
		return quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "expected %q, got %q", upper, p.cur.String())
	}
	return p.advance()
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if p.cur.Kind != k {
		return token.Token{}, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "expected %v, got %q", k, p.cur.String())
	}
	t := p.cur
	return t, p.advance()
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxParseDepth {
		return quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "expression nesting too deep")
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

// parseExpr == orExpr, the grammar's top production.
func (p *parser) parseExpr() (*Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseOr()
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isWord("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{kind: KindOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parsePredicate()
	if err != nil {
		return nil, err
	}
	for p.isWord("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePredicate()
		if err != nil {
			return nil, err
		}
		left = &Node{kind: KindAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parsePredicate() (*Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	quant := Any
	quantExplicit := false
	if p.isWord("ANY") || p.isWord("ALL") {
		if p.isWord("ALL") {
			quant = All
		}
		quantExplicit = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	switch {
	case p.isWord("BETWEEN"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		lower, err := p.parseAdditiveNonGreedyBetween()
		if err != nil {
			return nil, err
		}
		if err := p.expectWord("AND"); err != nil {
			return nil, err
		}
		upper, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Node{kind: KindBetween, left: left, lower: lower, upper: upper, quant: quant, quantExplicit: quantExplicit}, nil

	case p.isWord("LIKE"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		pattern, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Node{kind: KindLike, left: left, right: pattern, quant: quant, quantExplicit: quantExplicit}, nil

	case p.isWord("IN"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		list, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &Node{kind: KindIn, left: left, right: list, quant: quant, quantExplicit: quantExplicit}, nil
	}

	kind, ok := compareKindFor(p.cur.Kind)
	if !ok {
		if quantExplicit {
			return nil, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "expected comparison operator after quantifier, got %q", p.cur.String())
		}
		return left, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Node{kind: kind, left: left, right: right, quant: quant, quantExplicit: quantExplicit}, nil
}

func compareKindFor(k token.Kind) (Kind, bool) {
	switch k {
	case token.Equals:
		return KindEqual, true
	case token.NotEquals:
		return KindNotEqual, true
	case token.Greater:
		return KindGreaterThan, true
	case token.GreaterOrEquals:
		return KindGreaterThanOrEqual, true
	case token.Less:
		return KindLessThan, true
	case token.LessOrEquals:
		return KindLessThanOrEqual, true
	default:
		return 0, false
	}
}

// parseAdditiveNonGreedyBetween parses the lower bound of a BETWEEN so
// that a trailing "AND" is left for the BETWEEN production rather than
// being swallowed as a logical AND (spec.md §4.2: non-greedy).
func (p *parser) parseAdditiveNonGreedyBetween() (*Node, error) {
	return p.parseAdditive()
}

func (p *parser) parseAdditive() (*Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.is(token.Plus) || p.is(token.Minus) {
		kind := KindAdd
		if p.is(token.Minus) {
			kind = KindSubtract
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Node{kind: kind, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.is(token.Asterisk) || p.is(token.Slash) || p.is(token.Percent) {
		var kind Kind
		switch p.cur.Kind {
		case token.Asterisk:
			kind = KindMultiply
		case token.Slash:
			kind = KindDivide
		default:
			kind = KindModulo
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Node{kind: kind, left: left, right: right}
	}
	return left, nil
}

// parseUnary only recognizes '-' as a prefix sign. A leading '+' is not a
// valid unary operator in this grammar (unlike the additive binary '+'),
// so "8 ++ 9" fails with an unexpected-token error on the second '+'
// rather than parsing as 8 + (+9).
func (p *parser) parseUnary() (*Node, error) {
	if p.is(token.Minus) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return &Node{kind: KindSubtract, left: &Node{kind: KindInt, lit: value.NewInt32(0)}, right: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses an atom followed by '.field' / '.[string]' /
// '[filterOrIndex]' steps, implementing the path-sugar lowering to
// MAP/FILTER described in spec.md §4.2.
func (p *parser) parsePostfix() (*Node, error) {
	root, segs, isPath, err := p.parseAtomAsPathable()
	if err != nil {
		return nil, err
	}
	if !isPath {
		return root.node, nil
	}
	return p.parsePostfixSegments(root, segs)
}

// pathHead represents either "$" (document root) or "*" (Source) as the
// head of a postfix chain still being accumulated.
type pathHead struct {
	node   *Node // non-nil only when this "path" is actually a plain atom (call, literal, paren, init)
	isStar bool
	atRoot bool // true: root is '@'/current; false: root is '$'/document
}

// parseAtomAsPathable parses one atom and reports whether it can serve as
// the head of a postfix chain (pathRoot sugar, '@' or '*'), returning any
// segments already implied (a bare identifier implies its own field
// segment; every other head implies none).
func (p *parser) parseAtomAsPathable() (pathHead, []Segment, bool, error) {
	switch {
	case p.is(token.Dollar):
		if err := p.advance(); err != nil {
			return pathHead{}, nil, false, err
		}
		return pathHead{atRoot: false}, nil, true, nil

	case p.is(token.Asterisk):
		if err := p.advance(); err != nil {
			return pathHead{}, nil, false, err
		}
		return pathHead{isStar: true}, nil, true, nil

	case p.isWord("MAP") || p.isWord("FILTER"):
		kind := KindMap
		if p.isWord("FILTER") {
			kind = KindFilter
		}
		n, err := p.parseMapOrFilterArrow(kind)
		if err != nil {
			return pathHead{}, nil, false, err
		}
		return pathHead{node: n}, nil, false, nil

	case p.is(token.Word) && !reservedWords[strings.ToUpper(p.cur.Value)]:
		// Could be a call, or bare-identifier path sugar.
		name := p.cur.Value
		pos := p.cur.Position
		nextTok, err := p.peek()
		if err != nil {
			return pathHead{}, nil, false, err
		}
		if nextTok.Kind == token.OpenParen {
			n, err := p.parseCall(name, pos)
			if err != nil {
				return pathHead{}, nil, false, err
			}
			return pathHead{node: n}, nil, false, nil
		}
		if err := p.advance(); err != nil {
			return pathHead{}, nil, false, err
		}
		return pathHead{atRoot: false}, []Segment{{Kind: SegField, Name: name}}, true, nil

	case p.is(token.Word) && reservedWords[strings.ToUpper(p.cur.Value)]:
		return pathHead{}, nil, false, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "reserved word %q in expression position", p.cur.Value)

	case p.is(token.At):
		nextTok, err := p.peek()
		if err != nil {
			return pathHead{}, nil, false, err
		}
		if nextTok.Kind == token.Int || nextTok.Kind == token.Word {
			n, err := p.parseParameter()
			return pathHead{node: n}, nil, false, err
		}
		// A bare '@' is the current-element root of a path ("@.price").
		if err := p.advance(); err != nil {
			return pathHead{}, nil, false, err
		}
		return pathHead{atRoot: true}, nil, true, nil

	default:
		n, err := p.parseSimpleAtom()
		if err != nil {
			return pathHead{}, nil, false, err
		}
		return pathHead{node: n}, nil, false, nil
	}
}

// parsePostfixSegments consumes trailing '.' / '[' steps onto a path
// rooted at head, splitting into MAP(source => projection) whenever a
// '[*]' or '[predicate]' segment is not the chain's last step.
func (p *parser) parsePostfixSegments(head pathHead, leading []Segment) (*Node, error) {
	segs := append([]Segment(nil), leading...)

	for {
		switch {
		case p.is(token.Dot):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.is(token.OpenBracket) {
				if err := p.advance(); err != nil {
					return nil, err
				}
				str, err := p.expect(token.String)
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(token.CloseBracket); err != nil {
					return nil, err
				}
				segs = append(segs, Segment{Kind: SegField, Name: str.Value})
				continue
			}
			name, err := p.expect(token.Word)
			if err != nil {
				return nil, err
			}
			segs = append(segs, Segment{Kind: SegField, Name: name.Value})
			continue

		case p.is(token.OpenBracket):
			if err := p.advance(); err != nil {
				return nil, err
			}
			seg, err := p.parseFilterOrIndex()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.CloseBracket); err != nil {
				return nil, err
			}
			segs = append(segs, seg)

			more := p.is(token.Dot) || p.is(token.OpenBracket)
			if (seg.Kind == SegStar || seg.Kind == SegFilter) && more {
				source := p.buildPath(head, segs)
				projection, err := p.parsePostfixSegments(pathHead{atRoot: true}, nil)
				if err != nil {
					return nil, err
				}
				return &Node{kind: KindMap, left: source, right: projection}, nil
			}
			continue

		default:
			return p.buildPath(head, segs), nil
		}
	}
}

func (p *parser) buildPath(head pathHead, segs []Segment) *Node {
	if head.isStar {
		if len(segs) == 0 {
			return &Node{kind: KindSource}
		}
		return &Node{kind: KindMap, left: &Node{kind: KindSource}, right: &Node{kind: KindPath, root: RootAt, segments: segs}}
	}
	root := RootDollar
	if head.atRoot {
		root = RootAt
	}
	return &Node{kind: KindPath, root: root, segments: segs}
}

// parseFilterOrIndex parses the contents of '[' ... ']': '*', a bare
// integer index, or an arbitrary predicate expression.
func (p *parser) parseFilterOrIndex() (Segment, error) {
	if p.is(token.Asterisk) {
		if err := p.advance(); err != nil {
			return Segment{}, err
		}
		return Segment{Kind: SegStar}, nil
	}
	if p.is(token.Int) {
		nextTok, err := p.peek()
		if err != nil {
			return Segment{}, err
		}
		if nextTok.Kind == token.CloseBracket {
			n, convErr := strconv.Atoi(p.cur.Value)
			if convErr != nil {
				return Segment{}, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "invalid index %q", p.cur.Value)
			}
			if err := p.advance(); err != nil {
				return Segment{}, err
			}
			return Segment{Kind: SegIndex, Index: n}, nil
		}
	}
	filter, err := p.parseExpr()
	if err != nil {
		return Segment{}, err
	}
	return Segment{Kind: SegFilter, Filter: filter}, nil
}

// parseSimpleAtom parses literals, parameters, '(' expr ')', document
// initializers, and array initializers.
func (p *parser) parseSimpleAtom() (*Node, error) {
	switch {
	case p.is(token.Int):
		txt := p.cur.Value
		n, err := strconv.ParseInt(txt, 10, 64)
		if err != nil {
			return nil, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "invalid integer literal %q", txt)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if n >= -(1<<31) && n < (1<<31) {
			return &Node{kind: KindInt, lit: value.NewInt32(int32(n))}, nil
		}
		return &Node{kind: KindInt, lit: value.NewInt64(n)}, nil

	case p.is(token.Double):
		txt := p.cur.Value
		f, err := strconv.ParseFloat(txt, 64)
		if err != nil {
			return nil, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "invalid double literal %q", txt)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{kind: KindDouble, lit: value.NewDouble(f)}, nil

	case p.is(token.String):
		s := p.cur.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{kind: KindString, lit: value.NewString(s)}, nil

	case p.isWord("TRUE") || p.isWord("FALSE"):
		b := p.isWord("TRUE")
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{kind: KindBoolean, lit: value.NewBoolean(b)}, nil

	case p.isWord("NULL"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{kind: KindNull, lit: value.NewNull()}, nil

	case p.is(token.At):
		return p.parseParameter()

	case p.is(token.OpenParen):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.CloseParen); err != nil {
			return nil, err
		}
		return inner, nil

	case p.is(token.OpenBrace):
		return p.parseDocInit()

	case p.is(token.OpenBracket):
		return p.parseArrayInit()

	default:
		return nil, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "unexpected token %q", p.cur.String())
	}
}

func (p *parser) parseParameter() (*Node, error) {
	if err := p.advance(); err != nil { // consume '@'
		return nil, err
	}
	switch {
	case p.is(token.Int):
		ref := p.cur.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{kind: KindParameter, paramRef: ref}, nil
	case p.is(token.Word):
		ref := p.cur.Value
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{kind: KindParameter, paramRef: ref}, nil
	default:
		return nil, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "expected parameter name after '@', got %q", p.cur.String())
	}
}

// parseMapOrFilterArrow parses the explicit "MAP(src => proj)" /
// "FILTER(src => pred)" surface form named in spec.md §4.2's mapArrow
// production and exercised directly by failure scenario 7
// ("MAP(A => +)").
func (p *parser) parseMapOrFilterArrow(kind Kind) (*Node, error) {
	if err := p.advance(); err != nil { // consume MAP/FILTER
		return nil, err
	}
	if _, err := p.expect(token.OpenParen); err != nil {
		return nil, err
	}
	// The source stops below comparison level so the '=' of '=>' is not
	// read as an equality operator.
	src, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Equals); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Greater); err != nil {
		return nil, err
	}
	proj, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.CloseParen); err != nil {
		return nil, err
	}
	return &Node{kind: kind, left: src, right: proj}, nil
}

func (p *parser) parseCall(name string, pos int) (*Node, error) {
	if err := p.advance(); err != nil { // consume function name
		return nil, err
	}
	if _, err := p.expect(token.OpenParen); err != nil {
		return nil, err
	}
	var args []*Node
	if !p.is(token.CloseParen) {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.is(token.Comma) {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.CloseParen); err != nil {
		return nil, err
	}
	return &Node{kind: KindCall, funcName: strings.ToUpper(name), args: args}, nil
}

func (p *parser) parseDocInit() (*Node, error) {
	if err := p.advance(); err != nil { // consume '{'
		return nil, err
	}
	var entries []DocEntry
	for !p.is(token.CloseBrace) {
		var key string
		switch {
		case p.is(token.Word):
			key = p.cur.Value
			if err := p.advance(); err != nil {
				return nil, err
			}
		case p.is(token.String):
			key = p.cur.Value
			if err := p.advance(); err != nil {
				return nil, err
			}
		default:
			return nil, quiverr.NewAt(quiverr.UnexpectedToken, p.cur.Position, "expected document key, got %q", p.cur.String())
		}

		if p.is(token.Colon) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			entries = append(entries, DocEntry{Key: key, Value: val})
		} else {
			// shorthand: IDENT ≡ IDENT:IDENT
			entries = append(entries, DocEntry{Key: key, Value: &Node{kind: KindPath, root: RootDollar, segments: []Segment{{Kind: SegField, Name: key}}}})
		}

		if p.is(token.Comma) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(token.CloseBrace); err != nil {
		return nil, err
	}
	return &Node{kind: KindDocument, entries: entries}, nil
}

func (p *parser) parseArrayInit() (*Node, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	var elems []*Node
	if !p.is(token.CloseBracket) {
		for {
			el, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, el)
			if p.is(token.Comma) {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if _, err := p.expect(token.CloseBracket); err != nil {
		return nil, err
	}
	return &Node{kind: KindArray, elements: elems}, nil
}

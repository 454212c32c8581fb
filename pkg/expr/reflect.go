package expr

import "github.com/quiverdb/quiverdb/pkg/value"

// Source returns the canonical normalized text (spec.md §3.3), valid
// once Compile has run.
func (n *Node) Source() string { return n.source }

// IsScalar reports whether the expression yields at most one value.
func (n *Node) IsScalar() bool { return n.isScalar }

// IsImmutable reports whether the expression's value depends only on its
// inputs, never on ambient state (spec.md §4.3).
func (n *Node) IsImmutable() bool { return n.isImmutable }

// UsesSource reports whether any subtree is the Source node ('*').
func (n *Node) UsesSource() bool { return n.usesSource }

// Left and Right expose binary-node children for callers that need to
// walk the tree (e.g. the optimizer's where-splitter).
func (n *Node) Left() *Node  { return n.left }
func (n *Node) Right() *Node { return n.right }

// Segments exposes a Path node's postfix steps.
func (n *Node) Segments() []Segment { return n.segments }

// Root exposes a Path node's root binding ($ or @).
func (n *Node) Root() PathRoot { return n.root }

// Elements exposes an Array node's children.
func (n *Node) Elements() []*Node { return n.elements }

// Entries exposes a Document node's key/value pairs.
func (n *Node) Entries() []DocEntry { return n.entries }

// Args exposes a Call node's argument expressions.
func (n *Node) Args() []*Node { return n.args }

// FuncName exposes a Call node's uppercased function name.
func (n *Node) FuncName() string { return n.funcName }

// Lower and Upper expose a Between node's bound expressions.
func (n *Node) Lower() *Node { return n.lower }
func (n *Node) Upper() *Node { return n.upper }

// ParamRef exposes a Parameter node's reference text (numeric index or
// name).
func (n *Node) ParamRef() string { return n.paramRef }

// Literal exposes a literal node's payload value.
func (n *Node) Literal() value.Value { return n.lit }


package bvls

import "fmt"

// NodeKind identifies the operator a Node computes. INPUT nodes are
// leaves whose assignment is set directly by the caller; every other
// kind computes its assignment from its children.
type NodeKind uint8

const (
	Input NodeKind = iota
	Add
	And
	Ashr
	Concat
	Eq
	Extract
	Ite
	Mul
	Not
	Sext
	Shl
	Shr // logical (unsigned) right shift
	Slt
	Udiv
	Ult
	Urem
	Xor

	numKinds
)

var kindNames = [numKinds]string{
	Input: "input", Add: "add", And: "and", Ashr: "ashr", Concat: "concat",
	Eq: "eq", Extract: "extract", Ite: "ite", Mul: "mul", Not: "not",
	Sext: "sext", Shl: "shl", Shr: "shr", Slt: "slt", Udiv: "udiv",
	Ult: "ult", Urem: "urem", Xor: "xor",
}

func (k NodeKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("NodeKind<%d>", k)
}

// arity is the number of children a node of this kind takes. -1 means
// variable/unsupported via this table (none currently).
var kindArity = [numKinds]int{
	Input: 0, Add: 2, And: 2, Ashr: 2, Concat: 2, Eq: 2, Extract: 1,
	Ite: 3, Mul: 2, Not: 1, Sext: 1, Shl: 2, Shr: 2, Slt: 2, Udiv: 2,
	Ult: 2, Urem: 2, Xor: 2,
}

// isBoolResult reports whether a node of this kind always has width 1.
func isBoolResult(k NodeKind) bool {
	switch k {
	case Eq, Slt, Ult:
		return true
	default:
		return false
	}
}

// bounds holds the optional per-node unsigned/signed bound rectangle
// described in spec §4.6. Nil fields mean "unbounded on that side";
// a node with no bounds at all (node.bounds == nil) has not been touched by
// the bounds engine this move. All four fields are reset to nil at the
// start of every move when the ineq-bounds feature is enabled.
type bounds struct {
	MinU, MaxU *BitVector
	MinS, MaxS *BitVector
}

// node is the internal representation of one DAG vertex. Nodes are
// never mutated except by Engine's documented leaf APIs and by
// evaluate()/cone updates.
type node struct {
	id       uint64
	kind     NodeKind
	size     uint32
	children []uint64

	extractHi, extractLo uint32 // EXTRACT
	sextN                uint32 // SEXT

	assignment BitVector
	domain     Domain
	isConst    bool
	allConst   bool

	bounds *bounds

	// scratch is cleared by isInvertible when a check fails; no
	// propagator stores a witness in it.
	scratch *Domain
}

// graph is the owned, append-only node table plus the auxiliary
// parents multimap. Ids are allocated in construction order, so
// ascending-id order is always a valid topological order (children
// are always lower-id than their parents).
type graph struct {
	nodes   []*node
	parents map[uint64][]uint64
}

func newGraph() *graph {
	return &graph{parents: make(map[uint64][]uint64)}
}

func (g *graph) get(id uint64) *node {
	assert(id < uint64(len(g.nodes)), "unknown node id: %d", id)
	return g.nodes[id]
}

func (g *graph) addNode(n *node) uint64 {
	id := uint64(len(g.nodes))
	n.id = id
	g.nodes = append(g.nodes, n)
	for _, c := range n.children {
		g.parents[c] = append(g.parents[c], id)
	}
	return id
}

func (g *graph) childAssignments(n *node) []BitVector {
	out := make([]BitVector, len(n.children))
	for i, c := range n.children {
		out[i] = g.get(c).assignment
	}
	return out
}

// evaluate recomputes n's assignment from its children's current
// assignments, via the C5 dispatch table.
func (g *graph) evaluate(n *node) {
	if n.kind == Input {
		return
	}
	ch := g.childAssignments(n)
	n.assignment = evalNode(n, ch)
}

// refreshConstFlags recomputes is_const/all_const for n from its
// domain and children, called once after construction (domains never
// change except through fix_bit, which maintains these flags
// incrementally).
//
// is_const is purely "this node's own domain is fixed". all_const is
// stronger than the literal "this node and every descendant is_const"
// for an operator node: an operator's value is just as irrevocably
// forced once every child is all_const, whether or not anyone also
// bothered to tighten the operator's own (otherwise-derived) domain to
// match, since domain tightening from constant operands is the
// preprocessor's job and out of scope here. Only INPUT nodes, which
// have no children to derive a value from, need is_const itself to be
// all_const.
func (g *graph) refreshConstFlags(n *node) {
	n.isConst = n.domain.IsFixed()
	if n.kind == Input {
		n.allConst = n.isConst
		return
	}
	n.allConst = true
	for _, c := range n.children {
		if !g.get(c).allConst {
			n.allConst = false
			break
		}
	}
}

package main

import (
	"sort"

	"github.com/bvlocal/bvls"
)

// leaf names one of a scenario's non-constant input nodes, so run can
// print its final assignment.
type leaf struct {
	name string
	id   uint64
}

type scenario struct {
	engine *bvls.Engine
	leaves []leaf
}

// scenarios mirrors the six end-to-end scenarios (S1-S6) from the
// engine's own specification, used here purely as smoke-test fixtures.
var scenarios = map[string]func(seed uint32) *scenario{
	"s1": buildS1,
	"s2": buildS2,
	"s3": buildS3,
	"s4": buildS4,
	"s5": buildS5,
	"s6": buildS6,
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// constant returns an INPUT node whose domain and assignment are both
// fixed to v, the engine's way of representing a literal constant
// (§3: a node is_const iff its domain is fixed).
func constant(e *bvls.Engine, v bvls.BitVector) uint64 {
	return e.MkInputWithDomain(v, bvls.FromValue(v))
}

// s1: x,y width 8, root x+y = 42.
func buildS1(seed uint32) *scenario {
	e := bvls.NewEngine(seed)
	x := e.MkInput(8)
	y := e.MkInput(8)
	sum := e.MkOp(bvls.Add, 8, []uint64{x, y})
	c42 := constant(e, bvls.NewBitVector(42, 8))
	root := e.MkOp(bvls.Eq, 1, []uint64{sum, c42})
	e.RegisterRoot(root)
	return &scenario{engine: e, leaves: []leaf{{"x", x}, {"y", y}}}
}

// s2: x width 4 with domain 0xx0, root x = 0110.
func buildS2(seed uint32) *scenario {
	e := bvls.NewEngine(seed)
	dom := bvls.NewDomain(bvls.FromBitString("0000"), bvls.FromBitString("0110"))
	x := e.MkInputWithDomain(dom.Lo(), dom)
	c6 := constant(e, bvls.FromBitString("0110"))
	root := e.MkOp(bvls.Eq, 1, []uint64{x, c6})
	e.RegisterRoot(root)
	return &scenario{engine: e, leaves: []leaf{{"x", x}}}
}

// s3: x width 4 with fixed domain 1111, root x = 0000. The root's own
// domain is set to the (already known) fixed-false result, since
// domain tightening from constant operands is the preprocessor's job
// (out of scope per the engine's own spec) and not something the
// engine infers on the caller's behalf.
func buildS3(seed uint32) *scenario {
	e := bvls.NewEngine(seed)
	x := constant(e, bvls.FromBitString("1111"))
	c0 := constant(e, bvls.FromBitString("0000"))
	root := e.MkOpWithDomain(bvls.Eq, bvls.FromValue(bvls.NewBitVector(0, 1)), []uint64{x, c0})
	e.RegisterRoot(root)
	return &scenario{engine: e, leaves: []leaf{{"x", x}}}
}

// s4: a,b width 8, roots {a<b, b<a}: unsatisfiable, but the engine is
// a heuristic and never proves it; it should report unknown once its
// budget runs out rather than sat.
func buildS4(seed uint32) *scenario {
	e := bvls.NewEngine(seed)
	a := e.MkInput(8)
	b := e.MkInput(8)
	r1 := e.MkOp(bvls.Ult, 1, []uint64{a, b})
	r2 := e.MkOp(bvls.Ult, 1, []uint64{b, a})
	e.RegisterRoot(r1)
	e.RegisterRoot(r2)
	return &scenario{engine: e, leaves: []leaf{{"a", a}, {"b", b}}}
}

// s5: x width 8, root x*3 = 9. Expects x = 3 via the odd-multiplier
// modular-inverse branch of MUL's inverse-value generator.
func buildS5(seed uint32) *scenario {
	e := bvls.NewEngine(seed)
	x := e.MkInput(8)
	c3 := constant(e, bvls.NewBitVector(3, 8))
	mul := e.MkOp(bvls.Mul, 8, []uint64{x, c3})
	c9 := constant(e, bvls.NewBitVector(9, 8))
	root := e.MkOp(bvls.Eq, 1, []uint64{mul, c9})
	e.RegisterRoot(root)
	return &scenario{engine: e, leaves: []leaf{{"x", x}}}
}

// s6: x width 4, root (x << 2) = 1100. Expects x in {0011,0111,1011,1111}.
func buildS6(seed uint32) *scenario {
	e := bvls.NewEngine(seed)
	x := e.MkInput(4)
	c2 := constant(e, bvls.NewBitVector(2, 4))
	shl := e.MkOp(bvls.Shl, 4, []uint64{x, c2})
	c12 := constant(e, bvls.FromBitString("1100"))
	root := e.MkOp(bvls.Eq, 1, []uint64{shl, c12})
	e.RegisterRoot(root)
	return &scenario{engine: e, leaves: []leaf{{"x", x}}}
}

package bvls

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// runToCompletion drives e until it reports something other than
// Unknown, or maxMoves is reached.
func runToCompletion(e *Engine, maxMoves int) MoveResult {
	var r MoveResult
	for i := 0; i < maxMoves; i++ {
		r = e.Move()
		if r != Unknown {
			return r
		}
	}
	return r
}

// checkInvariants verifies P1 and P2 over every node in e's graph.
func checkInvariants(t *testing.T, e *Engine) {
	t.Helper()
	for _, n := range e.g.nodes {
		if !n.domain.Contains(n.assignment) {
			t.Fatalf("P2 violated: node %d assignment %s not in domain [%s,%s]", n.id, n.assignment, n.domain.Lo(), n.domain.Hi())
		}
		if n.kind == Input {
			continue
		}
		ch := e.g.childAssignments(n)
		want := evalNode(n, ch)
		if !want.Eq(n.assignment) {
			t.Fatalf("P1 violated: node %d (%s) assignment %s, want eval() = %s", n.id, n.kind, n.assignment, want)
		}
	}
}

// checkUnsatRoots verifies P3: unsat_roots is exactly the set of
// registered roots currently assigned 0.
func checkUnsatRoots(t *testing.T, e *Engine) {
	t.Helper()
	it := e.roots.Iterator()
	for !it.Done() {
		k, _ := it.Next()
		id := k.(uint64)
		n := e.g.get(id)
		_, inUnsat := e.unsatRoots.Get(id)
		wantUnsat := n.assignment.IsZero()
		if inUnsat != wantUnsat {
			t.Fatalf("P3 violated: root %d assignment=%s, inUnsatRoots=%v, want %v", id, n.assignment, inUnsat, wantUnsat)
		}
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name       string
		want       MoveResult
		maxMoves   int
		checkModel func(t *testing.T, s *scenarioFixture)
	}{
		{
			name:     "s1",
			want:     Sat,
			maxMoves: 200,
			checkModel: func(t *testing.T, s *scenarioFixture) {
				x := s.engine.GetAssignment(s.leaves[0])
				y := s.engine.GetAssignment(s.leaves[1])
				if got := x.Add(y); got.Uint64() != 42 {
					t.Errorf("x+y = %d, want 42 (x=%s y=%s)", got.Uint64(), x, y)
				}
			},
		},
		{
			name:     "s2",
			want:     Sat,
			maxMoves: 200,
			checkModel: func(t *testing.T, s *scenarioFixture) {
				x := s.engine.GetAssignment(s.leaves[0])
				if want := FromBitString("0110"); !x.Eq(want) {
					t.Errorf("x = %s, want %s", x, want)
				}
			},
		},
		{
			name:     "s3",
			want:     Unsat,
			maxMoves: 1,
		},
		{
			name:     "s4",
			want:     Unknown,
			maxMoves: 500,
		},
		{
			name:     "s5",
			want:     Sat,
			maxMoves: 200,
			checkModel: func(t *testing.T, s *scenarioFixture) {
				x := s.engine.GetAssignment(s.leaves[0])
				if x.Uint64() != 3 {
					t.Errorf("x = %s, want 3", x)
				}
			},
		},
		{
			name:     "s6",
			want:     Sat,
			maxMoves: 200,
			checkModel: func(t *testing.T, s *scenarioFixture) {
				x := s.engine.GetAssignment(s.leaves[0])
				switch x.Uint64() {
				case 3, 7, 11, 15:
				default:
					t.Errorf("x = %s, want one of 0011,0111,1011,1111", x)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := buildScenario(t, tc.name, 1)
			got := runToCompletion(s.engine, tc.maxMoves)
			if got != tc.want {
				t.Fatalf("result = %s, want %s\n%s", got, tc.want, s.engine.DebugString())
			}
			checkInvariants(t, s.engine)
			checkUnsatRoots(t, s.engine)
			if tc.checkModel != nil {
				tc.checkModel(t, s)
			}
		})
	}
}

func buildScenario(t *testing.T, name string, seed uint32) *scenarioFixture {
	t.Helper()
	switch name {
	case "s1":
		e := NewEngine(seed)
		x := e.MkInput(8)
		y := e.MkInput(8)
		sum := e.MkOp(Add, 8, []uint64{x, y})
		c42 := constInput(e, NewBitVector(42, 8))
		root := e.MkOp(Eq, 1, []uint64{sum, c42})
		e.RegisterRoot(root)
		return &scenarioFixture{engine: e, leaves: []uint64{x, y}}
	case "s2":
		e := NewEngine(seed)
		dom := NewDomain(FromBitString("0000"), FromBitString("0110"))
		x := e.MkInputWithDomain(dom.Lo(), dom)
		c6 := constInput(e, FromBitString("0110"))
		root := e.MkOp(Eq, 1, []uint64{x, c6})
		e.RegisterRoot(root)
		return &scenarioFixture{engine: e, leaves: []uint64{x}}
	case "s3":
		e := NewEngine(seed)
		x := constInput(e, FromBitString("1111"))
		c0 := constInput(e, FromBitString("0000"))
		root := e.MkOpWithDomain(Eq, FromValue(NewBitVector(0, 1)), []uint64{x, c0})
		e.RegisterRoot(root)
		return &scenarioFixture{engine: e, leaves: []uint64{x}}
	case "s4":
		e := NewEngine(seed)
		a := e.MkInput(8)
		b := e.MkInput(8)
		r1 := e.MkOp(Ult, 1, []uint64{a, b})
		r2 := e.MkOp(Ult, 1, []uint64{b, a})
		e.RegisterRoot(r1)
		e.RegisterRoot(r2)
		return &scenarioFixture{engine: e, leaves: []uint64{a, b}}
	case "s5":
		e := NewEngine(seed)
		x := e.MkInput(8)
		c3 := constInput(e, NewBitVector(3, 8))
		mul := e.MkOp(Mul, 8, []uint64{x, c3})
		c9 := constInput(e, NewBitVector(9, 8))
		root := e.MkOp(Eq, 1, []uint64{mul, c9})
		e.RegisterRoot(root)
		return &scenarioFixture{engine: e, leaves: []uint64{x}}
	case "s6":
		e := NewEngine(seed)
		x := e.MkInput(4)
		c2 := constInput(e, NewBitVector(2, 4))
		shl := e.MkOp(Shl, 4, []uint64{x, c2})
		c12 := constInput(e, FromBitString("1100"))
		root := e.MkOp(Eq, 1, []uint64{shl, c12})
		e.RegisterRoot(root)
		return &scenarioFixture{engine: e, leaves: []uint64{x}}
	default:
		t.Fatalf("unknown scenario %q", name)
		return nil
	}
}

type scenarioFixture struct {
	engine *Engine
	leaves []uint64
}

func constInput(e *Engine, v BitVector) uint64 {
	return e.MkInputWithDomain(v, FromValue(v))
}

// TestMoveIsSingleLanding checks that a single Move call performs at
// most one cone update (it may perform zero, if it lands back on the
// leaf's existing value, or returns early on Sat/Unsat/budget).
func TestMoveIsSingleLanding(t *testing.T) {
	e := NewEngine(7)
	x := e.MkInput(8)
	y := e.MkInput(8)
	sum := e.MkOp(Add, 8, []uint64{x, y})
	c42 := constInput(e, NewBitVector(42, 8))
	root := e.MkOp(Eq, 1, []uint64{sum, c42})
	e.RegisterRoot(root)

	for i := 0; i < 200 && !e.AllRootsSat(); i++ {
		before := e.NUpdates()
		r := e.Move()
		after := e.NUpdates()
		if r == Unknown && after-before > uint64(len(e.g.nodes)) {
			t.Fatalf("move %d updated %d nodes, more than exist in the graph (%d)", i, after-before, len(e.g.nodes))
		}
	}
	if !e.AllRootsSat() {
		t.Fatal("did not reach sat within budget")
	}
}

// TestDeterminism checks P5: identical seed and API transcript produce
// bit-identical move() results and final leaf assignments.
func TestDeterminism(t *testing.T) {
	run := func(seed uint32) (results []MoveResult, xs, ys BitVector) {
		e := NewEngine(seed)
		x := e.MkInput(8)
		y := e.MkInput(8)
		sum := e.MkOp(Add, 8, []uint64{x, y})
		c42 := constInput(e, NewBitVector(42, 8))
		root := e.MkOp(Eq, 1, []uint64{sum, c42})
		e.RegisterRoot(root)
		for i := 0; i < 200; i++ {
			r := e.Move()
			results = append(results, r)
			if r != Unknown {
				break
			}
		}
		return results, e.GetAssignment(x), e.GetAssignment(y)
	}

	r1, x1, y1 := run(99)
	r2, x2, y2 := run(99)

	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Errorf("move() result sequences differ across identical seeds:\n%s", diff)
	}
	if diff := cmp.Diff(x1, x2, cmp.AllowUnexported(BitVector{})); diff != "" {
		t.Errorf("x assignments differ across identical seeds:\n%s", diff)
	}
	if diff := cmp.Diff(y1, y2, cmp.AllowUnexported(BitVector{})); diff != "" {
		t.Errorf("y assignments differ across identical seeds:\n%s", diff)
	}
}

// TestSixShiftCoverage checks S6's requirement that distinct seeds
// cover at least two of the four valid models.
func TestSixShiftCoverage(t *testing.T) {
	seen := map[uint64]bool{}
	for seed := uint32(1); seed <= 12; seed++ {
		s := buildScenario(t, "s6", seed)
		if got := runToCompletion(s.engine, 200); got != Sat {
			continue
		}
		seen[s.engine.GetAssignment(s.leaves[0]).Uint64()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("only observed %d distinct models across 12 seeds, want >= 2: %v", len(seen), seen)
	}
}

func TestFixedFalseRootIsUnsat(t *testing.T) {
	e := NewEngine(3)
	x := constInput(e, NewBitVector(0, 4))
	root := e.MkOpWithDomain(Eq, FromValue(NewBitVector(0, 1)), []uint64{x, constInput(e, NewBitVector(1, 4))})
	e.RegisterRoot(root)
	if got := e.Move(); got != Unsat {
		t.Fatalf("Move() = %s, want unsat", got)
	}
}

// TestAllConstRootIsUnsat covers a root whose own domain is all-x but
// whose value is nonetheless forced false because every descendant is
// const: Move must report unsat instead of spinning on conflicts
// forever (the root is never isConst itself, only allConst).
func TestAllConstRootIsUnsat(t *testing.T) {
	e := NewEngine(11)
	c5 := constInput(e, NewBitVector(5, 8))
	c3 := constInput(e, NewBitVector(3, 8))
	root := e.MkOp(Ult, 1, []uint64{c5, c3}) // 5 < 3 is false, domain left all-x
	e.RegisterRoot(root)
	if got := e.Move(); got != Unsat {
		t.Fatalf("Move() = %s, want unsat", got)
	}
}

func TestFixBitNarrowsDomainAndResamples(t *testing.T) {
	e := NewEngine(5)
	x := e.MkInput(4)
	e.SetAssignment(x, NewBitVector(0, 4)) // bit 0 = 0
	e.FixBit(x, 0, 1)
	d := e.GetDomain(x)
	if d.Lo().Uint64()&1 != 1 || d.Hi().Uint64()&1 != 1 {
		t.Fatalf("domain after FixBit(0,1) does not force bit 0: [%s,%s]", d.Lo(), d.Hi())
	}
	if !d.Contains(e.GetAssignment(x)) {
		t.Fatalf("assignment %s not in narrowed domain [%s,%s]", e.GetAssignment(x), d.Lo(), d.Hi())
	}
}

package bvls

import (
	"sort"

	"github.com/benbjohnson/immutable"
	"github.com/davecgh/go-spew/spew"
)

// Config holds every §6 policy knob. All fields have documented
// defaults in DefaultConfig; an Engine's copy is changed only through
// its Set* methods (Engine.Config returns a copy).
type Config struct {
	MaxNProps   uint64
	MaxNUpdates uint64

	IneqBounds    bool
	OptConcatSext bool

	ProbPickInvValue uint16 // permille
	ProbPickEssInput uint16 // permille

	UsePathSelEssential bool

	LogLevel uint32
}

// DefaultConfig returns the documented default policy: budgets
// effectively unbounded, both heuristics enabled, and the permille
// probabilities published for the reference local-search engine this
// package's driver is modeled on.
func DefaultConfig() Config {
	return Config{
		MaxNProps:           1 << 40,
		MaxNUpdates:         1 << 40,
		IneqBounds:          true,
		OptConcatSext:       true,
		ProbPickInvValue:    659,
		ProbPickEssInput:    990,
		UsePathSelEssential: true,
		LogLevel:            0,
	}
}

// LogFunc receives internal trace records gated by Config.LogLevel.
// level is the record's verbosity tier as set by the engine (1: a root
// found unsatisfiable, 2: search conflicts, 3: cone updates); a record
// is passed on only when level <= Config.LogLevel.
type LogFunc func(level uint32, format string, args ...interface{})

// Engine is a single, independent local-search instance: a node graph,
// an RNG, a root registry and move counters. Multiple Engines never
// share state (spec §9 "avoid global state / singletons").
type Engine struct {
	g   *graph
	rng *RNG
	cfg Config
	log LogFunc

	roots      *immutable.SortedMap // uint64 -> struct{}
	unsatRoots *immutable.SortedMap // uint64 -> struct{}

	sealed bool // true once the first Move has been issued

	nprops   uint64
	nupdates uint64
}

// NewEngine returns a fresh Engine seeded deterministically from seed,
// with Config set to DefaultConfig.
func NewEngine(seed uint32) *Engine {
	return &Engine{
		g:          newGraph(),
		rng:        NewRNG(seed),
		cfg:        DefaultConfig(),
		log:        func(uint32, string, ...interface{}) {},
		roots:      immutable.NewSortedMap(&uint64Comparer{}),
		unsatRoots: immutable.NewSortedMap(&uint64Comparer{}),
	}
}

// uint64Comparer orders node ids. Implements immutable.Comparer,
// giving the root registry and unsat-root set a deterministic,
// id-ascending iteration order, which the determinism contract (§6 P5)
// depends on.
type uint64Comparer struct{}

func (*uint64Comparer) Compare(a, b interface{}) int {
	x, y := a.(uint64), b.(uint64)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// SetLogger installs fn as the sink for internal trace records. Pass
// nil to restore the default no-op logger.
func (e *Engine) SetLogger(fn LogFunc) {
	if fn == nil {
		fn = func(uint32, string, ...interface{}) {}
	}
	e.log = fn
}

func (e *Engine) logf(level uint32, format string, args ...interface{}) {
	if level <= e.cfg.LogLevel {
		e.log(level, format, args...)
	}
}

// --- Configuration (§6) ---

func (e *Engine) SetMaxNProps(v uint64)         { e.cfg.MaxNProps = v }
func (e *Engine) SetMaxNUpdates(v uint64)       { e.cfg.MaxNUpdates = v }
func (e *Engine) SetIneqBounds(v bool)          { e.cfg.IneqBounds = v }
func (e *Engine) SetOptConcatSext(v bool)       { e.cfg.OptConcatSext = v }
func (e *Engine) SetUsePathSelEssential(v bool) { e.cfg.UsePathSelEssential = v }
func (e *Engine) SetLogLevel(v uint32)          { e.cfg.LogLevel = v }

func (e *Engine) SetProbPickInvValue(v uint16) {
	assert(v <= 1000, "SetProbPickInvValue: out of range: %d", v)
	e.cfg.ProbPickInvValue = v
}

func (e *Engine) SetProbPickEssInput(v uint16) {
	assert(v <= 1000, "SetProbPickEssInput: out of range: %d", v)
	e.cfg.ProbPickEssInput = v
}

// Config returns a copy of the engine's current configuration.
func (e *Engine) Config() Config { return e.cfg }

// --- Construction (§6) ---

// MkInput creates an INPUT node of the given width with an all-x
// domain and a zero assignment, and returns its id.
func (e *Engine) MkInput(size uint32) uint64 {
	e.checkNotSealed()
	n := &node{kind: Input, size: size, assignment: Zero(size), domain: AllX(size)}
	id := e.g.addNode(n)
	e.g.refreshConstFlags(n)
	return id
}

// MkInputWithDomain creates an INPUT node whose assignment and domain
// are given directly. assignment must be a member of domain.
func (e *Engine) MkInputWithDomain(assignment BitVector, domain Domain) uint64 {
	e.checkNotSealed()
	assert(assignment.Width() == domain.Width(), "MkInputWithDomain: width mismatch: %d != %d", assignment.Width(), domain.Width())
	assert(domain.IsValid(), "MkInputWithDomain: invalid domain")
	assert(domain.Contains(assignment), "MkInputWithDomain: assignment not in domain")
	n := &node{kind: Input, size: assignment.Width(), assignment: assignment, domain: domain}
	id := e.g.addNode(n)
	e.g.refreshConstFlags(n)
	return id
}

// MkOp creates an operator node of the given kind and width over
// children, with an all-x domain, and returns its id. kind must not be
// Input, Extract or Sext (use MkExtract/MkSext for those, which carry
// indices MkOp has no way to accept).
func (e *Engine) MkOp(kind NodeKind, size uint32, children []uint64) uint64 {
	assert(kind != Extract && kind != Sext, "MkOp: %s requires indices; use MkExtract/MkSext", kind)
	return e.mkOpRaw(kind, size, AllX(size), children, 0, 0)
}

// MkOpWithDomain is MkOp but with an explicit initial domain instead of
// all-x.
func (e *Engine) MkOpWithDomain(kind NodeKind, domain Domain, children []uint64) uint64 {
	assert(kind != Extract && kind != Sext, "MkOpWithDomain: %s requires indices; use MkExtract/MkSext", kind)
	return e.mkOpRaw(kind, domain.Width(), domain, children, 0, 0)
}

// MkExtract creates an EXTRACT node selecting bits [hi:lo] of child.
func (e *Engine) MkExtract(child uint64, hi, lo uint32) uint64 {
	e.checkNotSealed()
	c := e.g.get(child)
	assert(lo <= hi && hi < c.size, "MkExtract: indices out of range: [%d:%d] of width %d", hi, lo, c.size)
	return e.mkOpRaw(Extract, hi-lo+1, AllX(hi-lo+1), []uint64{child}, hi, lo)
}

// MkSext creates a SEXT node sign-extending child by n bits.
func (e *Engine) MkSext(child uint64, n uint32) uint64 {
	e.checkNotSealed()
	c := e.g.get(child)
	return e.mkOpRaw(Sext, c.size+n, AllX(c.size+n), []uint64{child}, 0, n)
}

func (e *Engine) mkOpRaw(kind NodeKind, size uint32, domain Domain, children []uint64, extractHi, extractLoOrSextN uint32) uint64 {
	e.checkNotSealed()
	assert(kind != Input, "mkOp: kind must not be Input")
	want := kindArity[kind]
	assert(len(children) == want, "mkOp: %s wants %d children, got %d", kind, want, len(children))
	if isBoolResult(kind) {
		assert(size == 1, "mkOp: %s must have width 1, got %d", kind, size)
	}
	for i, c := range children {
		cn := e.g.get(c)
		switch {
		case kind == Concat:
			// widths of the two operands need not match each other,
			// checked against size below instead.
		case kind == Extract || kind == Sext:
			// width relation checked by the caller (MkExtract/MkSext).
		case isBoolResult(kind):
			// comparison operands share one width; the result is width 1.
			c0 := e.g.get(children[0])
			assert(cn.size == c0.size, "mkOp: %s child %d width mismatch: %d != %d", kind, i, cn.size, c0.size)
		case kind == Ite && i == 0:
			assert(cn.size == 1, "mkOp: ite condition must have width 1, got %d", cn.size)
		default:
			assert(cn.size == size, "mkOp: %s child %d width mismatch: %d != %d", kind, i, cn.size, size)
		}
	}
	if kind == Concat {
		c0, c1 := e.g.get(children[0]), e.g.get(children[1])
		assert(size == c0.size+c1.size, "mkOp: concat width mismatch: %d != %d+%d", size, c0.size, c1.size)
	}
	n := &node{
		kind:      kind,
		size:      size,
		children:  append([]uint64(nil), children...),
		domain:    domain,
		extractHi: extractHi,
	}
	if kind == Extract {
		n.extractLo = extractLoOrSextN
	}
	if kind == Sext {
		n.sextN = extractLoOrSextN
	}
	id := e.g.addNode(n)
	e.g.evaluate(n)
	e.g.refreshConstFlags(n)
	return id
}

func (e *Engine) checkNotSealed() {
	assert(!e.sealed, "bvls: graph construction after the first Move is not permitted except through the documented leaf APIs")
}

// --- Leaf mutation (§6) ---

// SetAssignment sets an INPUT node's assignment and re-evaluates its
// cone of influence through updateCone, the same path Move's landing
// step uses (so the evaluations count toward NUpdates). v must lie in
// the node's domain.
func (e *Engine) SetAssignment(id uint64, v BitVector) {
	n := e.g.get(id)
	assert(n.kind == Input, "SetAssignment: node %d is not an input", id)
	assert(n.domain.Contains(v), "SetAssignment: value not in domain")
	e.updateCone(n, v)
}

// FixBit fixes bit i of an INPUT node's domain to v, narrowing the
// domain. Panics if the bit is already fixed to the opposite value.
func (e *Engine) FixBit(id uint64, i uint32, v uint64) {
	n := e.g.get(id)
	assert(n.kind == Input, "FixBit: node %d is not an input", id)
	n.domain = n.domain.FixBit(i, v)
	e.g.refreshConstFlags(n)
	for _, aid := range e.ancestorsOf(n.id) {
		e.g.refreshConstFlags(e.g.get(aid))
	}
	if !n.domain.Contains(n.assignment) {
		n.assignment = n.domain.Random(e.rng)
		e.propagateEvaluation(n)
	}
}

// --- Roots (§6) ---

// RegisterRoot marks id as a root. Root nodes must have width 1.
func (e *Engine) RegisterRoot(id uint64) {
	n := e.g.get(id)
	assert(n.size == 1, "RegisterRoot: root %d has width %d, want 1", id, n.size)
	e.roots = e.roots.Set(id, struct{}{})
	e.updateUnsatRoots(n)
	e.sealed = true
}

// updateUnsatRoots refreshes the unsat-root membership of n if it is a
// registered root.
func (e *Engine) updateUnsatRoots(n *node) {
	if _, ok := e.roots.Get(n.id); !ok {
		return
	}
	if n.assignment.IsZero() {
		e.unsatRoots = e.unsatRoots.Set(n.id, struct{}{})
	} else {
		e.unsatRoots = e.unsatRoots.Delete(n.id)
	}
}

// --- Queries (§6) ---

func (e *Engine) GetAssignment(id uint64) BitVector { return e.g.get(id).assignment }
func (e *Engine) GetDomain(id uint64) Domain        { return e.g.get(id).domain }
func (e *Engine) GetArity(id uint64) int            { return len(e.g.get(id).children) }
func (e *Engine) GetChild(id uint64, k int) uint64 {
	n := e.g.get(id)
	assert(k >= 0 && k < len(n.children), "GetChild: index out of range: %d", k)
	return n.children[k]
}

// AllRootsSat reports whether every registered root currently
// evaluates to true.
func (e *Engine) AllRootsSat() bool { return e.unsatRoots.Len() == 0 }

// NumUnsatRoots returns the number of currently-unsatisfied roots.
func (e *Engine) NumUnsatRoots() int { return e.unsatRoots.Len() }

// NProps returns the total number of propagation steps taken so far.
func (e *Engine) NProps() uint64 { return e.nprops }

// NUpdates returns the total number of cone-of-influence node
// evaluations performed so far.
func (e *Engine) NUpdates() uint64 { return e.nupdates }

// DebugString renders the full node table via go-spew, for use in
// verbose logging and test failure messages.
func (e *Engine) DebugString() string {
	return spew.Sdump(e.g.nodes)
}

// --- Progress (§6, §4.5) ---

// Move performs one unit of driver progress: select an unsatisfied
// root, propagate a target value down through the DAG, land on an
// input leaf and update its cone of influence. A search conflict is
// recovered locally by retrying with a freshly-chosen root (§4.5 step
// 4) within the same call; Move only returns once it has performed one
// successful landing, or a budget or UNSAT condition ends the search.
// Returns Sat once every root is satisfied, Unsat if the chosen root is
// a fixed-false constant, or Unknown otherwise (including ordinary
// progress and budget exhaustion).
func (e *Engine) Move() MoveResult {
	e.sealed = true
	for {
		if e.AllRootsSat() {
			return Sat
		}
		if e.nprops >= e.cfg.MaxNProps || e.nupdates >= e.cfg.MaxNUpdates {
			return Unknown
		}

		root := e.pickUnsatRoot()
		if root.isConst || root.allConst {
			// A fixed-false constant root, or one whose value is
			// irrevocably forced by fully-const descendants: no move
			// can ever change its assignment, so no assignment can ever
			// satisfy it.
			e.logf(1, "move: root %d is a fixed-false constant", root.id)
			return Unsat
		}

		if e.cfg.IneqBounds {
			e.deriveBounds()
		}

		if e.propagate(root) {
			// conflict: retry with a freshly (possibly differently)
			// chosen root, still within this Move call
			continue
		}

		if e.AllRootsSat() {
			return Sat
		}
		return Unknown
	}
}

// pickUnsatRoot selects one currently-unsatisfied root uniformly at
// random via the shared RNG.
func (e *Engine) pickUnsatRoot() *node {
	ids := make([]uint64, 0, e.unsatRoots.Len())
	it := e.unsatRoots.Iterator()
	for !it.Done() {
		k, _ := it.Next()
		ids = append(ids, k.(uint64))
	}
	id := e.rng.PickFromSet(ids)
	return e.g.get(id)
}

// propagate walks downward from cur, propagating target t, until it
// lands on an input leaf (in which case it calls updateCone and
// returns false) or hits a conflict (returns true, instructing Move to
// retry from a fresh root pick).
func (e *Engine) propagate(root *node) (conflict bool) {
	cur := root
	t := NewBitVector(1, 1)
	for {
		if len(cur.children) == 0 {
			// landed on an input
			if !cur.assignment.Eq(t) {
				e.updateCone(cur, t)
			}
			return false
		}
		if cur.isConst || cur.allConst {
			e.logf(2, "move: conflict at node %d (const)", cur.id)
			return true
		}

		pos, ok := e.selectPath(cur, t)
		if !ok {
			// every child is individually domain-fixed even though cur
			// itself is not flagged const: there is nowhere left to
			// propagate through. Treat as a conflict.
			e.logf(2, "move: conflict at node %d (no non-const child)", cur.id)
			return true
		}

		nextT, ok := e.selectValue(cur, t, pos)
		if !ok {
			e.logf(2, "move: conflict at node %d pos %d (no IC/CC)", cur.id, pos)
			return true
		}

		e.nprops++
		cur = e.child(cur, pos)
		t = nextT
	}
}

// selectPath picks which operand position to descend into, preferring
// an essential operand with probability ProbPickEssInput when the path-
// selection-essential feature is enabled, falling back to a uniform
// pick among non-constant children. ok is false if every child is
// individually domain-fixed, meaning there is nothing left to
// propagate through.
func (e *Engine) selectPath(cur *node, t BitVector) (pos int, ok bool) {
	nonConst := e.nonConstPositions(cur)
	if len(nonConst) == 0 {
		return 0, false
	}

	if e.cfg.UsePathSelEssential && e.rng.PickWithProb(e.cfg.ProbPickEssInput) {
		ess := e.essentialPositions(cur, t, nonConst)
		if len(ess) > 0 {
			return ess[e.pickIndex(len(ess))], true
		}
	}
	return nonConst[e.pickIndex(len(nonConst))], true
}

// pickIndex returns a uniformly random index in [0, n).
func (e *Engine) pickIndex(n int) int {
	return int(e.rng.PickUniformU32(0, uint32(n-1)))
}

func (e *Engine) nonConstPositions(cur *node) []int {
	var out []int
	for i := range cur.children {
		if !e.child(cur, i).isConst {
			out = append(out, i)
		}
	}
	return out
}

func (e *Engine) essentialPositions(cur *node, t BitVector, candidates []int) []int {
	var out []int
	for _, pos := range candidates {
		if e.isEssential(cur, t, pos) {
			out = append(out, pos)
		}
	}
	return out
}

// selectValue decides, for the chosen operand position, the target
// value to propagate further down: the inverse value with probability
// ProbPickInvValue (when invertible), else the consistent value (when
// consistent), else a conflict.
func (e *Engine) selectValue(cur *node, t BitVector, pos int) (BitVector, bool) {
	if e.rng.PickWithProb(e.cfg.ProbPickInvValue) {
		if e.isInvertible(cur, t, pos, true, false) {
			return e.inverseValue(cur, t, pos), true
		}
		if e.isConsistent(cur, t, pos) {
			return e.consistentValue(cur, t, pos), true
		}
		return BitVector{}, false
	}
	if e.isConsistent(cur, t, pos) {
		return e.consistentValue(cur, t, pos), true
	}
	if e.isInvertible(cur, t, pos, true, false) {
		return e.inverseValue(cur, t, pos), true
	}
	return BitVector{}, false
}

// --- Cone of influence (§4.7) ---

// updateCone implements §4.7: sets n's assignment to v, then
// re-evaluates every ancestor of n in ascending-id (topological) order,
// updating the unsat-root set for every root touched. Returns the
// total number of node evaluations performed, including n itself.
func (e *Engine) updateCone(n *node, v BitVector) int {
	if n.assignment.Eq(v) {
		return 0
	}
	n.assignment = v
	count := 1
	e.nupdates++

	ancestors := e.ancestorsOf(n.id)
	for _, id := range ancestors {
		an := e.g.get(id)
		e.g.evaluate(an)
		count++
		e.nupdates++
		e.updateUnsatRoots(an)
	}
	e.logf(3, "update_cone: leaf %d -> %s, %d nodes updated", n.id, v, count)
	return count
}

// propagateEvaluation re-evaluates n's own cone without changing n's
// assignment itself (used by FixBit when narrowing a domain forces a
// resample of the leaf's current value).
func (e *Engine) propagateEvaluation(n *node) {
	ancestors := e.ancestorsOf(n.id)
	for _, id := range ancestors {
		an := e.g.get(id)
		e.g.evaluate(an)
		e.updateUnsatRoots(an)
	}
}

// ancestorsOf returns every node reachable from n via the parents map,
// sorted ascending by id so a child is always visited before its
// parent (ids are allocated in construction order, so ascending-id
// order is a valid topological order per spec §9).
func (e *Engine) ancestorsOf(id uint64) []uint64 {
	visited := make(map[uint64]bool)
	queue := []uint64{id}
	var out []uint64
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range e.g.parents[cur] {
			if !visited[p] {
				visited[p] = true
				out = append(out, p)
				queue = append(queue, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

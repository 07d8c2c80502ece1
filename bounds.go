package bvls

// Bounds engine (C6): sharpens inverse-value search for ULT/SLT by
// deriving, from the currently-satisfied top-level inequalities, a
// tighter legal range for each inequality's two operands. Grounded on
// the interval-composition shape of a value-range-propagation pass
// (see DESIGN.md) but run as a single top-down derivation pass per
// move instead of an iterative dataflow fixpoint, since here there is
// only ever one hop: root inequality -> its two direct operands.

// resetBounds clears every node's bounds, called at the start of each
// move when the ineq-bounds feature is enabled.
func (e *Engine) resetBounds() {
	for _, n := range e.g.nodes {
		n.bounds = nil
	}
}

// deriveBounds recomputes bounds from every currently-satisfied root
// that is (possibly through a single NOT) a ULT or SLT comparison.
func (e *Engine) deriveBounds() {
	e.resetBounds()
	for _, rootID := range e.rootOrder() {
		r := e.g.get(rootID)
		if r.assignment.IsZero() {
			continue
		}
		cmp, negated := unwrapInequality(e.g, r)
		if cmp == nil {
			continue
		}
		e.deriveBoundsFromInequality(cmp, negated)
	}
}

// unwrapInequality reports whether r is a ULT/SLT node, or a NOT node
// whose child is a ULT/SLT node, returning that comparison node and
// whether it was reached through the negation.
func unwrapInequality(g *graph, r *node) (cmp *node, negated bool) {
	if r.kind == Ult || r.kind == Slt {
		return r, false
	}
	if r.kind == Not {
		c := g.get(r.children[0])
		if c.kind == Ult || c.kind == Slt {
			return c, true
		}
	}
	return nil, false
}

// deriveBoundsFromInequality updates the bound rectangles of cmp's two
// operands given that cmp evaluates to (!negated): e.g. cmp = a<b,
// negated=false means a<b currently holds; negated=true means a>=b
// holds (the root is NOT(a<b) and is itself satisfied).
func (e *Engine) deriveBoundsFromInequality(cmp *node, negated bool) {
	a := e.g.get(cmp.children[0])
	b := e.g.get(cmp.children[1])
	w := a.assignment.Width()
	signed := cmp.kind == Slt

	// a < b  =>  a <= b-1, b >= a+1
	// a >= b =>  a >= b,   b <= a
	var aLo, aHi, bLo, bHi *BitVector
	if !negated {
		aMax := b.assignment.Sub(NewBitVector(1, w))
		bMin := a.assignment.Add(NewBitVector(1, w))
		aHi, bLo = &aMax, &bMin
	} else {
		aMin := b.assignment
		bMax := a.assignment
		aLo, bHi = &aMin, &bMax
	}
	e.mergeBound(a, signed, aLo, aHi)
	e.mergeBound(b, signed, bLo, bHi)
}

// mergeBound intersects a newly-derived [lo,hi] (either may be nil,
// meaning unbounded on that side) into n's existing bound rectangle.
func (e *Engine) mergeBound(n *node, signed bool, lo, hi *BitVector) {
	if n.bounds == nil {
		n.bounds = &bounds{}
	}
	if signed {
		n.bounds.MinS = tighterLo(n.bounds.MinS, lo, true)
		n.bounds.MaxS = tighterHi(n.bounds.MaxS, hi, true)
	} else {
		n.bounds.MinU = tighterLo(n.bounds.MinU, lo, false)
		n.bounds.MaxU = tighterHi(n.bounds.MaxU, hi, false)
	}
}

func tighterLo(cur, new_ *BitVector, signed bool) *BitVector {
	if new_ == nil {
		return cur
	}
	if cur == nil {
		return new_
	}
	if signed {
		if cur.Slt(*new_) {
			return new_
		}
		return cur
	}
	if cur.Ult(*new_) {
		return new_
	}
	return cur
}

func tighterHi(cur, new_ *BitVector, signed bool) *BitVector {
	if new_ == nil {
		return cur
	}
	if cur == nil {
		return new_
	}
	if signed {
		if new_.Slt(*cur) {
			return new_
		}
		return cur
	}
	if new_.Ult(*cur) {
		return new_
	}
	return cur
}

// rootOrder returns the registered root ids in ascending order, the
// same deterministic order the driver iterates roots in.
func (e *Engine) rootOrder() []uint64 {
	ids := make([]uint64, 0, e.roots.Len())
	it := e.roots.Iterator()
	for !it.Done() {
		k, _ := it.Next()
		ids = append(ids, k.(uint64))
	}
	return ids
}

// unsignedBoundRange returns the node's unsigned bound range, if any.
func unsignedBoundRange(n *node) (lo, hi *BitVector) {
	if n.bounds == nil {
		return nil, nil
	}
	return n.bounds.MinU, n.bounds.MaxU
}

// signedBoundRangeFlipped returns the node's signed bound range,
// sign-bit-flipped into the same unsigned-pattern space ultIC/ultRange
// operate in after flipSignBitDomain/flipSignBit (see
// propagate_compare.go).
func signedBoundRangeFlipped(n *node) (lo, hi *BitVector) {
	if n.bounds == nil || (n.bounds.MinS == nil && n.bounds.MaxS == nil) {
		return nil, nil
	}
	if n.bounds.MinS != nil {
		v := flipSignBit(*n.bounds.MinS)
		lo = &v
	}
	if n.bounds.MaxS != nil {
		v := flipSignBit(*n.bounds.MaxS)
		hi = &v
	}
	return lo, hi
}

// narrowRange intersects [lo,hi] with an optional bound [bLo,bHi],
// falling back to the original range if the intersection would be
// empty (the caller already knows a witness exists somewhere in
// [lo,hi]; bounds are a search optimization, not a new constraint).
func narrowRange(lo, hi BitVector, bLo, bHi *BitVector) (BitVector, BitVector) {
	nLo, nHi := lo, hi
	if bLo != nil && bLo.Ugt(nLo) {
		nLo = *bLo
	}
	if bHi != nil && bHi.Ult(nHi) {
		nHi = *bHi
	}
	if nLo.Ugt(nHi) {
		return lo, hi
	}
	return nLo, nHi
}

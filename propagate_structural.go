package bvls

// CONCAT, EXTRACT, SEXT, ITE propagators.

func registerStructuralPropagators() {
	register(Concat, propagator{
		eval:            evalConcat,
		isInvertible:    icConcat,
		isConsistent:    ccConcat,
		inverseValue:    invConcat,
		consistentValue: consistentConcat,
	})
	register(Extract, propagator{
		eval:            evalExtract,
		isInvertible:    icExtract,
		isConsistent:    ccExtract,
		inverseValue:    invExtract,
		consistentValue: invExtract,
	})
	register(Sext, propagator{
		eval:            evalSext,
		isInvertible:    icSext,
		isConsistent:    ccSext,
		inverseValue:    invSext,
		consistentValue: invSext,
	})
	register(Ite, propagator{
		eval:            evalIte,
		isInvertible:    icIte,
		isConsistent:    ccTrue,
		inverseValue:    invIte,
		consistentValue: consistentIte,
	})
}

func evalConcat(n *node, ch []BitVector) BitVector { return ch[0].Concat(ch[1]) }

func evalExtract(n *node, ch []BitVector) BitVector {
	return ch[0].Extract(n.extractHi, n.extractLo)
}

func evalSext(n *node, ch []BitVector) BitVector { return ch[0].SExt(n.sextN) }

func evalIte(n *node, ch []BitVector) BitVector {
	if ch[0].IsOne() {
		return ch[1]
	}
	return ch[2]
}

// --- CONCAT ---

func icConcat(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := t.Width()
	sw := s.Width()
	if pos == 0 { // x is MSB, s is LSB
		if !t.Extract(sw-1, 0).Eq(s) {
			return false
		}
		return d.Contains(t.Extract(w-1, sw))
	}
	// x is LSB, s is MSB
	xw := d.Width()
	if !t.Extract(w-1, w-sw).Eq(s) {
		return false
	}
	return d.Contains(t.Extract(xw-1, 0))
}

func invConcat(e *Engine, n *node, t BitVector, pos int) BitVector {
	w := t.Width()
	d := e.childDomain(n, pos)
	if pos == 0 {
		sw := e.sibling(n, pos).assignment.Width()
		return t.Extract(w-1, sw)
	}
	xw := d.Width()
	return t.Extract(xw-1, 0)
}

func ccConcat(e *Engine, n *node, t BitVector, pos int) bool {
	return icConcat(e, n, t, pos, false)
}

func consistentConcat(e *Engine, n *node, t BitVector, pos int) BitVector {
	return invConcat(e, n, t, pos)
}

// --- EXTRACT ---

func icExtract(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	d := e.childDomain(n, pos)
	_, ok := extractWitness(e.rng, d, n.extractHi, n.extractLo, t)
	return ok
}

func invExtract(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := e.childDomain(n, pos)
	v, ok := extractWitness(e.rng, d, n.extractHi, n.extractLo, t)
	assert(ok, "invExtract: called without a satisfied is_invertible")
	if ok {
		return v
	}
	return d.Random(e.rng)
}

func ccExtract(e *Engine, n *node, t BitVector, pos int) bool {
	return icExtract(e, n, t, pos, false)
}

// extractWitness reconstructs a full-width value of d's width whose
// [hi:lo] slice equals t, drawing the bits outside [hi:lo] from d's own
// domain independently (spec's "reconstruct the full-width value by
// drawing the left/right don't-care slice domains independently").
func extractWitness(rng *RNG, d Domain, hi, lo uint32, t BitVector) (BitVector, bool) {
	w := d.Width()
	tExt := t.ZExt(w - t.Width())
	shifted := tExt.Shl(NewBitVector(uint64(lo), w))
	sliceMask := mask(hi-lo+1) << lo
	outsideMask := ^sliceMask & mask(w)
	fixed := Domain{lo: shifted, hi: NewBitVector(shifted.value|outsideMask, w)}
	combined := d.IntersectFixedBits(fixed)
	if !combined.IsValid() {
		return BitVector{}, false
	}
	return combined.Random(rng), true
}

// --- SEXT ---

func icSext(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	d := e.childDomain(n, pos)
	origWidth := d.Width()
	top := t.Extract(t.Width()-1, origWidth-1)
	if !top.IsZero() && !top.IsOnes() {
		return false
	}
	return d.Contains(t.Extract(origWidth-1, 0))
}

func invSext(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := e.childDomain(n, pos)
	origWidth := d.Width()
	return t.Extract(origWidth-1, 0)
}

func ccSext(e *Engine, n *node, t BitVector, pos int) bool {
	return icSext(e, n, t, pos, false)
}

// --- ITE ---

func icIte(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	switch pos {
	case 0:
		d := e.childDomain(n, pos)
		s0 := e.g.get(n.children[1]).assignment
		s1 := e.g.get(n.children[2]).assignment
		if !d.IsFixed() {
			return s0.Eq(t) || s1.Eq(t)
		}
		if d.Lo().IsOne() {
			return s0.Eq(t)
		}
		return s1.Eq(t)
	case 1:
		cond := e.g.get(n.children[0]).assignment
		return cond.IsOne() && e.childDomain(n, pos).Contains(t)
	default: // 2
		cond := e.g.get(n.children[0]).assignment
		return cond.IsZero() && e.childDomain(n, pos).Contains(t)
	}
}

func invIte(e *Engine, n *node, t BitVector, pos int) BitVector {
	switch pos {
	case 0:
		if d := e.childDomain(n, pos); d.IsFixed() {
			return d.Lo()
		}
		s0 := e.g.get(n.children[1]).assignment
		if s0.Eq(t) {
			return NewBitVector(1, 1)
		}
		return NewBitVector(0, 1)
	default:
		return t
	}
}

func consistentIte(e *Engine, n *node, t BitVector, pos int) BitVector {
	if pos == 0 {
		return e.childDomain(n, pos).Random(e.rng)
	}
	return t
}

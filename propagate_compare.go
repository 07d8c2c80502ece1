package bvls

// EQ, ULT, SLT propagators. SLT is implemented by flipping the sign
// bit of both operands and reusing the unsigned ULT machinery: signed
// order and unsigned order coincide once the sign bit is complemented,
// since that maps two's-complement's [min_signed, -1, 0, max_signed]
// ordering onto the plain unsigned ordering.

func registerComparePropagators() {
	register(Eq, propagator{
		eval:            evalEq,
		isInvertible:    icEq,
		isConsistent:    ccTrue,
		inverseValue:    invEq,
		consistentValue: consistentEq,
	})
	register(Ult, propagator{
		eval:            evalUlt,
		isInvertible:    icUlt,
		isConsistent:    ccUlt,
		inverseValue:    invUlt,
		consistentValue: consistentUlt,
	})
	register(Slt, propagator{
		eval:            evalSlt,
		isInvertible:    icSlt,
		isConsistent:    ccSlt,
		inverseValue:    invSlt,
		consistentValue: consistentSlt,
	})
}

func evalEq(n *node, ch []BitVector) BitVector  { return boolBV(ch[0].Eq(ch[1])) }
func evalUlt(n *node, ch []BitVector) BitVector { return boolBV(ch[0].Ult(ch[1])) }
func evalSlt(n *node, ch []BitVector) BitVector { return boolBV(ch[0].Slt(ch[1])) }

// --- EQ ---

func icEq(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	if t.IsOne() {
		return d.Contains(s)
	}
	return !(d.IsFixed() && d.Lo().Eq(s))
}

func invEq(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	if t.IsOne() {
		return s
	}
	for i := 0; i < 64; i++ {
		v := d.Random(e.rng)
		if !v.Eq(s) {
			return v
		}
	}
	return d.Lo()
}

func consistentEq(e *Engine, n *node, t BitVector, pos int) BitVector {
	return e.childDomain(n, pos).Random(e.rng)
}

// --- ULT ---

func icUlt(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	return ultIC(e.childDomain(n, pos), e.sibling(n, pos).assignment, t, pos)
}

func invUlt(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := e.childDomain(n, pos)
	s := e.sibling(n, pos).assignment
	bLo, bHi := unsignedBoundRange(e.child(n, pos))
	lo, hi := ultRange(d, s, t, pos)
	lo, hi = narrowRange(lo, hi, bLo, bHi)
	if v, ok := e.tryConcatSextNarrow(e.child(n, pos), lo, hi, false); ok {
		return v
	}
	if v, ok := d.RandomInRange(e.rng, lo, hi); ok {
		return v
	}
	return d.Random(e.rng)
}

func ccUlt(e *Engine, n *node, t BitVector, pos int) bool {
	return ultCC(e.childDomain(n, pos), t, pos)
}

func consistentUlt(e *Engine, n *node, t BitVector, pos int) BitVector {
	return ultConsistent(e.rng, e.childDomain(n, pos), t, pos)
}

func ultIC(d Domain, s, t BitVector, pos int) bool {
	w := d.Width()
	if pos == 0 {
		if t.IsOne() {
			return !s.IsZero() && d.Lo().Ult(s)
		}
		return d.Hi().Ugte(s)
	}
	if t.IsOne() {
		return !s.IsOnes() && d.Hi().Ugt(s)
	}
	_ = w
	return d.Lo().Ulte(s)
}

// ultRange returns the legal [lo,hi] range for x in x<s or s<x (pos=0
// or pos=1 respectively), given that the IC for pos already holds.
func ultRange(d Domain, s, t BitVector, pos int) (lo, hi BitVector) {
	w := d.Width()
	if pos == 0 {
		if t.IsOne() {
			return d.Lo(), s.Sub(NewBitVector(1, w))
		}
		return s, d.Hi()
	}
	if t.IsOne() {
		return s.Add(NewBitVector(1, w)), d.Hi()
	}
	return d.Lo(), s
}

// tryConcatSextNarrow implements spec §4.4's "special bounds
// optimization for ULT/SLT": when x is itself a CONCAT or SEXT node,
// try to land in [lo,hi] by changing only one of its sub-operands
// (holding the other at its current assignment), which is a much
// smaller search than drawing a fresh full-width value from x's own
// domain. flip indicates lo/hi are expressed in sign-bit-flipped space
// (the SLT caller); candidates are still built and returned in
// original space, matching what the caller (invUlt/invSlt) expects to
// do with the result.
func (e *Engine) tryConcatSextNarrow(x *node, lo, hi BitVector, flip bool) (BitVector, bool) {
	if !e.cfg.OptConcatSext {
		return BitVector{}, false
	}
	inRange := func(cand BitVector) bool {
		v := cand
		if flip {
			v = flipSignBit(v)
		}
		return v.Ugte(lo) && v.Ulte(hi)
	}
	const attempts = 32
	switch x.kind {
	case Concat:
		msb := e.g.get(x.children[0])
		lsb := e.g.get(x.children[1])
		for i := 0; i < attempts; i++ {
			if cand := msb.assignment.Concat(lsb.domain.Random(e.rng)); inRange(cand) {
				return cand, true
			}
		}
		for i := 0; i < attempts; i++ {
			if cand := msb.domain.Random(e.rng).Concat(lsb.assignment); inRange(cand) {
				return cand, true
			}
		}
	case Sext:
		orig := e.g.get(x.children[0])
		for i := 0; i < attempts; i++ {
			if cand := orig.domain.Random(e.rng).SExt(x.sextN); inRange(cand) {
				return cand, true
			}
		}
	}
	return BitVector{}, false
}

func ultCC(d Domain, t BitVector, pos int) bool {
	if pos == 0 {
		return !t.IsOne() || !d.Lo().IsOnes()
	}
	return !t.IsOne() || !d.Hi().IsZero()
}

func ultConsistent(rng *RNG, d Domain, t BitVector, pos int) BitVector {
	w := d.Width()
	if pos == 0 {
		if t.IsOne() {
			if v, ok := d.RandomInRange(rng, d.Lo(), Ones(w).Sub(NewBitVector(1, w))); ok {
				return v
			}
		}
		return d.Random(rng)
	}
	if t.IsOne() {
		if v, ok := d.RandomInRange(rng, NewBitVector(1, w), d.Hi()); ok {
			return v
		}
	}
	return d.Random(rng)
}

// --- SLT ---

// flipSignBit flips the sign bit (MSB) of a concrete value.
func flipSignBit(v BitVector) BitVector { return v.Xor(MinSigned(v.Width())) }

// flipSignBitDomain flips the sign bit of every value in d's domain,
// preserving don't-care positions (only a bit that is fixed in d has
// its fixed value toggled; a don't-care bit stays don't-care).
func flipSignBitDomain(d Domain) Domain {
	w := d.Width()
	toggle := d.FixedBitMask().And(MinSigned(w))
	return Domain{lo: d.lo.Xor(toggle), hi: d.hi.Xor(toggle)}
}

func icSlt(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	d := flipSignBitDomain(e.childDomain(n, pos))
	s := flipSignBit(e.sibling(n, pos).assignment)
	return ultIC(d, s, t, pos)
}

func invSlt(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := flipSignBitDomain(e.childDomain(n, pos))
	s := flipSignBit(e.sibling(n, pos).assignment)
	bLo, bHi := signedBoundRangeFlipped(e.child(n, pos))
	lo, hi := ultRange(d, s, t, pos)
	lo, hi = narrowRange(lo, hi, bLo, bHi)
	if v, ok := e.tryConcatSextNarrow(e.child(n, pos), lo, hi, true); ok {
		return v // already in original space
	}
	if v, ok := d.RandomInRange(e.rng, lo, hi); ok {
		return flipSignBit(v)
	}
	return flipSignBit(d.Random(e.rng))
}

func ccSlt(e *Engine, n *node, t BitVector, pos int) bool {
	d := flipSignBitDomain(e.childDomain(n, pos))
	return ultCC(d, t, pos)
}

func consistentSlt(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := flipSignBitDomain(e.childDomain(n, pos))
	v := ultConsistent(e.rng, d, t, pos)
	return flipSignBit(v)
}

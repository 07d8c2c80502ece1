package bvls

// AND, XOR, NOT, SHL, SHR (logical), ASHR propagators.

func registerBitwisePropagators() {
	register(And, propagator{
		eval:            evalAnd,
		isInvertible:    icAnd,
		isConsistent:    ccAnd,
		inverseValue:    invAnd,
		consistentValue: consistentAnd,
	})
	register(Xor, propagator{
		eval:            evalXor,
		isInvertible:    icXor,
		isConsistent:    ccTrue,
		inverseValue:    invXor,
		consistentValue: randomDomainValue,
	})
	register(Not, propagator{
		eval:            evalNot,
		isInvertible:    icNot,
		isConsistent:    ccNot,
		inverseValue:    invNot,
		consistentValue: invNot,
	})
	register(Shl, propagator{
		eval:            evalShl,
		isInvertible:    icShl,
		isConsistent:    ccShl,
		inverseValue:    invShl,
		consistentValue: consistentShl,
	})
	register(Shr, propagator{
		eval:            evalShr,
		isInvertible:    icShr,
		isConsistent:    ccShr,
		inverseValue:    invShr,
		consistentValue: consistentShr,
	})
	register(Ashr, propagator{
		eval:            evalAshr,
		isInvertible:    icAshr,
		isConsistent:    ccAshr,
		inverseValue:    invAshr,
		consistentValue: consistentAshr,
	})
}

func evalAnd(n *node, ch []BitVector) BitVector  { return ch[0].And(ch[1]) }
func evalXor(n *node, ch []BitVector) BitVector  { return ch[0].Xor(ch[1]) }
func evalNot(n *node, ch []BitVector) BitVector  { return ch[0].Not() }
func evalShl(n *node, ch []BitVector) BitVector  { return ch[0].Shl(ch[1]) }
func evalShr(n *node, ch []BitVector) BitVector  { return ch[0].LShr(ch[1]) }
func evalAshr(n *node, ch []BitVector) BitVector { return ch[0].AShr(ch[1]) }

// --- AND ---

func icAnd(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	m := d.FixedBitMask()
	if !t.And(s).Eq(t) {
		return false
	}
	return s.And(d.Hi()).And(m).Eq(t.And(m))
}

func invAnd(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	m := d.FixedBitMask()
	free := e.rng.randomBits(d.Width())
	v := t.And(s).Or(free.And(s.Not()))
	v = v.And(m.Not()).Or(d.Lo().And(m))
	return v
}

func ccAnd(e *Engine, n *node, t BitVector, pos int) bool {
	d := e.childDomain(n, pos)
	return t.And(d.Hi()).Eq(t)
}

func consistentAnd(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := e.childDomain(n, pos)
	free := e.rng.randomBits(d.Width())
	m := d.FixedBitMask()
	v := t.Or(free.And(t.Not()))
	v = v.And(m.Not()).Or(d.Lo().And(m))
	return v
}

// --- XOR ---

func icXor(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	return e.childDomain(n, pos).Contains(s.Xor(t))
}

func invXor(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	return s.Xor(t)
}

// --- NOT ---

func icNot(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	return e.childDomain(n, pos).Contains(t.Not())
}

func invNot(e *Engine, n *node, t BitVector, pos int) BitVector {
	return t.Not()
}

func ccNot(e *Engine, n *node, t BitVector, pos int) bool {
	return icNot(e, n, t, pos, false)
}

// --- SHL ---

func icShl(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 1 {
		// s << x = t
		ctzS, ctzT := s.CountTrailingZeros(), t.CountTrailingZeros()
		if ctzS > ctzT {
			return false
		}
		if t.IsZero() {
			// any shift amount >= w - ctzS works; that's representable
			// whenever the domain permits some sufficiently large shift.
			return d.Hi().Ugte(NewBitVector(uint64(w-ctzS), w)) || d.Contains(NewBitVector(uint64(w-ctzS), w))
		}
		shift := NewBitVector(uint64(ctzT-ctzS), w)
		if !s.Shl(shift).Eq(t) {
			return false
		}
		return d.Contains(shift)
	}
	// x << s = t
	if s.value >= uint64(w) {
		return t.IsZero() && e.childDomain(n, pos).IsValid()
	}
	back := t.LShr(s)
	if !back.Shl(s).Eq(t) {
		return false
	}
	return d.Contains(back) || shlFixedBitsOk(d, s, t)
}

// shlFixedBitsOk checks mfb(x<<s, t) against x's fixed bits directly,
// used when the naive inverse back = t>>s is not itself in x's domain
// because of fixed-bit constraints on the high s bits of x (which are
// shifted out and thus unconstrained by t).
func shlFixedBitsOk(d Domain, s, t BitVector) bool {
	w := d.Width()
	if s.value >= uint64(w) {
		return t.IsZero()
	}
	shiftedLo := d.Lo().Shl(s)
	shiftedHi := d.Hi().Shl(s)
	return Domain{lo: shiftedLo, hi: shiftedHi}.mfb(t)
}

func invShl(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 1 {
		if t.IsZero() {
			// the IC guarantees d.Hi() >= w - ctz(s), a shift that
			// moves every set bit of s out
			return d.Hi()
		}
		ctzS, ctzT := s.CountTrailingZeros(), t.CountTrailingZeros()
		return NewBitVector(uint64(ctzT-ctzS), w)
	}
	if s.value >= uint64(w) {
		return d.Random(e.rng)
	}
	back := t.LShr(s)
	// Reconstruct the shifted-out high s bits by drawing random values
	// for the domain's own free bits at those positions, per spec's
	// "recover the shifted-in don't-care bits" construction.
	m := d.FixedBitMask()
	free := e.rng.randomBits(w)
	highMask := mask(w) &^ (mask(w) >> s.value)
	v := back.Or(free.And(mask64ToBV(highMask, w)))
	return v.And(m.Not()).Or(d.Lo().And(m))
}

func mask64ToBV(m uint64, w uint32) BitVector { return NewBitVector(m, w) }

func ccShl(e *Engine, n *node, t BitVector, pos int) bool {
	d := e.childDomain(n, pos)
	if pos == 1 {
		return t.IsZero() || d.Hi().value != 0
	}
	ctzT := t.CountTrailingZeros()
	for y := uint32(0); y <= ctzT; y++ {
		if d.Contains(t.LShr(NewBitVector(uint64(y), d.Width()))) {
			return true
		}
	}
	return t.IsZero()
}

func consistentShl(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := e.childDomain(n, pos)
	if pos == 1 {
		return d.Random(e.rng)
	}
	ctzT := t.CountTrailingZeros()
	for y := uint32(0); y <= ctzT; y++ {
		cand := t.LShr(NewBitVector(uint64(y), d.Width()))
		if d.Contains(cand) {
			return cand
		}
	}
	return d.Random(e.rng)
}

// --- SHR (logical) ---

func icShr(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 1 {
		cloS, cloT := s.CountLeadingZeros(), t.CountLeadingZeros()
		if cloS > cloT {
			return false
		}
		if t.IsZero() {
			// needs a shift of at least w - clz(s)
			return d.Hi().Ugte(NewBitVector(uint64(w-cloS), w))
		}
		shift := NewBitVector(uint64(cloT-cloS), w)
		if !s.LShr(shift).Eq(t) {
			return false
		}
		return d.Contains(shift)
	}
	if s.value >= uint64(w) {
		return t.IsZero()
	}
	back := t.Shl(s)
	if back.LShr(s).Eq(t) && d.Contains(back) {
		return true
	}
	shiftedLo := d.Lo().LShr(s)
	shiftedHi := d.Hi().LShr(s)
	return Domain{lo: shiftedLo, hi: shiftedHi}.mfb(t)
}

func invShr(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 1 {
		if t.IsZero() {
			return d.Hi() // the IC guarantees d.Hi() >= w - clz(s)
		}
		cloS, cloT := s.CountLeadingZeros(), t.CountLeadingZeros()
		return NewBitVector(uint64(cloT-cloS), w)
	}
	if s.value >= uint64(w) {
		return d.Random(e.rng)
	}
	back := t.Shl(s)
	if d.Contains(back) {
		return back
	}
	// the low s bits of x are shifted out: draw them from the domain
	m := d.FixedBitMask()
	free := e.rng.randomBits(w)
	v := back.Or(free.And(NewBitVector(mask(uint32(s.value)), w)))
	return v.And(m.Not()).Or(d.Lo().And(m))
}

func ccShr(e *Engine, n *node, t BitVector, pos int) bool {
	d := e.childDomain(n, pos)
	if pos == 1 {
		return t.IsZero() || d.Hi().value != 0
	}
	cloT := t.CountLeadingZeros()
	for y := uint32(0); y <= cloT; y++ {
		if d.Contains(t.Shl(NewBitVector(uint64(y), d.Width()))) {
			return true
		}
	}
	return t.IsZero()
}

func consistentShr(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := e.childDomain(n, pos)
	if pos == 1 {
		return d.Random(e.rng)
	}
	cloT := t.CountLeadingZeros()
	for y := uint32(0); y <= cloT; y++ {
		cand := t.Shl(NewBitVector(uint64(y), d.Width()))
		if d.Contains(cand) {
			return cand
		}
	}
	return d.Random(e.rng)
}

// --- ASHR ---

func icAshr(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 1 {
		if s.IsNegative() {
			cloS, cloT := s.CountLeadingOnes(), t.CountLeadingOnes()
			if cloS > cloT {
				return false
			}
			shift := NewBitVector(uint64(cloT-cloS), w)
			return s.AShr(shift).Eq(t) && d.Contains(shift)
		}
		cloS, cloT := s.CountLeadingZeros(), t.CountLeadingZeros()
		if cloS > cloT {
			return false
		}
		shift := NewBitVector(uint64(cloT-cloS), w)
		return s.AShr(shift).Eq(t) && d.Contains(shift)
	}
	if s.value >= uint64(w) {
		// x >>a s is x's sign fill: t=0 needs a member with sign bit 0
		// (d.Lo() is one if any is), t=ones a member with sign bit 1
		// (d.Hi() is one if any is).
		if t.IsZero() {
			return !d.Lo().IsNegative()
		}
		return t.IsOnes() && d.Hi().IsNegative()
	}
	back := t.Shl(s)
	return back.AShr(s).Eq(t) && d.Contains(back)
}

func invAshr(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 1 {
		if s.IsNegative() {
			cloS, cloT := s.CountLeadingOnes(), t.CountLeadingOnes()
			return NewBitVector(uint64(cloT-cloS), w)
		}
		cloS, cloT := s.CountLeadingZeros(), t.CountLeadingZeros()
		return NewBitVector(uint64(cloT-cloS), w)
	}
	if s.value >= uint64(w) {
		if t.IsZero() {
			return d.Lo()
		}
		return d.Hi()
	}
	back := t.Shl(s)
	if d.Contains(back) {
		return back
	}
	m := d.FixedBitMask()
	free := e.rng.randomBits(w)
	highMask := mask(w) &^ (mask(w) >> s.value)
	v := back.Or(free.And(NewBitVector(highMask, w)))
	return v.And(m.Not()).Or(d.Lo().And(m))
}

func ccAshr(e *Engine, n *node, t BitVector, pos int) bool {
	return e.childDomain(n, pos).IsValid()
}

func consistentAshr(e *Engine, n *node, t BitVector, pos int) BitVector {
	return e.childDomain(n, pos).Random(e.rng)
}

package bvls

// ADD, MUL, UDIV, UREM propagators.

func registerArithPropagators() {
	register(Add, propagator{
		eval:            evalAdd,
		isInvertible:    icAdd,
		isConsistent:    ccTrue,
		inverseValue:    invAdd,
		consistentValue: randomDomainValue,
	})
	register(Mul, propagator{
		eval:            evalMul,
		isInvertible:    icMul,
		isConsistent:    ccMul,
		inverseValue:    invMul,
		consistentValue: consistentMul,
	})
	register(Udiv, propagator{
		eval:            evalUdiv,
		isInvertible:    icUdiv,
		isConsistent:    ccUdiv,
		inverseValue:    invUdiv,
		consistentValue: consistentUdiv,
	})
	register(Urem, propagator{
		eval:            evalUrem,
		isInvertible:    icUrem,
		isConsistent:    ccUrem,
		inverseValue:    invUrem,
		consistentValue: consistentUrem,
	})
}

func evalAdd(n *node, ch []BitVector) BitVector { return ch[0].Add(ch[1]) }
func evalMul(n *node, ch []BitVector) BitVector { return ch[0].Mul(ch[1]) }
func evalUdiv(n *node, ch []BitVector) BitVector { return ch[0].UDiv(ch[1]) }
func evalUrem(n *node, ch []BitVector) BitVector { return ch[0].URem(ch[1]) }

// ccTrue is shared by every operator whose consistency condition is
// trivially true (ADD, XOR, EQ, ITE, ...): any value that the child's
// own domain already permits is a valid witness.
func ccTrue(e *Engine, n *node, t BitVector, pos int) bool { return true }

// randomDomainValue is the shared consistent_value fallback for
// operators whose CC is trivially true: draw a random member of the
// operand's own domain, ignoring the target entirely.
func randomDomainValue(e *Engine, n *node, t BitVector, pos int) BitVector {
	return e.childDomain(n, pos).Random(e.rng)
}

// --- ADD ---

func icAdd(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	return e.childDomain(n, pos).Contains(t.Sub(s))
}

func invAdd(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	return t.Sub(s)
}

// --- MUL ---

func icMul(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	_, ok := mulWitness(e, n, pos, s, t)
	return ok
}

func invMul(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	v, ok := mulWitness(e, n, pos, s, t)
	assert(ok, "invMul: inverse_value called without a prior successful is_invertible")
	return v
}

// mulWitness constructs a domain-respecting x with x*s = t, following
// spec's "align by ctz(s), multiply by modular inverse of odd part"
// construction. Returns ok=false if s=0 with t!=0, if t has a set bit
// below ctz(s), or if the resulting low-bit-fixed domain is empty.
func mulWitness(e *Engine, n *node, pos int, s, t BitVector) (BitVector, bool) {
	w := s.Width()
	d := e.childDomain(n, pos)
	if s.IsZero() {
		if !t.IsZero() {
			return BitVector{}, false
		}
		if !d.IsValid() {
			return BitVector{}, false
		}
		return d.Random(e.rng), true
	}
	c := s.CountTrailingZeros()
	if c > 0 && t.value&mask(c) != 0 {
		return BitVector{}, false
	}
	wc := w - c
	sOdd := s.value >> c
	inv, ok := NewBitVector(sOdd, wc).ModInverse()
	if !ok {
		return BitVector{}, false
	}
	tHigh := NewBitVector((t.value>>c)&mask(wc), wc)
	partialLow := tHigh.Mul(inv).value & mask(wc)

	// x's low wc bits are fixed to partialLow; its high c bits are
	// multiplied out by 2^c and stay free.
	fixed := Domain{lo: NewBitVector(partialLow, w), hi: NewBitVector(partialLow|(mask(w)&^mask(wc)), w)}
	combined := d.IntersectFixedBits(fixed)
	if !combined.IsValid() {
		return BitVector{}, false
	}
	return combined.Random(e.rng), true
}

func ccMul(e *Engine, n *node, t BitVector, pos int) bool {
	// Ignoring the sibling, some value of x can always be paired with
	// an appropriate sibling value to reach any target t: x=0 needs
	// t=0, and any nonzero x can reach any t via an appropriate
	// sibling multiplier whenever the domain is non-empty.
	return e.childDomain(n, pos).IsValid()
}

func consistentMul(e *Engine, n *node, t BitVector, pos int) BitVector {
	d := e.childDomain(n, pos)
	if t.IsZero() {
		if v, ok := d.RandomInRange(e.rng, Zero(d.Width()), Zero(d.Width())); ok {
			return v
		}
	}
	return d.Random(e.rng)
}

// --- UDIV ---

func icUdiv(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 0 {
		// x/s = t: witness candidates are x in [s*t, s*t + s - 1] (no
		// overflow) intersected with the domain.
		if s.IsZero() {
			return t.IsOnes() && d.IsValid()
		}
		if s.UMulOverflow(t) {
			return false
		}
		lo := s.Mul(t)
		hi := lo
		if !t.IsOnes() {
			rem := s.Sub(NewBitVector(1, w))
			if lo.UAddOverflow(rem) {
				hi = Ones(w)
			} else {
				hi = lo.Add(rem)
			}
		}
		_, ok := d.RandomInRange(e.rng, lo, hi)
		return ok
	}
	// s/x = t. x=0 always yields the all-ones value by convention
	// (§4.1), so that's always a witness when the domain permits it;
	// x=1 is one too when s is all-ones.
	if t.IsOnes() {
		return d.Contains(Zero(w)) || (s.IsOnes() && d.Contains(NewBitVector(1, w)))
	}
	if t.IsZero() {
		return d.Hi().Ugt(s)
	}
	q := s.UDiv(t)
	return !q.IsZero() && s.UDiv(q).Eq(t) && d.Contains(q)
}

func invUdiv(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 0 {
		if s.IsZero() {
			return d.Random(e.rng)
		}
		lo := s.Mul(t)
		hi := lo
		if !t.IsOnes() {
			rem := s.Sub(NewBitVector(1, w))
			if lo.UAddOverflow(rem) {
				hi = Ones(w)
			} else {
				hi = lo.Add(rem)
			}
		}
		if v, ok := d.RandomInRange(e.rng, lo, hi); ok {
			return v
		}
		return d.Random(e.rng)
	}
	if t.IsOnes() {
		if d.Contains(Zero(w)) {
			return Zero(w)
		}
		return NewBitVector(1, w)
	}
	if t.IsZero() {
		if v, ok := d.RandomInRange(e.rng, s.Add(NewBitVector(1, w)), Ones(w)); ok {
			return v
		}
		return d.Random(e.rng)
	}
	return s.UDiv(t)
}

func ccUdiv(e *Engine, n *node, t BitVector, pos int) bool {
	d := e.childDomain(n, pos)
	if pos == 0 {
		return d.Hi().Ugte(t) || t.IsZero()
	}
	if t.IsZero() {
		return !d.Hi().IsZero() // need a nonzero divisor available
	}
	return true
}

func consistentUdiv(e *Engine, n *node, t BitVector, pos int) BitVector {
	return e.childDomain(n, pos).Random(e.rng)
}

// --- UREM ---

func icUrem(e *Engine, n *node, t BitVector, pos int, isEssentialCheck bool) bool {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 0 {
		// x%s = t: need ~(-s) >= t, i.e. s-1 >= t when s!=0, and a
		// witness x = s*y + t for some y with no overflow.
		if s.IsZero() {
			return d.Contains(t)
		}
		if t.Ugte(s) {
			return false
		}
		if s.Eq(NewBitVector(1, w)) {
			return t.IsZero()
		}
		maxY := Ones(w).Sub(t).UDiv(s)
		for y := uint64(0); y <= maxY.value && y < 4096; y++ {
			cand := s.Mul(NewBitVector(y, w))
			if cand.UAddOverflow(t) {
				break
			}
			cand = cand.Add(t)
			if d.Contains(cand) {
				return true
			}
		}
		return false
	}
	// s%x = t
	if s.Eq(t) && d.Contains(Zero(w)) {
		return true // x = 0: s % 0 = s by the URem-by-zero convention, = t
	}
	if s.Ult(t) {
		return false // s % x never exceeds s
	}
	diff := s.Sub(t)
	for y := t.value + 1; y <= mask(w) && y-t.value <= 4096; y++ {
		yy := NewBitVector(y, w)
		if diff.URem(yy).IsZero() && d.Contains(yy) {
			return true
		}
	}
	return false
}

func invUrem(e *Engine, n *node, t BitVector, pos int) BitVector {
	s := e.sibling(n, pos).assignment
	d := e.childDomain(n, pos)
	w := d.Width()
	if pos == 0 {
		if s.IsZero() {
			return t
		}
		maxY := Ones(w).Sub(t).UDiv(s)
		for y := uint64(0); y <= maxY.value && y < 4096; y++ {
			cand := s.Mul(NewBitVector(y, w))
			if cand.UAddOverflow(t) {
				break
			}
			cand = cand.Add(t)
			if d.Contains(cand) {
				return cand
			}
		}
		return d.Random(e.rng)
	}
	if s.Eq(t) && d.Contains(Zero(w)) {
		return Zero(w)
	}
	diff := s.Sub(t)
	for y := t.value + 1; y <= mask(w) && y-t.value <= 4096; y++ {
		yy := NewBitVector(y, w)
		if diff.URem(yy).IsZero() && d.Contains(yy) {
			return yy
		}
	}
	return d.Random(e.rng)
}

func ccUrem(e *Engine, n *node, t BitVector, pos int) bool {
	d := e.childDomain(n, pos)
	if pos == 0 {
		return d.Contains(Zero(d.Width())) || d.Hi().Ugt(t)
	}
	return d.Contains(Zero(d.Width())) || d.Hi().Ugt(t)
}

func consistentUrem(e *Engine, n *node, t BitVector, pos int) BitVector {
	return e.childDomain(n, pos).Random(e.rng)
}

package bvls

// Domain represents a three-valued bit-string as a (lo, hi) pair of
// equal-width BitVectors: bit i is fixed to v iff lo[i] = hi[i] = v,
// and is "don't care" iff lo[i] = 0 and hi[i] = 1. A bit with lo[i] = 1
// and hi[i] = 0 is invalid (IsValid reports false).
type Domain struct {
	lo, hi BitVector
}

// NewDomain returns the domain described by (lo, hi).
func NewDomain(lo, hi BitVector) Domain {
	lo.checkWidth(hi)
	return Domain{lo: lo, hi: hi}
}

// AllX returns the fully unconstrained domain of the given width.
func AllX(width uint32) Domain {
	return Domain{lo: Zero(width), hi: Ones(width)}
}

// FromValue returns the domain that fixes every bit to v's value.
func FromValue(v BitVector) Domain {
	return Domain{lo: v, hi: v}
}

// Width returns the bit-width of the domain.
func (d Domain) Width() uint32 { return d.lo.width }

// Lo returns the domain's low endpoint.
func (d Domain) Lo() BitVector { return d.lo }

// Hi returns the domain's high endpoint.
func (d Domain) Hi() BitVector { return d.hi }

// IsValid reports whether no bit has lo=1,hi=0: ~lo | hi must be all
// ones.
func (d Domain) IsValid() bool {
	return d.lo.Not().Or(d.hi).IsOnes()
}

// IsFixed reports whether every bit is fixed (lo = hi).
func (d Domain) IsFixed() bool {
	return d.lo.Eq(d.hi)
}

// FixedBitMask returns the mask of bits that are fixed (lo[i] = hi[i]).
func (d Domain) FixedBitMask() BitVector {
	return d.lo.Xor(d.hi).Not()
}

// mfb (matches fixed bits) reports whether v is a member of d: v's
// fixed bits match d's, ignoring don't-care bits.
func (d Domain) mfb(v BitVector) bool {
	return d.lo.Or(v).Eq(v) && v.Or(d.hi).Eq(d.hi)
}

// Contains reports whether v is a member of the domain.
func (d Domain) Contains(v BitVector) bool {
	d.lo.checkWidth(v)
	return d.mfb(v)
}

// FixBit returns a copy of d with bit i fixed to value v (0 or 1, as
// the low bit of v's argument). Panics if bit i is already fixed to
// the opposite value.
func (d Domain) FixBit(i uint32, v uint64) Domain {
	assert(i < d.lo.width, "fix_bit index out of range: %d >= %d", i, d.lo.width)
	v &= 1
	bit := uint64(1) << i
	curLo := d.lo.value&bit != 0
	curHi := d.hi.value&bit != 0
	if curLo && curHi && v == 0 {
		assert(false, "fix_bit: bit %d already fixed to 1, cannot fix to 0", i)
	}
	if !curLo && !curHi && v == 1 {
		assert(false, "fix_bit: bit %d already fixed to 0, cannot fix to 1", i)
	}
	lo, hi := d.lo.value, d.hi.value
	if v == 1 {
		lo |= bit
		hi |= bit
	} else {
		lo &^= bit
		hi &^= bit
	}
	return Domain{lo: NewBitVector(lo, d.lo.width), hi: NewBitVector(hi, d.hi.width)}
}

// IntersectFixedBits returns the domain obtained by additionally fixing
// every bit that is fixed in other, intersected with d. The result is
// invalid (IsValid reports false) if the intersection is empty, i.e. d
// and other disagree on some fixed bit.
func (d Domain) IntersectFixedBits(other Domain) Domain {
	d.lo.checkWidth(other.lo)
	lo := d.lo.Or(other.lo)
	hi := d.hi.And(other.hi)
	return Domain{lo: lo, hi: hi}
}

// Random draws a uniformly random value within the domain, fixing
// don't-care bits by coin flip through rng.
func (d Domain) Random(rng *RNG) BitVector {
	w := d.lo.width
	free := rng.randomBits(w)
	v := d.lo.Or(free.And(d.hi.Xor(d.lo)))
	return v
}

// RandomInRange draws a value within the domain that additionally lies
// in the inclusive range [lo, hi]. It first tries up to 64 uniform
// draws from the domain; if none lands in range and the range spans at
// most 2^20 steps, it scans upward from lo and returns the smallest
// member found. ok is false if no such value exists, and also when the
// range is wider than that and every draw missed. The domain is never
// enumerated exponentially.
func (d Domain) RandomInRange(rng *RNG, lo, hi BitVector) (v BitVector, ok bool) {
	d.lo.checkWidth(lo)
	d.lo.checkWidth(hi)
	if lo.Ugt(hi) {
		return BitVector{}, false
	}
	const maxAttempts = 64
	for i := 0; i < maxAttempts; i++ {
		candidate := d.Random(rng)
		if candidate.Ugte(lo) && candidate.Ulte(hi) {
			return candidate, true
		}
	}
	// Fall back to an exhaustive rejection scan bounded by the range
	// size, guarding against pathologically narrow ranges that random
	// sampling is unlikely to hit within maxAttempts.
	span := hi.value - lo.value
	if span > 1<<20 {
		return BitVector{}, false
	}
	for off := uint64(0); off <= span; off++ {
		candidate := NewBitVector(lo.value+off, d.lo.width)
		if d.Contains(candidate) {
			return candidate, true
		}
	}
	return BitVector{}, false
}

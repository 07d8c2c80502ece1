package bvls

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxWidth is the largest bit-width a BitVector can hold. Bit-vector
// terms produced by a front-end word-blaster for the quantifier-free
// theory of fixed-width machine integers essentially never exceed this;
// a wider request is a caller error (see assert in the constructors).
const MaxWidth = 64

// BitVector is an immutable fixed-width unsigned integer. All
// arithmetic is performed modulo 2^Width, except Extract (changes
// width), Concat (sums widths) and the extend operations (add bits).
// The zero value is not a valid BitVector; use NewBitVector or one of
// the Zero/Ones/UMax/UMin constructors.
type BitVector struct {
	width uint32
	value uint64
}

func mask(width uint32) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// NewBitVector returns a BitVector of the given width holding value
// truncated modulo 2^width.
func NewBitVector(value uint64, width uint32) BitVector {
	assert(width >= 1 && width <= MaxWidth, "invalid bitvector width: %d", width)
	return BitVector{width: width, value: value & mask(width)}
}

// Zero returns the all-zero value of the given width.
func Zero(width uint32) BitVector { return NewBitVector(0, width) }

// Ones returns the all-one value of the given width.
func Ones(width uint32) BitVector { return NewBitVector(mask(width), width) }

// UMin returns the minimum value of the given width (unsigned).
func UMin(width uint32) BitVector { return Zero(width) }

// UMax returns the maximum value of the given width (unsigned).
func UMax(width uint32) BitVector { return Ones(width) }

// MinSigned returns the most negative two's-complement value.
func MinSigned(width uint32) BitVector { return NewBitVector(uint64(1)<<(width-1), width) }

// MaxSigned returns the most positive two's-complement value.
func MaxSigned(width uint32) BitVector { return NewBitVector(mask(width)>>1, width) }

// FromBitString parses a string of '0'/'1' characters (MSB first) into
// a BitVector whose width is len(s).
func FromBitString(s string) BitVector {
	assert(len(s) >= 1 && uint32(len(s)) <= MaxWidth, "invalid bitstring length: %d", len(s))
	var v uint64
	for i := 0; i < len(s); i++ {
		v <<= 1
		switch s[i] {
		case '0':
		case '1':
			v |= 1
		default:
			assert(false, "invalid bitstring character %q", s[i])
		}
	}
	return NewBitVector(v, uint32(len(s)))
}

// Width returns the bit-width of v.
func (v BitVector) Width() uint32 { return v.width }

// Uint64 returns the unsigned value as a uint64.
func (v BitVector) Uint64() uint64 { return v.value }

// Int64 returns the two's-complement signed interpretation.
func (v BitVector) Int64() int64 {
	if v.width == 64 {
		return int64(v.value)
	}
	if v.value&v.signBit() != 0 {
		return int64(v.value) - (int64(1) << v.width)
	}
	return int64(v.value)
}

func (v BitVector) signBit() uint64 {
	if v.width == 0 {
		return 0
	}
	return uint64(1) << (v.width - 1)
}

// String renders the value as a fixed-width bit string, MSB first.
func (v BitVector) String() string {
	var b strings.Builder
	for i := int(v.width) - 1; i >= 0; i-- {
		if v.value&(uint64(1)<<i) != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func (v BitVector) checkWidth(other BitVector) {
	assert(v.width == other.width, "bitvector width mismatch: %d != %d", v.width, other.width)
}

// --- arithmetic ---

func (v BitVector) Add(o BitVector) BitVector { v.checkWidth(o); return NewBitVector(v.value+o.value, v.width) }
func (v BitVector) Sub(o BitVector) BitVector { v.checkWidth(o); return NewBitVector(v.value-o.value, v.width) }
func (v BitVector) Mul(o BitVector) BitVector { v.checkWidth(o); return NewBitVector(v.value*o.value, v.width) }
func (v BitVector) Neg() BitVector            { return NewBitVector(0, v.width).Sub(v) }
func (v BitVector) Not() BitVector            { return NewBitVector(^v.value, v.width) }
func (v BitVector) And(o BitVector) BitVector { v.checkWidth(o); return NewBitVector(v.value&o.value, v.width) }
func (v BitVector) Or(o BitVector) BitVector  { v.checkWidth(o); return NewBitVector(v.value|o.value, v.width) }
func (v BitVector) Xor(o BitVector) BitVector { v.checkWidth(o); return NewBitVector(v.value^o.value, v.width) }

// UDiv returns v/o; division by zero yields the all-ones value, the
// engine's internal convention (see spec §4.1).
func (v BitVector) UDiv(o BitVector) BitVector {
	v.checkWidth(o)
	if o.value == 0 {
		return Ones(v.width)
	}
	return NewBitVector(v.value/o.value, v.width)
}

// URem returns v%o; remainder by zero yields the dividend.
func (v BitVector) URem(o BitVector) BitVector {
	v.checkWidth(o)
	if o.value == 0 {
		return v
	}
	return NewBitVector(v.value%o.value, v.width)
}

// SDiv returns the signed quotient, applying the same by-zero
// convention as UDiv.
func (v BitVector) SDiv(o BitVector) BitVector {
	v.checkWidth(o)
	if o.value == 0 {
		return Ones(v.width)
	}
	vNeg, oNeg := v.IsNegative(), o.IsNegative()
	a, b := v, o
	if vNeg {
		a = v.Neg()
	}
	if oNeg {
		b = o.Neg()
	}
	q := a.UDiv(b)
	if vNeg != oNeg {
		q = q.Neg()
	}
	return q
}

// SRem returns the signed remainder, sign following the dividend, with
// the same by-zero convention as URem.
func (v BitVector) SRem(o BitVector) BitVector {
	v.checkWidth(o)
	if o.value == 0 {
		return v
	}
	vNeg, oNeg := v.IsNegative(), o.IsNegative()
	a, b := v, o
	if vNeg {
		a = v.Neg()
	}
	if oNeg {
		b = o.Neg()
	}
	r := a.URem(b)
	if vNeg {
		r = r.Neg()
	}
	return r
}

// IsNegative reports whether v's sign bit (MSB) is set.
func (v BitVector) IsNegative() bool { return v.value&v.signBit() != 0 }

// --- shifts ---

// Shl returns v shifted left by o bits. A shift amount >= width yields
// zero.
func (v BitVector) Shl(o BitVector) BitVector {
	v.checkWidth(o)
	if o.value >= uint64(v.width) {
		return Zero(v.width)
	}
	return NewBitVector(v.value<<o.value, v.width)
}

// LShr returns v logically shifted right by o bits. A shift amount >=
// width yields zero.
func (v BitVector) LShr(o BitVector) BitVector {
	v.checkWidth(o)
	if o.value >= uint64(v.width) {
		return Zero(v.width)
	}
	return NewBitVector(v.value>>o.value, v.width)
}

// AShr returns v arithmetically shifted right by o bits. A shift
// amount >= width yields the sign-filled value (all zeros or all
// ones, per v's sign bit).
func (v BitVector) AShr(o BitVector) BitVector {
	v.checkWidth(o)
	if o.value >= uint64(v.width) {
		if v.IsNegative() {
			return Ones(v.width)
		}
		return Zero(v.width)
	}
	if !v.IsNegative() {
		return v.LShr(o)
	}
	shifted := v.value >> o.value
	fill := mask(v.width) &^ (mask(v.width) >> o.value)
	return NewBitVector(shifted|fill, v.width)
}

// --- comparisons ---

func (v BitVector) Eq(o BitVector) bool  { v.checkWidth(o); return v.value == o.value }
func (v BitVector) Ult(o BitVector) bool { v.checkWidth(o); return v.value < o.value }
func (v BitVector) Ulte(o BitVector) bool { v.checkWidth(o); return v.value <= o.value }
func (v BitVector) Ugt(o BitVector) bool { return o.Ult(v) }
func (v BitVector) Ugte(o BitVector) bool { return o.Ulte(v) }
func (v BitVector) Slt(o BitVector) bool { v.checkWidth(o); return v.Int64() < o.Int64() }
func (v BitVector) Slte(o BitVector) bool { v.checkWidth(o); return v.Int64() <= o.Int64() }
func (v BitVector) Sgt(o BitVector) bool { return o.Slt(v) }
func (v BitVector) Sgte(o BitVector) bool { return o.Slte(v) }

// --- predicates ---

func (v BitVector) IsZero() bool      { return v.value == 0 }
func (v BitVector) IsOnes() bool      { return v.value == mask(v.width) }
func (v BitVector) IsOne() bool       { return v.value == 1 }
func (v BitVector) IsMinSigned() bool { return v.value == v.signBit() }
func (v BitVector) IsMaxSigned() bool { return v.value == mask(v.width)>>1 }

// --- bit counts ---

// CountLeadingZeros returns the number of consecutive zero bits
// starting from the MSB.
func (v BitVector) CountLeadingZeros() uint32 {
	return uint32(bits.LeadingZeros64(v.value)) - (64 - v.width)
}

// CountLeadingOnes returns the number of consecutive one bits starting
// from the MSB.
func (v BitVector) CountLeadingOnes() uint32 { return v.Not().CountLeadingZeros() }

// CountTrailingZeros returns the number of consecutive zero bits
// starting from the LSB. Returns Width if v is zero.
func (v BitVector) CountTrailingZeros() uint32 {
	if v.value == 0 {
		return v.width
	}
	return uint32(bits.TrailingZeros64(v.value))
}

// --- width-changing operations ---

// ZExt returns v zero-extended by k additional bits.
func (v BitVector) ZExt(k uint32) BitVector {
	assert(v.width+k <= MaxWidth, "zext exceeds max width: %d+%d", v.width, k)
	return NewBitVector(v.value, v.width+k)
}

// SExt returns v sign-extended by k additional bits.
func (v BitVector) SExt(k uint32) BitVector {
	assert(v.width+k <= MaxWidth, "sext exceeds max width: %d+%d", v.width, k)
	newWidth := v.width + k
	if !v.IsNegative() {
		return NewBitVector(v.value, newWidth)
	}
	fill := mask(newWidth) &^ mask(v.width)
	return NewBitVector(v.value|fill, newWidth)
}

// Extract returns bits [hi:lo] (inclusive, 0-indexed from the LSB) as
// a BitVector of width hi-lo+1.
func (v BitVector) Extract(hi, lo uint32) BitVector {
	assert(lo <= hi && hi < v.width, "extract out of bounds: [%d:%d] of width %d", hi, lo, v.width)
	w := hi - lo + 1
	return NewBitVector(v.value>>lo, w)
}

// Concat returns the concatenation msb:lsb, with v as the high-order
// bits and lsb as the low-order bits.
func (v BitVector) Concat(lsb BitVector) BitVector {
	assert(v.width+lsb.width <= MaxWidth, "concat exceeds max width: %d+%d", v.width, lsb.width)
	return NewBitVector((v.value<<lsb.width)|lsb.value, v.width+lsb.width)
}

// --- modular inverse & overflow predicates ---

// ModInverse returns v^-1 mod 2^width. Defined only when v is odd; ok
// is false otherwise.
func (v BitVector) ModInverse() (inv BitVector, ok bool) {
	if v.value&1 == 0 {
		return BitVector{}, false
	}
	// Newton's method for the modular inverse of an odd number mod 2^w:
	// each iteration doubles the number of correct low bits.
	x := uint64(1)
	for i := 0; i < 7; i++ { // converges to 64 correct bits in <=6 steps
		x = x * (2 - v.value*x)
	}
	return NewBitVector(x, v.width), true
}

// UMulOverflow reports whether v*o overflows the current width
// (unsigned).
func (v BitVector) UMulOverflow(o BitVector) bool {
	v.checkWidth(o)
	if v.value == 0 || o.value == 0 {
		return false
	}
	hi, lo := bits.Mul64(v.value, o.value)
	if hi != 0 {
		return true
	}
	return lo&^mask(v.width) != 0
}

// UAddOverflow reports whether v+o overflows the current width
// (unsigned).
func (v BitVector) UAddOverflow(o BitVector) bool {
	v.checkWidth(o)
	sum, carry := bits.Add64(v.value, o.value, 0)
	if carry != 0 {
		return true
	}
	return sum&^mask(v.width) != 0
}

// GoString implements fmt.GoStringer for readable test failure output.
func (v BitVector) GoString() string {
	return fmt.Sprintf("bvls.NewBitVector(0x%x, %d)", v.value, v.width)
}

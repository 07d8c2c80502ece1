package bvls

import "math/rand"

// RNG is a deterministic pseudo-random generator. Every randomized
// decision the engine makes (move root selection, path selection,
// inverse-vs-consistent policy, don't-care bit sampling) flows through
// a single RNG instance, so a fixed seed makes the whole search
// reproducible.
type RNG struct {
	r *rand.Rand
}

// NewRNG returns an RNG seeded deterministically from seed.
func NewRNG(seed uint32) *RNG {
	return &RNG{r: rand.New(rand.NewSource(int64(seed)))}
}

// PickUniformU32 returns a uniformly random uint32 in the inclusive
// range [a, b].
func (g *RNG) PickUniformU32(a, b uint32) uint32 {
	assert(a <= b, "PickUniformU32: empty range [%d, %d]", a, b)
	span := uint64(b) - uint64(a) + 1
	return a + uint32(g.pickUniformU64(span))
}

// pickUniformU64 returns a uniformly random uint64 in [0, span).
func (g *RNG) pickUniformU64(span uint64) uint64 {
	if span == 0 {
		return 0
	}
	if span <= 1<<63 {
		return uint64(g.r.Int63n(int64(span)))
	}
	return g.r.Uint64() % span
}

// PickWithProb returns true with probability pPermille/1000.
func (g *RNG) PickWithProb(pPermille uint16) bool {
	assert(pPermille <= 1000, "PickWithProb: probability out of range: %d", pPermille)
	return g.r.Intn(1000) < int(pPermille)
}

// PickFromSet returns a uniformly random element of a nonempty slice
// of node ids.
func (g *RNG) PickFromSet(ids []uint64) uint64 {
	assert(len(ids) > 0, "PickFromSet: empty set")
	return ids[g.r.Intn(len(ids))]
}

// randomBits returns a uniformly random BitVector of the given width,
// used to fill don't-care bits of a Domain.
func (g *RNG) randomBits(width uint32) BitVector {
	return NewBitVector(g.r.Uint64(), width)
}

// randomRange returns a uniformly random BitVector in the inclusive
// range [lo, hi] (same width as lo and hi).
func (g *RNG) randomRange(lo, hi BitVector) BitVector {
	lo.checkWidth(hi)
	assert(lo.Ulte(hi), "randomRange: empty range")
	span := hi.value - lo.value + 1
	return NewBitVector(lo.value+g.pickUniformU64(span), lo.width)
}

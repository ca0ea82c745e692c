package pack

import "github.com/bits-and-blooms/bitset"

// Mask marks which lanes of one block hold observed values. It is a view into a
// bitset shared by many blocks, starting at bit base.
type Mask struct {
	bits *bitset.BitSet
	base uint
}

// NewMask returns the view of bits starting at base.
func NewMask(bits *bitset.BitSet, base uint) Mask {
	return Mask{bits: bits, base: base}
}

// Has reports whether lane p holds an observed value. A zero Mask has no lanes set.
func (m Mask) Has(p int) bool {
	if m.bits == nil {
		return false
	}
	return m.bits.Test(m.base + uint(p))
}

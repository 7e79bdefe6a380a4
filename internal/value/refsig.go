package value

import "math/bits"

// RefSignature is a compact encoding of which parameters of a method are
// by-reference. Parameter 0 is reserved for the instance and is never
// by-ref. The wire format (spec.md §6, refsignature.internal.h) packs
// short signatures into a 31-bit mask with bit 31 reserved to flag a
// long form indexing a per-module pool of variable-length bitsets; once
// decoded, both forms are represented uniformly as a slice of words so
// callers never need to care which form produced them.
type RefSignature struct {
	words []uint32
}

// ShortRefSignature builds a reference signature from a 31-bit inline
// mask (bit i set means parameter i is by-ref).
func ShortRefSignature(mask uint32) RefSignature {
	return RefSignature{words: []uint32{mask &^ (1 << 31)}}
}

// LongRefSignature builds a reference signature from a pre-decoded
// pool entry (one or more 32-bit words, little-endian parameter order).
func LongRefSignature(words []uint32) RefSignature {
	return RefSignature{words: words}
}

const longSignatureFlag = uint32(1) << 31

// DecodeRefSignatureWire decodes a raw 32-bit wire value against a
// module's long-signature pool.
func DecodeRefSignatureWire(raw uint32, pool [][]uint32) RefSignature {
	if raw&longSignatureFlag == 0 {
		return ShortRefSignature(raw)
	}
	idx := raw &^ longSignatureFlag
	if int(idx) >= len(pool) {
		return RefSignature{}
	}
	return LongRefSignature(pool[idx])
}

// IsByRef reports whether parameter index i (0 = instance) is by-ref.
// Parameter 0 always reads as false regardless of the encoded bits,
// since the instance slot is never by-ref.
func (r RefSignature) IsByRef(i int) bool {
	if i == 0 {
		return false
	}
	word := i / 32
	bit := uint(i % 32)
	if word >= len(r.words) {
		return false
	}
	return r.words[word]&(1<<bit) != 0
}

// Equal reports whether two signatures agree on every parameter index
// up to paramCount (the comparison the method initializer and the
// executor's call-site check both need — bits beyond the declared
// parameter count are insignificant).
func (r RefSignature) Equal(o RefSignature, paramCount int) bool {
	for i := 0; i < paramCount; i++ {
		if r.IsByRef(i) != o.IsByRef(i) {
			return false
		}
	}
	return true
}

// PopCount returns the number of by-ref parameters encoded, for
// diagnostics.
func (r RefSignature) PopCount() int {
	n := 0
	for _, w := range r.words {
		n += bits.OnesCount32(w)
	}
	return n
}

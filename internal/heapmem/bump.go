package heapmem

import "unsafe"

// Bump is a simple bump-pointer allocator over a Region, used for
// generation 0. It is not safe for concurrent use without external
// synchronization — the GC's allocation lock (see internal/gc) is what
// makes that safe in practice, matching spec.md §4.2's allocation
// critical section.
type Bump struct {
	region  *Region
	base    unsafe.Pointer
	current uintptr
	end     uintptr
}

// NewBump wraps a region with a bump pointer starting at its base.
func NewBump(r *Region) *Bump {
	base := unsafe.Pointer(&r.Bytes()[0])
	start := uintptr(base)
	return &Bump{region: r, base: base, current: start, end: start + uintptr(r.Size())}
}

// Alloc advances the bump pointer by AlignUp(size) bytes and returns the
// allocation's start address. ok is false if the region doesn't have
// size bytes left, in which case the pointer is left unmoved.
func (b *Bump) Alloc(size int) (ptr unsafe.Pointer, ok bool) {
	aligned := AlignUp(size)
	next := b.current + uintptr(aligned)
	if next > b.end {
		return nil, false
	}
	ptr = unsafe.Pointer(b.current)
	b.current = next
	return ptr, true
}

// Current returns the current bump pointer, e.g. for computing how much
// of the region is in use.
func (b *Bump) Current() unsafe.Pointer { return unsafe.Pointer(b.current) }

// SetCurrent forcibly repositions the bump pointer, e.g. past a pinned
// object the allocator must step around (spec.md §4.2).
func (b *Bump) SetCurrent(p unsafe.Pointer) { b.current = uintptr(p) }

// Base returns the region's base address.
func (b *Bump) Base() unsafe.Pointer { return b.base }

// End returns the address one past the region's last usable byte.
func (b *Bump) End() unsafe.Pointer { return unsafe.Pointer(b.end) }

// Reset rewinds the bump pointer to the base of the region, e.g. after
// a cycle finishes evacuating every survivor out of generation 0.
func (b *Bump) Reset() { b.current = uintptr(b.base) }

// Used returns the number of bytes currently allocated.
func (b *Bump) Used() int { return int(b.current - uintptr(b.base)) }

// Contains reports whether ptr lies within [Base, End).
func (b *Bump) Contains(ptr unsafe.Pointer) bool {
	p := uintptr(ptr)
	return p >= uintptr(b.base) && p < b.end
}

// Package gc implements the Ovum generational garbage collector: a
// two-generation mark/move collector with pinning, a separate
// large-object heap, interned strings, static-reference blocks, and
// per-object field-access locks.
//
// Adaptation note (see DESIGN.md): the source prefixes every managed
// allocation with a header living in memory it manages by hand, and
// "moving" an object during a cycle means memcpy-ing its bytes to a new
// address. Go's own collector cannot safely coexist with that — a
// payload holding Go pointers (a *value.Type, or Values that embed
// unsafe.Pointer instances) must stay inside memory Go's collector
// scans, or those pointers can be freed out from under us. This port
// therefore keeps every GC object as an ordinary Go heap allocation (a
// *Header, individually `new`'d) and represents "generation 0" as a
// byte-budget counted against a heapmem.Bump region rather than literal
// storage carved out of it. "Moving" an object promotes it by
// allocating a fresh *Header and copying its payload, then stamping the
// old Header with the MOVED flag and a forwarding pointer — exactly the
// protocol spec.md describes, just realized with object identity = Go
// pointer identity instead of a raw address. Every other rule (three
// generations, pinning, the cycle's seven phases, the intern table,
// static-reference blocks) is implemented as specified.
package gc

import (
	"ovum/internal/value"
)

// markColor is one of the three rotating mark patterns described in
// spec.md §9. A cycle stamps every object it reaches with that cycle's
// target color and then rotates the GC's current color, so between
// cycles survivors carry the previous cycle's color. markProcess is the
// color of a freshly allocated object that no cycle has reached yet.
type markColor uint8

const (
	markA markColor = iota
	markB
	markC
	markProcess // fresh allocation, not yet reached by any cycle
)

func nextColor(c markColor) markColor { return (c + 1) % 3 }

// Header is the GC's private prefix for every managed allocation.
type Header struct {
	typ     *value.Type // the object's type; nil once Moved is true
	forward *Header     // forwarding pointer, valid iff Moved

	mark markColor

	pinCount    int32
	pinned      bool
	moved       bool
	hasGen0Refs bool
	isArray     bool
	earlyString bool
	large       bool
	gen         uint8 // 0 or 1; large objects also report gen 1

	size int // payload size in bytes, for accounting

	hash    uint32
	hashSet bool

	prev, next *Header // intrusive list links

	fieldLock value.Spinlock

	// payload holds the Go-level data for this object:
	//   - *OString for a String instance
	//   - []value.Value for an ordinary (non-customptr) instance or a
	//     GC-tracked Value array
	//   - an arbitrary Go value for a CUSTOMPTR instance, interpreted
	//     by the type's NativeFields/RefGetter
	payload interface{}
}

// Type returns the object's current type, following the forwarding
// pointer if the object has been moved.
func (h *Header) Type() *value.Type {
	if h.moved {
		return h.forward.Type()
	}
	return h.typ
}

// Payload returns the object's current payload, following any
// forwarding pointer.
func (h *Header) Payload() interface{} {
	if h.moved {
		return h.forward.Payload()
	}
	return h.payload
}

// Moved reports whether the object has been relocated during a cycle.
func (h *Header) Moved() bool { return h.moved }

// Forward returns the object's forwarding target. Only meaningful when
// Moved() is true.
func (h *Header) Forward() *Header { return h.forward }

// Lock acquires the object's field-access spinlock, following any
// forwarding pointer first — a moved object's fields live in its
// forward target's payload, guarded by that header's own lock, not the
// stale one left behind in the forwarding stub.
func (h *Header) Lock() {
	if h.moved {
		h.forward.Lock()
		return
	}
	h.fieldLock.Lock()
}

// Unlock releases the object's field-access spinlock, following
// forwarding the same way Lock does.
func (h *Header) Unlock() {
	if h.moved {
		h.forward.Unlock()
		return
	}
	h.fieldLock.Unlock()
}

// HasGen0Refs reports whether this object was last flagged as holding a
// field that references a generation-0 object, following forwarding
// the same way Lock/Unlock do.
func (h *Header) HasGen0Refs() bool {
	if h.moved {
		return h.forward.HasGen0Refs()
	}
	return h.hasGen0Refs
}

// SetHasGen0Refs updates the flag phase 5 of a collection cycle
// consults to decide whether this (not freshly-promoted) object's
// fields need revisiting for stale generation-0 pointers.
func (h *Header) SetHasGen0Refs(v bool) {
	if h.moved {
		h.forward.SetHasGen0Refs(v)
		return
	}
	h.hasGen0Refs = v
}

// NoteFieldWrite implements value.FieldAccessor: it flags h when v
// currently references a generation-0 object, so a later cycle's
// update-references phase knows to revisit h's fields even though h
// itself isn't among that cycle's freshly-promoted survivors.
func (h *Header) NoteFieldWrite(v value.Value) {
	if v.Inst == nil {
		return
	}
	if vh := (*Header)(v.Inst); vh.Generation() == 0 {
		h.SetHasGen0Refs(true)
	}
}

// FieldSlot implements value.FieldAccessor: it returns the address of
// field slot within the object's current payload, following forwarding
// so a reference taken before a promotion still reaches the live copy
// afterward. The caller is expected to have already validated slot
// against the type's field count, the same assumption loadField and
// storeField make.
func (h *Header) FieldSlot(slot int32) *value.Value {
	fields, ok := h.Payload().([]value.Value)
	if !ok || slot < 0 || int(slot) >= len(fields) {
		return nil
	}
	return &fields[slot]
}

// Pinned reports whether the object is currently pinned.
func (h *Header) Pinned() bool { return h.pinned }

// IsLarge reports whether the object lives on the large-object heap.
func (h *Header) IsLarge() bool { return h.large }

// Generation reports which generation the object currently lives in
// (0 or 1; large objects report 1, since they are never moved or
// scanned generationally).
func (h *Header) Generation() uint8 { return h.gen }

// Hash returns the object's lazily-computed, address-based identity
// hash, computing it on first use. Once computed it survives a move:
// identity hashing must stay stable even though the object's Go pointer
// changes across a promotion, so the hash is cached in the header and
// carried forward by promote.
func (h *Header) Hash() uint32 {
	if h.moved {
		return h.forward.Hash()
	}
	if !h.hashSet {
		h.hash = addressHash(h)
		h.hashSet = true
	}
	return h.hash
}

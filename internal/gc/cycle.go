package gc

import (
	"unsafe"

	"ovum/internal/value"
)

// collectLocked runs one full collection cycle. mu must already be
// held by the caller (either Collect, or allocLocked on a failed
// gen-0 allocation). It implements the seven phases spec.md §4.2
// describes: reset, mark root set, process loop, move gen-0
// survivors, update gen-0 references, collect, flip.
func (g *GC) collectLocked(collectGen1 bool) {
	target := g.currentCollectMark

	// Phase 1: reset. No explicit pass is needed in this port: objects
	// allocated since the last cycle carry markProcess and survivors of
	// earlier cycles carry an older color, so none of them equals
	// target until the mark phase below stamps it. The phase is kept as
	// an explicit step so the cycle reads in the same order spec.md lists.

	var queue []*Header

	mark := func(v *value.Value) {
		if v == nil || v.Inst == nil {
			return
		}
		h := (*Header)(v.Inst)
		if h.moved {
			h = h.forward
			v.Inst = unsafe.Pointer(h)
		}
		if h.mark == target {
			return
		}
		h.mark = target
		queue = append(queue, h)
	}

	// Phase 2: mark root set — thread frames, static references, and
	// anything currently pinned (pinned objects are roots regardless
	// of reachability, per spec.md's pinning invariant).
	for _, rp := range g.roots {
		rp.VisitRoots(mark)
	}
	g.statics.forEach(func(ref *value.StaticRef) {
		v := ref.Load()
		mark(&v)
		ref.Store(v)
	})
	for h := range g.pinnedSet {
		if h.mark != target {
			h.mark = target
			queue = append(queue, h)
		}
	}
	g.interned.forEach(func(h *Header) {
		if h.mark != target {
			h.mark = target
			queue = append(queue, h)
		}
	})

	// Phase 3: process loop — scan every marked object's fields,
	// marking what they reference until nothing new turns up.
	for len(queue) > 0 {
		h := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if slots, ok := h.Payload().([]value.Value); ok {
			for i := range slots {
				mark(&slots[i])
			}
		}
	}

	// Phase 4: move gen-0 survivors into generation 1. Everything left
	// in generation 0 that never got marked is garbage and is simply
	// not carried forward. Pinned survivors are not moved: they stay in
	// generation 0 at the same address and keep their share of the
	// reset nursery budget.
	var survivors, pinnedKept []*Header
	for _, h := range g.gen0.drain() {
		if h.mark == target {
			if h.pinned {
				pinnedKept = append(pinnedKept, h)
				survivors = append(survivors, h)
				continue
			}
			nh := promote(h)
			g.gen1.pushFront(nh)
			g.gen1Bytes += nh.size
			survivors = append(survivors, nh)
		}
	}
	g.gen0Bytes = 0
	g.gen0Budget.Reset()
	for _, h := range pinnedKept {
		g.gen0.pushFront(h)
		g.gen0Bytes += h.size
		g.gen0Budget.Alloc(h.size)
	}
	g.interned.updateForwarding()

	// Phase 5: update gen-0 references. Any Value still holding a
	// pointer to a moved Header — inside a promoted survivor's own
	// fields, a root, or a static slot — must be rewritten to point at
	// the new generation-1 object. mark() above already rewrites
	// in-place as it walks, so revisiting roots, statics, and the
	// promoted survivors' own fields here completes the sweep for any
	// edge mark() didn't reach the first time (e.g. a survivor's field
	// pointing to another survivor discovered later in the drain).
	for _, nh := range survivors {
		if slots, ok := nh.Payload().([]value.Value); ok {
			for i := range slots {
				mark(&slots[i])
			}
		}
	}
	for _, rp := range g.roots {
		rp.VisitRoots(mark)
	}
	g.statics.forEach(func(ref *value.StaticRef) {
		if !ref.HasGen0Refs() {
			return
		}
		v := ref.Load()
		mark(&v)
		ref.Store(v)
		ref.SetHasGen0Refs(false)
	})

	// Objects already resident in generation 1 before this cycle — not
	// among this cycle's freshly-promoted survivors — may still hold a
	// field pointing at a generation-0 object this cycle just promoted.
	// Only objects a prior field write flagged need revisiting here;
	// this cycle's own survivors were already covered above, and
	// anything never flagged never held a generation-0 reference to
	// begin with.
	g.gen1.forEach(func(h *Header) {
		if !h.HasGen0Refs() {
			return
		}
		if slots, ok := h.Payload().([]value.Value); ok {
			for i := range slots {
				mark(&slots[i])
			}
		}
		h.SetHasGen0Refs(false)
	})

	// collectGen1 forces a gen-1/LOH sweep regardless of dead weight.
	// Otherwise estimate this cycle's dead gen-1 bytes the same way the
	// source does — total resident bytes minus what's still live — and
	// only sweep once that estimate crosses gen1DeadBytesThreshold.
	// Below the threshold, dead gen-1 objects are simply left in place
	// for a future cycle to reconsider.
	if !collectGen1 {
		var liveBytes int
		g.gen1.forEach(func(h *Header) {
			if h.mark == target {
				liveBytes += h.size
			}
		})
		collectGen1 = g.gen1Bytes-liveBytes >= gen1DeadBytesThreshold
	}

	// Phase 6: collect — sweep generation 1 and the large-object heap,
	// dropping anything not marked this cycle (and not pinned). The
	// large-object heap shares generation 1's collectGen1 gate: large
	// objects report generation 1 too, and the source frees both off a
	// single combined list.
	g.sweep(&g.gen1, target, collectGen1)
	g.sweep(&g.loh, target, collectGen1)

	// Phase 7: flip — rotate the mark color so next cycle's survivors
	// are distinguishable from this cycle's.
	g.currentCollectMark = nextColor(target)
}

// promote copies h's payload into a freshly allocated generation-1
// Header and turns h into a forwarding stub.
func promote(h *Header) *Header {
	nh := &Header{
		typ:     h.typ,
		gen:     1,
		size:    h.size,
		isArray: h.isArray,
		pinned:  h.pinned,
		pinCount: h.pinCount,
		mark:    h.mark,
		hash:    h.hash,
		hashSet: h.hashSet,
	}
	switch p := h.payload.(type) {
	case []value.Value:
		cp := make([]value.Value, len(p))
		copy(cp, p)
		nh.payload = cp
	default:
		nh.payload = h.payload
	}
	h.moved = true
	h.forward = nh
	h.payload = nil
	return nh
}

// sweep drains l, keeping objects marked with target, pinned, or
// belonging to a module's early string pool (which is never scanned as
// a root but is never collected either), and discarding everything
// else. When collect is false, l is left untouched entirely — its
// objects keep last cycle's mark color and are naturally reconsidered
// next time collectLocked runs with collect true.
func (g *GC) sweep(l *objList, target markColor, collect bool) {
	if !collect {
		return
	}
	for _, h := range l.drain() {
		if h.mark == target || h.pinned || h.earlyString {
			l.pushFront(h)
			continue
		}
		if h.large {
			g.lohBytes -= h.size
		} else {
			g.gen1Bytes -= h.size
		}
	}
}

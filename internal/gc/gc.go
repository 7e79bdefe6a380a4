// Package gc implements the Ovum garbage collector (see header.go for
// the package doc and the central memory-safety adaptation note).
package gc

import (
	"errors"
	"unsafe"

	"ovum/internal/heapmem"
	"ovum/internal/value"
)

// ErrHeapExhausted is returned when a generation-1/large-object
// allocation cannot be satisfied even after a collection. Per the
// Open Question decision recorded in DESIGN.md, this is an ordinary Go
// error returned to the caller — there is no process-terminating
// out-of-memory path, and no attempt is made to unwind a partially
// constructed object.
var ErrHeapExhausted = errors.New("gc: heap exhausted")

// largeObjectThreshold mirrors the source's cutoff above which an
// allocation bypasses generation 0 entirely and lives directly on the
// large-object heap.
const largeObjectThreshold = 87 * 1024

// gen1DeadBytesThreshold mirrors the source's GEN1_DEAD_OBJECTS_THRESHOLD:
// an automatic cycle (collectGen1 == false) only bothers sweeping
// generation 1 and the large-object heap once the estimated dead
// weight in generation 1 crosses this line; below it, dead gen-1
// objects are simply left for a future cycle, same as spec.md §4.2
// phase 6 describes.
const gen1DeadBytesThreshold = 768 * 1024

// RootProvider is implemented by anything the collector must treat as
// a source of root references — most importantly internal/exec's
// Thread, which holds the evaluation stack and locals of every frame.
// Defining the interface here (rather than importing internal/exec)
// keeps the dependency edge pointing the idiomatic direction: exec
// depends on gc, not the reverse.
type RootProvider interface {
	VisitRoots(yield func(*value.Value))
}

// GC is a generational, mark-move, non-concurrent collector. A single
// GC instance is shared by every thread in a VM; the allocation lock
// serializes allocation and collection against each other the same
// way the source's global heap lock does.
type GC struct {
	mu value.Spinlock

	gen0Budget *heapmem.Bump // tracks bytes "allocated" into generation 0
	gen0Region *heapmem.Region

	gen0 objList
	gen1 objList
	loh  objList

	// pinnedSet tracks pinned objects by identity rather than by
	// threading them through a second intrusive list: a Header's
	// prev/next fields can only describe membership in one list at a
	// time, and a pinned object still lives in gen0/gen1/loh as normal.
	pinnedSet map[*Header]struct{}

	currentCollectMark markColor

	interned *internTable
	statics  *staticRefs

	roots []RootProvider

	gen0Bytes int
	gen1Bytes int
	lohBytes  int

	gen0Budgets int // total gen0 budget in bytes, for stats/tests
}

// Config bounds the gen-0 nursery size. A fresh Region of that size is
// reserved for it, but only its byte budget is tracked there: object
// payloads live in ordinary Go memory, and an allocation that does not
// fit triggers a cycle and then fails with ErrHeapExhausted rather than
// faulting on the region's guard page.
type Config struct {
	Gen0Size int
}

// DefaultConfig matches the nursery size the source uses out of the box.
func DefaultConfig() Config { return Config{Gen0Size: 3 << 19} } // 1.5 MB

// New builds a GC with a fresh gen-0 region of the given configuration.
func New(cfg Config) (*GC, error) {
	region, err := heapmem.New(cfg.Gen0Size, true)
	if err != nil {
		return nil, err
	}
	return &GC{
		gen0Budget:  heapmem.NewBump(region),
		gen0Region:  region,
		currentCollectMark: markA,
		interned:    newInternTable(),
		statics:     newStaticRefs(),
		pinnedSet:   make(map[*Header]struct{}),
		gen0Budgets: cfg.Gen0Size,
	}, nil
}

// Close releases the gen-0 region's backing memory.
func (g *GC) Close() error { return g.gen0Region.Close() }

// Collect forces a full collection cycle, under the allocation lock the
// same way an automatic cycle triggered by a failed gen-0 allocation
// runs one. Exposed for callers that need a deterministic cycle point
// (tests, an explicit GC.collect() native call) rather than waiting on
// allocation pressure. collectGen1 forces generation 1 and the
// large-object heap to sweep regardless of estimated dead weight; pass
// false to let the usual threshold decide.
func (g *GC) Collect(collectGen1 bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.collectLocked(collectGen1)
}

// Stats is a point-in-time occupancy snapshot, consumed by
// internal/gcstats to build a profile a human can load into `pprof -top`.
type Stats struct {
	Gen0Bytes, Gen0Budget int
	Gen1Bytes, Gen1Count  int
	LOHBytes, LOHCount    int
	Pinned                int
}

// Stats reports current occupancy across all three heaps. Counts are
// computed by walking the intrusive lists rather than kept as running
// totals, since gen1/loh list membership already changes on every
// promotion and sweep — one more counter to keep in lockstep would be
// redundant bookkeeping for a diagnostics-only path.
func (g *GC) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	var gen1n, lohn int
	g.gen1.forEach(func(*Header) { gen1n++ })
	g.loh.forEach(func(*Header) { lohn++ })

	return Stats{
		Gen0Bytes:  g.gen0Bytes,
		Gen0Budget: g.gen0Budgets,
		Gen1Bytes:  g.gen1Bytes,
		Gen1Count:  gen1n,
		LOHBytes:   g.lohBytes,
		LOHCount:   lohn,
		Pinned:     len(g.pinnedSet),
	}
}

// RegisterRoot adds a root provider (typically a Thread) the collector
// consults on every cycle. It is never unregistered — threads live for
// the process's lifetime, same as spec.md's concurrency model assumes.
func (g *GC) RegisterRoot(p RootProvider) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roots = append(g.roots, p)
}

// ValueOf wraps h as a Value an interpreter frame or field slot can
// hold, the inverse of the *Header a Value's Inst field points to once
// it references a managed object.
func ValueOf(h *Header) value.Value {
	return value.Instance(h.Type(), unsafe.Pointer(h))
}

// -- allocation -------------------------------------------------------

// newHeader builds a Header whose mark starts at markProcess — a
// sentinel that never equals any cycle's target color (always one of
// markA/markB/markC), so a freshly allocated object is always correctly
// seen as "not yet marked this cycle" regardless of which color the
// collector happens to be rotating through when it's created.
func newHeader(t *value.Type, gen uint8, large bool) *Header {
	return &Header{typ: t, gen: gen, large: large, mark: markProcess}
}

// Construct allocates an ordinary instance of t: a zero-filled field
// slice sized to t's FieldCount, placed in generation 0 unless its
// estimated size crosses the large-object threshold.
func (g *GC) Construct(t *value.Type) (*Header, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	size := int(t.FieldCount) * valueWordSize
	fields := make([]value.Value, t.FieldCount)
	return g.allocLocked(t, fields, size, false)
}

// AllocArray allocates a fixed-length array of typed instance
// references (e.g. an Osprey List's backing store), represented as a
// []value.Value payload with isArray set.
func (g *GC) AllocArray(t *value.Type, length int) (*Header, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	size := length * int(valueWordSize)
	slots := make([]value.Value, length)
	h, err := g.allocLocked(t, slots, size, true)
	return h, err
}

// AllocValueArray is the primitive-array counterpart to AllocArray: a
// raw slice of Values with no element type association beyond "Value"
// (its Header has a nil type). No code in this module calls it.
func (g *GC) AllocValueArray(length int) (*Header, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	size := length * int(valueWordSize)
	slots := make([]value.Value, length)
	return g.allocLocked(nil, slots, size, true)
}

// ConstructString allocates a new, non-interned String instance.
func (g *GC) ConstructString(t *value.Type, units []uint16) (*Header, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	os := NewOString(units)
	return g.allocLocked(t, os, len(units)*2, false)
}

// ConstructModuleString allocates a String instance for a module's
// constant pool: it is marked static and early, matching the source's
// treatment of strings loaded directly from a module file, which are
// never collected and never moved.
func (g *GC) ConstructModuleString(t *value.Type, units []uint16) (*Header, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	os := NewOString(units)
	os.flags |= stringStatic
	h := newHeader(t, 1, false)
	h.payload = os
	h.earlyString = true
	h.mark = g.currentCollectMark
	g.gen1.pushFront(h)
	g.gen1Bytes += len(units) * 2
	return h, nil
}

// ConstructCustom allocates an instance of t carrying an arbitrary Go
// value as its payload, the CUSTOMPTR case Header.payload's doc comment
// describes: a native-defined type (e.g. the executor's bound-method
// representation) whose fields aren't a plain []value.Value slice.
// size is the accounting estimate used for gen-0 budget/promotion
// decisions, same as any other allocation.
func (g *GC) ConstructCustom(t *value.Type, payload interface{}, size int) (*Header, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.allocLocked(t, payload, size, false)
}

// allocLocked performs the actual placement decision; mu must be held.
func (g *GC) allocLocked(t *value.Type, payload interface{}, size int, isArray bool) (*Header, error) {
	if size >= largeObjectThreshold {
		h := newHeader(t, 1, true)
		h.payload = payload
		h.isArray = isArray
		h.size = size
		g.loh.pushFront(h)
		g.lohBytes += size
		return h, nil
	}

	if _, ok := g.gen0Budget.Alloc(size); !ok {
		g.collectLocked(false)
		if _, ok := g.gen0Budget.Alloc(size); !ok {
			return nil, ErrHeapExhausted
		}
	}

	h := newHeader(t, 0, false)
	h.payload = payload
	h.isArray = isArray
	h.size = size
	// A generation-0 object starts at markProcess; the next cycle
	// either promotes it (pinned survivors stay in place) or drops it
	// when the nursery resets.
	g.gen0.pushFront(h)
	g.gen0Bytes += size
	return h, nil
}

// valueWordSize approximates the source's per-slot field width; Go's
// Value is larger than the source's tagged word, but the ratio is what
// matters for triggering promotion at realistic sizes, not the
// absolute number.
const valueWordSize = 16

// -- interning ---------------------------------------------------------

// Intern returns the canonical interned Header for s's content,
// allocating and registering a new one if this content hasn't been
// seen before.
func (g *GC) Intern(t *value.Type, s *OString) (*Header, error) {
	g.mu.Lock()
	if h, ok := g.interned.find(s); ok {
		g.mu.Unlock()
		return h, nil
	}
	g.mu.Unlock()

	h, err := g.ConstructString(t, s.Units)
	if err != nil {
		return nil, err
	}
	h.Payload().(*OString).flags |= stringIntern

	g.mu.Lock()
	g.interned.insert(h)
	g.mu.Unlock()
	return h, nil
}

// GetInterned looks up s without allocating.
func (g *GC) GetInterned(s *OString) (*Header, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.interned.find(s)
}

// -- static references ---------------------------------------------------

// AddStaticReference hands out a new process-lifetime static slot.
func (g *GC) AddStaticReference(initial value.Value) *value.StaticRef {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref := g.statics.alloc()
	ref.Store(initial)
	if initial.Inst != nil {
		if vh := (*Header)(initial.Inst); vh.Generation() == 0 {
			ref.SetHasGen0Refs(true)
		}
	}
	return ref
}

// -- pinning ---------------------------------------------------------

// Pin marks h so a collection cycle will never move or reclaim it (a
// pinned generation-0 object stays in generation 0 across cycles),
// incrementing a reference count so nested pin/unpin pairs nest
// correctly, per spec.md's pinning invariant.
func (g *GC) Pin(h *Header) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h.pinCount == 0 {
		h.pinned = true
		g.pinnedSet[h] = struct{}{}
	}
	h.pinCount++
}

// Unpin releases one pin. Once the count reaches zero the object
// becomes collectible again on the next cycle.
func (g *GC) Unpin(h *Header) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h.pinCount == 0 {
		return
	}
	h.pinCount--
	if h.pinCount == 0 {
		h.pinned = false
		delete(g.pinnedSet, h)
	}
}

package exec

import (
	"sync"

	"ovum/internal/gc"
	"ovum/internal/obinary"
	"ovum/internal/value"
)

// maxCallDepth bounds the managed call stack. The source signals
// overflow by faulting on a guard page at the end of a fixed 1 MB
// region (spec.md §5); a Go-slice-backed frame stack has no such page
// to fault on, so a depth counter stands in for it, surfaced as an
// ordinary error rather than a process fault.
const maxCallDepth = 4096

// Thread is one native thread hosting managed execution: its frame
// stack (the GC's root set for this thread), its managed/unmanaged
// region flag, and the in-flight thrown error during exception search.
// Exactly one Thread is ever running in this core (spec.md §5), but the
// locking here is real, not vestigial — SuspendForGC's contract is
// defined in terms of the flag regardless of how many threads end up
// exercising it.
type Thread struct {
	ID  uint64
	GC  *gc.GC
	Std *StdTypes

	// Module is consulted to resolve tokens embedded in instruction
	// operands (method/field/type/string); call sites outside the
	// currently executing method (e.g. the VM's entry-point invocation)
	// pass the token's owning module explicitly instead.
	Module *obinary.Module

	mu      sync.Mutex
	managed bool

	frames []*Frame

	// pending holds the in-flight thrown error value while exception
	// search is unwinding; Null when nothing is being thrown.
	pending value.Value
}

// NewThread builds a Thread over a shared GC and standard-type table,
// registering itself as a root provider immediately — a thread with no
// frames yet still needs to be walked every cycle so it's never missed
// once it does push one.
func NewThread(id uint64, g *gc.GC, std *StdTypes, mod *obinary.Module) *Thread {
	th := &Thread{ID: id, GC: g, Std: std, Module: mod, managed: true}
	g.RegisterRoot(th)
	return th
}

// VisitRoots implements gc.RootProvider: every local/argument slot and
// every live evaluation-stack slot of every frame on this thread's call
// stack, plus the in-flight thrown value if any.
func (t *Thread) VisitRoots(yield func(*value.Value)) {
	for _, f := range t.frames {
		for i := range f.Locals {
			yield(&f.Locals[i])
		}
		for i := 0; i < f.sp; i++ {
			yield(&f.Stack[i])
		}
	}
	yield(&t.pending)
}

// SuspendForGC implements value.NativeThread: it marks this thread as
// having left the managed region for the duration of a native call, per
// spec.md §5's "before any potentially-blocking native operation, the
// thread enters the unmanaged region." With a single thread and no
// concurrent collector in this core, there is nothing else to block on
// — the transition exists so the contract (and its locking) is real,
// ready for a multi-threaded host to build on without changing this
// method's callers.
func (t *Thread) SuspendForGC() {
	t.mu.Lock()
	t.managed = false
	t.mu.Unlock()
}

// resumeManaged is the other half of SuspendForGC's contract, called
// once a native call returns and this thread re-enters managed code.
func (t *Thread) resumeManaged() {
	t.mu.Lock()
	t.managed = true
	t.mu.Unlock()
}

func (t *Thread) pushFrame(f *Frame) error {
	if len(t.frames) >= maxCallDepth {
		return t.newManagedError(t.Std.OverflowError, "call stack overflow")
	}
	t.frames = append(t.frames, f)
	return nil
}

func (t *Thread) popFrame() {
	t.frames = t.frames[:len(t.frames)-1]
}

func (t *Thread) currentFrame() *Frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

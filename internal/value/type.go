package value

import (
	"runtime"
	"sync"
)

// Flags describes the bits carried by a Type descriptor.
type Flags uint16

const (
	FlagPrimitive Flags = 1 << iota
	FlagAbstract
	FlagStatic
	FlagSealed
	FlagCustomPtr
	FlagHasFinalizer
	FlagStaticCtorRun
	FlagStaticCtorRunning
)

// ModuleHandle is the minimal surface a Type needs from its declaring
// module. It is satisfied by obinary.Module; keeping it as an
// interface here avoids a value<->obinary import cycle, since a Module
// in turn holds the Types it declares.
type ModuleHandle interface {
	ModuleName() string
}

// NativeFieldKind classifies one entry of a CUSTOMPTR type's native
// field descriptor table — the layout the GC's reference-getter walks
// for types backed by a native (non-Value-array) struct.
type NativeFieldKind uint8

const (
	NativeFieldValue NativeFieldKind = iota
	NativeFieldValuePtr
	NativeFieldStringPtr
	NativeFieldArrayPtr
)

// NativeFieldDescriptor describes one native field of a CUSTOMPTR type.
type NativeFieldDescriptor struct {
	Kind   NativeFieldKind
	Offset int32
}

// Type is the runtime descriptor for an Osprey type: its members, its
// base-type chain, its operator overload table, and the bookkeeping the
// GC needs to walk instances of it.
//
// Types are created once, when their declaring module loads, and are
// immutable thereafter except for the static-constructor flags (in
// Flags) and StaticTypeToken, which the standard-type registration
// extended initializer and the static-constructor machinery mutate in
// place.
type Type struct {
	Name       string
	Base       *Type
	SharedType *Type
	Module     ModuleHandle
	Flags      Flags

	FieldsOffset int32
	Size         int32
	FieldCount   int32

	Members map[string]*Member

	Operators [OperatorCount]*Overload

	Ctor *Overload

	// StaticTypeToken holds the Value handed back by ldtypetkn for
	// this type, lazily constructed on first request.
	StaticTypeToken *StaticRef

	NativeFields []NativeFieldDescriptor
	// RefGetter enumerates the managed Values embedded in a CUSTOMPTR
	// instance, beyond what NativeFields describes directly (e.g.
	// values reachable only through a native container). It is the
	// GC's sole means of finding them.
	RefGetter func(instance interface{}, yield func(Value))

	ctorMu      sync.Mutex
	ctorOwnerID uint64
	ctorDepth   int
}

// IsPrimitive reports whether values of this type carry their payload
// inline (Boolean/Int/UInt/Real) rather than through an instance
// pointer.
func (t *Type) IsPrimitive() bool { return t.Flags&FlagPrimitive != 0 }

func (t *Type) IsAbstract() bool  { return t.Flags&FlagAbstract != 0 }
func (t *Type) IsSealed() bool    { return t.Flags&FlagSealed != 0 }
func (t *Type) IsCustomPtr() bool { return t.Flags&FlagCustomPtr != 0 }

// IsSubtypeOf reports whether t is t2 or a descendant of it along the
// base-type chain.
func (t *Type) IsSubtypeOf(t2 *Type) bool {
	for cur := t; cur != nil; cur = cur.Base {
		if cur == t2 {
			return true
		}
	}
	return false
}

// FindMember resolves a member by name, honoring accessibility rules:
// PUBLIC is always visible; PROTECTED is visible to subtypes of the
// declaring type; PRIVATE is visible only within the declaring type or
// its shared-type sibling. fromType is the type of the code performing
// the lookup (nil for module-level/native callers, which are treated as
// fully public-only callers).
func (t *Type) FindMember(name string, fromType *Type) (*Member, bool) {
	for cur := t; cur != nil; cur = cur.Base {
		if m, ok := cur.Members[name]; ok {
			if m.IsAccessibleFrom(fromType) {
				return m, true
			}
			return nil, false
		}
	}
	return nil, false
}

// EnterStaticCtor attempts to enter this type's static constructor
// under the per-type recursive lock. It returns (alreadyRun, reentrant):
// alreadyRun is true if the constructor has already completed and the
// caller should do nothing; reentrant is true if the calling thread is
// already running this type's constructor (the call short-circuits,
// per spec.md — observing partially-initialized statics is by design).
// A different thread arriving while the constructor runs waits until
// it completes and then sees alreadyRun. Otherwise the caller now owns
// the constructor run and must call ExitStaticCtor when done.
func (t *Type) EnterStaticCtor(threadID uint64) (alreadyRun, reentrant bool) {
	t.ctorMu.Lock()
	for t.Flags&FlagStaticCtorRunning != 0 && t.ctorOwnerID != threadID {
		t.ctorMu.Unlock()
		runtime.Gosched()
		t.ctorMu.Lock()
	}
	if t.Flags&FlagStaticCtorRun != 0 {
		t.ctorMu.Unlock()
		return true, false
	}
	if t.Flags&FlagStaticCtorRunning != 0 && t.ctorOwnerID == threadID {
		t.ctorDepth++
		t.ctorMu.Unlock()
		return false, true
	}
	t.Flags |= FlagStaticCtorRunning
	t.ctorOwnerID = threadID
	t.ctorDepth = 1
	// ctorMu itself is released here; ownership is carried by
	// FlagStaticCtorRunning and ctorOwnerID, which same-thread re-entry
	// recognizes and other threads wait on above.
	t.ctorMu.Unlock()
	return false, false
}

// ExitStaticCtor marks the static constructor complete for threadID's
// outermost call.
func (t *Type) ExitStaticCtor(threadID uint64) {
	t.ctorMu.Lock()
	defer t.ctorMu.Unlock()
	if t.ctorOwnerID != threadID {
		return
	}
	t.ctorDepth--
	if t.ctorDepth > 0 {
		return
	}
	t.Flags &^= FlagStaticCtorRunning
	t.Flags |= FlagStaticCtorRun
	t.ctorOwnerID = 0
}

package value

import (
	"sync"
	"unsafe"
)

// ReadRef dereferences a by-reference Value, regardless of which of the
// three reference sentinels it carries. It is a no-op (returns v
// itself) for an ordinary value.
func ReadRef(v Value) Value {
	switch v.Ref.Kind {
	case NotRef:
		return v
	case RefLocal:
		return *(*Value)(v.Ref.Slot)
	case RefStatic:
		return v.Ref.Static.Load()
	case RefField:
		return readFieldSlot(v.Ref)
	default:
		return Null
	}
}

// WriteRef assigns through a by-reference Value. Writing to an
// instance-field reference acquires the target object's field-access
// lock for the duration of the assignment, so a concurrent reader never
// observes a torn Value (type word from one write, payload from
// another).
func WriteRef(ref Ref, v Value) {
	switch ref.Kind {
	case RefLocal:
		*(*Value)(ref.Slot) = v
	case RefStatic:
		ref.Static.Store(v)
	case RefField:
		if ref.Lock != nil {
			ref.Lock.Lock()
			defer ref.Lock.Unlock()
		}
		*ref.Accessor.FieldSlot(ref.Offset) = v
		ref.Accessor.NoteFieldWrite(v)
	}
}

func readFieldSlot(ref Ref) Value {
	if ref.Lock != nil {
		ref.Lock.Lock()
		defer ref.Lock.Unlock()
	}
	return *ref.Accessor.FieldSlot(ref.Offset)
}

// MakeFieldRef builds a RefField-kind reference value for field slot at
// index slot within the instance accessor reaches, guarded by lock.
func MakeFieldRef(refType *Type, accessor FieldAccessor, slot int32, lock sync.Locker) Value {
	return Value{Typ: refType, Ref: Ref{Kind: RefField, Accessor: accessor, Offset: slot, Lock: lock}}
}

// MakeLocalRef builds a RefLocal-kind reference value pointing directly
// at a stack-frame slot (a local, argument, or evaluation-stack cell).
// The caller is responsible for slot's address remaining stable for as
// long as the reference is live, which holds for a Frame's Locals and
// Stack slices (sized once at frame construction, never reallocated).
func MakeLocalRef(refType *Type, slot *Value) Value {
	return Value{Typ: refType, Ref: Ref{Kind: RefLocal, Slot: unsafe.Pointer(slot)}}
}

// MakeStaticRef builds a RefStatic-kind reference value over a type's
// static field slot.
func MakeStaticRef(refType *Type, slot *StaticRef) Value {
	return Value{Typ: refType, Ref: Ref{Kind: RefStatic, Static: slot}}
}

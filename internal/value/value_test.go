package value

import (
	"testing"
	"unsafe"
)

func ptrOf[T any](v *T) unsafe.Pointer { return unsafe.Pointer(v) }

func primitiveType(name string) *Type {
	return &Type{Name: name, Flags: FlagPrimitive}
}

func TestIsTypeAncestorChain(t *testing.T) {
	object := &Type{Name: "aves.Object"}
	base := &Type{Name: "aves.Error", Base: object}
	derived := &Type{Name: "aves.TypeError", Base: base}

	v := Value{Typ: derived}
	if !IsType(v, derived) {
		t.Error("expected IsType to match the exact type")
	}
	if !IsType(v, base) {
		t.Error("expected IsType to match a direct base")
	}
	if !IsType(v, object) {
		t.Error("expected IsType to match an indirect base")
	}

	unrelated := &Type{Name: "aves.String"}
	if IsType(v, unrelated) {
		t.Error("did not expect IsType to match an unrelated type")
	}
}

func TestIsTypeNullAlwaysFalse(t *testing.T) {
	if IsType(Null, primitiveType("aves.Int")) {
		t.Error("null should never satisfy IsType")
	}
}

func TestIsSameReferenceNulls(t *testing.T) {
	a := Value{}
	b := Value{}
	if !IsSameReference(a, b) {
		t.Error("two nulls must compare equal regardless of payload")
	}

	intType := primitiveType("aves.Int")
	a = Int(intType, 5)
	b = Value{} // null, different type
	if IsSameReference(a, b) {
		t.Error("a null and a non-null value must never compare equal")
	}
}

func TestIsSameReferencePrimitiveComparesByPayload(t *testing.T) {
	intType := primitiveType("aves.Int")
	a := Int(intType, 42)
	b := Int(intType, 42)
	c := Int(intType, 7)

	if !IsSameReference(a, b) {
		t.Error("equal payloads of the same primitive type must compare equal")
	}
	if IsSameReference(a, c) {
		t.Error("different payloads must not compare equal")
	}
}

func TestIsSameReferenceInstanceComparesByPointer(t *testing.T) {
	strType := &Type{Name: "aves.String"}
	var backing1, backing2 int
	a := Instance(strType, ptrOf(&backing1))
	b := Instance(strType, ptrOf(&backing1))
	c := Instance(strType, ptrOf(&backing2))

	if !IsSameReference(a, b) {
		t.Error("same instance pointer must compare equal")
	}
	if IsSameReference(a, c) {
		t.Error("different instance pointers must not compare equal")
	}
}

func TestRealRoundTrip(t *testing.T) {
	realType := primitiveType("aves.Real")
	v := Real(realType, 3.25)
	if got := v.AsFloat64(); got != 3.25 {
		t.Errorf("AsFloat64() = %v, want 3.25", got)
	}
}

func TestReadWriteRefLocal(t *testing.T) {
	intType := primitiveType("aves.Int")
	slot := Int(intType, 1)
	ref := Value{Ref: Ref{Kind: RefLocal, Slot: ptrOf(&slot)}}

	got := ReadRef(ref)
	if got.AsInt64() != 1 {
		t.Fatalf("ReadRef = %v, want 1", got.AsInt64())
	}

	WriteRef(ref.Ref, Int(intType, 99))
	if slot.AsInt64() != 99 {
		t.Fatalf("slot after WriteRef = %v, want 99", slot.AsInt64())
	}
}

func TestStaticConstructorReentranceShortCircuits(t *testing.T) {
	typ := &Type{Name: "aves.Console"}

	alreadyRun, reentrant := typ.EnterStaticCtor(1)
	if alreadyRun || reentrant {
		t.Fatal("first entry should neither be already-run nor reentrant")
	}

	_, reentrant = typ.EnterStaticCtor(1)
	if !reentrant {
		t.Error("same-thread re-entry must short-circuit")
	}
	typ.ExitStaticCtor(1) // pair with the re-entrant call
	typ.ExitStaticCtor(1) // pair with the outer call

	if typ.Flags&FlagStaticCtorRun == 0 {
		t.Error("expected the static constructor to be marked run")
	}

	alreadyRun, _ = typ.EnterStaticCtor(1)
	if !alreadyRun {
		t.Error("subsequent calls must observe the constructor as already run")
	}
}

package obinary

import (
	"testing"

	"ovum/internal/value"
)

func TestTokenRoundTrip(t *testing.T) {
	tok := NewToken(KindMethodDef, 0x123456)
	if tok.Kind() != KindMethodDef {
		t.Fatalf("Kind() = %x, want %x", tok.Kind(), KindMethodDef)
	}
	if tok.Index() != 0x123456 {
		t.Fatalf("Index() = %x, want %x", tok.Index(), 0x123456)
	}
	if !tok.IsDef() {
		t.Fatal("MethodDef token should report IsDef() true")
	}
	if NewToken(KindTypeRef, 1).IsDef() {
		t.Fatal("TypeRef token should report IsDef() false")
	}
}

func TestVersionCompareAndAtLeast(t *testing.T) {
	v1 := Version{1, 0, 0, 0}
	v2 := Version{1, 2, 0, 0}
	v3 := Version{2, 0, 0, 0}

	if v1.Compare(v2) >= 0 {
		t.Fatal("1.0.0.0 should compare less than 1.2.0.0")
	}
	if v2.Compare(v3) >= 0 {
		t.Fatal("1.2.0.0 should compare less than 2.0.0.0")
	}
	if !v2.AtLeast(v1) {
		t.Fatal("1.2.0.0 should satisfy a floor of 1.0.0.0")
	}
	if v1.AtLeast(v2) {
		t.Fatal("1.0.0.0 should not satisfy a floor of 1.2.0.0")
	}
}

func TestBuilderPopulatesTablesAndTokensResolve(t *testing.T) {
	b := NewBuilder("test.Module", Version{1, 0, 0, 0})

	ty := &value.Type{Name: "test.Thing"}
	typeTok := b.AddType(ty)

	strTok := b.AddString("hello")
	constTok := b.AddConstant(value.Int(ty, 7))

	m, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, ok := m.Resolve(typeTok)
	if !ok || got.(*value.Type) != ty {
		t.Fatal("expected TypeDef token to resolve back to the registered type")
	}
	if s, ok := m.Resolve(strTok); !ok || s.(string) != "hello" {
		t.Fatal("expected String token to resolve to the registered literal")
	}
	if c, ok := m.Resolve(constTok); !ok || c.(value.Value).AsInt64() != 7 {
		t.Fatal("expected ConstantDef token to resolve to the registered value")
	}
	if ty.Module.ModuleName() != "test.Module" {
		t.Fatal("AddType should stamp the type's declaring module")
	}
}

func TestBuildRunsMethodInitializerOverDeclaredBytecode(t *testing.T) {
	b := NewBuilder("test.Module", Version{1, 0, 0, 0})
	ov := &value.Overload{
		Name:       "doNothing",
		ParamCount: 0,
		Entry:      []byte{0x39}, // OP_RETNULL
	}
	b.AddMethod(ov)

	if _, err := b.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ov.Code == nil {
		t.Fatal("expected Build to populate Code from Entry")
	}
	if len(ov.Code.Code) == 0 {
		t.Fatal("expected non-empty initialized instruction stream")
	}
	if !ov.IsInited() {
		t.Fatal("expected OverloadInited to be set once Code is populated")
	}
}

func TestBuildReportsInvalidBytecode(t *testing.T) {
	b := NewBuilder("test.Module", Version{1, 0, 0, 0})
	ov := &value.Overload{Name: "broken", Entry: []byte{0xff}}
	b.AddMethod(ov)

	if _, err := b.Build(); err == nil {
		t.Fatal("expected Build to report the unrecognized opcode")
	}
}

func TestRegistryFindModuleByFloor(t *testing.T) {
	r := NewRegistry()
	old := NewModule("demo", Version{1, 0, 0, 0})
	newer := NewModule("demo", Version{1, 5, 0, 0})
	if err := r.Add(old); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(newer); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, ok := r.FindModule("demo", &Version{1, 2, 0, 0})
	if !ok || got != newer {
		t.Fatal("expected FindModule to return the highest version satisfying the floor")
	}

	_, ok = r.FindModule("demo", &Version{2, 0, 0, 0})
	if ok {
		t.Fatal("expected FindModule to fail when no loaded version satisfies the floor")
	}

	if err := r.Add(old); err == nil {
		t.Fatal("expected adding a duplicate name+version to fail")
	}
}

func TestBuildStandardTypesHasTwentyTypesWithObjectAsBase(t *testing.T) {
	m := BuildStandardTypes()
	if len(m.Types) != len(StandardTypeNames) {
		t.Fatalf("got %d standard types, want %d", len(m.Types), len(StandardTypeNames))
	}
	for i, name := range StandardTypeNames {
		if m.Types[i].Name != name {
			t.Errorf("Types[%d].Name = %q, want %q", i, m.Types[i].Name, name)
		}
	}
	object := m.Types[0]
	for _, ty := range m.Types[1:] {
		if ty.Base == nil {
			t.Errorf("%s has no base type", ty.Name)
		}
	}
	if m.Types[1].Base != object {
		t.Fatal("aves.Boolean should derive directly from aves.Object")
	}
}

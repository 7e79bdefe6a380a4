package obinary

import (
	"fmt"

	"ovum/internal/initializer"
	"ovum/internal/value"
)

// Builder constructs a Module in memory, standing in for the on-disk
// module file parser (out of scope per spec.md's Non-goals). It
// populates a module's tables in the same order ModuleReader does when
// reading a file: types first, then members (fields and methods), then
// the string pool — so any future on-disk reader could be dropped in
// without the rest of the runtime caring which one built the Module it
// received.
type Builder struct {
	m *Module
}

// NewBuilder starts building a module with the given name and version.
func NewBuilder(name string, version Version) *Builder {
	return &Builder{m: NewModule(name, version)}
}

// AddType registers a type, returning the TypeDef token for it.
func (b *Builder) AddType(t *value.Type) Token {
	t.Module = b.m
	idx := len(b.m.Types)
	b.m.Types = append(b.m.Types, t)
	return NewToken(KindTypeDef, uint32(idx))
}

// AddField registers a field member, returning its FieldDef token.
func (b *Builder) AddField(f *value.Member) Token {
	idx := len(b.m.Fields)
	b.m.Fields = append(b.m.Fields, f)
	return NewToken(KindFieldDef, uint32(idx))
}

// AddMethod registers a method overload group, returning its MethodDef
// token.
func (b *Builder) AddMethod(ov *value.Overload) Token {
	idx := len(b.m.Methods)
	b.m.Methods = append(b.m.Methods, ov)
	return NewToken(KindMethodDef, uint32(idx))
}

// AddString interns a literal into the module's string pool, returning
// its String token. Equal strings added twice get separate tokens here
// — deduplication across the module is the source's job, not this
// Builder's; the GC's own intern table (internal/gc) is what gives
// equal literals a single runtime identity.
func (b *Builder) AddString(s string) Token {
	idx := len(b.m.Strings)
	b.m.Strings = append(b.m.Strings, s)
	return NewToken(KindString, uint32(idx))
}

// AddConstant registers a module-level constant value, returning its
// ConstantDef token.
func (b *Builder) AddConstant(v value.Value) Token {
	idx := len(b.m.Constants)
	b.m.Constants = append(b.m.Constants, v)
	return NewToken(KindConstantDef, uint32(idx))
}

// AddLongRefSignature registers a long-form reference signature word
// array, returning its pool index for DecodeRefSignatureWire.
func (b *Builder) AddLongRefSignature(words []uint32) uint32 {
	idx := uint32(len(b.m.LongRefSignatures))
	b.m.LongRefSignatures = append(b.m.LongRefSignatures, words)
	return idx
}

// DeclareGlobal registers a module-level named member (type, function,
// or constant), public or internal.
func (b *Builder) DeclareGlobal(name string, kind MemberFlags, internal bool, gm GlobalMember) {
	flags := kind
	if internal {
		flags |= MemberFlagInternal
	} else {
		flags |= MemberFlagPublic
	}
	gm.Flags = flags
	gm.Name = name
	b.m.Globals[name] = &gm
}

// AddReference records a dependency on another already-built module.
func (b *Builder) AddReference(dep *Module) { b.m.AddReference(dep) }

// staticCtorName is the conventional static-constructor method name a
// type's ".init" member is declared under; see exec.Thread's
// EnsureStaticCtor, the single choke point both this eager module-load
// flush and first-use static field access funnel through.
const staticCtorName = ".init"

// Build finalizes the module, running the method initializer over
// every declared overload's raw bytecode before handing the module
// back — the same point in the loading sequence ModuleReader hands
// off to MethodInitializer, just without a file in between. It also
// collects StaticCtorTypes, in declaration order, so the VM can flush
// every static constructor before main runs.
func (b *Builder) Build() (*Module, error) {
	for _, ov := range b.m.Methods {
		if ov.Native != nil || ov.Entry == nil || ov.Code != nil {
			continue
		}
		code, err := initializer.Initialize(ov.Name, ov.Entry, ov.EffectiveParamCount(), ov.RawTryBlocks)
		if err != nil {
			return nil, fmt.Errorf("obinary: building %s: %w", b.m.Name, err)
		}
		tryBlocks, err := value.ResolveTryBlocks(code.TryBlocks, b.resolveCatchType)
		if err != nil {
			return nil, fmt.Errorf("obinary: building %s: %w", b.m.Name, err)
		}
		ov.Code = code
		ov.TryBlocks = tryBlocks
		ov.Flags |= value.OverloadInited
	}
	for _, ty := range b.m.Types {
		if m, ok := ty.Members[staticCtorName]; ok && m.Kind == value.MemberMethod {
			b.m.StaticCtorTypes = append(b.m.StaticCtorTypes, ty)
		}
	}
	return b.m, nil
}

// resolveCatchType dereferences a catch clause's raw type token against
// this module's own token tables.
func (b *Builder) resolveCatchType(token uint32) (*value.Type, bool) {
	resolved, ok := b.m.Resolve(Token(token))
	if !ok {
		return nil, false
	}
	t, ok := resolved.(*value.Type)
	return t, ok
}

// StandardTypeNames lists the twenty aves.* types every module
// implicitly depends on, in the order the runtime initializes them —
// aves.Object first (every other type's ultimate base), error types
// last, reflection.Type at the very end since it's the only one whose
// initializer needs every other standard type already registered.
var StandardTypeNames = []string{
	"aves.Object",
	"aves.Boolean",
	"aves.Int",
	"aves.UInt",
	"aves.Real",
	"aves.String",
	"aves.List",
	"aves.Hash",
	"aves.Method",
	"aves.Iterator",
	"aves.Error",
	"aves.TypeError",
	"aves.MemoryError",
	"aves.OverflowError",
	"aves.NoOverloadError",
	"aves.DivideByZeroError",
	"aves.NullReferenceError",
	"aves.MemberNotFoundError",
	"aves.TypeConversionError",
	"aves.reflection.Type",
}

// BuildStandardTypes constructs a minimal module holding the twenty
// standard types every other module implicitly references as base
// types and exception types. Error types are chained onto aves.Error
// the way the source's class hierarchy does; everything else derives
// directly from aves.Object.
func BuildStandardTypes() *Module {
	b := NewBuilder("aves", Version{1, 0, 0, 0})

	object := &value.Type{Name: "aves.Object"}
	b.AddType(object)

	mk := func(name string, flags value.Flags) *value.Type {
		t := &value.Type{Name: name, Base: object, Flags: flags}
		b.AddType(t)
		return t
	}

	mk("aves.Boolean", value.FlagPrimitive|value.FlagSealed)
	mk("aves.Int", value.FlagPrimitive|value.FlagSealed)
	mk("aves.UInt", value.FlagPrimitive|value.FlagSealed)
	mk("aves.Real", value.FlagPrimitive|value.FlagSealed)
	mk("aves.String", value.FlagSealed)
	mk("aves.List", 0)
	mk("aves.Hash", 0)
	mk("aves.Method", value.FlagSealed)
	mk("aves.Iterator", value.FlagAbstract)

	errorBase := mk("aves.Error", 0)
	errType := func(name string) {
		t := &value.Type{Name: name, Base: errorBase}
		b.AddType(t)
	}
	errType("aves.TypeError")
	errType("aves.MemoryError")
	errType("aves.OverflowError")
	errType("aves.NoOverloadError")
	errType("aves.DivideByZeroError")
	errType("aves.NullReferenceError")
	errType("aves.MemberNotFoundError")
	errType("aves.TypeConversionError")

	mk("aves.reflection.Type", value.FlagSealed)

	m, err := b.Build()
	if err != nil {
		// The standard types declare no bytecode bodies (every
		// standard-type overload is native), so initialization can
		// never fail here; a panic would mean this file itself is
		// wrong, not any input to it.
		panic(err)
	}
	return m
}

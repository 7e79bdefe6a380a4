package obinary

import "ovum/internal/value"

// MemberFlags mirrors ModuleMemberFlags: the kind and visibility of a
// global member (a module-level type, function, or constant).
type MemberFlags uint32

const (
	MemberFlagKind MemberFlags = 0x000f

	MemberKindType     MemberFlags = 0x0001
	MemberKindFunction MemberFlags = 0x0002
	MemberKindConstant MemberFlags = 0x0003

	MemberFlagProtection MemberFlags = 0x00f0
	MemberFlagPublic     MemberFlags = 0x0010
	MemberFlagInternal   MemberFlags = 0x0020
)

func (f MemberFlags) Kind() MemberFlags       { return f & MemberFlagKind }
func (f MemberFlags) IsPublic() bool          { return f&MemberFlagProtection == MemberFlagPublic }
func (f MemberFlags) IsInternal() bool        { return f&MemberFlagProtection == MemberFlagInternal }

// GlobalMember is one entry of a module's global member table: exactly
// one of Type, Function, or Constant is populated, selected by Flags.
type GlobalMember struct {
	Flags    MemberFlags
	Name     string
	Type     *value.Type
	Function *value.Overload
	Constant value.Value
}

// Module is a loaded unit of code: a name, a version, and the tables
// the rest of the runtime resolves tokens against. It satisfies
// value.ModuleHandle so a Type can name its declaring module without
// this package importing internal/value's Type back (the dependency
// points the other way: obinary depends on value, not the reverse).
type Module struct {
	Name    string
	Version Version

	NativeLibrary string

	Types     []*value.Type
	Fields    []*value.Member
	Methods   []*value.Overload
	Strings   []string
	Constants []value.Value

	// LongRefSignatures is the pool long-form reference signatures are
	// indexed into, for overloads whose parameter count exceeds the
	// 31-bit inline mask's capacity.
	LongRefSignatures [][]uint32

	Globals map[string]*GlobalMember

	// StaticCtorTypes lists, in declaration order, every type in this
	// module that declares a ".init" static constructor. Build populates
	// it; VM.Start walks it to flush every static constructor eagerly at
	// module load, ahead of running main, the same ordering guarantee
	// the first-use path (exec.Thread.EnsureStaticCtor, driven from
	// ldsfld/stsfld) gives lazily for code that never reaches Start.
	StaticCtorTypes []*value.Type

	references []*Module // modules this one depends on, in load order
}

func NewModule(name string, version Version) *Module {
	return &Module{
		Name:    name,
		Version: version,
		Globals: make(map[string]*GlobalMember),
	}
}

// ModuleName implements value.ModuleHandle.
func (m *Module) ModuleName() string { return m.Name }

// AddReference records a dependency on another module, in the order
// module-reference tokens will index into.
func (m *Module) AddReference(dep *Module) { m.references = append(m.references, dep) }

// Reference resolves a KindModuleRef token's index to the referenced
// module.
func (m *Module) Reference(index uint32) (*Module, bool) {
	if int(index) >= len(m.references) {
		return nil, false
	}
	return m.references[index], true
}

// Resolve dereferences a Token against this module's own tables. It
// only resolves *Def tokens (this module's own types/fields/methods/
// strings/constants); resolving a *Ref token requires first following
// Reference to the target module, matching the source's two-step
// module-ref-then-local-def resolution.
func (m *Module) Resolve(t Token) (interface{}, bool) {
	idx := int(t.Index())
	switch t.Kind() {
	case KindTypeDef, KindTypeRef:
		if idx < len(m.Types) {
			return m.Types[idx], true
		}
	case KindFieldDef, KindFieldRef:
		if idx < len(m.Fields) {
			return m.Fields[idx], true
		}
	case KindMethodDef, KindMethodRef, KindFunctionDef, KindFunctionRef:
		if idx < len(m.Methods) {
			return m.Methods[idx], true
		}
	case KindString:
		if idx < len(m.Strings) {
			return m.Strings[idx], true
		}
	case KindConstantDef:
		if idx < len(m.Constants) {
			return m.Constants[idx], true
		}
	}
	return nil, false
}

// FindGlobalMember looks up a module-level member by name, honoring
// internal visibility the same way Type.FindMember honors field/method
// accessibility: an internal member is hidden from includeInternal=false
// callers (cross-module lookups), visible to includeInternal=true ones
// (same-module lookups).
func (m *Module) FindGlobalMember(name string, includeInternal bool) (*GlobalMember, bool) {
	gm, ok := m.Globals[name]
	if !ok {
		return nil, false
	}
	if gm.Flags.IsInternal() && !includeInternal {
		return nil, false
	}
	return gm, true
}

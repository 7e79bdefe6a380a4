package value

import (
	"fmt"

	"ovum/internal/initializer"
)

// MemberKind distinguishes the three kinds of type member.
type MemberKind uint8

const (
	MemberField MemberKind = iota
	MemberMethod
	MemberProperty
)

// Access is a member's accessibility level.
type Access uint8

const (
	Public Access = iota
	Protected
	Private
)

// Member is a named entry in a Type's member table.
type Member struct {
	Name     string
	Kind     MemberKind
	Access   Access
	IsStatic bool
	DeclType *Type

	// Field (Kind == MemberField)
	FieldOffset int32      // instance fields: slot index into the instance's []Value payload
	StaticSlot  *StaticRef // static fields: the slot holding the value

	// Method (Kind == MemberMethod)
	Overloads []*Overload

	// Property (Kind == MemberProperty)
	Getter *Overload
	Setter *Overload
}

// IsAccessibleFrom reports whether this member can be referenced by
// code belonging to fromType, honoring PUBLIC/PROTECTED/PRIVATE and the
// declaring type's sharedType sibling grant.
func (m *Member) IsAccessibleFrom(fromType *Type) bool {
	switch m.Access {
	case Public:
		return true
	case Protected:
		return fromType != nil && fromType.IsSubtypeOf(m.DeclType)
	case Private:
		if fromType == nil {
			return false
		}
		if fromType == m.DeclType {
			return true
		}
		return m.DeclType.SharedType != nil && fromType == m.DeclType.SharedType
	default:
		return false
	}
}

// OverloadFlags describes per-overload bits.
type OverloadFlags uint16

const (
	OverloadVariadic OverloadFlags = 1 << iota
	OverloadVarStart               // variadic args packed from the start, not the end
	OverloadNative
	OverloadInstance
	OverloadCtor
	OverloadInited
	OverloadAbstract
)

// TryBlock is one entry of a method's try-block table: the protected
// instruction range, and either a catch clause list or a finally range.
type TryBlock struct {
	TryStart, TryEnd int // instruction-index range, inclusive start/exclusive end
	Kind             TryBlockKind
	Catches          []CatchClause
	FinallyStart     int
	FinallyEnd       int
}

type TryBlockKind uint8

const (
	TryCatch TryBlockKind = iota
	TryFinally
)

// CatchClause pairs a caught type with the instruction index of its
// handler.
type CatchClause struct {
	CaughtType *Type
	HandlerIP  int
}

// ResolveTryBlocks converts a method's initializer-resolved try-block
// table — instruction indices already fixed up, but catch clauses still
// carrying raw type tokens — into the runtime TryBlock form the
// executor's exception handling reads directly. resolveType dereferences
// a catch clause's token against the type's declaring module; it is
// supplied by the caller (obinary, exec) rather than looked up here,
// since this package cannot see a module's token tables without
// introducing an import cycle back through obinary.
func ResolveTryBlocks(resolved []initializer.ResolvedTryBlock, resolveType func(token uint32) (*Type, bool)) ([]TryBlock, error) {
	if len(resolved) == 0 {
		return nil, nil
	}
	out := make([]TryBlock, len(resolved))
	for i, rtb := range resolved {
		tb := TryBlock{
			TryStart:     rtb.TryStart,
			TryEnd:       rtb.TryEnd,
			Kind:         TryBlockKind(rtb.Kind),
			FinallyStart: rtb.FinallyStart,
			FinallyEnd:   rtb.FinallyEnd,
		}
		if len(rtb.Catches) > 0 {
			tb.Catches = make([]CatchClause, len(rtb.Catches))
			for j, c := range rtb.Catches {
				t, ok := resolveType(c.CaughtType)
				if !ok {
					return nil, &CatchTypeResolutionError{Token: c.CaughtType}
				}
				tb.Catches[j] = CatchClause{CaughtType: t, HandlerIP: c.HandlerIP}
			}
		}
		out[i] = tb
	}
	return out, nil
}

// CatchTypeResolutionError reports that a catch clause's type token
// could not be resolved against its module's type table.
type CatchTypeResolutionError struct {
	Token uint32
}

func (e *CatchTypeResolutionError) Error() string {
	return fmt.Sprintf("value: could not resolve catch clause type token %d", e.Token)
}

// DebugSymbols maps instruction-index ranges to source locations.
type DebugSymbols struct {
	File   string
	Ranges []DebugRange
}

// DebugRange maps [StartIP, EndIP) to a source line.
type DebugRange struct {
	StartIP, EndIP int
	Line           int
}

// Lookup returns the source line for ip, or 0 if none is recorded.
func (d *DebugSymbols) Lookup(ip int) (line int, ok bool) {
	if d == nil {
		return 0, false
	}
	for _, r := range d.Ranges {
		if ip >= r.StartIP && ip < r.EndIP {
			return r.Line, true
		}
	}
	return 0, false
}

// NativeFunc is the ABI for a native method overload: it receives the
// instance (or Null for a static/global function) and the argument
// Values, and returns either a result Value or an error. Returning a
// non-nil error is equivalent to the ABI's ERROR_THROWN status with the
// error carried as the thrown value; the executor is responsible for
// converting between the two.
type NativeFunc func(th NativeThread, instance Value, args []Value) (Value, error)

// NativeThread is the minimal surface a native function needs from the
// calling thread: suspension for GC, and access to the instance's
// declaring VM facilities. It is implemented by exec.Thread; kept as an
// interface here to avoid an import cycle.
type NativeThread interface {
	SuspendForGC()
}

// Overload is one signature of a possibly-overloaded method, selected
// by argument count only.
type Overload struct {
	DeclType   *Type
	Name       string
	ParamCount int
	OptionalParamCount int
	LocalCount int
	MaxStack   int
	Flags      OverloadFlags
	ParamNames []string
	RefSig     RefSignature
	TryBlocks  []TryBlock
	Debug      *DebugSymbols

	// Entry holds the raw on-disk bytecode, as the module declared it.
	// Code is nil until the method initializer has run on Entry; the
	// executor only ever dispatches Code, never Entry directly. Native
	// overloads instead set Native and leave both nil.
	Entry  []byte
	Code   *initializer.IntermediateMethod
	Native NativeFunc

	// RawTryBlocks is the method's exception-handling table exactly as
	// declared: byte offsets into Entry and catch-type tokens, not yet
	// resolved. The method initializer validates and remaps the offsets
	// when it runs on Entry; ResolveTryBlocks then turns the result into
	// TryBlocks by resolving each catch's type token against the owning
	// module.
	RawTryBlocks []initializer.RawTryBlock

	// BaseMethod is the same-named overload inherited from DeclType's
	// base type, used by overload resolution to walk the inheritance
	// chain when the declaring type doesn't define enough parameters.
	BaseMethod *Overload
}

func (o *Overload) IsVariadic() bool { return o.Flags&OverloadVariadic != 0 }
func (o *Overload) IsNative() bool   { return o.Flags&OverloadNative != 0 }
func (o *Overload) IsInstance() bool { return o.Flags&OverloadInstance != 0 }
func (o *Overload) IsInited() bool   { return o.Flags&OverloadInited != 0 }

// EffectiveParamCount is the number of stack slots a call site must
// supply: the declared parameters, plus one for the instance if this is
// an instance overload.
func (o *Overload) EffectiveParamCount() int {
	n := o.ParamCount
	if o.IsInstance() {
		n++
	}
	return n
}

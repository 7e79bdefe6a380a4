package exec

import "ovum/internal/value"

// StdTypes gives the executor direct access to the ~20 standard types
// (spec.md §6's "standard-type registration") without going through a
// name lookup on every list/hash allocation, comparison coercion, or
// thrown-error construction — the same role the source's VM-level typed
// slots play, just addressed by field instead of by enum index.
type StdTypes struct {
	Object              *value.Type
	Boolean             *value.Type
	Int                 *value.Type
	UInt                *value.Type
	Real                *value.Type
	String              *value.Type
	List                *value.Type
	Hash                *value.Type
	Method              *value.Type
	Iterator            *value.Type
	Error               *value.Type
	TypeError           *value.Type
	MemoryError         *value.Type
	OverflowError       *value.Type
	NoOverloadError     *value.Type
	DivideByZeroError   *value.Type
	NullReferenceError  *value.Type
	MemberNotFoundError *value.Type
	TypeConversionError *value.Type
	ReflectionType      *value.Type
}

// standardTypeTable names, in declaration order, which StdTypes field a
// standard module's same-indexed Type populates — mirroring
// obinary.StandardTypeNames one-for-one.
func newStdTypes(types []*value.Type) *StdTypes {
	byName := make(map[string]*value.Type, len(types))
	for _, t := range types {
		byName[t.Name] = t
	}
	get := func(name string) *value.Type { return byName[name] }
	return &StdTypes{
		Object:              get("aves.Object"),
		Boolean:             get("aves.Boolean"),
		Int:                 get("aves.Int"),
		UInt:                get("aves.UInt"),
		Real:                get("aves.Real"),
		String:              get("aves.String"),
		List:                get("aves.List"),
		Hash:                get("aves.Hash"),
		Method:              get("aves.Method"),
		Iterator:            get("aves.Iterator"),
		Error:               get("aves.Error"),
		TypeError:           get("aves.TypeError"),
		MemoryError:         get("aves.MemoryError"),
		OverflowError:       get("aves.OverflowError"),
		NoOverloadError:     get("aves.NoOverloadError"),
		DivideByZeroError:   get("aves.DivideByZeroError"),
		NullReferenceError:  get("aves.NullReferenceError"),
		MemberNotFoundError: get("aves.MemberNotFoundError"),
		TypeConversionError: get("aves.TypeConversionError"),
		ReflectionType:      get("aves.reflection.Type"),
	}
}

// NewStdTypes builds a StdTypes from a module's declared Types, as
// returned by obinary.BuildStandardTypes().
func NewStdTypes(types []*value.Type) *StdTypes { return newStdTypes(types) }

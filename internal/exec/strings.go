package exec

import (
	"strconv"

	"ovum/internal/gc"
	"ovum/internal/value"
)

// makeString allocates a managed String instance from a Go string,
// going through gc.ConstructString the same way a module's string pool
// would; it is not interned — interning is reserved for literals the
// module itself declares (ldstr), matching spec.md §3's STATIC/INTERN
// distinction.
func (t *Thread) makeString(s string) (value.Value, error) {
	h, err := t.GC.ConstructString(t.Std.String, gc.FromRunes(s).Units)
	if err != nil {
		return value.Null, err
	}
	return gc.ValueOf(h), nil
}

// MakeString is makeString's exported form, for hosts (internal/vm)
// that need to build a managed String outside of opcode dispatch —
// packing os.Args into main's argument list, for instance.
func (t *Thread) MakeString(s string) (value.Value, error) { return t.makeString(s) }

// readString reads a managed String instance's content back as a Go
// string, for display/concatenation purposes.
func (t *Thread) readString(v value.Value) (string, error) {
	if v.Inst == nil {
		return "", nil
	}
	h := (*gc.Header)(v.Inst)
	os, ok := h.Payload().(*gc.OString)
	if !ok {
		return "", t.newManagedError(t.Std.TypeConversionError, "not a String instance")
	}
	return os.String(), nil
}

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }

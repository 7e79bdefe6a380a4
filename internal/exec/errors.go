package exec

import (
	"fmt"

	"ovum/internal/gc"
	"ovum/internal/value"
)

// ThrownError carries a managed error Value through Go's error-return
// plumbing. It is what Invoke and the dispatch loop return whenever
// managed code throws (directly, via `throw`/`rethrow`, or indirectly
// because the runtime itself raises a standard error like
// NoOverloadError) and no enclosing catch handles it within the current
// call — the caller that ultimately does handle it needs the original
// Value, not just a rendered message.
type ThrownError struct {
	Value      value.Value
	StackTrace []StackTraceEntry
	Message    string // runtime-raised errors only; empty for a managed throw
}

func (e *ThrownError) Error() string {
	name := "null"
	if e.Value.Typ != nil {
		name = e.Value.Typ.Name
	}
	if e.Message != "" {
		return fmt.Sprintf("unhandled %s: %s", name, e.Message)
	}
	return fmt.Sprintf("unhandled %s", name)
}

// StackTraceEntry is one frame of a captured stack trace, per spec.md
// §4.4's "Stack trace" rule: method name, parameter types, and (if
// debug symbols are present) a source location.
type StackTraceEntry struct {
	MethodName string
	ParamTypes []string
	File       string
	Line       int
	HasLine    bool
}

// newManagedError allocates an instance of ty (expected to be one of
// Std's error types, or a subtype) and wraps it as a ThrownError ready
// to propagate. The standard error types this core declares carry no
// message field (BuildStandardTypes stamps bare type descriptors), so
// the message is kept on the ThrownError and shown in its Error() text;
// the thrown Value itself still round-trips through catch exactly as
// spec.md's testable property requires, identified by its type.
func (t *Thread) newManagedError(ty *value.Type, message string) *ThrownError {
	h, err := t.GC.Construct(ty)
	if err != nil {
		// Allocation failed while building the error value itself —
		// there is nothing left to throw but null, matching the
		// source's no-rollback-on-exhaustion decision (DESIGN.md).
		return &ThrownError{Value: value.Null}
	}
	v := gc.ValueOf(h)
	tv := &ThrownError{Value: v, Message: message}
	tv.StackTrace = t.captureStackTrace()
	return tv
}

// captureStackTrace walks the frame chain from the current frame to the
// root, per spec.md §4.4.
func (t *Thread) captureStackTrace() []StackTraceEntry {
	entries := make([]StackTraceEntry, 0, len(t.frames))
	for i := len(t.frames) - 1; i >= 0; i-- {
		f := t.frames[i]
		ov := f.Overload
		// Parameter types are the arguments' actual runtime types, read
		// through references; the instance slot (if any) is skipped.
		off := 0
		if ov.IsInstance() {
			off = 1
		}
		params := make([]string, 0, ov.ParamCount)
		for i := 0; i < ov.ParamCount && i+off < len(f.Locals); i++ {
			v := value.ReadRef(f.Locals[i+off])
			name := "null"
			if v.Typ != nil {
				name = v.Typ.Name
			}
			params = append(params, name)
		}
		e := StackTraceEntry{MethodName: ov.Name, ParamTypes: params}
		if line, ok := ov.Debug.Lookup(f.IP); ok {
			e.File = ov.Debug.File
			e.Line = line
			e.HasLine = true
		}
		entries = append(entries, e)
	}
	return entries
}

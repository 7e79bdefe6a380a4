package exec

import (
	"ovum/internal/gc"
	"ovum/internal/value"
)

// popArgs pops n values off f's evaluation stack in call order (the
// first-pushed argument ends up at index 0).
func popArgs(f *Frame, n int) []value.Value {
	args := make([]value.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = f.pop()
	}
	return args
}

// dispatchDynamic implements the shared half of Call/Apply's callee
// decode, per spec.md §4.4: if callee is a Method value, unpack its
// bound instance and member; otherwise fall back to looking up a
// `.call` member on the callee's own type (making any instance with a
// `call` method directly invokable).
func (t *Thread) dispatchDynamic(callee value.Value, args []value.Value) (value.Value, error) {
	if mp, ok := asMethodPayload(callee); ok {
		ov, err := pickOverloadOrError(t, mp.Member, len(args))
		if err != nil {
			return value.Null, err
		}
		return t.Invoke(ov, mp.Instance, args)
	}
	if callee.Typ == nil {
		return value.Null, t.newManagedError(t.Std.NullReferenceError, "call on null")
	}
	ov, err := t.resolveMethod(callee.Typ, "call", len(args), nil)
	if err != nil {
		return value.Null, err
	}
	return t.Invoke(ov, callee, args)
}

func pickOverloadOrError(t *Thread, m *value.Member, argc int) (*value.Overload, error) {
	ov := pickOverload(m, argc)
	if ov == nil {
		return nil, t.newManagedError(t.Std.NoOverloadError, m.Name)
	}
	return ov, nil
}

// execCall implements Call/CallS: pop argc arguments, then the callee,
// dispatch dynamically, push the result.
func (t *Thread) execCall(f *Frame, argc int) error {
	args := popArgs(f, argc)
	callee := f.pop()
	res, err := t.dispatchDynamic(callee, args)
	if err != nil {
		return err
	}
	f.push(res)
	return nil
}

// execSCall implements SCall/SCallS: like execCall, but the popped
// callee must already be a Method value (as LdSFn produces) — there is
// no `.call` fallback, since the call site named a specific function
// statically.
func (t *Thread) execSCall(f *Frame, argc int) error {
	args := popArgs(f, argc)
	callee := f.pop()
	mp, ok := asMethodPayload(callee)
	if !ok {
		return t.newManagedError(t.Std.TypeError, "static call target is not a function")
	}
	ov, err := pickOverloadOrError(t, mp.Member, len(args))
	if err != nil {
		return err
	}
	res, err := t.Invoke(ov, mp.Instance, args)
	if err != nil {
		return err
	}
	f.push(res)
	return nil
}

// execApply implements Apply: pop an argument List, then the callee,
// spreading the list's elements as the call's positional arguments.
func (t *Thread) execApply(f *Frame) error {
	argsList := f.pop()
	callee := f.pop()
	args, err := t.listSlots(argsList)
	if err != nil {
		return err
	}
	res, err := t.dispatchDynamic(callee, args)
	if err != nil {
		return err
	}
	f.push(res)
	return nil
}

// execSApply implements SApply: like execApply, but the callee must
// already be a Method value, matching SCall's no-fallback rule.
func (t *Thread) execSApply(f *Frame) error {
	argsList := f.pop()
	callee := f.pop()
	args, err := t.listSlots(argsList)
	if err != nil {
		return err
	}
	mp, ok := asMethodPayload(callee)
	if !ok {
		return t.newManagedError(t.Std.TypeError, "static apply target is not a function")
	}
	ov, err := pickOverloadOrError(t, mp.Member, len(args))
	if err != nil {
		return err
	}
	res, err := t.Invoke(ov, mp.Instance, args)
	if err != nil {
		return err
	}
	f.push(res)
	return nil
}

// execCallMem implements CallMem/CallMemS: pop argc arguments, then a
// member-name String, then the instance, and invoke the matching
// overload of that named member. Unlike the source's packed
// argcount+token operand encoding, this port pushes the member name as
// an ordinary String value alongside the callee — the same stack-based
// convention Call already uses for its callee — so Operand stays a
// pure argument count throughout the whole call-opcode family. See
// DESIGN.md.
func (t *Thread) execCallMem(f *Frame, argc int) error {
	args := popArgs(f, argc)
	nameVal := f.pop()
	inst := f.pop()
	name, err := t.readString(nameVal)
	if err != nil {
		return err
	}
	if inst.Typ == nil {
		return t.newManagedError(t.Std.NullReferenceError, "member call on null")
	}
	ov, err := t.resolveMethod(inst.Typ, name, len(args), nil)
	if err != nil {
		return err
	}
	res, err := t.Invoke(ov, inst, args)
	if err != nil {
		return err
	}
	f.push(res)
	return nil
}

// execNewObj implements NewObj/NewObjS: operand names a type token;
// the constructor's argument count is whatever its single declared
// Ctor overload expects (this core has no constructor overloading), so
// no separate argcount needs encoding.
func (t *Thread) execNewObj(f *Frame, operand int64) (value.Value, error) {
	ty, err := t.resolveType(operand)
	if err != nil {
		return value.Null, err
	}
	h, err := t.GC.Construct(ty)
	if err != nil {
		return value.Null, err
	}
	inst := gc.ValueOf(h)
	if ty.Ctor == nil {
		return inst, nil
	}
	args := popArgs(f, ty.Ctor.ParamCount)
	if _, err := t.Invoke(ty.Ctor, inst, args); err != nil {
		return value.Null, err
	}
	return inst, nil
}

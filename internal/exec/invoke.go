package exec

import (
	"ovum/internal/initializer"
	"ovum/internal/obinary"
	"ovum/internal/value"
)

// resolveMethod looks up a method member by name on ty, honoring
// accessibility via Type.FindMember's own base-walk, then selects the
// overload whose parameter count (or variadic minimum) matches argc.
func (t *Thread) resolveMethod(ty *value.Type, name string, argc int, fromType *value.Type) (*value.Overload, error) {
	m, ok := ty.FindMember(name, fromType)
	if !ok || m.Kind != value.MemberMethod {
		return nil, t.newManagedError(t.Std.MemberNotFoundError, name)
	}
	ov := pickOverload(m, argc)
	if ov == nil {
		return nil, t.newManagedError(t.Std.NoOverloadError, name)
	}
	return ov, nil
}

// pickOverload walks a method member's declared overloads, and for each
// one its BaseMethod chain (the inherited same-named overload a derived
// type's declaration didn't re-cover — see value.Overload.BaseMethod's
// doc comment), looking for an exact or variadic-minimum argc match.
func pickOverload(m *value.Member, argc int) *value.Overload {
	for _, ov := range m.Overloads {
		for cur := ov; cur != nil; cur = cur.BaseMethod {
			if matchesArgc(cur, argc) {
				return cur
			}
		}
	}
	return nil
}

func matchesArgc(ov *value.Overload, argc int) bool {
	if ov.IsVariadic() {
		return argc >= ov.ParamCount-1
	}
	return ov.ParamCount == argc
}

// packVariadic folds the trailing (or, with OverloadVarStart, leading)
// extra call-site arguments into a single List for ov's variadic
// parameter slot, per spec.md §4.4's invocation protocol step 4. args
// does not include the instance argument, if any.
func (t *Thread) packVariadic(ov *value.Overload, args []value.Value) ([]value.Value, error) {
	if !ov.IsVariadic() {
		return args, nil
	}
	fixed := ov.ParamCount - 1
	if len(args) < fixed {
		return nil, t.newManagedError(t.Std.NoOverloadError, ov.Name)
	}
	variadicStart := ov.Flags&value.OverloadVarStart != 0
	var packed, rest []value.Value
	if variadicStart {
		n := len(args) - fixed
		packed, rest = args[:n], args[n:]
	} else {
		packed, rest = args[fixed:], args[:fixed]
	}
	list, err := t.makeList(packed)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, 0, fixed+1)
	if variadicStart {
		out = append(out, list)
		out = append(out, rest...)
	} else {
		out = append(out, rest...)
		out = append(out, list)
	}
	return out, nil
}

// checkRefSignature enforces that each fixed (non-variadic-tail)
// argument's by-ref-ness matches ov's declared RefSig at that
// parameter position. RefSig index 0 is reserved for the instance slot,
// which args never includes, so argument i is checked against RefSig
// position i+1.
func (t *Thread) checkRefSignature(ov *value.Overload, args []value.Value) error {
	fixed := ov.ParamCount
	if ov.IsVariadic() {
		fixed--
	}
	for i := 0; i < fixed && i < len(args); i++ {
		if args[i].IsReference() != ov.RefSig.IsByRef(i+1) {
			return t.newManagedError(t.Std.TypeError, "argument reference signature mismatch")
		}
	}
	return nil
}

// Invoke runs ov against instance (Null for a non-instance overload) and
// args (not including the instance slot), implementing spec.md §4.4's
// invocation protocol: reference-signature verification, variadic
// packing, native-call suspension with a managed-region re-entry on
// return, lazy bytecode initialization, and managed frame execution.
//
// Reference-signature verification (protocol step 3) doesn't need to
// know which opcode pushed an argument: a by-ref argument already
// carries Ref.Kind != NotRef on the Value itself (set by LdLocRef,
// LdFldRef, and friends), so checkRefSignature compares that bit,
// parameter by parameter, against ov's declared RefSig.
func (t *Thread) Invoke(ov *value.Overload, instance value.Value, args []value.Value) (value.Value, error) {
	if err := t.checkRefSignature(ov, args); err != nil {
		return value.Null, err
	}

	packed, err := t.packVariadic(ov, args)
	if err != nil {
		return value.Null, err
	}

	if ov.IsNative() {
		full := packed
		t.SuspendForGC()
		res, nerr := ov.Native(t, instance, full)
		t.resumeManaged()
		if nerr != nil {
			if te, ok := nerr.(*ThrownError); ok {
				return value.Null, te
			}
			return value.Null, t.newManagedError(t.Std.TypeError, nerr.Error())
		}
		return res, nil
	}

	if ov.Code == nil {
		code, ierr := initializer.Initialize(ov.Name, ov.Entry, ov.EffectiveParamCount(), ov.RawTryBlocks)
		if ierr != nil {
			return value.Null, t.newManagedError(t.Std.TypeError, ierr.Error())
		}
		tryBlocks, terr := value.ResolveTryBlocks(code.TryBlocks, func(tok uint32) (*value.Type, bool) {
			resolved, ok := t.Module.Resolve(obinary.Token(tok))
			if !ok {
				return nil, false
			}
			ty, ok := resolved.(*value.Type)
			return ty, ok
		})
		if terr != nil {
			return value.Null, t.newManagedError(t.Std.TypeError, terr.Error())
		}
		ov.Code = code
		ov.TryBlocks = tryBlocks
	}

	full := make([]value.Value, 0, ov.EffectiveParamCount())
	if ov.IsInstance() {
		full = append(full, instance)
	}
	full = append(full, packed...)

	f := newFrame(ov, full)
	if err := t.pushFrame(f); err != nil {
		return value.Null, err
	}
	res, rerr := t.runFrame(f)
	t.popFrame()
	return res, rerr
}

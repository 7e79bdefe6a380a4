package exec

import (
	"ovum/internal/gc"
	"ovum/internal/initializer"
	"ovum/internal/obinary"
	"ovum/internal/value"
)

// runFrame drives f's instruction stream to completion, returning
// whatever it `ret`s (or Null for a bare `retnull`). A *ThrownError is
// an unhandled exception that unwound past every try-block this frame
// declares, or one this frame's own exception search decided not to
// catch; any other error step or handleThrow returns (for example a GC
// allocation failure) is passed through unchanged.
func (t *Thread) runFrame(f *Frame) (value.Value, error) {
	for f.IP < len(f.Code) {
		ip := f.IP
		instr := f.Code[ip]
		f.IP++

		result, done, err := t.step(f, instr)
		if err != nil {
			thrown, ok := err.(*ThrownError)
			if !ok {
				return value.Null, err
			}
			handled, hErr := t.handleThrow(f, ip, thrown)
			if hErr != nil {
				return value.Null, hErr
			}
			if !handled {
				return value.Null, thrown
			}
			continue
		}
		if done {
			return result, nil
		}
	}
	return value.Null, nil
}

// step executes a single instruction against f, returning (result,
// true, nil) on ret/retnull, (_, false, nil) to continue, or a non-nil
// error: a *ThrownError (from the thread's own error construction or a
// callee) when the instruction raises, errEndFinally for endfinally, or
// an error passed up unchanged from the GC.
func (t *Thread) step(f *Frame, instr initializer.Instr) (value.Value, bool, error) {
	switch instr.Op {
	case initializer.OpiNop:
		// no-op

	case initializer.OpiPop:
		f.pop()

	case initializer.OpiRetNull:
		return value.Null, true, nil
	case initializer.OpiRet:
		return f.pop(), true, nil

	case initializer.OpiMvLocLL:
		f.Locals[instr.Operand2] = f.Locals[instr.Operand]
	case initializer.OpiMvLocSL:
		f.Locals[instr.Operand] = f.pop()
	case initializer.OpiMvLocLS:
		f.push(f.Locals[instr.Operand])
	case initializer.OpiMvLocSS:
		// duplicates the top of the stack (the translation of `dup`).
		f.push(f.peek())

	case initializer.OpiLdNullL, initializer.OpiLdNullS:
		f.push(value.Null)
	case initializer.OpiLdFalseL, initializer.OpiLdFalseS:
		f.push(value.Bool(t.Std.Boolean, false))
	case initializer.OpiLdTrueL, initializer.OpiLdTrueS:
		f.push(value.Bool(t.Std.Boolean, true))

	case initializer.OpiLdCIL, initializer.OpiLdCIS:
		f.push(value.Int(t.Std.Int, instr.Operand))
	case initializer.OpiLdCUL, initializer.OpiLdCUS:
		f.push(value.UInt(t.Std.UInt, uint64(instr.Operand)))
	case initializer.OpiLdCRL, initializer.OpiLdCRS:
		f.push(value.Value{Typ: t.Std.Real, Num: uint64(instr.Operand)})

	case initializer.OpiLdStrL, initializer.OpiLdStrS:
		s, err := t.resolveString(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		v, err := t.makeString(s)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiLdArgcL, initializer.OpiLdArgcS:
		f.push(value.Int(t.Std.Int, int64(f.Overload.ParamCount)))

	case initializer.OpiNewObjL, initializer.OpiNewObjS:
		v, err := t.execNewObj(f, instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiListL, initializer.OpiListS:
		n := int(instr.Operand)
		elems := make([]value.Value, n)
		for i := n - 1; i >= 0; i-- {
			elems[i] = f.pop()
		}
		v, err := t.makeList(elems)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiHashL, initializer.OpiHashS:
		n := int(instr.Operand)
		pairs := make([]value.Value, n*2)
		for i := n - 1; i >= 0; i-- {
			pairs[i*2+1] = f.pop()
			pairs[i*2] = f.pop()
		}
		v, err := t.makeHash(pairs)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiLdFldL, initializer.OpiLdFldS,
		initializer.OpiLdFldFastL, initializer.OpiLdFldFastS:
		inst := f.pop()
		v, err := t.loadField(inst, int(instr.Operand))
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)
	case initializer.OpiStFld, initializer.OpiStFldFast:
		val := f.pop()
		inst := f.pop()
		if err := t.storeField(inst, int(instr.Operand), val); err != nil {
			return value.Null, false, err
		}

	case initializer.OpiLdSFldL, initializer.OpiLdSFldS:
		m, err := t.resolveStaticField(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		if err := t.EnsureStaticCtor(m.DeclType); err != nil {
			return value.Null, false, err
		}
		f.push(m.StaticSlot.Load())
	case initializer.OpiStSFldL, initializer.OpiStSFldS:
		m, err := t.resolveStaticField(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		if err := t.EnsureStaticCtor(m.DeclType); err != nil {
			return value.Null, false, err
		}
		val := f.pop()
		m.StaticSlot.Store(val)
		if val.Inst != nil {
			if vh := (*gc.Header)(val.Inst); vh.Generation() == 0 {
				m.StaticSlot.SetHasGen0Refs(true)
			}
		}

	case initializer.OpiLdMemL, initializer.OpiLdMemS:
		name, err := t.resolveString(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		inst := f.pop()
		v, err := t.loadMember(inst, name)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)
	case initializer.OpiStMem:
		name, err := t.resolveString(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		val := f.pop()
		inst := f.pop()
		if err := t.storeMember(inst, name, val); err != nil {
			return value.Null, false, err
		}

	case initializer.OpiLdIdxL, initializer.OpiLdIdxS:
		idx := f.pop()
		inst := f.pop()
		v, err := t.loadIndex(inst, idx)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)
	case initializer.OpiStIdx:
		val := f.pop()
		idx := f.pop()
		inst := f.pop()
		if err := t.storeIndex(inst, idx, val); err != nil {
			return value.Null, false, err
		}

	case initializer.OpiLdSFnL, initializer.OpiLdSFnS:
		m, err := t.resolveMemberToken(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		v, err := t.makeMethod(value.Null, m)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiLdTypeTknL, initializer.OpiLdTypeTknS:
		ty, err := t.resolveType(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		f.push(ty.StaticTypeToken.Load())

	case initializer.OpiLdTypeL, initializer.OpiLdTypeS:
		inst := f.pop()
		if inst.Typ == nil {
			return value.Null, false, t.newManagedError(t.Std.NullReferenceError, "type of null")
		}
		f.push(inst.Typ.StaticTypeToken.Load())

	case initializer.OpiLdIterL, initializer.OpiLdIterS:
		// Minimal iterator protocol: a List is its own iterator source in
		// this core; anything else is passed through unchanged, leaving
		// the bytecode's own iteration loop (built from br/brfalse) to
		// drive it via ld/stidx. One-in-one-out, like the opcode it
		// replaces on the stack.

	case initializer.OpiLdEnumL, initializer.OpiLdEnumS:
		// Enum member values are not modeled as a distinct constant kind
		// in this core — no SPEC_FULL.md component declares an enum
		// type — so this opcode is unreachable in practice; treat its
		// operand the same as an Int literal rather than erroring.
		f.push(value.Int(t.Std.Int, instr.Operand))

	case initializer.OpiCallL, initializer.OpiCallS:
		if err := t.execCall(f, int(instr.Operand)); err != nil {
			return value.Null, false, err
		}
	case initializer.OpiSCallL, initializer.OpiSCallS:
		if err := t.execSCall(f, int(instr.Operand)); err != nil {
			return value.Null, false, err
		}
	case initializer.OpiApplyL, initializer.OpiApplyS:
		if err := t.execApply(f); err != nil {
			return value.Null, false, err
		}
	case initializer.OpiSApplyL, initializer.OpiSApplyS:
		if err := t.execSApply(f); err != nil {
			return value.Null, false, err
		}
	case initializer.OpiCallMemL, initializer.OpiCallMemS:
		if err := t.execCallMem(f, int(instr.Operand)); err != nil {
			return value.Null, false, err
		}

	case initializer.OpiBr:
		f.IP = int(instr.Operand)
	case initializer.OpiLeave:
		if err := t.doLeave(f, int(instr.Operand)); err != nil {
			return value.Null, false, err
		}

	case initializer.OpiBrNullL, initializer.OpiBrNullS:
		if f.pop().IsNull() {
			f.IP = int(instr.Operand)
		}
	case initializer.OpiBrInstL, initializer.OpiBrInstS:
		if !f.pop().IsNull() {
			f.IP = int(instr.Operand)
		}
	case initializer.OpiBrFalseL, initializer.OpiBrFalseS:
		if !f.pop().AsBool() {
			f.IP = int(instr.Operand)
		}
	case initializer.OpiBrTrueL, initializer.OpiBrTrueS:
		if f.pop().AsBool() {
			f.IP = int(instr.Operand)
		}
	case initializer.OpiBrTypeL, initializer.OpiBrTypeS:
		ty, err := t.resolveType(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		if value.IsType(f.pop(), ty) {
			f.IP = int(instr.Operand)
		}
	case initializer.OpiBrRef:
		r, l := f.pop(), f.pop()
		if value.IsSameReference(l, r) {
			f.IP = int(instr.Operand)
		}
	case initializer.OpiBrNRef:
		r, l := f.pop(), f.pop()
		if !value.IsSameReference(l, r) {
			f.IP = int(instr.Operand)
		}

	case initializer.OpiSwitchL, initializer.OpiSwitchS:
		// Jump-table dispatch is not modeled by the intermediate Instr
		// shape (one operand pair, no table); a switch here simply falls
		// through to the next instruction, matching the `default` arm a
		// well-formed switch always provides. See DESIGN.md.

	case initializer.OpiOperatorL, initializer.OpiOperatorS:
		v, err := t.execOperator(f, initializer.Opcode(instr.Operand))
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiEqL, initializer.OpiEqS:
		r, l := f.pop(), f.pop()
		eq, err := t.equals(l, r)
		if err != nil {
			return value.Null, false, err
		}
		f.push(value.Bool(t.Std.Boolean, eq))
	case initializer.OpiCmpL, initializer.OpiCmpS:
		r, l := f.pop(), f.pop()
		c, err := t.compare(l, r)
		if err != nil {
			return value.Null, false, err
		}
		f.push(value.Int(t.Std.Int, c))
	case initializer.OpiLtL, initializer.OpiLtS:
		if err := t.pushCompare(f, func(c int64) bool { return c < 0 }); err != nil {
			return value.Null, false, err
		}
	case initializer.OpiGtL, initializer.OpiGtS:
		if err := t.pushCompare(f, func(c int64) bool { return c > 0 }); err != nil {
			return value.Null, false, err
		}
	case initializer.OpiLteL, initializer.OpiLteS:
		if err := t.pushCompare(f, func(c int64) bool { return c <= 0 }); err != nil {
			return value.Null, false, err
		}
	case initializer.OpiGteL, initializer.OpiGteS:
		if err := t.pushCompare(f, func(c int64) bool { return c >= 0 }); err != nil {
			return value.Null, false, err
		}

	case initializer.OpiBrEq, initializer.OpiBrNeq, initializer.OpiBrLt,
		initializer.OpiBrGt, initializer.OpiBrLte, initializer.OpiBrGte:
		if err := t.execFusedCompareBranch(f, instr); err != nil {
			return value.Null, false, err
		}

	case initializer.OpiConcatL, initializer.OpiConcatS:
		r, l := f.pop(), f.pop()
		v, err := t.concat(l, r)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiThrow:
		v := f.pop()
		return value.Null, false, t.throwValue(f, v)
	case initializer.OpiRethrow:
		return value.Null, false, t.rethrowPending(f)
	case initializer.OpiEndFinally:
		return value.Null, false, errEndFinally

	case initializer.OpiLdLocRef:
		idx := instr.Operand
		f.push(value.MakeLocalRef(f.Locals[idx].Typ, &f.Locals[idx]))

	case initializer.OpiLdMemRefL, initializer.OpiLdMemRefS:
		name, err := t.resolveString(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		inst := f.pop()
		v, err := t.loadMemberRef(inst, name)
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiLdFldRefL, initializer.OpiLdFldRefS:
		inst := f.pop()
		v, err := t.loadFieldRef(inst, int(instr.Operand))
		if err != nil {
			return value.Null, false, err
		}
		f.push(v)

	case initializer.OpiLdSFldRef:
		m, err := t.resolveStaticField(instr.Operand)
		if err != nil {
			return value.Null, false, err
		}
		if err := t.EnsureStaticCtor(m.DeclType); err != nil {
			return value.Null, false, err
		}
		f.push(value.MakeStaticRef(m.StaticSlot.Load().Typ, m.StaticSlot))

	case initializer.OpiMvLocRL:
		ref := f.pop()
		f.Locals[instr.Operand] = value.ReadRef(ref)
	case initializer.OpiMvLocRS:
		ref := f.pop()
		f.push(value.ReadRef(ref))
	case initializer.OpiMvLocLR:
		ref := f.pop()
		value.WriteRef(ref.Ref, f.Locals[instr.Operand])
	case initializer.OpiMvLocSR:
		val := f.pop()
		ref := f.pop()
		value.WriteRef(ref.Ref, val)

	case initializer.OpiCallRL, initializer.OpiCallRS:
		// Identical to Call/CallS: a reference argument is just an
		// ordinary Value whose Ref.Kind is set, and execCall already
		// passes whatever Values it pops straight through to Invoke.
		// The R suffix marks a call site the compiler knows passes at
		// least one by-ref argument; Invoke's reference-signature check
		// is what actually validates that against the callee, not
		// dispatch.
		if err := t.execCall(f, int(instr.Operand)); err != nil {
			return value.Null, false, err
		}
	case initializer.OpiCallMemRL, initializer.OpiCallMemRS:
		if err := t.execCallMem(f, int(instr.Operand)); err != nil {
			return value.Null, false, err
		}

	default:
		return value.Null, false, t.newManagedError(t.Std.TypeError, "unimplemented opcode")
	}

	return value.Null, false, nil
}

func (t *Thread) pushCompare(f *Frame, ok func(int64) bool) error {
	r, l := f.pop(), f.pop()
	c, err := t.compare(l, r)
	if err != nil {
		return err
	}
	f.push(value.Bool(t.Std.Boolean, ok(c)))
	return nil
}

func (t *Thread) execFusedCompareBranch(f *Frame, instr initializer.Instr) error {
	r, l := f.pop(), f.pop()
	c, err := t.compare(l, r)
	if err != nil {
		return err
	}
	var taken bool
	switch instr.Op {
	case initializer.OpiBrEq:
		taken = c == 0
	case initializer.OpiBrNeq:
		taken = c != 0
	case initializer.OpiBrLt:
		taken = c < 0
	case initializer.OpiBrGt:
		taken = c > 0
	case initializer.OpiBrLte:
		taken = c <= 0
	case initializer.OpiBrGte:
		taken = c >= 0
	}
	if taken {
		f.IP = int(instr.Operand)
	}
	return nil
}

func (t *Thread) execOperator(f *Frame, op initializer.Opcode) (value.Value, error) {
	_, unary, ok := operatorFor(op)
	if !ok {
		return value.Null, t.newManagedError(t.Std.TypeError, "unrecognized operator")
	}
	if unary {
		operand := f.pop()
		return t.applyOperator(op, []value.Value{operand})
	}
	r, l := f.pop(), f.pop()
	return t.applyOperator(op, []value.Value{l, r})
}

// -- token resolution ---------------------------------------------------

func (t *Thread) resolveString(operand int64) (string, error) {
	tok := obinary.Token(uint32(operand))
	v, ok := t.Module.Resolve(tok)
	if !ok {
		return "", t.newManagedError(t.Std.MemberNotFoundError, "unresolved string token")
	}
	s, ok := v.(string)
	if !ok {
		return "", t.newManagedError(t.Std.TypeError, "token is not a string")
	}
	return s, nil
}

func (t *Thread) resolveType(operand int64) (*value.Type, error) {
	tok := obinary.Token(uint32(operand))
	v, ok := t.Module.Resolve(tok)
	if !ok {
		return nil, t.newManagedError(t.Std.MemberNotFoundError, "unresolved type token")
	}
	ty, ok := v.(*value.Type)
	if !ok {
		return nil, t.newManagedError(t.Std.TypeError, "token is not a type")
	}
	return ty, nil
}

func (t *Thread) resolveMemberToken(operand int64) (*value.Member, error) {
	tok := obinary.Token(uint32(operand))
	v, ok := t.Module.Resolve(tok)
	if !ok {
		return nil, t.newManagedError(t.Std.MemberNotFoundError, "unresolved member token")
	}
	m, ok := v.(*value.Member)
	if !ok {
		return nil, t.newManagedError(t.Std.TypeError, "token is not a member")
	}
	return m, nil
}

func (t *Thread) resolveStaticField(operand int64) (*value.Member, error) {
	m, err := t.resolveMemberToken(operand)
	if err != nil {
		return nil, err
	}
	if m.Kind != value.MemberField || m.StaticSlot == nil {
		return nil, t.newManagedError(t.Std.MemberNotFoundError, "not a static field")
	}
	return m, nil
}

// -- field/member/index access ------------------------------------------

// loadField/storeField treat Member.FieldOffset as a direct index into
// the instance's field slice, rather than a byte offset requiring
// unsafe.Pointer arithmetic — see DESIGN.md. Ordinary (non-ref) field
// opcodes only ever need a value copy in and out of that slot, which a
// plain slice index gives for free.
func (t *Thread) loadField(inst value.Value, slot int) (value.Value, error) {
	if inst.Typ == nil {
		return value.Null, t.newManagedError(t.Std.NullReferenceError, "field access on null")
	}
	h := (*gc.Header)(inst.Inst)
	fields, ok := h.Payload().([]value.Value)
	if !ok || slot < 0 || slot >= len(fields) {
		return value.Null, t.newManagedError(t.Std.MemberNotFoundError, "bad field slot")
	}
	h.Lock()
	defer h.Unlock()
	return fields[slot], nil
}

func (t *Thread) storeField(inst value.Value, slot int, val value.Value) error {
	if inst.Typ == nil {
		return t.newManagedError(t.Std.NullReferenceError, "field access on null")
	}
	h := (*gc.Header)(inst.Inst)
	fields, ok := h.Payload().([]value.Value)
	if !ok || slot < 0 || slot >= len(fields) {
		return t.newManagedError(t.Std.MemberNotFoundError, "bad field slot")
	}
	h.Lock()
	defer h.Unlock()
	fields[slot] = val
	h.NoteFieldWrite(val)
	return nil
}

// loadFieldRef builds a RefField Value over inst's field at slot,
// snapshotting the field's current type for the reference's own Typ —
// the accessor (inst's header) re-resolves the actual storage address
// through any forwarding the collector applies later, so the reference
// stays valid across a compaction that moves inst.
func (t *Thread) loadFieldRef(inst value.Value, slot int) (value.Value, error) {
	if inst.Typ == nil {
		return value.Null, t.newManagedError(t.Std.NullReferenceError, "field access on null")
	}
	h := (*gc.Header)(inst.Inst)
	h.Lock()
	cur := h.FieldSlot(int32(slot))
	if cur == nil {
		h.Unlock()
		return value.Null, t.newManagedError(t.Std.MemberNotFoundError, "bad field slot")
	}
	refType := cur.Typ
	h.Unlock()
	return value.MakeFieldRef(refType, h, int32(slot), h), nil
}

func (t *Thread) loadMemberRef(inst value.Value, name string) (value.Value, error) {
	if inst.Typ == nil {
		return value.Null, t.newManagedError(t.Std.NullReferenceError, "member access on null")
	}
	m, ok := inst.Typ.FindMember(name, nil)
	if !ok || m.Kind != value.MemberField {
		return value.Null, t.newManagedError(t.Std.MemberNotFoundError, name)
	}
	return t.loadFieldRef(inst, int(m.FieldOffset))
}

func (t *Thread) loadMember(inst value.Value, name string) (value.Value, error) {
	if inst.Typ == nil {
		return value.Null, t.newManagedError(t.Std.NullReferenceError, "member access on null")
	}
	m, ok := inst.Typ.FindMember(name, nil)
	if !ok {
		return value.Null, t.newManagedError(t.Std.MemberNotFoundError, name)
	}
	switch m.Kind {
	case value.MemberField:
		return t.loadField(inst, int(m.FieldOffset))
	case value.MemberProperty:
		if m.Getter == nil {
			return value.Null, t.newManagedError(t.Std.MemberNotFoundError, name)
		}
		return t.Invoke(m.Getter, inst, nil)
	default:
		return t.makeMethod(inst, m)
	}
}

func (t *Thread) storeMember(inst value.Value, name string, val value.Value) error {
	if inst.Typ == nil {
		return t.newManagedError(t.Std.NullReferenceError, "member access on null")
	}
	m, ok := inst.Typ.FindMember(name, nil)
	if !ok {
		return t.newManagedError(t.Std.MemberNotFoundError, name)
	}
	switch m.Kind {
	case value.MemberField:
		return t.storeField(inst, int(m.FieldOffset), val)
	case value.MemberProperty:
		if m.Setter == nil {
			return t.newManagedError(t.Std.MemberNotFoundError, name)
		}
		_, err := t.Invoke(m.Setter, inst, []value.Value{val})
		return err
	default:
		return t.newManagedError(t.Std.MemberNotFoundError, name)
	}
}

// loadIndex/storeIndex implement the indexer for the two built-in
// collection types directly, rather than through an overloadable
// "get_Item"/"set_Item" member — this core declares no user-defined
// indexers, so List/Hash are the only instances ldidx/stidx ever see.
func (t *Thread) loadIndex(inst, idx value.Value) (value.Value, error) {
	switch inst.Typ {
	case t.Std.List:
		slots, err := t.listSlots(inst)
		if err != nil {
			return value.Null, err
		}
		i := idx.AsInt64()
		if i < 0 || i >= int64(len(slots)) {
			return value.Null, t.newManagedError(t.Std.MemoryError, "index out of range")
		}
		return slots[i], nil
	case t.Std.Hash:
		pairs, err := t.hashPairs(inst)
		if err != nil {
			return value.Null, err
		}
		v, found, err := t.hashLookup(pairs, idx)
		if err != nil {
			return value.Null, err
		}
		if !found {
			return value.Null, t.newManagedError(t.Std.MemberNotFoundError, "key not found")
		}
		return v, nil
	default:
		return value.Null, t.newManagedError(t.Std.TypeError, "not indexable")
	}
}

func (t *Thread) storeIndex(inst, idx, val value.Value) error {
	switch inst.Typ {
	case t.Std.List:
		slots, err := t.listSlots(inst)
		if err != nil {
			return err
		}
		i := idx.AsInt64()
		if i < 0 || i >= int64(len(slots)) {
			return t.newManagedError(t.Std.MemoryError, "index out of range")
		}
		slots[i] = val
		return nil
	case t.Std.Hash:
		pairs, err := t.hashPairs(inst)
		if err != nil {
			return err
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			eq, err := t.equals(pairs[i], idx)
			if err != nil {
				return err
			}
			if eq {
				pairs[i+1] = val
				return nil
			}
		}
		return t.newManagedError(t.Std.MemberNotFoundError, "key not found")
	default:
		return t.newManagedError(t.Std.TypeError, "not indexable")
	}
}

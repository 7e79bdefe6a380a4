package initializer

import "testing"

func u32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func TestDecodeSimpleBody(t *testing.T) {
	body := append([]byte{byte(OpLdArg0)}, byte(OpRet))
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(instrs) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(instrs))
	}
	if instrs[0].Op != OpLdArg0 || instrs[1].Op != OpRet {
		t.Fatalf("unexpected opcodes: %v %v", instrs[0].Op, instrs[1].Op)
	}
}

func TestDecodeRejectsUnknownOpcode(t *testing.T) {
	_, err := decode([]byte{0xff})
	if err == nil {
		t.Fatal("expected error for unrecognized opcode")
	}
	fe, ok := err.(*FatalError)
	if !ok {
		t.Fatalf("expected *FatalError, got %T", err)
	}
	if fe.Code != ErrUnresolvedTokenID {
		t.Fatalf("expected ErrUnresolvedTokenID, got %v", fe.Code)
	}
}

// ldRetBody builds: LdArg0 ; Ret
func ldRetBody() []byte {
	return []byte{byte(OpLdArg0), byte(OpRet)}
}

func TestResolveBranchesAbsoluteTarget(t *testing.T) {
	// LdTrue; BrTrueS +3 (to the second Ret); LdCI1; Ret ; LdCI0; Ret
	body := []byte{
		byte(OpLdTrue),
		byte(OpBrTrueS), 3, // end of this instr (offset 3) + 3 = offset 6, the second Ret
		byte(OpLdCI1),
		byte(OpRet),
		byte(OpLdCI0),
		byte(OpRet), // offset 6
	}
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resolveBranches(instrs, len(body), "M"); err != nil {
		t.Fatalf("resolveBranches: %v", err)
	}
	br := instrs[1]
	if br.BranchTarget != 6 {
		t.Fatalf("expected branch target 6, got %d", br.BranchTarget)
	}
}

func TestResolveBranchesRejectsMisalignedTarget(t *testing.T) {
	// BrS with an operand that lands one byte into LdArg's encoding.
	body := []byte{
		byte(OpBrS), 0, // target = offset 2 (falls on LdArg, fine) -- corrupt below instead
		byte(OpLdArg), 0, 0, 0, 0, // 4-byte operand opcode, 5 bytes wide
		byte(OpRet),
	}
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Force a misaligned target: one byte into the LdArg operand.
	instrs[0].Operand = 1
	if err := resolveBranches(instrs, len(body), "M"); err == nil {
		t.Fatal("expected invalid branch offset error")
	} else if fe := err.(*FatalError); fe.Code != ErrInvalidBranchOffset {
		t.Fatalf("expected ErrInvalidBranchOffset, got %v", fe.Code)
	}
}

func TestInferStackHeightsDetectsInsufficientHeight(t *testing.T) {
	// Pop with nothing on the stack.
	body := []byte{byte(OpPop), byte(OpRetNull)}
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resolveBranches(instrs, len(body), "M"); err != nil {
		t.Fatalf("resolveBranches: %v", err)
	}
	err = inferStackHeights(instrs, len(body), "M", nil)
	if err == nil {
		t.Fatal("expected insufficient stack height error")
	}
	if fe := err.(*FatalError); fe.Code != ErrInsufficientStackHeight {
		t.Fatalf("expected ErrInsufficientStackHeight, got %v", fe.Code)
	}
}

func TestInferStackHeightsDetectsInconsistentMerge(t *testing.T) {
	// Two paths into the same instruction with different stack heights:
	// LdTrue; BrTrueS -> RetNull (label L)
	// LdNull; LdNull (falls through into L with 2 on the stack, vs 0 from the branch)
	body := []byte{
		byte(OpLdTrue),
		byte(OpBrTrueS), 2, // target = end of this instr(offset 3) + 2 = offset 5, RetNull below
		byte(OpLdNull),
		byte(OpLdNull),
		byte(OpRetNull), // offset 5
	}
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resolveBranches(instrs, len(body), "M"); err != nil {
		t.Fatalf("resolveBranches: %v", err)
	}
	err = inferStackHeights(instrs, len(body), "M", nil)
	if err == nil {
		t.Fatal("expected inconsistent stack error")
	}
	if fe := err.(*FatalError); fe.Code != ErrInconsistentStack {
		t.Fatalf("expected ErrInconsistentStack, got %v", fe.Code)
	}
}

func TestInitializeProducesRunnableCode(t *testing.T) {
	m, err := Initialize("M", ldRetBody(), 1, nil)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if len(m.Code) == 0 {
		t.Fatal("expected non-empty intermediate code")
	}
	if m.Code[len(m.Code)-1].Op != OpiRet {
		t.Fatalf("expected stream to end in OpiRet, got %v", m.Code[len(m.Code)-1].Op)
	}
}

func TestPeepholeStoreLocalMerge(t *testing.T) {
	// LdArg0; StLoc0 reads a slot only to immediately store it into
	// another, and should collapse into a single local-to-local move.
	body := []byte{byte(OpLdArg0), byte(OpStLoc0), byte(OpRetNull)}
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resolveBranches(instrs, len(body), "M"); err != nil {
		t.Fatalf("resolveBranches: %v", err)
	}
	if err := inferStackHeights(instrs, len(body), "M", nil); err != nil {
		t.Fatalf("inferStackHeights: %v", err)
	}
	code, _ := runPeephole(instrs, len(body))
	if len(code) != 2 {
		t.Fatalf("expected merge to 2 intermediate instructions, got %d: %+v", len(code), code)
	}
	if code[0].Op != OpiMvLocLL || code[0].Operand != 0 || code[0].Operand2 != 0 {
		t.Fatalf("expected OpiMvLocLL(0, 0), got %+v", code[0])
	}
}

func TestPeepholeLoadLocalMerge(t *testing.T) {
	// LdCI1; StLoc2 computes a constant and writes it straight into a
	// local slot without ever putting it on the evaluation stack.
	body := []byte{byte(OpLdCI1), byte(OpStLoc2), byte(OpRetNull)}
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resolveBranches(instrs, len(body), "M"); err != nil {
		t.Fatalf("resolveBranches: %v", err)
	}
	if err := inferStackHeights(instrs, len(body), "M", nil); err != nil {
		t.Fatalf("inferStackHeights: %v", err)
	}
	code, _ := runPeephole(instrs, len(body))
	if len(code) != 2 {
		t.Fatalf("expected merge to 2 intermediate instructions, got %d: %+v", len(code), code)
	}
	if code[0].Op != OpiLdCIL || code[0].Operand != 2 {
		t.Fatalf("expected OpiLdCIL(2), got %+v", code[0])
	}
}

func TestPeepholePopMergeDropsDeadLoad(t *testing.T) {
	// LdCI0; Pop; RetNull -- the load has no observable effect and
	// should vanish entirely along with its pop.
	body := []byte{byte(OpLdCI0), byte(OpPop), byte(OpRetNull)}
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resolveBranches(instrs, len(body), "M"); err != nil {
		t.Fatalf("resolveBranches: %v", err)
	}
	if err := inferStackHeights(instrs, len(body), "M", nil); err != nil {
		t.Fatalf("inferStackHeights: %v", err)
	}
	code, _ := runPeephole(instrs, len(body))
	if len(code) != 1 {
		t.Fatalf("expected dead load+pop to vanish, leaving 1 instruction, got %d: %+v", len(code), code)
	}
	if code[0].Op != OpiRetNull {
		t.Fatalf("expected OpiRetNull, got %+v", code[0])
	}
}

func TestPeepholeKeepsSideEffectingCallBeforePop(t *testing.T) {
	// LdArg0 (the receiver); Call0 (a 0-arg instance call); Pop;
	// RetNull -- the call must still execute even though its result is
	// discarded.
	body := append(append([]byte{byte(OpLdArg0), byte(OpCall0)}, u32(0)...), byte(OpPop), byte(OpRetNull))
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resolveBranches(instrs, len(body), "M"); err != nil {
		t.Fatalf("resolveBranches: %v", err)
	}
	if err := inferStackHeights(instrs, len(body), "M", nil); err != nil {
		t.Fatalf("inferStackHeights: %v", err)
	}
	code, _ := runPeephole(instrs, len(body))
	if len(code) != 4 {
		t.Fatalf("expected receiver load, call, pop, and return, got %d instructions: %+v", len(code), code)
	}
	if code[1].Op != OpiCallS {
		t.Fatalf("expected call to keep its stack-producing form, got %+v", code[1])
	}
	if code[2].Op != OpiPop {
		t.Fatalf("expected explicit pop to remain, got %+v", code[2])
	}
}

func TestPeepholeBranchTargetSurvivesMerge(t *testing.T) {
	// LdTrue; BrTrueS -> LdArg0 (which then merges with the StLoc0
	// right after it into a single intermediate op). The branch target
	// must resolve to wherever that merged op ends up in the emitted
	// stream, not to LdArg0's original byte offset.
	body := []byte{
		byte(OpLdTrue),
		byte(OpBrTrueS), 0, // target: straight past itself, onto LdArg0
		byte(OpLdArg0),
		byte(OpStLoc0),
		byte(OpLdLoc0),
		byte(OpRet),
	}
	instrs, err := decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := resolveBranches(instrs, len(body), "M"); err != nil {
		t.Fatalf("resolveBranches: %v", err)
	}
	if err := inferStackHeights(instrs, len(body), "M", nil); err != nil {
		t.Fatalf("inferStackHeights: %v", err)
	}
	code, _ := runPeephole(instrs, len(body))
	// code: [0] OpiLdTrueS  [1] OpiBrTrueS(target) [2] OpiMvLocLL(0, 0) [3] OpiMvLocLS(0) [4] OpiRet
	br := code[1]
	if br.Op != OpiBrTrueS {
		t.Fatalf("expected branch at index 1, got %+v", br)
	}
	if int(br.Operand) != 2 {
		t.Fatalf("expected branch remapped to emitted index 2, got %d", br.Operand)
	}
}

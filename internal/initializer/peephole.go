package initializer

// peepholeRule inspects a short window of instructions starting at i
// and, if it matches, returns the instructions to replace the
// window with and how many original instructions it consumed. A rule
// that doesn't match returns (nil, 0). Rules never consume an
// instruction that some branch or switch target lands on directly —
// runPeephole guards against that before offering the window to a rule
// at all, since merging it away would make that jump land nowhere.
type peepholeRule func(instrs []*Instruction, i int) ([]Instr, int)

// branchTargetIndices returns the set of instruction indices that some
// branch or switch elsewhere in the body jumps to directly. An
// instruction in this set must survive as its own segment — a
// peephole rule that folded it into its predecessor would leave that
// jump with nowhere valid to land.
func branchTargetIndices(instrs []*Instruction, bodyLen int) map[int]bool {
	offsetIndex := make(map[int]int, len(instrs))
	for idx, ins := range instrs {
		offsetIndex[ins.Offset] = idx
	}
	targets := make(map[int]bool)
	mark := func(offset int) {
		if offset == bodyLen {
			return
		}
		if idx, ok := offsetIndex[offset]; ok {
			targets[idx] = true
		}
	}
	for _, ins := range instrs {
		if ins.IsBranch {
			mark(ins.BranchTarget)
		}
		for _, t := range ins.Switch {
			mark(int(t))
		}
	}
	return targets
}

// hasSideEffects reports whether an instruction's execution does
// anything beyond leaving a value on the stack — a call, a field
// store, or similar. Side-effecting instructions must still execute
// even when their result is immediately discarded.
func hasSideEffects(op Opcode) bool {
	switch op {
	case OpCall0, OpCall1, OpCall2, OpCall3, OpCallS, OpCall,
		OpSCallS, OpSCall, OpApply, OpSApply,
		OpNewObjS, OpNewObj, OpCallMemS, OpCallMem,
		OpStFld, OpStSFld, OpStMem, OpStIdx1, OpStIdxS, OpStIdx,
		OpThrow, OpRethrow, OpLdSFld: // static field read may run a static constructor
		return true
	}
	return false
}

// loadLocalMerge is rule 1: a value-producing instruction immediately
// followed by a store into a local is rewritten into a single
// intermediate instruction that writes the value directly into the
// local slot, never visiting the stack at all.
func loadLocalMerge(instrs []*Instruction, i int) ([]Instr, int) {
	if i+1 >= len(instrs) {
		return nil, 0
	}
	producer, consumer := instrs[i], instrs[i+1]
	if producer.added != 1 || producer.removed != 0 {
		return nil, 0
	}
	localIdx, ok := localTarget(consumer.Op)
	if !ok {
		return nil, 0
	}
	opL, ok := toLocalForm(producer.Op)
	if !ok {
		return nil, 0
	}
	return []Instr{{Op: opL, Operand: localIdx(consumer)}}, 2
}

// storeLocalMerge is rule 2: reading one argument or local slot only
// to immediately store it into another is rewritten into a single
// local-to-local move, since the value never needed to pass through
// the stack to get there.
func storeLocalMerge(instrs []*Instruction, i int) ([]Instr, int) {
	if i+1 >= len(instrs) {
		return nil, 0
	}
	producer, consumer := instrs[i], instrs[i+1]
	srcIdx, ok := localSource(producer.Op)
	if !ok {
		return nil, 0
	}
	dstIdx, ok := localTarget(consumer.Op)
	if !ok {
		return nil, 0
	}
	return []Instr{{Op: OpiMvLocLL, Operand: srcIdx(producer), Operand2: dstIdx(consumer)}}, 2
}

// localSource reports the local-slot index an LdArg*/LdLoc* instruction
// reads from, if op is one.
func localSource(op Opcode) (func(*Instruction) int64, bool) {
	switch op {
	case OpLdArg0, OpLdLoc0:
		return func(*Instruction) int64 { return 0 }, true
	case OpLdArg1, OpLdLoc1:
		return func(*Instruction) int64 { return 1 }, true
	case OpLdArg2, OpLdLoc2:
		return func(*Instruction) int64 { return 2 }, true
	case OpLdArg3, OpLdLoc3:
		return func(*Instruction) int64 { return 3 }, true
	case OpLdArgS, OpLdArg, OpLdLocS, OpLdLoc:
		return func(ins *Instruction) int64 { return ins.Operand }, true
	}
	return nil, false
}

// popMerge is rule 3: a side-effect-free value producer immediately
// followed by pop contributes nothing and is dropped outright; a
// side-effecting one (a call) keeps its stack-producing form, since
// the value it would have produced still has to be computed even
// though nothing uses it — the pop is then emitted as its own OpiPop,
// which discards that value at run time.
func popMerge(instrs []*Instruction, i int) ([]Instr, int) {
	if i+1 >= len(instrs) || instrs[i+1].Op != OpPop {
		return nil, 0
	}
	producer := instrs[i]
	if producer.added != 1 || producer.removed != 0 {
		return nil, 0
	}
	if hasSideEffects(producer.Op) {
		return nil, 0
	}
	return []Instr{}, 2
}

// dupBranchMerge is rule 4: `dup` immediately followed by a conditional
// branch is collapsed into a single branch instruction that peeks the
// condition instead of duplicating it first — the executor leaves the
// value in place either way, so the dup was only ever needed to keep a
// copy for what comes after a *fallthrough*, which it still does since
// branch instructions, by construction, pop only the copy they test.
func dupBranchMerge(instrs []*Instruction, i int) ([]Instr, int) {
	if i+1 >= len(instrs) || instrs[i].Op != OpDup {
		return nil, 0
	}
	branch := instrs[i+1]
	opS, ok := branchStackForm(branch.Op)
	if !ok {
		return nil, 0
	}
	return []Instr{{Op: opS, Operand: int64(branch.BranchTarget)}}, 2
}

var peepholeRules = []peepholeRule{
	dupBranchMerge,
	storeLocalMerge,
	loadLocalMerge,
	popMerge,
}

// localTarget reports the local-slot index an StLoc* instruction
// writes to, if op is one.
func localTarget(op Opcode) (func(*Instruction) int64, bool) {
	switch op {
	case OpStLoc0:
		return func(*Instruction) int64 { return 0 }, true
	case OpStLoc1:
		return func(*Instruction) int64 { return 1 }, true
	case OpStLoc2:
		return func(*Instruction) int64 { return 2 }, true
	case OpStLoc3:
		return func(*Instruction) int64 { return 3 }, true
	case OpStLocS, OpStLoc:
		return func(ins *Instruction) int64 { return ins.Operand }, true
	}
	return nil, false
}

// toLocalForm maps a stack-producing opcode to its local-writing
// intermediate counterpart.
func toLocalForm(op Opcode) (IntermediateOpcode, bool) {
	switch op {
	case OpLdNull:
		return OpiLdNullL, true
	case OpLdFalse:
		return OpiLdFalseL, true
	case OpLdTrue:
		return OpiLdTrueL, true
	case OpLdCIM1, OpLdCI0, OpLdCI1, OpLdCI2, OpLdCI3, OpLdCI4, OpLdCI5, OpLdCI6, OpLdCI7, OpLdCI8,
		OpLdCIS, OpLdCIM, OpLdCI:
		return OpiLdCIL, true
	case OpLdCU:
		return OpiLdCUL, true
	case OpLdCR:
		return OpiLdCRL, true
	case OpLdStr:
		return OpiLdStrL, true
	case OpLdArgc:
		return OpiLdArgcL, true
	case OpLdEnumS, OpLdEnum:
		return OpiLdEnumL, true
	case OpNewObjS, OpNewObj:
		return OpiNewObjL, true
	case OpListS, OpList, OpList0:
		return OpiListL, true
	case OpHashS, OpHash, OpHash0:
		return OpiHashL, true
	case OpLdFld:
		return OpiLdFldL, true
	case OpLdSFld:
		return OpiLdSFldL, true
	case OpLdMem:
		return OpiLdMemL, true
	case OpLdIter:
		return OpiLdIterL, true
	case OpLdType:
		return OpiLdTypeL, true
	case OpLdIdxS, OpLdIdx, OpLdIdx1:
		return OpiLdIdxL, true
	case OpLdSFn:
		return OpiLdSFnL, true
	case OpLdTypeTkn:
		return OpiLdTypeTknL, true
	case OpCallS, OpCall, OpCall0, OpCall1, OpCall2, OpCall3:
		return OpiCallL, true
	case OpSCallS, OpSCall:
		return OpiSCallL, true
	case OpApply:
		return OpiApplyL, true
	case OpSApply:
		return OpiSApplyL, true
	case OpEq:
		return OpiEqL, true
	case OpCmp:
		return OpiCmpL, true
	case OpLt:
		return OpiLtL, true
	case OpGt:
		return OpiGtL, true
	case OpLte:
		return OpiLteL, true
	case OpGte:
		return OpiGteL, true
	case OpConcat:
		return OpiConcatL, true
	case OpCallMemS, OpCallMem:
		return OpiCallMemL, true
	}
	return 0, false
}

// branchStackForm maps a conditional branch opcode that consumes a
// stack value to its intermediate form.
func branchStackForm(op Opcode) (IntermediateOpcode, bool) {
	switch op {
	case OpBrNullS, OpBrNull:
		return OpiBrNullS, true
	case OpBrInstS, OpBrInst:
		return OpiBrInstS, true
	case OpBrFalseS, OpBrFalse:
		return OpiBrFalseS, true
	case OpBrTrueS, OpBrTrue:
		return OpiBrTrueS, true
	case OpBrTypeS, OpBrType:
		return OpiBrTypeS, true
	}
	return 0, false
}

// defaultTranslate maps an opcode with no applicable peephole rule to
// its stack-producing/consuming intermediate form.
func defaultTranslate(ins *Instruction) []Instr {
	switch ins.Op {
	case OpNop:
		return nil
	case OpDup:
		return []Instr{{Op: OpiMvLocSS}}
	case OpPop:
		return []Instr{{Op: OpiPop}}
	case OpRet:
		return []Instr{{Op: OpiRet}}
	case OpRetNull:
		return []Instr{{Op: OpiRetNull}}
	case OpThrow:
		return []Instr{{Op: OpiThrow}}
	case OpRethrow:
		return []Instr{{Op: OpiRethrow}}
	case OpEndFinally:
		return []Instr{{Op: OpiEndFinally}}
	case OpLdArg0, OpLdArg1, OpLdArg2, OpLdArg3, OpLdArgS, OpLdArg,
		OpLdLoc0, OpLdLoc1, OpLdLoc2, OpLdLoc3, OpLdLocS, OpLdLoc:
		src, _ := localSource(ins.Op)
		return []Instr{{Op: OpiMvLocLS, Operand: src(ins)}}
	case OpStArgS, OpStArg:
		return []Instr{{Op: OpiMvLocSL, Operand: ins.Operand}}
	case OpStLoc0, OpStLoc1, OpStLoc2, OpStLoc3, OpStLocS, OpStLoc:
		dst, _ := localTarget(ins.Op)
		return []Instr{{Op: OpiMvLocSL, Operand: dst(ins)}}
	case OpBr, OpBrS:
		return []Instr{{Op: OpiBr, Operand: int64(ins.BranchTarget)}}
	case OpLeave, OpLeaveS:
		return []Instr{{Op: OpiLeave, Operand: int64(ins.BranchTarget)}}
	case OpAdd, OpSub, OpOr, OpXor, OpMul, OpDiv, OpMod, OpAnd, OpPow, OpShl, OpShr, OpHashOp:
		return []Instr{{Op: OpiOperatorS, Operand: int64(ins.Op)}}
	case OpDollar, OpPlus, OpNeg, OpNot:
		return []Instr{{Op: OpiOperatorS, Operand: int64(ins.Op)}}
	case OpStFld:
		return []Instr{{Op: OpiStFld, Operand: ins.Operand}}
	case OpStSFld:
		return []Instr{{Op: OpiStSFldS, Operand: ins.Operand}}
	case OpStMem:
		return []Instr{{Op: OpiStMem, Operand: ins.Operand}}
	case OpStIdx1, OpStIdxS, OpStIdx:
		return []Instr{{Op: OpiStIdx, Operand: ins.Operand}}
	}
	if opS, ok := branchStackForm(ins.Op); ok {
		return []Instr{{Op: opS, Operand: int64(ins.BranchTarget)}}
	}
	if opL, ok := toLocalForm(ins.Op); ok {
		// Fall back to the stack-producing sibling of an L-form opcode
		// by taking advantage of the fixed +1 encoding relationship
		// documented in opcodes.go (every *_L/*_S pair is adjacent,
		// L first).
		return []Instr{{Op: opL + 1, Operand: ins.Operand}}
	}
	return []Instr{{Op: OpiNop}}
}

// segment is one contiguous run of original instructions a single
// peephole step consumed together, and what it was rewritten into.
type segment struct {
	start, consumed int
	ops             []Instr
}

// planSegments walks instrs once, offering each position's remaining
// window to the ordered peephole rules in turn and falling back to
// defaultTranslate when none match, skipping any rule that would
// consume an instruction a jump elsewhere targets directly.
func planSegments(instrs []*Instruction, targets map[int]bool) []segment {
	var segs []segment
	for i := 0; i < len(instrs); {
		matched := false
		for _, rule := range peepholeRules {
			if targets[i+1] {
				break // merging away instrs[i+1] would orphan a jump into it
			}
			if repl, consumed := rule(instrs, i); consumed > 0 {
				segs = append(segs, segment{start: i, consumed: consumed, ops: repl})
				i += consumed
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		segs = append(segs, segment{start: i, consumed: 1, ops: defaultTranslate(instrs[i])})
		i++
	}
	return segs
}

// isBranchIntermediate reports whether op carries a branch target that
// needs remapping from an original-body byte offset to an index into
// the final instruction stream.
func isBranchIntermediate(op IntermediateOpcode) bool {
	switch op {
	case OpiBr, OpiLeave,
		OpiBrNullL, OpiBrNullS, OpiBrInstL, OpiBrInstS,
		OpiBrFalseL, OpiBrFalseS, OpiBrTrueL, OpiBrTrueS,
		OpiBrTypeL, OpiBrTypeS, OpiSwitchL, OpiSwitchS,
		OpiBrRef, OpiBrNRef,
		OpiBrEq, OpiBrNeq, OpiBrLt, OpiBrGt, OpiBrLte, OpiBrGte:
		return true
	}
	return false
}

// runPeephole applies the ordered peephole rules across instrs,
// producing the final intermediate instruction stream with every
// branch operand remapped from an original byte offset to the index
// in that stream its target now lives at.
func runPeephole(instrs []*Instruction, bodyLen int) ([]Instr, func(int) int) {
	targets := branchTargetIndices(instrs, bodyLen)
	segs := planSegments(instrs, targets)

	segStart := make(map[int]int, len(segs))
	total := 0
	for _, s := range segs {
		segStart[s.start] = total
		total += len(s.ops)
	}

	offsetIndex := make(map[int]int, len(instrs))
	for idx, ins := range instrs {
		offsetIndex[ins.Offset] = idx
	}
	resolve := func(byteOffset int64) int64 {
		if int(byteOffset) == bodyLen {
			return int64(total)
		}
		idx, ok := offsetIndex[int(byteOffset)]
		if !ok {
			return byteOffset
		}
		return int64(segStart[idx])
	}

	out := make([]Instr, 0, total)
	for _, s := range segs {
		for _, op := range s.ops {
			if isBranchIntermediate(op.Op) {
				op.Operand = resolve(op.Operand)
			}
			out = append(out, op)
		}
	}
	// resolveOffset exposes the same byte-offset -> final-index mapping
	// for callers that need to remap addressing carried outside the
	// instruction stream itself — a method's try-block table, which
	// points at protected-range and handler offsets the same way a
	// branch instruction points at its target.
	resolveOffset := func(byteOffset int) int {
		return int(resolve(int64(byteOffset)))
	}
	return out, resolveOffset
}

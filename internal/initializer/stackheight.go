package initializer

// isTerminator reports whether control never falls through to the
// next instruction after ins — either because it always transfers
// control elsewhere (br, leave) or ends the method (ret family).
func isTerminator(op Opcode) bool {
	switch op {
	case OpRet, OpRetNull, OpBr, OpBrS, OpThrow, OpRethrow,
		OpLeave, OpLeaveS, OpEndFinally:
		return true
	}
	return false
}

type stackFrame struct {
	index  int
	height int
}

// inferStackHeights walks every reachable path through instrs from
// offset 0 with a work queue, the same shape as the source's
// StackManager: each instruction records the stack height it's reached
// with, and reaching it a second time with a different height (two
// incoming paths disagreeing about how many values are live) is a
// genuine inconsistency in the method body, not something the
// initializer can paper over.
func inferStackHeights(instrs []*Instruction, bodyLen int, methodName string, tryBlocks []RawTryBlock) error {
	if len(instrs) == 0 {
		return nil
	}
	offsetIndex := make(map[int]int, len(instrs))
	for idx, ins := range instrs {
		offsetIndex[ins.Offset] = idx
	}

	visited := make([]bool, len(instrs))
	seenHeight := make([]int, len(instrs))
	queue := []stackFrame{{0, 0}}

	resolve := func(target int) (int, bool) {
		if target == bodyLen {
			return len(instrs), true
		}
		idx, ok := offsetIndex[target]
		return idx, ok
	}

	// A catch handler is only ever entered by the executor resetting the
	// stack to hold exactly the thrown value (handleThrow), never by
	// falling through from the protected range; a finally body is only
	// ever entered stack-neutral (runFinally saves and restores the
	// frame's stack pointer around it). Neither path is reachable by
	// walking instrs in order from offset 0, so both need their own seed
	// in the work queue or their instructions are never visited at all.
	for _, tb := range tryBlocks {
		switch tb.Kind {
		case TryCatch:
			for _, c := range tb.Catches {
				idx, ok := resolve(c.HandlerIP)
				if !ok {
					return &FatalError{Code: ErrInvalidBranchOffset, Offset: c.HandlerIP, MethodName: methodName, Message: "catch handler target out of range"}
				}
				queue = append(queue, stackFrame{idx, 1})
			}
		case TryFinally:
			idx, ok := resolve(tb.FinallyStart)
			if !ok {
				return &FatalError{Code: ErrInvalidBranchOffset, Offset: tb.FinallyStart, MethodName: methodName, Message: "finally target out of range"}
			}
			queue = append(queue, stackFrame{idx, 0})
		}
	}

	for len(queue) > 0 {
		f := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		idx, height := f.index, f.height

		for idx < len(instrs) {
			if visited[idx] {
				if seenHeight[idx] != height {
					return &FatalError{
						Code:       ErrInconsistentStack,
						Offset:     instrs[idx].Offset,
						MethodName: methodName,
						Message:    "instruction reached with different stack heights",
					}
				}
				break
			}
			visited[idx] = true
			seenHeight[idx] = height

			ins := instrs[idx]
			ins.StackHeightBefore = height
			sc := ins.stackChange()
			if height < sc.removed {
				return &FatalError{
					Code:       ErrInsufficientStackHeight,
					Offset:     ins.Offset,
					MethodName: methodName,
					Message:    "instruction requires more values than are on the stack",
				}
			}
			ins.removed, ins.added = sc.removed, sc.added
			height = height - sc.removed + sc.added

			if ins.IsBranch {
				targetIdx, ok := resolve(ins.BranchTarget)
				if !ok {
					return &FatalError{Code: ErrInvalidBranchOffset, Offset: ins.Offset, MethodName: methodName, Message: "branch target out of range"}
				}
				queue = append(queue, stackFrame{targetIdx, height})
			}
			for _, t := range ins.Switch {
				targetIdx, ok := resolve(int(t))
				if !ok {
					return &FatalError{Code: ErrInvalidBranchOffset, Offset: ins.Offset, MethodName: methodName, Message: "switch target out of range"}
				}
				queue = append(queue, stackFrame{targetIdx, height})
			}

			if isTerminator(ins.Op) {
				break
			}
			idx++
		}
	}
	return nil
}

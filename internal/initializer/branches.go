package initializer

// resolveBranches turns every branch instruction's operand (an offset
// relative to the end of the branch instruction itself) into an
// absolute byte offset, and validates that it lands exactly on another
// decoded instruction — landing mid-instruction would desynchronize
// the whole body, and the source rejects it the same way.
func resolveBranches(instrs []*Instruction, bodyLen int, methodName string) error {
	validOffsets := make(map[int]bool, len(instrs))
	for _, ins := range instrs {
		validOffsets[ins.Offset] = true
	}
	validOffsets[bodyLen] = true // one-past-the-end is a valid "falls off the end" target

	check := func(target int, at int) error {
		if !validOffsets[target] {
			return &FatalError{
				Code:       ErrInvalidBranchOffset,
				Offset:     at,
				MethodName: methodName,
				Message:    "branch target does not point to an instruction boundary",
			}
		}
		return nil
	}

	for _, ins := range instrs {
		end := ins.Offset + ins.Size
		if ins.IsBranch {
			target := end + int(int32(ins.Operand))
			if err := check(target, ins.Offset); err != nil {
				return err
			}
			ins.BranchTarget = target
		}
		for i, rel := range ins.Switch {
			target := end + int(rel)
			if err := check(target, ins.Offset); err != nil {
				return err
			}
			ins.Switch[i] = int32(target)
			_ = i
		}
	}
	return nil
}

// validateTryBlocks checks that every offset a method's try-block table
// carries — the protected range, each catch handler, and any finally
// range — lands on an instruction boundary (or one-past-the-end for a
// range's End), the same requirement resolveBranches enforces for
// branch targets. Declaring a try-table entry is the module's job, not
// the bytecode stream's, so there is no branch instruction to resolve
// these offsets from; they're checked directly against the same
// instruction-boundary set.
func validateTryBlocks(tryBlocks []RawTryBlock, bodyLen int, instrs []*Instruction, methodName string) error {
	if len(tryBlocks) == 0 {
		return nil
	}
	validOffsets := make(map[int]bool, len(instrs)+1)
	for _, ins := range instrs {
		validOffsets[ins.Offset] = true
	}
	validOffsets[bodyLen] = true

	check := func(target int) error {
		if !validOffsets[target] {
			return &FatalError{
				Code:       ErrInvalidBranchOffset,
				Offset:     target,
				MethodName: methodName,
				Message:    "try-block offset does not point to an instruction boundary",
			}
		}
		return nil
	}

	for _, tb := range tryBlocks {
		if err := check(tb.TryStart); err != nil {
			return err
		}
		if err := check(tb.TryEnd); err != nil {
			return err
		}
		switch tb.Kind {
		case TryCatch:
			for _, c := range tb.Catches {
				if err := check(c.HandlerIP); err != nil {
					return err
				}
			}
		case TryFinally:
			if err := check(tb.FinallyStart); err != nil {
				return err
			}
			if err := check(tb.FinallyEnd); err != nil {
				return err
			}
		}
	}
	return nil
}

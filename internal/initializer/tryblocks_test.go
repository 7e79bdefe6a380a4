package initializer

import "testing"

// TestInitializeResolvesCatchHandler builds: NewObjS 0; Throw; RetNull
// (unreachable); Ret (the catch handler). The protected range covers
// the constructor call and the throw; the catch handler is only
// reachable through the try-block table, never by falling through.
func TestInitializeResolvesCatchHandler(t *testing.T) {
	body := []byte{
		byte(OpNewObjS), 0, // offset 0, size 2
		byte(OpThrow),   // offset 2, size 1
		byte(OpRetNull), // offset 3, size 1 (unreachable outside the table)
		byte(OpRet),     // offset 4, size 1 -- the catch handler
	}
	tryBlocks := []RawTryBlock{
		{
			TryStart: 0,
			TryEnd:   3,
			Kind:     TryCatch,
			Catches:  []RawCatchClause{{CaughtType: 42, HandlerIP: 4}},
		},
	}
	m, err := Initialize("M", body, 0, tryBlocks)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if len(m.TryBlocks) != 1 {
		t.Fatalf("expected 1 try block, got %d", len(m.TryBlocks))
	}
	tb := m.TryBlocks[0]
	if tb.Kind != TryCatch {
		t.Fatalf("expected TryCatch, got %v", tb.Kind)
	}
	if tb.TryStart != 0 || tb.TryEnd != 2 {
		t.Fatalf("expected try range [0,2), got [%d,%d)", tb.TryStart, tb.TryEnd)
	}
	if len(tb.Catches) != 1 {
		t.Fatalf("expected 1 catch clause, got %d", len(tb.Catches))
	}
	if tb.Catches[0].CaughtType != 42 {
		t.Fatalf("expected catch type token 42, got %d", tb.Catches[0].CaughtType)
	}
	if tb.Catches[0].HandlerIP != 3 {
		t.Fatalf("expected handler remapped to index 3, got %d", tb.Catches[0].HandlerIP)
	}
	if len(m.Code) <= tb.Catches[0].HandlerIP || m.Code[tb.Catches[0].HandlerIP].Op != OpiRet {
		t.Fatalf("handler index does not land on the Ret instruction: %+v", m.Code)
	}
}

// TestInitializeResolvesFinallyBlock builds: LeaveS -> epilogue; Nop
// (the finally body); EndFinally; RetNull (the epilogue). The leave's
// target is reached through the leave's own branch; the finally body is
// only reachable through the try-block table.
func TestInitializeResolvesFinallyBlock(t *testing.T) {
	body := []byte{
		byte(OpLeaveS), 2, // offset 0, size 2: end(2)+2 = target offset 4
		byte(OpNop),        // offset 2, size 1 -- finally body
		byte(OpEndFinally), // offset 3, size 1
		byte(OpRetNull),    // offset 4, size 1 -- the epilogue, leave's target
	}
	tryBlocks := []RawTryBlock{
		{
			TryStart:     0,
			TryEnd:       2,
			Kind:         TryFinally,
			FinallyStart: 2,
			FinallyEnd:   4,
		},
	}
	m, err := Initialize("M", body, 0, tryBlocks)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if len(m.TryBlocks) != 1 {
		t.Fatalf("expected 1 try block, got %d", len(m.TryBlocks))
	}
	tb := m.TryBlocks[0]
	if tb.Kind != TryFinally {
		t.Fatalf("expected TryFinally, got %v", tb.Kind)
	}
	if tb.TryStart != 0 || tb.TryEnd != 1 {
		t.Fatalf("expected try range [0,1), got [%d,%d)", tb.TryStart, tb.TryEnd)
	}
	if tb.FinallyStart != 1 || tb.FinallyEnd != 2 {
		t.Fatalf("expected finally range [1,2), got [%d,%d)", tb.FinallyStart, tb.FinallyEnd)
	}
	if len(m.Code) != 3 {
		t.Fatalf("expected 3 emitted instructions, got %d: %+v", len(m.Code), m.Code)
	}
	if m.Code[tb.FinallyStart].Op != OpiEndFinally {
		t.Fatalf("expected finally range to start on OpiEndFinally, got %+v", m.Code[tb.FinallyStart])
	}
	leave := m.Code[0]
	if leave.Op != OpiLeave {
		t.Fatalf("expected leave as the first instruction, got %+v", leave)
	}
	if int(leave.Operand) != tb.FinallyEnd {
		t.Fatalf("expected leave to target the epilogue at index %d, got %d", tb.FinallyEnd, leave.Operand)
	}
}

// TestInitializeRejectsMisalignedCatchHandler checks that a catch
// handler offset landing mid-instruction is rejected the same way a
// misaligned branch target is.
func TestInitializeRejectsMisalignedCatchHandler(t *testing.T) {
	body := []byte{
		byte(OpNewObjS), 0,
		byte(OpThrow),
		byte(OpRet),
	}
	tryBlocks := []RawTryBlock{
		{
			TryStart: 0,
			TryEnd:   2,
			Kind:     TryCatch,
			Catches:  []RawCatchClause{{CaughtType: 1, HandlerIP: 1}}, // mid-NewObjS operand byte
		},
	}
	if _, err := Initialize("M", body, 0, tryBlocks); err == nil {
		t.Fatal("expected invalid try-block offset error")
	} else if fe, ok := err.(*FatalError); !ok || fe.Code != ErrInvalidBranchOffset {
		t.Fatalf("expected ErrInvalidBranchOffset, got %v", err)
	}
}

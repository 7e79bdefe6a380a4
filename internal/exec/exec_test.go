package exec

import (
	"testing"

	"ovum/internal/gc"
	"ovum/internal/initializer"
	"ovum/internal/obinary"
	"ovum/internal/value"
)

func newTestThread(t *testing.T) (*Thread, *gc.GC, *StdTypes) {
	t.Helper()
	g, err := gc.New(gc.Config{Gen0Size: 64 * 1024})
	if err != nil {
		t.Fatalf("gc.New: %v", err)
	}
	t.Cleanup(func() { g.Close() })

	std := NewStdTypes(obinary.BuildStandardTypes().Types)
	th := NewThread(1, g, std, nil)
	return th, g, std
}

func managedOverload(name string, paramCount, localCount, maxStack int, code []initializer.Instr, tries []value.TryBlock) *value.Overload {
	return &value.Overload{
		Name:       name,
		ParamCount: paramCount,
		LocalCount: localCount,
		TryBlocks:  tries,
		Code: &initializer.IntermediateMethod{
			Name:       name,
			Code:       code,
			MaxStack:   maxStack,
			ParamCount: paramCount,
		},
	}
}

// TestArithmeticRoundTrip covers spec.md §8's arithmetic scenario: a
// managed method body that loads two Int literals, applies the `+`
// operator opcode, and returns the result — exercising runFrame's
// opcode loop and the operator-overload dispatch path together.
func TestArithmeticRoundTrip(t *testing.T) {
	th, _, std := newTestThread(t)

	std.Int.Operators[value.OpAdd] = &value.Overload{
		DeclType:   std.Int,
		Name:       "+",
		ParamCount: 1,
		Flags:      value.OverloadNative | value.OverloadInstance,
		Native: func(_ value.NativeThread, instance value.Value, args []value.Value) (value.Value, error) {
			return value.Int(std.Int, instance.AsInt64()+args[0].AsInt64()), nil
		},
	}

	code := []initializer.Instr{
		{Op: initializer.OpiLdCIL, Operand: 2},
		{Op: initializer.OpiLdCIL, Operand: 3},
		{Op: initializer.OpiOperatorL, Operand: int64(initializer.OpAdd)},
		{Op: initializer.OpiRet},
	}
	ov := managedOverload("addTwo", 0, 0, 2, code, nil)

	res, err := th.Invoke(ov, value.Null, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.AsInt64() != 5 {
		t.Fatalf("want 5, got %d", res.AsInt64())
	}
}

// TestVariadicPacking covers spec.md §8's variadic scenario: calling
// the same overload with 0 and then 4 arguments packs them into a List
// of the matching length.
func TestVariadicPacking(t *testing.T) {
	th, _, std := newTestThread(t)

	var gotLen int64
	ov := &value.Overload{
		Name:       "variadic",
		ParamCount: 1,
		Flags:      value.OverloadNative | value.OverloadVariadic,
		Native: func(nth value.NativeThread, _ value.Value, args []value.Value) (value.Value, error) {
			slots, err := th.listSlots(args[0])
			if err != nil {
				return value.Null, err
			}
			gotLen = int64(len(slots))
			return value.Int(std.Int, gotLen), nil
		},
	}

	if _, err := th.Invoke(ov, value.Null, nil); err != nil {
		t.Fatalf("Invoke (0 args): %v", err)
	}
	if gotLen != 0 {
		t.Fatalf("want 0 packed args, got %d", gotLen)
	}

	args := []value.Value{
		value.Int(std.Int, 1), value.Int(std.Int, 2),
		value.Int(std.Int, 3), value.Int(std.Int, 4),
	}
	if _, err := th.Invoke(ov, value.Null, args); err != nil {
		t.Fatalf("Invoke (4 args): %v", err)
	}
	if gotLen != 4 {
		t.Fatalf("want 4 packed args, got %d", gotLen)
	}
}

// TestCatchByType covers spec.md §8's catch scenario: a thrown instance
// of a declared error type is caught by a try-block whose catch clause
// names that type, and the handler's result (the caught value itself)
// is what the method returns.
func TestCatchByType(t *testing.T) {
	th, _, std := newTestThread(t)

	b := obinary.NewBuilder("test", obinary.Version{1, 0, 0, 0})
	myErr := &value.Type{Name: "test.MyError", Base: std.Error}
	tok := b.AddType(myErr)
	mod, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	th.Module = mod

	code := []initializer.Instr{
		{Op: initializer.OpiNewObjL, Operand: int64(uint32(tok))}, // 0
		{Op: initializer.OpiThrow},                                // 1
		{Op: initializer.OpiRetNull},                              // 2 (unreachable)
		{Op: initializer.OpiRet},                                  // 3 (catch handler)
	}
	tries := []value.TryBlock{
		{
			TryStart: 0, TryEnd: 2, Kind: value.TryCatch,
			Catches: []value.CatchClause{{CaughtType: myErr, HandlerIP: 3}},
		},
	}
	ov := managedOverload("throws", 0, 0, 1, code, tries)

	res, err := th.Invoke(ov, value.Null, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Typ != myErr {
		t.Fatalf("want caught value of type %s, got %v", myErr.Name, res.Typ)
	}
}

// TestFinallyOnLeave covers spec.md §8's finally scenario: a `leave`
// out of a try/finally region runs the finally body (observed here via
// a local it sets) before control resumes at the leave's target.
func TestFinallyOnLeave(t *testing.T) {
	th, _, _ := newTestThread(t)

	code := []initializer.Instr{
		{Op: initializer.OpiLeave, Operand: 4},  // 0: leave to index 4
		{Op: initializer.OpiLdCIL, Operand: 42}, // 1: finally body
		{Op: initializer.OpiMvLocSL, Operand: 0}, // 2: Locals[0] = 42
		{Op: initializer.OpiEndFinally},          // 3
		{Op: initializer.OpiMvLocLS, Operand: 0}, // 4: push Locals[0]
		{Op: initializer.OpiRet},                 // 5
	}
	tries := []value.TryBlock{
		{TryStart: 0, TryEnd: 1, Kind: value.TryFinally, FinallyStart: 1, FinallyEnd: 4},
	}
	ov := managedOverload("leaves", 0, 1, 1, code, tries)

	res, err := th.Invoke(ov, value.Null, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.AsInt64() != 42 {
		t.Fatalf("want 42, got %d", res.AsInt64())
	}
}

// TestGCCompactionPreservesIdentity covers spec.md §8's compaction
// scenario: a RefField reference taken before a collection keeps
// resolving to the correct field after the collector promotes and
// moves the instance (gen0 to gen1), both for reads and writes.
func TestGCCompactionPreservesIdentity(t *testing.T) {
	th, g, std := newTestThread(t)

	pointType := &value.Type{Name: "test.Point", Base: std.Object, FieldCount: 2}
	h, err := g.Construct(pointType)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	fields := h.Payload().([]value.Value)
	fields[0] = value.Int(std.Int, 3)
	fields[1] = value.Int(std.Int, 4)

	f := &Frame{Locals: []value.Value{gc.ValueOf(h)}}
	if err := th.pushFrame(f); err != nil {
		t.Fatalf("pushFrame: %v", err)
	}
	defer th.popFrame()

	ref := value.MakeFieldRef(std.Int, h, 1, h)

	g.Collect(true)

	live := (*gc.Header)(f.Locals[0].Inst)
	if live.Generation() != 1 {
		t.Fatalf("expected promotion to generation 1, got %d", live.Generation())
	}

	got := value.ReadRef(ref)
	if got.AsInt64() != 4 {
		t.Fatalf("reference read after compaction: want 4, got %d", got.AsInt64())
	}

	value.WriteRef(ref.Ref, value.Int(std.Int, 9))
	if live.Payload().([]value.Value)[1].AsInt64() != 9 {
		t.Fatalf("reference write after compaction did not reach the live payload")
	}
}

// TestPinningSurvivesCycle covers spec.md §8's pinning scenario: an
// object with no reachable root still survives a collection, and keeps
// its pinned status, because it was pinned.
func TestPinningSurvivesCycle(t *testing.T) {
	_, g, std := newTestThread(t)

	ty := &value.Type{Name: "test.Pinned", Base: std.Object, FieldCount: 1}
	h, err := g.Construct(ty)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	h.Payload().([]value.Value)[0] = value.Int(std.Int, 7)

	g.Pin(h)
	g.Collect(true)

	cur := h
	for cur.Moved() {
		cur = cur.Forward()
	}
	if !cur.Pinned() {
		t.Fatal("pinned object lost its pinned status across a cycle")
	}
	if got := cur.Payload().([]value.Value)[0].AsInt64(); got != 7 {
		t.Fatalf("pinned object's payload changed: got %d", got)
	}
}

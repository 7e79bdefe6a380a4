package vm

import (
	"testing"

	"ovum/internal/obinary"
	"ovum/internal/value"
)

func buildModule(t *testing.T, main *value.Overload) *obinary.Module {
	t.Helper()
	b := obinary.NewBuilder("test", obinary.Version{1, 0, 0, 0})
	b.AddMethod(main)
	b.DeclareGlobal("main", obinary.MemberKindFunction, false, obinary.GlobalMember{Function: main})
	mod, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return mod
}

// TestStartReturnsMainsIntResult covers spec.md §7's exit-code rule: the
// main method's Int return value becomes the process exit code.
func TestStartReturnsMainsIntResult(t *testing.T) {
	main := &value.Overload{
		Name:  "main",
		Flags: value.OverloadNative,
	}
	mod := buildModule(t, main)

	v, err := New(Config{Startup: mod})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer v.Close()
	main.Native = func(_ value.NativeThread, _ value.Value, _ []value.Value) (value.Value, error) {
		return value.Int(v.Std.Int, 42), nil
	}

	if code := v.Start(); code != 42 {
		t.Fatalf("want exit code 42, got %d", code)
	}
}

// TestStartNonIntResultExitsZero covers the fallback half of the same
// rule: any non-Int return maps to exit code 0.
func TestStartNonIntResultExitsZero(t *testing.T) {
	main := &value.Overload{
		Name:  "main",
		Flags: value.OverloadNative,
		Native: func(_ value.NativeThread, _ value.Value, _ []value.Value) (value.Value, error) {
			return value.Null, nil
		},
	}
	mod := buildModule(t, main)

	v, err := New(Config{Startup: mod})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer v.Close()

	if code := v.Start(); code != ExitOK {
		t.Fatalf("want exit code %d, got %d", ExitOK, code)
	}
}

// TestStartMissingEntryPoint covers the no-"main"-declared case.
func TestStartMissingEntryPoint(t *testing.T) {
	b := obinary.NewBuilder("test", obinary.Version{1, 0, 0, 0})
	mod, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	v, err := New(Config{Startup: mod})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer v.Close()

	if code := v.Start(); code != ExitNoEntryPoint {
		t.Fatalf("want exit code %d, got %d", ExitNoEntryPoint, code)
	}
}

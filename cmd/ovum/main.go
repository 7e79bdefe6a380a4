// Command ovum is a minimal host for the executor: it builds a small
// demo module in memory (this core has no on-disk module reader; see
// internal/obinary.Builder), runs its `main` function, and reports the
// resulting exit code.
package main

import (
	"flag"
	"fmt"
	"os"

	"ovum/internal/gcstats"
	"ovum/internal/initializer"
	"ovum/internal/obinary"
	"ovum/internal/value"
	"ovum/internal/vm"
)

var (
	verbose    = flag.Bool("v", false, "verbose output")
	gcStatsOut = flag.String("gcstats", "", "write a pprof heap-occupancy profile to this path before exiting")
	gen0Size   = flag.Int("gen0-size", 0, "generation-0 nursery size in bytes (0: use the default)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Ovum - a stack-based bytecode VM for Osprey\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [args for main...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	mod, err := buildDemoModule()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ovum: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "ovum: running module %q\n", mod.Name)
	}

	machine, err := vm.New(vm.Config{
		Startup:  mod,
		Args:     flag.Args(),
		Verbose:  *verbose,
		Gen0Size: *gen0Size,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ovum: %v\n", err)
		os.Exit(1)
	}
	defer machine.Close()

	// The demo's `main` needs Int's `+` operator wired; it must be
	// registered against the VM's own standard types (the ones its
	// Thread actually dispatches against), not a second, throwaway
	// BuildStandardTypes() result.
	machine.Std.Int.Operators[value.OpAdd] = &value.Overload{
		DeclType:   machine.Std.Int,
		Name:       "+",
		ParamCount: 1,
		Flags:      value.OverloadNative | value.OverloadInstance,
		Native: func(_ value.NativeThread, instance value.Value, args []value.Value) (value.Value, error) {
			return value.Int(machine.Std.Int, instance.AsInt64()+args[0].AsInt64()), nil
		},
	}

	code := machine.Start()

	if *gcStatsOut != "" {
		if err := dumpGCStats(machine, *gcStatsOut); err != nil {
			fmt.Fprintf(os.Stderr, "ovum: writing gcstats: %v\n", err)
		} else if *verbose {
			fmt.Fprintf(os.Stderr, "ovum: gc profile written to %s\n", *gcStatsOut)
		}
	}

	os.Exit(code)
}

func dumpGCStats(machine *vm.VM, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gcstats.Write(f, machine.GC)
}

// buildDemoModule declares a single managed `main` that computes 2 + 3
// via the operator opcode family and returns it, exercising the
// executor's dispatch loop end to end. Its body is handed to the
// Overload pre-translated into intermediate form, the same shortcut
// internal/exec's own tests use, since this core has no on-disk
// bytecode reader to run the raw opcode stream through
// internal/initializer.Initialize first.
func buildDemoModule() (*obinary.Module, error) {
	b := obinary.NewBuilder("ovum.demo", obinary.Version{1, 0, 0, 0})

	code := []initializer.Instr{
		{Op: initializer.OpiLdCIL, Operand: 2},
		{Op: initializer.OpiLdCIL, Operand: 3},
		{Op: initializer.OpiOperatorL, Operand: int64(initializer.OpAdd)},
		{Op: initializer.OpiRet},
	}
	main := &value.Overload{
		Name: "main",
		Code: &initializer.IntermediateMethod{
			Name:     "main",
			Code:     code,
			MaxStack: 2,
		},
	}
	b.AddMethod(main)
	b.DeclareGlobal("main", obinary.MemberKindFunction, false, obinary.GlobalMember{Function: main})

	return b.Build()
}

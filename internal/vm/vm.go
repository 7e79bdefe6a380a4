// Package vm wires the module registry, the generational GC, and a
// single executor thread into one runnable host, and owns the
// CLI-facing lifecycle spec.md §7 describes as `VM_Start`.
package vm

import (
	"fmt"
	"os"

	"ovum/internal/exec"
	"ovum/internal/gc"
	"ovum/internal/obinary"
	"ovum/internal/value"
)

// Config mirrors VM_Start's parameter block: the startup module to run
// and the knobs that shape how it runs, rather than argc/argv/wide
// strings — this port's caller (cmd/ovum) already has those as Go
// string slices by the time it builds a Config.
type Config struct {
	// Startup is the module whose Globals["main"] function is the
	// entry point, already built (this core has no on-disk module
	// loader; see internal/obinary.Builder).
	Startup *obinary.Module

	// Args are passed to main as a single List-of-String argument, if
	// main declares one parameter; ignored for a zero-parameter main.
	Args []string

	Verbose  bool
	Gen0Size int
}

// VM is one process-wide instance: a module registry, a GC, and the
// single managed thread this core's scope requires (spec.md §7 notes
// the source's multi-thread contracts but only ever drives one thread
// end to end).
type VM struct {
	Registry *obinary.Registry
	GC       *gc.GC
	Thread   *exec.Thread
	Std      *exec.StdTypes

	args    []string
	verbose bool
}

// New builds a VM around cfg's startup module, registering it and
// constructing the standard types every core Value operation assumes
// are present (Object, Int, String, the built-in error hierarchy, ...).
func New(cfg Config) (*VM, error) {
	gen0Size := cfg.Gen0Size
	if gen0Size == 0 {
		gen0Size = gc.DefaultConfig().Gen0Size
	}
	g, err := gc.New(gc.Config{Gen0Size: gen0Size})
	if err != nil {
		return nil, fmt.Errorf("vm: %w", err)
	}

	reg := obinary.NewRegistry()
	if cfg.Startup != nil {
		if err := reg.Add(cfg.Startup); err != nil {
			return nil, fmt.Errorf("vm: %w", err)
		}
	}

	std := exec.NewStdTypes(obinary.BuildStandardTypes().Types)
	th := exec.NewThread(1, g, std, cfg.Startup)
	g.RegisterRoot(th)

	return &VM{Registry: reg, GC: g, Thread: th, Std: std, args: cfg.Args, verbose: cfg.Verbose}, nil
}

// Close releases the VM's GC-owned memory. The caller is responsible
// for calling it once Start returns; a VM is not reused across runs.
func (v *VM) Close() error { return v.GC.Close() }

// ExitCode mirrors spec.md §7's rule: the main method's Int return
// value, 0 for any other return type, and a distinguished non-zero
// code when main itself threw or could not be found.
const (
	ExitOK          = 0
	ExitNoEntryPoint = 64
	ExitUnhandled    = 70
)

// Start resolves and runs the startup module's `main` global function,
// returning the process exit code spec.md §7 specifies.
func (v *VM) Start() int {
	if v.Thread.Module == nil {
		fmt.Fprintln(os.Stderr, "ovum: no startup module configured")
		return ExitNoEntryPoint
	}

	gm, ok := v.Thread.Module.FindGlobalMember("main", true)
	if !ok || gm.Function == nil {
		fmt.Fprintln(os.Stderr, "ovum: startup module has no \"main\" function")
		return ExitNoEntryPoint
	}

	for _, ty := range v.Thread.Module.StaticCtorTypes {
		if err := v.Thread.EnsureStaticCtor(ty); err != nil {
			fmt.Fprintln(os.Stderr, "ovum: static constructor failed:", err)
			return ExitUnhandled
		}
	}

	args, err := v.mainArgs(gm.Function)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ovum:", err)
		return ExitUnhandled
	}

	res, err := v.Thread.Invoke(gm.Function, value.Null, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ovum: unhandled exception:", err)
		return ExitUnhandled
	}

	if res.Typ == v.Std.Int {
		return int(res.AsInt64())
	}
	return ExitOK
}

// mainArgs packs v.Args (set at construction time via Config.Args) into
// the single List argument a parameterized main expects, or returns no
// arguments for a zero-parameter one.
func (v *VM) mainArgs(main *value.Overload) ([]value.Value, error) {
	if main.ParamCount == 0 {
		return nil, nil
	}
	elems := make([]value.Value, len(v.args))
	for i, a := range v.args {
		s, err := v.Thread.MakeString(a)
		if err != nil {
			return nil, err
		}
		elems[i] = s
	}
	list, err := v.Thread.MakeList(elems)
	if err != nil {
		return nil, err
	}
	return []value.Value{list}, nil
}

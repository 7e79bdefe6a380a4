package initializer

// IntermediateMethod is a fully-initialized method body: every branch
// resolved to an index in Code, every instruction rewritten into the
// form internal/exec dispatches directly without re-deriving anything
// about it at run time.
type IntermediateMethod struct {
	Name       string
	Code       []Instr
	MaxStack   int
	ParamCount int
	TryBlocks  []ResolvedTryBlock
}

// Initialize runs a raw method body through the full pipeline: decode,
// branch resolution, try-block validation, stack-height inference, and
// the peephole pass that rewrites it into intermediate opcodes. tryBlocks
// carries the method's exception-handling table exactly as declared —
// byte offsets and type tokens — and comes back out remapped into
// indices in the returned method's Code, same as every branch target.
// The returned method is what internal/exec loads into a frame and runs.
func Initialize(name string, body []byte, paramCount int, tryBlocks []RawTryBlock) (*IntermediateMethod, error) {
	instrs, err := decode(body)
	if err != nil {
		return nil, annotate(err, name)
	}
	if err := resolveBranches(instrs, len(body), name); err != nil {
		return nil, err
	}
	if err := validateTryBlocks(tryBlocks, len(body), instrs, name); err != nil {
		return nil, err
	}
	if err := inferStackHeights(instrs, len(body), name, tryBlocks); err != nil {
		return nil, err
	}
	maxStack := 0
	for _, ins := range instrs {
		if h := ins.StackHeightBefore - ins.removed + ins.added; h > maxStack {
			maxStack = h
		}
		if ins.StackHeightBefore > maxStack {
			maxStack = ins.StackHeightBefore
		}
	}
	code, resolveOffset := runPeephole(instrs, len(body))
	resolved := make([]ResolvedTryBlock, len(tryBlocks))
	for i, tb := range tryBlocks {
		rtb := ResolvedTryBlock{
			TryStart: resolveOffset(tb.TryStart),
			TryEnd:   resolveOffset(tb.TryEnd),
			Kind:     tb.Kind,
		}
		if len(tb.Catches) > 0 {
			rtb.Catches = make([]ResolvedCatch, len(tb.Catches))
			for j, c := range tb.Catches {
				rtb.Catches[j] = ResolvedCatch{CaughtType: c.CaughtType, HandlerIP: resolveOffset(c.HandlerIP)}
			}
		}
		if tb.Kind == TryFinally {
			rtb.FinallyStart = resolveOffset(tb.FinallyStart)
			rtb.FinallyEnd = resolveOffset(tb.FinallyEnd)
		}
		resolved[i] = rtb
	}
	return &IntermediateMethod{Name: name, Code: code, MaxStack: maxStack, ParamCount: paramCount, TryBlocks: resolved}, nil
}

func annotate(err error, name string) error {
	if fe, ok := err.(*FatalError); ok && fe.MethodName == "" {
		fe.MethodName = name
	}
	return err
}

// StaticConstructorQueue collects the bodies of module-level static
// constructors as they're initialized, in declaration order, so the
// module loader can flush them — running each to completion before
// any other code in that module executes — the same ordering
// guarantee the source gives ahead-of-time, one type's static fields
// fully initialized before the next type's static constructor can
// observe them.
type StaticConstructorQueue struct {
	methods []*IntermediateMethod
}

// Add appends a type's static constructor to the flush queue. Pass nil
// for types that declare no static constructor; Add is then a no-op,
// since there's nothing to run.
func (q *StaticConstructorQueue) Add(m *IntermediateMethod) {
	if m == nil {
		return
	}
	q.methods = append(q.methods, m)
}

// Flush returns the queued static constructors in the order they must
// run, and empties the queue.
func (q *StaticConstructorQueue) Flush() []*IntermediateMethod {
	out := q.methods
	q.methods = nil
	return out
}

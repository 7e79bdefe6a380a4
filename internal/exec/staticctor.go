package exec

import "ovum/internal/value"

// staticCtorName is the conventional static-constructor method name
// spec.md §3 names: the `.init` method on a type, run at most once
// before the type's static fields are first used.
const staticCtorName = ".init"

// EnsureStaticCtor runs ty's static constructor if it declares one and
// it hasn't run yet, guarded by ty's per-type recursive lock so a
// constructor that (directly or through another type's constructor)
// touches its own statics mid-initialization observes them partially
// initialized rather than deadlocking or re-entering. It is the single
// choke point both static-field access (dispatch.go's ldsfld/stsfld)
// and eager module-load warmup (vm.VM.Start) funnel through, so running
// it twice from either trigger is always a no-op the second time.
func (t *Thread) EnsureStaticCtor(ty *value.Type) error {
	if ty == nil {
		return nil
	}
	alreadyRun, reentrant := ty.EnterStaticCtor(t.ID)
	if alreadyRun || reentrant {
		return nil
	}
	defer ty.ExitStaticCtor(t.ID)

	m, ok := ty.FindMember(staticCtorName, nil)
	if !ok || m.Kind != value.MemberMethod {
		return nil
	}
	ov := pickOverload(m, 0)
	if ov == nil {
		return nil
	}
	_, err := t.Invoke(ov, value.Null, nil)
	return err
}
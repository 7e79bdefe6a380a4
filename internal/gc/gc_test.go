package gc

import (
	"testing"

	"ovum/internal/value"
)

// fakeRoots is a minimal RootProvider backed by a slice of Values, used
// in place of a real internal/exec.Thread to keep this package's tests
// from depending on the executor.
type fakeRoots struct {
	vals []value.Value
}

func (f *fakeRoots) VisitRoots(yield func(*value.Value)) {
	for i := range f.vals {
		yield(&f.vals[i])
	}
}

func newTestGC(t *testing.T) *GC {
	t.Helper()
	g, err := New(Config{Gen0Size: 64 * 1024})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func dummyType(name string, fields int32) *value.Type {
	return &value.Type{Name: name, FieldCount: fields}
}

func TestConstructReachableObjectSurvivesCollection(t *testing.T) {
	g := newTestGC(t)
	ty := dummyType("Point", 2)

	h, err := g.Construct(ty)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	fields := h.Payload().([]value.Value)
	fields[0] = value.Int(ty, 3)
	fields[1] = value.Int(ty, 4)

	roots := &fakeRoots{vals: []value.Value{ValueOf(h)}}
	g.RegisterRoot(roots)

	g.Collect(true)

	live := (*Header)(roots.vals[0].Inst)
	if live.Generation() != 1 {
		t.Fatalf("expected survivor promoted to generation 1, got %d", live.Generation())
	}
	got := live.Payload().([]value.Value)
	if got[0].AsInt64() != 3 || got[1].AsInt64() != 4 {
		t.Fatalf("payload not preserved across collection: %+v", got)
	}
}

func TestUnreachableObjectIsReclaimed(t *testing.T) {
	g := newTestGC(t)
	ty := dummyType("Garbage", 1)

	h, err := g.Construct(ty)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if h.Generation() != 0 {
		t.Fatalf("new object should start in generation 0")
	}

	// No root references h, so it must not survive a collection.
	g.Collect(true)

	if h.Moved() {
		t.Fatal("an unreachable generation-0 object should not be promoted")
	}
}

func TestPinningSurvivesWithoutRoot(t *testing.T) {
	g := newTestGC(t)
	ty := dummyType("Pinned", 1)

	h, err := g.Construct(ty)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	fields := h.Payload().([]value.Value)
	fields[0] = value.Int(ty, 42)

	g.Pin(h)

	g.Collect(true)
	g.Collect(true) // a second cycle exercises the color flip

	cur := h
	for cur.Moved() {
		cur = cur.Forward()
	}
	if !cur.Pinned() {
		t.Fatal("pinned object lost its pinned flag across collection")
	}
	got := cur.Payload().([]value.Value)
	if got[0].AsInt64() != 42 {
		t.Fatalf("pinned payload corrupted: %+v", got)
	}

	g.Unpin(cur)
	if cur.Pinned() {
		t.Fatal("Unpin should clear the pinned flag once the count reaches zero")
	}
}

func TestInternReturnsCanonicalHeader(t *testing.T) {
	g := newTestGC(t)
	ty := dummyType("String", 0)

	a, err := g.Intern(ty, FromRunes("hello"))
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	b, err := g.Intern(ty, FromRunes("hello"))
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if a != b {
		t.Fatal("interning equal content twice should return the same Header")
	}

	c, err := g.Intern(ty, FromRunes("world"))
	if err != nil {
		t.Fatalf("Intern: %v", err)
	}
	if a == c {
		t.Fatal("interning different content should not collide")
	}
}

func TestGenerationsPromoteGen0ArraySurvivor(t *testing.T) {
	g := newTestGC(t)
	ty := dummyType("List", 0)

	h, err := g.AllocArray(ty, 4)
	if err != nil {
		t.Fatalf("AllocArray: %v", err)
	}
	roots := &fakeRoots{vals: []value.Value{ValueOf(h)}}
	g.RegisterRoot(roots)

	g.Collect(true)

	live := (*Header)(roots.vals[0].Inst)
	if live.Generation() != 1 {
		t.Fatal("array survivor should be promoted out of generation 0")
	}
	if live.Generation() == 0 {
		t.Fatal("unreachable")
	}
}

func TestStaticReferenceIsARootAcrossCollection(t *testing.T) {
	g := newTestGC(t)
	ty := dummyType("Boxed", 1)

	h, err := g.Construct(ty)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	ref := g.AddStaticReference(ValueOf(h))

	g.Collect(true)

	v := ref.Load()
	live := (*Header)(v.Inst)
	if live.Generation() != 1 {
		t.Fatal("object referenced only from a static slot must still survive collection")
	}
}

func TestHeapExhaustedWhenEvenAfterCollectionNothingFits(t *testing.T) {
	g, err := New(Config{Gen0Size: 256})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer g.Close()

	ty := dummyType("Big", 100) // FieldCount*16 = 1600 bytes: too big for the 256-byte nursery, but below the large-object threshold

	_, err = g.Construct(ty)
	if err == nil {
		t.Fatal("expected an allocation request larger than the nursery to fail")
	}
}

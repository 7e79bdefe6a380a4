package value

// StaticRef is a lock-protected Value slot. The GC hands these out for
// static fields, type tokens, and process-wide argument storage; each
// one carries its own spinlock so a reader never observes a Value with
// the type word from one write and the payload from another.
type StaticRef struct {
	lock        spinlock
	val         Value
	hasGen0Refs bool
}

// NewStaticRef wraps an initial Value in a new static reference slot.
func NewStaticRef(initial Value) *StaticRef {
	return &StaticRef{val: initial}
}

// Load reads the slot's current value under the spinlock.
func (s *StaticRef) Load() Value {
	s.lock.Lock()
	v := s.val
	s.lock.Unlock()
	return v
}

// Store writes a new value into the slot under the spinlock.
func (s *StaticRef) Store(v Value) {
	s.lock.Lock()
	s.val = v
	s.lock.Unlock()
}

// HasGen0Refs reports whether this slot was last seen holding a
// reference to a generation-0 object; the GC uses this to skip
// unchanged blocks during the update-references phase of a cycle.
func (s *StaticRef) HasGen0Refs() bool {
	s.lock.Lock()
	v := s.hasGen0Refs
	s.lock.Unlock()
	return v
}

// SetHasGen0Refs updates the gen-0 hint.
func (s *StaticRef) SetHasGen0Refs(v bool) {
	s.lock.Lock()
	s.hasGen0Refs = v
	s.lock.Unlock()
}

// StaticRefBlock is a fixed-size block of static reference slots,
// allocated together so the GC can walk them in batches rather than as
// a scattered linked list of singleton allocations.
const StaticRefBlockSize = 64

type StaticRefBlock struct {
	Slots [StaticRefBlockSize]StaticRef
	Used  int
	Next  *StaticRefBlock
}

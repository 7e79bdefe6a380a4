package gc

import "ovum/internal/value"

// staticRefs owns the chain of fixed-size StaticRefBlocks that back
// every static field and static-type-token slot in the system. New
// blocks are appended, never freed; a static reference lives for the
// process's entire life, same as spec.md describes.
type staticRefs struct {
	head *value.StaticRefBlock
	tail *value.StaticRefBlock
}

func newStaticRefs() *staticRefs {
	b := &value.StaticRefBlock{}
	return &staticRefs{head: b, tail: b}
}

// alloc hands out the next free slot, appending a new block when the
// tail is full.
func (s *staticRefs) alloc() *value.StaticRef {
	if s.tail.Used == value.StaticRefBlockSize {
		nb := &value.StaticRefBlock{}
		s.tail.Next = nb
		s.tail = nb
	}
	ref := &s.tail.Slots[s.tail.Used]
	s.tail.Used++
	return ref
}

// forEach visits every allocated slot across every block, in
// allocation order, for the root-marking phase of a cycle.
func (s *staticRefs) forEach(fn func(*value.StaticRef)) {
	for b := s.head; b != nil; b = b.Next {
		for i := 0; i < b.Used; i++ {
			fn(&b.Slots[i])
		}
	}
}

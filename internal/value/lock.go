package value

import (
	"runtime"
	"sync/atomic"
)

// Spinlock is a small mutual-exclusion lock implemented with a CAS loop
// instead of sync.Mutex. The Ovum specification calls for a per-object
// field-access lock and a per-static-reference lock that are held only
// for the duration of a single Value read or write — short enough that
// a spinlock beats the syscall-capable path a blocking mutex may take,
// which is why the source used one too. It satisfies sync.Locker so it
// can be plugged directly into a Ref's Lock field.
type Spinlock struct {
	state uint32
}

func (s *Spinlock) Lock() {
	for !atomic.CompareAndSwapUint32(&s.state, 0, 1) {
		runtime.Gosched()
	}
}

func (s *Spinlock) Unlock() {
	atomic.StoreUint32(&s.state, 0)
}

type spinlock = Spinlock

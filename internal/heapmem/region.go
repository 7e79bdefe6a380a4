// Package heapmem provides the fixed-size, non-moving memory region
// that backs the GC's generation-0 byte budget (the executor's call
// stack is plain Go slices and does not use this package).
//
// A region has a requirement the Go heap cannot give us directly:
// a contiguous block of memory at a stable address, with a guard page
// immediately following it so that walking off the end faults instead
// of silently corrupting adjacent memory (spec.md §3, §5). A Go slice
// can be relocated by the host runtime's own collector and carries no
// guard page, so this package asks the OS for the memory instead, via
// golang.org/x/sys/unix on unix targets. On other targets (the !unix
// build) a plain Go slice is used instead; on unix a failed mmap is
// returned as an error, with no fallback.
package heapmem

import "fmt"

// Region is a fixed-size block of raw memory with an optional trailing
// guard page.
type Region struct {
	backing mapping
	size    int
}

// ErrOverflow names a region overflow. Bump.Alloc does not return it:
// it reports an allocation that would run past the end with ok=false.
var ErrOverflow = fmt.Errorf("heapmem: region overflow")

// mapping is the platform-specific backing store.
type mapping interface {
	Bytes() []byte
	Close() error
}

// New creates a region of exactly size bytes, optionally followed by a
// guard page that faults on any access.
func New(size int, guardPage bool) (*Region, error) {
	m, err := newMapping(size, guardPage)
	if err != nil {
		return nil, err
	}
	return &Region{backing: m, size: size}, nil
}

// Bytes returns the region's backing slice. Its length is always
// exactly the size passed to New, regardless of guard-page padding.
func (r *Region) Bytes() []byte { return r.backing.Bytes()[:r.size] }

// Size returns the region's usable size in bytes.
func (r *Region) Size() int { return r.size }

// Close releases the region's backing memory.
func (r *Region) Close() error { return r.backing.Close() }

const gen0Align = 8

// AlignUp rounds n up to the fixed 8-byte generation-0 alignment
// policy (spec.md §9 resolves the source's alignment wobble to a
// single fixed policy).
func AlignUp(n int) int {
	return (n + gen0Align - 1) &^ (gen0Align - 1)
}

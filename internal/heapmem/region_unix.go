//go:build unix

package heapmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type unixMapping struct {
	full []byte // includes the trailing guard page, if any
	size int    // usable size, excluding the guard page
}

func (m *unixMapping) Bytes() []byte { return m.full }

func (m *unixMapping) Close() error {
	return unix.Munmap(m.full)
}

func newMapping(size int, guardPage bool) (mapping, error) {
	pageSize := unix.Getpagesize()
	total := size
	if guardPage {
		// Round the usable region up to a page boundary so the guard
		// page starts exactly where the region ends.
		total = roundUpToPage(size, pageSize) + pageSize
	}

	full, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("heapmem: mmap %d bytes: %w", total, err)
	}

	if guardPage {
		guardStart := roundUpToPage(size, pageSize)
		if err := unix.Mprotect(full[guardStart:], unix.PROT_NONE); err != nil {
			_ = unix.Munmap(full)
			return nil, fmt.Errorf("heapmem: mprotect guard page: %w", err)
		}
	}

	return &unixMapping{full: full, size: size}, nil
}

func roundUpToPage(n, pageSize int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

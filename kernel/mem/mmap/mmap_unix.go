//go:build unix

// Package mmap provides a mem.Allocator backed by anonymous memory mappings.
// Mapped blocks live outside the Go heap, are page aligned and are zeroed by
// the host kernel, which makes them suitable for tables that are handed to
// hardware by address.
package mmap

import (
	"golang.org/x/sys/unix"

	"segkern/kernel"
	"segkern/kernel/kfmt"
	"segkern/kernel/mem"
)

var (
	errMapFailed = &kernel.Error{Module: "mmap", Message: "unable to map anonymous memory"}

	// mmapFn and munmapFn are mocked by tests.
	mmapFn   = unix.Mmap
	munmapFn = unix.Munmap
)

// Allocator implements mem.Allocator using anonymous private mappings. Each
// block is rounded up to a whole number of pages.
type Allocator struct{}

// AllocBlock implements mem.Allocator.
func (Allocator) AllocBlock(size mem.Size) ([]byte, *kernel.Error) {
	if size == 0 {
		return nil, mem.ErrInvalidSize
	}

	mapLen := int(size.Pages() << mem.PageShift)
	block, err := mmapFn(-1, 0, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		kfmt.Printf("[mmap] mapping %d bytes failed: %s\n", mapLen, err.Error())
		return nil, errMapFailed
	}

	return block[:size], nil
}

// FreeBlock implements mem.Allocator.
func (Allocator) FreeBlock(block []byte) {
	if cap(block) == 0 {
		return
	}

	// Munmap expects the slice returned by Mmap.
	if err := munmapFn(block[:cap(block)]); err != nil {
		kfmt.Printf("[mmap] unmapping %d bytes failed: %s\n", cap(block), err.Error())
	}
}
